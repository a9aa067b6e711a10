// Package log configures jamctl's zerolog logger. Logs go to stderr so that
// command output on stdout stays clean; WithComponent tags a child logger.
package log
