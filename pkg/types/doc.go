// Package types holds the data model shared by every jamctl package and the
// error taxonomy commands report.
package types
