// Package jamt runs the toolchain's jamt and jamtop binaries against a
// node, after checking that the node answers.
package jamt
