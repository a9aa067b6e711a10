/*
Jamctl installs the polkajam toolchain and runs a local JAM testnet from it.

Usage:

	jamctl setup [--list] [--info] [--version <tag>] [--force] [--update]
	jamctl up [--foreground] [--rpc <url>] [--timeout 30s]
	jamctl down [--force] [--grace 10s]
	jamctl status
	jamctl deploy <service.jam> [--amount N] [--memo M] [-r name]
	jamctl monitor
	jamctl history [--kind install|start|stop]

Every command exits 0 on success and 1 on error. Flags can also be set
through JAMCTL_* environment variables, e.g. JAMCTL_HOME or JAMCTL_RPC.
*/
package main
