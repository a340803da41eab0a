// Package main hosts the telephony CLI entrypoint and command graph.
//
// Network operations run through the daemon when its socket answers and
// directly on the message bus otherwise. The listen and shell commands always
// hold their own bus connection. The daemon subcommands manage the bridge
// process and read its journal and log.
package main
