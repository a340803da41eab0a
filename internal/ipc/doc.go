// Package ipc exposes the daemon over JSON-RPC on a Unix socket and ships the
// matching client used by the CLI.
//
// Request and response types wrap the HTTP API DTOs so both surfaces report
// the same shapes.
package ipc
