// Package daemon coordinates the long-running telephony bridge process.
//
// It owns the bridge context loop, registers the configured watches, journals
// every delivered notification and operation result, refreshes slot channels
// when modems are hot-plugged, and serves an optional read-only HTTP status
// endpoint. A flock-based lock prevents multiple instances from sharing one
// state directory.
//
// Keep orchestration here: notification decoding and call dispatch belong to
// the tapi package, persistence to journal, and the control socket to ipc.
package daemon
