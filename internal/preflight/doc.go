// Package preflight provides readiness checks for the message bus, the
// configured modem slots, and the filesystem paths the bridge writes to.
//
// The CLI "telephony doctor" command runs RunAll and renders the results.
// A missing directory is reported, not created.
package preflight
