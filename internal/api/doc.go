// Package api defines wire-format types and converters for the IPC and HTTP
// API layer. It translates bridge snapshots and journal entries into
// transport-friendly DTOs that the CLI and other consumers can render without
// coupling to internal types.
//
// # Key Types
//
// DaemonStatus: running state, slot availability, handler counts, live
// watches, and journal statistics.
//
// Event/EventsResponse: journaled notifications and operation results with a
// cursor for incremental tailing.
//
// # Design Notes
//
// DTOs use camelCase JSON tags. Kinds are exposed both as their numeric id and
// their name. Timestamps use RFC3339 with milliseconds. Decoded payloads are
// passed through as json.RawMessage to avoid double-encoding.
package api
