package ipc

import "telephony/internal/api"

// StartRequest restarts the bridge loop of a stopped daemon.
type StartRequest struct{}

// StartResponse indicates whether the daemon was started.
type StartResponse struct {
	Started bool   `json:"started"`
	Message string `json:"message"`
}

// StopRequest stops the bridge loop without exiting the process.
type StopRequest struct{}

// StopResponse indicates stop result.
type StopResponse struct {
	Stopped bool `json:"stopped"`
}

// StatusRequest fetches daemon status.
type StatusRequest struct{}

// StatusResponse mirrors the HTTP status payload.
type StatusResponse = api.DaemonStatus

// Event mirrors the HTTP journal event DTO.
type Event = api.Event

// Watch mirrors the HTTP watch DTO.
type Watch = api.Watch

// EventsRequest pages through the journal.
type EventsRequest struct {
	After int64 `json:"after"`
	Limit int   `json:"limit"`
}

// EventsResponse mirrors the HTTP events payload.
type EventsResponse = api.EventsResponse

// WatchRequest registers a journaled watch.
type WatchRequest struct {
	Slot  int    `json:"slot"`
	Event string `json:"event"`
}

// WatchResponse describes the registered watch.
type WatchResponse struct {
	Watch Watch `json:"watch"`
}

// UnwatchRequest removes a watch by id.
type UnwatchRequest struct {
	ID int `json:"id"`
}

// UnwatchResponse confirms removal.
type UnwatchResponse struct {
	Removed bool `json:"removed"`
}

// RefreshRequest re-resolves slot channels.
type RefreshRequest struct{}

// RefreshResponse confirms the refresh was queued.
type RefreshResponse struct {
	Refreshed bool `json:"refreshed"`
}

// QueryRequest runs one network operation through the daemon's bus
// connection. OperatorID is the operator object path for select-manual.
type QueryRequest struct {
	Slot       int    `json:"slot"`
	Operation  string `json:"operation"`
	OperatorID string `json:"operator_id,omitempty"`
}

// QueryResponse carries the journaled result of the operation.
type QueryResponse struct {
	Event Event `json:"event"`
}
