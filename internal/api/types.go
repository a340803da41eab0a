package api

import "encoding/json"

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// SlotStatus reports the channel availability of one modem slot.
type SlotStatus struct {
	Slot      int    `json:"slot"`
	ModemPath string `json:"modemPath"`
	Available bool   `json:"available"`
}

// Watch describes a live notification subscription.
type Watch struct {
	ID            int    `json:"id"`
	Slot          int    `json:"slot"`
	EventID       int    `json:"eventId"`
	Event         string `json:"event"`
	Path          string `json:"path"`
	CorrelationID string `json:"correlationId,omitempty"`
}

// DaemonStatus aggregates daemon runtime information for API consumers.
type DaemonStatus struct {
	Running       bool           `json:"running"`
	PID           int            `json:"pid"`
	StartedAt     string         `json:"startedAt,omitempty"`
	LockFilePath  string         `json:"lockFilePath"`
	JournalPath   string         `json:"journalPath"`
	Slots         []SlotStatus   `json:"slots"`
	InFlight      int            `json:"inFlight"`
	LiveHandlers  int            `json:"liveHandlers"`
	Watches       []Watch        `json:"watches"`
	Delivered     int64          `json:"delivered"`
	Dropped       int64          `json:"dropped"`
	JournalStats  map[string]int `json:"journalStats,omitempty"`
	HotplugActive bool           `json:"hotplugActive"`
	LastError     string         `json:"lastError,omitempty"`
}

// Event is a journaled result.
type Event struct {
	ID            int64           `json:"id"`
	RecordedAt    string          `json:"recordedAt"`
	Slot          int             `json:"slot"`
	EventID       int             `json:"eventId"`
	Event         string          `json:"event"`
	Status        string          `json:"status"`
	Count         int             `json:"count"`
	Payload       json.RawMessage `json:"payload,omitempty"`
	CorrelationID string          `json:"correlationId,omitempty"`
	Error         string          `json:"error,omitempty"`
}

// EventsResponse wraps journal entries with the cursor to resume from.
type EventsResponse struct {
	Events []Event `json:"events"`
	Next   int64   `json:"next"`
}
