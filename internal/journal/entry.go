package journal

import (
	"encoding/json"
	"time"
)

// Entry is one journaled result.
type Entry struct {
	ID            int64           `json:"id"`
	RecordedAt    time.Time       `json:"recorded_at"`
	Slot          int             `json:"slot"`
	Kind          int             `json:"kind"`
	KindName      string          `json:"kind_name"`
	Status        string          `json:"status"`
	Count         int             `json:"count"`
	Payload       json.RawMessage `json:"payload,omitempty"`
	CorrelationID string          `json:"correlation_id,omitempty"`
	Error         string          `json:"error,omitempty"`
}
