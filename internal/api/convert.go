package api

import (
	"time"

	"telephony/internal/journal"
	"telephony/internal/tapi"
)

// FromSlots converts slot snapshots.
func FromSlots(slots []tapi.SlotStatus) []SlotStatus {
	out := make([]SlotStatus, 0, len(slots))
	for _, s := range slots {
		out = append(out, SlotStatus{Slot: s.Slot, ModemPath: s.ModemPath, Available: s.Available})
	}
	return out
}

// FromWatch converts a live watch description.
func FromWatch(w tapi.WatchInfo) Watch {
	return Watch{
		ID:            int(w.ID),
		Slot:          w.Slot,
		EventID:       int(w.Kind),
		Event:         w.Kind.String(),
		Path:          w.Path,
		CorrelationID: w.CorrelationID,
	}
}

// FromWatches converts watches preserving order.
func FromWatches(watches []tapi.WatchInfo) []Watch {
	out := make([]Watch, 0, len(watches))
	for _, w := range watches {
		out = append(out, FromWatch(w))
	}
	return out
}

// FromEntry converts a journal entry.
func FromEntry(e journal.Entry) Event {
	return Event{
		ID:            e.ID,
		RecordedAt:    FormatTime(e.RecordedAt),
		Slot:          e.Slot,
		EventID:       e.Kind,
		Event:         e.KindName,
		Status:        e.Status,
		Count:         e.Count,
		Payload:       e.Payload,
		CorrelationID: e.CorrelationID,
		Error:         e.Error,
	}
}

// FromEntries converts a journal page. Next is the id of the last entry, or
// after when the page is empty, so callers can poll with it unchanged.
func FromEntries(entries []journal.Entry, after int64) EventsResponse {
	resp := EventsResponse{Events: make([]Event, 0, len(entries)), Next: after}
	for _, e := range entries {
		resp.Events = append(resp.Events, FromEntry(e))
		if e.ID > resp.Next {
			resp.Next = e.ID
		}
	}
	return resp
}

// FormatTime renders t in the API timestamp format; the zero time is empty.
func FormatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(dateTimeFormat)
}
