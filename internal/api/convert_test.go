package api

import (
	"testing"
	"time"

	"telephony/internal/journal"
	"telephony/internal/tapi"
)

func TestFromWatchUsesKindName(t *testing.T) {
	w := FromWatch(tapi.WatchInfo{ID: 3, Slot: 1, Kind: tapi.KindCellInfo, Path: "/ril_1", CorrelationID: "c"})
	if w.ID != 3 || w.EventID != 12 || w.Event != "cellinfo" || w.Path != "/ril_1" {
		t.Fatalf("unexpected watch %+v", w)
	}
}

func TestFromEntriesCursor(t *testing.T) {
	ts := time.Date(2024, 6, 23, 14, 10, 5, 123000000, time.UTC)
	resp := FromEntries([]journal.Entry{
		{ID: 7, RecordedAt: ts, Kind: 13, KindName: "signal-strength", Status: "ok", Count: 60},
		{ID: 9, RecordedAt: ts, Kind: 14, KindName: "nitz", Status: "ok"},
	}, 5)
	if resp.Next != 9 || len(resp.Events) != 2 {
		t.Fatalf("unexpected response %+v", resp)
	}
	if resp.Events[0].RecordedAt != "2024-06-23T14:10:05.123Z" {
		t.Fatalf("unexpected timestamp %q", resp.Events[0].RecordedAt)
	}

	empty := FromEntries(nil, 42)
	if empty.Next != 42 || empty.Events == nil || len(empty.Events) != 0 {
		t.Fatalf("empty page should keep cursor: %+v", empty)
	}
}

func TestFromSlots(t *testing.T) {
	got := FromSlots([]tapi.SlotStatus{{Slot: 0, ModemPath: "/ril_0", Available: true}, {Slot: 1}})
	if len(got) != 2 || !got[0].Available || got[1].Available {
		t.Fatalf("unexpected slots %+v", got)
	}
	if FormatTime(time.Time{}) != "" {
		t.Fatal("zero time should format empty")
	}
}
