package tapi

import (
	"errors"
	"testing"

	"telephony/internal/testsupport"
	"telephony/internal/transport"
)

func cellInfoSignal(path string, ids ...uint32) transport.Signal {
	entries := make([][]any, 0, len(ids))
	for _, id := range ids {
		entries = append(entries, []any{testsupport.Props("CellId", id, "Strength", byte(11))})
	}
	return transport.Signal{
		Sender:    ":1.1",
		Path:      path,
		Interface: NetworkMonitorInterface,
		Member:    "CellInfoChanged",
		Body:      []any{entries},
	}
}

func TestRegisterInstallsMatch(t *testing.T) {
	c, fake := newTestContext(t)
	id, err := c.Register(1, KindCellInfo, func(*AsyncResult) {})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if id <= 0 {
		t.Fatalf("watch id %d not positive", id)
	}
	matches := fake.Matches()
	want := transport.Match{Sender: testService, Path: modem1, Interface: NetworkMonitorInterface, Member: "CellInfoChanged"}
	if len(matches) != 1 || matches[0] != want {
		t.Fatalf("matches = %+v, want %+v", matches, want)
	}
	if c.InFlight() != 0 || c.LiveHandlers() != 1 {
		t.Fatalf("inflight=%d live=%d", c.InFlight(), c.LiveHandlers())
	}
}

func TestRegisterRejects(t *testing.T) {
	t.Run("unmapped kind", func(t *testing.T) {
		c, _ := newTestContext(t)
		if _, err := c.Register(0, KindScan, func(*AsyncResult) {}); !errors.Is(err, ErrInvalidArgument) {
			t.Fatalf("expected ErrInvalidArgument, got %v", err)
		}
		if _, err := c.Register(0, Kind(99), func(*AsyncResult) {}); !errors.Is(err, ErrInvalidArgument) {
			t.Fatalf("expected ErrInvalidArgument, got %v", err)
		}
	})
	t.Run("bad slot", func(t *testing.T) {
		c, _ := newTestContext(t)
		if _, err := c.Register(5, KindNitz, func(*AsyncResult) {}); !errors.Is(err, ErrInvalidArgument) {
			t.Fatalf("expected ErrInvalidArgument, got %v", err)
		}
	})
	t.Run("no modem", func(t *testing.T) {
		c, _ := newTestContext(t, "")
		if _, err := c.Register(0, KindNitz, func(*AsyncResult) {}); !errors.Is(err, ErrIO) {
			t.Fatalf("expected ErrIO, got %v", err)
		}
	})
	t.Run("match install fails", func(t *testing.T) {
		c, fake := newTestContext(t)
		fake.MatchErr = errors.New("access denied")
		if _, err := c.Register(0, KindNitz, func(*AsyncResult) {}); !errors.Is(err, ErrIO) {
			t.Fatalf("expected ErrIO, got %v", err)
		}
		if c.LiveHandlers() != 0 || len(c.Watches()) != 0 {
			t.Fatal("failed registration left state behind")
		}
	})
}

func TestEventDelivery(t *testing.T) {
	tests := []struct {
		name   string
		kind   Kind
		signal transport.Signal
		check  func(t *testing.T, ar AsyncResult)
	}{
		{
			name:   "signal strength",
			kind:   KindSignalStrength,
			signal: testsupport.PropertyChanged(modem0, NetworkRegistrationInterface, "Strength", byte(73)),
			check: func(t *testing.T, ar AsyncResult) {
				if ar.Count != 73 {
					t.Fatalf("strength %d, want 73", ar.Count)
				}
			},
		},
		{
			name:   "nitz",
			kind:   KindNitz,
			signal: testsupport.PropertyChanged(modem0, NetworkRegistrationInterface, "NITZ", "5,10,14,23,6,24,0,480"),
			check: func(t *testing.T, ar AsyncResult) {
				nt, ok := ar.NetworkTime()
				if !ok || nt.Hour != 14 || nt.UTCOff != 480 {
					t.Fatalf("unexpected nitz %+v", ar.Payload)
				}
			},
		},
		{
			name:   "network state single property",
			kind:   KindNetworkState,
			signal: testsupport.PropertyChanged(modem0, NetworkRegistrationInterface, "Status", "roaming"),
			check: func(t *testing.T, ar AsyncResult) {
				info, ok := ar.Registration()
				if !ok || info.RegState != RegRoaming {
					t.Fatalf("unexpected registration %+v", ar.Payload)
				}
			},
		},
		{
			name: "network state dictionary",
			kind: KindNetworkState,
			signal: transport.Signal{
				Path: modem0, Interface: NetworkRegistrationInterface, Member: "PropertyChanged",
				Body: []any{testsupport.Props("Name", "Carrier", "CellId", uint32(8))},
			},
			check: func(t *testing.T, ar AsyncResult) {
				info, ok := ar.Registration()
				if !ok || info.OperatorName != "Carrier" || info.CellID != 8 {
					t.Fatalf("unexpected registration %+v", ar.Payload)
				}
			},
		},
		{
			name:   "cell info",
			kind:   KindCellInfo,
			signal: cellInfoSignal(modem0, 1, 2, 3, 4, 5),
			check: func(t *testing.T, ar AsyncResult) {
				cells := ar.Cells()
				if ar.Count != 3 || len(cells) != 3 || cells[2].CI != 3 || cells[0].Signal.RSSI != 11 {
					t.Fatalf("unexpected cells count=%d %+v", ar.Count, cells)
				}
			},
		},
		{
			name:   "radio state",
			kind:   KindRadioState,
			signal: testsupport.PropertyChanged(modem0, ModemInterface, "Online", true),
			check: func(t *testing.T, ar AsyncResult) {
				if ar.Count != 1 {
					t.Fatalf("online count %d, want 1", ar.Count)
				}
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := newTestContext(t)
			rec := &recorder{}
			if _, err := c.Register(0, tt.kind, rec.callback); err != nil {
				t.Fatalf("Register: %v", err)
			}
			c.handleSignal(tt.signal)
			got := rec.only(t)
			if got.Kind != tt.kind || got.Status != StatusOK || got.Slot != 0 {
				t.Fatalf("unexpected envelope %+v", got)
			}
			tt.check(t, got)

			c.handleSignal(tt.signal)
			if len(rec.results) != 2 {
				t.Fatalf("watch should persist, got %d deliveries", len(rec.results))
			}
		})
	}
}

func TestKindMismatchNotDelivered(t *testing.T) {
	c, _ := newTestContext(t)
	state, strength := &recorder{}, &recorder{}
	if _, err := c.Register(0, KindNetworkState, state.callback); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if _, err := c.Register(0, KindSignalStrength, strength.callback); err != nil {
		t.Fatalf("Register: %v", err)
	}
	c.handleSignal(testsupport.PropertyChanged(modem0, NetworkRegistrationInterface, "Strength", byte(50)))
	if len(state.results) != 0 {
		t.Fatalf("network-state watch received %d strength updates", len(state.results))
	}
	if strength.only(t).Count != 50 {
		t.Fatal("strength watch missed update")
	}
}

func TestSignalForOtherSlotIgnored(t *testing.T) {
	c, _ := newTestContext(t)
	rec := &recorder{}
	if _, err := c.Register(0, KindNitz, rec.callback); err != nil {
		t.Fatalf("Register: %v", err)
	}
	c.handleSignal(testsupport.PropertyChanged(modem1, NetworkRegistrationInterface, "NITZ", "1,2,3"))
	if len(rec.results) != 0 {
		t.Fatal("signal for another modem delivered")
	}
}

func TestMalformedSignalReportsError(t *testing.T) {
	c, _ := newTestContext(t)
	rec := &recorder{}
	if _, err := c.Register(0, KindSignalStrength, rec.callback); err != nil {
		t.Fatalf("Register: %v", err)
	}
	c.handleSignal(testsupport.PropertyChanged(modem0, NetworkRegistrationInterface, "Strength", "loud"))
	got := rec.only(t)
	if got.Status != StatusError || !errors.Is(got.Err, ErrProtocolMismatch) {
		t.Fatalf("unexpected result %+v", got)
	}
}

func TestUnregister(t *testing.T) {
	c, fake := newTestContext(t)
	rec := &recorder{}
	id, err := c.Register(0, KindSignalStrength, rec.callback)
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := c.Unregister(0); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument for id 0, got %v", err)
	}
	if err := c.Unregister(-3); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument for negative id, got %v", err)
	}
	if err := c.Unregister(id); err != nil {
		t.Fatalf("Unregister: %v", err)
	}
	if err := c.Unregister(id); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound on second unregister, got %v", err)
	}
	if len(fake.Matches()) != 0 || c.LiveHandlers() != 0 {
		t.Fatal("unregister left match or handler behind")
	}
	c.handleSignal(testsupport.PropertyChanged(modem0, NetworkRegistrationInterface, "Strength", byte(1)))
	if len(rec.results) != 0 {
		t.Fatal("removed watch still delivered")
	}
}

func TestUnregisterFromCallback(t *testing.T) {
	c, _ := newTestContext(t)
	var ids []WatchID
	calls := 0
	cb := func(*AsyncResult) {
		calls++
		for _, id := range ids {
			_ = c.Unregister(id)
		}
	}
	for i := 0; i < 2; i++ {
		id, err := c.Register(0, KindNitz, cb)
		if err != nil {
			t.Fatalf("Register: %v", err)
		}
		ids = append(ids, id)
	}
	c.handleSignal(testsupport.PropertyChanged(modem0, NetworkRegistrationInterface, "NITZ", "1"))
	if calls != 1 {
		t.Fatalf("callback ran %d times after removing sibling watch", calls)
	}
	if c.LiveHandlers() != 0 {
		t.Fatal("handlers leaked")
	}
}

func TestWatchesListing(t *testing.T) {
	c, _ := newTestContext(t)
	first, _ := c.Register(0, KindNitz, func(*AsyncResult) {})
	second, _ := c.Register(1, KindCellInfo, func(*AsyncResult) {})
	watches := c.Watches()
	if len(watches) != 2 || watches[0].ID != first || watches[1].ID != second {
		t.Fatalf("unexpected watches %+v", watches)
	}
	if watches[1].Path != modem1 || watches[1].Kind != KindCellInfo || watches[1].CorrelationID == "" {
		t.Fatalf("unexpected watch info %+v", watches[1])
	}
	snap := c.Snapshot()
	if len(snap.Slots) != 2 || !snap.Slots[0].Available || snap.LiveHandlers != 2 {
		t.Fatalf("unexpected snapshot %+v", snap)
	}
}
