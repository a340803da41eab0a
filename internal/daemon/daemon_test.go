package daemon_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"telephony/internal/daemon"
	"telephony/internal/journal"
	"telephony/internal/tapi"
	"telephony/internal/testsupport"
	"telephony/internal/transport"
)

const modem0 = "/ril_0"

func newDaemon(t *testing.T, opts ...testsupport.ConfigOption) (*daemon.Daemon, *testsupport.FakeConn) {
	t.Helper()
	opts = append([]testsupport.ConfigOption{testsupport.WithSlots(modem0)}, opts...)
	cfg := testsupport.NewConfig(t, opts...)
	store := testsupport.MustOpenJournal(t, cfg)
	conn := testsupport.NewFakeConn()
	d, err := daemon.New(cfg, conn, store, nil)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(d.Stop)
	return d, conn
}

func waitForEvents(t *testing.T, d *daemon.Daemon, want int) []journal.Entry {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for {
		entries, err := d.Events(context.Background(), 0, 50)
		if err != nil {
			t.Fatalf("Events: %v", err)
		}
		if len(entries) >= want {
			return entries
		}
		if time.Now().After(deadline) {
			t.Fatalf("expected %d journaled events, got %d", want, len(entries))
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestDaemonStartTwiceFails(t *testing.T) {
	d, _ := newDaemon(t)
	if err := d.Start(context.Background()); err == nil {
		t.Fatal("expected second Start to fail")
	}
}

func TestDaemonStatusListsConfiguredWatches(t *testing.T) {
	d, conn := newDaemon(t, testsupport.WithWatch(0, "signal-strength"), testsupport.WithWatch(0, "nitz"))

	st, err := d.Status(context.Background())
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if !st.Running {
		t.Fatal("expected running status")
	}
	if len(st.Watches) != 2 {
		t.Fatalf("expected 2 watches, got %+v", st.Watches)
	}
	if len(conn.Matches()) != 2 {
		t.Fatalf("expected 2 bus matches, got %d", len(conn.Matches()))
	}
	if len(st.Slots) != 1 || st.Slots[0].ModemPath != modem0 {
		t.Fatalf("unexpected slots %+v", st.Slots)
	}

	payload := st.Payload()
	if len(payload.Watches) != 2 || payload.Watches[0].Event == "" {
		t.Fatalf("unexpected payload watches %+v", payload.Watches)
	}
}

func TestDaemonJournalsSignals(t *testing.T) {
	d, conn := newDaemon(t, testsupport.WithWatch(0, "signal-strength"))

	conn.Emit(testsupport.PropertyChanged(modem0, tapi.NetworkRegistrationInterface, "Strength", byte(64)))

	entries := waitForEvents(t, d, 1)
	got := entries[0]
	if got.KindName != "signal-strength" || got.Status != "ok" || got.Slot != 0 {
		t.Fatalf("unexpected entry %+v", got)
	}
	if got.CorrelationID == "" {
		t.Fatal("expected correlation id on journaled entry")
	}
	if got.Count != 64 {
		t.Fatalf("expected strength 64 in count, got %d", got.Count)
	}
}

func TestDaemonWatchAndUnwatch(t *testing.T) {
	d, conn := newDaemon(t)
	ctx := context.Background()

	if _, err := d.Watch(ctx, 0, "no-such-event"); !errors.Is(err, tapi.ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}

	info, err := d.Watch(ctx, 0, "nitz")
	if err != nil {
		t.Fatalf("Watch: %v", err)
	}
	if info.ID <= 0 || info.Kind != tapi.KindNitz || info.Path != modem0 {
		t.Fatalf("unexpected watch %+v", info)
	}
	if len(conn.Matches()) != 1 {
		t.Fatalf("expected 1 match, got %d", len(conn.Matches()))
	}

	if err := d.Unwatch(ctx, info.ID); err != nil {
		t.Fatalf("Unwatch: %v", err)
	}
	if len(conn.Matches()) != 0 {
		t.Fatalf("expected match removed, got %d", len(conn.Matches()))
	}
	if err := d.Unwatch(ctx, info.ID); !errors.Is(err, tapi.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestDaemonRefreshQueriesRegistration(t *testing.T) {
	d, conn := newDaemon(t)
	conn.SetResponder(func(call testsupport.FakeCall) *transport.Reply {
		return &transport.Reply{Body: []any{testsupport.Props("Name", "Carrier", "Status", "registered")}}
	})

	if err := d.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	call, ok := conn.LastCall()
	if !ok || call.Path != modem0 || call.Interface != tapi.NetworkRegistrationInterface {
		t.Fatalf("unexpected call %+v", call)
	}

	entries := waitForEvents(t, d, 1)
	if entries[0].KindName != "registration-info" {
		t.Fatalf("unexpected entry %+v", entries[0])
	}
}

func TestDaemonStopReportsNotRunning(t *testing.T) {
	d, conn := newDaemon(t, testsupport.WithWatch(0, "nitz"))
	d.Stop()

	if d.Running() {
		t.Fatal("expected daemon stopped")
	}
	st, err := d.Status(context.Background())
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if st.Running || len(st.Watches) != 0 {
		t.Fatalf("unexpected status after stop %+v", st)
	}
	if len(conn.Matches()) != 0 {
		t.Fatalf("expected matches removed on stop, got %d", len(conn.Matches()))
	}
	if _, err := d.Watch(context.Background(), 0, "nitz"); !errors.Is(err, daemon.ErrNotRunning) {
		t.Fatalf("expected ErrNotRunning, got %v", err)
	}

	// Restart reacquires the lock.
	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("restart: %v", err)
	}
}

func TestDaemonQuery(t *testing.T) {
	d, conn := newDaemon(t)
	conn.SetResponder(func(call testsupport.FakeCall) *transport.Reply {
		switch call.Method {
		case "GetProperties":
			return &transport.Reply{Body: []any{testsupport.Props("Name", "Carrier", "Status", "roaming")}}
		case "Register":
			return &transport.Reply{}
		case "Scan":
			return &transport.Reply{Fault: &transport.Fault{Name: "org.ofono.Error.Failed", Message: "Operation failed"}}
		}
		return nil
	})
	ctx := context.Background()

	entry, err := d.Query(ctx, 0, "registration-info", "")
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if entry.KindName != "registration-info" || entry.Status != "ok" || len(entry.Payload) == 0 {
		t.Fatalf("unexpected entry %+v", entry)
	}

	if _, err := d.Query(ctx, 0, "select-manual", ""); !errors.Is(err, tapi.ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument for missing operator, got %v", err)
	}
	if _, err := d.Query(ctx, 0, "nitz", ""); !errors.Is(err, tapi.ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument for event kind, got %v", err)
	}

	entry, err = d.Query(ctx, 0, "select-manual", "/ril_0/operator/20801")
	if err != nil {
		t.Fatalf("Query select-manual: %v", err)
	}
	call, _ := conn.LastCall()
	if call.Path != "/ril_0/operator/20801" || call.Interface != tapi.NetworkOperatorInterface {
		t.Fatalf("unexpected call %+v", call)
	}
	if entry.KindName != "select-manual" {
		t.Fatalf("unexpected entry %+v", entry)
	}

	entry, err = d.Query(ctx, 0, "scan", "")
	if err != nil {
		t.Fatalf("failed scan returned an error instead of an entry: %v", err)
	}
	if entry.KindName != "scan" || entry.Status != "error" || entry.Error == "" {
		t.Fatalf("unexpected failed scan entry %+v", entry)
	}

	waitForEvents(t, d, 3)
}

func TestDaemonStatusDuringRestart(t *testing.T) {
	d, _ := newDaemon(t)
	d.Stop()

	ctx := context.Background()
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 50; i++ {
			if _, err := d.Status(ctx); err != nil {
				t.Errorf("Status: %v", err)
				return
			}
			_, _ = d.Query(ctx, 0, "nitz", "")
		}
	}()
	if err := d.Start(ctx); err != nil {
		t.Fatalf("restart: %v", err)
	}
	<-done

	st, err := d.Status(ctx)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if !st.Running || st.StartedAt.IsZero() {
		t.Fatalf("unexpected status after restart %+v", st)
	}
}
