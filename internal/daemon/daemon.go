package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"

	"telephony/internal/api"
	"telephony/internal/config"
	"telephony/internal/journal"
	"telephony/internal/logging"
	"telephony/internal/tapi"
	"telephony/internal/transport"
)

const (
	recorderBuffer = 256
	pruneInterval  = 6 * time.Hour
)

// ErrNotRunning is returned by operations that need the bridge loop.
var ErrNotRunning = errors.New("daemon not running")

// Daemon owns the bridge context and its supporting services.
type Daemon struct {
	cfg     *config.Config
	logger  *slog.Logger
	conn    transport.Conn
	journal *journal.Store

	lockPath string
	lock     *flock.Flock

	mu        sync.Mutex
	cancel    context.CancelFunc
	loopErr   chan error
	records   chan journal.Entry
	wg        sync.WaitGroup
	hotplug   *netlinkMonitor
	api       *apiServer
	startedAt time.Time

	// bridge is read without mu because Start calls watch while holding it.
	bridge    atomic.Pointer[tapi.Context]
	running   atomic.Bool
	delivered atomic.Int64
	dropped   atomic.Int64
	lastError atomic.Value
}

// Status represents daemon runtime information.
type Status struct {
	Running       bool
	PID           int
	StartedAt     time.Time
	LockPath      string
	JournalPath   string
	Slots         []tapi.SlotStatus
	InFlight      int
	LiveHandlers  int
	Watches       []tapi.WatchInfo
	Delivered     int64
	Dropped       int64
	JournalStats  map[string]int
	HotplugActive bool
	LastError     string
}

// New constructs a daemon over conn. store may be nil when the journal is
// disabled.
func New(cfg *config.Config, conn transport.Conn, store *journal.Store, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || conn == nil {
		return nil, errors.New("daemon requires config and bus connection")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	lockPath := cfg.DaemonLockPath()
	d := &Daemon{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "daemon"),
		conn:     conn,
		journal:  store,
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}
	return d, nil
}

// Start acquires the lock, starts the bridge loop, and registers the
// configured watches. A watch that fails to register is logged and skipped.
func (d *Daemon) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.running.Load() {
		return errors.New("daemon already running")
	}
	if err := d.cfg.EnsureDirectories(); err != nil {
		return err
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another telephony daemon instance is already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	bridge := tapi.New(d.conn, tapi.OptionsFromConfig(d.cfg, d.logger))
	d.bridge.Store(bridge)
	d.cancel = cancel
	d.loopErr = make(chan error, 1)
	d.records = make(chan journal.Entry, recorderBuffer)
	d.startedAt = time.Now()

	go func() {
		err := bridge.Run(runCtx)
		if err != nil {
			d.setLastError(err)
			logging.ErrorWithContext(d.logger, "bridge loop stopped", "bridge_loop_failed",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check that the message bus is still reachable"),
				logging.String(logging.FieldImpact, "notifications are no longer delivered"),
			)
		}
		d.loopErr <- err
	}()

	d.wg.Add(1)
	go d.recordLoop(d.records)
	if d.journal != nil && d.cfg.Journal.RetentionDays > 0 {
		d.wg.Add(1)
		go d.pruneLoop(runCtx)
	}

	d.running.Store(true)
	for i, w := range d.cfg.Watches {
		if _, err := d.watch(runCtx, w.Slot, w.Event); err != nil {
			logging.WarnWithContext(d.logger, "configured watch not registered", "watch_register_failed",
				logging.Int("index", i),
				logging.Int(logging.FieldSlot, w.Slot),
				logging.String(logging.FieldEvent, w.Event),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check the watches section and the modem path of the slot"),
				logging.String(logging.FieldImpact, "notifications of this kind are not journaled"),
			)
		}
	}

	if d.cfg.Hotplug.Enabled {
		d.hotplug = newNetlinkMonitor(d.cfg, d.logger, d.refresh)
		if err := d.hotplug.Start(runCtx); err != nil {
			d.logger.Warn("hotplug monitor unavailable", logging.Error(err))
		}
	}

	srv, err := newAPIServer(d.cfg, d, d.logger)
	if err != nil {
		d.logger.Warn("api server disabled", logging.Error(err))
	} else if err := srv.start(runCtx); err != nil {
		logging.WarnWithContext(d.logger, "api server failed to start", "api_start_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check api.bind in the config"),
			logging.String(logging.FieldImpact, "HTTP status endpoint unavailable"),
		)
	} else {
		d.api = srv
	}

	d.logger.Info("telephony daemon started",
		logging.String("lock", d.lockPath),
		logging.Int("slots", bridge.Slots()),
		logging.Int("watches", len(d.cfg.Watches)),
	)
	return nil
}

// Stop tears down the bridge loop, completing in-flight calls and removing
// every watch, then releases the lock.
func (d *Daemon) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.running.Load() {
		return
	}
	d.running.Store(false)

	if d.api != nil {
		d.api.stop(context.Background())
		d.api = nil
	}
	if d.hotplug != nil {
		d.hotplug.Stop()
		d.hotplug = nil
	}
	d.cancel()
	<-d.loopErr
	close(d.records)
	d.wg.Wait()

	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.logger.Info("telephony daemon stopped",
		logging.Int64("delivered", d.delivered.Load()),
		logging.Int64("dropped", d.dropped.Load()),
	)
}

// Close stops the daemon and releases the journal and bus connection.
func (d *Daemon) Close() error {
	d.Stop()
	var errs []error
	if d.journal != nil {
		errs = append(errs, d.journal.Close())
	}
	errs = append(errs, d.conn.Close())
	return errors.Join(errs...)
}

// Running reports whether the bridge loop is active.
func (d *Daemon) Running() bool { return d.running.Load() }

func (d *Daemon) context() (*tapi.Context, error) {
	bridge := d.bridge.Load()
	if !d.running.Load() || bridge == nil {
		return nil, ErrNotRunning
	}
	return bridge, nil
}

// Status returns the current daemon status.
func (d *Daemon) Status(ctx context.Context) (Status, error) {
	st := Status{
		Running:     d.running.Load(),
		PID:         os.Getpid(),
		LockPath:    d.lockPath,
		JournalPath: d.cfg.JournalPath(),
		Delivered:   d.delivered.Load(),
		Dropped:     d.dropped.Load(),
		LastError:   d.lastErrorText(),
	}
	d.mu.Lock()
	st.StartedAt = d.startedAt
	hotplug := d.hotplug
	d.mu.Unlock()
	st.HotplugActive = hotplug.Running()
	if d.journal != nil {
		stats, err := d.journal.Stats(ctx)
		if err != nil {
			return st, err
		}
		st.JournalStats = stats
	}
	bridge, err := d.context()
	if err != nil {
		return st, nil
	}
	var snap tapi.Snapshot
	if err := bridge.Exec(ctx, func(c *tapi.Context) error {
		snap = c.Snapshot()
		return nil
	}); err != nil {
		return st, err
	}
	st.Slots = snap.Slots
	st.InFlight = snap.InFlight
	st.LiveHandlers = snap.LiveHandlers
	st.Watches = snap.Watches
	return st, nil
}

// Events returns journaled entries after afterID.
func (d *Daemon) Events(ctx context.Context, afterID int64, limit int) ([]journal.Entry, error) {
	if d.journal == nil {
		return nil, errors.New("journal disabled")
	}
	return d.journal.Tail(ctx, afterID, limit)
}

// Watch registers a journaled watch for event (a kind name or id) on slot.
func (d *Daemon) Watch(ctx context.Context, slot int, event string) (tapi.WatchInfo, error) {
	return d.watch(ctx, slot, event)
}

func (d *Daemon) watch(ctx context.Context, slot int, event string) (tapi.WatchInfo, error) {
	bridge, err := d.context()
	if err != nil {
		return tapi.WatchInfo{}, err
	}
	kind, err := tapi.ParseEventKind(event)
	if err != nil {
		return tapi.WatchInfo{}, err
	}
	var info tapi.WatchInfo
	err = bridge.Exec(ctx, func(c *tapi.Context) error {
		id, err := c.Register(slot, kind, d.record)
		if err != nil {
			return err
		}
		for _, w := range c.Watches() {
			if w.ID == id {
				info = w
			}
		}
		return nil
	})
	return info, err
}

// Unwatch removes a watch by id.
func (d *Daemon) Unwatch(ctx context.Context, id tapi.WatchID) error {
	bridge, err := d.context()
	if err != nil {
		return err
	}
	return bridge.Exec(ctx, func(c *tapi.Context) error { return c.Unregister(id) })
}

// Refresh re-resolves the slot channel table and re-queries the registration
// of every slot with a modem. Results are journaled.
func (d *Daemon) Refresh(ctx context.Context) error {
	return d.refresh(ctx)
}

func (d *Daemon) refresh(ctx context.Context) error {
	bridge, err := d.context()
	if err != nil {
		return err
	}
	return bridge.Exec(ctx, func(c *tapi.Context) error {
		c.RefreshSlots(d.cfg.ModemPaths())
		var errs []error
		for slot := 0; slot < c.Slots(); slot++ {
			if c.ModemPath(slot) == "" {
				continue
			}
			if err := c.RegistrationInfo(slot, d.record); err != nil {
				errs = append(errs, fmt.Errorf("slot %d: %w", slot, err))
			}
		}
		return errors.Join(errs...)
	})
}

// record runs on the bridge loop for every delivery. It flattens the result
// before the payload is released and hands it to the recorder without
// blocking the loop.
func (d *Daemon) record(ar *tapi.AsyncResult) {
	d.delivered.Add(1)
	entry := entryFromResult(ar, time.Now())
	if ar.Err != nil {
		d.setLastError(ar.Err)
	}
	d.logger.Debug("result delivered",
		logging.Int(logging.FieldSlot, ar.Slot),
		logging.String(logging.FieldEvent, entry.KindName),
		logging.String("status", entry.Status),
		logging.Int("count", ar.Count),
		logging.String(logging.FieldCorrelationID, ar.CorrelationID),
	)
	select {
	case d.records <- entry:
	default:
		d.dropped.Add(1)
	}
}

func (d *Daemon) recordLoop(records <-chan journal.Entry) {
	defer d.wg.Done()
	for entry := range records {
		if d.journal == nil {
			continue
		}
		if _, err := d.journal.Record(context.Background(), entry); err != nil {
			d.dropped.Add(1)
			logging.WarnWithContext(d.logger, "journal write failed", "journal_write_failed",
				logging.Error(err),
				logging.String(logging.FieldEvent, entry.KindName),
				logging.String(logging.FieldErrorHint, "check free space and permissions of the state directory"),
				logging.String(logging.FieldImpact, "event missing from history"),
			)
		}
	}
}

func (d *Daemon) pruneLoop(ctx context.Context) {
	defer d.wg.Done()
	ticker := time.NewTicker(pruneInterval)
	defer ticker.Stop()
	for {
		d.prune(ctx)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (d *Daemon) prune(ctx context.Context) {
	cutoff := time.Now().AddDate(0, 0, -d.cfg.Journal.RetentionDays)
	removed, err := d.journal.Prune(ctx, cutoff)
	if err != nil {
		if ctx.Err() == nil {
			d.logger.Warn("journal prune failed", logging.Error(err))
		}
		return
	}
	if removed > 0 {
		d.logger.Info("journal pruned", logging.Int64("removed", removed), logging.Int("retention_days", d.cfg.Journal.RetentionDays))
	}
}

func (d *Daemon) setLastError(err error) {
	d.lastError.Store(err.Error())
}

func (d *Daemon) lastErrorText() string {
	if v, ok := d.lastError.Load().(string); ok {
		return v
	}
	return ""
}

// entryFromResult flattens ar into a journal entry. It must run inside the
// callback that received ar.
func entryFromResult(ar *tapi.AsyncResult, now time.Time) journal.Entry {
	entry := journal.Entry{
		RecordedAt:    now,
		Slot:          ar.Slot,
		Kind:          int(ar.Kind),
		KindName:      ar.Kind.String(),
		Status:        ar.Status.String(),
		Count:         ar.Count,
		CorrelationID: ar.CorrelationID,
	}
	if ar.Err != nil {
		entry.Error = ar.Err.Error()
	}
	if ar.Payload != nil {
		if data, err := json.Marshal(ar.Payload); err == nil {
			entry.Payload = data
		}
	}
	return entry
}

// Payload converts the status for API consumers.
func (st Status) Payload() api.DaemonStatus {
	return api.DaemonStatus{
		Running:       st.Running,
		PID:           st.PID,
		StartedAt:     api.FormatTime(st.StartedAt),
		LockFilePath:  st.LockPath,
		JournalPath:   st.JournalPath,
		Slots:         api.FromSlots(st.Slots),
		InFlight:      st.InFlight,
		LiveHandlers:  st.LiveHandlers,
		Watches:       api.FromWatches(st.Watches),
		Delivered:     st.Delivered,
		Dropped:       st.Dropped,
		JournalStats:  st.JournalStats,
		HotplugActive: st.HotplugActive,
		LastError:     st.LastError,
	}
}

// StatusPayload returns the status in its API form.
func (d *Daemon) StatusPayload(ctx context.Context) (api.DaemonStatus, error) {
	st, err := d.Status(ctx)
	if err != nil {
		return api.DaemonStatus{}, err
	}
	return st.Payload(), nil
}

// EventsPayload returns a journal page in its API form.
func (d *Daemon) EventsPayload(ctx context.Context, after int64, limit int) (api.EventsResponse, error) {
	entries, err := d.Events(ctx, after, limit)
	if err != nil {
		return api.EventsResponse{}, err
	}
	return api.FromEntries(entries, after), nil
}

// Query runs the named operation on slot through the bridge loop, waits for
// its result, and journals it.
func (d *Daemon) Query(ctx context.Context, slot int, op, operatorID string) (journal.Entry, error) {
	bridge, err := d.context()
	if err != nil {
		return journal.Entry{}, err
	}
	kind, err := tapi.ParseOperationKind(op)
	if err != nil {
		return journal.Entry{}, err
	}
	ctx, cancel := context.WithTimeout(ctx, d.cfg.CallTimeout())
	defer cancel()
	ar, err := bridge.Await(ctx, func(c *tapi.Context, cb tapi.Callback) error {
		return c.StartOperation(kind, slot, operatorID, func(ar *tapi.AsyncResult) {
			d.record(ar)
			cb(ar)
		})
	})
	if err != nil {
		return journal.Entry{}, err
	}
	// A failed operation is still a result; callers judge entry.Status.
	return entryFromResult(&ar, time.Now()), nil
}
