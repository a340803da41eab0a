package daemon

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/pilebones/go-udev/netlink"

	"telephony/internal/config"
	"telephony/internal/logging"
)

// refreshDebounce coalesces the burst of uevents a single modem produces when
// it appears or disappears.
const refreshDebounce = 500 * time.Millisecond

// netlinkMonitor listens for udev netlink events on the configured subsystems
// and asks the daemon to re-resolve slot channels when a device comes or goes.
type netlinkMonitor struct {
	logger     *slog.Logger
	refresh    func(ctx context.Context) error
	subsystems []string
	debounce   time.Duration

	mu      sync.Mutex
	conn    *netlink.UEventConn
	quit    chan struct{}
	running bool
	pending *time.Timer
}

// newNetlinkMonitor creates a monitor for modem add/remove events.
func newNetlinkMonitor(cfg *config.Config, logger *slog.Logger, refresh func(ctx context.Context) error) *netlinkMonitor {
	if cfg == nil || len(cfg.Hotplug.Subsystems) == 0 {
		return nil
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &netlinkMonitor{
		logger:     logging.NewComponentLogger(logger, "netlink-monitor"),
		refresh:    refresh,
		subsystems: append([]string(nil), cfg.Hotplug.Subsystems...),
		debounce:   refreshDebounce,
	}
}

// Start begins listening for udev netlink events. Failing to open the socket
// is not fatal; slots keep the channels resolved at startup.
func (m *netlinkMonitor) Start(ctx context.Context) error {
	if m == nil {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return nil
	}

	conn := new(netlink.UEventConn)
	if err := conn.Connect(netlink.UdevEvent); err != nil {
		m.logger.Warn("failed to connect to netlink socket; modem hotplug will not refresh slots",
			logging.Error(err),
			logging.String(logging.FieldEventType, "netlink_connect_failed"),
			logging.String(logging.FieldErrorHint, "ensure the daemon has permission to access netlink sockets"),
			logging.String(logging.FieldImpact, "slots are resolved only at startup"),
		)
		return nil
	}

	m.conn = conn
	m.quit = make(chan struct{})
	m.running = true

	quit := m.quit
	go m.monitorLoop(ctx, quit)

	m.logger.Info("netlink monitor started",
		logging.String(logging.FieldEventType, "netlink_monitor_started"),
		logging.String("subsystems", strings.Join(m.subsystems, ",")),
	)
	return nil
}

// Stop shuts down the netlink monitor.
func (m *netlinkMonitor) Stop() {
	if m == nil {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running {
		return
	}
	if m.quit != nil {
		close(m.quit)
		m.quit = nil
	}
	if m.conn != nil {
		_ = m.conn.Close()
		m.conn = nil
	}
	if m.pending != nil {
		m.pending.Stop()
		m.pending = nil
	}
	m.running = false

	m.logger.Info("netlink monitor stopped",
		logging.String(logging.FieldEventType, "netlink_monitor_stopped"),
	)
}

// Running reports whether the netlink monitor is active.
func (m *netlinkMonitor) Running() bool {
	if m == nil {
		return false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

func (m *netlinkMonitor) monitorLoop(ctx context.Context, quit <-chan struct{}) {
	queue := make(chan netlink.UEvent)
	errs := make(chan error)
	matcher := m.buildMatcher()

	m.mu.Lock()
	conn := m.conn
	m.mu.Unlock()
	if conn == nil {
		return
	}

	monitorQuit := conn.Monitor(queue, errs, matcher)
	for {
		select {
		case <-ctx.Done():
			close(monitorQuit)
			return
		case <-quit:
			close(monitorQuit)
			return
		case uevent := <-queue:
			m.handleEvent(ctx, uevent)
		case err := <-errs:
			m.logger.Warn("netlink monitor error",
				logging.Error(err),
				logging.String(logging.FieldEventType, "netlink_monitor_error"),
				logging.String(logging.FieldErrorHint, "check kernel netlink subsystem"),
				logging.String(logging.FieldImpact, "modem hotplug may be missed"),
			)
		}
	}
}

// buildMatcher matches ACTION=add|remove on each configured subsystem.
func (m *netlinkMonitor) buildMatcher() netlink.Matcher {
	action := "add|remove"
	rules := &netlink.RuleDefinitions{}
	for _, subsystem := range m.subsystems {
		rules.AddRule(netlink.RuleDefinition{
			Action: &action,
			Env:    map[string]string{"SUBSYSTEM": subsystem},
		})
	}
	return rules
}

// handleEvent schedules a debounced refresh for a matched uevent.
func (m *netlinkMonitor) handleEvent(ctx context.Context, uevent netlink.UEvent) {
	subsystem := uevent.Env["SUBSYSTEM"]
	if !m.watches(subsystem) {
		m.logger.Debug("ignoring event for unwatched subsystem",
			logging.String("subsystem", subsystem),
			logging.String("kobj", uevent.KObj),
		)
		return
	}
	m.logger.Info("modem hotplug event",
		logging.String(logging.FieldEventType, "netlink_hotplug"),
		logging.String("action", string(uevent.Action)),
		logging.String("subsystem", subsystem),
		logging.String("device", deviceName(uevent)),
	)
	m.schedule(ctx)
}

func (m *netlinkMonitor) watches(subsystem string) bool {
	for _, s := range m.subsystems {
		if s == subsystem {
			return true
		}
	}
	return false
}

func (m *netlinkMonitor) schedule(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.pending != nil {
		m.pending.Stop()
	}
	m.pending = time.AfterFunc(m.debounce, func() { m.runRefresh(ctx) })
}

func (m *netlinkMonitor) runRefresh(ctx context.Context) {
	if m.refresh == nil || ctx.Err() != nil {
		return
	}
	if err := m.refresh(ctx); err != nil {
		logging.WarnWithContext(m.logger, "slot refresh failed", "hotplug_refresh_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check that the modem service exported the new modem"),
			logging.String(logging.FieldImpact, "some slots may report i/o errors until the next refresh"),
		)
	}
}

// deviceName gets the device node from a uevent.
func deviceName(uevent netlink.UEvent) string {
	if devname := uevent.Env["DEVNAME"]; devname != "" {
		return devname
	}
	devpath := uevent.Env["DEVPATH"]
	if devpath == "" {
		return ""
	}
	parts := strings.Split(devpath, "/")
	return "/dev/" + parts[len(parts)-1]
}
