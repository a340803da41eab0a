package testsupport

import (
	"path/filepath"
	"testing"

	"telephony/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Bus.Type = config.BusAddress
	cfgVal.Bus.Address = "unix:path=" + filepath.Join(base, "bus.sock")
	cfgVal.Paths.StateDir = filepath.Join(base, "state")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.SocketPath = filepath.Join(base, "state", "telephony.sock")
	cfgVal.Hotplug.Enabled = false

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithSlots replaces the slot table with the given modem paths.
func WithSlots(paths ...string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Slots = make([]config.Slot, len(paths))
		for i, p := range paths {
			b.cfg.Slots[i] = config.Slot{ModemPath: p}
		}
	}
}

// WithWatch adds a startup watch.
func WithWatch(slot int, event string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Watches = append(b.cfg.Watches, config.Watch{Slot: slot, Event: event})
	}
}

// WithJournal toggles the event journal.
func WithJournal(enabled bool) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Journal.Enabled = enabled
	}
}

// WithCollectorCapacity overrides list capacities.
func WithCollectorCapacity(cells, operators int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Collector.CellListCapacity = cells
		b.cfg.Collector.OperatorListCapacity = operators
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.StateDir)
}
