package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"telephony/internal/config"
)

func TestLoadDefaultConfigExpandsPaths(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Setenv("TELEPHONY_BUS_ADDRESS", "")
	t.Chdir(t.TempDir())

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	wantState := filepath.Join(tempHome, ".local", "share", "telephony")
	if cfg.Paths.StateDir != wantState {
		t.Fatalf("unexpected state dir: got %q want %q", cfg.Paths.StateDir, wantState)
	}
	if cfg.Paths.SocketPath != filepath.Join(wantState, "telephony.sock") {
		t.Fatalf("unexpected socket path: %q", cfg.Paths.SocketPath)
	}
	if cfg.DaemonLockPath() != filepath.Join(wantState, "telephony.lock") {
		t.Fatalf("unexpected lock path: %q", cfg.DaemonLockPath())
	}
	if cfg.Bus.Type != config.BusSystem {
		t.Fatalf("expected system bus by default, got %q", cfg.Bus.Type)
	}
	if cfg.Bus.Service != "org.ofono" {
		t.Fatalf("unexpected service: %q", cfg.Bus.Service)
	}
	if got := cfg.ModemPaths(); len(got) != 1 || got[0] != "/ril_0" {
		t.Fatalf("unexpected modem paths: %v", got)
	}
	if cfg.Collector.CellListCapacity != 10 || cfg.Collector.OperatorListCapacity != 20 {
		t.Fatalf("unexpected collector capacities: %+v", cfg.Collector)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories failed: %v", err)
	}
	for _, dir := range []string{cfg.Paths.StateDir, cfg.Paths.LogDir} {
		info, err := os.Stat(dir)
		if err != nil {
			t.Fatalf("expected directory %q to exist: %v", dir, err)
		}
		if !info.IsDir() {
			t.Fatalf("expected %q to be directory", dir)
		}
	}
}

func TestLoadCustomPath(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "telephony.toml")

	type slot struct {
		ModemPath string `toml:"modem_path"`
	}
	type payload struct {
		Bus struct {
			Type    string `toml:"type"`
			Address string `toml:"address"`
		} `toml:"bus"`
		Slots     []slot `toml:"slots"`
		Collector struct {
			CellListCapacity int `toml:"cell_list_capacity"`
		} `toml:"collector"`
		Paths struct {
			StateDir string `toml:"state_dir"`
		} `toml:"paths"`
	}
	custom := payload{}
	custom.Bus.Type = "address"
	custom.Bus.Address = "unix:path=/tmp/test-bus"
	custom.Slots = []slot{{ModemPath: "/ril_0"}, {ModemPath: "/ril_1"}}
	custom.Collector.CellListCapacity = -1
	custom.Paths.StateDir = filepath.Join(tempDir, "state")

	data, err := toml.Marshal(custom)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists || resolved != configPath {
		t.Fatalf("expected %q to be loaded, got %q (exists=%v)", configPath, resolved, exists)
	}
	if cfg.Bus.Type != config.BusAddress || cfg.Bus.Address != "unix:path=/tmp/test-bus" {
		t.Fatalf("unexpected bus: %+v", cfg.Bus)
	}
	if got := cfg.ModemPaths(); len(got) != 2 || got[1] != "/ril_1" {
		t.Fatalf("expected configured slots to replace default, got %v", got)
	}
	if cfg.Collector.CellListCapacity != -1 {
		t.Fatalf("expected unbounded cell capacity to be preserved, got %d", cfg.Collector.CellListCapacity)
	}
	if cfg.Collector.OperatorListCapacity != 20 {
		t.Fatalf("expected default operator capacity, got %d", cfg.Collector.OperatorListCapacity)
	}
	if cfg.JournalPath() != filepath.Join(tempDir, "state", "journal.db") {
		t.Fatalf("unexpected journal path: %q", cfg.JournalPath())
	}
}

func TestBusAddressFromEnvironment(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("TELEPHONY_BUS_ADDRESS", "unix:path=/run/test")

	cfg, _, _, err := config.Load(filepath.Join(t.TempDir(), "missing.toml"))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Bus.Address != "unix:path=/run/test" {
		t.Fatalf("expected env address, got %q", cfg.Bus.Address)
	}
	// An explicit default type survives; only an empty type switches to address.
	if cfg.Bus.Type != config.BusSystem {
		t.Fatalf("expected default type to be kept, got %q", cfg.Bus.Type)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*config.Config)
		wantErr string
	}{
		{
			name:    "address bus without address",
			mutate:  func(c *config.Config) { c.Bus.Type = config.BusAddress; c.Bus.Address = "" },
			wantErr: "bus.address",
		},
		{
			name:    "unknown bus type",
			mutate:  func(c *config.Config) { c.Bus.Type = "tcp" },
			wantErr: "bus.type",
		},
		{
			name: "too many slots",
			mutate: func(c *config.Config) {
				c.Slots = make([]config.Slot, config.MaxSlots+1)
			},
			wantErr: "at most",
		},
		{
			name:    "relative modem path",
			mutate:  func(c *config.Config) { c.Slots = []config.Slot{{ModemPath: "ril_0"}} },
			wantErr: "absolute object path",
		},
		{
			name: "duplicate modem path",
			mutate: func(c *config.Config) {
				c.Slots = []config.Slot{{ModemPath: "/ril_0"}, {ModemPath: "/ril_0"}}
			},
			wantErr: "duplicates",
		},
		{
			name:    "zero in-flight budget",
			mutate:  func(c *config.Config) { c.Dispatch.MaxInFlight = 0 },
			wantErr: "dispatch.max_in_flight",
		},
		{
			name:    "watch slot out of range",
			mutate:  func(c *config.Config) { c.Watches = []config.Watch{{Slot: 3, Event: "nitz"}} },
			wantErr: "watches[0].slot",
		},
		{
			name:    "watch without event",
			mutate:  func(c *config.Config) { c.Watches = []config.Watch{{Slot: 0}} },
			wantErr: "watches[0].event",
		},
		{
			name:    "api bind without port",
			mutate:  func(c *config.Config) { c.API.Bind = "localhost" },
			wantErr: "api.bind",
		},
		{
			name:    "bad log format",
			mutate:  func(c *config.Config) { c.Logging.Format = "xml" },
			wantErr: "logging.format",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatalf("expected error containing %q", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("error %q does not mention %q", err, tt.wantErr)
			}
		})
	}

	cfg := config.Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
}

func TestCreateSampleLoads(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("TELEPHONY_BUS_ADDRESS", "")
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample: %v", err)
	}
	cfg, _, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("sample config should load: %v", err)
	}
	if !exists {
		t.Fatal("expected sample to exist")
	}
	if len(cfg.Watches) != 2 || cfg.Watches[0].Event != "network-state" {
		t.Fatalf("unexpected sample watches: %+v", cfg.Watches)
	}
}
