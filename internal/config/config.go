package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Bus type values accepted by bus.type.
const (
	BusSystem  = "system"
	BusSession = "session"
	BusAddress = "address"
)

// Bus selects the message bus connection and the remote service name.
type Bus struct {
	Type    string `toml:"type"`
	Address string `toml:"address"`
	Service string `toml:"service"`
}

// Slot maps a modem slot index (its position in the list) to the modem
// object path exported by the service.
type Slot struct {
	ModemPath string `toml:"modem_path"`
}

// Dispatch bounds the outbound call dispatcher.
type Dispatch struct {
	MaxInFlight        int `toml:"max_in_flight"`
	QueueDepth         int `toml:"queue_depth"`
	CallTimeoutSeconds int `toml:"call_timeout_seconds"`
}

// Collector holds list capacities for multi-record replies. A capacity of
// zero or less means unbounded.
type Collector struct {
	CellListCapacity     int `toml:"cell_list_capacity"`
	OperatorListCapacity int `toml:"operator_list_capacity"`
}

// Paths contains on-disk locations used by the daemon and CLI.
type Paths struct {
	StateDir   string `toml:"state_dir"`
	LogDir     string `toml:"log_dir"`
	SocketPath string `toml:"socket_path"`
}

// Journal controls the persisted event journal.
type Journal struct {
	Enabled       bool `toml:"enabled"`
	RetentionDays int  `toml:"retention_days"`
}

// Hotplug controls the udev monitor that refreshes slot channels.
type Hotplug struct {
	Enabled    bool     `toml:"enabled"`
	Subsystems []string `toml:"subsystems"`
}

// Watch is a notification subscription the daemon registers at startup.
// Event accepts a kind name (network-state, cellinfo, signal-strength, nitz,
// radio-state) or its numeric id.
type Watch struct {
	Slot  int    `toml:"slot"`
	Event string `toml:"event"`
}

// API configures the optional read-only HTTP status endpoint. An empty Bind
// disables it.
type API struct {
	Bind  string `toml:"bind"`
	Token string `toml:"token"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for the telephony bridge.
//
// Configuration sections by subsystem:
//   - Bus: message bus selection and remote service name
//   - Slots: modem object path per slot
//   - Dispatch: in-flight handler budget, task queue depth, call timeout
//   - Collector: list capacities for cell and operator replies
//   - Paths: state, log, and socket locations
//   - Journal: persisted event history
//   - Hotplug: modem add/remove monitoring
//   - Watches: subscriptions registered by the daemon
//   - API: optional HTTP status endpoint
//   - Logging: log format and level
type Config struct {
	Bus       Bus       `toml:"bus"`
	Slots     []Slot    `toml:"slots"`
	Dispatch  Dispatch  `toml:"dispatch"`
	Collector Collector `toml:"collector"`
	Paths     Paths     `toml:"paths"`
	Journal   Journal   `toml:"journal"`
	Hotplug   Hotplug   `toml:"hotplug"`
	Watches   []Watch   `toml:"watches"`
	API       API       `toml:"api"`
	Logging   Logging   `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/telephony/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		// Explicit [[slots]] replace the default slot rather than append to it.
		cfg.Slots = nil
		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("telephony.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for daemon operation.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.StateDir, c.Paths.LogDir, filepath.Dir(c.Paths.SocketPath)} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// DaemonLockPath returns the single-instance lock file location.
func (c *Config) DaemonLockPath() string {
	return filepath.Join(c.Paths.StateDir, defaultLockName)
}

// JournalPath returns the SQLite event journal location.
func (c *Config) JournalPath() string {
	return filepath.Join(c.Paths.StateDir, defaultJournalName)
}

// CallTimeout returns the per-call deadline applied by synchronous callers.
func (c *Config) CallTimeout() time.Duration {
	return time.Duration(c.Dispatch.CallTimeoutSeconds) * time.Second
}

// ModemPaths returns the modem object path of every configured slot, indexed
// by slot id.
func (c *Config) ModemPaths() []string {
	paths := make([]string, len(c.Slots))
	for i, slot := range c.Slots {
		paths[i] = slot.ModemPath
	}
	return paths
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
