package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

func (c *Config) normalize() error {
	c.normalizeBus()
	c.normalizeSlots()
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeHotplug()
	c.normalizeWatches()
	c.normalizeAPI()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizeBus() {
	c.Bus.Type = strings.ToLower(strings.TrimSpace(c.Bus.Type))
	c.Bus.Address = strings.TrimSpace(c.Bus.Address)
	if c.Bus.Address == "" {
		if value, ok := os.LookupEnv("TELEPHONY_BUS_ADDRESS"); ok {
			c.Bus.Address = strings.TrimSpace(value)
		}
	}
	if c.Bus.Type == "" {
		if c.Bus.Address != "" {
			c.Bus.Type = BusAddress
		} else {
			c.Bus.Type = defaultBusType
		}
	}
	c.Bus.Service = strings.TrimSpace(c.Bus.Service)
	if c.Bus.Service == "" {
		c.Bus.Service = defaultService
	}
}

func (c *Config) normalizeSlots() {
	if len(c.Slots) == 0 {
		c.Slots = []Slot{{ModemPath: defaultModemPath}}
	}
	for i := range c.Slots {
		c.Slots[i].ModemPath = strings.TrimSpace(c.Slots[i].ModemPath)
	}
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		c.Paths.StateDir = defaultStateDir
	}
	if c.Paths.StateDir, err = expandPath(c.Paths.StateDir); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = filepath.Join(c.Paths.StateDir, "logs")
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.SocketPath) == "" {
		c.Paths.SocketPath = filepath.Join(c.Paths.StateDir, defaultSocketName)
	}
	if c.Paths.SocketPath, err = expandPath(c.Paths.SocketPath); err != nil {
		return fmt.Errorf("paths.socket_path: %w", err)
	}
	return nil
}

func (c *Config) normalizeHotplug() {
	subsystems := c.Hotplug.Subsystems[:0]
	for _, s := range c.Hotplug.Subsystems {
		if trimmed := strings.ToLower(strings.TrimSpace(s)); trimmed != "" {
			subsystems = append(subsystems, trimmed)
		}
	}
	c.Hotplug.Subsystems = subsystems
	if len(c.Hotplug.Subsystems) == 0 {
		c.Hotplug.Subsystems = append([]string(nil), defaultHotplugSubsystems...)
	}
}

func (c *Config) normalizeWatches() {
	for i := range c.Watches {
		c.Watches[i].Event = strings.ToLower(strings.TrimSpace(c.Watches[i].Event))
	}
}

func (c *Config) normalizeAPI() {
	c.API.Bind = strings.TrimSpace(c.API.Bind)
	c.API.Token = strings.TrimSpace(c.API.Token)
	if c.API.Token == "" {
		if value, ok := os.LookupEnv("TELEPHONY_API_TOKEN"); ok {
			c.API.Token = strings.TrimSpace(value)
		}
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
