package config

import (
	"errors"
	"fmt"
	"net"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateBus(); err != nil {
		return err
	}
	if err := c.validateSlots(); err != nil {
		return err
	}
	if err := c.validateDispatch(); err != nil {
		return err
	}
	if err := c.validateJournal(); err != nil {
		return err
	}
	if err := c.validateWatches(); err != nil {
		return err
	}
	if err := c.validateAPI(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateBus() error {
	switch c.Bus.Type {
	case BusSystem, BusSession:
	case BusAddress:
		if c.Bus.Address == "" {
			return errors.New("bus.address must be set when bus.type is \"address\" (or set TELEPHONY_BUS_ADDRESS)")
		}
	default:
		return fmt.Errorf("bus.type: unsupported value %q (want system, session, or address)", c.Bus.Type)
	}
	if c.Bus.Service == "" {
		return errors.New("bus.service must be set")
	}
	return nil
}

func (c *Config) validateSlots() error {
	if len(c.Slots) > MaxSlots {
		return fmt.Errorf("slots: at most %d slots are supported, got %d", MaxSlots, len(c.Slots))
	}
	seen := make(map[string]int, len(c.Slots))
	for i, slot := range c.Slots {
		if slot.ModemPath == "" {
			continue
		}
		if !strings.HasPrefix(slot.ModemPath, "/") {
			return fmt.Errorf("slots[%d].modem_path %q must be an absolute object path", i, slot.ModemPath)
		}
		if prev, ok := seen[slot.ModemPath]; ok {
			return fmt.Errorf("slots[%d].modem_path duplicates slots[%d]", i, prev)
		}
		seen[slot.ModemPath] = i
	}
	return nil
}

func (c *Config) validateDispatch() error {
	if err := ensurePositiveMap(map[string]int{
		"dispatch.max_in_flight":        c.Dispatch.MaxInFlight,
		"dispatch.queue_depth":          c.Dispatch.QueueDepth,
		"dispatch.call_timeout_seconds": c.Dispatch.CallTimeoutSeconds,
	}); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateJournal() error {
	if c.Journal.RetentionDays < 0 {
		return errors.New("journal.retention_days must be zero (keep forever) or positive")
	}
	return nil
}

func (c *Config) validateWatches() error {
	for i, w := range c.Watches {
		if w.Slot < 0 || w.Slot >= len(c.Slots) {
			return fmt.Errorf("watches[%d].slot %d out of range (have %d slots)", i, w.Slot, len(c.Slots))
		}
		if w.Event == "" {
			return fmt.Errorf("watches[%d].event must be set", i)
		}
	}
	return nil
}

func (c *Config) validateAPI() error {
	if c.API.Bind == "" {
		return nil
	}
	if _, _, err := net.SplitHostPort(c.API.Bind); err != nil {
		return fmt.Errorf("api.bind %q: %w", c.API.Bind, err)
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
