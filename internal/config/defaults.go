package config

const (
	defaultBusType              = BusSystem
	defaultService              = "org.ofono"
	defaultModemPath            = "/ril_0"
	defaultStateDir             = "~/.local/share/telephony"
	defaultLogDir               = "~/.local/share/telephony/logs"
	defaultSocketName           = "telephony.sock"
	defaultLockName             = "telephony.lock"
	defaultJournalName          = "journal.db"
	defaultLogFormat            = "console"
	defaultLogLevel             = "info"
	defaultMaxInFlight          = 64
	defaultQueueDepth           = 32
	defaultCallTimeoutSeconds   = 30
	defaultCellListCapacity     = 10
	defaultOperatorListCapacity = 20
	defaultJournalRetentionDays = 14

	// MaxSlots bounds the number of modem slots a single bridge serves.
	MaxSlots = 10
)

var defaultHotplugSubsystems = []string{"tty", "usb", "net"}

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Bus: Bus{
			Type:    defaultBusType,
			Service: defaultService,
		},
		Slots: []Slot{{ModemPath: defaultModemPath}},
		Dispatch: Dispatch{
			MaxInFlight:        defaultMaxInFlight,
			QueueDepth:         defaultQueueDepth,
			CallTimeoutSeconds: defaultCallTimeoutSeconds,
		},
		Collector: Collector{
			CellListCapacity:     defaultCellListCapacity,
			OperatorListCapacity: defaultOperatorListCapacity,
		},
		Paths: Paths{
			StateDir: defaultStateDir,
			LogDir:   defaultLogDir,
		},
		Journal: Journal{
			Enabled:       true,
			RetentionDays: defaultJournalRetentionDays,
		},
		Hotplug: Hotplug{
			Enabled:    true,
			Subsystems: append([]string(nil), defaultHotplugSubsystems...),
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
