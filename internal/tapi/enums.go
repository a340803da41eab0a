package tapi

// RegistrationState mirrors the service's registration status strings.
type RegistrationState int

const (
	RegUnknown       RegistrationState = -1
	RegNotRegistered RegistrationState = 0
	RegRegistered    RegistrationState = 1
	RegSearching     RegistrationState = 2
	RegDenied        RegistrationState = 3
	RegRoaming       RegistrationState = 5
)

var registrationStates = map[string]RegistrationState{
	"unregistered": RegNotRegistered,
	"registered":   RegRegistered,
	"searching":    RegSearching,
	"denied":       RegDenied,
	"unknown":      RegUnknown,
	"roaming":      RegRoaming,
}

// ParseRegistrationState maps a wire status string; unrecognized values are
// RegUnknown.
func ParseRegistrationState(s string) RegistrationState {
	if v, ok := registrationStates[s]; ok {
		return v
	}
	return RegUnknown
}

func (s RegistrationState) String() string {
	for name, v := range registrationStates {
		if v == s {
			return name
		}
	}
	return "unknown"
}

// SelectionMode is the operator selection mode.
type SelectionMode int

const (
	ModeUnknown SelectionMode = -1
	ModeAuto    SelectionMode = 0
	ModeManual  SelectionMode = 1
)

// ParseSelectionMode maps "auto" (and "auto-only") and "manual".
func ParseSelectionMode(s string) SelectionMode {
	switch s {
	case "auto", "auto-only":
		return ModeAuto
	case "manual":
		return ModeManual
	default:
		return ModeUnknown
	}
}

func (m SelectionMode) String() string {
	switch m {
	case ModeAuto:
		return "auto"
	case ModeManual:
		return "manual"
	default:
		return "unknown"
	}
}

// OperatorStatus is the availability of a scanned operator.
type OperatorStatus int

const (
	OperatorUnknown   OperatorStatus = -1
	OperatorAvailable OperatorStatus = 0
	OperatorCurrent   OperatorStatus = 1
	OperatorForbidden OperatorStatus = 2
)

// ParseOperatorStatus maps "available", "current", and "forbidden".
func ParseOperatorStatus(s string) OperatorStatus {
	switch s {
	case "available":
		return OperatorAvailable
	case "current":
		return OperatorCurrent
	case "forbidden":
		return OperatorForbidden
	default:
		return OperatorUnknown
	}
}

func (s OperatorStatus) String() string {
	switch s {
	case OperatorAvailable:
		return "available"
	case OperatorCurrent:
		return "current"
	case OperatorForbidden:
		return "forbidden"
	default:
		return "unknown"
	}
}

// NetworkType is the radio access technology reported for voice.
type NetworkType int

const (
	NetworkTypeUnknown NetworkType = 0
	NetworkTypeEDGE    NetworkType = 2
	NetworkTypeUMTS    NetworkType = 3
	NetworkTypeHSDPA   NetworkType = 8
	NetworkTypeHSUPA   NetworkType = 9
	NetworkTypeHSPA    NetworkType = 12
	NetworkTypeLTE     NetworkType = 13
	NetworkTypeLTECA   NetworkType = 19
)

// ParseNetworkType maps a Technology string.
func ParseNetworkType(s string) NetworkType {
	switch s {
	case "gsm", "edge":
		return NetworkTypeEDGE
	case "umts":
		return NetworkTypeUMTS
	case "hsdpa":
		return NetworkTypeHSDPA
	case "hsupa":
		return NetworkTypeHSUPA
	case "hspa":
		return NetworkTypeHSPA
	case "lte":
		return NetworkTypeLTE
	case "lte-ca", "lte_ca":
		return NetworkTypeLTECA
	default:
		return NetworkTypeUnknown
	}
}

// NetworkType returns the voice network type derived from Technology.
func (r *RegistrationInfo) NetworkType() NetworkType {
	return ParseNetworkType(r.Technology)
}

// Roaming reports whether the registration state is roaming.
func (r *RegistrationInfo) Roaming() bool {
	return r.RegState == RegRoaming
}
