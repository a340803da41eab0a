package tapi

import (
	"fmt"
	"strconv"
	"strings"
)

// Kind identifies what an AsyncResult reports: either a notification kind
// (numbered as the indication ids applications already use) or an outbound
// operation.
type Kind int

// Notification kinds.
const (
	KindRadioState     Kind = 0
	KindNetworkState   Kind = 11
	KindCellInfo       Kind = 12
	KindSignalStrength Kind = 13
	KindNitz           Kind = 14
)

// Operation kinds.
const (
	KindSelectAuto Kind = 100 + iota
	KindSelectManual
	KindScan
	KindServingCellInfo
	KindNeighbouringCellInfo
	KindRegistrationInfo
)

var kindNames = map[Kind]string{
	KindRadioState:           "radio-state",
	KindNetworkState:         "network-state",
	KindCellInfo:             "cellinfo",
	KindSignalStrength:       "signal-strength",
	KindNitz:                 "nitz",
	KindSelectAuto:           "select-auto",
	KindSelectManual:         "select-manual",
	KindScan:                 "scan",
	KindServingCellInfo:      "serving-cellinfo",
	KindNeighbouringCellInfo: "neighbouring-cellinfo",
	KindRegistrationInfo:     "registration-info",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "kind(" + strconv.Itoa(int(k)) + ")"
}

// IsEvent reports whether k is a notification kind with an entry in the
// event table.
func (k Kind) IsEvent() bool {
	_, ok := eventTable[k]
	return ok
}

// ParseEventKind resolves a notification kind from its name or numeric id.
func ParseEventKind(value string) (Kind, error) {
	trimmed := strings.ToLower(strings.TrimSpace(value))
	if n, err := strconv.Atoi(trimmed); err == nil {
		k := Kind(n)
		if !k.IsEvent() {
			return 0, fmt.Errorf("%w: unmapped event id %d", ErrInvalidArgument, n)
		}
		return k, nil
	}
	for k, name := range kindNames {
		if name == trimmed && k.IsEvent() {
			return k, nil
		}
	}
	return 0, fmt.Errorf("%w: unknown event %q", ErrInvalidArgument, value)
}

// EventKinds lists every notification kind in id order.
func EventKinds() []Kind {
	return []Kind{KindRadioState, KindNetworkState, KindCellInfo, KindSignalStrength, KindNitz}
}

// IsOperation reports whether k is an outbound operation kind.
func (k Kind) IsOperation() bool {
	return k >= KindSelectAuto && k <= KindRegistrationInfo
}

// ParseOperationKind resolves an operation kind from its name.
func ParseOperationKind(value string) (Kind, error) {
	trimmed := strings.ToLower(strings.TrimSpace(value))
	for k, name := range kindNames {
		if name == trimmed && k.IsOperation() {
			return k, nil
		}
	}
	return 0, fmt.Errorf("%w: unknown operation %q", ErrInvalidArgument, value)
}
