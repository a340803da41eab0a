package tapi

import (
	"sort"
	"strconv"
	"strings"

	"github.com/godbus/dbus/v5"
)

// Property is one (key, variant) pair of a property bag.
type Property struct {
	Key   string
	Value dbus.Variant
}

// PropertyBag is an ordered sequence of properties. Keys may repeat; later
// entries win.
type PropertyBag []Property

// BagFromMap converts a decoded a{sv} dictionary into a bag in key order.
func BagFromMap(m map[string]dbus.Variant) PropertyBag {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	bag := make(PropertyBag, 0, len(keys))
	for _, k := range keys {
		bag = append(bag, Property{Key: k, Value: m[k]})
	}
	return bag
}

type setter[T any] func(dst *T, value any)

// setterTable dispatches property keys to field setters for one record type.
// Keys without an entry are ignored.
type setterTable[T any] map[string]setter[T]

func (t setterTable[T]) apply(dst *T, bag PropertyBag) {
	for _, p := range bag {
		if set, ok := t[p.Key]; ok {
			set(dst, p.Value.Value())
		}
	}
}

func (t setterTable[T]) decode(bag PropertyBag) T {
	var out T
	t.apply(&out, bag)
	return out
}

// stringField copies a string value only when it fits within capacity.
// Oversized or non-string values leave the field as it was.
func stringField[T any](capacity int, field func(*T) *string) setter[T] {
	return func(dst *T, value any) {
		s, ok := value.(string)
		if !ok || len(s) > capacity {
			return
		}
		*field(dst) = s
	}
}

func intField[T any](field func(*T) *int) setter[T] {
	return func(dst *T, value any) {
		if n, ok := toInt(value); ok {
			*field(dst) = n
		}
	}
}

func enumField[T any, E any](parse func(string) E, field func(*T) *E) setter[T] {
	return func(dst *T, value any) {
		if s, ok := value.(string); ok {
			*field(dst) = parse(s)
		}
	}
}

func toInt(value any) (int, bool) {
	switch v := value.(type) {
	case byte:
		return int(v), true
	case int16:
		return int(v), true
	case uint16:
		return int(v), true
	case int32:
		return int(v), true
	case uint32:
		return int(v), true
	case int64:
		return int(v), true
	case uint64:
		return int(v), true
	case int:
		return v, true
	default:
		return 0, false
	}
}

// parseNetworkTime maps comma separated integers positionally onto the eight
// NetworkTime fields. Empty tokens are skipped, missing trailing tokens stay
// zero, extra tokens are ignored, and each token decodes its leading integer
// (zero when there is none).
func parseNetworkTime(s string) NetworkTime {
	var t NetworkTime
	fields := [...]*int{&t.Sec, &t.Min, &t.Hour, &t.MDay, &t.Mon, &t.Year, &t.DST, &t.UTCOff}
	i := 0
	for _, token := range strings.Split(s, ",") {
		if token == "" {
			continue
		}
		if i >= len(fields) {
			break
		}
		*fields[i] = leadingInt(token)
		i++
	}
	return t
}

func leadingInt(s string) int {
	s = strings.TrimLeft(s, " \t\n\r\v\f")
	end := 0
	if end < len(s) && (s[end] == '-' || s[end] == '+') {
		end++
	}
	digits := end
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == digits {
		return 0
	}
	n, err := strconv.Atoi(s[:end])
	if err != nil {
		return 0
	}
	return n
}

var registrationSetters = setterTable[RegistrationInfo]{
	"Status": enumField(ParseRegistrationState, func(r *RegistrationInfo) *RegistrationState { return &r.RegState }),
	"Mode":   enumField(ParseSelectionMode, func(r *RegistrationInfo) *SelectionMode { return &r.SelectionMode }),
	"Technology": stringField(NetworkInfoMaxLen, func(r *RegistrationInfo) *string {
		return &r.Technology
	}),
	"Name":              stringField(OperatorNameMaxLen, func(r *RegistrationInfo) *string { return &r.OperatorName }),
	"MobileCountryCode": stringField(MCCMaxLen, func(r *RegistrationInfo) *string { return &r.MCC }),
	"MobileNetworkCode": stringField(MNCMaxLen, func(r *RegistrationInfo) *string { return &r.MNC }),
	"BaseStation":       stringField(NetworkInfoMaxLen, func(r *RegistrationInfo) *string { return &r.Station }),
	"CellId":            intField(func(r *RegistrationInfo) *int { return &r.CellID }),
	"LocationAreaCode":  intField(func(r *RegistrationInfo) *int { return &r.LAC }),
	"NITZ": func(r *RegistrationInfo, value any) {
		if s, ok := value.(string); ok {
			r.NITZ = parseNetworkTime(s)
		}
	},
}

var cellSetters = setterTable[CellIdentity]{
	"MobileCountryCode": stringField(MCCMaxLen, func(c *CellIdentity) *string { return &c.MCC }),
	"MobileNetworkCode": stringField(MNCMaxLen, func(c *CellIdentity) *string { return &c.MNC }),
	"LocationAreaCode":  intField(func(c *CellIdentity) *int { return &c.LAC }),
	"CellId":            intField(func(c *CellIdentity) *int { return &c.CI }),
	"EARFCN":            intField(func(c *CellIdentity) *int { return &c.EARFCN }),
	"PhysicalCellId":    intField(func(c *CellIdentity) *int { return &c.PCI }),
	"TrackingAreaCode":  intField(func(c *CellIdentity) *int { return &c.TAC }),
}

var signalSetters = setterTable[SignalStrength]{
	"Strength":                       intField(func(s *SignalStrength) *int { return &s.RSSI }),
	"SignalToNoiseRatio":             intField(func(s *SignalStrength) *int { return &s.RSSNR }),
	"SingalToNoiseRatio":             intField(func(s *SignalStrength) *int { return &s.RSSNR }),
	"ReferenceSignalReceivedQuality": intField(func(s *SignalStrength) *int { return &s.RSRQ }),
	"ReferenceSignalReceivedPower":   intField(func(s *SignalStrength) *int { return &s.RSRP }),
}

var operatorSetters = setterTable[OperatorInfo]{
	"Name":              stringField(NetworkInfoMaxLen, func(o *OperatorInfo) *string { return &o.Name }),
	"Status":            enumField(ParseOperatorStatus, func(o *OperatorInfo) *OperatorStatus { return &o.Status }),
	"MobileCountryCode": stringField(MCCMaxLen, func(o *OperatorInfo) *string { return &o.MCC }),
	"MobileNetworkCode": stringField(MNCMaxLen, func(o *OperatorInfo) *string { return &o.MNC }),
	"Technologies":      technologiesField(),
}

// technologiesField accepts the single string form as well as the string
// array the service uses for operators supporting several technologies.
func technologiesField() setter[OperatorInfo] {
	copyString := stringField(NetworkInfoMaxLen, func(o *OperatorInfo) *string { return &o.Technology })
	return func(o *OperatorInfo, value any) {
		if list, ok := value.([]string); ok {
			copyString(o, strings.Join(list, ","))
			return
		}
		copyString(o, value)
	}
}

// decodeCell fills both the cell identity and its nested signal strength from
// the same bag.
func decodeCell(bag PropertyBag) CellIdentity {
	cell := cellSetters.decode(bag)
	signalSetters.apply(&cell.Signal, bag)
	return cell
}
