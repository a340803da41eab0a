package tapi

import (
	"errors"

	"github.com/godbus/dbus/v5"

	"telephony/internal/transport"
)

// Event is a decoded notification. Kind selects the watches it may reach.
type Event interface {
	Kind() Kind
	// result returns the count and payload handed to one watch callback.
	result() (int, any)
}

// NetworkStateEvent carries registration properties: the full set when the
// service sends a dictionary, or the one property that changed.
type NetworkStateEvent struct{ Info RegistrationInfo }

// SignalStrengthEvent carries the new Strength value.
type SignalStrengthEvent struct{ Strength int }

// NitzEvent carries a decoded network time.
type NitzEvent struct{ Time NetworkTime }

// CellInfoEvent carries the collected cell list.
type CellInfoEvent struct{ cells *Collector[CellIdentity] }

// RadioStateEvent reports the modem Online property.
type RadioStateEvent struct{ Online bool }

func (NetworkStateEvent) Kind() Kind   { return KindNetworkState }
func (SignalStrengthEvent) Kind() Kind { return KindSignalStrength }
func (NitzEvent) Kind() Kind           { return KindNitz }
func (CellInfoEvent) Kind() Kind       { return KindCellInfo }
func (RadioStateEvent) Kind() Kind     { return KindRadioState }

func (e NetworkStateEvent) result() (int, any) {
	info := e.Info
	return 0, &info
}

func (e SignalStrengthEvent) result() (int, any) { return e.Strength, nil }

func (e NitzEvent) result() (int, any) {
	t := e.Time
	return 0, &t
}

func (e CellInfoEvent) result() (int, any) { return e.cells.Len(), e.cells.Items() }

func (e CellInfoEvent) release() { e.cells.Release() }

func (e RadioStateEvent) result() (int, any) {
	if e.Online {
		return 1, nil
	}
	return 0, nil
}

// eventDecoder decodes a matched signal. A nil event means the signal carries
// nothing any watch kind recognizes. A non-nil event with an error reports a
// recognized kind whose body is malformed.
type eventDecoder func(c *Context, sig transport.Signal) (Event, error)

type eventSpec struct {
	iface  string
	member string
	decode eventDecoder
}

// eventTable maps every notification kind to its signal and decoder. New
// kinds are added here and nowhere else.
var eventTable = map[Kind]eventSpec{
	KindRadioState:     {iface: ModemInterface, member: "PropertyChanged", decode: decodeModemChanged},
	KindNetworkState:   {iface: NetworkRegistrationInterface, member: "PropertyChanged", decode: decodeNetworkRegistrationChanged},
	KindSignalStrength: {iface: NetworkRegistrationInterface, member: "PropertyChanged", decode: decodeNetworkRegistrationChanged},
	KindNitz:           {iface: NetworkRegistrationInterface, member: "PropertyChanged", decode: decodeNetworkRegistrationChanged},
	KindCellInfo:       {iface: NetworkMonitorInterface, member: "CellInfoChanged", decode: decodeCellInfoChanged},
}

var errMalformedSignal = errors.New("malformed signal body")

// decodeNetworkRegistrationChanged classifies a NetworkRegistration
// PropertyChanged by property name. A dictionary body is a full registration
// update.
func decodeNetworkRegistrationChanged(_ *Context, sig transport.Signal) (Event, error) {
	if transport.Conforms(sig.Body, sigProperties) == nil {
		return NetworkStateEvent{Info: registrationSetters.decode(propertiesArg(sig.Body))}, nil
	}
	name, value, ok := changedProperty(sig.Body)
	if !ok {
		return nil, errMalformedSignal
	}
	switch name {
	case "Strength":
		n, ok := value.Value().(byte)
		if !ok {
			return SignalStrengthEvent{}, errMalformedSignal
		}
		return SignalStrengthEvent{Strength: int(n)}, nil
	case "NITZ":
		s, ok := value.Value().(string)
		if !ok {
			return NitzEvent{}, errMalformedSignal
		}
		return NitzEvent{Time: parseNetworkTime(s)}, nil
	default:
		bag := PropertyBag{{Key: name, Value: value}}
		return NetworkStateEvent{Info: registrationSetters.decode(bag)}, nil
	}
}

func decodeCellInfoChanged(c *Context, sig transport.Signal) (Event, error) {
	if err := transport.Conforms(sig.Body, sigCellList); err != nil {
		return CellInfoEvent{cells: NewCollector[CellIdentity](0)}, errMalformedSignal
	}
	return CellInfoEvent{cells: collectCells(structsArg(sig.Body), c.opts.CellListCapacity, decodeCell)}, nil
}

func decodeModemChanged(_ *Context, sig transport.Signal) (Event, error) {
	name, value, ok := changedProperty(sig.Body)
	if !ok || name != "Online" {
		return nil, nil
	}
	online, ok := value.Value().(bool)
	if !ok {
		return RadioStateEvent{}, errMalformedSignal
	}
	return RadioStateEvent{Online: online}, nil
}

func changedProperty(body []any) (string, dbus.Variant, bool) {
	if transport.Conforms(body, "sv") != nil {
		return "", dbus.Variant{}, false
	}
	return body[0].(string), body[1].(dbus.Variant), true
}
