package tapi

import (
	"github.com/godbus/dbus/v5"

	"telephony/internal/transport"
)

// Reply signatures of the network operations.
const (
	sigNone         = ""
	sigProperties   = "a{sv}"
	sigCellList     = "a(a{sv})"
	sigOperatorList = "a(oa{sv})"
)

func netreg(s *slotChannels) transport.Channel { return s.netreg }
func netmon(s *slotChannels) transport.Channel { return s.netmon }

// start validates the slot, resolves the channel, allocates a handler, and
// submits the call.
func (c *Context) start(slot int, kind Kind, pick func(*slotChannels) transport.Channel, iface, method string, cb Callback, expect expectation) error {
	ch, err := c.slotChannel(slot, pick, iface)
	if err != nil {
		return err
	}
	h, err := c.handlers.acquire(kind, slot, cb, false)
	if err != nil {
		return err
	}
	return c.invoke(ch, method, nil, h, expect)
}

// SelectAuto asks the slot's modem to register with the automatically
// selected operator.
func (c *Context) SelectAuto(slot int, cb Callback) error {
	return c.start(slot, KindSelectAuto, netreg, NetworkRegistrationInterface, "Register", cb,
		expectation{signature: sigNone})
}

// SelectManual registers with op. The call goes to a channel resolved from
// op.ID, the operator object path returned by Scan.
func (c *Context) SelectManual(slot int, op OperatorInfo, cb Callback) error {
	if err := c.checkSlot(slot); err != nil {
		return err
	}
	if op.ID == "" {
		return wrap(ErrInvalidArgument, "operator id required for manual selection")
	}
	ch, err := c.conn.Channel(c.opts.Service, op.ID, NetworkOperatorInterface)
	if err != nil {
		return wrap(ErrIO, "resolve operator %s: %v", op.ID, err)
	}
	h, err := c.handlers.acquire(KindSelectManual, slot, cb, false)
	if err != nil {
		return err
	}
	return c.invoke(ch, "Register", nil, h, expectation{signature: sigNone})
}

// Scan lists the operators visible to the slot's modem.
func (c *Context) Scan(slot int, cb Callback) error {
	return c.start(slot, KindScan, netreg, NetworkRegistrationInterface, "Scan", cb,
		expectation{signature: sigOperatorList, decode: c.decodeOperatorList})
}

// ServingCellInfo queries the serving cell with its signal measurements.
func (c *Context) ServingCellInfo(slot int, cb Callback) error {
	return c.start(slot, KindServingCellInfo, netmon, NetworkMonitorInterface, "GetServingCellInformation", cb,
		expectation{signature: sigProperties, decode: decodeServingCell})
}

// NeighbouringCellInfo queries neighbouring cell identities.
func (c *Context) NeighbouringCellInfo(slot int, cb Callback) error {
	return c.start(slot, KindNeighbouringCellInfo, netmon, NetworkMonitorInterface, "GetNeighbouringCellInformation", cb,
		expectation{signature: sigCellList, decode: c.decodeNeighbouringCells})
}

// RegistrationInfo queries the slot's registration properties.
func (c *Context) RegistrationInfo(slot int, cb Callback) error {
	return c.start(slot, KindRegistrationInfo, netreg, NetworkRegistrationInterface, "GetProperties", cb,
		expectation{signature: sigProperties, decode: decodeRegistration})
}

func propertiesArg(body []any) PropertyBag {
	if len(body) == 0 {
		return nil
	}
	m, _ := body[0].(map[string]dbus.Variant)
	return BagFromMap(m)
}

func structsArg(body []any) [][]any {
	if len(body) == 0 {
		return nil
	}
	entries, _ := body[0].([][]any)
	return entries
}

func noRelease() {}

func decodeRegistration(body []any) (int, any, func()) {
	info := registrationSetters.decode(propertiesArg(body))
	return 0, &info, noRelease
}

func decodeServingCell(body []any) (int, any, func()) {
	cell := decodeCell(propertiesArg(body))
	return 0, &cell, noRelease
}

func (c *Context) decodeNeighbouringCells(body []any) (int, any, func()) {
	col := collectCells(structsArg(body), c.opts.CellListCapacity, cellSetters.decode)
	return col.Len(), col.Items(), col.Release
}

func (c *Context) decodeOperatorList(body []any) (int, any, func()) {
	col := NewCollector[OperatorInfo](c.opts.OperatorListCapacity)
	for _, entry := range structsArg(body) {
		if col.Full() {
			break
		}
		if len(entry) != 2 {
			continue
		}
		m, _ := entry[1].(map[string]dbus.Variant)
		op := operatorSetters.decode(BagFromMap(m))
		if path, ok := entry[0].(dbus.ObjectPath); ok && len(path) <= NetworkInfoMaxLen {
			op.ID = string(path)
		}
		col.Add(op)
	}
	return col.Len(), col.Items(), col.Release
}

// collectCells decodes each (a{sv}) entry with decode until capacity is hit.
func collectCells(entries [][]any, capacity int, decode func(PropertyBag) CellIdentity) *Collector[CellIdentity] {
	col := NewCollector[CellIdentity](capacity)
	for _, entry := range entries {
		if col.Full() {
			break
		}
		if len(entry) != 1 {
			continue
		}
		m, _ := entry[0].(map[string]dbus.Variant)
		col.Add(decode(BagFromMap(m)))
	}
	return col
}

// StartOperation dispatches the operation kind on slot. operatorID is read
// only by KindSelectManual.
func (c *Context) StartOperation(kind Kind, slot int, operatorID string, cb Callback) error {
	switch kind {
	case KindSelectAuto:
		return c.SelectAuto(slot, cb)
	case KindSelectManual:
		return c.SelectManual(slot, OperatorInfo{ID: operatorID}, cb)
	case KindScan:
		return c.Scan(slot, cb)
	case KindServingCellInfo:
		return c.ServingCellInfo(slot, cb)
	case KindNeighbouringCellInfo:
		return c.NeighbouringCellInfo(slot, cb)
	case KindRegistrationInfo:
		return c.RegistrationInfo(slot, cb)
	}
	return wrap(ErrInvalidArgument, "%s is not an operation", kind)
}
