package tapi

// SlotStatus reports whether a slot has resolved channels.
type SlotStatus struct {
	Slot      int
	ModemPath string
	Available bool
}

// Snapshot is a point-in-time view of the context, taken on the loop.
type Snapshot struct {
	Slots        []SlotStatus
	InFlight     int
	LiveHandlers int
	Watches      []WatchInfo
}

// Snapshot captures slot, handler, and watch state.
func (c *Context) Snapshot() Snapshot {
	snap := Snapshot{
		Slots:        make([]SlotStatus, len(c.slots)),
		InFlight:     c.InFlight(),
		LiveHandlers: c.LiveHandlers(),
		Watches:      c.Watches(),
	}
	for i, s := range c.slots {
		snap.Slots[i] = SlotStatus{
			Slot:      i,
			ModemPath: s.modemPath,
			Available: s.netreg != nil && s.netmon != nil,
		}
	}
	return snap
}
