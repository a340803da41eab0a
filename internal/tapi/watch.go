package tapi

import (
	"fmt"

	"telephony/internal/logging"
	"telephony/internal/transport"
)

// WatchID identifies a registered watch. Valid ids are positive.
type WatchID int

// WatchInfo describes a live watch.
type WatchInfo struct {
	ID            WatchID
	Slot          int
	Kind          Kind
	Path          string
	CorrelationID string
}

type watch struct {
	id      WatchID
	slot    int
	kind    Kind
	match   transport.Match
	handler *Handler
	removed bool
}

type watchRegistry struct {
	next  WatchID
	byID  map[WatchID]*watch
	order []*watch
}

func newWatchRegistry() *watchRegistry {
	return &watchRegistry{byID: make(map[WatchID]*watch)}
}

// Register subscribes cb to notifications of kind on slot. The callback runs
// on the loop once per matching delivery until Unregister.
func (c *Context) Register(slot int, kind Kind, cb Callback) (WatchID, error) {
	if err := c.checkSlot(slot); err != nil {
		return 0, err
	}
	spec, ok := eventTable[kind]
	if !ok {
		return 0, wrap(ErrInvalidArgument, "unmapped event kind %s", kind)
	}
	path := c.slots[slot].modemPath
	if path == "" {
		return 0, wrap(ErrIO, "no modem available for slot %d", slot)
	}
	h, err := c.handlers.acquire(kind, slot, cb, true)
	if err != nil {
		return 0, err
	}
	match := transport.Match{Sender: c.opts.Service, Path: path, Interface: spec.iface, Member: spec.member}
	if err := c.conn.AddMatch(match); err != nil {
		h.release()
		return 0, fmt.Errorf("%w: %w", ErrIO, err)
	}

	r := c.watches
	r.next++
	w := &watch{id: r.next, slot: slot, kind: kind, match: match, handler: h}
	r.byID[w.id] = w
	r.order = append(r.order, w)
	c.logger.Info("watch registered",
		logging.Int(logging.FieldSlot, slot),
		logging.Int(logging.FieldWatchID, int(w.id)),
		logging.String(logging.FieldEvent, kind.String()),
		logging.String(logging.FieldCorrelationID, h.CorrelationID()),
	)
	return w.id, nil
}

// Unregister removes a watch. Non-positive ids are invalid; ids that are
// unknown or already removed report ErrNotFound.
func (c *Context) Unregister(id WatchID) error {
	if id <= 0 {
		return wrap(ErrInvalidArgument, "watch id %d", id)
	}
	w, ok := c.watches.byID[id]
	if !ok {
		return wrap(ErrNotFound, "watch id %d", id)
	}
	c.watches.remove(c, w)
	c.logger.Info("watch unregistered",
		logging.Int(logging.FieldSlot, w.slot),
		logging.Int(logging.FieldWatchID, int(id)),
		logging.String(logging.FieldEvent, w.kind.String()),
	)
	return nil
}

// Watches lists live watches in registration order.
func (c *Context) Watches() []WatchInfo {
	out := make([]WatchInfo, 0, len(c.watches.order))
	for _, w := range c.watches.order {
		out = append(out, WatchInfo{
			ID:            w.id,
			Slot:          w.slot,
			Kind:          w.kind,
			Path:          w.match.Path,
			CorrelationID: w.handler.CorrelationID(),
		})
	}
	return out
}

func (r *watchRegistry) remove(c *Context, w *watch) {
	delete(r.byID, w.id)
	for i, cur := range r.order {
		if cur == w {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	w.removed = true
	if err := c.conn.RemoveMatch(w.match); err != nil {
		c.logger.Debug("remove match failed", logging.Int(logging.FieldWatchID, int(w.id)), logging.Error(err))
	}
	w.handler.release()
}

func (r *watchRegistry) removeAll(c *Context) {
	for len(r.order) > 0 {
		r.remove(c, r.order[0])
	}
}

// handleSignal delivers sig to every watch whose rule matches and whose kind
// equals the decoded event's kind.
func (c *Context) handleSignal(sig transport.Signal) {
	targets := make([]*watch, 0, len(c.watches.order))
	for _, w := range c.watches.order {
		if w.match.Matches(sig) {
			targets = append(targets, w)
		}
	}
	if len(targets) == 0 {
		return
	}

	type decoded struct {
		ev  Event
		err error
	}
	cache := make(map[string]decoded, 1)
	var releases []func()
	defer func() {
		for i := len(releases) - 1; i >= 0; i-- {
			releases[i]()
		}
	}()

	for _, w := range targets {
		if w.removed {
			continue
		}
		spec := eventTable[w.kind]
		key := spec.iface + "." + spec.member
		d, ok := cache[key]
		if !ok {
			ev, err := spec.decode(c, sig)
			d = decoded{ev: ev, err: err}
			cache[key] = d
			if r, ok := ev.(interface{ release() }); ok {
				releases = append(releases, r.release)
			}
		}
		if d.ev == nil || d.ev.Kind() != w.kind {
			continue
		}
		if d.err != nil {
			logging.WarnWithContext(c.logger, "malformed notification", "malformed_signal",
				logging.Int(logging.FieldSlot, w.slot),
				logging.Int(logging.FieldWatchID, int(w.id)),
				logging.String(logging.FieldEvent, w.kind.String()),
				logging.Error(d.err),
				logging.String(logging.FieldImpact, "watch notified with error status"),
			)
			w.handler.complete(StatusError, 0, nil, fmt.Errorf("%w: %w", ErrProtocolMismatch, d.err))
			continue
		}
		count, payload := d.ev.result()
		w.handler.complete(StatusOK, count, payload, nil)
	}
}
