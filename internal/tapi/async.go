package tapi

import (
	"context"

	"github.com/google/uuid"
)

// Status is the outcome carried by an AsyncResult.
type Status int

const (
	StatusOK Status = iota
	StatusError
)

func (s Status) String() string {
	if s == StatusOK {
		return "ok"
	}
	return "error"
}

// AsyncResult is the envelope handed to a Callback. Payload is nil, a single
// decoded record pointer, or a slice of decoded records; Count carries the
// list length or a scalar value. The envelope and everything Payload refers
// to are only valid until the callback returns.
type AsyncResult struct {
	Kind    Kind
	Status  Status
	Slot    int
	Count   int
	Payload any
	Err     error
	// CorrelationID identifies the handler that produced the result.
	CorrelationID string
}

// Callback receives completed results on the context loop.
type Callback func(*AsyncResult)

// Handler pairs one AsyncResult with its callback. One-shot handlers belong
// to a single call and are released after their only completion; persistent
// handlers belong to a watch and are reused for every delivery.
type Handler struct {
	id         uint64
	result     AsyncResult
	callback   Callback
	persistent bool
	completed  bool
	table      *handlerTable
}

// handlerTable tracks live handlers against a fixed budget. Exhausting the
// budget is the bridge's allocation failure.
type handlerTable struct {
	closed bool
	budget int
	next   uint64
	live   map[uint64]*Handler
}

func newHandlerTable(budget int) *handlerTable {
	return &handlerTable{budget: budget, live: make(map[uint64]*Handler)}
}

func (t *handlerTable) acquire(kind Kind, slot int, cb Callback, persistent bool) (*Handler, error) {
	if cb == nil {
		return nil, wrap(ErrInvalidArgument, "nil callback for %s", kind)
	}
	if t.closed {
		return nil, wrap(ErrClosed, "%s requested during shutdown", kind)
	}
	if t.budget > 0 && len(t.live) >= t.budget {
		return nil, wrap(ErrOutOfMemory, "%d handlers live", len(t.live))
	}
	t.next++
	h := &Handler{
		id:         t.next,
		callback:   cb,
		persistent: persistent,
		table:      t,
		result: AsyncResult{
			Kind:          kind,
			Slot:          slot,
			CorrelationID: uuid.NewString(),
		},
	}
	t.live[h.id] = h
	return h, nil
}

func (t *handlerTable) inFlight() int {
	n := 0
	for _, h := range t.live {
		if !h.persistent {
			n++
		}
	}
	return n
}

// Kind returns the kind the handler reports.
func (h *Handler) Kind() Kind { return h.result.Kind }

// Slot returns the slot the handler was created for.
func (h *Handler) Slot() int { return h.result.Slot }

// CorrelationID returns the identifier stamped on every result.
func (h *Handler) CorrelationID() string { return h.result.CorrelationID }

// complete invokes the callback exactly once for this delivery, then drops
// the payload. One-shot handlers are released afterwards and must never be
// completed again.
func (h *Handler) complete(status Status, count int, payload any, err error) {
	if h.completed {
		panic("tapi: handler completed twice")
	}
	if !h.persistent {
		h.completed = true
	}
	h.result.Status = status
	h.result.Count = count
	h.result.Payload = payload
	h.result.Err = err

	cb := h.callback
	defer func() {
		h.result.Payload = nil
		h.result.Count = 0
		h.result.Err = nil
		h.result.Status = StatusOK
		if !h.persistent {
			h.release()
		}
	}()
	cb(&h.result)
}

// release drops the handler from its table. It is idempotent.
func (h *Handler) release() {
	if h.table != nil {
		delete(h.table.live, h.id)
		h.table = nil
	}
	h.callback = nil
	h.completed = true
}

// Future adapts a Callback into a single-consumer result channel. The
// callback copies the result, detaching any payload, so it stays valid after
// the loop releases the original.
type Future struct {
	ch chan AsyncResult
}

// NewFuture returns a future and the callback that fulfils it.
func NewFuture() (*Future, Callback) {
	f := &Future{ch: make(chan AsyncResult, 1)}
	return f, func(ar *AsyncResult) {
		out := *ar
		out.Payload = detach(ar.Payload)
		select {
		case f.ch <- out:
		default:
		}
	}
}

// Wait blocks until the result arrives or ctx is done.
func (f *Future) Wait(ctx context.Context) (AsyncResult, error) {
	select {
	case ar := <-f.ch:
		return ar, nil
	case <-ctx.Done():
		return AsyncResult{}, ctx.Err()
	}
}

// Chan exposes the result channel for select loops.
func (f *Future) Chan() <-chan AsyncResult {
	return f.ch
}
