package tapi

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync/atomic"

	"telephony/internal/config"
	"telephony/internal/logging"
	"telephony/internal/transport"
)

// Interfaces of the modem service used by the bridge.
const (
	NetworkRegistrationInterface = "org.ofono.NetworkRegistration"
	NetworkMonitorInterface      = "org.ofono.NetworkMonitor"
	NetworkOperatorInterface     = "org.ofono.NetworkOperator"
	ModemInterface               = "org.ofono.Modem"
)

// Options configures a Context.
type Options struct {
	// Service is the bus name of the modem service.
	Service string
	// ModemPaths holds the modem object path of each slot; an empty entry
	// leaves the slot without channels.
	ModemPaths []string
	// MaxHandlers bounds live handlers (calls and watches together).
	MaxHandlers int
	// QueueDepth bounds the task and reply queues feeding the loop.
	QueueDepth int
	// CellListCapacity and OperatorListCapacity bound list replies; zero or
	// less means unbounded.
	CellListCapacity     int
	OperatorListCapacity int
	Logger               *slog.Logger
}

// OptionsFromConfig derives context options from application config.
func OptionsFromConfig(cfg *config.Config, logger *slog.Logger) Options {
	return Options{
		Service:              cfg.Bus.Service,
		ModemPaths:           cfg.ModemPaths(),
		MaxHandlers:          cfg.Dispatch.MaxInFlight,
		QueueDepth:           cfg.Dispatch.QueueDepth,
		CellListCapacity:     cfg.Collector.CellListCapacity,
		OperatorListCapacity: cfg.Collector.OperatorListCapacity,
		Logger:               logger,
	}
}

type slotChannels struct {
	modemPath string
	netreg    transport.Channel
	netmon    transport.Channel
	modem     transport.Channel
}

// Context owns the bus connection, the per-slot channel table, in-flight call
// handlers, and signal watches. Its methods are confined to the goroutine
// running Run; use Submit or Exec from anywhere else. Callbacks run on the
// loop and may call Context methods directly.
type Context struct {
	conn     transport.Conn
	opts     Options
	logger   *slog.Logger
	slots    []slotChannels
	handlers *handlerTable
	pending  map[uint64]*pendingCall
	seq      uint64
	watches  *watchRegistry

	tasks   chan func(*Context)
	replies chan transport.Reply
	closed  chan struct{}
	running atomic.Bool
}

// New builds a Context over conn and resolves the channel table.
func New(conn transport.Conn, opts Options) *Context {
	if opts.QueueDepth <= 0 {
		opts.QueueDepth = 32
	}
	c := &Context{
		conn:     conn,
		opts:     opts,
		logger:   logging.NewComponentLogger(opts.Logger, "tapi"),
		handlers: newHandlerTable(opts.MaxHandlers),
		pending:  make(map[uint64]*pendingCall),
		watches:  newWatchRegistry(),
		tasks:    make(chan func(*Context), opts.QueueDepth),
		replies:  make(chan transport.Reply, opts.QueueDepth),
		closed:   make(chan struct{}),
	}
	c.RefreshSlots(opts.ModemPaths)
	return c
}

// RefreshSlots re-resolves the channel table for the given modem paths.
// Existing watches keep their match rules.
func (c *Context) RefreshSlots(paths []string) {
	slots := make([]slotChannels, len(paths))
	for i, path := range paths {
		slots[i].modemPath = path
		if path == "" {
			continue
		}
		slots[i].netreg = c.resolve(i, path, NetworkRegistrationInterface)
		slots[i].netmon = c.resolve(i, path, NetworkMonitorInterface)
		slots[i].modem = c.resolve(i, path, ModemInterface)
	}
	c.slots = slots
	c.opts.ModemPaths = append([]string(nil), paths...)
}

func (c *Context) resolve(slot int, path, iface string) transport.Channel {
	ch, err := c.conn.Channel(c.opts.Service, path, iface)
	if err != nil {
		logging.WarnWithContext(c.logger, "channel unavailable", "channel_unavailable",
			logging.Int(logging.FieldSlot, slot),
			logging.String("path", path),
			logging.String("interface", iface),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check that the modem service exports this object"),
			logging.String(logging.FieldImpact, "operations on this slot fail with an i/o error"),
		)
		return nil
	}
	return ch
}

// Slots returns the number of configured slots.
func (c *Context) Slots() int { return len(c.slots) }

// ModemPath returns the modem object path of slot, or "" when unset.
func (c *Context) ModemPath(slot int) string {
	if slot < 0 || slot >= len(c.slots) {
		return ""
	}
	return c.slots[slot].modemPath
}

// InFlight returns the number of one-shot handlers still awaiting completion.
func (c *Context) InFlight() int { return c.handlers.inFlight() }

// LiveHandlers returns the number of allocated handlers of either kind.
func (c *Context) LiveHandlers() int { return len(c.handlers.live) }

func (c *Context) checkSlot(slot int) error {
	if slot < 0 || slot >= len(c.slots) {
		return wrap(ErrInvalidArgument, "slot %d out of range [0,%d)", slot, len(c.slots))
	}
	return nil
}

func (c *Context) slotChannel(slot int, pick func(*slotChannels) transport.Channel, iface string) (transport.Channel, error) {
	if err := c.checkSlot(slot); err != nil {
		return nil, err
	}
	ch := pick(&c.slots[slot])
	if ch == nil {
		return nil, wrap(ErrIO, "no %s channel for slot %d", iface, slot)
	}
	return ch, nil
}

// Run drives the loop until ctx is canceled or the connection closes. When
// it returns, every in-flight handler has been completed with ErrCanceled
// and every watch removed.
func (c *Context) Run(ctx context.Context) error {
	if !c.running.CompareAndSwap(false, true) {
		return errors.New("tapi: context loop already started")
	}
	defer c.shutdown()

	signals := c.conn.Signals()
	for {
		select {
		case <-ctx.Done():
			return nil
		case fn := <-c.tasks:
			fn(c)
		case reply := <-c.replies:
			c.handleReply(reply)
		case sig, ok := <-signals:
			if !ok {
				return fmt.Errorf("%w: bus connection closed", ErrIO)
			}
			c.handleSignal(sig)
		}
	}
}

// shutdown closes the handler table before draining; callbacks run during
// cancellation get ErrClosed from any new call or watch.
func (c *Context) shutdown() {
	c.handlers.closed = true
	c.cancelPending()
	c.watches.removeAll(c)
	close(c.closed)
}

// cancelPending completes every in-flight call, in submission order.
func (c *Context) cancelPending() {
	seqs := make([]uint64, 0, len(c.pending))
	for seq := range c.pending {
		seqs = append(seqs, seq)
	}
	sort.Slice(seqs, func(i, j int) bool { return seqs[i] < seqs[j] })
	for _, seq := range seqs {
		call := c.pending[seq]
		delete(c.pending, seq)
		call.handler.complete(StatusError, 0, nil, wrap(ErrCanceled, "%s", call.method))
	}
}

// Done is closed once the loop has shut down.
func (c *Context) Done() <-chan struct{} { return c.closed }

// Submit queues fn to run on the loop. It blocks while the queue is full and
// must not be called from the loop itself.
func (c *Context) Submit(fn func(*Context)) error {
	select {
	case <-c.closed:
		return ErrClosed
	default:
	}
	select {
	case c.tasks <- fn:
		return nil
	case <-c.closed:
		return ErrClosed
	}
}

// Exec runs fn on the loop and waits for its error.
func (c *Context) Exec(ctx context.Context, fn func(*Context) error) error {
	errCh := make(chan error, 1)
	if err := c.Submit(func(c *Context) { errCh <- fn(c) }); err != nil {
		return err
	}
	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-c.closed:
		return ErrClosed
	}
}

// Await starts an operation on the loop and waits for its single result.
// start receives the callback to pass to the operation.
func (c *Context) Await(ctx context.Context, start func(*Context, Callback) error) (AsyncResult, error) {
	future, cb := NewFuture()
	if err := c.Exec(ctx, func(c *Context) error { return start(c, cb) }); err != nil {
		return AsyncResult{}, err
	}
	select {
	case ar := <-future.Chan():
		return ar, nil
	case <-ctx.Done():
		return AsyncResult{}, ctx.Err()
	case <-c.closed:
		// Shutdown completes pending calls before closing.
		select {
		case ar := <-future.Chan():
			return ar, nil
		default:
			return AsyncResult{}, ErrClosed
		}
	}
}
