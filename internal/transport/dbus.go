package transport

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/godbus/dbus/v5"

	"telephony/internal/logging"
)

const signalBuffer = 64

// DBusConn is a Conn backed by a godbus connection.
type DBusConn struct {
	conn    *dbus.Conn
	logger  *slog.Logger
	raw     chan *dbus.Signal
	signals chan Signal
	closed  chan struct{}
	once    sync.Once
	wg      sync.WaitGroup
}

// Dial connects to the system bus, the session bus, or an explicit address
// depending on busType ("system", "session", "address").
func Dial(busType, address string, logger *slog.Logger) (*DBusConn, error) {
	var (
		conn *dbus.Conn
		err  error
	)
	switch busType {
	case "system", "":
		conn, err = dbus.ConnectSystemBus()
	case "session":
		conn, err = dbus.ConnectSessionBus()
	case "address":
		conn, err = dbus.Connect(address)
	default:
		return nil, fmt.Errorf("dial bus: unsupported bus type %q", busType)
	}
	if err != nil {
		return nil, fmt.Errorf("dial %s bus: %w", busType, err)
	}
	return newDBusConn(conn, logger), nil
}

func newDBusConn(conn *dbus.Conn, logger *slog.Logger) *DBusConn {
	c := &DBusConn{
		conn:    conn,
		logger:  logging.NewComponentLogger(logger, "transport"),
		raw:     make(chan *dbus.Signal, signalBuffer),
		signals: make(chan Signal, signalBuffer),
		closed:  make(chan struct{}),
	}
	conn.Signal(c.raw)
	c.wg.Add(1)
	go c.forwardSignals()
	return c
}

func (c *DBusConn) forwardSignals() {
	defer c.wg.Done()
	defer close(c.signals)
	for {
		select {
		case <-c.closed:
			return
		case raw, ok := <-c.raw:
			if !ok {
				return
			}
			iface, member := splitMember(raw.Name)
			sig := Signal{
				Sender:    raw.Sender,
				Path:      string(raw.Path),
				Interface: iface,
				Member:    member,
				Body:      raw.Body,
			}
			select {
			case c.signals <- sig:
			case <-c.closed:
				return
			}
		}
	}
}

func splitMember(name string) (string, string) {
	idx := strings.LastIndexByte(name, '.')
	if idx < 0 {
		return "", name
	}
	return name[:idx], name[idx+1:]
}

// Channel returns a proxy for iface on the object at path.
func (c *DBusConn) Channel(service, path, iface string) (Channel, error) {
	select {
	case <-c.closed:
		return nil, ErrClosed
	default:
	}
	if !ValidObjectPath(path) {
		return nil, fmt.Errorf("resolve channel: invalid object path %q", path)
	}
	return &dbusChannel{
		owner: c,
		obj:   c.conn.Object(service, dbus.ObjectPath(path)),
		path:  path,
		iface: iface,
	}, nil
}

// AddMatch installs a bus-side signal match rule.
func (c *DBusConn) AddMatch(m Match) error {
	if err := c.conn.AddMatchSignal(matchOptions(m)...); err != nil {
		return fmt.Errorf("add match %s: %w", m, err)
	}
	return nil
}

// RemoveMatch removes a rule previously installed by AddMatch.
func (c *DBusConn) RemoveMatch(m Match) error {
	if err := c.conn.RemoveMatchSignal(matchOptions(m)...); err != nil {
		return fmt.Errorf("remove match %s: %w", m, err)
	}
	return nil
}

func matchOptions(m Match) []dbus.MatchOption {
	opts := make([]dbus.MatchOption, 0, 4)
	if m.Sender != "" {
		opts = append(opts, dbus.WithMatchSender(m.Sender))
	}
	if m.Path != "" {
		opts = append(opts, dbus.WithMatchObjectPath(dbus.ObjectPath(m.Path)))
	}
	if m.Interface != "" {
		opts = append(opts, dbus.WithMatchInterface(m.Interface))
	}
	if m.Member != "" {
		opts = append(opts, dbus.WithMatchMember(m.Member))
	}
	return opts
}

// Signals returns the inbound signal stream.
func (c *DBusConn) Signals() <-chan Signal {
	return c.signals
}

// Close shuts the connection down and waits for forwarding goroutines.
func (c *DBusConn) Close() error {
	var err error
	c.once.Do(func() {
		close(c.closed)
		c.conn.RemoveSignal(c.raw)
		err = c.conn.Close()
		c.wg.Wait()
	})
	return err
}

type dbusChannel struct {
	owner *DBusConn
	obj   dbus.BusObject
	path  string
	iface string
}

func (ch *dbusChannel) Path() string      { return ch.path }
func (ch *dbusChannel) Interface() string { return ch.iface }

func (ch *dbusChannel) Call(seq uint64, method string, args []any, replies chan<- Reply) error {
	done := make(chan *dbus.Call, 1)
	ch.obj.Go(ch.iface+"."+method, 0, done, args...)

	// godbus reports send failures by completing the call before Go returns.
	select {
	case call := <-done:
		if call.Err != nil && !isRemoteError(call.Err) {
			return fmt.Errorf("submit %s.%s: %w", ch.iface, method, call.Err)
		}
		ch.owner.wg.Add(1)
		go ch.owner.deliver(replies, toReply(seq, call))
		return nil
	default:
	}

	ch.owner.wg.Add(1)
	go func() {
		defer ch.owner.wg.Done()
		select {
		case call := <-done:
			ch.owner.wg.Add(1)
			ch.owner.deliver(replies, toReply(seq, call))
		case <-ch.owner.closed:
		}
	}()
	return nil
}

func (c *DBusConn) deliver(replies chan<- Reply, reply Reply) {
	defer c.wg.Done()
	select {
	case replies <- reply:
	case <-c.closed:
		c.logger.Debug("reply discarded after close", logging.Uint64("seq", reply.Seq))
	}
}

func isRemoteError(err error) bool {
	var value dbus.Error
	if errors.As(err, &value) {
		return true
	}
	var ptr *dbus.Error
	return errors.As(err, &ptr)
}

func toReply(seq uint64, call *dbus.Call) Reply {
	reply := Reply{Seq: seq}
	if call.Err == nil {
		reply.Body = call.Body
		return reply
	}
	var value dbus.Error
	if errors.As(call.Err, &value) {
		reply.Fault = faultFrom(value)
		return reply
	}
	var ptr *dbus.Error
	if errors.As(call.Err, &ptr) && ptr != nil {
		reply.Fault = faultFrom(*ptr)
		return reply
	}
	reply.Err = call.Err
	return reply
}

func faultFrom(e dbus.Error) *Fault {
	fault := &Fault{Name: e.Name}
	if len(e.Body) > 0 {
		if msg, ok := e.Body[0].(string); ok {
			fault.Message = msg
		}
	}
	return fault
}
