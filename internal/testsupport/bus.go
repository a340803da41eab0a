package testsupport

import (
	"errors"
	"sync"

	"github.com/godbus/dbus/v5"

	"telephony/internal/transport"
)

// FakeCall records one method call submitted through a FakeConn channel.
type FakeCall struct {
	Seq       uint64
	Path      string
	Interface string
	Method    string
	Args      []any
}

// Responder computes the reply for a call. Returning nil leaves the call
// pending until Reply, Fault, or Fail is used.
type Responder func(call FakeCall) *transport.Reply

// FakeConn is an in-memory transport.Conn. Replies and signals are delivered
// only when the test asks for them, unless a Responder is installed.
type FakeConn struct {
	mu        sync.Mutex
	calls     []FakeCall
	waiting   map[uint64]chan<- transport.Reply
	matches   []transport.Match
	signals   chan transport.Signal
	closed    bool
	responder Responder

	// SubmitErr, when set, makes every Call fail synchronously.
	SubmitErr error
	// MatchErr, when set, makes AddMatch fail.
	MatchErr error
	// ChannelErr maps object paths whose channel resolution fails.
	ChannelErr map[string]error
}

// NewFakeConn returns an empty fake connection.
func NewFakeConn() *FakeConn {
	return &FakeConn{
		waiting:    make(map[uint64]chan<- transport.Reply),
		signals:    make(chan transport.Signal, 64),
		ChannelErr: make(map[string]error),
	}
}

// SetResponder installs fn to answer calls as they are submitted.
func (f *FakeConn) SetResponder(fn Responder) {
	f.mu.Lock()
	f.responder = fn
	f.mu.Unlock()
}

func (f *FakeConn) Channel(service, path, iface string) (transport.Channel, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return nil, transport.ErrClosed
	}
	if err := f.ChannelErr[path]; err != nil {
		return nil, err
	}
	return &fakeChannel{conn: f, path: path, iface: iface}, nil
}

func (f *FakeConn) AddMatch(m transport.Match) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.MatchErr != nil {
		return f.MatchErr
	}
	f.matches = append(f.matches, m)
	return nil
}

func (f *FakeConn) RemoveMatch(m transport.Match) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, cur := range f.matches {
		if cur == m {
			f.matches = append(f.matches[:i], f.matches[i+1:]...)
			return nil
		}
	}
	return errors.New("fake: match not installed")
}

// Matches returns the installed match rules.
func (f *FakeConn) Matches() []transport.Match {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]transport.Match(nil), f.matches...)
}

func (f *FakeConn) Signals() <-chan transport.Signal {
	return f.signals
}

func (f *FakeConn) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.closed {
		f.closed = true
		close(f.signals)
	}
	return nil
}

// Calls returns every submitted call in order.
func (f *FakeConn) Calls() []FakeCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]FakeCall(nil), f.calls...)
}

// LastCall returns the most recent submitted call.
func (f *FakeConn) LastCall() (FakeCall, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.calls) == 0 {
		return FakeCall{}, false
	}
	return f.calls[len(f.calls)-1], true
}

// Pending returns the number of calls not yet answered.
func (f *FakeConn) Pending() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.waiting)
}

// Reply answers call seq with body.
func (f *FakeConn) Reply(seq uint64, body ...any) bool {
	return f.deliver(transport.Reply{Seq: seq, Body: body})
}

// Fault answers call seq with an error reply.
func (f *FakeConn) Fault(seq uint64, name, message string) bool {
	return f.deliver(transport.Reply{Seq: seq, Fault: &transport.Fault{Name: name, Message: message}})
}

// Fail answers call seq with a transport failure.
func (f *FakeConn) Fail(seq uint64, err error) bool {
	return f.deliver(transport.Reply{Seq: seq, Err: err})
}

func (f *FakeConn) deliver(reply transport.Reply) bool {
	f.mu.Lock()
	ch, ok := f.waiting[reply.Seq]
	delete(f.waiting, reply.Seq)
	f.mu.Unlock()
	if !ok {
		return false
	}
	ch <- reply
	return true
}

// Emit pushes a signal onto the inbound stream.
func (f *FakeConn) Emit(sig transport.Signal) {
	f.signals <- sig
}

// PropertyChanged builds a (name, value) PropertyChanged signal.
func PropertyChanged(path, iface, name string, value any) transport.Signal {
	return transport.Signal{
		Sender:    ":1.1",
		Path:      path,
		Interface: iface,
		Member:    "PropertyChanged",
		Body:      []any{name, dbus.MakeVariant(value)},
	}
}

// Props builds an a{sv} dictionary from alternating keys and values.
func Props(kv ...any) map[string]dbus.Variant {
	m := make(map[string]dbus.Variant, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		m[kv[i].(string)] = dbus.MakeVariant(kv[i+1])
	}
	return m
}

type fakeChannel struct {
	conn  *FakeConn
	path  string
	iface string
}

func (c *fakeChannel) Path() string      { return c.path }
func (c *fakeChannel) Interface() string { return c.iface }

func (c *fakeChannel) Call(seq uint64, method string, args []any, replies chan<- transport.Reply) error {
	f := c.conn
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return transport.ErrClosed
	}
	if f.SubmitErr != nil {
		err := f.SubmitErr
		f.mu.Unlock()
		return err
	}
	call := FakeCall{Seq: seq, Path: c.path, Interface: c.iface, Method: method, Args: args}
	f.calls = append(f.calls, call)
	f.waiting[seq] = replies
	responder := f.responder
	f.mu.Unlock()

	if responder != nil {
		if reply := responder(call); reply != nil {
			reply.Seq = seq
			go f.deliver(*reply)
		}
	}
	return nil
}
