package transport

import (
	"errors"
	"fmt"

	"github.com/godbus/dbus/v5"
)

// ErrClosed is returned by operations on a closed connection.
var ErrClosed = errors.New("transport: connection closed")

// Fault is an application-level error reply from the remote service.
type Fault struct {
	Name    string
	Message string
}

func (f *Fault) Error() string {
	if f == nil {
		return "<nil fault>"
	}
	if f.Message == "" {
		return f.Name
	}
	return fmt.Sprintf("%s: %s", f.Name, f.Message)
}

// Reply is the completion of one method call. Exactly one of Fault and Err is
// set on failure; Body is only meaningful when both are nil.
type Reply struct {
	Seq   uint64
	Body  []any
	Fault *Fault
	Err   error
}

// Signal is an inbound bus signal.
type Signal struct {
	Sender    string
	Path      string
	Interface string
	Member    string
	Body      []any
}

// Match selects signals. Empty fields match anything. Sender is applied by
// the bus only, since delivered signals carry the unique connection name.
type Match struct {
	Sender    string
	Path      string
	Interface string
	Member    string
}

// Matches reports whether sig satisfies the path, interface, and member parts
// of the rule.
func (m Match) Matches(sig Signal) bool {
	if m.Path != "" && m.Path != sig.Path {
		return false
	}
	if m.Interface != "" && m.Interface != sig.Interface {
		return false
	}
	if m.Member != "" && m.Member != sig.Member {
		return false
	}
	return true
}

func (m Match) String() string {
	return fmt.Sprintf("%s %s %s.%s", m.Sender, m.Path, m.Interface, m.Member)
}

// Channel is a proxy for one interface on one remote object.
type Channel interface {
	Path() string
	Interface() string
	// Call submits method asynchronously. A non-nil error means nothing was
	// sent and no Reply will ever be delivered for seq. Otherwise exactly one
	// Reply carrying seq is later sent on replies.
	Call(seq uint64, method string, args []any, replies chan<- Reply) error
}

// Conn is a single bus connection.
type Conn interface {
	// Channel resolves a proxy for iface on the object at path owned by service.
	Channel(service, path, iface string) (Channel, error)
	AddMatch(m Match) error
	RemoveMatch(m Match) error
	// Signals is closed when the connection closes.
	Signals() <-chan Signal
	Close() error
}

// ValidObjectPath reports whether path is a well-formed D-Bus object path.
func ValidObjectPath(path string) bool {
	return dbus.ObjectPath(path).IsValid()
}
