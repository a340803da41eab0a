// Package transport is the message-bus boundary of the telephony bridge.
//
// It exposes the narrow surface the bridge core needs from D-Bus: method
// calls on an (object path, interface) channel whose replies arrive on a
// caller-supplied channel, bus-side signal match rules, and a single stream of
// inbound signals. The godbus-backed implementation lives in dbus.go; tests
// substitute testsupport.FakeConn.
//
// Replies are either a Fault (named error plus message), a transport failure,
// or a typed body. Conforms checks a body against the exact D-Bus signature an
// operation expects before anything decodes it.
package transport
