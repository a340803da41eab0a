// Package tapi is the asynchronous request and subscription core of the
// telephony bridge.
//
// A Context owns the bus connection, the per-slot channel table, every
// in-flight call handler, and every signal watch. All of that state is
// confined to the goroutine running Context.Run; other goroutines hand work to
// it with Submit or Exec. Operations never block: each allocates a Handler,
// submits one remote call (or installs one watch), and later completes the
// handler on the loop.
//
// Replies pass through a fixed pipeline: fault check, exact signature check,
// decode through the property-bag setter tables and list collectors, a single
// callback invocation, then release. Signal deliveries are decoded into a
// tagged Event and handed only to watches of the same Kind.
package tapi
