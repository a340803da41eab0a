package tapi

import (
	"testing"

	"telephony/internal/logging"
	"telephony/internal/testsupport"
)

const (
	testService = "org.ofono"
	modem0      = "/ril_0"
	modem1      = "/ril_1"
)

func newTestContext(t *testing.T, paths ...string) (*Context, *testsupport.FakeConn) {
	t.Helper()
	if len(paths) == 0 {
		paths = []string{modem0, modem1}
	}
	fake := testsupport.NewFakeConn()
	c := New(fake, Options{
		Service:              testService,
		ModemPaths:           paths,
		MaxHandlers:          8,
		QueueDepth:           16,
		CellListCapacity:     3,
		OperatorListCapacity: 3,
		Logger:               logging.NewNop(),
	})
	return c, fake
}

// pump runs queued tasks and replies on the calling goroutine until both
// queues are empty.
func pump(c *Context) {
	for {
		select {
		case fn := <-c.tasks:
			fn(c)
		case reply := <-c.replies:
			c.handleReply(reply)
		default:
			return
		}
	}
}

// recorder collects callback results, copying payloads out of the envelope.
type recorder struct {
	results []AsyncResult
}

func (r *recorder) callback(ar *AsyncResult) {
	out := *ar
	out.Payload = detach(ar.Payload)
	r.results = append(r.results, out)
}

func (r *recorder) only(t *testing.T) AsyncResult {
	t.Helper()
	if len(r.results) != 1 {
		t.Fatalf("expected exactly one callback, got %d", len(r.results))
	}
	return r.results[0]
}

func lastSeq(t *testing.T, fake *testsupport.FakeConn) uint64 {
	t.Helper()
	call, ok := fake.LastCall()
	if !ok {
		t.Fatal("no call submitted")
	}
	return call.Seq
}
