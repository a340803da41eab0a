package tapi

import (
	"fmt"

	"telephony/internal/logging"
	"telephony/internal/transport"
)

// replyDecoder turns a signature-checked reply body into the result count and
// payload. release runs after the callback returns.
type replyDecoder func(body []any) (count int, payload any, release func())

// expectation is what an operation requires of its reply.
type expectation struct {
	signature string
	decode    replyDecoder
}

type pendingCall struct {
	handler *Handler
	method  string
	path    string
	expect  expectation
}

// invoke submits method on ch for h. When submission fails the handler is
// released at once and its callback never runs.
func (c *Context) invoke(ch transport.Channel, method string, args []any, h *Handler, expect expectation) error {
	c.seq++
	seq := c.seq
	if err := ch.Call(seq, method, args, c.replies); err != nil {
		h.release()
		return fmt.Errorf("%w: %s.%s on %s: %w", ErrIO, ch.Interface(), method, ch.Path(), err)
	}
	c.pending[seq] = &pendingCall{handler: h, method: method, path: ch.Path(), expect: expect}
	c.logger.Debug("call submitted",
		logging.String(logging.FieldOperation, h.Kind().String()),
		logging.Int(logging.FieldSlot, h.Slot()),
		logging.String("method", ch.Interface()+"."+method),
		logging.String("path", ch.Path()),
		logging.String(logging.FieldCorrelationID, h.CorrelationID()),
	)
	return nil
}

// handleReply completes the call reply belongs to: fault check, signature
// check, decode, callback, release.
func (c *Context) handleReply(reply transport.Reply) {
	call, ok := c.pending[reply.Seq]
	if !ok {
		c.logger.Debug("late reply dropped", logging.Uint64("seq", reply.Seq))
		return
	}
	delete(c.pending, reply.Seq)
	h := call.handler
	attrs := []logging.Attr{
		logging.String(logging.FieldOperation, h.Kind().String()),
		logging.Int(logging.FieldSlot, h.Slot()),
		logging.String("method", call.method),
		logging.String(logging.FieldCorrelationID, h.CorrelationID()),
	}

	if reply.Fault != nil {
		logging.WarnWithContext(c.logger, "remote fault", "remote_fault", append(attrs,
			logging.String("fault", reply.Fault.Name),
			logging.String("fault_message", reply.Fault.Message),
			logging.String(logging.FieldErrorHint, "inspect the modem service state"),
			logging.String(logging.FieldImpact, "operation reported as failed"),
		)...)
		h.complete(StatusError, 0, nil, fmt.Errorf("%w: %w", ErrRemoteFault, reply.Fault))
		return
	}
	if reply.Err != nil {
		logging.WarnWithContext(c.logger, "call failed", "call_failed", append(attrs, logging.Error(reply.Err))...)
		h.complete(StatusError, 0, nil, fmt.Errorf("%w: %w", ErrIO, reply.Err))
		return
	}
	if err := transport.Conforms(reply.Body, call.expect.signature); err != nil {
		logging.WarnWithContext(c.logger, "unexpected reply signature", "protocol_mismatch", append(attrs,
			logging.String("expected", call.expect.signature),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check the modem service version"),
			logging.String(logging.FieldImpact, "reply discarded"),
		)...)
		h.complete(StatusError, 0, nil, fmt.Errorf("%w: %s: %w", ErrProtocolMismatch, call.method, err))
		return
	}

	count, payload, release := 0, any(nil), func() {}
	if call.expect.decode != nil {
		count, payload, release = call.expect.decode(reply.Body)
	}
	c.logger.Debug("call completed", logging.Args(append(attrs, logging.Int("count", count))...)...)
	h.complete(StatusOK, count, payload, nil)
	release()
}
