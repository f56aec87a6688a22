// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package kineticnb

import "github.com/charmbracelet/log"

// Receiver owns the pending-response table, drives the frame codec over
// a Socket, and dispatches success/error callbacks by ack_sequence
// (§4.E). Unlike Sender, a Receiver notifies its own pending handlers
// directly when it fails fatally or is shut down — there is no
// cross-component registration it needs a caller's help untangling on
// its own account.
type Receiver struct {
	sock Socket
	hmac HMACProvider
	opts ConnectionOptions
	log  *log.Logger

	parser  *FrameParser
	pending *pendingTable

	connectionID uint64

	failed       bool
	failedStatus Status
}

// NewReceiver constructs a Receiver reading from sock, verifying HMAC
// auth with hmac, using opts for identity/key lookup and frame bounds.
func NewReceiver(sock Socket, hmac HMACProvider, opts ConnectionOptions) *Receiver {
	return &Receiver{
		sock:    sock,
		hmac:    hmac,
		opts:    opts,
		log:     newComponentLogger("receiver"),
		parser:  NewFrameParser(opts.frame),
		pending: newPendingTable(),
	}
}

// ConnectionID returns the most recently adopted connection_id, or zero
// if none has arrived yet (§3).
func (r *Receiver) ConnectionID() uint64 { return r.connectionID }

// FailedStatus returns the status that caused the most recent fatal
// error. Meaningless unless a Receive call has returned DriveError.
func (r *Receiver) FailedStatus() Status { return r.failedStatus }

// Enqueue registers handler to be invoked when a response with the
// given ack_sequence arrives. Returns false, leaving handler untouched,
// iff handlerKey is already pending (§4.E).
func (r *Receiver) Enqueue(handler Handler, ackSequence, handlerKey uint64) bool {
	return r.pending.enqueue(PendingRequest{HandlerKey: handlerKey, AckSequence: ackSequence, Handler: handler})
}

// Remove cancels a pending request. Returns true iff it was present and
// had not yet received its response.
func (r *Receiver) Remove(handlerKey uint64) bool {
	return r.pending.remove(handlerKey)
}

// DrainPending removes and returns every still-pending request without
// notifying its handler; the caller becomes responsible for notifying
// them. Used by a Service latching after a Sender failure (§4.F).
func (r *Receiver) DrainPending() []PendingRequest {
	return r.pending.drainAll()
}

// Receive drains the socket through the frame codec, dispatching each
// complete frame, until the socket would block or a fatal error occurs.
// A WouldBlock encountered exactly at a frame boundary (no partial frame
// in progress) is reported as DriveIdle rather than DriveIoWait: nothing
// is in flight that needs the caller to revisit this socket with any
// particular urgency.
//
// On a fatal error every currently pending request is notified with the
// failure status, exactly once, before Receive returns.
func (r *Receiver) Receive() DriveResult {
	if r.failed {
		return DriveError
	}
	for {
		frame, err := r.parser.Feed(r.sock)
		if err != nil {
			if err == ErrWouldBlock {
				if r.parser.state == frameAwaitMagic {
					return DriveIdle
				}
				return DriveIoWait
			}
			r.fail(NewStatus(ClientIOError))
			return DriveError
		}
		framesReceived.Inc()
		r.dispatch(frame)
		if r.failed {
			return DriveError
		}
	}
}

// fail latches the Receiver and immediately notifies every currently
// pending handler with status, draining the table.
func (r *Receiver) fail(status Status) {
	r.failed = true
	r.failedStatus = status
	r.log.Errorf("receiver fatal error: %s", status.Message)
	for _, req := range r.pending.drainAll() {
		observeDispatchError(status.Code)
		req.Handler.Error(status, nil)
	}
}

// Shutdown invokes every still-pending handler with CLIENT_SHUTDOWN
// ("Receiver shutdown") exactly once, then empties the table. Go has no
// deterministic destructors; a Service calls this explicitly as part of
// Close (§4.E "Destruction").
func (r *Receiver) Shutdown() {
	status := NewStatusMessage(ClientShutdown, "Receiver shutdown")
	for _, req := range r.pending.drainAll() {
		observeDispatchError(status.Code)
		req.Handler.Error(status, nil)
	}
}

// dispatch interprets one complete frame and notifies the matching
// pending handler, if any (§4.E steps 1-6).
func (r *Receiver) dispatch(frame *Frame) {
	env, err := UnmarshalEnvelope(frame.MessageBytes)
	if err != nil {
		r.fail(NewStatus(ProtocolErrorResponseInvalidFrame))
		return
	}

	var cmd *Command
	if len(env.CommandBytes) > 0 {
		cmd, err = UnmarshalCommand(env.CommandBytes)
		if err != nil {
			r.fail(NewStatus(ProtocolErrorResponseInvalidFrame))
			return
		}
	} else {
		cmd = &Command{}
	}

	if env.AuthType == AuthTypeHMAC {
		ok, verifyErr := r.verifyHMAC(env)
		if verifyErr != nil || !ok {
			// ack_sequence defaults to zero when absent, matching the
			// command header's own optional-field convention; this is
			// a non-fatal per-request failure, not a latch.
			ackSeq, _ := cmd.AckSequence()
			if req, found := r.pending.takeByAckSequence(ackSeq); found {
				status := NewStatus(ClientResponseHMACVerificationError)
				observeDispatchError(status.Code)
				req.Handler.Error(status, nil)
			}
			return
		}
	}

	if connID, ok := cmd.ConnectionID(); ok {
		r.connectionID = connID
	}

	if env.AuthType == AuthTypeUnsolicitedStatus {
		return
	}

	ackSeq, hasAck := cmd.AckSequence()
	if !hasAck {
		if req, ok := r.pending.takeOldest(); ok {
			status := NewStatus(ProtocolErrorResponseNoAckSequence)
			observeDispatchError(status.Code)
			req.Handler.Error(status, nil)
		}
		return
	}

	req, ok := r.pending.takeByAckSequence(ackSeq)
	if !ok {
		// Response to an ack_sequence nobody is waiting on; dropped.
		return
	}
	req.Handler.Handle(cmd, frame.ValueBytes)
}

func (r *Receiver) verifyHMAC(env *Envelope) (bool, error) {
	if env.HMACAuth == nil {
		return false, nil
	}
	key, ok := r.opts.keyFor(env.HMACAuth.Identity)
	if !ok {
		return false, nil
	}
	return r.hmac.Verify(env, key)
}
