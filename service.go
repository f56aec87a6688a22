// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package kineticnb

import "github.com/charmbracelet/log"

// Readiness reports which directions a Service wants to be polled for
// after a Run call — the Go-idiomatic equivalent of populating
// read_fds/write_fds for a select(2)-driven host loop (§4.F, §9).
type Readiness struct {
	FD        int
	WantRead  bool
	WantWrite bool
}

// Service composes a Sender and Receiver over one Socket (§4.F). It
// drives both once per event-loop tick via Run and exposes read/write
// readiness to the host loop. After the first fatal error it latches:
// every subsequent Submit, Remove, and Run short-circuits without
// touching the socket again.
type Service struct {
	sock     Socket
	sender   *Sender
	receiver *Receiver
	log      *log.Logger

	latched bool

	nextHandlerKey uint64
}

// NewService composes a Sender and Receiver over sock, authenticating
// with hmac and opts.
func NewService(sock Socket, hmac HMACProvider, opts ConnectionOptions) *Service {
	return newServiceFrom(sock, NewSender(sock), NewReceiver(sock, hmac, opts))
}

// newServiceFrom lets tests compose a Service around Sender/Receiver
// doubles.
func newServiceFrom(sock Socket, sender *Sender, receiver *Receiver) *Service {
	return &Service{
		sock:     sock,
		sender:   sender,
		receiver: receiver,
		log:      newComponentLogger("service"),
	}
}

// ConnectionID returns the connection_id most recently adopted from an
// inbound command header (§3).
func (s *Service) ConnectionID() uint64 { return s.receiver.ConnectionID() }

// Submit allocates a handler_key, enqueues the request for transmission
// and for response correlation, and returns the key so the caller can
// later Remove it. If the Service has already latched, handler is
// invoked synchronously with CLIENT_SHUTDOWN ("Client already shut
// down") and never touches the socket (§4.F).
func (s *Service) Submit(message, value []byte, ackSequence uint64, handler Handler) uint64 {
	if s.latched {
		status := NewStatusMessage(ClientShutdown, "Client already shut down")
		observeDispatchError(status.Code)
		handler.Error(status, nil)
		return 0
	}
	key := s.allocHandlerKey()
	writer := EncodeFrame(message, value)
	s.sender.Submit(key, writer, handler)
	s.receiver.Enqueue(handler, ackSequence, key)
	return key
}

func (s *Service) allocHandlerKey() uint64 {
	s.nextHandlerKey++
	return s.nextHandlerKey
}

// Remove tries the Sender first; if the Sender removed the request (it
// had not yet been committed to the wire), the matching Receiver
// registration is left in place, mirroring the reference client's
// best-effort, non-symmetric cancellation. If the Sender could not
// remove it, Remove falls through to the Receiver (§4.F).
func (s *Service) Remove(handlerKey uint64) bool {
	if s.latched {
		return false
	}
	if s.sender.Remove(handlerKey) {
		return true
	}
	return s.receiver.Remove(handlerKey)
}

// Run drives the Sender then the Receiver exactly once. It returns the
// readiness the caller should poll for next, and whether the Service is
// still usable (false once latched).
//
// Every key Submit puts in the Sender's queue is also registered with
// the Receiver, so the Receiver's pending table is a superset of
// whatever the Sender still holds. Whichever half fails, that table is
// what gets notified: by the Receiver itself when it fails, and by latch
// when the Sender fails. The Sender's queue is discarded without a
// second notification.
func (s *Service) Run() (Readiness, bool) {
	if s.latched {
		return Readiness{}, false
	}

	sendResult := s.sender.Send()
	if sendResult == DriveError {
		s.latch(NewStatus(ClientIOError), false)
		return Readiness{}, false
	}

	recvResult := s.receiver.Receive()
	if recvResult == DriveError {
		s.latch(s.receiver.FailedStatus(), true)
		return Readiness{}, false
	}

	return Readiness{
		FD:        s.sock.FD(),
		WantRead:  recvResult == DriveIoWait,
		WantWrite: sendResult == DriveIoWait,
	}, true
}

// latch marks the Service unusable and discards the Sender's queue
// without notification. If receiverAlreadyNotified is true the Receiver
// has already fired every handler in its pending table (a superset of
// the Sender's own queue), so nothing more is notified. Otherwise the
// Receiver's pending table is drained here and each of its handlers is
// notified with status: that covers every request still queued in the
// Sender as well as those already on the wire awaiting a response, and
// leaves nothing for Close to fire a second time through
// Receiver.Shutdown.
func (s *Service) latch(status Status, receiverAlreadyNotified bool) {
	if s.latched {
		return
	}
	s.latched = true
	serviceLatched.Inc()
	s.log.Errorf("service latched: %s", status.Message)
	s.sender.Drain()
	if receiverAlreadyNotified {
		return
	}
	for _, req := range s.receiver.DrainPending() {
		observeDispatchError(status.Code)
		req.Handler.Error(status, nil)
	}
}

// Close tears the Service down in the reference destruction order:
// Sender first, then Receiver, then the socket. The Sender's queue is
// discarded without notification since every entry in it is also
// registered with the Receiver, which fires CLIENT_SHUTDOWN for the
// full union exactly once.
func (s *Service) Close() error {
	s.latched = true
	s.sender.Drain()
	s.receiver.Shutdown()
	return s.sock.Close()
}
