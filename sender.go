// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package kineticnb

import (
	"container/list"

	"github.com/charmbracelet/log"
)

// DriveResult reports the outcome of one Sender.Send or Receiver.Receive
// call, the Go-idiomatic equivalent of the {Idle, IoWait, Error} enum
// returned by the reference drive functions (§4.D, §4.E).
type DriveResult uint8

const (
	// DriveIdle means the caller drained everything there currently was
	// to do; nothing is in flight.
	DriveIdle DriveResult = iota
	// DriveIoWait means the socket would block mid-operation; the host
	// loop should wait for readiness before calling again.
	DriveIoWait
	// DriveError means a fatal error occurred; the component has
	// latched and must not be driven again.
	DriveError
)

// outboundRequest is one request queued for transmission.
type outboundRequest struct {
	handlerKey uint64
	writer     *FrameWriter
	handler    Handler
}

// PendingSend describes a still-queued outbound request, surfaced when
// a caller must fail every queued handler after a fatal Sender error or
// discard them during a clean shutdown (§4.D, §4.F).
type PendingSend struct {
	HandlerKey uint64
	Handler    Handler
}

// Sender owns the outbound frame queue and writes it to a Socket under
// WouldBlock semantics (§4.D). It never invokes a Handler itself: on a
// fatal I/O error it marks itself failed and leaves dispatch to the
// caller (the Service), which also holds the matching Receiver
// registration for the same handler_key.
type Sender struct {
	sock Socket
	log  *log.Logger

	queue *list.List // FIFO of *outboundRequest
	byKey map[uint64]*list.Element

	failed bool
}

// NewSender constructs a Sender that writes to sock.
func NewSender(sock Socket) *Sender {
	return &Sender{
		sock:  sock,
		log:   newComponentLogger("sender"),
		queue: list.New(),
		byKey: make(map[uint64]*list.Element),
	}
}

// Submit appends a request to the tail of the outbound queue. It returns
// false, without recording anything, if handlerKey is already queued.
func (s *Sender) Submit(handlerKey uint64, writer *FrameWriter, handler Handler) bool {
	if _, dup := s.byKey[handlerKey]; dup {
		return false
	}
	elem := s.queue.PushBack(&outboundRequest{handlerKey: handlerKey, writer: writer, handler: handler})
	s.byKey[handlerKey] = elem
	return true
}

// Remove cancels a queued request. It returns true iff the request was
// still queued and no byte of its frame had yet been written — a
// partially written frame cannot be un-sent (§4.D).
func (s *Sender) Remove(handlerKey uint64) bool {
	elem, ok := s.byKey[handlerKey]
	if !ok {
		return false
	}
	req := elem.Value.(*outboundRequest)
	if req.writer.Started() {
		return false
	}
	delete(s.byKey, handlerKey)
	s.queue.Remove(elem)
	return true
}

// Send drains the outbound queue onto the wire in FIFO order, resuming a
// partially written frame at its exact byte offset across calls. It
// never invokes a handler.
func (s *Sender) Send() DriveResult {
	if s.failed {
		return DriveError
	}
	for {
		elem := s.queue.Front()
		if elem == nil {
			return DriveIdle
		}
		req := elem.Value.(*outboundRequest)
		if err := req.writer.WriteTo(s.sock); err != nil {
			if err == ErrWouldBlock {
				return DriveIoWait
			}
			s.failed = true
			s.log.Errorf("sender I/O error: %v", err)
			return DriveError
		}
		framesSent.Inc()
		delete(s.byKey, req.handlerKey)
		s.queue.Remove(elem)
	}
}

// Drain removes and returns every still-queued request, emptying the
// queue. The caller decides whether and how to notify the handlers: a
// fatal Sender error requires it, a clean shutdown typically does not
// (the matching Receiver registration handles that instead, see
// service.go).
func (s *Sender) Drain() []PendingSend {
	if s.queue.Len() == 0 {
		return nil
	}
	all := make([]PendingSend, 0, s.queue.Len())
	for e := s.queue.Front(); e != nil; e = e.Next() {
		req := e.Value.(*outboundRequest)
		all = append(all, PendingSend{HandlerKey: req.handlerKey, Handler: req.handler})
	}
	s.queue.Init()
	s.byKey = make(map[uint64]*list.Element)
	return all
}
