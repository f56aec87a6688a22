// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package kineticnb

import "container/list"

// PendingRequest is a single outstanding request awaiting a response
// (§3). A handler_key identifies it for cancellation and duplicate
// detection; an ack_sequence correlates it to the eventual response.
type PendingRequest struct {
	HandlerKey  uint64
	AckSequence uint64
	Handler     Handler
}

// pendingEntry is the bookkeeping unit stored alongside its node in the
// FIFO insertion-order list, so a lookup by handler_key can unlink it in
// O(1) without losing the ordering needed to break ack_sequence ties.
type pendingEntry struct {
	req  PendingRequest
	elem *list.Element
}

// pendingTable is the registry of outstanding requests shared by the
// Receiver. It supports lookup by handler_key (cancellation, duplicate
// rejection) and by ack_sequence (response dispatch), with FIFO
// tie-break on ack_sequence collisions across distinct handler_keys
// (§3, §9).
type pendingTable struct {
	byHandlerKey map[uint64]*pendingEntry
	order        *list.List
}

func newPendingTable() *pendingTable {
	return &pendingTable{
		byHandlerKey: make(map[uint64]*pendingEntry),
		order:        list.New(),
	}
}

// enqueue records req. It returns false, without recording or touching
// req.Handler, if HandlerKey is already pending.
func (t *pendingTable) enqueue(req PendingRequest) bool {
	if _, dup := t.byHandlerKey[req.HandlerKey]; dup {
		return false
	}
	entry := &pendingEntry{req: req}
	entry.elem = t.order.PushBack(entry)
	t.byHandlerKey[req.HandlerKey] = entry
	return true
}

// remove deletes the entry for handlerKey if still pending, reporting
// whether it was present.
func (t *pendingTable) remove(handlerKey uint64) bool {
	entry, ok := t.byHandlerKey[handlerKey]
	if !ok {
		return false
	}
	delete(t.byHandlerKey, handlerKey)
	t.order.Remove(entry.elem)
	return true
}

// takeByAckSequence removes and returns the oldest pending entry whose
// AckSequence equals seq.
func (t *pendingTable) takeByAckSequence(seq uint64) (PendingRequest, bool) {
	for e := t.order.Front(); e != nil; e = e.Next() {
		entry := e.Value.(*pendingEntry)
		if entry.req.AckSequence == seq {
			t.order.Remove(e)
			delete(t.byHandlerKey, entry.req.HandlerKey)
			return entry.req, true
		}
	}
	return PendingRequest{}, false
}

// takeOldest removes and returns the single oldest pending entry
// regardless of AckSequence. Used for the reference dispatch-to-oldest
// behavior when a response carries no ack_sequence at all (§4.E step 5,
// §9 Open Question — decision recorded in DESIGN.md).
func (t *pendingTable) takeOldest() (PendingRequest, bool) {
	e := t.order.Front()
	if e == nil {
		return PendingRequest{}, false
	}
	entry := e.Value.(*pendingEntry)
	t.order.Remove(e)
	delete(t.byHandlerKey, entry.req.HandlerKey)
	return entry.req, true
}

// drainAll removes and returns every still-pending request, oldest
// first, leaving the table empty.
func (t *pendingTable) drainAll() []PendingRequest {
	if t.order.Len() == 0 {
		return nil
	}
	all := make([]PendingRequest, 0, t.order.Len())
	for e := t.order.Front(); e != nil; e = e.Next() {
		all = append(all, e.Value.(*pendingEntry).req)
	}
	t.order.Init()
	t.byHandlerKey = make(map[uint64]*pendingEntry)
	return all
}

func (t *pendingTable) len() int { return t.order.Len() }
