// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package kineticnb

// Handler is the callback contract exposed to the upper layer (§4.G).
// Exactly one of Handle or Error is invoked, exactly once, across a
// handler's lifetime: the core never calls both, never calls either
// twice, and never silently drops a handler.
type Handler interface {
	// Handle is invoked with the deserialized response command and its
	// associated value bytes on success.
	Handle(cmd *Command, value []byte)

	// Error is invoked on failure. cmd is non-nil only when a command
	// was successfully parsed before the failure was detected (§7
	// propagation rules).
	Error(status Status, cmd *Command)
}

// HandlerFunc adapts a pair of plain functions to the Handler interface,
// for ad hoc construction without a named type — the same ergonomic
// shape as the standard library's http.HandlerFunc.
type HandlerFunc struct {
	HandleFn func(cmd *Command, value []byte)
	ErrorFn  func(status Status, cmd *Command)
}

func (f HandlerFunc) Handle(cmd *Command, value []byte) {
	if f.HandleFn != nil {
		f.HandleFn(cmd, value)
	}
}

func (f HandlerFunc) Error(status Status, cmd *Command) {
	if f.ErrorFn != nil {
		f.ErrorFn(status, cmd)
	}
}
