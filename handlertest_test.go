// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package kineticnb

// recordingHandler is a Handler double that records every invocation,
// used across the package's tests to assert exactly-once dispatch and
// inspect the delivered status/command/value.
type recordingHandler struct {
	handleCalls int
	errorCalls  int

	lastCmd    *Command
	lastValue  []byte
	lastStatus Status
}

func (h *recordingHandler) Handle(cmd *Command, value []byte) {
	h.handleCalls++
	h.lastCmd = cmd
	h.lastValue = value
}

func (h *recordingHandler) Error(status Status, cmd *Command) {
	h.errorCalls++
	h.lastStatus = status
	h.lastCmd = cmd
}

func (h *recordingHandler) calls() int { return h.handleCalls + h.errorCalls }
