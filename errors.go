// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package kineticnb

import "fmt"

// StatusCode identifies the class of a Status reported to a Handler.
//
// Codes are a closed set: every one is produced internally by the core
// (the HMAC provider, the frame codec, the pending-request registry, or
// the Service latch). Callers never construct one directly.
type StatusCode uint8

const (
	// StatusSuccess indicates the request completed normally. It is never
	// passed to Handler.Error; Handler.Handle implies success.
	StatusSuccess StatusCode = iota

	// ClientIOError indicates a non-recoverable socket or framing
	// failure. It is fatal: the Service latches and every other pending
	// handler receives the same status.
	ClientIOError

	// ClientResponseHMACVerificationError indicates a response frame's
	// HMAC did not match. It is per-request and non-fatal.
	ClientResponseHMACVerificationError

	// ClientShutdown is reported to every still-pending handler when the
	// Receiver or Service is destroyed, or when Submit is called after a
	// fatal error has already latched the Service.
	ClientShutdown

	// ProtocolErrorResponseNoAckSequence indicates an authenticated
	// response frame parsed correctly but carried no ack_sequence.
	ProtocolErrorResponseNoAckSequence

	// ProtocolErrorResponseInvalidFrame indicates a response envelope or
	// command failed to deserialize.
	ProtocolErrorResponseInvalidFrame
)

// statusMessages holds the fixed, human-readable message for each code.
// Tests assert on these literal strings.
var statusMessages = map[StatusCode]string{
	ClientIOError:                       "I/O read error",
	ClientResponseHMACVerificationError: "Response HMAC mismatch",
	ClientShutdown:                      "Receiver shutdown",
	ProtocolErrorResponseNoAckSequence:  "Response had no acksequence",
	ProtocolErrorResponseInvalidFrame:   "Response frame invalid",
}

// Status is the error value delivered to Handler.Error.
type Status struct {
	Code    StatusCode
	Message string
}

// NewStatus builds a Status with the code's fixed message.
func NewStatus(code StatusCode) Status {
	return Status{Code: code, Message: statusMessages[code]}
}

// NewStatusMessage builds a Status with an explicit message, used where the
// wording differs by call site (e.g. "Receiver shutdown" vs. "Client
// already shut down", both ClientShutdown).
func NewStatusMessage(code StatusCode, msg string) Status {
	return Status{Code: code, Message: msg}
}

func (s Status) Error() string { return s.Message }

// Ok reports whether the status represents success.
func (s Status) Ok() bool { return s.Code == StatusSuccess }

// ProtocolError wraps a framing failure (an invalid magic byte) detected
// by the frame codec. Always fatal. Oversize lengths are reported with
// ErrTooLong instead, and envelope/command deserialization failures are
// reported by the receiver as a ProtocolErrorResponseInvalidFrame status.
type ProtocolError struct{ Err error }

func (e *ProtocolError) Error() string { return fmt.Sprintf("kineticnb: protocol error: %v", e.Err) }
func (e *ProtocolError) Unwrap() error { return e.Err }

func newProtocolError(f string, a ...interface{}) error {
	return &ProtocolError{Err: fmt.Errorf(f, a...)}
}

// IOError wraps a fatal Socket-level failure (Closed or Error).
type IOError struct{ Err error }

func (e *IOError) Error() string { return fmt.Sprintf("kineticnb: I/O error: %v", e.Err) }
func (e *IOError) Unwrap() error { return e.Err }

func newIOError(f string, a ...interface{}) error {
	return &IOError{Err: fmt.Errorf(f, a...)}
}

// ErrInvalidArgument reports a nil or malformed argument to a public
// constructor.
var ErrInvalidArgument = fmt.Errorf("kineticnb: invalid argument")

// ErrTooLong reports that a frame's declared message_length or
// value_length exceeds the configured limit.
var ErrTooLong = fmt.Errorf("kineticnb: frame too long")
