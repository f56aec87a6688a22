// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package kineticnb

import (
	"github.com/fxamacker/cbor/v2"
)

// AuthType identifies how an Envelope is authenticated.
type AuthType uint8

const (
	// AuthTypeHMAC authenticates the envelope with a keyed MAC (§4.B).
	AuthTypeHMAC AuthType = 1
	// AuthTypeUnsolicitedStatus marks a server-initiated status frame
	// that carries no request-scoped handler (§4.E step 3).
	AuthTypeUnsolicitedStatus AuthType = 2
	// AuthTypePin authenticates with a device PIN; the core treats it as
	// opaque and never dispatches on it directly.
	AuthTypePin AuthType = 3
)

// HMACAuth carries the identity the MAC was computed under and the MAC
// itself.
type HMACAuth struct {
	Identity uint64 `cbor:"1,keyasint"`
	HMAC     []byte `cbor:"2,keyasint,omitempty"`
}

// Envelope is the authenticated wrapper around a serialized Command. It is
// opaque to the frame codec (§3): the codec only ever sees it as bytes.
type Envelope struct {
	AuthType      AuthType  `cbor:"1,keyasint"`
	HMACAuth      *HMACAuth `cbor:"2,keyasint,omitempty"`
	CommandBytes  []byte    `cbor:"3,keyasint,omitempty"`
}

// CommandHeader carries the fields the receiver correlates on. Pointers
// distinguish "absent" from the zero value, matching spec's "optional"
// semantics for ack_sequence/connection_id.
type CommandHeader struct {
	AckSequence  *uint64 `cbor:"1,keyasint,omitempty"`
	ConnectionID *uint64 `cbor:"2,keyasint,omitempty"`
}

// CommandStatus carries the server's reported outcome for a request.
type CommandStatus struct {
	Code StatusCode `cbor:"1,keyasint"`
}

// Command is the semantic request/response payload inside an Envelope. It
// is opaque to the frame codec; the receiver deserializes it to read
// Header and Status.
type Command struct {
	Header *CommandHeader `cbor:"1,keyasint,omitempty"`
	Status CommandStatus  `cbor:"2,keyasint"`
}

// AckSequence returns the command's ack_sequence and whether it was
// present.
func (c *Command) AckSequence() (uint64, bool) {
	if c == nil || c.Header == nil || c.Header.AckSequence == nil {
		return 0, false
	}
	return *c.Header.AckSequence, true
}

// ConnectionID returns the command's connection_id and whether it was
// present.
func (c *Command) ConnectionID() (uint64, bool) {
	if c == nil || c.Header == nil || c.Header.ConnectionID == nil {
		return 0, false
	}
	return *c.Header.ConnectionID, true
}

var cborEncMode = func() cbor.EncMode {
	m, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(err)
	}
	return m
}()

// MarshalEnvelope serializes an Envelope to its canonical CBOR form.
func MarshalEnvelope(env *Envelope) ([]byte, error) {
	return cborEncMode.Marshal(env)
}

// UnmarshalEnvelope deserializes an Envelope from CBOR bytes.
func UnmarshalEnvelope(b []byte) (*Envelope, error) {
	var env Envelope
	if err := cbor.Unmarshal(b, &env); err != nil {
		return nil, err
	}
	return &env, nil
}

// MarshalCommand serializes a Command to its canonical CBOR form.
func MarshalCommand(cmd *Command) ([]byte, error) {
	return cborEncMode.Marshal(cmd)
}

// UnmarshalCommand deserializes a Command from CBOR bytes.
func UnmarshalCommand(b []byte) (*Command, error) {
	var cmd Command
	if err := cbor.Unmarshal(b, &cmd); err != nil {
		return nil, err
	}
	return &cmd, nil
}

// authBytes returns the canonical serialization of env with HMACAuth.HMAC
// cleared, i.e. the bytes the HMAC provider signs/verifies over (§4.B:
// "over the canonical serialization of the envelope minus the
// hmac_auth.hmac field itself").
func authBytes(env *Envelope) ([]byte, error) {
	clone := *env
	if env.HMACAuth != nil {
		h := *env.HMACAuth
		h.HMAC = nil
		clone.HMACAuth = &h
	}
	return MarshalEnvelope(&clone)
}
