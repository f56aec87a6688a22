// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package kineticnb

import "testing"

const testIdentity = 3

var testKey = []byte("key")

func testOpts() ConnectionOptions {
	return NewConnectionOptions(testIdentity, testKey)
}

// writeHMACFrame builds a wire frame for cmd authenticated under identity
// 3 / key "key" and feeds it onto sock.
func writeHMACFrame(t *testing.T, sock *fakeSocket, cmd *Command, value []byte, authType AuthType) {
	t.Helper()
	cmdBytes, err := MarshalCommand(cmd)
	if err != nil {
		t.Fatalf("MarshalCommand: %v", err)
	}
	env := &Envelope{AuthType: authType, CommandBytes: cmdBytes}
	if authType == AuthTypeHMAC {
		env.HMACAuth = &HMACAuth{Identity: testIdentity}
		mac, err := HMACProvider{}.Compute(env, testKey)
		if err != nil {
			t.Fatalf("Compute: %v", err)
		}
		env.HMACAuth.HMAC = mac
	}
	msgBytes, err := MarshalEnvelope(env)
	if err != nil {
		t.Fatalf("MarshalEnvelope: %v", err)
	}
	var wire fakeSocket
	if err := EncodeFrame(msgBytes, value).WriteTo(&wire); err != nil {
		t.Fatalf("WriteTo: %v", err)
	}
	sock.feed(wire.written)
}

func ackCmd(seq uint64) *Command {
	return &Command{Header: &CommandHeader{AckSequence: &seq}}
}

func TestReceiverSimpleMessageAndValue(t *testing.T) {
	sock := &fakeSocket{}
	recv := NewReceiver(sock, HMACProvider{}, testOpts())
	h := &recordingHandler{}

	if !recv.Enqueue(h, 33, 0) {
		t.Fatal("Enqueue should succeed")
	}
	writeHMACFrame(t, sock, ackCmd(33), []byte("value"), AuthTypeHMAC)

	if result := recv.Receive(); result != DriveIdle {
		t.Fatalf("Receive() = %v, want DriveIdle", result)
	}
	if h.handleCalls != 1 {
		t.Fatalf("expected 1 Handle call, got %d", h.handleCalls)
	}
	if string(h.lastValue) != "value" {
		t.Fatalf("value = %q", h.lastValue)
	}
}

func TestReceiverOutOfOrderResponses(t *testing.T) {
	sock := &fakeSocket{}
	recv := NewReceiver(sock, HMACProvider{}, testOpts())
	h1 := &recordingHandler{}
	h2 := &recordingHandler{}
	recv.Enqueue(h1, 33, 0)
	recv.Enqueue(h2, 44, 1)

	writeHMACFrame(t, sock, ackCmd(44), []byte("value2"), AuthTypeHMAC)
	writeHMACFrame(t, sock, ackCmd(33), []byte("value1"), AuthTypeHMAC)

	if result := recv.Receive(); result != DriveIdle {
		t.Fatalf("Receive() = %v, want DriveIdle", result)
	}
	if h1.handleCalls != 1 || string(h1.lastValue) != "value1" {
		t.Fatalf("h1: calls=%d value=%q", h1.handleCalls, h1.lastValue)
	}
	if h2.handleCalls != 1 || string(h2.lastValue) != "value2" {
		t.Fatalf("h2: calls=%d value=%q", h2.handleCalls, h2.lastValue)
	}
}

func TestReceiverDuplicateHandlerKeyRejectedButAckSequenceReusable(t *testing.T) {
	sock := &fakeSocket{}
	recv := NewReceiver(sock, HMACProvider{}, testOpts())
	h2 := &recordingHandler{}
	h3 := &recordingHandler{}

	recv.Enqueue(&recordingHandler{}, 34, 0)
	if recv.Enqueue(h2, 34, 0) {
		t.Fatal("duplicate handler_key must be rejected")
	}
	if !recv.Enqueue(h3, 34, 1) {
		t.Fatal("ack_sequence 34 should still be reusable under a new handler_key")
	}

	writeHMACFrame(t, sock, ackCmd(34), nil, AuthTypeHMAC)
	recv.Receive()

	// The FIFO tie-break means the first (key 0) registration wins the
	// match, not h3.
	if h2.calls() != 0 {
		t.Fatal("rejected handler must never be invoked")
	}
}

func TestReceiverCallsErrorWhenNoAckSequence(t *testing.T) {
	sock := &fakeSocket{}
	recv := NewReceiver(sock, HMACProvider{}, testOpts())
	h := &recordingHandler{}
	recv.Enqueue(h, 33, 0)

	writeHMACFrame(t, sock, &Command{}, nil, AuthTypeHMAC)

	if result := recv.Receive(); result != DriveIdle {
		t.Fatalf("Receive() = %v, want DriveIdle", result)
	}
	if h.errorCalls != 1 {
		t.Fatalf("expected 1 Error call, got %d", h.errorCalls)
	}
	if h.lastStatus.Code != ProtocolErrorResponseNoAckSequence {
		t.Fatalf("status code = %v", h.lastStatus.Code)
	}
}

func TestReceiverHandlesHMACMismatch(t *testing.T) {
	sock := &fakeSocket{}
	recv := NewReceiver(sock, HMACProvider{}, testOpts())
	h := &recordingHandler{}
	recv.Enqueue(h, 0, 0)

	cmdBytes, _ := MarshalCommand(&Command{})
	env := &Envelope{AuthType: AuthTypeHMAC, HMACAuth: &HMACAuth{Identity: testIdentity}, CommandBytes: cmdBytes}
	mac, _ := HMACProvider{}.Compute(env, []byte("wrong_hmac"))
	env.HMACAuth.HMAC = mac
	msgBytes, _ := MarshalEnvelope(env)
	var wire fakeSocket
	if err := EncodeFrame(msgBytes, nil).WriteTo(&wire); err != nil {
		t.Fatalf("WriteTo: %v", err)
	}
	sock.feed(wire.written)

	if result := recv.Receive(); result != DriveIdle {
		t.Fatalf("Receive() = %v, want DriveIdle", result)
	}
	if h.errorCalls != 1 {
		t.Fatalf("expected 1 Error call, got %d", h.errorCalls)
	}
	if h.lastStatus.Code != ClientResponseHMACVerificationError {
		t.Fatalf("status code = %v", h.lastStatus.Code)
	}
}

func TestReceiverAdoptsConnectionID(t *testing.T) {
	sock := &fakeSocket{}
	recv := NewReceiver(sock, HMACProvider{}, testOpts())
	h := &recordingHandler{}
	recv.Enqueue(h, 0, 0)

	connID := uint64(42)
	cmd := &Command{Header: &CommandHeader{ConnectionID: &connID}}
	writeHMACFrame(t, sock, cmd, nil, AuthTypeUnsolicitedStatus)

	recv.Receive()
	if recv.ConnectionID() != 42 {
		t.Fatalf("ConnectionID() = %d, want 42", recv.ConnectionID())
	}
	if h.calls() != 0 {
		t.Fatal("an UNSOLICITED_STATUS frame must not dispatch to any pending handler")
	}
}

func TestReceiverInvalidMagicIsFatal(t *testing.T) {
	sock := &fakeSocket{readBuf: []byte{'E'}}
	recv := NewReceiver(sock, HMACProvider{}, testOpts())
	h1 := &recordingHandler{}
	h2 := &recordingHandler{}
	recv.Enqueue(h1, 0, 0)
	recv.Enqueue(h2, 1, 1)

	if result := recv.Receive(); result != DriveError {
		t.Fatalf("Receive() = %v, want DriveError", result)
	}
	for _, h := range []*recordingHandler{h1, h2} {
		if h.errorCalls != 1 {
			t.Fatalf("expected exactly 1 Error call, got %d", h.errorCalls)
		}
		if h.lastStatus.Code != ClientIOError {
			t.Fatalf("status code = %v, want ClientIOError", h.lastStatus.Code)
		}
		if h.lastStatus.Message != "I/O read error" {
			t.Fatalf("status message = %q", h.lastStatus.Message)
		}
	}
}

func TestReceiverRemove(t *testing.T) {
	sock := &fakeSocket{}
	recv := NewReceiver(sock, HMACProvider{}, testOpts())
	recv.Enqueue(&recordingHandler{}, 1, 1)

	if !recv.Remove(1) {
		t.Fatal("remove of a present entry should succeed")
	}
	if recv.Remove(1) {
		t.Fatal("removing an already-removed entry should fail")
	}
}

func TestReceiverShutdownNotifiesPendingExactlyOnce(t *testing.T) {
	sock := &fakeSocket{}
	recv := NewReceiver(sock, HMACProvider{}, testOpts())
	h1 := &recordingHandler{}
	h2 := &recordingHandler{}
	recv.Enqueue(h1, 1, 1)
	recv.Enqueue(h2, 2, 2)

	recv.Shutdown()

	for _, h := range []*recordingHandler{h1, h2} {
		if h.errorCalls != 1 {
			t.Fatalf("expected exactly 1 Error call, got %d", h.errorCalls)
		}
		if h.lastStatus.Code != ClientShutdown || h.lastStatus.Message != "Receiver shutdown" {
			t.Fatalf("status = %+v", h.lastStatus)
		}
	}
}
