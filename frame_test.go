// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package kineticnb

import (
	"bytes"
	"errors"
	"testing"
)

func TestFrameRoundTrip(t *testing.T) {
	writer := EncodeFrame([]byte("hello"), []byte("world"))
	sock := &fakeSocket{}
	if err := writer.WriteTo(sock); err != nil {
		t.Fatalf("WriteTo: %v", err)
	}
	if !writer.Done() {
		t.Fatal("writer should be done")
	}

	rsock := &fakeSocket{readBuf: sock.written}
	parser := NewFrameParser(FrameOptions{})
	frame, err := parser.Feed(rsock)
	if err != nil {
		t.Fatalf("Feed: %v", err)
	}
	if !bytes.Equal(frame.MessageBytes, []byte("hello")) {
		t.Fatalf("message = %q", frame.MessageBytes)
	}
	if !bytes.Equal(frame.ValueBytes, []byte("world")) {
		t.Fatalf("value = %q", frame.ValueBytes)
	}
}

func TestFrameParserResumesAcrossWouldBlock(t *testing.T) {
	writer := EncodeFrame([]byte("msg"), []byte("val"))
	fullSock := &fakeSocket{}
	if err := writer.WriteTo(fullSock); err != nil {
		t.Fatalf("WriteTo: %v", err)
	}
	full := fullSock.written

	sock := &fakeSocket{readBuf: full[:3]} // magic + half of message_length
	parser := NewFrameParser(FrameOptions{})

	frame, err := parser.Feed(sock)
	if err != ErrWouldBlock {
		t.Fatalf("expected ErrWouldBlock, got frame=%v err=%v", frame, err)
	}

	sock.feed(full[3:])
	frame, err = parser.Feed(sock)
	if err != nil {
		t.Fatalf("Feed after resume: %v", err)
	}
	if !bytes.Equal(frame.MessageBytes, []byte("msg")) || !bytes.Equal(frame.ValueBytes, []byte("val")) {
		t.Fatalf("unexpected frame contents: %+v", frame)
	}
}

func TestFrameParserRejectsInvalidMagic(t *testing.T) {
	sock := &fakeSocket{readBuf: []byte{'E'}}
	parser := NewFrameParser(FrameOptions{})
	_, err := parser.Feed(sock)
	if err == nil || errors.Is(err, ErrWouldBlock) {
		t.Fatalf("expected a fatal protocol error, got %v", err)
	}
	var protoErr *ProtocolError
	if !errors.As(err, &protoErr) {
		t.Fatalf("expected *ProtocolError, got %T: %v", err, err)
	}

	// The failure is sticky: a second Feed call returns the same error
	// without touching the socket again.
	_, err2 := parser.Feed(sock)
	if err2 != err {
		t.Fatalf("expected sticky error, got %v", err2)
	}
}

func TestFrameParserRejectsOversizeMessage(t *testing.T) {
	writer := EncodeFrame(make([]byte, 100), nil)
	fullSock := &fakeSocket{}
	_ = writer.WriteTo(fullSock)

	parser := NewFrameParser(FrameOptions{MaxMessageLen: 10, MaxValueLen: 10})
	sock := &fakeSocket{readBuf: fullSock.written}
	_, err := parser.Feed(sock)
	if err == nil || !errors.Is(err, ErrTooLong) {
		t.Fatalf("expected ErrTooLong, got %v", err)
	}
}

func TestFrameWriterResumesAcrossWouldBlock(t *testing.T) {
	writer := EncodeFrame([]byte("abcdef"), nil)
	sock := &fakeSocket{writeLimited: true, writeBudget: 3}

	if err := writer.WriteTo(sock); err != ErrWouldBlock {
		t.Fatalf("first WriteTo: got %v, want ErrWouldBlock", err)
	}
	if writer.Done() {
		t.Fatal("writer should not be done after a partial write")
	}
	if !writer.Started() {
		t.Fatal("writer should have started")
	}

	sock.writeLimited = false
	if err := writer.WriteTo(sock); err != nil {
		t.Fatalf("second WriteTo: %v", err)
	}
	if !writer.Done() {
		t.Fatal("writer should be done")
	}
	if len(sock.written) != frameHeaderLen+6 {
		t.Fatalf("wrote %d bytes, want %d", len(sock.written), frameHeaderLen+6)
	}
}

func TestFrameWriterWouldBlock(t *testing.T) {
	writer := EncodeFrame([]byte("x"), nil)
	sock := &fakeSocket{writeBlocked: true}
	if err := writer.WriteTo(sock); err != ErrWouldBlock {
		t.Fatalf("expected ErrWouldBlock, got %v", err)
	}
	if writer.Started() {
		t.Fatal("writer should not have started")
	}
}
