// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package kineticnb

import (
	"encoding/binary"
	"fmt"

	"code.hybscloud.com/iox"
)

// These are package-level aliases so callers can reference the non-blocking
// control-flow sentinel without importing iox directly.
var (
	// ErrWouldBlock means "no further progress without waiting". It is an
	// expected, non-failure control-flow signal: the caller should stop
	// and retry after the socket becomes ready again.
	ErrWouldBlock = iox.ErrWouldBlock
)

const frameMagic byte = 'F'

const frameHeaderLen = 1 + 4 + 4 // magic + message_length + value_length

// Frame is a fully parsed inbound wire unit (§3, §6).
type Frame struct {
	MessageBytes []byte
	ValueBytes   []byte
}

type frameState uint8

const (
	frameAwaitMagic frameState = iota
	frameAwaitMessageLen
	frameAwaitValueLen
	frameAwaitMessage
	frameAwaitValue
	frameFailed
)

// FrameParser incrementally parses inbound frames from a non-blocking
// Socket. It is a resumable state machine: a read that returns
// SockWouldBlock leaves all buffered prefix bytes and cursor state intact
// so the next Feed call resumes exactly where it left off (§4.C).
//
// The state machine shape — an explicit phase plus per-phase byte offset
// that survives a would-block return — lets a single read call make
// partial progress on a frame and pick back up later without losing or
// re-reading any byte. The wire format itself is the fixed
// magic/message_length/value_length header from §6.
type FrameParser struct {
	opts FrameOptions

	state     frameState
	failedErr error

	magicBuf [1]byte
	magicOff int

	lenBuf [4]byte
	lenOff int

	msgLen uint32
	valLen uint32

	msgBuf []byte
	msgOff int

	valBuf []byte
	valOff int
}

// NewFrameParser constructs a parser with the given bounds. Zero value
// FrameOptions{} falls back to the package defaults.
func NewFrameParser(opts FrameOptions) *FrameParser {
	if opts.MaxMessageLen == 0 {
		opts.MaxMessageLen = defaultFrameOptions.MaxMessageLen
	}
	if opts.MaxValueLen == 0 {
		opts.MaxValueLen = defaultFrameOptions.MaxValueLen
	}
	return &FrameParser{opts: opts}
}

// Feed drives the parser with socket reads until either a complete Frame
// is available, the socket would block (returns ErrWouldBlock), or a
// fatal framing/I/O error occurs. A fatal error is sticky: once returned,
// every subsequent Feed call returns the same error without touching the
// socket again.
func (fp *FrameParser) Feed(sock Socket) (*Frame, error) {
	if fp.state == frameFailed {
		return nil, fp.failedErr
	}
	for {
		switch fp.state {
		case frameAwaitMagic:
			if err := fp.readFull(sock, fp.magicBuf[:], &fp.magicOff); err != nil {
				return nil, err
			}
			if fp.magicBuf[0] != frameMagic {
				return nil, fp.fail(newProtocolError("invalid magic byte %#x", fp.magicBuf[0]))
			}
			fp.state = frameAwaitMessageLen

		case frameAwaitMessageLen:
			if err := fp.readFull(sock, fp.lenBuf[:], &fp.lenOff); err != nil {
				return nil, err
			}
			fp.msgLen = binary.BigEndian.Uint32(fp.lenBuf[:])
			if fp.opts.MaxMessageLen > 0 && int(fp.msgLen) > fp.opts.MaxMessageLen {
				return nil, fp.fail(fmt.Errorf("message_length %d exceeds limit %d: %w", fp.msgLen, fp.opts.MaxMessageLen, ErrTooLong))
			}
			fp.lenOff = 0
			fp.state = frameAwaitValueLen

		case frameAwaitValueLen:
			if err := fp.readFull(sock, fp.lenBuf[:], &fp.lenOff); err != nil {
				return nil, err
			}
			fp.valLen = binary.BigEndian.Uint32(fp.lenBuf[:])
			if fp.opts.MaxValueLen > 0 && int(fp.valLen) > fp.opts.MaxValueLen {
				return nil, fp.fail(fmt.Errorf("value_length %d exceeds limit %d: %w", fp.valLen, fp.opts.MaxValueLen, ErrTooLong))
			}
			fp.msgBuf = make([]byte, fp.msgLen)
			fp.msgOff = 0
			fp.state = frameAwaitMessage

		case frameAwaitMessage:
			if err := fp.readFull(sock, fp.msgBuf, &fp.msgOff); err != nil {
				return nil, err
			}
			fp.valBuf = make([]byte, fp.valLen)
			fp.valOff = 0
			fp.state = frameAwaitValue

		case frameAwaitValue:
			if err := fp.readFull(sock, fp.valBuf, &fp.valOff); err != nil {
				return nil, err
			}
			frame := &Frame{MessageBytes: fp.msgBuf, ValueBytes: fp.valBuf}
			fp.resetForNextFrame()
			return frame, nil
		}
	}
}

// readFull drains sock into buf[*off:], advancing *off across possibly
// many calls. It never discards bytes already copied into buf: on
// SockWouldBlock, *off reflects exactly how much has been consumed so far
// and the same buf/off pair can be passed again on the next Feed call.
func (fp *FrameParser) readFull(sock Socket, buf []byte, off *int) error {
	for *off < len(buf) {
		n, status, err := sock.Read(buf[*off:])
		*off += n
		switch status {
		case SockOK:
			continue
		case SockWouldBlock:
			return ErrWouldBlock
		case SockClosed:
			return fp.fail(newIOError("connection closed mid-frame"))
		default:
			return fp.fail(newIOError("%w", err))
		}
	}
	return nil
}

func (fp *FrameParser) fail(err error) error {
	fp.state = frameFailed
	fp.failedErr = err
	return err
}

func (fp *FrameParser) resetForNextFrame() {
	fp.magicOff = 0
	fp.lenOff = 0
	fp.msgOff = 0
	fp.valOff = 0
	fp.state = frameAwaitMagic
}

// FrameWriter serializes one outbound frame and resumes a partial write
// across WouldBlock returns, byte-for-byte (§4.C outbound, §4.D "a
// partially written frame is remembered byte-for-byte").
type FrameWriter struct {
	buf []byte
	off int
}

// EncodeFrame builds a FrameWriter for one (message, value) pair per the
// exact wire layout in spec.md §6.
func EncodeFrame(message, value []byte) *FrameWriter {
	buf := make([]byte, frameHeaderLen+len(message)+len(value))
	buf[0] = frameMagic
	binary.BigEndian.PutUint32(buf[1:5], uint32(len(message)))
	binary.BigEndian.PutUint32(buf[5:9], uint32(len(value)))
	copy(buf[9:9+len(message)], message)
	copy(buf[9+len(message):], value)
	return &FrameWriter{buf: buf}
}

// WriteTo drives sock.Write until the frame is fully on the wire
// (returns nil) or the socket would block (returns ErrWouldBlock). A
// fatal I/O error is returned as-is; the FrameWriter must not be reused
// after that.
func (fw *FrameWriter) WriteTo(sock Socket) error {
	for fw.off < len(fw.buf) {
		n, status, err := sock.Write(fw.buf[fw.off:])
		fw.off += n
		switch status {
		case SockOK:
			continue
		case SockWouldBlock:
			return ErrWouldBlock
		case SockClosed:
			return newIOError("connection closed mid-write")
		default:
			return newIOError("%w", err)
		}
	}
	return nil
}

// Done reports whether the frame has been fully written.
func (fw *FrameWriter) Done() bool { return fw.off >= len(fw.buf) }

// Started reports whether any byte of the frame has been written yet.
// Used by the Sender to refuse cancelling a request already committed to
// the wire (§4.D).
func (fw *FrameWriter) Started() bool { return fw.off > 0 }
