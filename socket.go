// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package kineticnb

import (
	"crypto/tls"
	"errors"
	"io"
	"net"
	"syscall"

	"golang.org/x/sys/unix"
)

// SockStatus classifies the outcome of a single non-blocking Socket.Read
// or Socket.Write call.
type SockStatus uint8

const (
	// SockOK means n bytes were moved and the caller may try again
	// immediately if it wants more.
	SockOK SockStatus = iota
	// SockWouldBlock means no further progress is possible right now;
	// the caller must wait for readiness and retry.
	SockWouldBlock
	// SockClosed means the peer closed the connection (read) or the
	// local side can no longer write.
	SockClosed
	// SockError means an unrecoverable I/O error occurred.
	SockError
)

// Socket is a non-blocking byte channel with a pollable descriptor. It may
// wrap a plaintext or TLS stream (§4.A). Implementations never block.
type Socket interface {
	// FD returns the descriptor usable with select/poll/epoll.
	FD() int

	// TLSConnectionState returns the negotiated TLS state, or nil for a
	// plaintext socket.
	TLSConnectionState() *tls.ConnectionState

	// Read attempts to read into p without blocking.
	Read(p []byte) (int, SockStatus, error)

	// Write attempts to write p without blocking.
	Write(p []byte) (int, SockStatus, error)

	// Close releases the underlying descriptor.
	Close() error
}

// plainSocket wraps a *net.TCPConn placed in non-blocking mode, grounded
// on the gvisor hostinet socket pattern of keeping a raw fd in O_NONBLOCK.
// Readiness is expressed as an explicit SockStatus instead of a sentinel
// error, since the core dispatches on it directly rather than threading
// it through io.Reader/io.Writer.
type plainSocket struct {
	conn *net.TCPConn
	fd   int
}

// NewSocket wraps conn for non-blocking use by a Service. It applies the
// recommended TCP tuning (ConfigureTCP) and places the connection's
// underlying file descriptor in O_NONBLOCK mode.
func NewSocket(conn *net.TCPConn) (Socket, error) {
	if conn == nil {
		return nil, ErrInvalidArgument
	}
	if err := configureByKind(netTCP, conn); err != nil {
		return nil, err
	}
	fd, err := nonblockingFD(conn)
	if err != nil {
		return nil, err
	}
	return &plainSocket{conn: conn, fd: fd}, nil
}

// nonblockingFD extracts the raw descriptor from conn and sets O_NONBLOCK
// on it, returning the descriptor for use with an external readiness
// loop.
func nonblockingFD(conn syscall.Conn) (int, error) {
	raw, err := conn.SyscallConn()
	if err != nil {
		return 0, err
	}
	var fd int
	var setErr error
	ctlErr := raw.Control(func(d uintptr) {
		fd = int(d)
		setErr = unix.SetNonblock(fd, true)
	})
	if ctlErr != nil {
		return 0, ctlErr
	}
	if setErr != nil {
		return 0, setErr
	}
	return fd, nil
}

func (s *plainSocket) FD() int { return s.fd }

func (s *plainSocket) TLSConnectionState() *tls.ConnectionState { return nil }

func (s *plainSocket) Read(p []byte) (int, SockStatus, error) {
	return classifyIO(s.conn.Read(p))
}

func (s *plainSocket) Write(p []byte) (int, SockStatus, error) {
	return classifyIO(s.conn.Write(p))
}

func (s *plainSocket) Close() error { return s.conn.Close() }

// tlsSocket wraps a *tls.Conn whose handshake has already completed by
// the time it reaches this package (TLS handshake/lifecycle is out of
// scope per spec §1). Non-blocking behavior relies on the caller having
// placed the underlying net.Conn in non-blocking mode before handing it
// to tls.Client/tls.Server.
type tlsSocket struct {
	conn *tls.Conn
	fd   int
}

// NewTLSSocket wraps an already-handshaked TLS connection for non-blocking
// use. base is the same syscall.Conn the TLS handshake was performed
// over; its descriptor must already be non-blocking.
func NewTLSSocket(conn *tls.Conn, base syscall.Conn) (Socket, error) {
	if conn == nil || base == nil {
		return nil, ErrInvalidArgument
	}
	fd, err := nonblockingFD(base)
	if err != nil {
		return nil, err
	}
	return &tlsSocket{conn: conn, fd: fd}, nil
}

func (s *tlsSocket) FD() int { return s.fd }

func (s *tlsSocket) TLSConnectionState() *tls.ConnectionState {
	st := s.conn.ConnectionState()
	return &st
}

func (s *tlsSocket) Read(p []byte) (int, SockStatus, error) {
	return classifyIO(s.conn.Read(p))
}

func (s *tlsSocket) Write(p []byte) (int, SockStatus, error) {
	return classifyIO(s.conn.Write(p))
}

func (s *tlsSocket) Close() error { return s.conn.Close() }

// classifyIO translates a raw net/tls Read or Write result into the
// SockStatus contract: would-block, closed, or error. Zero-byte reads
// with a nil error never happen for these transports, but are still
// treated as would-block defensively, guarding against a non-conformant
// Reader.
func classifyIO(n int, err error) (int, SockStatus, error) {
	if err == nil {
		if n == 0 {
			return 0, SockWouldBlock, nil
		}
		return n, SockOK, nil
	}
	if errors.Is(err, io.EOF) {
		return n, SockClosed, nil
	}
	if isWouldBlock(err) {
		return n, SockWouldBlock, nil
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return n, SockWouldBlock, nil
	}
	return n, SockError, err
}

func isWouldBlock(err error) bool {
	return errors.Is(err, syscall.EAGAIN) || errors.Is(err, syscall.EWOULDBLOCK)
}
