// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package kineticnb

import "crypto/tls"

// fakeSocket is a deterministic in-memory Socket double used to drive
// WouldBlock scenarios without real file descriptors.
type fakeSocket struct {
	readBuf     []byte
	readPos     int
	readBlocked bool

	written      []byte
	writeBlocked bool
	writeLimited bool // when true, Write blocks once writeBudget is exhausted
	writeBudget  int

	closed bool
}

func (s *fakeSocket) FD() int { return 0 }

func (s *fakeSocket) TLSConnectionState() *tls.ConnectionState { return nil }

func (s *fakeSocket) Read(p []byte) (int, SockStatus, error) {
	if s.readBlocked || s.readPos >= len(s.readBuf) {
		return 0, SockWouldBlock, nil
	}
	n := copy(p, s.readBuf[s.readPos:])
	s.readPos += n
	return n, SockOK, nil
}

// feed appends more bytes for subsequent Read calls to return, the
// equivalent of the peer writing more data onto the wire.
func (s *fakeSocket) feed(b []byte) { s.readBuf = append(s.readBuf, b...) }

func (s *fakeSocket) Write(p []byte) (int, SockStatus, error) {
	if s.writeBlocked {
		return 0, SockWouldBlock, nil
	}
	n := len(p)
	if s.writeLimited {
		if s.writeBudget <= 0 {
			return 0, SockWouldBlock, nil
		}
		if n > s.writeBudget {
			n = s.writeBudget
		}
		s.writeBudget -= n
	}
	s.written = append(s.written, p[:n]...)
	return n, SockOK, nil
}

func (s *fakeSocket) Close() error { s.closed = true; return nil }
