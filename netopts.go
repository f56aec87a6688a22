// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package kineticnb

import (
	"net"
	"time"
)

// Socket-level network tuning helpers.
//
// Single source of truth — transport kind → tuning applied before the
// connection is handed to NewSocket:
//   - TCP  → TCP_NODELAY on, keepalive on with a short period (Kinetic
//     requests are latency sensitive and typically small)
//   - Unix → no-op; local sockets have no Nagle/keepalive knobs worth
//     touching
//
// These only prepare the net.Conn; they never block and never change its
// non-blocking-ness, which NewSocket establishes separately.

type netKind uint8

const (
	netTCP netKind = iota
	netUnixStream
)

const defaultKeepAlive = 30 * time.Second

// ConfigureTCP applies the recommended socket options for a Kinetic TCP
// connection: disable Nagle's algorithm (requests/responses are framed
// and already batched by the caller) and enable TCP keepalive.
func ConfigureTCP(conn *net.TCPConn) error {
	if err := conn.SetNoDelay(true); err != nil {
		return err
	}
	if err := conn.SetKeepAlive(true); err != nil {
		return err
	}
	return conn.SetKeepAlivePeriod(defaultKeepAlive)
}

// configureByKind dispatches to the per-transport tuning function. Unix
// stream sockets currently require no tuning; the switch exists so adding
// a new netKind is a single-site change.
func configureByKind(kind netKind, conn net.Conn) error {
	switch kind {
	case netTCP:
		if tc, ok := conn.(*net.TCPConn); ok {
			return ConfigureTCP(tc)
		}
		return nil
	case netUnixStream:
		return nil
	default:
		return nil
	}
}
