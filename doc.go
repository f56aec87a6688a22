// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package kineticnb is a non-blocking client-side packet service for a
// Kinetic-style request/response storage protocol.
//
// It multiplexes many in-flight requests over a single stream socket,
// authenticates framed messages with HMAC, correlates responses to
// requesters by sequence number, and drives I/O through an externally
// owned readiness loop (select/poll-style) rather than its own goroutines.
//
// The package never performs blocking I/O and never calls a Handler more
// than once. Callers own the event loop: construct a Service around a
// Socket, call Submit to enqueue requests, and call Run once per readiness
// tick to drive both halves of the connection.
package kineticnb
