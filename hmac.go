// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package kineticnb

import (
	"crypto/hmac"
	"crypto/sha256"
)

// HMACProvider computes and verifies the keyed MAC carried in an
// Envelope's HMACAuth. Keys are bytes, never strings, and comparison is
// always constant-time (§4.B).
type HMACProvider struct{}

// Compute returns HMAC-SHA256 over the canonical serialization of env with
// hmac_auth.hmac cleared, keyed by key.
func (HMACProvider) Compute(env *Envelope, key []byte) ([]byte, error) {
	b, err := authBytes(env)
	if err != nil {
		return nil, err
	}
	mac := hmac.New(sha256.New, key)
	mac.Write(b)
	return mac.Sum(nil), nil
}

// Verify reports whether env.HMACAuth.HMAC equals Compute(env, key),
// compared in constant time via hmac.Equal.
func (p HMACProvider) Verify(env *Envelope, key []byte) (bool, error) {
	if env.HMACAuth == nil {
		return false, nil
	}
	want, err := p.Compute(env, key)
	if err != nil {
		return false, err
	}
	return hmac.Equal(want, env.HMACAuth.HMAC), nil
}
