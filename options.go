// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package kineticnb

const (
	// defaultMaxMessageLen is the recommended upper bound on message_length
	// (the serialized envelope) per spec: 2 MiB.
	defaultMaxMessageLen = 2 << 20

	// defaultMaxValueLen is the recommended upper bound on value_length
	// per spec: 1 MiB.
	defaultMaxValueLen = 1 << 20
)

// FrameOptions configures the frame codec's bounds. Zero value is the
// package default (2 MiB message / 1 MiB value).
type FrameOptions struct {
	MaxMessageLen int
	MaxValueLen   int
}

var defaultFrameOptions = FrameOptions{
	MaxMessageLen: defaultMaxMessageLen,
	MaxValueLen:   defaultMaxValueLen,
}

// FrameOption configures the FrameParser's bounds via the functional-
// options pattern. FrameWriter takes no options.
type FrameOption func(*FrameOptions)

// WithMaxMessageLen overrides the message_length bound.
func WithMaxMessageLen(n int) FrameOption {
	return func(o *FrameOptions) { o.MaxMessageLen = n }
}

// WithMaxValueLen overrides the value_length bound.
func WithMaxValueLen(n int) FrameOption {
	return func(o *FrameOptions) { o.MaxValueLen = n }
}

// ConnectionOptions is the caller-supplied configuration for a Service.
// Parsing flags/env/files into this struct is out of scope for this
// package; callers populate it directly.
type ConnectionOptions struct {
	// UserID is this client's default HMAC identity: inbound frames whose
	// hmac_auth.identity equals it are verified with HMACKey. The package
	// does not stamp it on outbound messages; callers sign those.
	UserID uint64

	// HMACKey is the default identity's shared secret.
	HMACKey []byte

	// hmacKeys holds additional preconfigured identities, keyed by
	// identity, populated via WithIdentity.
	hmacKeys map[uint64][]byte

	frame FrameOptions
}

// ConnectionOption configures a ConnectionOptions via NewConnectionOptions.
type ConnectionOption func(*ConnectionOptions)

// NewConnectionOptions builds a ConnectionOptions for the given default
// identity and key, applying any additional options.
func NewConnectionOptions(userID uint64, hmacKey []byte, opts ...ConnectionOption) ConnectionOptions {
	co := ConnectionOptions{
		UserID:  userID,
		HMACKey: hmacKey,
		frame:   defaultFrameOptions,
	}
	for _, fn := range opts {
		fn(&co)
	}
	return co
}

// WithIdentity preconfigures an additional identity -> key mapping beyond
// the default UserID/HMACKey pair (spec §6: "multiple identities may be
// preconfigured").
func WithIdentity(identity uint64, key []byte) ConnectionOption {
	return func(co *ConnectionOptions) {
		if co.hmacKeys == nil {
			co.hmacKeys = make(map[uint64][]byte)
		}
		co.hmacKeys[identity] = key
	}
}

// WithFrameOptions overrides the frame codec's size bounds.
func WithFrameOptions(opts ...FrameOption) ConnectionOption {
	return func(co *ConnectionOptions) {
		for _, fn := range opts {
			fn(&co.frame)
		}
	}
}

// keyFor resolves the shared secret for a given HMAC identity, checking
// the default identity first and then any preconfigured additional ones.
func (co *ConnectionOptions) keyFor(identity uint64) ([]byte, bool) {
	if identity == co.UserID {
		return co.HMACKey, true
	}
	if co.hmacKeys != nil {
		if k, ok := co.hmacKeys[identity]; ok {
			return k, true
		}
	}
	return nil, false
}
