package security

import (
	"crypto/ecdh"
	"crypto/rand"
	"fmt"
)

// curve is the fixed curve for all handshakes in this transport.
func curve() ecdh.Curve { return ecdh.P256() }

// KeyPair is an ephemeral ECDH key pair used for exactly one handshake.
// It is never persisted to disk, but crypto/ecdh.PrivateKey exposes no API
// to zero its internal representation, so Establish cannot wipe kp.Private
// the way it wipes the derived shared secret; callers
// should still drop their reference to kp once Establish returns so it can
// be garbage collected.
type KeyPair struct {
	Private *ecdh.PrivateKey
}

// GenerateKeyPair creates a new random P-256 key pair.
func GenerateKeyPair() (KeyPair, error) {
	priv, err := curve().GenerateKey(rand.Reader)
	if err != nil {
		return KeyPair{}, fmt.Errorf("security: generate keypair: %w", err)
	}
	return KeyPair{Private: priv}, nil
}

// PublicBytes returns the raw, prefix-free X||Y encoding of the public key
// (wire.PublicKeySize bytes), matching the handshake body layout.
func (kp KeyPair) PublicBytes() []byte {
	raw := kp.Private.PublicKey().Bytes()
	// crypto/ecdh encodes uncompressed points as 0x04 || X || Y; the wire
	// format omits the leading tag since the curve is fixed.
	return raw[1:]
}

// ParsePublicKey decodes a raw X||Y point into a curve public key,
// reconstructing the 0x04 uncompressed-point tag crypto/ecdh expects.
func ParsePublicKey(raw []byte) (*ecdh.PublicKey, error) {
	if len(raw) != 64 {
		return nil, ErrInvalidRemoteKey
	}
	tagged := make([]byte, 65)
	tagged[0] = 0x04
	copy(tagged[1:], raw)
	pub, err := curve().NewPublicKey(tagged)
	if err != nil {
		return nil, ErrInvalidRemoteKey
	}
	return pub, nil
}
