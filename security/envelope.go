package security

import (
	"bytes"

	"github.com/voicecraft/voicecraft-core/wire"
)

// SealFrame encrypts an inner wire frame into a wire.EncryptedEnvelope.
// The inner frame's type byte and body are sealed together so a tampered
// type byte fails the AEAD tag rather than silently misdispatching.
func (s *Session) SealFrame(inner wire.Frame) (wire.Frame, error) {
	counter, ciphertext, err := s.Seal(wire.Encode(inner))
	if err != nil {
		return wire.Frame{}, err
	}
	nonce := buildNonce(s.sendKeys.prefix, counter)
	env := wire.EncryptedEnvelope{Ciphertext: ciphertext}
	copy(env.IV[:], nonce[:])
	if len(ciphertext) >= 16 {
		copy(env.Tag[:], ciphertext[len(ciphertext)-16:])
	}
	return env.Encode(), nil
}

// OpenFrame decrypts a wire.EncryptedEnvelope and decodes the inner frame.
// This transport never nests envelopes: an inner frame that is itself an
// EncryptedEnvelope is rejected rather than unwrapped further, closing off
// a class of confused-deputy relay bugs where a forwarded envelope is
// opened twice under two different sessions.
func (s *Session) OpenFrame(outer wire.Frame) (wire.Frame, error) {
	if outer.Type != wire.TypeEncryptedEnvelope {
		return wire.Frame{}, ErrNotEnvelope
	}
	env, err := wire.DecodeEncryptedEnvelope(outer.Body)
	if err != nil {
		return wire.Frame{}, err
	}
	if !bytes.Equal(env.IV[:4], s.recvKeys.prefix[:]) {
		return wire.Frame{}, ErrInvalidNonce
	}

	counter := counterFromNonce(env.IV)
	plaintext, err := s.Open(counter, env.Ciphertext)
	if err != nil {
		return wire.Frame{}, err
	}

	inner, err := wire.Decode(plaintext)
	if err != nil {
		return wire.Frame{}, err
	}
	if inner.Type == wire.TypeEncryptedEnvelope {
		return wire.Frame{}, ErrNestedEnvelope
	}
	return inner, nil
}

func counterFromNonce(iv [12]byte) uint64 {
	var counter uint64
	for _, b := range iv[4:] {
		counter = counter<<8 | uint64(b)
	}
	return counter
}
