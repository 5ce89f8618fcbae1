// Package security implements the ECDH/AEAD secure session layer: an
// ephemeral P-256 handshake followed by an AES-GCM-256 channel with a
// sliding replay window.
package security

import (
	"errors"
	"fmt"

	"github.com/voicecraft/voicecraft-core/wire"
)

var (
	// ErrInvalidRemoteKey indicates a peer's handshake public key is not a
	// valid point on the curve (or is the identity element).
	ErrInvalidRemoteKey = errors.New("security: invalid remote public key")
	// ErrAuthenticationFailure indicates AEAD tag verification failed:
	// either the ciphertext was tampered with, or the wrong key was used.
	ErrAuthenticationFailure = errors.New("security: authentication failure")
	// ErrInvalidNonce indicates a nonce did not match the session's
	// expected prefix or counter layout.
	ErrInvalidNonce = errors.New("security: invalid nonce")
	// ErrReplayDetected indicates a counter value has already been seen
	// within the replay window.
	ErrReplayDetected = errors.New("security: replay detected")
	// ErrReplayOutsideWindow indicates a counter value is older than the
	// oldest counter the replay window can still represent.
	ErrReplayOutsideWindow = errors.New("security: counter outside replay window")
	// ErrHandshakeIncomplete indicates an operation requiring an
	// established session was attempted before the handshake finished.
	ErrHandshakeIncomplete = errors.New("security: handshake incomplete")
	// ErrNestedEnvelope indicates a decrypted frame was itself another
	// EncryptedEnvelope, which this transport never produces and never
	// accepts. It wraps wire.ErrMalformedFrame, so errors.Is classifies it
	// as a framing error.
	ErrNestedEnvelope = fmt.Errorf("security: nested encrypted envelope rejected: %w", wire.ErrMalformedFrame)
	// ErrNotEnvelope indicates OpenFrame was given a frame that is not a
	// wire.TypeEncryptedEnvelope.
	ErrNotEnvelope = errors.New("security: frame is not an encrypted envelope")
)
