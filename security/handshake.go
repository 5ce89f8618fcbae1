package security

import (
	"bytes"
	"crypto/sha256"
	"io"

	"golang.org/x/crypto/hkdf"
)

const handshakeLabel = "voicecraft-handshake-v1"

// transcriptHash binds the derived keys to both parties' public keys, in a
// canonical order so both sides compute the same value regardless of which
// one initiated.
func transcriptHash(localPub, remotePub []byte) []byte {
	lo, hi := localPub, remotePub
	if bytes.Compare(lo, hi) > 0 {
		lo, hi = hi, lo
	}
	h := sha256.New()
	h.Write([]byte(handshakeLabel))
	h.Write(lo)
	h.Write(hi)
	return h.Sum(nil)
}

// directionalKeys is the full key material for one communication direction:
// an AES-256 key and a 4-byte nonce prefix, concatenated with a peer's
// counter to form the 12-byte GCM nonce.
type directionalKeys struct {
	key    [32]byte
	prefix [4]byte
}

// sessionKeys is the result of a completed handshake: one key/prefix pair
// per direction, assigned deterministically so both ends agree on which is
// "send" and which is "recv" without an extra negotiation round trip.
type sessionKeys struct {
	send directionalKeys
	recv directionalKeys
}

// deriveSessionKeys expands an ECDH shared secret into directional AEAD
// keys. Role assignment is by lexicographic comparison of the two public
// keys: the lexicographically smaller key's owner sends on stream "A".
// This is arbitrary but must match on both ends, and comparing public
// keys (rather than e.g. "initiator always sends on A") means either side
// can be the one that dialed without changing the derivation.
func deriveSessionKeys(localPub, remotePub, sharedSecret []byte) (sessionKeys, error) {
	salt := transcriptHash(localPub, remotePub)
	r := hkdf.New(sha256.New, sharedSecret, salt, []byte("voicecraft-session-keys"))

	streamA := directionalKeys{}
	streamB := directionalKeys{}
	for _, d := range []*directionalKeys{&streamA, &streamB} {
		if _, err := io.ReadFull(r, d.key[:]); err != nil {
			return sessionKeys{}, err
		}
		if _, err := io.ReadFull(r, d.prefix[:]); err != nil {
			return sessionKeys{}, err
		}
	}

	localIsA := bytes.Compare(localPub, remotePub) < 0
	if localIsA {
		return sessionKeys{send: streamA, recv: streamB}, nil
	}
	return sessionKeys{send: streamB, recv: streamA}, nil
}
