package security

import (
	"crypto/aes"
	"crypto/cipher"
	"encoding/binary"
	"fmt"
	"sync"
)

// Session is an established secure channel between two endpoints: one
// AES-GCM-256 AEAD per direction, keyed from a single ECDH handshake, with
// an independent send counter and receive replay window.
//
// A Session is safe for concurrent Seal and Open calls from different
// goroutines, but concurrent Seal calls with each other (or Open calls
// with each other) are serialized internally to keep the send counter and
// replay window consistent.
type Session struct {
	sendMu    sync.Mutex
	recvMu    sync.Mutex
	sendAEAD  cipher.AEAD
	recvAEAD  cipher.AEAD
	sendKeys  directionalKeys
	recvKeys  directionalKeys
	sendCtr   uint64
	replay    replayWindow
	localPub  []byte
	remotePub []byte
}

// Establish completes a handshake given the local ephemeral key pair and
// the remote party's public key, deriving directional AEAD sessions. The
// derived shared secret is wiped before Establish returns; kp.Private
// itself is not (see KeyPair's doc comment), so callers must not reuse kp
// afterward and should drop their reference to let it be collected.
func Establish(kp KeyPair, remotePubRaw []byte) (*Session, error) {
	log := newLogger("establish").with("remote_key", keyPreview(remotePubRaw))

	remotePub, err := ParsePublicKey(remotePubRaw)
	if err != nil {
		log.warn("rejected remote public key")
		return nil, err
	}

	shared, err := kp.Private.ECDH(remotePub)
	if err != nil {
		return nil, fmt.Errorf("security: ecdh: %w", err)
	}
	defer SecureWipe(shared)

	localPub := kp.PublicBytes()
	keys, err := deriveSessionKeys(localPub, remotePubRaw, shared)
	if err != nil {
		return nil, err
	}

	sendAEAD, err := newGCM(keys.send.key)
	if err != nil {
		return nil, err
	}
	recvAEAD, err := newGCM(keys.recv.key)
	if err != nil {
		return nil, err
	}

	log.debug("session established")
	return &Session{
		sendAEAD:  sendAEAD,
		recvAEAD:  recvAEAD,
		sendKeys:  keys.send,
		recvKeys:  keys.recv,
		localPub:  append([]byte(nil), localPub...),
		remotePub: append([]byte(nil), remotePubRaw...),
	}, nil
}

func newGCM(key [32]byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, fmt.Errorf("security: aes cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("security: gcm: %w", err)
	}
	return aead, nil
}

// buildNonce concatenates a direction's 4-byte prefix with an 8-byte
// big-endian counter to form the 12-byte GCM nonce.
func buildNonce(prefix [4]byte, counter uint64) [12]byte {
	var nonce [12]byte
	copy(nonce[:4], prefix[:])
	binary.BigEndian.PutUint64(nonce[4:], counter)
	return nonce
}

// Seal encrypts plaintext under the next send counter, returning the
// counter used (for framing into an EncryptedEnvelope) alongside the
// ciphertext-and-tag. The counter must accompany the ciphertext on the
// wire so the receiver's replay window can be checked.
func (s *Session) Seal(plaintext []byte) (counter uint64, sealed []byte, err error) {
	s.sendMu.Lock()
	defer s.sendMu.Unlock()

	nonce := buildNonce(s.sendKeys.prefix, s.sendCtr)
	sealed = s.sendAEAD.Seal(nil, nonce[:], plaintext, nil)
	counter = s.sendCtr
	s.sendCtr++
	return counter, sealed, nil
}

// Open verifies and decrypts a ciphertext received at the given counter,
// rejecting replays and out-of-window counters before even attempting
// AEAD verification, which is the cheaper check.
func (s *Session) Open(counter uint64, sealed []byte) ([]byte, error) {
	s.recvMu.Lock()
	defer s.recvMu.Unlock()

	if err := s.replay.check(counter); err != nil {
		return nil, err
	}

	nonce := buildNonce(s.recvKeys.prefix, counter)
	plaintext, err := s.recvAEAD.Open(nil, nonce[:], sealed, nil)
	if err != nil {
		return nil, ErrAuthenticationFailure
	}

	s.replay.accept(counter)
	return plaintext, nil
}

// Close wipes the session's key material. Further Seal/Open calls are not
// safe after Close.
func (s *Session) Close() {
	SecureWipe(s.sendKeys.key[:])
	SecureWipe(s.recvKeys.key[:])
}
