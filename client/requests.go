package client

import (
	"sync"

	"github.com/google/uuid"

	"github.com/voicecraft/voicecraft-core/wire"
)

// newRequestId mints a fresh 128-bit correlation id.
func newRequestId() [wire.RequestIdSize]byte {
	var id [wire.RequestIdSize]byte
	u := uuid.New()
	copy(id[:], u[:])
	return id
}

// pendingRegistry maps outstanding request ids to a waiter channel. A
// request id is registered once Connect/Info sends its request and
// resolved once the matching response frame arrives; registering a second
// waiter under the same id is refused rather than clobbering the first.
type pendingRegistry struct {
	mu      sync.Mutex
	waiters map[[wire.RequestIdSize]byte]chan wire.Frame
}

func newPendingRegistry() *pendingRegistry {
	return &pendingRegistry{waiters: make(map[[wire.RequestIdSize]byte]chan wire.Frame)}
}

func (p *pendingRegistry) register(id [wire.RequestIdSize]byte) (chan wire.Frame, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, exists := p.waiters[id]; exists {
		return nil, ErrDuplicateRequest
	}
	ch := make(chan wire.Frame, 1)
	p.waiters[id] = ch
	return ch, nil
}

// resolve delivers frame to the waiter registered under id, if any, and
// removes the registration. It reports whether a waiter was found.
func (p *pendingRegistry) resolve(id [wire.RequestIdSize]byte, frame wire.Frame) bool {
	p.mu.Lock()
	ch, ok := p.waiters[id]
	if ok {
		delete(p.waiters, id)
	}
	p.mu.Unlock()
	if !ok {
		return false
	}
	ch <- frame
	return true
}

// cancel removes a registration without delivering a frame, for use when a
// waiter times out.
func (p *pendingRegistry) cancel(id [wire.RequestIdSize]byte) {
	p.mu.Lock()
	delete(p.waiters, id)
	p.mu.Unlock()
}
