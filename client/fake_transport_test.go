package client

import (
	"fmt"
	"net"
	"sync"

	"github.com/voicecraft/voicecraft-core/transport"
	"github.com/voicecraft/voicecraft-core/wire"
)

type fakeAddr string

func (a fakeAddr) Network() string { return "fake" }
func (a fakeAddr) String() string  { return string(a) }

// fakeTransport is an in-memory transport.Transport used only for tests:
// Send on one side synchronously looks up and invokes the registered
// handler on its paired peer, skipping any real socket.
type fakeTransport struct {
	mu       sync.Mutex
	addr     fakeAddr
	peer     *fakeTransport
	handlers map[wire.Type]transport.PacketHandler
	sent     []wire.Frame
}

func newFakeTransport(addr string) *fakeTransport {
	return &fakeTransport{addr: fakeAddr(addr), handlers: make(map[wire.Type]transport.PacketHandler)}
}

func linkFakeTransports(a, b *fakeTransport) {
	a.peer = b
	b.peer = a
}

func (f *fakeTransport) RegisterHandler(t wire.Type, h transport.PacketHandler) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handlers[t] = h
}

func (f *fakeTransport) Send(frame wire.Frame, _ net.Addr) error {
	f.mu.Lock()
	f.sent = append(f.sent, frame)
	peer := f.peer
	f.mu.Unlock()
	if peer == nil {
		return fmt.Errorf("fake: no peer linked")
	}
	peer.mu.Lock()
	h, ok := peer.handlers[frame.Type]
	peer.mu.Unlock()
	if ok {
		h(frame, f.addr)
	}
	return nil
}

func (f *fakeTransport) Close() error        { return nil }
func (f *fakeTransport) LocalAddr() net.Addr { return f.addr }

func (f *fakeTransport) sentCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}
