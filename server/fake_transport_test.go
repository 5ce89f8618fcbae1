package server

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

// fakeHub routes Send calls between independently addressed fakeTransport
// nodes, standing in for a shared UDP broadcast domain in tests.
type fakeHub struct {
	mu    sync.Mutex
	nodes map[string]*fakeTransport
}

func newFakeHub() *fakeHub { return &fakeHub{nodes: make(map[string]*fakeTransport)} }

func (h *fakeHub) register(ft *fakeTransport) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.nodes[string(ft.addr)] = ft
}

type fakeTransport struct {
	mu       sync.Mutex
	addr     fakeAddr
	hub      *fakeHub
	handlers map[wire.Type]transport.PacketHandler
}

func newFakeTransport(hub *fakeHub, addr string) *fakeTransport {
	ft := &fakeTransport{addr: fakeAddr(addr), hub: hub, handlers: make(map[wire.Type]transport.PacketHandler)}
	hub.register(ft)
	return ft
}

func (f *fakeTransport) RegisterHandler(t wire.Type, h transport.PacketHandler) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handlers[t] = h
}

func (f *fakeTransport) Send(frame wire.Frame, addr net.Addr) error {
	f.hub.mu.Lock()
	dst, ok := f.hub.nodes[addr.String()]
	f.hub.mu.Unlock()
	if !ok {
		return fmt.Errorf("fake: no node registered for %s", addr.String())
	}
	dst.mu.Lock()
	h, ok := dst.handlers[frame.Type]
	dst.mu.Unlock()
	if ok {
		h(frame, f.addr)
	}
	return nil
}

func (f *fakeTransport) Close() error        { return nil }
func (f *fakeTransport) LocalAddr() net.Addr { return f.addr }
