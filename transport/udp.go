package transport

import (
	"context"
	"net"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/voicecraft/voicecraft-core/wire"
)

// maxDatagramSize bounds a single read; an AdvancedAudio frame plus its
// EncryptedEnvelope overhead stays under this even at MaxEncodedBytes
// (4081 bytes on the wire for a 4000-byte payload with position and rotation).
const maxDatagramSize = 4096

// UDPTransport implements Transport over a UDP socket.
type UDPTransport struct {
	conn     net.PacketConn
	handlers map[wire.Type]PacketHandler
	mu       sync.RWMutex
	ctx      context.Context
	cancel   context.CancelFunc
	logger   *logrus.Entry
}

// NewUDPTransport opens a UDP socket at listenAddr and starts its receive
// loop.
func NewUDPTransport(listenAddr string) (*UDPTransport, error) {
	conn, err := net.ListenPacket("udp", listenAddr)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	t := &UDPTransport{
		conn:     conn,
		handlers: make(map[wire.Type]PacketHandler),
		ctx:      ctx,
		cancel:   cancel,
		logger: logrus.WithFields(logrus.Fields{
			"package": "transport",
			"local":   conn.LocalAddr().String(),
		}),
	}

	go t.receiveLoop()
	return t, nil
}

// RegisterHandler registers the handler invoked for frames of type t.
func (t *UDPTransport) RegisterHandler(typ wire.Type, handler PacketHandler) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.handlers[typ] = handler
}

// Send encodes and writes one frame to addr.
func (t *UDPTransport) Send(frame wire.Frame, addr net.Addr) error {
	_, err := t.conn.WriteTo(wire.Encode(frame), addr)
	return err
}

// Close stops the receive loop and closes the socket.
func (t *UDPTransport) Close() error {
	t.cancel()
	return t.conn.Close()
}

// LocalAddr returns the bound local address.
func (t *UDPTransport) LocalAddr() net.Addr {
	return t.conn.LocalAddr()
}

func (t *UDPTransport) receiveLoop() {
	buffer := make([]byte, maxDatagramSize)
	for {
		select {
		case <-t.ctx.Done():
			return
		default:
			t.receiveOne(buffer)
		}
	}
}

func (t *UDPTransport) receiveOne(buffer []byte) {
	_ = t.conn.SetReadDeadline(time.Now().Add(100 * time.Millisecond))
	n, addr, err := t.conn.ReadFrom(buffer)
	if err != nil {
		if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
			return
		}
		return
	}

	data := make([]byte, n)
	copy(data, buffer[:n])

	frame, err := wire.Decode(data)
	if err != nil {
		t.logger.WithError(err).Debug("dropping malformed datagram")
		return
	}

	t.mu.RLock()
	handler, ok := t.handlers[frame.Type]
	t.mu.RUnlock()
	if !ok {
		t.logger.WithFields(logrus.Fields{
			"type":  frame.Type.String(),
			"class": ClassOf(frame.Type),
		}).Debug("no handler for frame type")
		return
	}

	go handler(frame, addr)
}
