package transport

import (
	"net"

	"github.com/voicecraft/voicecraft-core/wire"
)

// DeliveryClass describes the delivery guarantee a packet kind needs.
// It is a label only: the transport is an unreliable UDP datagram service
// that sends every frame as a single datagram whatever its class, and
// neither the transport nor the client/server session layers retransmit,
// acknowledge or reorder frames for any class.
type DeliveryClass int

const (
	// Unreliable packets may be dropped or reordered with no recovery;
	// used for the high-rate audio stream, which the jitter buffer
	// already tolerates.
	Unreliable DeliveryClass = iota
	// Sequenced names packets whose stale, out-of-order arrivals may be
	// discarded but whose losses are not recovered. ClassOf maps no
	// packet type to it.
	Sequenced
	// ReliableOrdered names packets that need retry-until-acknowledged,
	// in-order delivery; ClassOf gives it to control-plane requests and
	// entity state changes. No retry or ordering is implemented for it.
	ReliableOrdered
	// Unconnected packets are exchanged before a secure session exists
	// (info queries, the handshake itself).
	Unconnected
)

// String returns a human-readable name for logging.
func (d DeliveryClass) String() string {
	switch d {
	case Unreliable:
		return "Unreliable"
	case Sequenced:
		return "Sequenced"
	case ReliableOrdered:
		return "ReliableOrdered"
	case Unconnected:
		return "Unconnected"
	default:
		return "Unknown"
	}
}

// ClassOf returns the delivery class a given wire packet type is carried
// under. This mapping is part of the protocol contract: both ends must
// agree on which guarantees apply to which packet kind.
func ClassOf(t wire.Type) DeliveryClass {
	switch t {
	case wire.TypeInfoRequest, wire.TypeInfoResponse:
		return Unconnected
	case wire.TypeLoginRequest, wire.TypeAcceptResponse, wire.TypeDenyResponse:
		return Unconnected
	case wire.TypeAudio, wire.TypeAdvancedAudio:
		return Unreliable
	default:
		return ReliableOrdered
	}
}

// PacketHandler processes one inbound frame from a peer address.
type PacketHandler func(frame wire.Frame, addr net.Addr)

// Transport is the network transport abstraction used by both the client
// and server session layers, letting them be tested against an in-memory
// fake without a real socket.
type Transport interface {
	Send(frame wire.Frame, addr net.Addr) error
	Close() error
	LocalAddr() net.Addr
	RegisterHandler(t wire.Type, handler PacketHandler)
}
