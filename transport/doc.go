// Package transport carries wire.Frame datagrams over UDP.
//
// It is deliberately thin: framing lives in the wire package, and every
// frame goes out as one plain UDP datagram. No delivery guarantee above
// plain UDP (retransmission, ordering) is implemented here or in the
// client and server session layers. The Transport interface exists so
// those layers can be tested against an in-memory fake instead of a real
// socket.
//
//	t, err := transport.NewUDPTransport(":9980")
//	t.RegisterHandler(wire.TypeLoginRequest, func(f wire.Frame, addr net.Addr) { ... })
//	t.Send(wire.LoginRequest{...}.Encode(), remoteAddr)
package transport
