package server

import (
	"fmt"
	"net"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/voicecraft/voicecraft-core/netstats"
	"github.com/voicecraft/voicecraft-core/security"
	"github.com/voicecraft/voicecraft-core/transport"
	"github.com/voicecraft/voicecraft-core/wire"
)

// Server is the packet relay fabric: it accepts peers up to MaxClients,
// runs the login handshake, and fans audio and control-plane frames out
// to each peer's visible set.
type Server struct {
	mu sync.Mutex

	t   transport.Transport
	cfg Config

	peers       map[int32]*peer
	peersByAddr map[string]int32
	nextEntityId int32

	visibility VisibilitySet

	logger *logrus.Entry
}

// New creates a Server bound to an already-open transport and registers
// its packet handlers. visibility may be nil, in which case AllVisible is
// used (every peer sees every other peer).
func New(t transport.Transport, cfg Config, visibility VisibilitySet) *Server {
	if visibility == nil {
		visibility = AllVisible{}
	}
	s := &Server{
		t:            t,
		cfg:          cfg,
		peers:        make(map[int32]*peer),
		peersByAddr:  make(map[string]int32),
		nextEntityId: 1,
		visibility:   visibility,
		logger: logrus.WithFields(logrus.Fields{
			"package": "server",
		}),
	}

	t.RegisterHandler(wire.TypeLoginRequest, s.handleLogin)
	t.RegisterHandler(wire.TypeInfoRequest, s.handleInfo)
	t.RegisterHandler(wire.TypeEncryptedEnvelope, s.handleEnvelope)
	return s
}

// Reload replaces the relay's reloadable properties, leaving the protocol
// version and connected peers untouched.
func (s *Server) Reload(props ServerProperties) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cfg.ServerProperties = props
}

// PeerCount returns the number of currently connected entities.
func (s *Server) PeerCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.peers)
}

// PeerQuality returns the relay's network-quality assessment for one
// connected entity's link, or false if no such entity is connected.
func (s *Server) PeerQuality(entityId int32) (netstats.Quality, bool) {
	s.mu.Lock()
	p, ok := s.peers[entityId]
	s.mu.Unlock()
	if !ok {
		return netstats.Quality{}, false
	}
	return p.stats.Assess(), true
}

func (s *Server) handleLogin(f wire.Frame, addr net.Addr) {
	login, err := wire.DecodeLoginRequest(f.Body)
	if err != nil {
		s.logger.WithError(err).Debug("dropping malformed LoginRequest")
		return
	}

	s.mu.Lock()
	full := len(s.peers) >= int(s.cfg.MaxClients)
	versionOK := login.Major == s.cfg.Major && login.Minor == s.cfg.Minor
	s.mu.Unlock()

	if !versionOK {
		s.deny(addr, login.RequestId, "VoiceCraft.DisconnectReason.IncompatibleVersion")
		return
	}
	if full {
		s.deny(addr, login.RequestId, "server full")
		return
	}

	serverKP, err := security.GenerateKeyPair()
	if err != nil {
		s.logger.WithError(err).Error("failed to generate handshake keypair")
		s.deny(addr, login.RequestId, "internal error")
		return
	}
	session, err := security.Establish(serverKP, login.PublicKey[:])
	if err != nil {
		s.deny(addr, login.RequestId, "invalid handshake key")
		return
	}

	s.mu.Lock()
	entityId := s.nextEntityId
	s.nextEntityId++
	p := &peer{
		entityId: entityId,
		addr:     addr,
		session:  session,
		stats:    netstats.New(fmt.Sprintf("peer-%d", entityId)),
	}
	s.peers[entityId] = p
	s.peersByAddr[addr.String()] = entityId
	s.mu.Unlock()

	accept := wire.AcceptResponse{RequestId: login.RequestId, EntityId: entityId}
	copy(accept.PublicKey[:], serverKP.PublicBytes())
	if err := s.t.Send(accept.Encode(), addr); err != nil {
		s.logger.WithError(err).Warn("failed to send AcceptResponse")
		return
	}

	s.logger.WithField("entity", entityId).Info("peer accepted")
	s.broadcastExcept(entityId, wire.EntityCreated{EntityId: entityId}.Encode())
}

func (s *Server) deny(addr net.Addr, requestId [wire.RequestIdSize]byte, reason string) {
	deny := wire.DenyResponse{RequestId: requestId, Reason: reason}
	if err := s.t.Send(deny.Encode(), addr); err != nil {
		s.logger.WithError(err).Debug("failed to send DenyResponse")
	}
}

func (s *Server) handleInfo(f wire.Frame, addr net.Addr) {
	req, err := wire.DecodeInfoRequest(f.Body)
	if err != nil {
		s.logger.WithError(err).Debug("dropping malformed InfoRequest")
		return
	}

	s.mu.Lock()
	resp := wire.InfoResponse{
		RequestId:       req.RequestId,
		Port:            s.cfg.Port,
		MaxClients:      s.cfg.MaxClients,
		ConnectedCount:  uint16(len(s.peers)),
		Motd:            s.cfg.Motd,
		PositioningType: s.cfg.PositioningType,
		Language:        s.cfg.Language,
	}
	s.mu.Unlock()

	if err := s.t.Send(resp.Encode(), addr); err != nil {
		s.logger.WithError(err).Debug("failed to send InfoResponse")
	}
}

func (s *Server) removePeer(entityId int32) {
	s.mu.Lock()
	p, ok := s.peers[entityId]
	if ok {
		delete(s.peers, entityId)
		delete(s.peersByAddr, p.addr.String())
	}
	s.mu.Unlock()
	if !ok {
		return
	}
	s.broadcastExcept(entityId, wire.EntityDestroyed{EntityId: entityId}.Encode())
}

// peerIds returns the ids of every currently connected peer. Callers must
// hold s.mu.
func (s *Server) peerIds() []int32 {
	ids := make([]int32, 0, len(s.peers))
	for id := range s.peers {
		ids = append(ids, id)
	}
	return ids
}
