package server

import (
	"net"

	"github.com/voicecraft/voicecraft-core/wire"
)

// handleEnvelope decrypts a post-handshake frame under its sender's
// session and dispatches on the inner type.
func (s *Server) handleEnvelope(f wire.Frame, addr net.Addr) {
	s.mu.Lock()
	entityId, ok := s.peersByAddr[addr.String()]
	var p *peer
	if ok {
		p = s.peers[entityId]
	}
	s.mu.Unlock()
	if !ok {
		s.logger.WithField("addr", addr.String()).Debug("envelope from unknown peer")
		return
	}

	inner, err := p.session.OpenFrame(f)
	if err != nil {
		s.logger.WithError(err).WithField("entity", entityId).Debug("dropping envelope that failed to open")
		return
	}

	switch inner.Type {
	case wire.TypeAdvancedAudio:
		s.relayAudio(p, inner)
	case wire.TypeLogoutRequest:
		s.removePeer(entityId)
	case wire.TypeSetMute:
		s.applySetMute(p, inner)
	case wire.TypeSetDeafen:
		s.applySetDeafen(p, inner)
	case wire.TypeSetName:
		s.applySetName(p, inner)
	case wire.TypeSetTitle, wire.TypeSetDescription:
		s.broadcastExcept(-1, inner) // identity-level, server-wide: relay to everyone including sender
	case wire.TypeSetEntityVisibility:
		s.broadcastToVisible(p, inner)
	case wire.TypeEntityPosition:
		s.applyEntityPosition(p, inner)
	case wire.TypeEntityRotation:
		s.applyEntityRotation(p, inner)
	default:
		s.logger.WithField("type", inner.Type.String()).Debug("no relay handler for inner frame type")
	}
}

// relayAudio implements the audio relay: update the sender's
// spatial state from the frame's flags, re-stamp the entity id, and fan
// out to every visible, non-deafened peer as AdvancedAudio (which
// transport.ClassOf classifies as Unreliable).
func (s *Server) relayAudio(p *peer, inner wire.Frame) {
	a, err := wire.DecodeAdvancedAudio(inner.Body)
	if err != nil {
		s.logger.WithError(err).Debug("dropping malformed AdvancedAudio")
		return
	}
	// AdvancedAudio carries no separate sequence field; the capture
	// timestamp divided by the frame period recovers a monotonically
	// increasing counter for loss/reorder tracking, same as the client's
	// receive-side dispatch. The relay has no per-peer capture epoch to
	// derive one-way transit from, so only loss/reorder stats are fed here.
	p.stats.RecordArrival(a.Timestamp/wire.FrameSizeMs, 0)
	p.stats.RecordBytes(uint64(len(inner.Body)))

	s.mu.Lock()
	if a.Position != nil {
		p.position = *a.Position
	}
	if a.Rotation != nil {
		p.rotation = *a.Rotation
	}
	candidates := s.peerIds()
	visible := s.visibility.VisibleTo(p.entityId, candidates)
	targets := make([]*peer, 0, len(visible))
	for id := range visible {
		if q, ok := s.peers[id]; ok && !q.deafened {
			targets = append(targets, q)
		}
	}
	s.mu.Unlock()

	relayed := wire.AdvancedAudio{
		EntityId:  p.entityId,
		Timestamp: a.Timestamp,
		Loudness:  a.Loudness,
		Position:  a.Position,
		Rotation:  a.Rotation,
		Payload:   a.Payload,
	}
	frame, err := relayed.Encode()
	if err != nil {
		s.logger.WithError(err).Debug("failed to re-encode relayed audio")
		return
	}

	for _, q := range targets {
		s.sendSealed(q, frame)
	}
}

func (s *Server) applySetMute(p *peer, inner wire.Frame) {
	m, err := wire.DecodeSetMute(inner.Body)
	if err != nil {
		return
	}
	s.mu.Lock()
	if target, ok := s.peers[m.EntityId]; ok {
		target.muted = m.Muted
	}
	s.mu.Unlock()
	s.broadcastExcept(-1, inner)
}

func (s *Server) applySetDeafen(p *peer, inner wire.Frame) {
	d, err := wire.DecodeSetDeafen(inner.Body)
	if err != nil {
		return
	}
	s.mu.Lock()
	if target, ok := s.peers[d.EntityId]; ok {
		target.deafened = d.Deafened
	}
	s.mu.Unlock()
	s.broadcastExcept(-1, inner)
}

func (s *Server) applySetName(p *peer, inner wire.Frame) {
	n, err := wire.DecodeSetName(inner.Body)
	if err != nil {
		return
	}
	s.mu.Lock()
	if target, ok := s.peers[n.EntityId]; ok {
		target.name = n.Name
	}
	s.mu.Unlock()
	s.broadcastExcept(-1, inner)
}

// applyEntityPosition updates the sender's tracked position and fans the
// change out to its visible set (spatial property, ReliableOrdered).
func (s *Server) applyEntityPosition(p *peer, inner wire.Frame) {
	pos, err := wire.DecodeEntityPosition(inner.Body)
	if err != nil {
		return
	}
	s.mu.Lock()
	p.position = pos.Position
	s.mu.Unlock()
	s.broadcastToVisible(p, inner)
}

// applyEntityRotation updates the sender's tracked rotation and fans the
// change out to its visible set (spatial property, ReliableOrdered).
func (s *Server) applyEntityRotation(p *peer, inner wire.Frame) {
	rot, err := wire.DecodeEntityRotation(inner.Body)
	if err != nil {
		return
	}
	s.mu.Lock()
	p.rotation = rot.Rotation
	s.mu.Unlock()
	s.broadcastToVisible(p, inner)
}

// broadcastExcept relays inner to every connected peer except excludeId
// (pass -1 to include everyone), sealed under each recipient's own
// session. Used for identity-level control-plane frames.
func (s *Server) broadcastExcept(excludeId int32, inner wire.Frame) {
	s.mu.Lock()
	targets := make([]*peer, 0, len(s.peers))
	for id, p := range s.peers {
		if id != excludeId {
			targets = append(targets, p)
		}
	}
	s.mu.Unlock()

	for _, p := range targets {
		s.sendSealed(p, inner)
	}
}

// broadcastToVisible relays inner to sender's visible set only, used for
// spatial control-plane frames.
func (s *Server) broadcastToVisible(sender *peer, inner wire.Frame) {
	s.mu.Lock()
	candidates := s.peerIds()
	visible := s.visibility.VisibleTo(sender.entityId, candidates)
	targets := make([]*peer, 0, len(visible))
	for id := range visible {
		if p, ok := s.peers[id]; ok {
			targets = append(targets, p)
		}
	}
	s.mu.Unlock()

	for _, p := range targets {
		s.sendSealed(p, inner)
	}
}

// sendSealed encrypts inner under recipient's session and sends it. A
// single peer's send failure is logged and isolated; it never aborts
// the rest of a fan-out.
func (s *Server) sendSealed(p *peer, inner wire.Frame) {
	outer, err := p.session.SealFrame(inner)
	if err != nil {
		s.logger.WithError(err).WithField("entity", p.entityId).Warn("failed to seal frame for peer")
		return
	}
	if err := s.t.Send(outer, p.addr); err != nil {
		s.logger.WithError(err).WithField("entity", p.entityId).Warn("failed to send frame to peer")
		return
	}
	p.stats.RecordSent()
}
