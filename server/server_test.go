package server

import (
	"net"
	"testing"
	"time"

	"github.com/voicecraft/voicecraft-core/security"
	"github.com/voicecraft/voicecraft-core/wire"
)

// fakePeer is a minimal hand-rolled client used to drive Server in
// isolation, independent of the client package.
type fakePeer struct {
	t          *fakeTransport
	kp         security.KeyPair
	session    *security.Session
	entityId   int32
	acceptCh   chan wire.Frame
	denyCh     chan wire.Frame
	envelopeCh chan wire.Frame
}

func newFakePeer(hub *fakeHub, name string) *fakePeer {
	kp, err := security.GenerateKeyPair()
	if err != nil {
		panic(err)
	}
	p := &fakePeer{
		t:          newFakeTransport(hub, name),
		kp:         kp,
		acceptCh:   make(chan wire.Frame, 4),
		denyCh:     make(chan wire.Frame, 4),
		envelopeCh: make(chan wire.Frame, 16),
	}
	p.t.RegisterHandler(wire.TypeAcceptResponse, func(f wire.Frame, _ net.Addr) { p.acceptCh <- f })
	p.t.RegisterHandler(wire.TypeDenyResponse, func(f wire.Frame, _ net.Addr) { p.denyCh <- f })
	p.t.RegisterHandler(wire.TypeEncryptedEnvelope, func(f wire.Frame, _ net.Addr) { p.envelopeCh <- f })
	return p
}

func (p *fakePeer) login(t *testing.T, serverAddr net.Addr, major uint16) {
	t.Helper()
	var reqId [wire.RequestIdSize]byte
	reqId[0] = byte(p.entityId + 1)
	login := wire.LoginRequest{RequestId: reqId, Major: major}
	copy(login.PublicKey[:], p.kp.PublicBytes())
	if err := p.t.Send(login.Encode(), serverAddr); err != nil {
		t.Fatalf("send login: %v", err)
	}

	select {
	case f := <-p.acceptCh:
		accept, err := wire.DecodeAcceptResponse(f.Body)
		if err != nil {
			t.Fatalf("DecodeAcceptResponse: %v", err)
		}
		session, err := security.Establish(p.kp, accept.PublicKey[:])
		if err != nil {
			t.Fatalf("Establish: %v", err)
		}
		p.session = session
		p.entityId = accept.EntityId
	case f := <-p.denyCh:
		deny, _ := wire.DecodeDenyResponse(f.Body)
		t.Fatalf("login denied: %s", deny.Reason)
	case <-time.After(time.Second):
		t.Fatal("login timed out")
	}
}

func (p *fakePeer) expectDeny(t *testing.T, serverAddr net.Addr, major uint16) string {
	t.Helper()
	var reqId [wire.RequestIdSize]byte
	login := wire.LoginRequest{RequestId: reqId, Major: major}
	copy(login.PublicKey[:], p.kp.PublicBytes())
	if err := p.t.Send(login.Encode(), serverAddr); err != nil {
		t.Fatalf("send login: %v", err)
	}
	select {
	case f := <-p.denyCh:
		deny, err := wire.DecodeDenyResponse(f.Body)
		if err != nil {
			t.Fatalf("DecodeDenyResponse: %v", err)
		}
		return deny.Reason
	case <-p.acceptCh:
		t.Fatal("expected deny, got accept")
	case <-time.After(time.Second):
		t.Fatal("expected deny, got nothing")
	}
	return ""
}

func (p *fakePeer) sendEnvelope(t *testing.T, serverAddr net.Addr, inner wire.Frame) {
	t.Helper()
	outer, err := p.session.SealFrame(inner)
	if err != nil {
		t.Fatalf("SealFrame: %v", err)
	}
	if err := p.t.Send(outer, serverAddr); err != nil {
		t.Fatalf("send envelope: %v", err)
	}
}

func (p *fakePeer) recvInner(t *testing.T) wire.Frame {
	t.Helper()
	select {
	case f := <-p.envelopeCh:
		inner, err := p.session.OpenFrame(f)
		if err != nil {
			t.Fatalf("OpenFrame: %v", err)
		}
		return inner
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for relayed frame")
		return wire.Frame{}
	}
}

func newTestServer(cfg Config) (*Server, *fakeHub, fakeAddr) {
	hub := newFakeHub()
	addr := fakeAddr("server")
	ft := newFakeTransport(hub, string(addr))
	return New(ft, cfg, nil), hub, addr
}

func TestLoginAcceptsPeerAndAssignsEntityId(t *testing.T) {
	s, hub, addr := newTestServer(DefaultConfig())
	p := newFakePeer(hub, "alice")
	p.login(t, addr, 1)

	if p.entityId == 0 {
		t.Error("expected a nonzero entity id")
	}
	if s.PeerCount() != 1 {
		t.Errorf("PeerCount = %d, want 1", s.PeerCount())
	}
}

func TestLoginDeniesVersionMismatch(t *testing.T) {
	_, hub, addr := newTestServer(DefaultConfig())
	p := newFakePeer(hub, "alice")
	reason := p.expectDeny(t, addr, 2)
	if reason != "VoiceCraft.DisconnectReason.IncompatibleVersion" {
		t.Errorf("reason = %q, want %q", reason, "VoiceCraft.DisconnectReason.IncompatibleVersion")
	}
}

func TestLoginDeniesWhenFull(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxClients = 0
	_, hub, addr := newTestServer(cfg)
	p := newFakePeer(hub, "alice")
	reason := p.expectDeny(t, addr, 1)
	if reason != "server full" {
		t.Errorf("reason = %q, want %q", reason, "server full")
	}
}

func TestAudioRelayToVisiblePeer(t *testing.T) {
	s, hub, addr := newTestServer(DefaultConfig())
	_ = s
	alice := newFakePeer(hub, "alice")
	bob := newFakePeer(hub, "bob")
	alice.login(t, addr, 1)
	bob.login(t, addr, 1)

	audio := wire.AdvancedAudio{EntityId: alice.entityId, Timestamp: 40, Payload: []byte{1, 2, 3}}
	inner, err := audio.Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	alice.sendEnvelope(t, addr, inner)

	got := bob.recvInner(t)
	relayed, err := wire.DecodeAdvancedAudio(got.Body)
	if err != nil {
		t.Fatalf("DecodeAdvancedAudio: %v", err)
	}
	if relayed.EntityId != alice.entityId {
		t.Errorf("relayed EntityId = %d, want %d (re-stamped to sender)", relayed.EntityId, alice.entityId)
	}
	if string(relayed.Payload) != string(audio.Payload) {
		t.Errorf("relayed payload mismatch")
	}
}

func TestDeafenedPeerDoesNotReceiveRelayedAudio(t *testing.T) {
	s, hub, addr := newTestServer(DefaultConfig())
	alice := newFakePeer(hub, "alice")
	bob := newFakePeer(hub, "bob")
	alice.login(t, addr, 1)
	bob.login(t, addr, 1)

	alice.sendEnvelope(t, addr, wire.SetDeafen{EntityId: bob.entityId, Deafened: true}.Encode())
	bob.recvInner(t) // drain the SetDeafen broadcast itself

	inner, err := wire.AdvancedAudio{EntityId: alice.entityId, Payload: []byte{9}}.Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	alice.sendEnvelope(t, addr, inner)

	select {
	case <-bob.envelopeCh:
		t.Error("deafened peer should not receive relayed audio")
	case <-time.After(100 * time.Millisecond):
	}
	_ = s
}

func TestEntityPositionRelaysToVisiblePeerAndUpdatesState(t *testing.T) {
	s, hub, addr := newTestServer(DefaultConfig())
	alice := newFakePeer(hub, "alice")
	bob := newFakePeer(hub, "bob")
	alice.login(t, addr, 1)
	bob.login(t, addr, 1)

	pos := wire.EntityPosition{EntityId: alice.entityId, Position: [3]float32{1, 2, 3}}
	alice.sendEnvelope(t, addr, pos.Encode())

	got := bob.recvInner(t)
	relayed, err := wire.DecodeEntityPosition(got.Body)
	if err != nil {
		t.Fatalf("DecodeEntityPosition: %v", err)
	}
	if relayed != pos {
		t.Errorf("relayed EntityPosition = %+v, want %+v", relayed, pos)
	}

	s.mu.Lock()
	stored := s.peers[alice.entityId].position
	s.mu.Unlock()
	if stored != pos.Position {
		t.Errorf("peer.position = %v, want %v", stored, pos.Position)
	}
}

func TestEntityRotationRelaysToVisiblePeerAndUpdatesState(t *testing.T) {
	s, hub, addr := newTestServer(DefaultConfig())
	alice := newFakePeer(hub, "alice")
	bob := newFakePeer(hub, "bob")
	alice.login(t, addr, 1)
	bob.login(t, addr, 1)

	rot := wire.EntityRotation{EntityId: alice.entityId, Rotation: [2]float32{45, 90}}
	alice.sendEnvelope(t, addr, rot.Encode())

	got := bob.recvInner(t)
	relayed, err := wire.DecodeEntityRotation(got.Body)
	if err != nil {
		t.Fatalf("DecodeEntityRotation: %v", err)
	}
	if relayed != rot {
		t.Errorf("relayed EntityRotation = %+v, want %+v", relayed, rot)
	}

	s.mu.Lock()
	stored := s.peers[alice.entityId].rotation
	s.mu.Unlock()
	if stored != rot.Rotation {
		t.Errorf("peer.rotation = %v, want %v", stored, rot.Rotation)
	}
}

func TestLogoutRemovesPeerAndBroadcastsDestroyed(t *testing.T) {
	s, hub, addr := newTestServer(DefaultConfig())
	alice := newFakePeer(hub, "alice")
	bob := newFakePeer(hub, "bob")
	alice.login(t, addr, 1)
	bob.login(t, addr, 1)

	alice.sendEnvelope(t, addr, wire.LogoutRequest{EntityId: alice.entityId}.Encode())

	got := bob.recvInner(t)
	destroyed, err := wire.DecodeEntityDestroyed(got.Body)
	if err != nil {
		t.Fatalf("DecodeEntityDestroyed: %v", err)
	}
	if destroyed.EntityId != alice.entityId {
		t.Errorf("destroyed EntityId = %d, want %d", destroyed.EntityId, alice.entityId)
	}
	if s.PeerCount() != 1 {
		t.Errorf("PeerCount = %d, want 1 after alice logs out", s.PeerCount())
	}
}

func TestPeerQualityTracksRelayedAudio(t *testing.T) {
	s, hub, addr := newTestServer(DefaultConfig())
	alice := newFakePeer(hub, "alice")
	bob := newFakePeer(hub, "bob")
	alice.login(t, addr, 1)
	bob.login(t, addr, 1)

	if _, ok := s.PeerQuality(alice.entityId); !ok {
		t.Fatal("expected a quality report for a connected peer")
	}

	inner, err := wire.AdvancedAudio{EntityId: alice.entityId, Timestamp: 40, Payload: []byte{1, 2, 3}}.Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	alice.sendEnvelope(t, addr, inner)
	bob.recvInner(t)

	q, ok := s.PeerQuality(alice.entityId)
	if !ok {
		t.Fatal("expected a quality report for alice")
	}
	if q.ReceivedPackets == 0 {
		t.Error("expected relayed audio to count toward alice's received packets")
	}
}

func TestPeerQualityUnknownEntity(t *testing.T) {
	s, _, _ := newTestServer(DefaultConfig())
	if _, ok := s.PeerQuality(999); ok {
		t.Error("expected no quality report for an unconnected entity")
	}
}

func TestReloadUpdatesServerProperties(t *testing.T) {
	s, _, _ := newTestServer(DefaultConfig())
	s.Reload(ServerProperties{Port: 1234, MaxClients: 5, Motd: "hi"})
	if s.cfg.Port != 1234 || s.cfg.MaxClients != 5 || s.cfg.Motd != "hi" {
		t.Errorf("Reload did not apply: %+v", s.cfg.ServerProperties)
	}
}
