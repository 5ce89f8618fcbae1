package client

import (
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/voicecraft/voicecraft-core/av/audio"
	"github.com/voicecraft/voicecraft-core/netstats"
	"github.com/voicecraft/voicecraft-core/security"
	"github.com/voicecraft/voicecraft-core/talker"
	"github.com/voicecraft/voicecraft-core/transport"
	"github.com/voicecraft/voicecraft-core/wire"
)

// Config bounds a Client's handshake timing and version advertisement.
type Config struct {
	HandshakeTimeout     time.Duration
	RequestTimeout       time.Duration
	Major, Minor, Build  uint16
	// Sensitivity is the minimum peak amplitude (0-1) WriteAudio requires
	// before treating a frame as active speech rather than silence.
	Sensitivity float32
}

// DefaultConfig returns sane defaults for an interactive voice session.
func DefaultConfig() Config {
	return Config{
		HandshakeTimeout: 5 * time.Second,
		RequestTimeout:   3 * time.Second,
		Major:            1,
		Sensitivity:      0.02,
	}
}

// Client is the session endpoint an embedding application drives: it owns
// the handshake, the outgoing audio encode path, and dispatches inbound
// traffic to one jitter-buffered talker pipeline per visible remote
// entity.
type Client struct {
	mu sync.Mutex

	t   transport.Transport
	cfg Config

	serverAddr net.Addr
	kp         security.KeyPair
	session    *security.Session
	entityId   int32
	connected  bool
	epoch      time.Time

	encoder *audio.Codec
	stats   *netstats.Tracker
	talkers map[int32]*talker.Talker

	pending *pendingRegistry
	onEvent func(wire.Frame)

	logger *logrus.Entry
}

// New creates a Client bound to an already-open transport, registering the
// handlers it needs for the handshake, info query, and post-session
// traffic. The transport is not owned by the Client; callers are
// responsible for closing it.
func New(t transport.Transport, cfg Config) *Client {
	c := &Client{
		t:       t,
		cfg:     cfg,
		encoder: audio.NewCodec(),
		stats:   netstats.New("server"),
		talkers: make(map[int32]*talker.Talker),
		pending: newPendingRegistry(),
		logger: logrus.WithFields(logrus.Fields{
			"package": "client",
		}),
	}

	t.RegisterHandler(wire.TypeAcceptResponse, c.handleAcceptResponse)
	t.RegisterHandler(wire.TypeDenyResponse, c.handleDenyResponse)
	t.RegisterHandler(wire.TypeInfoResponse, c.handleInfoResponse)
	t.RegisterHandler(wire.TypeEncryptedEnvelope, c.handleEnvelope)
	return c
}

// Connect performs the handshake: send a LoginRequest carrying a fresh
// ephemeral ECDH public key, then wait for an AcceptResponse (establishing
// the secure session and entity id) or a DenyResponse. Fails with
// ErrHandshakeTimeout or *RejectedError as appropriate.
func (c *Client) Connect(serverAddr net.Addr) error {
	c.mu.Lock()
	if c.connected {
		c.mu.Unlock()
		return ErrAlreadyConnected
	}
	kp, err := security.GenerateKeyPair()
	if err != nil {
		c.mu.Unlock()
		return fmt.Errorf("client: generate keypair: %w", err)
	}
	c.serverAddr = serverAddr
	c.mu.Unlock()

	reqId := newRequestId()
	ch, err := c.pending.register(reqId)
	if err != nil {
		return err
	}

	login := wire.LoginRequest{
		RequestId: reqId,
		Major:     c.cfg.Major,
		Minor:     c.cfg.Minor,
		Build:     c.cfg.Build,
		PublicKey: [wire.PublicKeySize]byte{},
	}
	copy(login.PublicKey[:], kp.PublicBytes())

	if err := c.t.Send(login.Encode(), serverAddr); err != nil {
		c.pending.cancel(reqId)
		return fmt.Errorf("client: send login: %w", err)
	}

	select {
	case frame := <-ch:
		return c.finishHandshake(kp, frame)
	case <-time.After(c.cfg.HandshakeTimeout):
		c.pending.cancel(reqId)
		return ErrHandshakeTimeout
	}
}

func (c *Client) finishHandshake(kp security.KeyPair, frame wire.Frame) error {
	switch frame.Type {
	case wire.TypeAcceptResponse:
		accept, err := wire.DecodeAcceptResponse(frame.Body)
		if err != nil {
			return err
		}
		session, err := security.Establish(kp, accept.PublicKey[:])
		if err != nil {
			return fmt.Errorf("client: establish session: %w", err)
		}
		c.mu.Lock()
		c.session = session
		c.entityId = accept.EntityId
		c.connected = true
		c.epoch = time.Now()
		c.mu.Unlock()
		c.logger.WithField("entity", accept.EntityId).Info("session established")
		return nil

	case wire.TypeDenyResponse:
		deny, err := wire.DecodeDenyResponse(frame.Body)
		if err != nil {
			return err
		}
		return &RejectedError{Reason: deny.Reason}

	default:
		return fmt.Errorf("client: unexpected handshake response type %v", frame.Type)
	}
}

func (c *Client) handleAcceptResponse(f wire.Frame, _ net.Addr) {
	accept, err := wire.DecodeAcceptResponse(f.Body)
	if err != nil {
		c.logger.WithError(err).Debug("dropping malformed AcceptResponse")
		return
	}
	c.pending.resolve(accept.RequestId, f)
}

func (c *Client) handleDenyResponse(f wire.Frame, _ net.Addr) {
	deny, err := wire.DecodeDenyResponse(f.Body)
	if err != nil {
		c.logger.WithError(err).Debug("dropping malformed DenyResponse")
		return
	}
	c.pending.resolve(deny.RequestId, f)
}

func (c *Client) handleInfoResponse(f wire.Frame, _ net.Addr) {
	info, err := wire.DecodeInfoResponse(f.Body)
	if err != nil {
		c.logger.WithError(err).Debug("dropping malformed InfoResponse")
		return
	}
	c.pending.resolve(info.RequestId, f)
}

// Info queries the relay's advertised properties without requiring a
// handshake.
func (c *Client) Info(serverAddr net.Addr) (wire.InfoResponse, error) {
	reqId := newRequestId()
	ch, err := c.pending.register(reqId)
	if err != nil {
		return wire.InfoResponse{}, err
	}
	sent := time.Now()
	if err := c.t.Send(wire.InfoRequest{RequestId: reqId}.Encode(), serverAddr); err != nil {
		c.pending.cancel(reqId)
		return wire.InfoResponse{}, fmt.Errorf("client: send info request: %w", err)
	}

	select {
	case frame := <-ch:
		c.stats.RecordRTT(time.Since(sent))
		return wire.DecodeInfoResponse(frame.Body)
	case <-time.After(c.cfg.RequestTimeout):
		c.pending.cancel(reqId)
		return wire.InfoResponse{}, ErrHandshakeTimeout
	}
}

// Disconnect sends a LogoutRequest for a clean departure. The underlying
// transport is left open; callers close it separately.
func (c *Client) Disconnect() error {
	c.mu.Lock()
	connected := c.connected
	entityId := c.entityId
	serverAddr := c.serverAddr
	session := c.session
	c.connected = false
	c.mu.Unlock()

	if !connected {
		return ErrNotConnected
	}

	inner := wire.LogoutRequest{EntityId: entityId}.Encode()
	outer, err := session.SealFrame(inner)
	if err != nil {
		return err
	}
	return c.t.Send(outer, serverAddr)
}
