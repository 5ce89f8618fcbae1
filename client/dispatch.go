package client

import (
	"net"

	"github.com/voicecraft/voicecraft-core/talker"
	"github.com/voicecraft/voicecraft-core/wire"
)

// handleEnvelope decrypts an inbound EncryptedEnvelope and dispatches the
// inner frame. Everything exchanged after the handshake travels this way.
func (c *Client) handleEnvelope(f wire.Frame, addr net.Addr) {
	c.mu.Lock()
	session := c.session
	c.mu.Unlock()
	if session == nil {
		c.logger.Debug("dropping envelope before handshake completes")
		return
	}

	inner, err := session.OpenFrame(f)
	if err != nil {
		c.logger.WithError(err).Debug("dropping envelope that failed to open")
		return
	}
	c.dispatchInner(inner, addr)
}

func (c *Client) dispatchInner(inner wire.Frame, addr net.Addr) {
	switch inner.Type {
	case wire.TypeAdvancedAudio:
		a, err := wire.DecodeAdvancedAudio(inner.Body)
		if err != nil {
			c.logger.WithError(err).Debug("dropping malformed AdvancedAudio")
			return
		}
		// AdvancedAudio carries no separate sequence field; frames are sent
		// one per wire.FrameSizeMs, so the capture timestamp divided by the
		// frame period recovers the same monotonically increasing counter
		// the jitter buffer needs for ordering.
		c.talkerFor(a.EntityId).OnPacket(a.Timestamp/wire.FrameSizeMs, a.Timestamp, a.Payload)

	case wire.TypeAudio:
		a, err := wire.DecodeAudio(inner.Body)
		if err != nil {
			c.logger.WithError(err).Debug("dropping malformed Audio")
			return
		}
		c.talkerFor(a.EntityId).OnPacket(0, 0, a.Payload)

	case wire.TypeEntityCreated:
		e, err := wire.DecodeEntityCreated(inner.Body)
		if err != nil {
			return
		}
		c.talkerFor(e.EntityId)

	case wire.TypeEntityDestroyed:
		e, err := wire.DecodeEntityDestroyed(inner.Body)
		if err != nil {
			return
		}
		c.removeTalker(e.EntityId)

	case wire.TypeSetEntityVisibility:
		v, err := wire.DecodeSetEntityVisibility(inner.Body)
		if err != nil {
			return
		}
		c.talkerFor(v.TargetId).SetVisible(v.Visible)

	case wire.TypeSetMute, wire.TypeSetDeafen, wire.TypeSetName, wire.TypeSetTitle,
		wire.TypeSetDescription, wire.TypeEntityPosition, wire.TypeEntityRotation:
		c.mu.Lock()
		onEvent := c.onEvent
		c.mu.Unlock()
		if onEvent != nil {
			onEvent(inner)
		}

	default:
		c.logger.WithField("type", inner.Type.String()).Debug("no handler for inner frame type")
	}
}

// SetEventHandler installs the callback invoked for inbound control-plane
// frames (mute/deafen/name/title/description/position/rotation) that the
// session layer itself has no state for; the embedding application owns
// presentation of those events.
func (c *Client) SetEventHandler(fn func(wire.Frame)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onEvent = fn
}

// talkerFor returns the receive pipeline for entityId, creating it on
// first reference.
func (c *Client) talkerFor(entityId int32) *talker.Talker {
	c.mu.Lock()
	defer c.mu.Unlock()
	tk, ok := c.talkers[entityId]
	if !ok {
		tk = talker.New(entityId)
		c.talkers[entityId] = tk
	}
	return tk
}

func (c *Client) removeTalker(entityId int32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.talkers, entityId)
}
