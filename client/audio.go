package client

import (
	"fmt"
	"time"

	"github.com/voicecraft/voicecraft-core/netstats"
	"github.com/voicecraft/voicecraft-core/talker"
	"github.com/voicecraft/voicecraft-core/wire"
)

// WriteAudio encodes one 20ms PCM frame and, if its peak amplitude meets
// the configured sensitivity, emits it as an AdvancedAudio frame carrying
// optional spatial metadata, sealed and sent with the Unreliable delivery
// class AdvancedAudio is mapped to.
func (c *Client) WriteAudio(pcm []int16, position *[3]float32, rotation *[2]float32) error {
	c.mu.Lock()
	connected := c.connected
	session := c.session
	entityId := c.entityId
	serverAddr := c.serverAddr
	epoch := c.epoch
	c.mu.Unlock()
	if !connected {
		return ErrNotConnected
	}

	peak := peakAmplitude(pcm)
	if peak < c.cfg.Sensitivity {
		return nil
	}

	encoded, err := c.encoder.Encode(pcm)
	if err != nil {
		return fmt.Errorf("client: encode: %w", err)
	}

	frame := wire.AdvancedAudio{
		EntityId:  entityId,
		Timestamp: uint16(time.Since(epoch).Milliseconds()),
		Loudness:  peak,
		Position:  position,
		Rotation:  rotation,
		Payload:   encoded,
	}
	inner, err := frame.Encode()
	if err != nil {
		return err
	}
	outer, err := session.SealFrame(inner)
	if err != nil {
		return err
	}

	c.stats.RecordSent()
	c.stats.RecordBytes(uint64(len(outer.Body)))

	// AdvancedAudio is Unreliable: fire-and-forget, no retry on drop.
	return c.t.Send(outer, serverAddr)
}

// SetPosition publishes this entity's spatial position out-of-band from
// the audio stream, for when the embedding application moves a silent
// entity and other peers' spatialization still needs to track it.
func (c *Client) SetPosition(position [3]float32) error {
	return c.sendControl(wire.EntityPosition{EntityId: c.entityId, Position: position}.Encode())
}

// SetRotation publishes this entity's facing rotation out-of-band from
// the audio stream, same rationale as SetPosition.
func (c *Client) SetRotation(rotation [2]float32) error {
	return c.sendControl(wire.EntityRotation{EntityId: c.entityId, Rotation: rotation}.Encode())
}

// sendControl seals and sends one already-encoded control frame to the
// connected server.
func (c *Client) sendControl(inner wire.Frame) error {
	c.mu.Lock()
	connected := c.connected
	session := c.session
	serverAddr := c.serverAddr
	c.mu.Unlock()
	if !connected {
		return ErrNotConnected
	}

	outer, err := session.SealFrame(inner)
	if err != nil {
		return err
	}
	return c.t.Send(outer, serverAddr)
}

// ServerQuality reports the current network-quality assessment for this
// client's link to the relay, derived from its own send volume (the
// client has no independent RTT signal on the audio path; Info queries
// round trips feed RecordRTT when used for that purpose).
func (c *Client) ServerQuality() netstats.Quality {
	return c.stats.Assess()
}

func peakAmplitude(pcm []int16) float32 {
	var peak int32
	for _, s := range pcm {
		v := int32(s)
		if v < 0 {
			v = -v
		}
		if v > peak {
			peak = v
		}
	}
	return float32(peak) / 32768.0
}

// ReadAudio pulls the next decoded (or concealed) PCM frame for one remote
// entity's receive pipeline, if one is ready. The caller is expected to
// call Tick on a fixed cadence to keep talkers' playout advancing
// regardless of whether this is called.
func (c *Client) ReadAudio(entityId int32) ([]int16, error) {
	c.mu.Lock()
	tk, ok := c.talkers[entityId]
	c.mu.Unlock()
	if !ok {
		return nil, ErrUnknownTalker
	}
	pcm, _ := tk.ReadFrame()
	return pcm, nil
}

// Tick advances every active talker's playout pipeline by one frame
// period. It should be called on wire.TickRate cadence.
func (c *Client) Tick() {
	c.mu.Lock()
	talkers := make([]*talker.Talker, 0, len(c.talkers))
	for _, tk := range c.talkers {
		talkers = append(talkers, tk)
	}
	c.mu.Unlock()

	for _, tk := range talkers {
		tk.Tick()
	}
}
