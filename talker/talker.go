// Package talker runs the per-remote-entity receive pipeline: incoming
// network frames feed a jitter buffer that adapts its own playout delay
// from arrival timing, a fixed-cadence tick drains it through decode or
// concealment into a small output ring, and arrival timing separately
// feeds the quality tracker exposed to the embedding application.
package talker

import (
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/voicecraft/voicecraft-core/av/audio"
	"github.com/voicecraft/voicecraft-core/jitter"
	"github.com/voicecraft/voicecraft-core/netstats"
	"github.com/voicecraft/voicecraft-core/wire"
)

const ringCapacity = 8

// Talker is the receive-side pipeline for one remote entity.
type Talker struct {
	mu sync.Mutex

	id    int32
	epoch time.Time

	buf   *jitter.Buffer
	codec *audio.Codec
	stats *netstats.Tracker
	out   *ring

	visible     bool
	speaking    bool
	lastPacket  time.Time
	havePacket  bool
	silenceGap  time.Duration

	logger *logrus.Entry
}

// New creates a Talker for the given entity id.
func New(id int32) *Talker {
	return &Talker{
		id:         id,
		epoch:      time.Now(),
		buf:        jitter.New(labelFor(id), jitter.DefaultConfig()),
		codec:      audio.NewCodec(),
		stats:      netstats.New(labelFor(id)),
		out:        newRing(ringCapacity),
		visible:    true,
		silenceGap: wire.SilenceThresholdMs * time.Millisecond,
		logger: logrus.WithFields(logrus.Fields{
			"package": "talker",
			"entity":  id,
		}),
	}
}

func labelFor(id int32) string {
	return fmt.Sprintf("entity-%d", id)
}

// SetVisible toggles whether this talker's audio should keep flowing.
// Becoming invisible clears all buffered state so a later reappearance
// starts clean rather than replaying stale audio.
func (t *Talker) SetVisible(v bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.visible = v
	if !v {
		t.buf.Reset()
		t.out.clear()
		t.speaking = false
		t.havePacket = false
	}
}

// Visible reports the current visibility.
func (t *Talker) Visible() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.visible
}

// OnPacket feeds one arrived network frame into the pipeline.
func (t *Talker) OnPacket(sequence uint16, timestamp uint16, payload []byte) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.visible {
		return
	}

	now := time.Now()
	transit := now.Sub(t.epoch) - time.Duration(timestamp)*time.Millisecond
	t.stats.RecordArrival(sequence, transit)

	t.lastPacket = now
	t.havePacket = true

	t.buf.Add(sequence, payload, now.Sub(t.epoch).Milliseconds())
}

// Tick advances playout by one frame period: drains the jitter buffer,
// decodes or conceals, and updates the speaking state.
// It is meant to be called on a fixed cadence (wire.TickRate) regardless
// of whether packets have actually arrived.
func (t *Talker) Tick() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.visible {
		return
	}

	result, payload := t.buf.Get(time.Since(t.epoch).Milliseconds())
	switch result {
	case jitter.ResultPacket:
		pcm, err := t.codec.Decode(payload)
		if err != nil {
			t.logger.WithError(err).Warn("decode failed, concealing instead")
			pcm = t.codec.Conceal()
		}
		t.out.push(pcm)
	case jitter.ResultLost:
		t.out.push(t.codec.Conceal())
	case jitter.ResultWait:
		// Nothing ready to play (empty buffer, head still inside its
		// playout delay, or a gap still inside its grace period); leave
		// the output ring untouched rather than inject concealment.
	}

	if t.havePacket && time.Since(t.lastPacket) > t.silenceGap {
		t.speaking = false
	} else if t.havePacket {
		t.speaking = true
	}
}

// ReadFrame pops the next decoded PCM frame ready for playback, if any.
func (t *Talker) ReadFrame() ([]int16, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.out.pop()
}

// IsSpeaking reports whether this talker has produced audio recently.
func (t *Talker) IsSpeaking() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.speaking
}

// Quality returns the current network-quality assessment for this talker.
func (t *Talker) Quality() netstats.Quality {
	return t.stats.Assess()
}

// JitterStats returns the underlying jitter buffer's counters.
func (t *Talker) JitterStats() jitter.Stats {
	return t.buf.Stats()
}
