// Package jitter implements the adaptive playout buffer that sits between
// the network and a talker's decoder: it reorders packets that arrive out
// of sequence, smooths over arrival-time variance by holding an adaptive
// depth of packets (tracked in milliseconds, not packet counts) before
// release, and reports loss so the decoder can run packet-loss
// concealment.
package jitter

import (
	"math"
	"sort"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/voicecraft/voicecraft-core/seq"
)

// Result is what Get returns for one playout tick.
type Result int

const (
	// ResultWait means the buffer has not yet held its head frame for the
	// target delay, or has nothing queued; the caller should hold the
	// last frame or play comfort noise rather than conceal a loss.
	ResultWait Result = iota
	// ResultPacket means a frame is ready to decode and play.
	ResultPacket
	// ResultLost means a gap was detected at the head of the buffer and
	// the adaptive delay has elapsed since the head arrived; the caller
	// should run packet-loss concealment for the missing frame.
	ResultLost
)

func (r Result) String() string {
	switch r {
	case ResultPacket:
		return "packet"
	case ResultLost:
		return "lost"
	default:
		return "wait"
	}
}

type entry struct {
	seq       uint16
	data      []byte
	arrivalMs int64
}

// Buffer reorders and paces one remote talker's media stream. It is safe
// for concurrent use: Add is called from the network receive path, Get
// from the talker's fixed-cadence playout tick. All timestamps passed to
// Add and Get must come from the same monotonic clock (typically
// time.Since(epoch).Milliseconds() at the caller).
type Buffer struct {
	mu sync.Mutex

	entries []entry

	haveExpected bool
	expected     uint16

	havePlayed bool
	lastPlayed uint16

	frameSizeMs     int64
	targetDelayMs   int64
	adaptiveDelayMs float64
	minDelayMs      int64
	maxDelayMs      int64
	maxPackets      int

	haveJitter  bool
	lastArrival int64
	jitterMs    float64

	lostCount        uint64
	outOfOrderPlayed uint64
	duplicateCount   uint64
	lateCount        uint64
	receivedCount    uint64

	logger *logrus.Entry
}

// Config bounds a Buffer's adaptive delay and capacity, all delay values
// in milliseconds.
type Config struct {
	MinDelayMs  int
	MaxDelayMs  int
	FrameSizeMs int
	MaxPackets  int
}

// DefaultConfig matches a 20ms frame cadence: a floor of two frames of
// latency, a ceiling generous enough to ride out a few hundred
// milliseconds of jitter, and enough capacity that a burst of reordered
// packets does not force early drops.
func DefaultConfig() Config {
	return Config{
		MinDelayMs:  40,
		MaxDelayMs:  400,
		FrameSizeMs: 20,
		MaxPackets:  64,
	}
}

// New creates a Buffer for one remote talker, identified by label for log
// lines.
func New(label string, cfg Config) *Buffer {
	return &Buffer{
		frameSizeMs:     int64(cfg.FrameSizeMs),
		targetDelayMs:   int64(cfg.MinDelayMs),
		adaptiveDelayMs: float64(cfg.MinDelayMs),
		minDelayMs:      int64(cfg.MinDelayMs),
		maxDelayMs:      int64(cfg.MaxDelayMs),
		maxPackets:      cfg.MaxPackets,
		logger: logrus.WithFields(logrus.Fields{
			"package": "jitter",
			"talker":  label,
		}),
	}
}

// Add inserts a newly arrived packet in sequence order, timestamped with
// arrivalMs (a monotonic millisecond clock reading taken at receipt).
// Duplicates (a sequence number already queued) and late arrivals (a
// sequence number already released by Get, or one evicted on buffer
// overflow) are dropped silently and counted separately; both are
// expected under normal network reordering and are not errors. Every
// call also folds an inter-arrival jitter sample into the buffer's own
// jitter estimate and re-runs delay adaptation from it.
func (b *Buffer) Add(sequence uint16, data []byte, arrivalMs int64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.receivedCount++
	b.recordInterarrival(arrivalMs)

	if b.havePlayed && !seq.IsNewer(sequence, b.lastPlayed) {
		b.lateCount++
		b.logger.WithField("seq", sequence).Debug("dropping late packet")
		return
	}

	for _, e := range b.entries {
		if e.seq == sequence {
			b.duplicateCount++
			return
		}
	}

	b.entries = append(b.entries, entry{seq: sequence, data: data, arrivalMs: arrivalMs})
	sort.Slice(b.entries, func(i, j int) bool {
		return seq.IsNewer(b.entries[j].seq, b.entries[i].seq)
	})

	if len(b.entries) > b.maxPackets {
		dropped := b.entries[0]
		b.entries = b.entries[1:]
		b.lateCount++
		b.logger.WithField("seq", dropped.seq).Warn("buffer overflow, dropping oldest queued packet")
	}
}

// recordInterarrival folds |delta - frameSizeMs| into the smoothed jitter
// estimate (1/8 EWMA) and re-adapts the playout delay from it: the target
// packet count is twice the average jitter expressed in frames, floored at
// two packets so the buffer never collapses to a single frame of slack.
// Callers must hold b.mu.
func (b *Buffer) recordInterarrival(arrivalMs int64) {
	if b.haveJitter {
		delta := arrivalMs - b.lastArrival
		sample := delta - b.frameSizeMs
		if sample < 0 {
			sample = -sample
		}
		b.jitterMs += (float64(sample) - b.jitterMs) / 8.0
	}
	b.lastArrival = arrivalMs
	b.haveJitter = true

	targetPackets := int64(math.Ceil(2 * b.jitterMs / float64(b.frameSizeMs)))
	if targetPackets < 2 {
		targetPackets = 2
	}
	b.adaptTo(targetPackets * b.frameSizeMs)
}

// Get advances playout by one tick, returning the frame to play (if any)
// and whether a loss was detected at the current position. nowMs must be
// a monotonic millisecond reading from the same clock passed to Add.
func (b *Buffer) Get(nowMs int64) (Result, []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.entries) == 0 {
		return ResultWait, nil
	}

	head := b.entries[0]

	if !b.haveExpected {
		b.haveExpected = true
		b.expected = head.seq
	}

	elapsed := nowMs - head.arrivalMs

	switch {
	case head.seq == b.expected:
		if elapsed < b.targetDelayMs {
			return ResultWait, nil
		}
		b.entries = b.entries[1:]
		b.advance(head.seq)
		return ResultPacket, head.data

	case seq.IsNewer(head.seq, b.expected):
		// The packet we expected next never arrived (or arrived too late
		// and was already dropped by Add). Only declare it lost once the
		// adaptive delay has elapsed since the head frame arrived, giving
		// the missing frame its full grace period; the caller re-polls
		// for head on the next tick either way.
		if elapsed < int64(b.adaptiveDelayMs) {
			return ResultWait, nil
		}
		b.lostCount++
		b.expected = seq.Next(b.expected)
		return ResultLost, nil

	default:
		// head.seq is older than expected: it slipped in behind a
		// packet we already decided was lost. Play it anyway rather
		// than discard usable audio.
		b.entries = b.entries[1:]
		b.outOfOrderPlayed++
		b.markPlayed(head.seq)
		return ResultPacket, head.data
	}
}

func (b *Buffer) advance(played uint16) {
	b.markPlayed(played)
	b.expected = seq.Next(played)
}

func (b *Buffer) markPlayed(s uint16) {
	if !b.havePlayed || seq.IsNewer(s, b.lastPlayed) {
		b.havePlayed = true
		b.lastPlayed = s
	}
}

// adaptTo runs the two-stage delay adaptation toward desiredMs:
// targetDelayMs ramps up by one frame period per call (a jitter spike
// means frames are already at risk of arriving late, so reacting slowly
// would cost an underrun) or down by 1ms per call (so a brief lull does
// not immediately shrink the buffer and reintroduce the jitter it just
// smoothed over), then adaptiveDelayMs is EWMA-smoothed toward the new
// target. Callers must hold b.mu.
func (b *Buffer) adaptTo(desiredMs int64) {
	if desiredMs < b.minDelayMs {
		desiredMs = b.minDelayMs
	}
	if desiredMs > b.maxDelayMs {
		desiredMs = b.maxDelayMs
	}

	if desiredMs > b.targetDelayMs {
		b.targetDelayMs += b.frameSizeMs
		if b.targetDelayMs > desiredMs {
			b.targetDelayMs = desiredMs
		}
	} else if desiredMs < b.targetDelayMs {
		b.targetDelayMs--
	}
	if b.targetDelayMs < b.minDelayMs {
		b.targetDelayMs = b.minDelayMs
	}
	if b.targetDelayMs > b.maxDelayMs {
		b.targetDelayMs = b.maxDelayMs
	}

	b.adaptiveDelayMs = (7*b.adaptiveDelayMs + float64(b.targetDelayMs)) / 8
}

// AdaptDelay nudges the target playout depth toward desiredMs
// (milliseconds), running the same ramp/smooth step Add runs
// automatically from its own jitter estimate. Exposed so callers can
// drive adaptation directly from an external jitter signal instead of
// waiting for the next arrival.
func (b *Buffer) AdaptDelay(desiredMs int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.adaptTo(int64(desiredMs))
}

// Reset clears all queued packets and playout state, for use when a
// talker becomes invisible or disconnects.
func (b *Buffer) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.entries = nil
	b.haveExpected = false
	b.havePlayed = false
	b.targetDelayMs = b.minDelayMs
	b.adaptiveDelayMs = float64(b.minDelayMs)
	b.haveJitter = false
	b.jitterMs = 0
}

// Stats is a point-in-time copy of a Buffer's counters.
type Stats struct {
	QueuedPackets    int
	TargetDelayMs    int64
	AdaptiveDelayMs  float64
	JitterMs         float64
	LostCount        uint64
	OutOfOrderPlayed uint64
	DuplicateCount   uint64
	LateCount        uint64
	ReceivedCount    uint64
}

// Stats returns the buffer's current counters.
func (b *Buffer) Stats() Stats {
	b.mu.Lock()
	defer b.mu.Unlock()
	return Stats{
		QueuedPackets:    len(b.entries),
		TargetDelayMs:    b.targetDelayMs,
		AdaptiveDelayMs:  b.adaptiveDelayMs,
		JitterMs:         b.jitterMs,
		LostCount:        b.lostCount,
		OutOfOrderPlayed: b.outOfOrderPlayed,
		DuplicateCount:   b.duplicateCount,
		LateCount:        b.lateCount,
		ReceivedCount:    b.receivedCount,
	}
}
