package netstats

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Tracker accumulates network-quality measurements for one remote peer. A
// Tracker is safe for concurrent use; RecordRTT and RecordArrival are
// typically called from different goroutines (the request/response path
// and the audio receive path, respectively).
type Tracker struct {
	mu sync.Mutex

	srtt    time.Duration
	rttvar  time.Duration
	haveRTT bool

	jitter       float64 // smoothed interarrival jitter, in milliseconds
	lastTransit  time.Duration
	haveTransit  bool

	sentPackets     uint64
	receivedPackets uint64
	lostPackets     uint64
	outOfOrder      uint64

	bandwidthBytes [bandwidthWindow]uint64
	bandwidthIdx   int

	lastSeq    uint16
	haveSeq    bool

	logger *logrus.Entry
}

// New creates a Tracker for a peer identified by label (used only for log
// lines).
func New(label string) *Tracker {
	return &Tracker{
		logger: logrus.WithFields(logrus.Fields{
			"package": "netstats",
			"peer":    label,
		}),
	}
}

// RecordRTT folds a fresh round-trip sample into the smoothed RTT and RTT
// variance estimates (RFC 6298).
func (t *Tracker) RecordRTT(sample time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.haveRTT {
		t.srtt = sample
		t.rttvar = sample / 2
		t.haveRTT = true
		return
	}

	delta := t.srtt - sample
	if delta < 0 {
		delta = -delta
	}
	t.rttvar = time.Duration((1-rttVarBeta)*float64(t.rttvar) + rttVarBeta*float64(delta))
	t.srtt = time.Duration((1-rttAlpha)*float64(t.srtt) + rttAlpha*float64(sample))
}

// RecordArrival updates jitter, loss, and ordering statistics for one
// incoming media packet. transit is the one-way transit time estimate
// (receive timestamp minus the packet's embedded send timestamp); seq is
// the transport sequence number used to detect loss and reordering.
func (t *Tracker) RecordArrival(seq uint16, transit time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.receivedPackets++

	if t.haveTransit {
		d := transit - t.lastTransit
		if d < 0 {
			d = -d
		}
		t.jitter += (float64(d.Milliseconds()) - t.jitter) / 16.0
	}
	t.lastTransit = transit
	t.haveTransit = true

	if t.haveSeq {
		expected := t.lastSeq + 1
		if seq != expected {
			if seqLess(seq, expected) {
				t.outOfOrder++
			} else {
				gap := int(seq) - int(expected)
				if gap < 0 {
					gap += 65536
				}
				t.lostPackets += uint64(gap)
				t.logger.WithFields(logrus.Fields{
					"expected": expected,
					"got":      seq,
					"gap":      gap,
				}).Debug("packet loss detected")
			}
		}
	}
	if !t.haveSeq || seqGreater(seq, t.lastSeq) {
		t.lastSeq = seq
		t.haveSeq = true
	}
}

func seqLess(a, b uint16) bool    { return int16(a-b) < 0 }
func seqGreater(a, b uint16) bool { return int16(a-b) > 0 }

// RecordSent counts one outbound packet, for loss-rate denominators.
func (t *Tracker) RecordSent() {
	t.mu.Lock()
	t.sentPackets++
	t.mu.Unlock()
}

// RecordBytes folds byte counts for one tick into the bandwidth window.
func (t *Tracker) RecordBytes(n uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.bandwidthBytes[t.bandwidthIdx] = n
	t.bandwidthIdx = (t.bandwidthIdx + 1) % bandwidthWindow
}

// BandwidthBytesPerTick returns the mean bytes recorded per tick over the
// retained window.
func (t *Tracker) BandwidthBytesPerTick() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	var sum uint64
	for _, b := range t.bandwidthBytes {
		sum += b
	}
	return float64(sum) / bandwidthWindow
}

// Snapshot is a point-in-time copy of a Tracker's measurements, safe to
// read without holding the Tracker's lock.
type Snapshot struct {
	RTT             time.Duration
	RTTVariance     time.Duration
	JitterMs        float64
	SentPackets     uint64
	ReceivedPackets uint64
	LostPackets     uint64
	OutOfOrder      uint64
}

// Snapshot returns the current measurements.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	return Snapshot{
		RTT:             t.srtt,
		RTTVariance:     t.rttvar,
		JitterMs:        t.jitter,
		SentPackets:     t.sentPackets,
		ReceivedPackets: t.receivedPackets,
		LostPackets:     t.lostPackets,
		OutOfOrder:      t.outOfOrder,
	}
}

// LossFraction returns the fraction of expected packets never received,
// in [0, 1].
func (s Snapshot) LossFraction() float64 {
	expected := s.ReceivedPackets + s.LostPackets
	if expected == 0 {
		return 0
	}
	return float64(s.LostPackets) / float64(expected)
}

// RetransmitTimeout derives the RFC 6298 RTO from the current smoothed RTT
// and variance, clamped to a sane floor.
func (s Snapshot) RetransmitTimeout() time.Duration {
	rto := s.RTT + 4*s.RTTVariance
	const floor = 100 * time.Millisecond
	if rto < floor {
		return floor
	}
	return rto
}
