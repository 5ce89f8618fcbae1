package netstats

import "time"

// Grade is a coarse, human-facing call-quality bucket.
type Grade int

const (
	GradeBad Grade = iota
	GradePoor
	GradeFair
	GradeGood
	GradeExcellent
)

// String renders the grade for logs and client-facing telemetry.
func (g Grade) String() string {
	switch g {
	case GradeExcellent:
		return "excellent"
	case GradeGood:
		return "good"
	case GradeFair:
		return "fair"
	case GradePoor:
		return "poor"
	default:
		return "bad"
	}
}

// gradeTable buckets a call's quality directly off RTT, loss, and jitter,
// evaluated in order; a sample must clear all three thresholds for a grade
// to apply. A sample that fails every row is GradeBad.
var gradeTable = []struct {
	grade    Grade
	rttMs    float64
	lossPct  float64
	jitterMs float64
}{
	{GradeExcellent, 50, 1, 20},
	{GradeGood, 100, 3, 40},
	{GradeFair, 200, 5, 70},
	{GradePoor, 400, 10, 100},
}

// MOS estimates a Mean Opinion Score (1.0-4.5) from RTT, jitter, and loss
// using the ITU-T G.107 E-model: effective latency folds one-way delay and
// jitter into a single impairment factor Id, loss is penalized linearly on
// top of it, and the resulting R-factor is mapped through the model's
// standard R-to-MOS cubic.
func MOS(rtt time.Duration, jitterMs float64, lossFraction float64) float64 {
	oneWayMs := float64(rtt.Milliseconds()) / 2
	effectiveLatency := oneWayMs + 2*jitterMs

	var id float64
	if effectiveLatency < 160 {
		id = 0.024 * effectiveLatency
	} else {
		id = 0.024*160 + 0.11*(effectiveLatency-160)
	}

	r := 93.2 - id - lossFraction*100*2.5
	if r < 0 {
		r = 0
	}
	if r > 100 {
		r = 100
	}

	mos := 1 + 0.035*r + r*(r-60)*(100-r)*7e-6
	if mos < 1 {
		mos = 1
	}
	if mos > 4.5 {
		mos = 4.5
	}
	return mos
}

// GradeFor buckets a call's quality directly from its raw RTT/jitter/loss
// measurements, independent of the MOS estimate: the two describe quality
// on different scales and can disagree at the margins, so telemetry exposes
// both rather than deriving one from the other.
func GradeFor(rtt time.Duration, jitterMs float64, lossFraction float64) Grade {
	rttMs := float64(rtt.Milliseconds())
	lossPct := lossFraction * 100
	for _, t := range gradeTable {
		if rttMs < t.rttMs && lossPct < t.lossPct && jitterMs < t.jitterMs {
			return t.grade
		}
	}
	return GradeBad
}

// Quality bundles a snapshot's raw measurements with the derived MOS
// estimate and grade, the shape client.ServerQuality and server.PeerQuality
// return to the embedding application.
type Quality struct {
	Snapshot
	MOS   float64
	Grade Grade
}

// Assess computes a Quality report from a Tracker's current snapshot.
func (t *Tracker) Assess() Quality {
	snap := t.Snapshot()
	mos := MOS(snap.RTT, snap.JitterMs, snap.LossFraction())
	return Quality{
		Snapshot: snap,
		MOS:      mos,
		Grade:    GradeFor(snap.RTT, snap.JitterMs, snap.LossFraction()),
	}
}
