// Package netstats tracks per-connection network quality: round-trip time,
// jitter, loss, and out-of-order arrivals, and derives a Mean Opinion
// Score estimate from them.
package netstats

// EWMA smoothing factors. RTT and its variance follow RFC 6298; jitter
// follows RFC 3550 §6.4.1. These are fixed points in both RFCs, not tuning
// knobs, so they are named constants rather than configuration.
const (
	rttAlpha     = 1.0 / 8.0
	rttVarBeta   = 1.0 / 4.0
	jitterAlpha  = 1.0 / 16.0
	bandwidthWindow = 20 // ticks of history kept for the bandwidth estimate
)
