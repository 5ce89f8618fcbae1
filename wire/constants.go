package wire

// Wire-level constants shared by client and server builds. These values are
// part of the wire contract: changing them on one side without the other
// breaks interoperability, so they are centralized here rather than
// scattered as magic numbers.
const (
	// SampleRate is the fixed PCM sample rate used end-to-end.
	SampleRate = 48000
	// Channels is the fixed channel count (mono capture).
	Channels = 1
	// FrameSizeMs is the nominal duration of one codec frame.
	FrameSizeMs = 20
	// SamplesPerFrame is the number of PCM samples in one frame.
	SamplesPerFrame = SampleRate * FrameSizeMs / 1000
	// MaxEncodedBytes bounds a single encoded audio payload. Opus at the
	// highest usable VoIP bitrate rarely exceeds a few hundred bytes per
	// 20ms frame; this leaves generous headroom while still bounding
	// per-frame allocation.
	MaxEncodedBytes = 4000
	// MaxStringLength bounds any length-prefixed string body field (names,
	// titles, descriptions, MOTD).
	MaxStringLength = 256
	// SilenceThresholdMs is how long a talker can go without an
	// above-threshold frame before being considered silent.
	SilenceThresholdMs = 500
	// TickRate is the server main-loop period, in milliseconds.
	TickRate = 20
)
