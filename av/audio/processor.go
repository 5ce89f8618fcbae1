// Package audio wraps Opus encode/decode for the fixed voice format used
// throughout the transport: 48kHz mono, 20ms frames.
//
// Unlike a general-purpose codec layer, this package does not resample or
// apply effects: every talker and listener in this system runs at the
// same sample rate, so that machinery has no caller and is not carried.
package audio

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"layeh.com/gopus"

	"github.com/voicecraft/voicecraft-core/wire"
)

const channels = 1

// Processor encodes outgoing PCM to Opus and decodes incoming Opus back to
// PCM, plus produces concealment frames when a packet never arrives.
type Processor struct {
	encoder  *gopus.Encoder
	decoder  *gopus.Decoder
	lastGood []int16
}

// NewProcessor creates a Processor ready to encode and decode the fixed
// wire format. It panics if the underlying libopus binding rejects the
// sample rate or channel count, which would indicate a build-time mismatch
// rather than a runtime condition callers can recover from.
func NewProcessor() *Processor {
	enc, err := gopus.NewEncoder(wire.SampleRate, channels, gopus.Voip)
	if err != nil {
		panic(fmt.Sprintf("audio: create opus encoder: %v", err))
	}
	dec, err := gopus.NewDecoder(wire.SampleRate, channels)
	if err != nil {
		panic(fmt.Sprintf("audio: create opus decoder: %v", err))
	}

	logrus.WithFields(logrus.Fields{
		"package": "audio",
	}).Info("audio processor created")
	return &Processor{encoder: enc, decoder: dec}
}

// Encode converts one 20ms PCM frame to an Opus packet.
func (p *Processor) Encode(pcm []int16) ([]byte, error) {
	encoded, err := p.encoder.Encode(pcm, wire.SamplesPerFrame, wire.SamplesPerFrame*2)
	if err != nil {
		return nil, fmt.Errorf("audio: opus encode: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"package": "audio",
		"bytes":   len(encoded),
	}).Debug("encoded opus frame")
	return encoded, nil
}

// Decode converts one Opus frame to PCM samples. On success it also
// becomes the concealment source for the next lost frame.
func (p *Processor) Decode(encoded []byte) ([]int16, error) {
	if len(encoded) == 0 {
		return nil, fmt.Errorf("audio: empty encoded frame")
	}

	pcm, err := p.decoder.Decode(encoded, wire.SamplesPerFrame, false)
	if err != nil {
		return nil, fmt.Errorf("audio: opus decode: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"package": "audio",
		"samples": len(pcm),
	}).Debug("decoded opus frame")

	p.lastGood = pcm
	return pcm, nil
}

// Conceal produces a substitute frame for a packet the jitter buffer
// reported as lost. The current implementation repeats the last
// successfully decoded frame at reduced amplitude, a minimal placeholder;
// a real concealment algorithm (e.g. waveform-similarity overlap-add)
// would replace this without changing the interface.
func (p *Processor) Conceal() []int16 {
	if len(p.lastGood) == 0 {
		return make([]int16, wire.SamplesPerFrame)
	}
	concealed := make([]int16, len(p.lastGood))
	for i, s := range p.lastGood {
		concealed[i] = int16(int32(s) * 6 / 10)
	}
	p.lastGood = concealed
	return concealed
}
