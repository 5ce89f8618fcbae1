package audio

import (
	"fmt"

	"github.com/voicecraft/voicecraft-core/wire"
)

// Codec is the public encode/decode facade a talker pipeline uses; it
// wraps a Processor and adds input validation at the fixed wire format.
type Codec struct {
	proc *Processor
}

// NewCodec creates a Codec for one talker.
func NewCodec() *Codec {
	return &Codec{proc: NewProcessor()}
}

// Encode packs one 20ms PCM frame for transmission as a real Opus packet.
func (c *Codec) Encode(pcm []int16) ([]byte, error) {
	if len(pcm) != wire.SamplesPerFrame {
		return nil, fmt.Errorf("audio: frame has %d samples, want %d", len(pcm), wire.SamplesPerFrame)
	}
	return c.proc.Encode(pcm)
}

// Decode unpacks one received frame to PCM.
func (c *Codec) Decode(encoded []byte) ([]int16, error) {
	return c.proc.Decode(encoded)
}

// Conceal produces a substitute frame for a lost packet.
func (c *Codec) Conceal() []int16 {
	return c.proc.Conceal()
}
