// Package audio provides the encode/decode/conceal pipeline used by each
// talker: a fixed 48kHz mono, 20ms-frame Opus path with no resampling and
// no effects chain, since every endpoint in this transport runs at the
// same format.
//
//	codec := audio.NewCodec()
//	encoded, err := codec.Encode(pcm)
//	pcm, err := codec.Decode(encoded)
//	concealed := codec.Conceal() // when the jitter buffer reports a loss
//
// Dependencies:
//
//   - layeh.com/gopus: libopus encoder/decoder bindings
//   - github.com/sirupsen/logrus: structured logging
package audio
