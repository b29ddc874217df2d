package texttospeech

import (
	"iter"

	"github.com/koscakluka/ema-dialogue/core/audio"
)

// AudioStream yields synthesized audio chunks in order. A non-nil error ends
// the stream; cancelling the context passed to the synthesizer must unblock
// any pending read.
type AudioStream = iter.Seq2[[]byte, error]

type SynthesisOptions struct {
	Voice string
	Model string
	// Speed is a playback rate multiplier, 1 is the voice's natural speed.
	Speed float64

	EncodingInfo audio.EncodingInfo
}

type SynthesisOption func(*SynthesisOptions)

func WithVoice(voice string) SynthesisOption {
	return func(o *SynthesisOptions) { o.Voice = voice }
}

func WithModel(model string) SynthesisOption {
	return func(o *SynthesisOptions) { o.Model = model }
}

func WithSpeed(speed float64) SynthesisOption {
	return func(o *SynthesisOptions) { o.Speed = speed }
}

func WithEncodingInfo(encodingInfo audio.EncodingInfo) SynthesisOption {
	return func(o *SynthesisOptions) {
		if encodingInfo.IsZero() {
			return
		}
		o.EncodingInfo = encodingInfo
	}
}

// NewSynthesisOptions applies opts over the default 16 kHz linear16 output.
func NewSynthesisOptions(opts ...SynthesisOption) SynthesisOptions {
	options := SynthesisOptions{Speed: 1, EncodingInfo: audio.GetDefaultEncodingInfo()}
	for _, opt := range opts {
		opt(&options)
	}
	return options
}
