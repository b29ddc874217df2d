package deepgram

import (
	"fmt"

	"github.com/koscakluka/ema-dialogue/core/audio"
)

// convertEncoding checks that Deepgram accepts the input encoding and returns
// its query parameter name.
func convertEncoding(encoding audio.EncodingInfo) (string, error) {
	switch encoding.SampleRate {
	case 8000, 16000, 24000, 32000, 48000:
	default:
		return "", fmt.Errorf("unsupported sample rate %d", encoding.SampleRate)
	}

	switch encoding.Format {
	case audio.EncodingLinear16:
		return "linear16", nil
	case audio.EncodingALaw, audio.EncodingMulaw:
		if encoding.SampleRate != 8000 {
			return "", fmt.Errorf("unsupported sample rate %d for %s encoding", encoding.SampleRate, encoding.Format)
		}
		return encoding.Format.Name(), nil
	}

	return "", fmt.Errorf("unsupported encoding %q", encoding.Format)
}
