package audio

import (
	"fmt"
	"strings"
	"time"
)

const (
	DefaultSampleRate = 16000
	DefaultFormat     = EncodingLinear16
)

// GetDefaultEncodingInfo describes mono 16 kHz signed 16-bit PCM, the format
// browsers send and the synthesizers are asked to return.
func GetDefaultEncodingInfo() EncodingInfo {
	return EncodingInfo{SampleRate: DefaultSampleRate, Format: DefaultFormat}
}

// EncodingInfo describes a mono audio stream.
type EncodingInfo struct {
	SampleRate int
	Format     EncodingFormat
}

func (e EncodingInfo) IsZero() bool {
	return e.SampleRate == 0 || e.Format.Name() == ""
}

// FrameSize is the number of bytes that holds d worth of audio, rounded down
// to a whole sample.
func (e EncodingInfo) FrameSize(d time.Duration) int {
	sampleSize := e.Format.ByteSize()
	if sampleSize <= 0 || e.SampleRate <= 0 {
		return 0
	}

	samples := int(int64(e.SampleRate) * int64(d) / int64(time.Second))
	return samples * sampleSize
}

// Duration is the playback time of n bytes.
func (e EncodingInfo) Duration(n int) time.Duration {
	sampleSize := e.Format.ByteSize()
	if sampleSize <= 0 || e.SampleRate <= 0 {
		return 0
	}

	samples := n / sampleSize
	return time.Duration(samples) * time.Second / time.Duration(e.SampleRate)
}

// String renders the encoding the way HTTP speech APIs name it, for example
// "pcm_16000".
func (e EncodingInfo) String() string {
	switch e.Format {
	case EncodingLinear16:
		return fmt.Sprintf("pcm_%d", e.SampleRate)
	case EncodingMulaw:
		return fmt.Sprintf("ulaw_%d", e.SampleRate)
	case EncodingALaw:
		return fmt.Sprintf("alaw_%d", e.SampleRate)
	}
	return fmt.Sprintf("%s_%d", e.Format, e.SampleRate)
}

func (e EncodingInfo) SilenceValue() byte {
	switch e.Format {
	case EncodingALaw:
		return 0x55
	case EncodingMulaw:
		return 0xFF
	}

	return 0
}

type EncodingFormat string

const (
	EncodingMulaw    EncodingFormat = "mulaw"
	EncodingALaw     EncodingFormat = "alaw"
	EncodingLinear16 EncodingFormat = "linear16"
)

// ParseEncodingFormat accepts the names used across speech APIs for the
// supported formats.
func ParseEncodingFormat(name string) (EncodingFormat, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "linear16", "pcm", "pcm16", "pcm_s16le":
		return EncodingLinear16, nil
	case "mulaw", "ulaw", "mu-law":
		return EncodingMulaw, nil
	case "alaw", "a-law":
		return EncodingALaw, nil
	}
	return "", fmt.Errorf("unsupported audio encoding %q", name)
}

func (e EncodingFormat) Name() string {
	return string(e)
}

// ByteSize is the size of one sample, or -1 for unknown formats.
func (e EncodingFormat) ByteSize() int {
	switch e {
	case EncodingMulaw, EncodingALaw:
		return 1
	case EncodingLinear16:
		return 2
	}
	return -1
}
