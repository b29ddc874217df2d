package audio

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFrameSize(t *testing.T) {
	encodingInfo := GetDefaultEncodingInfo()

	assert.Equal(t, 1600, encodingInfo.FrameSize(50*time.Millisecond))
	assert.Equal(t, 3200, encodingInfo.FrameSize(100*time.Millisecond))
	assert.Equal(t, 100*time.Millisecond, encodingInfo.Duration(3200))

	mulaw := EncodingInfo{SampleRate: 8000, Format: EncodingMulaw}
	assert.Equal(t, 800, mulaw.FrameSize(100*time.Millisecond))
	assert.Zero(t, EncodingInfo{}.FrameSize(time.Second))
}

func TestEncodingString(t *testing.T) {
	assert.Equal(t, "pcm_16000", GetDefaultEncodingInfo().String())
	assert.Equal(t, "ulaw_8000", EncodingInfo{SampleRate: 8000, Format: EncodingMulaw}.String())
}

func TestParseEncodingFormat(t *testing.T) {
	format, err := ParseEncodingFormat("PCM")
	require.NoError(t, err)
	assert.Equal(t, EncodingLinear16, format)

	format, err = ParseEncodingFormat("ulaw")
	require.NoError(t, err)
	assert.Equal(t, EncodingMulaw, format)

	_, err = ParseEncodingFormat("opus")
	assert.Error(t, err)
}

func TestChunkerRegroupsStream(t *testing.T) {
	chunker := NewChunker(GetDefaultEncodingInfo(), 2, 4)

	assert.Equal(t, [][]byte{{1, 2}}, chunker.Write([]byte{1, 2, 3}))
	assert.Equal(t, [][]byte{{3, 4, 5, 6}}, chunker.Write([]byte{4, 5, 6, 7}))

	// A single trailing byte is half a sample.
	assert.Nil(t, chunker.Flush())

	assert.Empty(t, chunker.Write([]byte{1, 2, 3}))
	assert.Equal(t, []byte{1, 2}, chunker.Flush())
}

func TestChunkerRoundsSizesToWholeSamples(t *testing.T) {
	chunker := NewChunker(GetDefaultEncodingInfo(), 3, 5)

	chunks := chunker.Write([]byte{1, 2, 3, 4, 5, 6, 7, 8, 9})
	require.Len(t, chunks, 2)
	assert.Len(t, chunks[0], 2)
	assert.Len(t, chunks[1], 4)
}
