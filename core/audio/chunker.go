package audio

// Chunker regroups a byte stream into fixed size chunks of whole samples.
// Providers stream audio in arbitrary slices, while playback sinks expect a
// steady cadence. The first chunk may be smaller so playback starts sooner.
type Chunker struct {
	firstSize  int
	size       int
	sampleSize int
	emitted    bool
	pending    []byte
}

// NewChunker emits a first chunk of firstSize bytes and size bytes after
// that. Both are rounded down to whole samples of the encoding.
func NewChunker(encodingInfo EncodingInfo, firstSize, size int) *Chunker {
	sampleSize := max(encodingInfo.Format.ByteSize(), 1)
	return &Chunker{
		firstSize:  alignToSample(firstSize, sampleSize),
		size:       alignToSample(size, sampleSize),
		sampleSize: sampleSize,
	}
}

func alignToSample(size, sampleSize int) int {
	size -= size % sampleSize
	if size <= 0 {
		return sampleSize
	}
	return size
}

func (c *Chunker) nextSize() int {
	if c.emitted {
		return c.size
	}
	return c.firstSize
}

// Write buffers data and returns every complete chunk.
func (c *Chunker) Write(data []byte) [][]byte {
	c.pending = append(c.pending, data...)

	var chunks [][]byte
	for size := c.nextSize(); len(c.pending) >= size; size = c.nextSize() {
		chunk := make([]byte, size)
		copy(chunk, c.pending)
		chunks = append(chunks, chunk)
		c.pending = c.pending[size:]
		c.emitted = true
	}
	return chunks
}

// Flush returns what is left, trimmed to whole samples. A trailing partial
// sample cannot be played and is dropped.
func (c *Chunker) Flush() []byte {
	n := len(c.pending) - len(c.pending)%c.sampleSize
	if n == 0 {
		c.pending = nil
		return nil
	}

	rest := make([]byte, n)
	copy(rest, c.pending[:n])
	c.pending = nil
	c.emitted = true
	return rest
}
