package rtring

// PCMBuffer is a pre-allocated, reusable chunk of interleaved float32 PCM.
// Len is the number of valid samples currently held (<= cap(Samples));
// the callback fills or drains exactly Len samples and never resizes
// Samples, keeping the hot path allocation-free.
type PCMBuffer struct {
	Samples []float32
	Len     int
}

// Pool hands pre-allocated PCMBuffers back and forth between a producer and
// a consumer without allocating on the hot path: Free holds buffers ready to
// be filled, Filled holds buffers ready to be drained. A producer pops a
// buffer from Free, fills it, and pushes it to Filled; a consumer does the
// reverse. Buffer count and size are fixed at construction.
type Pool struct {
	Free   *Ring[*PCMBuffer]
	Filled *Ring[*PCMBuffer]
}

// NewPool allocates numBuffers PCMBuffers of samplesPerBuffer capacity each
// and seeds them all onto the Free ring. numBuffers is typically sized to
// cover a quarter second of audio at the stream's sample rate so a worker
// stall of that order does not stall the real-time callback.
func NewPool(numBuffers, samplesPerBuffer int) *Pool {
	p := &Pool{
		Free:   New[*PCMBuffer](numBuffers),
		Filled: New[*PCMBuffer](numBuffers),
	}
	for i := 0; i < numBuffers; i++ {
		p.Free.TryPush(&PCMBuffer{Samples: make([]float32, samplesPerBuffer)})
	}
	return p
}

// QuarterSecondBuffers returns the buffer count covering a quarter second
// of audio at sampleRate, given samplesPerBuffer samples per buffer,
// rounded up and never less than 2.
func QuarterSecondBuffers(sampleRate, samplesPerBuffer int) int {
	total := sampleRate / 4
	n := (total + samplesPerBuffer - 1) / samplesPerBuffer
	if n < 2 {
		n = 2
	}
	return n
}
