package capture

import (
	"encoding/base64"
	"math"
)

// chunkDivisor sets the chunk size to sampleRate/10 samples (100ms).
// The division truncates, so rates that are not a multiple of 10 drift
// by less than one sample per chunk.
const chunkDivisor = 10

// Framer accumulates float32 mono samples and emits fixed-duration
// chunks as base64-encoded 16-bit little-endian PCM. Leftover samples
// below the chunk threshold stay buffered for the next push; no sample
// is dropped or duplicated across chunk boundaries.
type Framer struct {
	sampleRate int
	chunkSize  int
	buf        []float32
	level      float32
	onChunk    func(base64 string)
}

// NewFramer creates a framer for the given sample rate. onChunk is
// invoked synchronously from Push for every complete chunk.
func NewFramer(sampleRate int, onChunk func(base64 string)) *Framer {
	chunkSize := sampleRate / chunkDivisor
	return &Framer{
		sampleRate: sampleRate,
		chunkSize:  chunkSize,
		buf:        make([]float32, 0, chunkSize*2),
		onChunk:    onChunk,
	}
}

// Push adds samples to the internal buffer and emits every complete
// chunk accumulated so far. The audio level is recomputed per call.
func (f *Framer) Push(samples []float32) {
	f.level = RMS(samples)
	f.buf = append(f.buf, samples...)

	for len(f.buf) >= f.chunkSize {
		chunk := f.buf[:f.chunkSize]
		encoded := EncodePCM16(chunk)
		f.buf = append(f.buf[:0], f.buf[f.chunkSize:]...)
		if f.onChunk != nil {
			f.onChunk(encoded)
		}
	}
}

// Level returns the RMS of the most recently pushed samples.
func (f *Framer) Level() float32 {
	return f.level
}

// Buffered returns the number of leftover samples awaiting the next chunk.
func (f *Framer) Buffered() int {
	return len(f.buf)
}

// ChunkSize returns the number of samples per emitted chunk.
func (f *Framer) ChunkSize() int {
	return f.chunkSize
}

// Reset discards buffered samples and zeroes the level.
func (f *Framer) Reset() {
	f.buf = f.buf[:0]
	f.level = 0
}

// EncodePCM16 converts float32 samples in [-1, 1] to little-endian
// 16-bit signed PCM and base64-encodes the result.
func EncodePCM16(samples []float32) string {
	pcm := make([]byte, len(samples)*2)
	for i, sample := range samples {
		if sample < -1 {
			sample = -1
		} else if sample > 1 {
			sample = 1
		}
		val := int16(sample * 32767)
		pcm[i*2] = byte(val)
		pcm[i*2+1] = byte(val >> 8)
	}
	return base64.StdEncoding.EncodeToString(pcm)
}

// RMS calculates the root mean square of audio samples.
func RMS(samples []float32) float32 {
	if len(samples) == 0 {
		return 0
	}

	var sum float64
	for _, s := range samples {
		sum += float64(s) * float64(s)
	}
	return float32(math.Sqrt(sum / float64(len(samples))))
}
