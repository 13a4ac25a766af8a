// Package audio wraps the fixed WAV format spec.md §3/§6 mandates for
// every cache entry and device write: mono, 24 kHz, 16-bit PCM
// little-endian.
package audio

const (
	SampleRate = 24000
	Channels   = 1
	BitDepth   = 16
	// FrameBytes is the byte size of one sample across all channels.
	FrameBytes = Channels * (BitDepth / 8)
)
