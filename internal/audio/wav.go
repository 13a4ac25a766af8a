package audio

import (
	"bytes"
	"fmt"
	"os"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// EncodePCM wraps raw little-endian 16-bit PCM samples in a standard RIFF/WAVE
// container at the fixed SampleRate/Channels/BitDepth, using
// github.com/go-audio/wav the way CWBudde-go-pocket-tts depends on it for
// WAV I/O, in place of a hand-rolled header writer. wav.Encoder requires an
// io.WriteSeeker to back-patch the RIFF/data chunk sizes on Close, so
// encoding goes through a scratch temp file, mirroring the teacher's
// temp-file-then-read pattern used elsewhere for atomic writes.
func EncodePCM(pcm []byte) ([]byte, error) {
	tmp, err := os.CreateTemp("", "ttsd-encode-*.wav")
	if err != nil {
		return nil, fmt.Errorf("audio: create scratch file: %w", err)
	}
	defer os.Remove(tmp.Name())
	defer tmp.Close()

	enc := wav.NewEncoder(tmp, SampleRate, BitDepth, Channels, 1)
	samples := bytesToInts(pcm)
	ib := &goaudio.IntBuffer{
		Format:         &goaudio.Format{SampleRate: SampleRate, NumChannels: Channels},
		Data:           samples,
		SourceBitDepth: BitDepth,
	}
	if err := enc.Write(ib); err != nil {
		return nil, fmt.Errorf("audio: encode wav: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("audio: close wav encoder: %w", err)
	}

	data, err := os.ReadFile(tmp.Name())
	if err != nil {
		return nil, fmt.Errorf("audio: read back scratch file: %w", err)
	}
	return data, nil
}

// DecodePCM reads a WAV container and returns its raw little-endian 16-bit
// PCM payload, validating that the format matches the fixed
// SampleRate/Channels/BitDepth. A mismatch is reported as an error so
// callers can treat it as a cache miss, per spec.md §4.1.
func DecodePCM(wavBytes []byte) ([]byte, error) {
	dec := wav.NewDecoder(bytes.NewReader(wavBytes))
	if !dec.IsValidFile() {
		return nil, fmt.Errorf("audio: not a valid WAV file")
	}
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("audio: decode wav: %w", err)
	}
	if dec.SampleRate != SampleRate || int(dec.NumChans) != Channels || int(dec.BitDepth) != BitDepth {
		return nil, fmt.Errorf("audio: unexpected format (rate=%d channels=%d depth=%d)",
			dec.SampleRate, dec.NumChans, dec.BitDepth)
	}
	return intsToBytes(buf.Data), nil
}

func bytesToInts(pcm []byte) []int {
	samples := make([]int, len(pcm)/2)
	for i := range samples {
		lo := int(pcm[i*2])
		hi := int(int8(pcm[i*2+1]))
		samples[i] = hi<<8 | lo
	}
	return samples
}

func intsToBytes(samples []int) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		out[i*2] = byte(s)
		out[i*2+1] = byte(s >> 8)
	}
	return out
}
