package sink

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/gordonklaus/portaudio"

	"github.com/nupi-ai/ttsd/internal/audio"
)

// preBufferChunks is the number of fed chunks that must accumulate before
// playback starts, per spec.md §4.2. finish() arriving before the
// threshold is met starts playback anyway (the short-message tie-break).
const preBufferChunks = 2

// PortAudioSink is the low-latency realtime Audio Sink. A single PortAudio
// output stream runs a callback on the audio driver's own thread (spec.md
// §5); the callback pulls fixed-size frames from a queue fed by Feed and
// pads with silence on underrun rather than blocking or erroring.
type PortAudioSink struct {
	stream *portaudio.Stream
	log    *slog.Logger

	mu        sync.Mutex
	queue     []byte
	chunksFed int
	playing   bool // pre-buffer threshold met, or finish() arrived first
	finished  bool
	drained   chan struct{}
}

// NewPortAudioSink initializes the PortAudio runtime and opens a default
// output stream at the fixed sample rate. Callers should treat a non-nil
// error as "realtime audio unavailable" and fall back to PlayerSink.
func NewPortAudioSink(logger *slog.Logger) (*PortAudioSink, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("sink: portaudio init: %w", err)
	}

	s := &PortAudioSink{
		log:     logger.With("component", "sink", "backend", "portaudio"),
		drained: make(chan struct{}),
	}

	const framesPerBuffer = 1024
	stream, err := portaudio.OpenDefaultStream(0, audio.Channels, float64(audio.SampleRate), framesPerBuffer, s.callback)
	if err != nil {
		portaudio.Terminate()
		return nil, fmt.Errorf("sink: open default stream: %w", err)
	}
	s.stream = stream

	if err := stream.Start(); err != nil {
		stream.Close()
		portaudio.Terminate()
		return nil, fmt.Errorf("sink: start stream: %w", err)
	}
	return s, nil
}

// callback runs on PortAudio's audio thread; it must never block. Until
// playing is set (pre-buffer met or finish() called early), it emits
// silence rather than draining the queue, so a late-arriving chunk isn't
// lost to an underrun that happened before buffering finished.
func (s *PortAudioSink) callback(out []int16) {
	s.mu.Lock()
	var frame []byte
	drainedNow := false
	if s.playing {
		needed := len(out) * 2 // bytes
		n := len(s.queue)
		if n > needed {
			n = needed
		}
		frame = s.queue[:n]
		s.queue = s.queue[n:]
		drainedNow = s.finished && len(s.queue) == 0
	}
	s.mu.Unlock()

	for i := 0; i < len(out); i++ {
		lo := i * 2
		if lo+1 < len(frame) {
			out[i] = int16(uint16(frame[lo]) | uint16(frame[lo+1])<<8)
		} else {
			out[i] = 0 // underrun or not yet playing: silence
		}
	}

	if drainedNow {
		s.closeDrained()
	}
}

// Feed appends a PCM chunk to the playback queue. Once preBufferChunks
// chunks have been fed (or Finish is called first, see Finish), the
// callback starts draining the queue instead of emitting silence.
func (s *PortAudioSink) Feed(chunk []byte) error {
	s.mu.Lock()
	s.queue = append(s.queue, chunk...)
	s.chunksFed++
	if !s.playing && s.chunksFed >= preBufferChunks {
		s.playing = true
	}
	s.mu.Unlock()
	return nil
}

// Finish marks end-of-stream. If pre-buffering never reached its
// threshold, playback starts immediately provided at least one chunk has
// been fed; once the queue drains, WaitDone unblocks.
func (s *PortAudioSink) Finish() {
	s.mu.Lock()
	s.finished = true
	if !s.playing && s.chunksFed > 0 {
		s.playing = true
	}
	empty := s.playing && len(s.queue) == 0
	noAudio := s.chunksFed == 0
	s.mu.Unlock()
	if empty || noAudio {
		s.closeDrained()
	}
}

func (s *PortAudioSink) closeDrained() {
	select {
	case <-s.drained:
	default:
		close(s.drained)
	}
}

// WaitDone blocks until all fed audio has been played, then resets sink
// state so it can be fed a fresh utterance.
func (s *PortAudioSink) WaitDone() {
	<-s.drained
	s.mu.Lock()
	s.queue = nil
	s.chunksFed = 0
	s.playing = false
	s.finished = false
	s.drained = make(chan struct{})
	s.mu.Unlock()
}

// Close stops and releases the PortAudio stream and runtime. Safe to call
// once after WaitDone.
func (s *PortAudioSink) Close() error {
	if s.stream == nil {
		return nil
	}
	err := s.stream.Stop()
	if cerr := s.stream.Close(); cerr != nil && err == nil {
		err = cerr
	}
	portaudio.Terminate()
	if err != nil {
		return fmt.Errorf("sink: close portaudio stream: %w", err)
	}
	return nil
}
