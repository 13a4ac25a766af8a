package sink

import (
	"bytes"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"sync"

	"github.com/nupi-ai/ttsd/internal/audio"
)

// playerCandidates lists external player binaries in preference order,
// mirroring original_source/tts_daemon.py's play_audio_async fallback
// chain: PulseAudio's paplay first, then ALSA's aplay, then mpv as a
// last resort that's usually available regardless of the sound server.
var playerCandidates = []string{"paplay", "aplay", "mpv"}

// lookPath is swappable in tests.
var lookPath = exec.LookPath

// PlayerSink is the Audio Sink fallback used when PortAudio is
// unavailable (init failure, missing device, headless container). It
// buffers an entire utterance in memory, writes it to a temp WAV file on
// Finish, and shells out to whichever player binary was found at
// construction time, the way tmc-aistudio's playAudioChunkFIFO shells out
// to afplay via a temp file rather than a raw device.
type PlayerSink struct {
	player string
	log    *slog.Logger

	mu     sync.Mutex
	buf    bytes.Buffer
	done   chan struct{}
	closed bool
}

// NewPlayerSink probes playerCandidates with exec.LookPath and returns a
// sink bound to the first one found. It errors if none are installed.
func NewPlayerSink(logger *slog.Logger) (*PlayerSink, error) {
	if logger == nil {
		logger = slog.Default()
	}
	for _, name := range playerCandidates {
		if path, err := lookPath(name); err == nil {
			return &PlayerSink{
				player: path,
				log:    logger.With("component", "sink", "backend", "player", "player", name),
				done:   make(chan struct{}),
			}, nil
		}
	}
	return nil, fmt.Errorf("sink: no audio player found (tried %v)", playerCandidates)
}

// Feed buffers a PCM chunk; PlayerSink has no realtime pre-buffer concept
// since nothing plays until Finish.
func (s *PlayerSink) Feed(chunk []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.buf.Write(chunk)
	return err
}

// Finish encodes the buffered PCM as WAV, writes it to a temp file, and
// runs the player against it in a goroutine so Finish itself doesn't
// block the caller; WaitDone is what blocks until playback completes.
func (s *PlayerSink) Finish() {
	s.mu.Lock()
	pcm := make([]byte, s.buf.Len())
	copy(pcm, s.buf.Bytes())
	s.buf.Reset()
	s.mu.Unlock()

	go func() {
		defer close(s.done)
		if len(pcm) == 0 {
			return
		}
		if err := s.play(pcm); err != nil {
			s.log.Error("player sink playback failed", "error", err)
		}
	}()
}

func (s *PlayerSink) play(pcm []byte) error {
	wavBytes, err := audio.EncodePCM(pcm)
	if err != nil {
		return fmt.Errorf("encode wav: %w", err)
	}

	tmp, err := os.CreateTemp("", "ttsd-play-*.wav")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(wavBytes); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}

	cmd := exec.Command(s.player, tmpPath)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%s %s: %w (stderr: %s)", s.player, tmpPath, err, stderr.String())
	}
	return nil
}

// WaitDone blocks until the player process launched by Finish exits, then
// resets the sink for the next utterance.
func (s *PlayerSink) WaitDone() {
	<-s.done
	s.mu.Lock()
	s.done = make(chan struct{})
	s.mu.Unlock()
}

// Close is a no-op; PlayerSink holds no persistent OS resources between
// utterances.
func (s *PlayerSink) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}
