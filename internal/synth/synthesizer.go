// Package synth implements the exact synthesis contract of spec.md §4.5:
// given text and a configuration, acquire the shared Gemini Live session,
// send one user turn, and stream the model's audio response into both a
// byte collector and a live playback sink simultaneously.
package synth

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"

	"github.com/nupi-ai/ttsd/internal/config"
	"github.com/nupi-ai/ttsd/internal/sink"
	"github.com/nupi-ai/ttsd/internal/ttssession"
)

// SessionAcquirer is the subset of *ttssession.Manager that Synthesizer
// needs, so tests can substitute a fake session source.
type SessionAcquirer interface {
	Acquire(ctx context.Context, cfg config.Configuration) (ttssession.Session, error)
	Teardown()
}

// Synthesizer turns text into PCM audio, feeding a Sink as chunks arrive
// and returning the concatenated result once the model's turn completes.
type Synthesizer struct {
	sessions SessionAcquirer
	log      *slog.Logger
}

// New constructs a Synthesizer bound to the given session source.
func New(sessions SessionAcquirer, logger *slog.Logger) *Synthesizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Synthesizer{sessions: sessions, log: logger.With("component", "synth")}
}

// Speak sends text through the active session under cfg, feeding s as PCM
// chunks arrive, and returns the concatenated audio once turnComplete is
// observed. It returns (nil, nil) — not an error — when the model's turn
// produced no audio data, per spec.md §4.5 step 4's "absent and a
// warning" outcome.
func (sy *Synthesizer) Speak(ctx context.Context, text string, cfg config.Configuration, s sink.Sink) ([]byte, error) {
	sess, err := sy.sessions.Acquire(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("synth: acquire session: %w", err)
	}

	if err := sess.Speak(ctx, text); err != nil {
		sy.sessions.Teardown()
		return nil, fmt.Errorf("synth: send turn: %w", err)
	}

	var collected bytes.Buffer
	for {
		chunks, done, err := sess.Recv(ctx)
		if err != nil {
			sy.sessions.Teardown()
			return nil, fmt.Errorf("synth: receive: %w", err)
		}
		for _, c := range chunks {
			collected.Write(c.Data)
			if err := s.Feed(c.Data); err != nil {
				sy.log.Warn("sink feed failed", "error", err)
			}
		}
		if done {
			break
		}
	}

	if collected.Len() == 0 {
		sy.log.Warn("synthesis produced no audio", "text_len", len(text))
		return nil, nil
	}
	return collected.Bytes(), nil
}
