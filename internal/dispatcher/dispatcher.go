// Package dispatcher implements the request handling contract of
// spec.md §4.6: one UTF-8 text blob per connection, a cache lookup keyed
// on the request parameters, and either a cached-WAV replay or a live
// synthesis pass through the shared sink. Concurrency is bounded to one
// synthesis/playback in flight at a time, grounded on the gRPC handler
// shape of the teacher's internal/server/server.go generalized from a
// streaming RPC to a plain Unix-socket connection, with the accept/serialize
// split borrowed from the socket lifecycle in
// other_examples/.../ehrlich-b-wingthing__internal-egg-server.go.
package dispatcher

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"strings"
	"time"

	"github.com/nupi-ai/ttsd/internal/audio"
	"github.com/nupi-ai/ttsd/internal/cache"
	"github.com/nupi-ai/ttsd/internal/config"
	"github.com/nupi-ai/ttsd/internal/sink"
)

// maxRequestBytes bounds a single connection's text payload, per spec.md §6:
// oversized input is truncated at the read, not rejected.
const maxRequestBytes = 4096

// readTimeout is how long a connection may sit without delivering its full
// payload before the dispatcher gives up on it.
const readTimeout = 5 * time.Second

// Synthesizer is the subset of *synth.Synthesizer the dispatcher depends
// on, so tests can substitute a fake without a real Gemini Live session.
type Synthesizer interface {
	Speak(ctx context.Context, text string, cfg config.Configuration, s sink.Sink) ([]byte, error)
}

// Dispatcher accepts connections on the daemon's local socket and serves
// each one to completion before starting the next, per spec.md §4.6's
// single-synthesis-in-flight rule. The sink is long-lived and shared
// across requests; Sink.WaitDone resets its internal buffering so it is
// ready for the next utterance.
type Dispatcher struct {
	cfg   config.Loader
	cache *cache.Cache
	synth Synthesizer
	sink  sink.Sink
	log   *slog.Logger

	sem chan struct{}
}

// New constructs a Dispatcher. sink is shared across every request this
// Dispatcher serves.
func New(cfgLoader config.Loader, c *cache.Cache, sy Synthesizer, s sink.Sink, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		cfg:   cfgLoader,
		cache: c,
		synth: sy,
		sink:  s,
		log:   logger.With("component", "dispatcher"),
		sem:   make(chan struct{}, 1),
	}
}

// Serve accepts connections on ln until ctx is cancelled or ln is closed.
// Each connection is dispatched to its own goroutine so a slow or stalled
// client never blocks Accept, but handle itself serializes on d.sem so at
// most one request is being synthesized or played at a time.
func (d *Dispatcher) Serve(ctx context.Context, ln net.Listener) error {
	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
			}
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			d.log.Error("accept failed", "error", err)
			continue
		}
		go d.dispatch(ctx, conn)
	}
}

// dispatch serializes handle calls through d.sem, a size-1 buffered
// channel acting as a FIFO mutex: the first goroutine to send claims the
// slot, later ones block on the same send until it is released, and Go
// schedules blocked senders in the order they arrived.
func (d *Dispatcher) dispatch(ctx context.Context, conn net.Conn) {
	d.sem <- struct{}{}
	defer func() { <-d.sem }()
	d.handle(ctx, conn)
}

// handle implements spec.md §4.6's per-connection contract end to end.
func (d *Dispatcher) handle(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	text, err := d.readRequest(conn)
	if err != nil {
		d.log.Warn("read request", "error", err)
		return
	}
	if text == "" {
		return
	}

	cfg := d.cfg.Load()
	text = truncateRunes(text, cfg.MaxChars)
	key := cache.Key(text, cfg.Voice, cfg.Style, cfg.Mode, cfg.Language)

	if wavBytes, ok := d.cache.Read(key); ok {
		pcm, err := audio.DecodePCM(wavBytes)
		if err != nil {
			d.log.Warn("cache entry unreadable, treating as miss", "key", key, "error", err)
		} else {
			d.playCached(pcm)
			return
		}
	}

	d.synthesize(ctx, key, text, cfg)
}

// readRequest reads at most maxRequestBytes within readTimeout, decodes it
// as UTF-8 (dropping any invalid trailing sequence a truncated read may
// have split mid-codepoint) and trims surrounding whitespace.
func (d *Dispatcher) readRequest(conn net.Conn) (string, error) {
	_ = conn.SetReadDeadline(time.Now().Add(readTimeout))

	data, err := io.ReadAll(io.LimitReader(conn, maxRequestBytes))
	if err != nil {
		return "", err
	}

	text := strings.ToValidUTF8(string(data), "")
	return strings.TrimSpace(text), nil
}

// playCached feeds an already-synthesized utterance to the sink in a
// single chunk. The sink is always finalized, even though this path has
// no failure mode of its own, to keep the finalize-on-every-path
// invariant uniform with synthesize.
func (d *Dispatcher) playCached(pcm []byte) {
	defer func() {
		d.sink.Finish()
		d.sink.WaitDone()
	}()
	if err := d.sink.Feed(pcm); err != nil {
		d.log.Warn("sink feed failed", "error", err)
	}
}

// synthesize invokes the Synthesizer and, on success, writes the result
// back to the cache. The sink is finalized on every exit path — including
// synthesis failure — so the audio device is always released, per
// spec.md §4.6.
func (d *Dispatcher) synthesize(ctx context.Context, key, text string, cfg config.Configuration) {
	defer func() {
		d.sink.Finish()
		d.sink.WaitDone()
	}()

	pcm, err := d.synth.Speak(ctx, text, cfg, d.sink)
	if err != nil {
		d.log.Error("synthesis failed", "error", err)
		return
	}
	if pcm == nil {
		return
	}

	wavBytes, err := audio.EncodePCM(pcm)
	if err != nil {
		d.log.Error("encode wav for cache", "error", err)
		return
	}
	if err := d.cache.Write(key, wavBytes); err != nil {
		d.log.Error("write cache entry", "key", key, "error", err)
	}
}

// truncateRunes returns the first max Unicode code points of s. A
// non-positive max returns s unchanged, matching config.Configuration's
// "zero means unset" convention — Normalize always fills MaxChars before
// it reaches here, so this is a defensive fallback, not a relied-on path.
func truncateRunes(s string, max int) string {
	if max <= 0 {
		return s
	}
	count := 0
	for i := range s {
		if count == max {
			return s[:i]
		}
		count++
	}
	return s
}
