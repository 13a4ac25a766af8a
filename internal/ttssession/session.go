// Package ttssession manages the single long-lived Gemini Live connection
// that Synthesize calls share. It owns the connect/reconnect state
// machine described in spec.md §4.4, adapted from
// MrWong99-glyphoxa/internal/session's Reconnector: connects on demand from
// Acquire, reports state through a steady idle poll, and guarantees that at
// most one connect attempt is ever in flight. There is no background
// reconnect loop: after a Teardown or a failed connect the session stays
// disconnected until the next Acquire, and NextBackoff/ResetBackoff are not
// applied to those connects.
package ttssession

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/nupi-ai/ttsd/internal/config"
	"github.com/nupi-ai/ttsd/internal/ttssession/geminilive"
)

// State is the connection lifecycle state spec.md §4.4 names explicitly.
type State int

const (
	Disconnected State = iota
	Connecting
	Connected
)

func (s State) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	default:
		return "disconnected"
	}
}

const (
	initialBackoff = 1 * time.Second
	maxBackoff     = 30 * time.Second
	idlePoll       = 5 * time.Second
)

// Session is the subset of *geminilive.Session that Manager and its
// callers depend on. Defining it here lets tests substitute a fake
// without a real WebSocket connection.
type Session interface {
	Speak(ctx context.Context, text string) error
	Recv(ctx context.Context) (chunks []geminilive.Chunk, done bool, err error)
	Close() error
}

// Dialer opens a Gemini Live session. Swappable in tests.
type Dialer func(ctx context.Context, cfg geminilive.Config) (Session, error)

// Manager holds the active session and reconnects it on demand. Exactly
// one goroutine may be inside connect() at a time; Acquire serializes
// callers onto that single in-flight attempt rather than racing.
type Manager struct {
	dial   Dialer
	apiKey string
	model  string
	log    *slog.Logger

	mu           sync.Mutex
	state        State
	session      Session
	activeConfig *config.Configuration
	backoff      time.Duration
}

// NewManager constructs a Manager that dials Gemini Live with the given
// API key and model. apiKey/model come from bootstrap.Settings.
func NewManager(apiKey, model string, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		dial: func(ctx context.Context, cfg geminilive.Config) (Session, error) {
			return geminilive.Dial(ctx, cfg)
		},
		apiKey:  apiKey,
		model:   model,
		log:     logger.With("component", "ttssession"),
		state:   Disconnected,
		backoff: initialBackoff,
	}
}

// State reports the current lifecycle state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Acquire returns the session for cfg, opening one if none exists or
// reopening it if cfg differs from the session currently in use in mode,
// voice, style, language or resolved instruction text (so an edited
// custom_styles body counts) — per spec.md §4.5 step 1, such a change always
// closes and reopens the session rather than trying to mutate it in place.
// A change to max_chars alone keeps the current session.
func (m *Manager) Acquire(ctx context.Context, cfg config.Configuration) (Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.session != nil && m.activeConfig != nil && configsEqual(*m.activeConfig, cfg) {
		return m.session, nil
	}

	if m.session != nil {
		m.closeLocked()
	}

	return m.connectLocked(ctx, cfg)
}

// Teardown closes the active session, if any, and returns to
// disconnected. Called on send/receive errors so the next Acquire
// reconnects from scratch.
func (m *Manager) Teardown() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closeLocked()
}

func (m *Manager) closeLocked() {
	if m.session != nil {
		_ = m.session.Close()
	}
	m.session = nil
	m.activeConfig = nil
	m.state = Disconnected
}

func (m *Manager) connectLocked(ctx context.Context, cfg config.Configuration) (Session, error) {
	m.state = Connecting
	sess, err := m.dial(ctx, geminilive.Config{
		Model:       m.model,
		Voice:       cfg.Voice,
		Instruction: cfg.Instruction(),
		APIKey:      m.apiKey,
	})
	if err != nil {
		m.state = Disconnected
		return nil, fmt.Errorf("ttssession: connect: %w", err)
	}
	m.session = sess
	active := cfg
	m.activeConfig = &active
	m.state = Connected
	m.backoff = initialBackoff
	return sess, nil
}

// Run is the idle loop: it checks State every idlePoll in every state and
// never connects or reconnects by itself, and it applies no backoff —
// reconnection is always caller-driven via the next Acquire. Run exists
// so a supervisor can observe state transitions via the onState callback
// for logging without polling State() itself.
func (m *Manager) Run(ctx context.Context, onState func(State)) {
	ticker := time.NewTicker(idlePoll)
	defer ticker.Stop()
	last := m.State()
	if onState != nil {
		onState(last)
	}
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			cur := m.State()
			if cur != last {
				last = cur
				if onState != nil {
					onState(cur)
				}
			}
		}
	}
}

// NextBackoff returns the current backoff duration and advances it
// exponentially, capped at maxBackoff, matching the 1s→2s→4s→...→30s
// progression spec.md §4.4 specifies for reconnect attempts.
func (m *Manager) NextBackoff() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	d := m.backoff
	m.backoff *= 2
	if m.backoff > maxBackoff {
		m.backoff = maxBackoff
	}
	return d
}

// ResetBackoff restores the backoff to its initial value after a
// successful connect.
func (m *Manager) ResetBackoff() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.backoff = initialBackoff
}

func configsEqual(a, b config.Configuration) bool {
	return a.Mode == b.Mode && a.Voice == b.Voice && a.Style == b.Style &&
		a.Language == b.Language && a.Instruction() == b.Instruction()
}
