// Command ttsd is the daemon entrypoint: it wires bootstrap settings, the
// synthesis cache, the Gemini Live session manager, the audio sink and
// the request dispatcher together, then serves the local socket until a
// termination signal arrives. Grounded on the teacher's cmd/adapter/main.go
// bind-listener-before-init ordering and signal.NotifyContext shutdown
// shape, adapted from a TCP gRPC listener to supervisor-managed Unix
// socket lifecycle.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/nupi-ai/ttsd/internal/bootstrap"
	"github.com/nupi-ai/ttsd/internal/cache"
	"github.com/nupi-ai/ttsd/internal/config"
	"github.com/nupi-ai/ttsd/internal/dispatcher"
	"github.com/nupi-ai/ttsd/internal/sink"
	"github.com/nupi-ai/ttsd/internal/supervisor"
	"github.com/nupi-ai/ttsd/internal/synth"
	"github.com/nupi-ai/ttsd/internal/telemetry"
	"github.com/nupi-ai/ttsd/internal/ttssession"
)

func main() {
	var debug bool

	root := &cobra.Command{
		Use:   "ttsd",
		Short: "Local text-to-speech daemon for Claude Code status updates",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(debug)
		},
	}
	root.Flags().BoolVar(&debug, "debug", false, "enable debug-level logging regardless of configuration")

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(debug bool) error {
	settings, err := bootstrap.Load(debug)
	if err != nil {
		slog.Error("failed to load bootstrap settings", "error", err)
		return err
	}

	recorder := telemetry.NewRecorder(newLogger(settings.Debug))
	logger := recorder.Logger()
	logger.Info("starting ttsd",
		"socket_path", settings.SocketPath,
		"cache_dir", settings.CacheDir,
		"gemini_model", settings.GeminiModel,
	)

	// STEP 1: claim the PID marker and bind the socket before doing any
	// slower initialization, so a supervised restart sees the socket node
	// appear as early as possible.
	super := supervisor.New(settings.PIDFile, settings.SocketPath, logger)
	ln, err := super.Listen()
	if err != nil {
		logger.Error("failed to bind socket", "error", err)
		return err
	}

	audioCache, err := cache.New(settings.CacheDir, settings.CacheMaxBytes, logger)
	if err != nil {
		logger.Error("failed to initialize cache", "error", err)
		super.Shutdown(context.Background(), nil)
		return err
	}

	sessionMgr := ttssession.NewManager(settings.GeminiAPIKey, settings.GeminiModel, logger)
	synthesizer := synth.New(sessionMgr, logger)

	audioSink := newSink(logger)
	defer audioSink.Close()

	cfgLoader := config.Loader{Path: settings.ConfigPath, Log: logger}
	disp := dispatcher.New(cfgLoader, audioCache, synthesizer, audioSink, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go sessionMgr.Run(ctx, func(state ttssession.State) {
		logger.Info("session state changed", "state", state.String())
	})

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- disp.Serve(ctx, ln)
	}()

	logger.Info("ttsd ready")

	select {
	case <-ctx.Done():
		logger.Info("shutdown requested")
	case err := <-serveErr:
		if err != nil {
			logger.Error("dispatcher stopped unexpectedly", "error", err)
		}
	}

	super.Shutdown(context.Background(), sessionMgr)
	logger.Info("ttsd stopped")
	return nil
}

// newSink prefers the low-latency PortAudio device sink and falls back to
// shelling out to a system player when no audio device is available
// (headless container, missing PortAudio runtime), per spec.md §9's
// note that the fallback sink is an implementation choice.
func newSink(logger *slog.Logger) sink.Sink {
	if s, err := sink.NewPortAudioSink(logger); err == nil {
		logger.Info("audio sink: portaudio")
		return s
	} else {
		logger.Warn("portaudio unavailable, falling back to external player", "error", err)
	}

	s, err := sink.NewPlayerSink(logger)
	if err != nil {
		logger.Error("no audio backend available", "error", err)
		return noopSink{}
	}
	logger.Info("audio sink: external player")
	return s
}

// noopSink keeps the daemon serving requests (and writing cache entries)
// even with no audio backend at all, rather than failing to start.
type noopSink struct{}

func (noopSink) Feed(chunk []byte) error { return nil }
func (noopSink) Finish()                 {}
func (noopSink) WaitDone()               {}
func (noopSink) Close() error            { return nil }

func newLogger(debug bool) *slog.Logger {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	return slog.New(handler)
}
