// Package supervisor owns the daemon's process lifecycle: the PID marker
// that prevents two instances from running against the same socket, the
// listener's bind/chmod sequence, and graceful shutdown on SIGINT/SIGTERM.
// Grounded on the PID-file and Unix-socket lifecycle in
// other_examples/.../ehrlich-b-wingthing__internal-egg-server.go —
// os.Remove(stale socket) before net.Listen, os.Chmod after bind,
// os.WriteFile the PID — generalized from a per-session authenticated
// socket to spec.md §6's single well-known path at mode 0o666 with no
// token file, and from the teacher's cmd/adapter/main.go signal.NotifyContext
// shutdown shape.
package supervisor

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"os"
	"strconv"
	"strings"
	"syscall"
)

// socketMode is world-writable, matching spec.md §6: the daemon is a
// single-user local tool, not a multi-tenant service.
const socketMode = 0o666

// Session is the subset of *ttssession.Manager the supervisor tears down
// on shutdown, so tests can substitute a fake.
type Session interface {
	Teardown()
}

// Supervisor binds the daemon's listener and manages its PID marker.
type Supervisor struct {
	pidFile    string
	socketPath string
	log        *slog.Logger

	listener net.Listener
}

// New constructs a Supervisor for the given PID file and socket path.
func New(pidFile, socketPath string, logger *slog.Logger) *Supervisor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Supervisor{
		pidFile:    pidFile,
		socketPath: socketPath,
		log:        logger.With("component", "supervisor"),
	}
}

// Listen implements spec.md §4.7's startup sequence: refuse to start if
// the PID marker names a live process, otherwise claim the PID marker,
// unlink any stale socket node left by a previous unclean exit, bind the
// listener and set its mode.
func (s *Supervisor) Listen() (net.Listener, error) {
	if err := s.checkNotRunning(); err != nil {
		return nil, err
	}
	if err := s.writePID(); err != nil {
		return nil, err
	}

	os.Remove(s.socketPath)
	ln, err := net.Listen("unix", s.socketPath)
	if err != nil {
		os.Remove(s.pidFile)
		return nil, fmt.Errorf("supervisor: listen on %s: %w", s.socketPath, err)
	}
	if err := os.Chmod(s.socketPath, socketMode); err != nil {
		ln.Close()
		os.Remove(s.pidFile)
		return nil, fmt.Errorf("supervisor: chmod socket: %w", err)
	}

	s.listener = ln
	s.log.Info("listening", "socket", s.socketPath, "pid", os.Getpid())
	return ln, nil
}

// checkNotRunning returns an error if s.pidFile names a process that is
// still alive. A missing or unparsable PID file, or one naming a dead
// process, is not an error: it is the normal case after a clean or
// crashed prior exit.
func (s *Supervisor) checkNotRunning() error {
	data, err := os.ReadFile(s.pidFile)
	if err != nil {
		return nil
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return nil
	}
	if pid == os.Getpid() {
		return nil
	}
	if processAlive(pid) {
		return fmt.Errorf("supervisor: daemon already running with pid %d (%s)", pid, s.pidFile)
	}
	return nil
}

// processAlive reports whether pid names a live process, by sending
// signal 0 — a no-op signal whose delivery failure means the process is
// gone — the same liveness probe the egg-server's watchdog uses
// (cmd.Process.Signal(syscall.Signal(0))).
func processAlive(pid int) bool {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return proc.Signal(syscall.Signal(0)) == nil
}

func (s *Supervisor) writePID() error {
	if err := os.WriteFile(s.pidFile, []byte(strconv.Itoa(os.Getpid())), 0o644); err != nil {
		return fmt.Errorf("supervisor: write pid file: %w", err)
	}
	return nil
}

// Shutdown implements spec.md §4.7's signal handling: tear down the
// session, stop accepting connections, and unlink both filesystem nodes
// this process owns so a restarted daemon finds a clean slate.
func (s *Supervisor) Shutdown(_ context.Context, session Session) {
	s.log.Info("shutting down")
	if session != nil {
		session.Teardown()
	}
	if s.listener != nil {
		s.listener.Close()
	}
	os.Remove(s.socketPath)
	os.Remove(s.pidFile)
}
