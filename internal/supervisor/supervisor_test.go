package supervisor

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"testing"
)

type fakeSession struct{ torndown int }

func (f *fakeSession) Teardown() { f.torndown++ }

func TestListenWritesPIDAndBindsSocket(t *testing.T) {
	dir := t.TempDir()
	pidFile := filepath.Join(dir, "ttsd.pid")
	sockPath := filepath.Join(dir, "ttsd.sock")

	s := New(pidFile, sockPath, nil)
	ln, err := s.Listen()
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	defer ln.Close()

	data, err := os.ReadFile(pidFile)
	if err != nil {
		t.Fatalf("read pid file: %v", err)
	}
	pid, err := strconv.Atoi(string(data))
	if err != nil {
		t.Fatalf("parse pid: %v", err)
	}
	if pid != os.Getpid() {
		t.Fatalf("pid file = %d, want %d", pid, os.Getpid())
	}

	info, err := os.Stat(sockPath)
	if err != nil {
		t.Fatalf("stat socket: %v", err)
	}
	if mode := info.Mode().Perm(); mode != socketMode {
		t.Fatalf("socket mode = %o, want %o", mode, socketMode)
	}
}

func TestListenRemovesStaleSocketNode(t *testing.T) {
	dir := t.TempDir()
	pidFile := filepath.Join(dir, "ttsd.pid")
	sockPath := filepath.Join(dir, "ttsd.sock")

	if err := os.WriteFile(sockPath, []byte("stale"), 0o644); err != nil {
		t.Fatalf("seed stale socket node: %v", err)
	}

	s := New(pidFile, sockPath, nil)
	ln, err := s.Listen()
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	defer ln.Close()
}

func TestListenRefusesWhenPIDNamesLiveProcess(t *testing.T) {
	dir := t.TempDir()
	pidFile := filepath.Join(dir, "ttsd.pid")
	sockPath := filepath.Join(dir, "ttsd.sock")

	cmd := exec.Command("sleep", "30")
	if err := cmd.Start(); err != nil {
		t.Skipf("cannot start helper process: %v", err)
	}
	defer cmd.Process.Kill()

	if err := os.WriteFile(pidFile, []byte(strconv.Itoa(cmd.Process.Pid)), 0o644); err != nil {
		t.Fatalf("seed pid file: %v", err)
	}

	s := New(pidFile, sockPath, nil)
	if _, err := s.Listen(); err == nil {
		t.Fatal("expected Listen to refuse when the PID file names a live process")
	}
}

func TestListenProceedsWhenPIDNamesDeadProcess(t *testing.T) {
	dir := t.TempDir()
	pidFile := filepath.Join(dir, "ttsd.pid")
	sockPath := filepath.Join(dir, "ttsd.sock")

	cmd := exec.Command("true")
	if err := cmd.Run(); err != nil {
		t.Skipf("cannot run helper process: %v", err)
	}

	if err := os.WriteFile(pidFile, []byte(strconv.Itoa(cmd.Process.Pid)), 0o644); err != nil {
		t.Fatalf("seed pid file: %v", err)
	}

	s := New(pidFile, sockPath, nil)
	ln, err := s.Listen()
	if err != nil {
		t.Fatalf("Listen should proceed over a stale pid: %v", err)
	}
	defer ln.Close()
}

func TestShutdownRemovesSocketAndPIDAndTearsDownSession(t *testing.T) {
	dir := t.TempDir()
	pidFile := filepath.Join(dir, "ttsd.pid")
	sockPath := filepath.Join(dir, "ttsd.sock")

	s := New(pidFile, sockPath, nil)
	if _, err := s.Listen(); err != nil {
		t.Fatalf("Listen: %v", err)
	}

	sess := &fakeSession{}
	s.Shutdown(context.Background(), sess)

	if sess.torndown != 1 {
		t.Fatalf("session torndown %d times, want 1", sess.torndown)
	}
	if _, err := os.Stat(pidFile); !os.IsNotExist(err) {
		t.Fatal("expected pid file to be removed on shutdown")
	}
	if _, err := os.Stat(sockPath); !os.IsNotExist(err) {
		t.Fatal("expected socket node to be removed on shutdown")
	}
}

func TestCheckNotRunningIgnoresOwnPID(t *testing.T) {
	dir := t.TempDir()
	pidFile := filepath.Join(dir, "ttsd.pid")
	sockPath := filepath.Join(dir, "ttsd.sock")

	if err := os.WriteFile(pidFile, []byte(strconv.Itoa(os.Getpid())), 0o644); err != nil {
		t.Fatalf("seed pid file: %v", err)
	}

	s := New(pidFile, sockPath, nil)
	ln, err := s.Listen()
	if err != nil {
		t.Fatalf("Listen should proceed when the pid file already names this process: %v", err)
	}
	defer ln.Close()
}
