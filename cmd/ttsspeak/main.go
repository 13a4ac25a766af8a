// Command ttsspeak is the hook client half of spec.md §6: a Stop-hook
// invocation reads a JSON document from stdin naming a conversation
// transcript, extracts the last assistant message, and hands it to the
// running ttsd daemon over its local socket. Grounded on
// original_source/speak_hook.py's raw-text variant — spec.md §10 names
// it, not the remote-summarizing one, as authoritative, since summary
// vs. full rendering is the daemon's Configuration.mode concern, not the
// hook client's.
package main

import (
	"encoding/json"
	"io"
	"net"
	"os"
	"path/filepath"
	"time"

	"github.com/nupi-ai/ttsd/internal/transcript"
)

// socketDialTimeout bounds how long the client waits to connect before
// giving up; spec.md §6 documents no explicit value, so this mirrors the
// 5-second timeout the Python original applies to the whole send.
const socketDialTimeout = 5 * time.Second

type hookInput struct {
	TranscriptPath string `json:"transcript_path"`
}

func main() {
	os.Exit(run())
}

// run never returns a non-zero status: spec.md §6's hook client contract
// is "client exit code is always 0" so a misbehaving hook never fails the
// host process's Stop sequence.
func run() int {
	var in hookInput
	if err := json.NewDecoder(os.Stdin).Decode(&in); err != nil {
		send(fallbackMessage())
		return 0
	}

	if in.TranscriptPath == "" {
		send(fallbackMessage())
		return 0
	}
	if _, err := os.Stat(in.TranscriptPath); err != nil {
		send(fallbackMessage())
		return 0
	}

	text, err := transcript.LastAssistantText(in.TranscriptPath)
	if err != nil || text == "" {
		send("Ready")
		return 0
	}

	send(text)
	return 0
}

// fallbackMessage matches the Python original's "Done" substitution for
// undecodable hook input or a missing transcript. A transcript that exists
// but cannot be read, or holds no assistant text, gets "Ready" instead.
func fallbackMessage() string { return "Done" }

// socketPath resolves ~/.claude/tts.sock; a missing $HOME falls back to
// the current directory's .claude, which keeps send() a no-op failure
// rather than a panic in a broken environment.
func socketPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return filepath.Join(home, ".claude", "tts.sock")
}

// send writes text to the daemon's socket and closes the connection
// without reading a reply, per spec.md §6: the daemon never responds.
// Any failure (daemon not running, socket missing) is swallowed — the
// hook client's job is to degrade silently, never to block or fail the
// host process.
func send(text string) {
	path := socketPath()
	if _, err := os.Stat(path); err != nil {
		return
	}

	conn, err := net.DialTimeout("unix", path, socketDialTimeout)
	if err != nil {
		return
	}
	defer conn.Close()

	_ = conn.SetWriteDeadline(time.Now().Add(socketDialTimeout))
	_, _ = io.WriteString(conn, text)
}
