// Package transcript implements the hook client's half of spec.md §6: it
// scans a Claude Code conversation transcript (one JSON object per line)
// for the last assistant turn and returns its text content, ready to hand
// to the daemon over the local socket. Grounded on
// original_source/speak_hook.py's extract_last_assistant_message — the
// raw-text hook variant spec.md §10 names as authoritative, not the
// remote-summarizing one.
package transcript

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// maxCodePoints bounds the text handed to the daemon, per spec.md §6.
const maxCodePoints = 1000

type entry struct {
	Type    string  `json:"type"`
	Message message `json:"message"`
}

type message struct {
	Content []json.RawMessage `json:"content"`
}

// LastAssistantText reads path as newline-delimited JSON records, scans
// from the last record toward the first for one with type "assistant",
// joins every text block (or bare string) in its message content with
// single spaces, and truncates to maxCodePoints. A record that fails to
// parse is skipped rather than aborting the scan, mirroring the Python
// original's per-line try/except.
func LastAssistantText(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("transcript: read %s: %w", path, err)
	}

	for _, line := range reverseLines(string(data)) {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		var e entry
		if err := json.Unmarshal([]byte(line), &e); err != nil {
			continue
		}
		if e.Type != "assistant" {
			continue
		}
		texts := extractTexts(e.Message.Content)
		if len(texts) > 0 {
			return truncateRunes(strings.Join(texts, " "), maxCodePoints), nil
		}
	}
	return "", nil
}

// reverseLines splits s on newlines and returns them last-to-first, so
// callers can scan for the most recent matching record without holding
// the whole parsed transcript in memory twice.
func reverseLines(s string) []string {
	lines := strings.Split(s, "\n")
	for i, j := 0, len(lines)-1; i < j; i, j = i+1, j-1 {
		lines[i], lines[j] = lines[j], lines[i]
	}
	return lines
}

// extractTexts gathers every "text"-typed content block and bare string
// element of a message's content array, in original order.
func extractTexts(blocks []json.RawMessage) []string {
	var texts []string
	for _, b := range blocks {
		var s string
		if err := json.Unmarshal(b, &s); err == nil {
			texts = append(texts, s)
			continue
		}
		var block struct {
			Type string `json:"type"`
			Text string `json:"text"`
		}
		if err := json.Unmarshal(b, &block); err == nil && block.Type == "text" {
			texts = append(texts, block.Text)
		}
	}
	return texts
}

func truncateRunes(s string, max int) string {
	count := 0
	for i := range s {
		if count == max {
			return s[:i]
		}
		count++
	}
	return s
}
