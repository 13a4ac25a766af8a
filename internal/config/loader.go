package config

import (
	"encoding/json"
	"log/slog"
	"os"
)

// Loader loads the synthesis Configuration from a JSON file. Tests can
// override ReadFile to inject deterministic content without touching disk,
// mirroring the teacher's Lookup-injection pattern for environment reads.
type Loader struct {
	Path     string
	ReadFile func(string) ([]byte, error)
	Log      *slog.Logger
}

// Load reads and decodes the configuration document, merges it onto
// Defaults, and normalizes the result. A missing file or malformed JSON is
// not an error: it returns Defaults(), silently for a missing file and with
// a logged warning for any other read failure or malformed JSON, per spec.md §4.3
// ("malformed JSON: log a warning, fall back to defaults for the current
// request only").
func (l Loader) Load() Configuration {
	readFile := l.ReadFile
	if readFile == nil {
		readFile = os.ReadFile
	}
	log := l.Log
	if log == nil {
		log = slog.Default()
	}

	cfg := Defaults()

	data, err := readFile(l.Path)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Warn("config: read document, using defaults", "path", l.Path, "error", err)
		}
		return cfg
	}

	var doc Configuration
	if err := json.Unmarshal(data, &doc); err != nil {
		log.Warn("config: malformed document, using defaults", "path", l.Path, "error", err)
		return cfg
	}

	mergeOnto(&cfg, doc)
	if err := cfg.Normalize(); err != nil {
		log.Warn("config: invalid document, using defaults", "path", l.Path, "error", err)
		return Defaults()
	}
	return cfg
}

// mergeOnto copies every non-zero field of doc onto cfg.
func mergeOnto(cfg *Configuration, doc Configuration) {
	if doc.Mode != "" {
		cfg.Mode = doc.Mode
	}
	if doc.Voice != "" {
		cfg.Voice = doc.Voice
	}
	if doc.Style != "" {
		cfg.Style = doc.Style
	}
	if doc.Language != "" {
		cfg.Language = doc.Language
	}
	if doc.MaxChars != 0 {
		cfg.MaxChars = doc.MaxChars
	}
	if doc.CustomStyles != nil {
		cfg.CustomStyles = doc.CustomStyles
	}
}
