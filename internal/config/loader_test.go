package config

import (
	"os"
	"testing"
)

func fakeFile(data string, err error) func(string) ([]byte, error) {
	return func(string) ([]byte, error) {
		return []byte(data), err
	}
}

func TestLoaderFromJSON(t *testing.T) {
	l := Loader{ReadFile: fakeFile(`{
		"mode": "summary",
		"voice": "Kore",
		"language": "pl",
		"max_chars": 300
	}`, nil)}

	cfg := l.Load()
	if cfg.Mode != "summary" {
		t.Errorf("Mode = %q, want %q", cfg.Mode, "summary")
	}
	if cfg.Voice != "Kore" {
		t.Errorf("Voice = %q, want %q", cfg.Voice, "Kore")
	}
	if cfg.Language != "pl" {
		t.Errorf("Language = %q, want %q", cfg.Language, "pl")
	}
	if cfg.MaxChars != 300 {
		t.Errorf("MaxChars = %d, want 300", cfg.MaxChars)
	}
}

func TestLoaderDefaultsOnMissingFile(t *testing.T) {
	l := Loader{ReadFile: fakeFile("", os.ErrNotExist)}
	cfg := l.Load()
	want := Defaults()
	if cfg.Mode != want.Mode || cfg.Voice != want.Voice || cfg.Language != want.Language || cfg.MaxChars != want.MaxChars {
		t.Errorf("Load() = %+v, want defaults %+v", cfg, want)
	}
}

func TestLoaderDefaultsOnMalformedJSON(t *testing.T) {
	l := Loader{ReadFile: fakeFile(`{not json`, nil)}
	cfg := l.Load()
	want := Defaults()
	if cfg.Mode != want.Mode || cfg.Voice != want.Voice || cfg.Language != want.Language || cfg.MaxChars != want.MaxChars {
		t.Errorf("Load() = %+v, want defaults %+v", cfg, want)
	}
}

func TestLoaderCustomStyles(t *testing.T) {
	l := Loader{ReadFile: fakeFile(`{
		"style": "narrator",
		"custom_styles": {"narrator": "Read like a nature documentary."}
	}`, nil)}

	cfg := l.Load()
	if cfg.CustomStyles["narrator"] != "Read like a nature documentary." {
		t.Errorf("CustomStyles[narrator] = %q, unexpected", cfg.CustomStyles["narrator"])
	}
}

func TestLoaderPartialDocumentMergesOntoDefaults(t *testing.T) {
	l := Loader{ReadFile: fakeFile(`{"voice": "Puck"}`, nil)}
	cfg := l.Load()
	if cfg.Voice != "Puck" {
		t.Errorf("Voice = %q, want %q", cfg.Voice, "Puck")
	}
	if cfg.Mode != DefaultMode {
		t.Errorf("Mode = %q, want default %q", cfg.Mode, DefaultMode)
	}
}
