package config

import "testing"

func TestDefaults(t *testing.T) {
	d := Defaults()
	if d.Mode != DefaultMode || d.Voice != DefaultVoice || d.Style != DefaultStyle ||
		d.Language != DefaultLanguage || d.MaxChars != DefaultMaxChars {
		t.Fatalf("Defaults() = %+v, unexpected value", d)
	}
}

func TestNormalizeFillsDefaults(t *testing.T) {
	c := Configuration{}
	if err := c.Normalize(); err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}
	if c.Mode != DefaultMode {
		t.Errorf("Mode = %q, want %q", c.Mode, DefaultMode)
	}
	if c.Style != DefaultStyle {
		t.Errorf("Style = %q, want %q", c.Style, DefaultStyle)
	}
	if c.MaxChars != DefaultMaxChars {
		t.Errorf("MaxChars = %d, want %d", c.MaxChars, DefaultMaxChars)
	}
}

func TestNormalizeRejectsNegativeMaxChars(t *testing.T) {
	c := Configuration{MaxChars: -1}
	if err := c.Normalize(); err == nil {
		t.Fatal("expected error for negative max_chars")
	}
}

func TestInstructionComposesModeStyleAndLanguage(t *testing.T) {
	c := Configuration{Mode: "summary", Style: "asmr", Language: "russian"}
	want := "Provide a 1-2 sentence reduction of the input. Speak softly and calmly, like a gentle ASMR narrator. Speak in russian."
	if got := c.Instruction(); got != want {
		t.Errorf("Instruction() = %q, want %q", got, want)
	}
}

func TestInstructionChangesWithLanguage(t *testing.T) {
	base := Configuration{Mode: "summary", Style: "neutral", Language: "russian"}
	changed := base
	changed.Language = "french"
	if base.Instruction() == changed.Instruction() {
		t.Fatal("expected Instruction() to change when Language changes")
	}
}

func TestInstructionOmitsAutoLanguage(t *testing.T) {
	c := Configuration{Mode: "full", Style: "neutral", Language: "auto"}
	want := "Render the input verbatim. Speak clearly and plainly."
	if got := c.Instruction(); got != want {
		t.Errorf("Instruction() = %q, want %q", got, want)
	}
}

func TestInstructionCustomStyleByName(t *testing.T) {
	c := Configuration{
		Mode:         "full",
		Style:        "documentary",
		Language:     "auto",
		CustomStyles: map[string]string{"documentary": "Narrate like a documentary host"},
	}
	want := "Render the input verbatim. Narrate like a documentary host."
	if got := c.Instruction(); got != want {
		t.Errorf("Instruction() = %q, want %q", got, want)
	}
}

func TestInstructionUnknownStyleContributesNothing(t *testing.T) {
	c := Configuration{Mode: "full", Style: "nonexistent", Language: "auto"}
	want := "Render the input verbatim."
	if got := c.Instruction(); got != want {
		t.Errorf("Instruction() = %q, want %q", got, want)
	}
}

func TestInstructionUnknownModeContributesNothing(t *testing.T) {
	c := Configuration{Mode: "unknown", Style: "neutral", Language: "auto"}
	want := "Speak clearly and plainly."
	if got := c.Instruction(); got != want {
		t.Errorf("Instruction() = %q, want %q", got, want)
	}
}

func TestInstructionTableDriven(t *testing.T) {
	tests := []struct {
		name string
		cfg  Configuration
		want string
	}{
		{"asmr builtin", Configuration{Mode: "full", Style: "asmr", Language: "auto"}, "Render the input verbatim. Speak softly and calmly, like a gentle ASMR narrator."},
		{"energetic builtin", Configuration{Mode: "summary", Style: "energetic", Language: "auto"}, "Provide a 1-2 sentence reduction of the input. Speak with energy and enthusiasm."},
		{"no recognized fragments", Configuration{Mode: "unknown", Style: "unknown", Language: "auto"}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.cfg.Instruction(); got != tt.want {
				t.Errorf("Instruction() = %q, want %q", got, tt.want)
			}
		})
	}
}
