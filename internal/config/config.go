// Package config loads the per-request synthesis Configuration: the
// JSON document at ~/.claude/tts_config.json that shapes mode, voice,
// style, language and size limits for every utterance.
package config

import "fmt"

const (
	// DefaultMode renders the input verbatim when the configuration
	// document omits "mode".
	DefaultMode = "full"
	// DefaultVoice names a Gemini Live prebuilt voice.
	DefaultVoice = "Aoede"
	// DefaultStyle is the built-in style applied when the document does
	// not request a style of its own.
	DefaultStyle = "neutral"
	// DefaultLanguage "auto" lets the model choose the response language
	// and contributes no language fragment to the instruction string.
	DefaultLanguage = "auto"
	// DefaultMaxChars bounds the number of Unicode code points forwarded per request.
	DefaultMaxChars = 500
)

// modeFragments maps the mode enum to the instruction fragment telling the
// remote model how much of the input to render.
var modeFragments = map[string]string{
	"summary": "Provide a 1-2 sentence reduction of the input",
	"full":    "Render the input verbatim",
}

// builtinStyles maps a built-in style name to its instruction fragment. A
// Style naming neither a builtin nor a custom_styles entry contributes
// nothing to the composed instruction.
var builtinStyles = map[string]string{
	"asmr":      "Speak softly and calmly, like a gentle ASMR narrator",
	"neutral":   "Speak clearly and plainly",
	"energetic": "Speak with energy and enthusiasm",
}

// Configuration is the synthesis-shaping document described in spec.md §3.
// It is re-read from disk on every request; zero values fall back to the
// package defaults via Normalize.
type Configuration struct {
	Mode         string            `json:"mode"`
	Voice        string            `json:"voice"`
	Style        string            `json:"style"`
	Language     string            `json:"language"`
	MaxChars     int               `json:"max_chars"`
	CustomStyles map[string]string `json:"custom_styles"`
}

// Defaults returns the Configuration used when no document is present or
// readable.
func Defaults() Configuration {
	return Configuration{
		Mode:     DefaultMode,
		Voice:    DefaultVoice,
		Style:    DefaultStyle,
		Language: DefaultLanguage,
		MaxChars: DefaultMaxChars,
	}
}

// Normalize fills zero-valued fields with defaults and validates the
// remainder. It mutates c in place and returns an error describing the
// first invalid field, if any.
func (c *Configuration) Normalize() error {
	defaults := Defaults()
	if c.Mode == "" {
		c.Mode = defaults.Mode
	}
	if c.Voice == "" {
		c.Voice = defaults.Voice
	}
	if c.Style == "" {
		c.Style = defaults.Style
	}
	if c.Language == "" {
		c.Language = defaults.Language
	}
	if c.MaxChars == 0 {
		c.MaxChars = defaults.MaxChars
	}
	if c.MaxChars < 0 {
		return fmt.Errorf("config: max_chars must be positive, got %d", c.MaxChars)
	}
	return nil
}

// Instruction composes the system-instruction string sent to the remote
// speech service on session setup, per spec.md §3's instruction-string
// composition rule: concatenate the mode fragment, the resolved style
// fragment and the language fragment, joined by ". " and terminated with
// ".". An unrecognized style name and the "auto" language contribute
// nothing.
func (c Configuration) Instruction() string {
	var fragments []string

	if f, ok := modeFragments[c.Mode]; ok {
		fragments = append(fragments, f)
	}
	if f := c.styleFragment(); f != "" {
		fragments = append(fragments, f)
	}
	if c.Language != "" && c.Language != "auto" {
		fragments = append(fragments, fmt.Sprintf("Speak in %s", c.Language))
	}

	if len(fragments) == 0 {
		return ""
	}
	out := fragments[0]
	for _, f := range fragments[1:] {
		out += ". " + f
	}
	return out + "."
}

// styleFragment resolves Style against the built-in set, falling back to
// custom_styles keyed by the same name.
func (c Configuration) styleFragment() string {
	if f, ok := builtinStyles[c.Style]; ok {
		return f
	}
	if f, ok := c.CustomStyles[c.Style]; ok {
		return f
	}
	return ""
}
