// Package geminilive speaks the BidiGenerateContent WebSocket protocol
// used by Google's Gemini Live API, narrowed to the audio-only subset
// spec.md §4.6 needs: a setup message carrying voice and system
// instruction, a single client content turn per utterance, and a stream
// of inline audio parts terminated by turnComplete.
package geminilive

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/coder/websocket"
)

const defaultBaseURL = "wss://generativelanguage.googleapis.com/ws/google.ai.generativelanguage.v1beta.GenerativeService.BidiGenerateContent"

// Config describes the voice, style instruction, and model to use for a
// session; it is derived from a config.Configuration by the caller.
type Config struct {
	Model       string
	Voice       string
	Instruction string
	APIKey      string
}

// Session is one open BidiGenerateContent connection. It is not safe for
// concurrent Send/Recv calls from multiple goroutines simultaneously, but
// Close may be called from any goroutine.
type Session struct {
	conn    *websocket.Conn
	baseURL string
}

// Dial opens a new Gemini Live session and sends the setup message. The
// connection is ready to accept a client content turn immediately after
// Dial returns.
func Dial(ctx context.Context, cfg Config) (*Session, error) {
	return dial(ctx, cfg, defaultBaseURL)
}

func dial(ctx context.Context, cfg Config, baseURL string) (*Session, error) {
	wsURL := fmt.Sprintf("%s?key=%s", baseURL, cfg.APIKey)

	conn, _, err := websocket.Dial(ctx, wsURL, &websocket.DialOptions{
		HTTPHeader: http.Header{"Content-Type": []string{"application/json"}},
	})
	if err != nil {
		return nil, fmt.Errorf("geminilive: dial: %w", err)
	}

	sess := &Session{conn: conn, baseURL: baseURL}
	if err := sess.sendSetup(ctx, cfg); err != nil {
		conn.Close(websocket.StatusInternalError, "setup failed")
		return nil, fmt.Errorf("geminilive: setup: %w", err)
	}
	return sess, nil
}

// ── outgoing wire types ──────────────────────────────────────────────────

type setupMessage struct {
	Setup setupConfig `json:"setup"`
}

type setupConfig struct {
	Model             string            `json:"model"`
	GenerationConfig  generationConfig  `json:"generationConfig"`
	SystemInstruction systemInstruction `json:"systemInstruction,omitempty"`
}

type generationConfig struct {
	ResponseModalities []string     `json:"responseModalities"`
	SpeechConfig       speechConfig `json:"speechConfig"`
}

type speechConfig struct {
	VoiceConfig voiceConfig `json:"voiceConfig"`
}

type voiceConfig struct {
	PrebuiltVoiceConfig prebuiltVoiceConfig `json:"prebuiltVoiceConfig"`
}

type prebuiltVoiceConfig struct {
	VoiceName string `json:"voiceName"`
}

type systemInstruction struct {
	Parts []part `json:"parts,omitempty"`
}

type part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *inlineData `json:"inlineData,omitempty"`
}

type inlineData struct {
	MIMEType string `json:"mimeType"`
	Data     string `json:"data"`
}

type clientContentMessage struct {
	ClientContent clientContent `json:"clientContent"`
}

type clientContent struct {
	Turns        []contentTurn `json:"turns"`
	TurnComplete bool          `json:"turnComplete"`
}

type contentTurn struct {
	Role  string `json:"role"`
	Parts []part `json:"parts"`
}

// ── incoming wire types ──────────────────────────────────────────────────

type serverMessage struct {
	ServerContent *serverContent `json:"serverContent,omitempty"`
	Error         *geminiError   `json:"error,omitempty"`
}

type geminiError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type serverContent struct {
	ModelTurn    *modelTurn `json:"modelTurn,omitempty"`
	TurnComplete bool       `json:"turnComplete,omitempty"`
}

type modelTurn struct {
	Parts []part `json:"parts"`
}

func (s *Session) sendSetup(ctx context.Context, cfg Config) error {
	msg := setupMessage{
		Setup: setupConfig{
			Model: fmt.Sprintf("models/%s", cfg.Model),
			GenerationConfig: generationConfig{
				ResponseModalities: []string{"AUDIO"},
				SpeechConfig: speechConfig{
					VoiceConfig: voiceConfig{
						PrebuiltVoiceConfig: prebuiltVoiceConfig{VoiceName: cfg.Voice},
					},
				},
			},
		},
	}
	if cfg.Instruction != "" {
		msg.Setup.SystemInstruction = systemInstruction{Parts: []part{{Text: cfg.Instruction}}}
	}
	return s.writeJSON(ctx, msg)
}

// Speak sends exactly one user content turn with turnComplete set, per
// spec.md §4.5's synthesis contract: one turn in, one turn of audio out.
func (s *Session) Speak(ctx context.Context, text string) error {
	msg := clientContentMessage{
		ClientContent: clientContent{
			Turns:        []contentTurn{{Role: "user", Parts: []part{{Text: text}}}},
			TurnComplete: true,
		},
	}
	return s.writeJSON(ctx, msg)
}

func (s *Session) writeJSON(ctx context.Context, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("geminilive: marshal: %w", err)
	}
	return s.conn.Write(ctx, websocket.MessageText, data)
}

// Chunk is one inline audio part pulled from a serverContent.modelTurn.
type Chunk struct {
	Data []byte
}

// Recv reads the next server message and reports any inline audio chunks
// it carries along with whether the current turn has completed. Callers
// drive a loop over Recv until done is true or err is non-nil.
func (s *Session) Recv(ctx context.Context) (chunks []Chunk, done bool, err error) {
	_, data, err := s.conn.Read(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("geminilive: read: %w", err)
	}

	var msg serverMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, false, nil // skip malformed frames, same turn continues
	}

	if msg.Error != nil {
		return nil, false, fmt.Errorf("geminilive: server error: %s", msg.Error.Message)
	}
	if msg.ServerContent == nil {
		return nil, false, nil
	}

	if msg.ServerContent.ModelTurn != nil {
		for _, p := range msg.ServerContent.ModelTurn.Parts {
			if p.InlineData == nil {
				continue
			}
			audioData, decErr := base64.StdEncoding.DecodeString(p.InlineData.Data)
			if decErr != nil || len(audioData) == 0 {
				continue
			}
			chunks = append(chunks, Chunk{Data: audioData})
		}
	}
	return chunks, msg.ServerContent.TurnComplete, nil
}

// Close terminates the session. Idempotent from the caller's perspective
// as long as it is only called once; a second Close returns the
// underlying close error, which is safe to ignore.
func (s *Session) Close() error {
	return s.conn.Close(websocket.StatusNormalClosure, "session closed")
}
