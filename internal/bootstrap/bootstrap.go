// Package bootstrap loads the daemon's process-level settings: where the
// socket, cache directory, PID file and log file live. This is distinct
// from internal/config, which owns the per-request synthesis Configuration
// document re-read on every request.
package bootstrap

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// Settings are the paths and knobs the daemon needs before it can accept
// its first connection.
type Settings struct {
	SocketPath    string
	ConfigPath    string
	CacheDir      string
	CacheMaxBytes int64
	PIDFile       string
	LogFile       string
	GeminiAPIKey  string
	GeminiModel   string
	Debug         bool
}

const (
	defaultGeminiModel = "gemini-2.5-flash-preview-native-audio-dialog"
)

// Load resolves Settings from (in increasing priority) built-in defaults
// rooted at ~/.claude, an optional ~/.claude/tts_daemon.yaml override file,
// and environment variables prefixed TTSD_. Settings.Debug is taken from
// debug (the CLI --debug flag, per spec.md §6) alone; neither the file nor
// the environment sets it.
func Load(debug bool) (Settings, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return Settings{}, fmt.Errorf("bootstrap: resolve home directory: %w", err)
	}
	claudeDir := filepath.Join(home, ".claude")

	v := viper.New()
	v.SetEnvPrefix("TTSD")
	v.AutomaticEnv()
	v.SetConfigName("tts_daemon")
	v.SetConfigType("yaml")
	v.AddConfigPath(claudeDir)

	v.SetDefault("socket_path", filepath.Join(claudeDir, "tts.sock"))
	v.SetDefault("config_path", filepath.Join(claudeDir, "tts_config.json"))
	v.SetDefault("cache_dir", filepath.Join(claudeDir, "tts_cache"))
	v.SetDefault("cache_max_bytes", 0)
	v.SetDefault("pid_file", filepath.Join(claudeDir, "tts_daemon.pid"))
	v.SetDefault("log_file", filepath.Join(claudeDir, "tts_daemon.log"))
	v.SetDefault("gemini_model", defaultGeminiModel)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return Settings{}, fmt.Errorf("bootstrap: read %s/tts_daemon.yaml: %w", claudeDir, err)
		}
	}
	v.WatchConfig()
	v.OnConfigChange(func(fsnotify.Event) {})

	s := Settings{
		SocketPath:    v.GetString("socket_path"),
		ConfigPath:    v.GetString("config_path"),
		CacheDir:      v.GetString("cache_dir"),
		CacheMaxBytes: v.GetInt64("cache_max_bytes"),
		PIDFile:       v.GetString("pid_file"),
		LogFile:       v.GetString("log_file"),
		GeminiAPIKey:  strings.TrimSpace(os.Getenv("GEMINI_API_KEY")),
		GeminiModel:   v.GetString("gemini_model"),
		Debug:         debug,
	}
	if s.GeminiAPIKey == "" {
		return Settings{}, fmt.Errorf("bootstrap: GEMINI_API_KEY is required but not set")
	}
	return s, nil
}
