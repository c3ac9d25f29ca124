package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// Config stores runtime configuration for the dictation engine. Values come
// from built-in defaults, then an optional TOML file, then environment
// variables.
type Config struct {
	Deepgram    DeepgramConfig    `toml:"deepgram"`
	Audio       AudioConfig       `toml:"audio"`
	Recognition RecognitionConfig `toml:"recognition"`
	Rules       RulesConfig       `toml:"rules"`
	Heuristics  HeuristicsConfig  `toml:"heuristics"`
	Output      OutputConfig      `toml:"output"`
	Log         LogConfig         `toml:"log"`

	// Source is the config file that was read, if any.
	Source string `toml:"-"`
}

type DeepgramConfig struct {
	APIKey      string `toml:"api_key"`
	APIBaseURL  string `toml:"api_base"`
	Model       string `toml:"model"`
	SmartFormat bool   `toml:"smart_format"`
}

type AudioConfig struct {
	RecorderCommand string `toml:"ffmpeg_command"`
	InputFormat     string `toml:"input_format"`
	InputDevice     string `toml:"input_device"`
	SampleRate      int    `toml:"sample_rate"`
	Channels        int    `toml:"channels"`
	ChunkSize       int    `toml:"chunk_size"`
}

type RecognitionConfig struct {
	Locale          string        `toml:"locale"`
	Continuous      bool          `toml:"continuous"`
	InterimResults  bool          `toml:"interim_results"`
	MaxCycle        time.Duration `toml:"max_cycle"`
	NoSpeechTimeout time.Duration `toml:"no_speech_timeout"`
}

type RulesConfig struct {
	Path           string `toml:"path"`
	IterationLimit int    `toml:"iteration_limit"`
}

type HeuristicsConfig struct {
	// QuestionThreshold is the length under which a copula anywhere in a
	// segment marks it as a question.
	QuestionThreshold int `toml:"question_threshold"`
}

type OutputConfig struct {
	CopyOnStop bool `toml:"copy_on_stop"`
}

type LogConfig struct {
	Dir   string `toml:"dir"`
	Level string `toml:"level"`
}

const (
	defaultSampleRate        = 16000
	defaultChannels          = 1
	defaultChunkSize         = 4096
	defaultIterationLimit    = 30
	defaultQuestionThreshold = 50
	defaultMaxCycle          = 60 * time.Second
	defaultNoSpeechTimeout   = 8 * time.Second
)

// Load resolves configuration from the config file, environment variables
// and sensible defaults.
func Load() (Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return Config{}, errors.New("could not determine home directory")
	}
	configDir := filepath.Join(home, ".config", "dictum")

	cfg := defaults(configDir)

	path, explicit := resolvePath(configDir)
	if err := decodeFile(path, explicit, &cfg); err != nil {
		return Config{}, err
	}

	applyEnv(&cfg)
	clamp(&cfg)
	return cfg, nil
}

func defaults(configDir string) Config {
	return Config{
		Deepgram: DeepgramConfig{
			APIBaseURL:  "https://api.deepgram.com/v1",
			Model:       "nova-2",
			SmartFormat: true,
		},
		Audio: AudioConfig{
			RecorderCommand: "ffmpeg",
			InputFormat:     "pulse",
			InputDevice:     "default",
			SampleRate:      defaultSampleRate,
			Channels:        defaultChannels,
			ChunkSize:       defaultChunkSize,
		},
		Recognition: RecognitionConfig{
			Locale:          "en-US",
			Continuous:      true,
			InterimResults:  true,
			MaxCycle:        defaultMaxCycle,
			NoSpeechTimeout: defaultNoSpeechTimeout,
		},
		Rules: RulesConfig{
			Path:           filepath.Join(configDir, "substitutions.rules"),
			IterationLimit: defaultIterationLimit,
		},
		Heuristics: HeuristicsConfig{QuestionThreshold: defaultQuestionThreshold},
		Output:     OutputConfig{CopyOnStop: true},
		Log:        LogConfig{Level: "info"},
	}
}

func resolvePath(configDir string) (string, bool) {
	if path := strings.TrimSpace(os.Getenv("DICTUM_CONFIG")); path != "" {
		return path, true
	}
	return filepath.Join(configDir, "config.toml"), false
}

func decodeFile(path string, explicit bool, cfg *Config) error {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) && !explicit {
			return nil
		}
		return fmt.Errorf("config file not found: %s", path)
	}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return fmt.Errorf("failed to decode config file: %w", err)
	}
	cfg.Source = path
	return nil
}

func applyEnv(cfg *Config) {
	cfg.Deepgram.APIKey = envOrDefault("DEEPGRAM_API_KEY", cfg.Deepgram.APIKey)
	cfg.Deepgram.APIBaseURL = envOrDefault("DEEPGRAM_API_BASE", cfg.Deepgram.APIBaseURL)
	cfg.Deepgram.Model = envOrDefault("DEEPGRAM_MODEL", cfg.Deepgram.Model)
	cfg.Deepgram.SmartFormat = envOrDefaultBool("DEEPGRAM_SMART_FORMAT", cfg.Deepgram.SmartFormat)

	cfg.Audio.RecorderCommand = envOrDefault("DICTUM_FFMPEG_COMMAND", cfg.Audio.RecorderCommand)
	cfg.Audio.InputFormat = envOrDefault("DICTUM_AUDIO_INPUT_FORMAT", cfg.Audio.InputFormat)
	cfg.Audio.InputDevice = firstNonEmpty(
		os.Getenv("DICTUM_AUDIO_INPUT_DEVICE"),
		os.Getenv("DEEPGRAM_PULSE_SOURCE"),
		cfg.Audio.InputDevice,
	)
	cfg.Audio.SampleRate = envOrDefaultInt("DICTUM_SAMPLE_RATE", cfg.Audio.SampleRate)
	cfg.Audio.Channels = envOrDefaultInt("DICTUM_CHANNELS", cfg.Audio.Channels)
	cfg.Audio.ChunkSize = envOrDefaultInt("DICTUM_AUDIO_CHUNK_SIZE", cfg.Audio.ChunkSize)

	cfg.Recognition.Locale = envOrDefault("DICTUM_LOCALE", cfg.Recognition.Locale)
	cfg.Recognition.Continuous = envOrDefaultBool("DICTUM_CONTINUOUS", cfg.Recognition.Continuous)
	cfg.Recognition.InterimResults = envOrDefaultBool("DICTUM_INTERIM_RESULTS", cfg.Recognition.InterimResults)
	cfg.Recognition.MaxCycle = envOrDefaultMillis("DICTUM_MAX_CYCLE_MS", cfg.Recognition.MaxCycle)
	cfg.Recognition.NoSpeechTimeout = envOrDefaultMillis("DICTUM_NO_SPEECH_TIMEOUT_MS", cfg.Recognition.NoSpeechTimeout)

	cfg.Rules.Path = envOrDefault("DICTUM_RULES_FILE", cfg.Rules.Path)
	cfg.Rules.IterationLimit = envOrDefaultInt("DICTUM_RULE_ITERATION_LIMIT", cfg.Rules.IterationLimit)

	cfg.Heuristics.QuestionThreshold = envOrDefaultInt("DICTUM_QUESTION_THRESHOLD", cfg.Heuristics.QuestionThreshold)
	cfg.Output.CopyOnStop = envOrDefaultBool("DICTUM_COPY_ON_STOP", cfg.Output.CopyOnStop)

	cfg.Log.Dir = envOrDefault("DICTUM_LOG_DIR", cfg.Log.Dir)
	cfg.Log.Level = envOrDefault("DICTUM_LOG_LEVEL", cfg.Log.Level)
}

func clamp(cfg *Config) {
	if cfg.Audio.SampleRate <= 0 {
		cfg.Audio.SampleRate = defaultSampleRate
	}
	if cfg.Audio.Channels <= 0 {
		cfg.Audio.Channels = defaultChannels
	}
	if cfg.Audio.ChunkSize < 256 {
		cfg.Audio.ChunkSize = defaultChunkSize
	}
	if cfg.Rules.IterationLimit <= 0 {
		cfg.Rules.IterationLimit = defaultIterationLimit
	}
	if cfg.Heuristics.QuestionThreshold <= 0 {
		cfg.Heuristics.QuestionThreshold = defaultQuestionThreshold
	}
	if cfg.Recognition.MaxCycle <= 0 {
		cfg.Recognition.MaxCycle = defaultMaxCycle
	}
	// Zero disables the no-speech timeout.
	if cfg.Recognition.NoSpeechTimeout < 0 {
		cfg.Recognition.NoSpeechTimeout = defaultNoSpeechTimeout
	}
	if strings.TrimSpace(cfg.Recognition.Locale) == "" {
		cfg.Recognition.Locale = "en-US"
	}
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		trimmed := strings.TrimSpace(value)
		if trimmed != "" {
			return trimmed
		}
	}
	return ""
}

func envOrDefault(key string, fallback string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	return value
}

func envOrDefaultInt(key string, fallback int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func envOrDefaultBool(key string, fallback bool) bool {
	value := strings.TrimSpace(strings.ToLower(os.Getenv(key)))
	switch value {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

func envOrDefaultMillis(key string, fallback time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil || parsed < 0 {
		return fallback
	}
	return time.Duration(parsed) * time.Millisecond
}
