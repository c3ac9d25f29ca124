package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func isolate(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	for _, key := range []string{
		"DICTUM_CONFIG", "DEEPGRAM_API_KEY", "DEEPGRAM_API_BASE", "DEEPGRAM_MODEL",
		"DEEPGRAM_SMART_FORMAT", "DEEPGRAM_PULSE_SOURCE", "DICTUM_AUDIO_INPUT_DEVICE",
		"DICTUM_LOCALE", "DICTUM_MAX_CYCLE_MS", "DICTUM_NO_SPEECH_TIMEOUT_MS",
		"DICTUM_RULES_FILE", "DICTUM_COPY_ON_STOP", "DICTUM_LOG_DIR", "DICTUM_LOG_LEVEL",
	} {
		t.Setenv(key, "")
	}
	return home
}

func writeConfig(t *testing.T, path string, body string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir failed: %v", err)
	}
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write failed: %v", err)
	}
}

func TestLoadDefaultsWithoutFile(t *testing.T) {
	home := isolate(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.Source != "" {
		t.Fatalf("expected no config source, got %q", cfg.Source)
	}
	if cfg.Recognition.Locale != "en-US" || !cfg.Recognition.Continuous || !cfg.Recognition.InterimResults {
		t.Fatalf("unexpected recognition defaults: %+v", cfg.Recognition)
	}
	if cfg.Recognition.MaxCycle != time.Minute || cfg.Recognition.NoSpeechTimeout != 8*time.Second {
		t.Fatalf("unexpected cycle defaults: %+v", cfg.Recognition)
	}
	if cfg.Rules.Path != filepath.Join(home, ".config", "dictum", "substitutions.rules") {
		t.Fatalf("unexpected rules path: %q", cfg.Rules.Path)
	}
	if cfg.Heuristics.QuestionThreshold != 50 || !cfg.Output.CopyOnStop {
		t.Fatalf("unexpected heuristics/output defaults: %+v %+v", cfg.Heuristics, cfg.Output)
	}
}

func TestLoadReadsDefaultConfigFile(t *testing.T) {
	home := isolate(t)
	path := filepath.Join(home, ".config", "dictum", "config.toml")
	writeConfig(t, path, `
[deepgram]
api_key = "file-key"
model = "nova-3"

[recognition]
locale = "fr-FR"
max_cycle = "45s"
no_speech_timeout = "0s"

[heuristics]
question_threshold = 70

[output]
copy_on_stop = false

[log]
level = "debug"
`)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.Source != path {
		t.Fatalf("unexpected source: %q", cfg.Source)
	}
	if cfg.Deepgram.APIKey != "file-key" || cfg.Deepgram.Model != "nova-3" {
		t.Fatalf("unexpected deepgram config: %+v", cfg.Deepgram)
	}
	if cfg.Deepgram.APIBaseURL != "https://api.deepgram.com/v1" {
		t.Fatalf("keys missing from the file must keep defaults: %q", cfg.Deepgram.APIBaseURL)
	}
	if cfg.Recognition.Locale != "fr-FR" || cfg.Recognition.MaxCycle != 45*time.Second {
		t.Fatalf("unexpected recognition config: %+v", cfg.Recognition)
	}
	if cfg.Recognition.NoSpeechTimeout != 0 {
		t.Fatalf("zero no-speech timeout must be kept, got %s", cfg.Recognition.NoSpeechTimeout)
	}
	if cfg.Heuristics.QuestionThreshold != 70 || cfg.Output.CopyOnStop || cfg.Log.Level != "debug" {
		t.Fatalf("unexpected config: %+v", cfg)
	}
}

func TestLoadEnvironmentWinsOverFile(t *testing.T) {
	home := isolate(t)
	path := filepath.Join(home, "custom.toml")
	writeConfig(t, path, `
[deepgram]
api_key = "file-key"

[recognition]
locale = "fr-FR"
`)

	t.Setenv("DICTUM_CONFIG", path)
	t.Setenv("DEEPGRAM_API_KEY", "env-key")
	t.Setenv("DICTUM_LOCALE", "de-DE")
	t.Setenv("DICTUM_MAX_CYCLE_MS", "1500")
	t.Setenv("DICTUM_COPY_ON_STOP", "off")
	t.Setenv("DICTUM_AUDIO_INPUT_DEVICE", "mic0")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.Deepgram.APIKey != "env-key" || cfg.Recognition.Locale != "de-DE" {
		t.Fatalf("environment must win: %+v %+v", cfg.Deepgram, cfg.Recognition)
	}
	if cfg.Recognition.MaxCycle != 1500*time.Millisecond {
		t.Fatalf("unexpected max cycle: %s", cfg.Recognition.MaxCycle)
	}
	if cfg.Output.CopyOnStop || cfg.Audio.InputDevice != "mic0" {
		t.Fatalf("unexpected output/audio: %+v %+v", cfg.Output, cfg.Audio)
	}
}

func TestLoadMissingExplicitFileFails(t *testing.T) {
	home := isolate(t)
	t.Setenv("DICTUM_CONFIG", filepath.Join(home, "missing.toml"))

	if _, err := Load(); err == nil || !strings.Contains(err.Error(), "not found") {
		t.Fatalf("expected not found error, got %v", err)
	}
}

func TestLoadMalformedFileFails(t *testing.T) {
	home := isolate(t)
	path := filepath.Join(home, "broken.toml")
	writeConfig(t, path, "[recognition\nlocale = ")
	t.Setenv("DICTUM_CONFIG", path)

	if _, err := Load(); err == nil {
		t.Fatalf("expected decode error")
	}
}

func TestLoadInvalidValuesFallback(t *testing.T) {
	isolate(t)
	t.Setenv("DICTUM_SAMPLE_RATE", "bad")
	t.Setenv("DICTUM_CHANNELS", "-1")
	t.Setenv("DICTUM_RULE_ITERATION_LIMIT", "0")
	t.Setenv("DICTUM_AUDIO_CHUNK_SIZE", "5")
	t.Setenv("DICTUM_QUESTION_THRESHOLD", "-3")
	t.Setenv("DICTUM_NO_SPEECH_TIMEOUT_MS", "soon")
	t.Setenv("DEEPGRAM_SMART_FORMAT", "not-bool")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.Audio.SampleRate != 16000 || cfg.Audio.Channels != 1 || cfg.Audio.ChunkSize != 4096 {
		t.Fatalf("unexpected audio fallback: %+v", cfg.Audio)
	}
	if cfg.Rules.IterationLimit != 30 || cfg.Heuristics.QuestionThreshold != 50 {
		t.Fatalf("unexpected fallback: %+v %+v", cfg.Rules, cfg.Heuristics)
	}
	if cfg.Recognition.NoSpeechTimeout != 8*time.Second {
		t.Fatalf("unexpected no-speech fallback: %s", cfg.Recognition.NoSpeechTimeout)
	}
	if !cfg.Deepgram.SmartFormat {
		t.Fatalf("expected default smart format true")
	}
}
