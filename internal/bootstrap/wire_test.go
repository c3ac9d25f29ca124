package bootstrap

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"dictum/internal/domain"
	"dictum/internal/usecase"
)

func TestBuildSuccess(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("DICTUM_CONFIG", "")
	t.Setenv("DICTUM_RULES_FILE", "")
	t.Setenv("DICTUM_LOG_DIR", filepath.Join(home, "logs"))
	t.Setenv("DEEPGRAM_API_KEY", "test-key")

	services, err := Build(noopEventSink{}, noopClipboard{})
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	t.Cleanup(func() { _ = services.Close() })

	if services.Controller == nil {
		t.Fatalf("expected controller")
	}
	if status := services.Controller.Status(); status.State != domain.StateIdle {
		t.Fatalf("unexpected initial state: %s", status.State)
	}
	if _, err := os.Stat(filepath.Join(home, "logs", "dictum.log")); err != nil {
		t.Fatalf("expected log file: %v", err)
	}
}

func TestBuildWithoutAPIKeyReportsUnavailable(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("DICTUM_CONFIG", "")
	t.Setenv("DICTUM_RULES_FILE", "")
	t.Setenv("DICTUM_LOG_DIR", "")
	t.Setenv("DEEPGRAM_API_KEY", "")

	services, err := Build(noopEventSink{}, noopClipboard{})
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	err = services.Controller.Start(context.Background(), "")
	if !errors.Is(err, usecase.ErrRecognizerUnavailable) {
		t.Fatalf("expected ErrRecognizerUnavailable, got %v", err)
	}
}

func TestBuildFailsOnInvalidRules(t *testing.T) {
	home := t.TempDir()
	rules := filepath.Join(home, "bad.rules")
	if err := os.WriteFile(rules, []byte("not a valid rule\n"), 0o600); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	t.Setenv("HOME", home)
	t.Setenv("DICTUM_CONFIG", "")
	t.Setenv("DICTUM_LOG_DIR", "")
	t.Setenv("DICTUM_RULES_FILE", rules)

	if _, err := Build(noopEventSink{}, noopClipboard{}); err == nil {
		t.Fatalf("expected build error due to invalid rules")
	}
}

func TestBuildFailsOnInvalidLogLevel(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("DICTUM_CONFIG", "")
	t.Setenv("DICTUM_LOG_DIR", "")
	t.Setenv("DICTUM_LOG_LEVEL", "loud")

	if _, err := Build(noopEventSink{}, noopClipboard{}); err == nil {
		t.Fatalf("expected log level error")
	}
}

type noopEventSink struct{}

func (noopEventSink) DictationStateChanged(_ domain.Status)     {}
func (noopEventSink) DisplayText(_ string)                      {}
func (noopEventSink) DictationFinished(_ string)                {}
func (noopEventSink) SessionError(_ domain.ErrorCode, _ string) {}

type noopClipboard struct{}

func (noopClipboard) SetText(_ context.Context, _ string) error { return nil }
