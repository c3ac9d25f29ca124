package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestNewWritesToFileInDir(t *testing.T) {
	t.Parallel()

	dir := filepath.Join(t.TempDir(), "logs")
	log, closeFn, err := New(Options{Dir: dir, Level: "debug"})
	if err != nil {
		t.Fatalf("new logger: %v", err)
	}
	log.Debug().Str("state", "listening").Msg("state_transition")
	if err := closeFn(); err != nil {
		t.Fatalf("close: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "dictum.log"))
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	text := string(data)
	if !strings.Contains(text, "state_transition") || !strings.Contains(text, "state=listening") {
		t.Fatalf("unexpected log contents: %q", text)
	}
	if !strings.Contains(text, "pid=") {
		t.Fatalf("expected pid field: %q", text)
	}
}

func TestNewRejectsUnknownLevel(t *testing.T) {
	t.Parallel()

	if _, _, err := New(Options{Level: "chatty"}); err == nil {
		t.Fatalf("expected level error")
	}
}

func TestLevelFiltersDebug(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := newLogger(&buf, zerolog.WarnLevel)
	log.Debug().Msg("hidden")
	log.Warn().Msg("shown")

	if strings.Contains(buf.String(), "hidden") || !strings.Contains(buf.String(), "shown") {
		t.Fatalf("unexpected output: %q", buf.String())
	}
}

func TestParseLevel(t *testing.T) {
	t.Parallel()

	cases := map[string]zerolog.Level{
		"":       zerolog.InfoLevel,
		"DEBUG":  zerolog.DebugLevel,
		" warn ": zerolog.WarnLevel,
		"error":  zerolog.ErrorLevel,
	}
	for input, want := range cases {
		got, err := ParseLevel(input)
		if err != nil {
			t.Fatalf("parse %q: %v", input, err)
		}
		if got != want {
			t.Fatalf("parse %q: got %s, want %s", input, got, want)
		}
	}
}

func TestPath(t *testing.T) {
	t.Parallel()

	if Path("") != "" {
		t.Fatalf("expected empty path for stderr logging")
	}
	if got := Path("/var/log/dictum"); got != filepath.Join("/var/log/dictum", "dictum.log") {
		t.Fatalf("unexpected path: %q", got)
	}
}
