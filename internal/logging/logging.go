package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
)

const fileName = "dictum.log"

// Options selects where diagnostics go and how verbose they are.
type Options struct {
	Dir   string
	Level string
}

// New builds the application logger. With an empty Dir the logger writes
// to stderr. The returned close func releases the log file, if any.
func New(opts Options) (zerolog.Logger, func() error, error) {
	level, err := ParseLevel(opts.Level)
	if err != nil {
		return zerolog.Nop(), noopClose, err
	}

	var out io.Writer = os.Stderr
	closeFn := noopClose
	if dir := strings.TrimSpace(opts.Dir); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return zerolog.Nop(), noopClose, fmt.Errorf("create log directory: %w", err)
		}
		file, err := os.OpenFile(filepath.Join(dir, fileName), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			return zerolog.Nop(), noopClose, fmt.Errorf("open log file: %w", err)
		}
		out = file
		closeFn = file.Close
	}

	return newLogger(out, level), closeFn, nil
}

func newLogger(out io.Writer, level zerolog.Level) zerolog.Logger {
	writer := zerolog.ConsoleWriter{
		Out:        out,
		TimeFormat: "2006-01-02 15:04:05",
		NoColor:    true,
	}
	return zerolog.New(writer).Level(level).With().Timestamp().Int("pid", os.Getpid()).Logger()
}

// ParseLevel maps a config value to a zerolog level. Blank means info.
func ParseLevel(value string) (zerolog.Level, error) {
	value = strings.ToLower(strings.TrimSpace(value))
	if value == "" {
		return zerolog.InfoLevel, nil
	}
	level, err := zerolog.ParseLevel(value)
	if err != nil {
		return zerolog.InfoLevel, fmt.Errorf("invalid log level %q", value)
	}
	return level, nil
}

// Path returns the log file location for dir, or "" when logging to stderr.
func Path(dir string) string {
	if strings.TrimSpace(dir) == "" {
		return ""
	}
	return filepath.Join(dir, fileName)
}

func noopClose() error { return nil }
