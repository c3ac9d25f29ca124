package usecase

import (
	"context"
	"strings"

	"github.com/rs/zerolog"

	"dictum/internal/domain"
	"dictum/internal/ports"
)

// transcriptFinalizer hands the text of a finished session back to the UI.
type transcriptFinalizer struct {
	clipboard  ports.Clipboard
	events     ports.EventSink
	copyOnStop bool
	log        zerolog.Logger
}

func newTranscriptFinalizer(clipboard ports.Clipboard, events ports.EventSink, copyOnStop bool, log zerolog.Logger) transcriptFinalizer {
	return transcriptFinalizer{clipboard: clipboard, events: events, copyOnStop: copyOnStop, log: log}
}

func (f transcriptFinalizer) Finalize(ctx context.Context, text string) domain.StopResult {
	result := domain.StopResult{Text: text}
	f.events.DictationFinished(text)

	if !f.copyOnStop || f.clipboard == nil || strings.TrimSpace(text) == "" {
		return result
	}
	if err := f.clipboard.SetText(ctx, text); err != nil {
		f.log.Warn().Err(err).Msg("clipboard_write_failed")
		f.events.SessionError(domain.ErrorCodeClipboard, "transcript kept in the field but clipboard write failed")
		return result
	}
	result.Copied = true
	return result
}
