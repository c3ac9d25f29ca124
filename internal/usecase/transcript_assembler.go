package usecase

import (
	"strings"
	"unicode"

	"github.com/rs/zerolog"

	"dictum/internal/domain"
	"dictum/internal/ports"
	"dictum/internal/sentence"
)

// transcriptAssembler folds recognizer result batches into a stable,
// punctuated buffer plus the volatile tail of the latest batch. It is owned
// by exactly one dictation session.
type transcriptAssembler struct {
	lexicon sentence.Lexicon
	rules   ports.RulesEngine
	log     zerolog.Logger

	stable   string
	volatile string
	// cursor indexes the next unread result of the current engine cycle.
	cursor int
}

func newTranscriptAssembler(seed string, lexicon sentence.Lexicon, rules ports.RulesEngine, log zerolog.Logger) *transcriptAssembler {
	return &transcriptAssembler{
		lexicon: lexicon,
		rules:   rules,
		log:     log,
		stable:  seed,
	}
}

// Apply merges one batch and returns the display text. Results below the
// cursor are never read again. Finals only advance the cursor while they
// form a contiguous run; a final that follows a pending interim result is
// shown as volatile until everything before it is final too.
func (a *transcriptAssembler) Apply(results []domain.RecognitionResult) string {
	if len(results) < a.cursor {
		a.log.Warn().Int("cursor", a.cursor).Int("results", len(results)).Msg("stale_batch_ignored")
		return a.Display()
	}

	var finalized, interim strings.Builder
	contiguous := true
	for i := a.cursor; i < len(results); i++ {
		result := results[i]
		if result.IsFinal && contiguous {
			appendSegment(&finalized, result.Transcript)
			a.cursor = i + 1
			continue
		}
		contiguous = false
		appendSegment(&interim, result.Transcript)
	}

	if finalized.Len() > 0 {
		a.commit(finalized.String())
	}
	a.volatile = a.shapeVolatile(interim.String())
	return a.Display()
}

// Rebase starts a new engine cycle: the engine's result list restarts at
// index zero, so whatever was still volatile is committed first.
func (a *transcriptAssembler) Rebase() {
	if a.volatile != "" {
		a.commit(a.volatile)
	}
	a.volatile = ""
	a.cursor = 0
}

// Display is the stable text followed by the volatile text.
func (a *transcriptAssembler) Display() string {
	if a.volatile == "" {
		return a.stable
	}
	if a.stable != "" && !endsWithSpace(a.stable) {
		return a.stable + " " + a.volatile
	}
	return a.stable + a.volatile
}

func (a *transcriptAssembler) Cursor() int {
	return a.cursor
}

func (a *transcriptAssembler) Stable() string {
	return a.stable
}

func (a *transcriptAssembler) Volatile() string {
	return a.volatile
}

func (a *transcriptAssembler) commit(raw string) {
	text := strings.TrimSpace(raw)
	if text == "" {
		return
	}

	if a.rules != nil {
		rewritten, err := a.rules.Apply(text)
		if err != nil {
			a.log.Warn().Err(err).Msg("rules_skipped")
		} else {
			text = strings.TrimSpace(rewritten)
		}
		if text == "" {
			return
		}
	}

	text = a.lexicon.Punctuate(sentence.CapitalizeFirst(text))
	if a.stable != "" && !endsWithSpace(a.stable) {
		a.stable += " "
	}
	a.stable += text + " "
	a.log.Debug().Int("cursor", a.cursor).Str("segment", text).Msg("segment_committed")
}

func (a *transcriptAssembler) shapeVolatile(raw string) string {
	text := strings.TrimSpace(raw)
	if text == "" {
		return ""
	}
	if atSentenceBoundary(a.stable) {
		return sentence.CapitalizeFirst(text)
	}
	return text
}

func atSentenceBoundary(stable string) bool {
	trimmed := strings.TrimRightFunc(stable, unicode.IsSpace)
	return trimmed == "" || sentence.EndsSentence(trimmed)
}

func endsWithSpace(text string) bool {
	return text != "" && unicode.IsSpace(rune(text[len(text)-1]))
}

// appendSegment joins recognizer transcripts, which may or may not carry
// their own leading space.
func appendSegment(b *strings.Builder, segment string) {
	if segment == "" {
		return
	}
	if b.Len() > 0 {
		current := b.String()
		if !unicode.IsSpace(rune(current[len(current)-1])) && !unicode.IsSpace(rune(segment[0])) {
			b.WriteByte(' ')
		}
	}
	b.WriteString(segment)
}
