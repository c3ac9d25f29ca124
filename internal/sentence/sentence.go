// Package sentence holds the stateless heuristics used to tidy dictated
// segments: capitalization, question detection and terminal punctuation.
package sentence

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// DefaultShortThreshold is the length (in runes) under which a copular
// phrase alone is enough to call a segment a question.
const DefaultShortThreshold = 50

// Lexicon is the word list driving question detection.
type Lexicon struct {
	Openers        []string
	Closers        []string
	Copulas        []string
	ShortThreshold int
}

// English is the default lexicon.
var English = Lexicon{
	Openers: []string{
		"how", "how many", "how much", "how long", "why", "when", "where",
		"who", "whom", "whose", "what", "which",
		"can you", "could you", "would you", "will you", "do you", "did you",
		"does", "is it", "is there", "are you", "are there", "have you",
		"should i", "should we", "may i", "can i", "shall we",
	},
	Closers: []string{
		"right", "isn't it", "aren't they", "don't you", "okay", "ok",
		"correct", "yes or no",
	},
	Copulas: []string{
		"it is", "they are", "is it", "are they", "is that", "is this",
	},
	ShortThreshold: DefaultShortThreshold,
}

// CapitalizeFirst uppercases the first character of text.
func CapitalizeFirst(text string) string {
	if text == "" {
		return text
	}
	r, size := utf8.DecodeRuneInString(text)
	if r == utf8.RuneError {
		return text
	}
	upper := unicode.ToUpper(r)
	if upper == r {
		return text
	}
	return string(upper) + text[size:]
}

// IsQuestion reports whether text reads like a question under the English lexicon.
func IsQuestion(text string) bool {
	return English.IsQuestion(text)
}

// TerminalPunctuation picks the terminator for text under the English lexicon.
func TerminalPunctuation(text string) byte {
	return English.TerminalPunctuation(text)
}

// Punctuate appends the terminator under the English lexicon.
func Punctuate(text string) string {
	return English.Punctuate(text)
}

// EndsSentence reports whether text already ends in ., ! or ?.
func EndsSentence(text string) bool {
	if text == "" {
		return false
	}
	switch text[len(text)-1] {
	case '.', '!', '?':
		return true
	default:
		return false
	}
}

// IsQuestion applies the opener, closer and short-copula checks.
func (l Lexicon) IsQuestion(text string) bool {
	normalized := normalize(text)
	if normalized == "" {
		return false
	}

	for _, opener := range l.Openers {
		if normalized == opener || strings.HasPrefix(normalized, opener+" ") {
			return true
		}
	}
	for _, closer := range l.Closers {
		if normalized == closer || strings.HasSuffix(normalized, " "+closer) {
			return true
		}
	}

	threshold := l.ShortThreshold
	if threshold <= 0 {
		threshold = DefaultShortThreshold
	}
	if utf8.RuneCountInString(normalized) >= threshold {
		return false
	}
	padded := " " + normalized + " "
	for _, copula := range l.Copulas {
		if strings.Contains(padded, " "+copula+" ") {
			return true
		}
	}
	return false
}

// TerminalPunctuation returns '?' for questions and '.' otherwise.
func (l Lexicon) TerminalPunctuation(text string) byte {
	if l.IsQuestion(text) {
		return '?'
	}
	return '.'
}

// Punctuate appends the terminal punctuation unless text already ends a
// sentence. Blank input is returned unchanged.
func (l Lexicon) Punctuate(text string) string {
	if strings.TrimSpace(text) == "" || EndsSentence(text) {
		return text
	}
	return text + string(l.TerminalPunctuation(text))
}

// normalize lowercases, folds commas into spaces, collapses whitespace and
// drops trailing punctuation so word-boundary matching stays simple.
func normalize(text string) string {
	lowered := strings.ToLower(strings.TrimSpace(text))
	lowered = strings.ReplaceAll(lowered, ",", " ")
	lowered = strings.TrimRight(lowered, ".!?;: ")
	return strings.Join(strings.Fields(lowered), " ")
}
