package rules

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// ErrNotConverged is returned when rewriting keeps changing the text after
// the configured number of passes.
var ErrNotConverged = errors.New("rules did not converge")

// Rule rewrites one finalized transcript segment.
type Rule interface {
	Rewrite(text string) (output string, changed bool)
}

// Parser turns one rules-file line into a Rule.
type Parser interface {
	Match(line string) bool
	Parse(line string) (Rule, error)
}

// Engine applies substitution rules to dictated segments until they stop changing.
type Engine struct {
	rules     []Rule
	maxPasses int
}

// Load reads a rules file. A blank path or a missing file yields an empty
// engine; dictation works without substitutions.
func Load(path string, maxPasses int, parsers ...Parser) (*Engine, error) {
	if strings.TrimSpace(path) == "" {
		return newEngine(nil, maxPasses), nil
	}

	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return newEngine(nil, maxPasses), nil
		}
		return nil, fmt.Errorf("open rules file %q: %w", path, err)
	}
	defer file.Close()

	engine, err := Parse(file, maxPasses, parsers...)
	if err != nil {
		return nil, fmt.Errorf("rules file %q: %w", path, err)
	}
	return engine, nil
}

// Parse compiles rules from r. Without parsers the built-in regex and
// literal formats are used, regex first so "s/a/b/" is never read as a literal.
func Parse(r io.Reader, maxPasses int, parsers ...Parser) (*Engine, error) {
	if len(parsers) == 0 {
		parsers = DefaultParsers()
	}

	var compiled []Rule
	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		rule, err := parseLine(line, parsers)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}
		compiled = append(compiled, rule)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read rules: %w", err)
	}

	return newEngine(compiled, maxPasses), nil
}

// DefaultParsers returns the built-in rule formats.
func DefaultParsers() []Parser {
	return []Parser{SubstituteParser{}, LiteralParser{}}
}

func newEngine(compiled []Rule, maxPasses int) *Engine {
	if maxPasses <= 0 {
		maxPasses = 30
	}
	return &Engine{rules: compiled, maxPasses: maxPasses}
}

// Len returns the number of compiled rules.
func (e *Engine) Len() int {
	return len(e.rules)
}

// Apply rewrites text. On ErrNotConverged the text of the last pass is
// still returned.
func (e *Engine) Apply(text string) (string, error) {
	if len(e.rules) == 0 {
		return text, nil
	}

	current := text
	for pass := 0; pass < e.maxPasses; pass++ {
		changed := false
		for _, rule := range e.rules {
			if next, ok := rule.Rewrite(current); ok {
				current = next
				changed = true
			}
		}
		if !changed {
			return current, nil
		}
	}
	return current, fmt.Errorf("%w after %d passes", ErrNotConverged, e.maxPasses)
}

func parseLine(line string, parsers []Parser) (Rule, error) {
	for _, parser := range parsers {
		if parser.Match(line) {
			return parser.Parse(line)
		}
	}
	return nil, errors.New("unsupported rule format")
}

// LiteralParser reads "spoken phrase => replacement". Matching is
// case-insensitive and respects word boundaries at word-character edges.
type LiteralParser struct{}

func (LiteralParser) Match(line string) bool {
	return strings.Contains(line, "=>")
}

func (LiteralParser) Parse(line string) (Rule, error) {
	from, to, _ := strings.Cut(line, "=>")
	from = strings.TrimSpace(from)
	to = strings.TrimSpace(to)
	if from == "" {
		return nil, errors.New("literal rule source cannot be empty")
	}

	pattern := regexp.QuoteMeta(from)
	if isWordByte(from[0]) {
		pattern = `\b` + pattern
	}
	if isWordByte(from[len(from)-1]) {
		pattern += `\b`
	}
	re, err := regexp.Compile("(?i)" + pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid literal source: %w", err)
	}
	return regexpRule{re: re, replacement: to, global: true, literal: true}, nil
}

// SubstituteParser reads sed-style "s/pattern/replacement/flags" rules.
// Any non-alphanumeric delimiter works; flags are i, g, m and s. Patterns
// are case-insensitive unless the rule says otherwise with (?-i).
type SubstituteParser struct{}

func (SubstituteParser) Match(line string) bool {
	return len(line) > 2 && line[0] == 's' && line[1] < utf8.RuneSelf &&
		!isWordByte(line[1]) && !unicode.IsSpace(rune(line[1]))
}

func (SubstituteParser) Parse(line string) (Rule, error) {
	delim := line[1]
	pattern, rest, err := cutDelimited(line[2:], delim)
	if err != nil {
		return nil, fmt.Errorf("invalid substitute pattern: %w", err)
	}
	replacement, rest, err := cutDelimited(rest, delim)
	if err != nil {
		return nil, fmt.Errorf("invalid substitute replacement: %w", err)
	}

	flags := "i"
	global := false
	for _, flag := range strings.TrimSpace(rest) {
		switch flag {
		case 'g':
			global = true
		case 'i':
		case 'm', 's':
			if !strings.ContainsRune(flags, flag) {
				flags += string(flag)
			}
		default:
			return nil, fmt.Errorf("unsupported substitute flag %q", flag)
		}
	}

	re, err := regexp.Compile("(?" + flags + ")" + pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid regex: %w", err)
	}
	return regexpRule{re: re, replacement: replacement, global: global}, nil
}

type regexpRule struct {
	re          *regexp.Regexp
	replacement string
	global      bool
	literal     bool
}

func (r regexpRule) Rewrite(input string) (string, bool) {
	var output string
	switch {
	case r.global && r.literal:
		output = r.re.ReplaceAllLiteralString(input, r.replacement)
	case r.global:
		output = r.re.ReplaceAllString(input, r.replacement)
	default:
		loc := r.re.FindStringSubmatchIndex(input)
		if loc == nil {
			return input, false
		}
		expanded := r.re.ExpandString(nil, r.replacement, input, loc)
		output = input[:loc[0]] + string(expanded) + input[loc[1]:]
	}
	return output, output != input
}

// cutDelimited reads up to the next unescaped delim. Escapes other than
// the delimiter itself are kept for the regexp compiler.
func cutDelimited(input string, delim byte) (string, string, error) {
	var b strings.Builder
	for i := 0; i < len(input); i++ {
		c := input[i]
		if c == '\\' && i+1 < len(input) {
			if input[i+1] == delim {
				b.WriteByte(delim)
			} else {
				b.WriteByte(c)
				b.WriteByte(input[i+1])
			}
			i++
			continue
		}
		if c == delim {
			return b.String(), input[i+1:], nil
		}
		b.WriteByte(c)
	}
	return "", "", errors.New("unterminated expression")
}

// isWordByte matches the ASCII class regexp uses for \b.
func isWordByte(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}
