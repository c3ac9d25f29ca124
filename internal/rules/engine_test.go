package rules

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestEngineLiteralAndSubstituteRules(t *testing.T) {
	t.Parallel()

	engine, err := Parse(strings.NewReader(`
# literal
pull request => PR
# substitute, case-insensitive by default
s/\bdeep\s*gram\b/Deepgram/g
`), 30)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if engine.Len() != 2 {
		t.Fatalf("expected 2 rules, got %d", engine.Len())
	}

	output, err := engine.Apply("deep gram pull request")
	if err != nil {
		t.Fatalf("apply failed: %v", err)
	}
	if output != "Deepgram PR" {
		t.Fatalf("unexpected output: %q", output)
	}
}

func TestEngineLiteralRespectsWordBoundaries(t *testing.T) {
	t.Parallel()

	engine, err := Parse(strings.NewReader("go => Go\n"), 5)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	output, err := engine.Apply("go and google")
	if err != nil {
		t.Fatalf("apply failed: %v", err)
	}
	if output != "Go and google" {
		t.Fatalf("unexpected output: %q", output)
	}
}

func TestEngineIteratesUntilStable(t *testing.T) {
	t.Parallel()

	engine, err := Parse(strings.NewReader("a => b\nb => c\n"), 5)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	output, err := engine.Apply("a")
	if err != nil {
		t.Fatalf("apply failed: %v", err)
	}
	if output != "c" {
		t.Fatalf("expected c, got %q", output)
	}
}

func TestEngineReportsNonConvergence(t *testing.T) {
	t.Parallel()

	engine, err := Parse(strings.NewReader("s/x/xx/\n"), 3)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	output, err := engine.Apply("x")
	if !errors.Is(err, ErrNotConverged) {
		t.Fatalf("expected ErrNotConverged, got %v", err)
	}
	if output != "xxxx" {
		t.Fatalf("expected last pass output, got %q", output)
	}
}

func TestEngineLiteralRuleStartingWithS(t *testing.T) {
	t.Parallel()

	engine, err := Parse(strings.NewReader("solid complaint => SOLID-compliant\n"), 30)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	output, err := engine.Apply("solid complaint plan")
	if err != nil {
		t.Fatalf("apply failed: %v", err)
	}
	if output != "SOLID-compliant plan" {
		t.Fatalf("unexpected output: %q", output)
	}
}

func TestEngineSupportsCustomParsers(t *testing.T) {
	t.Parallel()

	parsers := append([]Parser{prefixParser{}}, DefaultParsers()...)
	engine, err := Parse(strings.NewReader("prefix:Hello=>Howdy\n"), 5, parsers...)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	output, err := engine.Apply("hello world")
	if err != nil {
		t.Fatalf("apply failed: %v", err)
	}
	if output != "Howdy world" {
		t.Fatalf("unexpected output: %q", output)
	}
}

func TestSubstituteWithoutGlobalReplacesFirstMatchOnly(t *testing.T) {
	t.Parallel()

	rule, err := SubstituteParser{}.Parse(`s/foo/bar/`)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	output, changed := rule.Rewrite("foo foo")
	if !changed || output != "bar foo" {
		t.Fatalf("unexpected rewrite: %q changed=%v", output, changed)
	}
}

func TestSubstituteEscapedDelimiter(t *testing.T) {
	t.Parallel()

	rule, err := SubstituteParser{}.Parse(`s/and\/or/or/g`)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if output, _ := rule.Rewrite("this and/or that"); output != "this or that" {
		t.Fatalf("unexpected output: %q", output)
	}
}

func TestSubstituteRejectsUnknownFlag(t *testing.T) {
	t.Parallel()

	if _, err := (SubstituteParser{}).Parse(`s/foo/bar/x`); err == nil {
		t.Fatalf("expected unsupported flag error")
	}
}

func TestParseRejectsUnsupportedLine(t *testing.T) {
	t.Parallel()

	_, err := Parse(strings.NewReader("\nnot-a-rule\n"), 5)
	if err == nil || !strings.Contains(err.Error(), "line 2") {
		t.Fatalf("expected line-numbered error, got %v", err)
	}
}

func TestLoadMissingFileIsEmpty(t *testing.T) {
	t.Parallel()

	engine, err := Load(filepath.Join(t.TempDir(), "absent.rules"), 5)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if engine.Len() != 0 {
		t.Fatalf("expected empty engine")
	}
	if out, _ := engine.Apply("same"); out != "same" {
		t.Fatalf("unexpected output: %q", out)
	}
}

func TestLoadReadsFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "substitutions.rules")
	if err := os.WriteFile(path, []byte("new line => \\n\n"), 0o600); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	engine, err := Load(path, 5)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if out, _ := engine.Apply("one new line two"); out != `one \n two` {
		t.Fatalf("unexpected output: %q", out)
	}
}

type prefixParser struct{}

func (prefixParser) Match(line string) bool {
	return strings.HasPrefix(line, "prefix:")
}

func (prefixParser) Parse(line string) (Rule, error) {
	from, to, ok := strings.Cut(strings.TrimPrefix(line, "prefix:"), "=>")
	if !ok {
		return nil, errors.New("invalid prefix rule")
	}
	return LiteralParser{}.Parse(from + " => " + to)
}
