// Package macro expands snippets, named text templates with positional
// argument markers, inside arbitrary text before it is compiled.
//
// Two kinds of snippet exist. A placeholder snippet is a bare token such as
// #TODAY# and is replaced wherever it appears. A call-style snippet looks
// like a function call, DOUBLE(x), and its arguments are substituted into
// the template's <p1>…<pN> markers.
//
// Snippets are applied one at a time in registration order. Each snippet is
// fully resolved before the next one runs, and a snippet never re-expands the
// text it has just produced, so
//
//	DOUBLE(DOUBLE(2))
//
// becomes (DOUBLE(2)*2) in a single Parse call.
package macro

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"
)

var (
	// ErrUnbalanced is returned when a call-style snippet has no closing parenthesis.
	ErrUnbalanced = errors.New("unbalanced snippet call")

	// ErrArity is returned when a call supplies a different number of
	// arguments than the snippet declares.
	ErrArity = errors.New("wrong number of snippet arguments")
)

// Snippet is a named template.
type Snippet struct {
	// Name is matched case-insensitively. Placeholder names are complete
	// tokens (e.g. #TODAY#); call-style names are matched as Name(.
	Name string

	// Arity is the number of arguments a call-style snippet takes.
	Arity int

	// Template is the replacement text, with markers <p1> through <pN>.
	Template string

	// Placeholder snippets take no arguments and are matched as bare tokens.
	Placeholder bool
}

// Expander holds an ordered set of snippets. It is safe for concurrent use.
type Expander struct {
	mu       sync.RWMutex
	snippets []Snippet
}

// New returns an Expander with the snippets registered.
func New(snippets ...Snippet) *Expander {
	e := &Expander{}
	e.Register(snippets...)
	return e
}

// Register appends the snippets. They are applied after the ones already registered.
func (e *Expander) Register(snippets ...Snippet) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.snippets = append(e.snippets, snippets...)
}

// Snippets returns a copy of the registered snippets in order.
func (e *Expander) Snippets() []Snippet {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return append([]Snippet(nil), e.snippets...)
}

// Parse expands every registered snippet in text.
func (e *Expander) Parse(text string) (string, error) {
	for _, s := range e.Snippets() {
		var err error
		if s.Placeholder {
			text = expandPlaceholder(text, s)
			continue
		}
		text, err = expandCalls(text, s)
		if err != nil {
			return "", fmt.Errorf("expanding %s: %w", s.Name, err)
		}
	}
	return text, nil
}

// expandPlaceholder replaces every case-insensitive occurrence of the token in one pass.
func expandPlaceholder(text string, s Snippet) string {
	if s.Name == "" {
		return text
	}
	re := regexp.MustCompile("(?i)" + regexp.QuoteMeta(s.Name))
	return re.ReplaceAllLiteralString(text, s.Template)
}

// expandCalls rewrites every Name(...) call in text.
// The cursor always moves past the text just inserted.
func expandCalls(text string, s Snippet) (string, error) {
	opener := s.Name + "("
	cursor := 0
	for cursor <= len(text) {
		i := indexFold(text[cursor:], opener)
		if i < 0 {
			break
		}
		start := cursor + i
		args, end, err := extractArgs(text, start+len(opener))
		if err != nil {
			return "", fmt.Errorf("call at offset %d: %w", start, err)
		}

		expanded, err := substitute(s, args)
		if err != nil {
			return "", fmt.Errorf("call at offset %d: %w", start, err)
		}

		// Replacing by exact substring rewrites every identical call.
		matched := text[start:end]
		prefix := strings.ReplaceAll(text[:start], matched, expanded)
		rest := strings.ReplaceAll(text[start:], matched, expanded)
		text = prefix + rest
		cursor = len(prefix) + len(expanded)
	}
	return text, nil
}

// extractArgs scans from pos, the first character after the opening
// parenthesis, and returns the arguments and the offset just past the
// closing parenthesis.
func extractArgs(text string, pos int) ([]string, int, error) {
	var (
		args  []string
		depth int
		arg   strings.Builder
	)
	for i := pos; i < len(text); i++ {
		c := text[i]
		switch {
		case c == '(':
			depth++
		case c == ')' && depth > 0:
			depth--
		case c == ')':
			args = append(args, arg.String())
			return args, i + 1, nil
		case c == ',' && depth == 0:
			args = append(args, arg.String())
			arg.Reset()
			continue
		}
		arg.WriteByte(c)
	}
	return nil, 0, ErrUnbalanced
}

var marker = regexp.MustCompile(`<p[0-9]+>`)

// substitute fills the template's markers with args.
func substitute(s Snippet, args []string) (string, error) {
	if !marker.MatchString(s.Template) {
		return s.Template, nil
	}
	if len(args) == 1 && strings.TrimSpace(args[0]) == "" && s.Arity == 0 {
		args = nil
	}
	if s.Arity > 0 && len(args) != s.Arity {
		return "", fmt.Errorf("%w: %s wants %d, got %d", ErrArity, s.Name, s.Arity, len(args))
	}
	out := s.Template
	// Replace from the highest marker down so <p1> does not eat <p10>.
	for n := len(args); n >= 1; n-- {
		out = strings.ReplaceAll(out, "<p"+strconv.Itoa(n)+">", args[n-1])
	}
	return out, nil
}

// indexFold is strings.Index with ASCII case folding.
func indexFold(s, substr string) int {
	n := len(substr)
	for i := 0; i+n <= len(s); i++ {
		if strings.EqualFold(s[i:i+n], substr) {
			return i
		}
	}
	return -1
}
