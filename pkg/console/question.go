package console

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// MaxAttempts bounds how many invalid answers a question accepts before it
// falls back to its default.
const MaxAttempts = 5

// Question is a multiple choice question.
type Question struct {
	lines         []string
	answers       map[string]string
	defaultAnswer string
}

// NewQuestion builds a question. answers maps the answer key the user types
// to its description; defaultAnswer must be one of the keys.
func NewQuestion(lines []string, answers map[string]string, defaultAnswer string) (*Question, error) {
	if len(lines) == 0 {
		return nil, errors.New("question text is required")
	}
	if len(answers) == 0 {
		return nil, errors.New("at least one answer is required")
	}
	normalized := make(map[string]string, len(answers))
	for key, desc := range answers {
		k := strings.ToLower(strings.TrimSpace(key))
		if k == "" {
			return nil, errors.New("answer keys can't be empty")
		}
		normalized[k] = desc
	}
	def := strings.ToLower(strings.TrimSpace(defaultAnswer))
	if _, ok := normalized[def]; !ok {
		return nil, fmt.Errorf("default answer %q is not a valid answer", defaultAnswer)
	}
	return &Question{lines: lines, answers: normalized, defaultAnswer: def}, nil
}

// Default returns the default answer key.
func (q *Question) Default() string { return q.defaultAnswer }

// Keys returns the sorted answer keys.
func (q *Question) Keys() []string {
	keys := make([]string, 0, len(q.answers))
	for k := range q.answers {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Match normalizes raw input and reports whether it is a valid answer.
// Empty input selects the default.
func (q *Question) Match(raw string) (string, bool) {
	answer := strings.ToLower(strings.TrimSpace(raw))
	if answer == "" {
		return q.defaultAnswer, true
	}
	if _, ok := q.answers[answer]; ok {
		return answer, true
	}
	return "", false
}

// Render returns the question lines followed by the answer legend.
func (q *Question) Render(f *Formatter) []string {
	out := make([]string, 0, len(q.lines)+1)
	for _, line := range q.lines {
		out = append(out, f.Line(line, StyleQuestion))
	}
	legend := make([]string, 0, len(q.answers))
	for _, k := range q.Keys() {
		item := fmt.Sprintf("[%s] %s", k, q.answers[k])
		if k == q.defaultAnswer {
			item += " (default)"
		}
		legend = append(legend, item)
	}
	out = append(out, strings.Join(legend, "  "))
	return out
}
