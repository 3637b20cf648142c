// Package template renders the files WP Starter generates. Templates use
// {{{KEY}}} placeholders and may contain labeled sections:
//
//	LABEL: {
//	    ...
//	} #@@/LABEL
//
// Sections are valid PHP (a goto label followed by a block), so generated
// files keep them, and a single section can later be re-rendered without
// touching the rest of an edited file.
package template

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
)

var placeholder = regexp.MustCompile(`\{\{\{\s*([A-Za-z0-9_]+)\s*\}\}\}`)

var sectionStart = regexp.MustCompile(`(?m)^([A-Z][A-Z0-9_]*):\s*\{[ \t]*\r?$`)

// ErrSectionNotFound is returned by ReplaceSection for unknown labels.
var ErrSectionNotFound = errors.New("section not found")

// Builder replaces placeholders.
type Builder struct {
	// Strict makes Build keep unknown placeholders instead of blanking them.
	Strict bool
}

// Build replaces every {{{KEY}}} in tmpl with vars[KEY].
func (b Builder) Build(tmpl string, vars map[string]string) string {
	return placeholder.ReplaceAllStringFunc(tmpl, func(m string) string {
		key := placeholder.FindStringSubmatch(m)[1]
		if v, ok := vars[key]; ok {
			return v
		}
		if b.Strict {
			return m
		}
		return ""
	})
}

// Placeholders returns the sorted distinct placeholder names in tmpl.
func Placeholders(tmpl string) []string {
	seen := map[string]struct{}{}
	for _, m := range placeholder.FindAllStringSubmatch(tmpl, -1) {
		seen[m[1]] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for k := range seen {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Section is a labeled block of a template or generated file.
type Section struct {
	Label string
	// Body is the content between the opening and the closing line.
	Body string
	// Start and End delimit the whole section, markers included.
	Start, End int
	bodyStart  int
	bodyEnd    int
}

// Sections parses the labeled sections of content. Unterminated sections are
// ignored.
func Sections(content string) map[string]Section {
	out := map[string]Section{}
	for _, loc := range sectionStart.FindAllStringSubmatchIndex(content, -1) {
		label := content[loc[2]:loc[3]]
		if _, dup := out[label]; dup {
			continue
		}
		bodyStart := loc[1]
		if bodyStart < len(content) && content[bodyStart] == '\n' {
			bodyStart++
		}
		closing := regexp.MustCompile(`(?m)^[ \t]*\}[ \t]*#@@/` + regexp.QuoteMeta(label) + `[ \t]*\r?$`)
		end := closing.FindStringIndex(content[bodyStart:])
		if end == nil {
			continue
		}
		bodyEnd := bodyStart + end[0]
		out[label] = Section{
			Label:     label,
			Body:      content[bodyStart:bodyEnd],
			Start:     loc[0],
			End:       bodyStart + end[1],
			bodyStart: bodyStart,
			bodyEnd:   bodyEnd,
		}
	}
	return out
}

// ReplaceSection swaps the body of section label with body.
func ReplaceSection(content, label, body string) (string, error) {
	s, ok := Sections(content)[label]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrSectionNotFound, label)
	}
	if body != "" && !strings.HasSuffix(body, "\n") {
		body += "\n"
	}
	return content[:s.bodyStart] + body + content[s.bodyEnd:], nil
}
