// Package prompt fills instruction templates with retrieved context and the user's question.
//
// Templates mark slots with single braces, {context} and {question}. Doubled braces
// ({{ and }}) produce literal braces.
package prompt

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/hyperjump/pdfqa/internal/models"
)

// Slot names understood by templates.
const (
	SlotContext  = "context"
	SlotQuestion = "question"
)

// ErrUnknownSlot is returned by Parse when a template names a slot other than the known ones.
var ErrUnknownSlot = errors.New("unknown template slot")

// ErrMissingValue is returned by Compose when a slot used by the template has no value.
var ErrMissingValue = errors.New("missing value for template slot")

var knownSlots = map[string]bool{SlotContext: true, SlotQuestion: true}

// token matches escaped braces or a {name} slot.
var token = regexp.MustCompile(`\{\{|\}\}|\{([^{}]*)\}`)

type part struct {
	literal string
	slot    string
}

// Template is a parsed prompt template. It is safe for concurrent use.
type Template struct {
	parts []part
	slots map[string]bool
}

// Parse parses text into a Template. Any slot name other than context or question
// fails with ErrUnknownSlot.
func Parse(text string) (*Template, error) {
	t := &Template{slots: make(map[string]bool)}
	var lit strings.Builder
	last := 0
	for _, m := range token.FindAllStringSubmatchIndex(text, -1) {
		lit.WriteString(text[last:m[0]])
		last = m[1]
		switch tok := text[m[0]:m[1]]; tok {
		case "{{":
			lit.WriteByte('{')
			continue
		case "}}":
			lit.WriteByte('}')
			continue
		}
		name := strings.TrimSpace(text[m[2]:m[3]])
		if !knownSlots[name] {
			return nil, fmt.Errorf("%w: {%s}", ErrUnknownSlot, name)
		}
		if lit.Len() > 0 {
			t.parts = append(t.parts, part{literal: lit.String()})
			lit.Reset()
		}
		t.parts = append(t.parts, part{slot: name})
		t.slots[name] = true
	}
	lit.WriteString(text[last:])
	if lit.Len() > 0 {
		t.parts = append(t.parts, part{literal: lit.String()})
	}
	return t, nil
}

// MustParse is like Parse but panics on error. For package-level defaults.
func MustParse(text string) *Template {
	t, err := Parse(text)
	if err != nil {
		panic(err)
	}
	return t
}

// Slots returns the slot names used by the template, sorted.
func (t *Template) Slots() []string {
	out := make([]string, 0, len(t.slots))
	for s := range t.slots {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// Compose substitutes values into the template. Values are inserted verbatim.
func (t *Template) Compose(values map[string]string) (string, error) {
	var b strings.Builder
	for _, p := range t.parts {
		if p.slot == "" {
			b.WriteString(p.literal)
			continue
		}
		v, ok := values[p.slot]
		if !ok {
			return "", fmt.Errorf("%w: {%s}", ErrMissingValue, p.slot)
		}
		b.WriteString(v)
	}
	return b.String(), nil
}

// Render composes the template with the given context and question.
func (t *Template) Render(context, question string) (string, error) {
	return t.Compose(map[string]string{SlotContext: context, SlotQuestion: question})
}

// JoinContext concatenates match texts in order, separated by blank lines.
func JoinContext(matches []*models.Match) string {
	texts := make([]string, 0, len(matches))
	for _, m := range matches {
		if m != nil && m.Chunk != nil {
			texts = append(texts, m.Chunk.Text)
		}
	}
	return strings.Join(texts, "\n\n")
}
