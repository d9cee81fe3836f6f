package prompt

import (
	"errors"
	"strings"
	"testing"

	"github.com/hyperjump/pdfqa/internal/config"
	"github.com/hyperjump/pdfqa/internal/models"
)

func TestParse_defaultTemplates(t *testing.T) {
	for _, text := range []string{config.DefaultTemplate, config.DefaultFilteredTemplate} {
		tmpl, err := Parse(text)
		if err != nil {
			t.Fatalf("Parse: %v", err)
		}
		slots := tmpl.Slots()
		if len(slots) != 2 || slots[0] != SlotContext || slots[1] != SlotQuestion {
			t.Errorf("slots = %v", slots)
		}
	}
}

func TestRender(t *testing.T) {
	tmpl, err := Parse(config.DefaultTemplate)
	if err != nil {
		t.Fatal(err)
	}
	out, err := tmpl.Render("Rent is $1,000.", "How much is rent?")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "Context: Rent is $1,000.\nQuestion: How much is rent?\n") {
		t.Errorf("unexpected prompt:\n%s", out)
	}
	if !strings.HasPrefix(out, "\nUse the pieces of information provided in the context") {
		t.Errorf("instruction prose not preserved:\n%s", out)
	}
	if !strings.HasSuffix(out, "Start the answer directly without unnecessary text.\n") {
		t.Errorf("closing instruction not preserved:\n%s", out)
	}
}

func TestRender_filteredTemplate(t *testing.T) {
	tmpl := MustParse(config.DefaultFilteredTemplate)
	out, err := tmpl.Render("ctx", "q?")
	if err != nil {
		t.Fatal(err)
	}
	if out != "Use the following context to answer:\nctx\n\nQ: q?\nA:" {
		t.Errorf("got %q", out)
	}
}

func TestParse_unknownSlot(t *testing.T) {
	_, err := Parse("Answer {question} using {history}")
	if !errors.Is(err, ErrUnknownSlot) {
		t.Fatalf("want ErrUnknownSlot, got %v", err)
	}
	if !strings.Contains(err.Error(), "history") {
		t.Errorf("error should name the slot: %v", err)
	}
}

func TestParse_escapesAndWhitespace(t *testing.T) {
	tmpl, err := Parse(`Reply as JSON {{"answer": "..."}} for { question }`)
	if err != nil {
		t.Fatal(err)
	}
	out, err := tmpl.Render("", "why?")
	if err != nil {
		t.Fatal(err)
	}
	if out != `Reply as JSON {"answer": "..."} for why?` {
		t.Errorf("got %q", out)
	}
}

func TestCompose_valuesInsertedVerbatim(t *testing.T) {
	tmpl := MustParse("C={context} Q={question}")
	out, err := tmpl.Compose(map[string]string{SlotContext: "{question}", SlotQuestion: "x"})
	if err != nil {
		t.Fatal(err)
	}
	if out != "C={question} Q=x" {
		t.Errorf("got %q", out)
	}
}

func TestCompose_missingValue(t *testing.T) {
	tmpl := MustParse("{context} {question}")
	_, err := tmpl.Compose(map[string]string{SlotContext: "c"})
	if !errors.Is(err, ErrMissingValue) {
		t.Errorf("want ErrMissingValue, got %v", err)
	}
}

func TestMustParse_panics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected panic")
		}
	}()
	MustParse("{nope}")
}

func TestJoinContext(t *testing.T) {
	matches := []*models.Match{
		{Chunk: &models.Chunk{Text: "first"}},
		nil,
		{Chunk: &models.Chunk{Text: "second"}},
	}
	if got := JoinContext(matches); got != "first\n\nsecond" {
		t.Errorf("got %q", got)
	}
	if got := JoinContext(nil); got != "" {
		t.Errorf("empty: got %q", got)
	}
}

func TestCountTokens(t *testing.T) {
	tests := []struct {
		text string
		want int
	}{
		{"", 0},
		{"hello world", 2},
		{"hello world hello world", 4},
	}
	for _, tt := range tests {
		got, err := CountTokens(tt.text)
		if err != nil {
			t.Fatalf("CountTokens(%q): %v", tt.text, err)
		}
		if got != tt.want {
			t.Errorf("CountTokens(%q) = %d, want %d", tt.text, got, tt.want)
		}
	}
}
