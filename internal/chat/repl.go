// Package chat implements the terminal chat loop and conversation sessions.
package chat

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/charmbracelet/lipgloss"
	"github.com/hyperjump/pdfqa/internal/config"
	"github.com/hyperjump/pdfqa/internal/models"
	"github.com/hyperjump/pdfqa/pkg/utils"
	"go.uber.org/zap"
)

// Answerer answers one question.
type Answerer interface {
	Answer(ctx context.Context, question string) (*models.QueryResult, error)
}

var (
	bannerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("10")).
			Border(lipgloss.DoubleBorder()).
			BorderForeground(lipgloss.Color("10")).
			Padding(1, 4)
	userStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	botStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("10"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	sourceStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

// Banner renders the session heading.
func Banner(title string) string {
	return bannerStyle.Render(title)
}

// IsExit reports whether line is the exit phrase, ignoring case and surrounding space.
func IsExit(line, phrase string) bool {
	return strings.EqualFold(strings.TrimSpace(line), strings.TrimSpace(phrase))
}

// REPL reads one question per line and prints each answer.
type REPL struct {
	answerer    Answerer
	cfg         config.ChatConfig
	in          io.Reader
	out         io.Writer
	session     *Session
	showSources bool
	logger      *zap.Logger
}

// Option configures a REPL.
type Option func(*REPL)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(r *REPL) { r.logger = l }
}

// WithSources prints the source file and page of each match under the answer.
func WithSources(show bool) Option {
	return func(r *REPL) { r.showSources = show }
}

// NewREPL returns a chat loop reading from in and writing to out.
func NewREPL(answerer Answerer, cfg config.ChatConfig, in io.Reader, out io.Writer, opts ...Option) *REPL {
	r := &REPL{
		answerer: answerer,
		cfg:      cfg,
		in:       in,
		out:      out,
		session:  NewSession(),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = utils.OrNop(r.logger)
	return r
}

// Session returns the conversation being recorded.
func (r *REPL) Session() *Session {
	return r.session
}

// Run loops until the exit phrase, end of input, or ctx is done. Failed questions
// are reported inline and the loop continues.
func (r *REPL) Run(ctx context.Context) error {
	fmt.Fprintln(r.out, Banner(r.cfg.Title))
	fmt.Fprintf(r.out, "\nYou can start chatting now. Type '%s' to end the session.\n\n", exitHint(r.cfg.ExitPhrase))

	scanner := bufio.NewScanner(r.in)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for {
		if err := ctx.Err(); err != nil {
			return nil
		}
		fmt.Fprint(r.out, userStyle.Render("You:")+" ")
		if !scanner.Scan() {
			if err := scanner.Err(); err != nil {
				return fmt.Errorf("read input: %w", err)
			}
			fmt.Fprintln(r.out)
			return nil
		}
		line := scanner.Text()
		if IsExit(line, r.cfg.ExitPhrase) {
			fmt.Fprintln(r.out, "\nExiting... Have a great day!")
			return nil
		}
		if strings.TrimSpace(line) == "" {
			continue
		}
		r.turn(ctx, line)
	}
}

func (r *REPL) turn(ctx context.Context, question string) {
	r.session.Add(models.RoleUser, question)
	res, err := r.answerer.Answer(ctx, question)
	if err != nil {
		r.logger.Debug("question failed", zap.Error(err))
		fmt.Fprintln(r.out, errorStyle.Render("❌ Error: "+err.Error()))
		fmt.Fprintln(r.out)
		return
	}
	r.session.Add(models.RoleBot, res.Answer)
	fmt.Fprintf(r.out, "%s %s\n", botStyle.Render("Bot:"), res.Answer)
	if r.showSources {
		for _, s := range res.Sources {
			fmt.Fprintln(r.out, sourceStyle.Render(fmt.Sprintf("  - %s, page %d (%.2f)", s.Source, s.Page+1, s.Score)))
		}
	}
	fmt.Fprintln(r.out)
}

// exitHint title-cases the exit phrase for the prompt line.
func exitHint(phrase string) string {
	words := strings.Fields(phrase)
	for i, w := range words {
		r, size := utf8.DecodeRuneInString(w)
		words[i] = string(unicode.ToUpper(r)) + w[size:]
	}
	return strings.Join(words, " ")
}
