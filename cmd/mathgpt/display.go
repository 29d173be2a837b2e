package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/glamour"
	"go.uber.org/zap"

	"github.com/zhouzirui/mathgpt/internal/logging"
	"github.com/zhouzirui/mathgpt/internal/model/chat"
	"github.com/zhouzirui/mathgpt/internal/render"
)

// termRenderer is the part of glamour.TermRenderer the printer needs.
type termRenderer interface {
	Render(in string) (string, error)
}

// printer writes rendered messages to a terminal.
type printer struct {
	out    io.Writer
	md     termRenderer
	logger *zap.Logger
}

func newPrinter(out io.Writer, style string, logger *zap.Logger) *printer {
	logger = logging.OrNop(logger)
	opts := []glamour.TermRendererOption{glamour.WithWordWrap(80)}
	if style == "" {
		opts = append(opts, glamour.WithAutoStyle())
	} else {
		opts = append(opts, glamour.WithStandardStyle(style))
	}

	p := &printer{out: out, logger: logger}
	md, err := glamour.NewTermRenderer(opts...)
	if err != nil {
		logger.Warn("markdown_renderer_unavailable", zap.String("style", style), zap.Error(err))
		return p
	}
	p.md = md
	return p
}

func (p *printer) printf(format string, args ...any) {
	fmt.Fprintf(p.out, format, args...)
}

// message prints one message with a sender label.
func (p *printer) message(r render.Rendered) {
	label := "MathGPT"
	if r.Sender == chat.SenderUser {
		label = "You"
	}
	p.printf("%s:\n", label)
	for _, block := range r.Blocks {
		p.printf("%s\n", p.block(block))
	}
}

func (p *printer) block(b render.Block) string {
	switch b.Kind {
	case render.KindComposing, render.KindFallback:
		return "  " + b.Text
	case render.KindMath, render.KindEquation:
		// Markdown escapes would eat TeX backslashes, so math stays verbatim.
		return indent(b.Source, "  ")
	case render.KindStep:
		return indent(b.Source, "  ▸ ")
	default:
		return strings.TrimRight(p.markdown(b.Source), "\n")
	}
}

// markdown styles content for the terminal. Without a renderer, or when
// glamour fails or panics, the block is printed as written.
func (p *printer) markdown(content string) (styled string) {
	if p.md == nil || content == "" {
		return content
	}
	defer func() {
		if rec := recover(); rec != nil {
			p.logger.Error("markdown_render_panic", zap.Any("panic", rec))
			styled = content
		}
	}()

	styled, err := p.md.Render(content)
	if err != nil {
		p.logger.Warn("markdown_render_failed", zap.Error(err))
		return content
	}
	return styled
}

func indent(s, prefix string) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	for i, line := range lines {
		lines[i] = prefix + line
	}
	return strings.Join(lines, "\n")
}

// topics prints the topic list, marking the current and bookmarked ones.
func (p *printer) topics(state chat.SessionState, describe func(string) string) {
	for _, topic := range state.Topics {
		marker := " "
		if topic.ID == state.CurrentTopicID {
			marker = ">"
		}
		star := ""
		if topic.IsBookmarked {
			star = " ★"
		}
		difficulty := ""
		if topic.Difficulty != "" {
			difficulty = ", " + string(topic.Difficulty)
		}
		p.printf("%s %s%s  [%s%s] %d messages  id=%s\n",
			marker, topic.Name, star, describe(topic.Category), difficulty, topic.MessageCount, topic.ID)
	}
}
