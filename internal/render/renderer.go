package render

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	extast "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/renderer/html"
	"github.com/yuin/goldmark/text"
	"go.uber.org/zap"

	"github.com/zhouzirui/mathgpt/internal/logging"
	"github.com/zhouzirui/mathgpt/internal/model/chat"
)

// Renderer is stateless apart from its configured markdown engine and is
// safe for concurrent use.
type Renderer struct {
	md     goldmark.Markdown
	logger *zap.Logger
}

// New builds a renderer with GFM, math spans and raw HTML pass-through.
func New(logger *zap.Logger) *Renderer {
	md := goldmark.New(
		goldmark.WithExtensions(extension.GFM, Math),
		goldmark.WithRendererOptions(html.WithUnsafe()),
	)
	return &Renderer{md: md, logger: logging.OrNop(logger)}
}

// Render converts one message. It never panics; a failing message yields a
// single fallback block.
func (r *Renderer) Render(msg chat.Message) (out Rendered) {
	out = Rendered{MessageID: msg.ID, Sender: msg.Sender, Style: StyleDefault}
	if msg.IsWelcome() {
		out.Style = StyleWelcome
	}

	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("render_panic", zap.String("message", msg.ID), zap.Any("panic", rec))
			out = fallback(out)
		}
	}()

	if msg.Composing {
		out.Composing = true
		out.Blocks = []Block{{Kind: KindComposing, Text: msg.Content}}
		return out
	}

	blocks, stepwise, err := r.blocks(msg.Content)
	if err != nil {
		r.logger.Error("render_failed", zap.String("message", msg.ID), zap.Error(err))
		return fallback(out)
	}
	out.Blocks = blocks
	out.Stepwise = stepwise
	return out
}

// RenderAll renders every message; failures stay isolated per message.
func (r *Renderer) RenderAll(messages []chat.Message) []Rendered {
	out := make([]Rendered, 0, len(messages))
	for _, msg := range messages {
		out = append(out, r.Render(msg))
	}
	return out
}

func fallback(out Rendered) Rendered {
	out.Failed = true
	out.Composing = false
	out.Blocks = []Block{{Kind: KindFallback, Text: FallbackText, Source: FallbackText}}
	return out
}

func (r *Renderer) blocks(content string) ([]Block, bool, error) {
	src := []byte(content)
	stepwise := IsStepwise(content)
	doc := r.md.Parser().Parse(text.NewReader(src))

	blocks := make([]Block, 0, 4)
	for n := doc.FirstChild(); n != nil; n = n.NextSibling() {
		block, err := r.block(n, src, stepwise)
		if err != nil {
			return nil, stepwise, err
		}
		blocks = append(blocks, block)
	}
	return blocks, stepwise, nil
}

func (r *Renderer) block(n ast.Node, src []byte, stepwise bool) (Block, error) {
	var buf bytes.Buffer
	if err := r.md.Renderer().Render(&buf, src, n); err != nil {
		return Block{}, fmt.Errorf("render %s: %w", n.Kind(), err)
	}
	b := Block{HTML: buf.String()}

	switch node := n.(type) {
	case *ast.Paragraph, *ast.TextBlock:
		raw := linesText(node, src)
		b.Kind = ClassifyParagraph(raw, stepwise)
		b.Source = raw
		b.Text = plainText(node, src)
		b.Math = ExtractMath(raw)
		b.InlineCode = inlineCode(node, src)
	case *MathBlock:
		tex := string(node.TeX(src))
		b.Kind = KindMath
		b.Text = tex
		b.Source = node.Open + "\n" + tex + "\n" + node.Close
		b.Math = []MathSpan{{TeX: tex, Display: true}}
	case *ast.Heading:
		b.Kind = KindHeading
		b.Level = node.Level
		b.Text = plainText(node, src)
		b.Source = strings.Repeat("#", node.Level) + " " + linesText(node, src)
		b.Math = ExtractMath(b.Source)
	case *ast.FencedCodeBlock:
		b.Kind = KindCode
		b.Copyable = true
		b.Language = strings.TrimSpace(string(node.Language(src)))
		b.Code = codeText(node, src)
		b.Text = b.Code
		b.Source = "```" + b.Language + "\n" + b.Code + "```"
	case *ast.CodeBlock:
		b.Kind = KindCode
		b.Copyable = true
		b.Code = codeText(node, src)
		b.Text = b.Code
		b.Source = "```\n" + b.Code + "```"
	case *ast.List:
		b.Kind = KindList
		b.Ordered = node.IsOrdered()
		b.Steps = stepwise && b.Ordered
		for item := node.FirstChild(); item != nil; item = item.NextSibling() {
			b.Items = append(b.Items, strings.TrimSpace(plainText(item, src)))
		}
		b.Source = spanSource(node, src)
		b.Text = strings.Join(b.Items, "\n")
		b.Math = ExtractMath(b.Source)
		b.InlineCode = inlineCode(node, src)
	case *extast.Table:
		b.Kind = KindTable
		b.Source = spanSource(node, src)
		b.Text = plainText(node, src)
		b.Math = ExtractMath(b.Source)
	case *ast.Blockquote:
		b.Kind = KindBlockquote
		b.Source = spanSource(node, src)
		b.Text = strings.TrimSpace(plainText(node, src))
		b.Math = ExtractMath(b.Source)
	case *ast.HTMLBlock:
		b.Kind = KindHTML
		b.Source = b.HTML
		b.Text = b.HTML
	case *ast.ThematicBreak:
		b.Kind = KindThematicBreak
		b.Source = "---"
	default:
		b.Kind = KindParagraph
		b.Source = spanSource(n, src)
		b.Text = plainText(n, src)
	}
	return b, nil
}

func linesText(n ast.Node, src []byte) string {
	var sb strings.Builder
	lines := n.Lines()
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		sb.Write(seg.Value(src))
	}
	return strings.TrimSpace(sb.String())
}

func codeText(n ast.Node, src []byte) string {
	var sb strings.Builder
	lines := n.Lines()
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		sb.Write(seg.Value(src))
	}
	return sb.String()
}

// plainText concatenates the text content of n's inline descendants.
func plainText(n ast.Node, src []byte) string {
	var sb strings.Builder
	_ = ast.Walk(n, func(c ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			if c.Type() == ast.TypeBlock && c != n && sb.Len() > 0 {
				sb.WriteByte('\n')
			}
			return ast.WalkContinue, nil
		}
		switch t := c.(type) {
		case *ast.Text:
			sb.Write(t.Segment.Value(src))
			if t.SoftLineBreak() || t.HardLineBreak() {
				sb.WriteByte('\n')
			}
		case *ast.String:
			sb.Write(t.Value)
		case *MathInline:
			if t.Display {
				sb.WriteString("$$")
				sb.Write(t.TeX)
				sb.WriteString("$$")
			} else {
				sb.WriteByte('$')
				sb.Write(t.TeX)
				sb.WriteByte('$')
			}
			return ast.WalkSkipChildren, nil
		}
		return ast.WalkContinue, nil
	})
	return strings.TrimSpace(sb.String())
}

func inlineCode(n ast.Node, src []byte) []string {
	var spans []string
	_ = ast.Walk(n, func(c ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		if _, ok := c.(*ast.CodeSpan); ok {
			spans = append(spans, plainText(c, src))
			return ast.WalkSkipChildren, nil
		}
		return ast.WalkContinue, nil
	})
	return spans
}

// spanSource recovers the markdown of a container block from the byte range
// covered by its descendants, widened to whole lines.
func spanSource(n ast.Node, src []byte) string {
	start, stop := -1, -1
	widen := func(s text.Segment) {
		if s.Stop <= s.Start {
			return
		}
		if start < 0 || s.Start < start {
			start = s.Start
		}
		if s.Stop > stop {
			stop = s.Stop
		}
	}
	_ = ast.Walk(n, func(c ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		if c.Type() == ast.TypeBlock {
			lines := c.Lines()
			for i := 0; i < lines.Len(); i++ {
				widen(lines.At(i))
			}
		}
		if t, ok := c.(*ast.Text); ok {
			widen(t.Segment)
		}
		return ast.WalkContinue, nil
	})
	if start < 0 {
		return ""
	}
	for start > 0 && src[start-1] != '\n' {
		start--
	}
	for stop < len(src) && src[stop] != '\n' {
		stop++
	}
	return strings.TrimRight(string(src[start:stop]), "\n")
}
