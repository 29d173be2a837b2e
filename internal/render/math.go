package render

import (
	"bytes"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/renderer"
	"github.com/yuin/goldmark/text"
	"github.com/yuin/goldmark/util"
)

// KindMathInline is the AST kind of a math span inside a paragraph.
var KindMathInline = ast.NewNodeKind("MathInline")

// KindMathBlock is the AST kind of a fenced `$$` or `\[` block.
var KindMathBlock = ast.NewNodeKind("MathBlock")

// MathInline holds TeX that must reach the page untouched by emphasis rules.
type MathInline struct {
	ast.BaseInline
	TeX     []byte
	Display bool
}

// Kind implements ast.Node.
func (n *MathInline) Kind() ast.NodeKind {
	return KindMathInline
}

// Dump implements ast.Node.
func (n *MathInline) Dump(source []byte, level int) {
	ast.DumpHelper(n, source, level, map[string]string{"TeX": string(n.TeX)}, nil)
}

// MathBlock is display math whose opener and closer sit on their own lines.
// Its Lines hold the TeX between them.
type MathBlock struct {
	ast.BaseBlock
	Open, Close string
}

// Kind implements ast.Node.
func (n *MathBlock) Kind() ast.NodeKind {
	return KindMathBlock
}

// IsRaw implements ast.Node.
func (n *MathBlock) IsRaw() bool {
	return true
}

// Dump implements ast.Node.
func (n *MathBlock) Dump(source []byte, level int) {
	ast.DumpHelper(n, source, level, map[string]string{"Open": n.Open}, nil)
}

// TeX returns the block body without its delimiters.
func (n *MathBlock) TeX(source []byte) []byte {
	var buf bytes.Buffer
	lines := n.Lines()
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		buf.Write(seg.Value(source))
	}
	return bytes.TrimSpace(buf.Bytes())
}

type delimiter struct {
	open, close []byte
	display     bool
}

// Openers are tried longest first so `$$` never reads as two `$`.
var delimiters = []delimiter{
	{[]byte("$$"), []byte("$$"), true},
	{[]byte(`\[`), []byte(`\]`), true},
	{[]byte(`\(`), []byte(`\)`), false},
	{[]byte("$"), []byte("$"), false},
}

func delimiterAt(line []byte) (delimiter, bool) {
	for _, d := range delimiters {
		if bytes.HasPrefix(line, d.open) {
			return d, true
		}
	}
	return delimiter{}, false
}

type mathInlineParser struct{}

// Trigger includes the backslash so `\[` and `\(` are claimed before
// goldmark treats them as escaped punctuation.
func (p *mathInlineParser) Trigger() []byte {
	return []byte{'$', '\\'}
}

func (p *mathInlineParser) Parse(parent ast.Node, block text.Reader, pc parser.Context) ast.Node {
	line, _ := block.PeekLine()
	d, ok := delimiterAt(line)
	if !ok {
		return nil
	}
	rest := line[len(d.open):]
	if len(rest) == 0 {
		return nil
	}

	var end int
	if len(d.open) == 1 {
		// A lone `$` must hug its TeX, otherwise "$5 and $6" would be math.
		if util.IsSpace(rest[0]) {
			return nil
		}
		end = closingDollar(rest)
		if end > 0 && util.IsSpace(rest[end-1]) {
			return nil
		}
	} else {
		end = bytes.Index(rest, d.close)
	}
	if end <= 0 {
		return nil
	}
	tex := bytes.TrimSpace(rest[:end])
	if len(tex) == 0 {
		return nil
	}

	block.Advance(len(d.open) + end + len(d.close))
	return &MathInline{TeX: append([]byte(nil), tex...), Display: d.display}
}

func closingDollar(rest []byte) int {
	for i := 0; i < len(rest); i++ {
		switch rest[i] {
		case '\\':
			i++
		case '$':
			return i
		}
	}
	return -1
}

type mathBlockParser struct{}

func (b *mathBlockParser) Trigger() []byte {
	return []byte{'$', '\\'}
}

func (b *mathBlockParser) Open(parent ast.Node, reader text.Reader, pc parser.Context) (ast.Node, parser.State) {
	line, segment := reader.PeekLine()
	pos := pc.BlockOffset()
	if pos < 0 {
		return nil, parser.NoChildren
	}
	d, ok := delimiterAt(line[pos:])
	if !ok || !d.display {
		return nil, parser.NoChildren
	}
	rest := line[pos+len(d.open):]
	// `$$x$$` on one line stays a paragraph and goes through the inline parser.
	if bytes.Contains(rest, d.close) {
		return nil, parser.NoChildren
	}

	node := &MathBlock{Open: string(d.open), Close: string(d.close)}
	if !util.IsBlank(rest) {
		start := segment.Start - segment.Padding + pos + len(d.open)
		seg := text.NewSegment(start, segment.Stop)
		seg.ForceNewline = true
		node.Lines().Append(seg)
	}
	return node, parser.NoChildren
}

func (b *mathBlockParser) Continue(node ast.Node, reader text.Reader, pc parser.Context) parser.State {
	m := node.(*MathBlock)
	line, segment := reader.PeekLine()

	trimmed := util.TrimRightSpace(line)
	if bytes.HasSuffix(trimmed, []byte(m.Close)) {
		idx := len(trimmed) - len(m.Close)
		if body := line[:idx]; !util.IsBlank(body) {
			seg := text.NewSegment(segment.Start-segment.Padding, segment.Start-segment.Padding+idx)
			seg.ForceNewline = true
			m.Lines().Append(seg)
		}
		newline := 1
		if line[len(line)-1] != '\n' {
			newline = 0
		}
		reader.Advance(segment.Stop - segment.Start - newline + segment.Padding)
		return parser.Close
	}

	seg := text.NewSegment(segment.Start, segment.Stop)
	seg.ForceNewline = true
	m.Lines().Append(seg)
	reader.Advance(segment.Len() - 1)
	return parser.Continue | parser.NoChildren
}

func (b *mathBlockParser) Close(node ast.Node, reader text.Reader, pc parser.Context) {}

func (b *mathBlockParser) CanInterruptParagraph() bool {
	return true
}

func (b *mathBlockParser) CanAcceptIndentedLine() bool {
	return false
}

type mathHTMLRenderer struct{}

func (r *mathHTMLRenderer) RegisterFuncs(reg renderer.NodeRendererFuncRegisterer) {
	reg.Register(KindMathInline, r.renderInline)
	reg.Register(KindMathBlock, r.renderBlock)
}

func (r *mathHTMLRenderer) renderInline(w util.BufWriter, source []byte, n ast.Node, entering bool) (ast.WalkStatus, error) {
	if !entering {
		return ast.WalkContinue, nil
	}
	m := n.(*MathInline)
	if m.Display {
		_, _ = w.WriteString(`<span class="math display">\[`)
		_, _ = w.Write(util.EscapeHTML(m.TeX))
		_, _ = w.WriteString(`\]</span>`)
	} else {
		_, _ = w.WriteString(`<span class="math inline">\(`)
		_, _ = w.Write(util.EscapeHTML(m.TeX))
		_, _ = w.WriteString(`\)</span>`)
	}
	return ast.WalkSkipChildren, nil
}

func (r *mathHTMLRenderer) renderBlock(w util.BufWriter, source []byte, n ast.Node, entering bool) (ast.WalkStatus, error) {
	if !entering {
		return ast.WalkContinue, nil
	}
	m := n.(*MathBlock)
	_, _ = w.WriteString(`<div class="math display">\[`)
	_, _ = w.Write(util.EscapeHTML(m.TeX(source)))
	_, _ = w.WriteString("\\]</div>\n")
	return ast.WalkSkipChildren, nil
}

type mathExtension struct{}

// Math is a goldmark extension for `$...$`, `\(...\)`, `$$...$$` and
// `\[...\]`, inline or fenced on their own lines.
var Math goldmark.Extender = &mathExtension{}

func (e *mathExtension) Extend(m goldmark.Markdown) {
	m.Parser().AddOptions(
		parser.WithBlockParsers(util.Prioritized(&mathBlockParser{}, 650)),
		parser.WithInlineParsers(util.Prioritized(&mathInlineParser{}, 50)),
	)
	m.Renderer().AddOptions(renderer.WithNodeRenderers(
		util.Prioritized(&mathHTMLRenderer{}, 500),
	))
}
