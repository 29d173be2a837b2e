package render

import (
	"bytes"
	"io"
	"testing"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	goldrenderer "github.com/yuin/goldmark/renderer"

	"github.com/zhouzirui/mathgpt/internal/model/chat"
)

// explodingRenderer panics on any document containing "boom".
type explodingRenderer struct {
	goldrenderer.Renderer
}

func (e explodingRenderer) Render(w io.Writer, source []byte, n ast.Node) error {
	if bytes.Contains(source, []byte("boom")) {
		panic("renderer exploded")
	}
	return e.Renderer.Render(w, source, n)
}

func TestRenderFailureIsIsolatedPerMessage(t *testing.T) {
	r := New(nil)
	base := goldmark.New()
	r.md = goldmark.New(goldmark.WithRenderer(explodingRenderer{Renderer: base.Renderer()}))

	out := r.RenderAll([]chat.Message{
		{ID: "a", Content: "fine", Sender: chat.SenderAssistant},
		{ID: "b", Content: "boom", Sender: chat.SenderAssistant},
		{ID: "c", Content: "also fine", Sender: chat.SenderUser},
	})

	if len(out) != 3 {
		t.Fatalf("expected 3 rendered messages, got %d", len(out))
	}
	if out[0].Failed || out[2].Failed {
		t.Fatal("healthy messages must render normally")
	}
	if !out[1].Failed {
		t.Fatal("expected exploding message to fail")
	}
	if len(out[1].Blocks) != 1 || out[1].Blocks[0].Kind != KindFallback || out[1].Blocks[0].Text != FallbackText {
		t.Fatalf("unexpected fallback blocks: %+v", out[1].Blocks)
	}
}
