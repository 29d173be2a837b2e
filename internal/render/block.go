// Package render turns raw message text into typed, display-ready blocks.
package render

import "github.com/zhouzirui/mathgpt/internal/model/chat"

// Kind names a block type the UI draws differently.
type Kind string

const (
	KindParagraph     Kind = "paragraph"
	KindMath          Kind = "math_paragraph"
	KindEquation      Kind = "equation_paragraph"
	KindStep          Kind = "step"
	KindHeading       Kind = "heading"
	KindCode          Kind = "code_block"
	KindList          Kind = "list"
	KindTable         Kind = "table"
	KindBlockquote    Kind = "blockquote"
	KindHTML          Kind = "html"
	KindThematicBreak Kind = "thematic_break"
	KindComposing     Kind = "composing"
	KindFallback      Kind = "fallback"
)

// FallbackText replaces a message whose pipeline failed.
const FallbackText = "This message failed to display."

// MathSpan is one TeX fragment found in a block.
type MathSpan struct {
	TeX     string `json:"tex"`
	Display bool   `json:"display"`
}

// Block is one top-level piece of a rendered message.
type Block struct {
	Kind Kind `json:"kind"`
	// Source is the markdown the block was parsed from.
	Source string `json:"source"`
	HTML   string `json:"html"`
	Text   string `json:"text"`

	Level int `json:"level,omitempty"`

	Language string `json:"language,omitempty"`
	Code     string `json:"code,omitempty"`
	// Copyable is set on fenced and indented code blocks only; inline code never offers a copy action.
	Copyable bool `json:"copyable,omitempty"`

	Ordered bool     `json:"ordered,omitempty"`
	Items   []string `json:"items,omitempty"`
	Steps   bool     `json:"steps,omitempty"`

	Math       []MathSpan `json:"math,omitempty"`
	InlineCode []string   `json:"inlineCode,omitempty"`
}

// Style selects the visual treatment of a whole message.
type Style string

const (
	StyleDefault Style = "default"
	StyleWelcome Style = "welcome"
)

// Rendered is a message ready for display.
type Rendered struct {
	MessageID string      `json:"messageId"`
	Sender    chat.Sender `json:"sender"`
	Style     Style       `json:"style"`
	Composing bool        `json:"composing,omitempty"`
	Failed    bool        `json:"failed,omitempty"`
	Stepwise  bool        `json:"stepwise,omitempty"`
	Blocks    []Block     `json:"blocks"`
}
