package render

import (
	"regexp"
	"strings"
)

// ParagraphRule maps a paragraph predicate to the block kind it produces.
type ParagraphRule struct {
	Name  string
	Kind  Kind
	Match func(raw string, stepwise bool) bool
}

var stepLine = regexp.MustCompile(`^\d+\.`)

// paragraphRules are evaluated top to bottom; the first match wins.
var paragraphRules = []ParagraphRule{
	{
		Name: "math",
		Kind: KindMath,
		Match: func(raw string, _ bool) bool {
			return ContainsMathDelimiter(raw)
		},
	},
	{
		Name: "equation",
		Kind: KindEquation,
		Match: func(raw string, _ bool) bool {
			return strings.Contains(raw, "=") && !strings.Contains(raw, "===")
		},
	},
	{
		Name: "step",
		Kind: KindStep,
		Match: func(raw string, stepwise bool) bool {
			return stepwise && stepLine.MatchString(strings.TrimSpace(raw))
		},
	},
}

// Rules returns the paragraph rule table in evaluation order.
func Rules() []ParagraphRule {
	return append([]ParagraphRule(nil), paragraphRules...)
}

// ClassifyParagraph returns the kind of a paragraph with the given raw text.
func ClassifyParagraph(raw string, stepwise bool) Kind {
	for _, rule := range paragraphRules {
		if rule.Match(raw, stepwise) {
			return rule.Kind
		}
	}
	return KindParagraph
}

// ContainsMathDelimiter reports whether raw has any math opener.
func ContainsMathDelimiter(raw string) bool {
	return strings.Contains(raw, "$") || strings.Contains(raw, `\[`) || strings.Contains(raw, `\(`)
}

var stepwisePhrases = []string{
	"step-by-step",
	"step by step",
	"step 1",
	"let's solve",
	"solution:",
}

// IsStepwise reports whether a message body reads as a step-by-step solution.
func IsStepwise(body string) bool {
	lower := strings.ToLower(body)
	for _, phrase := range stepwisePhrases {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	return false
}

// mathDelimiters pairs each opener with its closer, longest first.
var mathDelimiters = []struct {
	open, close string
	display     bool
}{
	{"$$", "$$", true},
	{`\[`, `\]`, true},
	{`\(`, `\)`, false},
	{"$", "$", false},
}

// ExtractMath returns the TeX spans of raw in source order. Unclosed
// openers are left as text.
func ExtractMath(raw string) []MathSpan {
	var spans []MathSpan
	for i := 0; i < len(raw); {
		if raw[i] == '\\' && i+1 < len(raw) && raw[i+1] == '$' {
			i += 2
			continue
		}
		matched := false
		for _, d := range mathDelimiters {
			if !strings.HasPrefix(raw[i:], d.open) {
				continue
			}
			start := i + len(d.open)
			end := strings.Index(raw[start:], d.close)
			if end <= 0 {
				continue
			}
			tex := strings.TrimSpace(raw[start : start+end])
			if tex == "" {
				continue
			}
			spans = append(spans, MathSpan{TeX: tex, Display: d.display})
			i = start + end + len(d.close)
			matched = true
			break
		}
		if !matched {
			i++
		}
	}
	return spans
}
