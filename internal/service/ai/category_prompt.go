package ai

import (
	"fmt"
	"strings"

	"github.com/zhouzirui/mathgpt/internal/model/taxonomy"
)

const basePrompt = `You are MathGPT, a patient mathematical assistant.

Rules:
- %s

Write math with $...$ for inline expressions and $$...$$ for display equations.`

// PromptTemplate holds category-specific guidance layered on the base prompt.
type PromptTemplate struct {
	Focus []string
	Rules []string
}

// CategoryPromptManager builds system prompts per topic category.
type CategoryPromptManager struct {
	categories taxonomy.Registry
	templates  map[string]*PromptTemplate
	baseRules  []string
}

// NewCategoryPromptManager creates a manager with the default templates.
func NewCategoryPromptManager(categories taxonomy.Registry) *CategoryPromptManager {
	manager := &CategoryPromptManager{
		categories: categories,
		templates:  make(map[string]*PromptTemplate),
		baseRules: []string{
			"Show the reasoning step by step, numbering each step as \"1.\", \"2.\", ...",
			"Put every equation on its own line",
			"State the final answer clearly at the end",
			"If the question is not about mathematics, say so briefly and steer back to math",
		},
	}
	manager.loadDefaultTemplates()
	return manager
}

// BuildSystemPrompt returns the prompt for categoryKey. Unknown keys use the
// registry fallback.
func (pm *CategoryPromptManager) BuildSystemPrompt(categoryKey string) string {
	category := pm.categories.Describe(categoryKey)

	var builder strings.Builder
	builder.WriteString(fmt.Sprintf(basePrompt, strings.Join(pm.baseRules, "\n- ")))
	builder.WriteString(fmt.Sprintf("\n\nThe current topic is %s: %s.", category.Label, strings.TrimSuffix(category.Description, ".")))

	if len(category.SubConcepts) > 0 {
		builder.WriteString("\nFocus areas: ")
		builder.WriteString(strings.Join(category.SubConcepts, ", "))
		builder.WriteString(".")
	}

	if template, ok := pm.templates[category.Key]; ok {
		if len(template.Focus) > 0 {
			builder.WriteString("\n\nApproach:\n- ")
			builder.WriteString(strings.Join(template.Focus, "\n- "))
		}
		if len(template.Rules) > 0 {
			builder.WriteString("\n\nCategory rules:\n- ")
			builder.WriteString(strings.Join(template.Rules, "\n- "))
		}
	}
	return builder.String()
}

func (pm *CategoryPromptManager) loadDefaultTemplates() {
	pm.templates["arithmetic"] = &PromptTemplate{
		Focus: []string{"Work with exact values before rounding", "Explain carrying and order of operations when relevant"},
	}
	pm.templates["algebra"] = &PromptTemplate{
		Focus: []string{"Isolate the unknown one operation at a time", "Check the solution by substitution"},
		Rules: []string{"Keep both sides of each equation balanced on every line"},
	}
	pm.templates["calculus"] = &PromptTemplate{
		Focus: []string{"Name the rule being applied (chain, product, substitution)", "Mention domain restrictions"},
		Rules: []string{"Include the constant of integration for indefinite integrals"},
	}
	pm.templates["geometry"] = &PromptTemplate{
		Focus: []string{"Describe the figure before computing", "Keep track of units"},
	}
	pm.templates["statistics"] = &PromptTemplate{
		Focus: []string{"State assumptions about the distribution", "Distinguish sample from population quantities"},
	}
	pm.templates["discrete"] = &PromptTemplate{
		Focus: []string{"Prefer small worked examples before the general argument"},
		Rules: []string{"Name the proof technique (induction, contradiction, counting)"},
	}
}
