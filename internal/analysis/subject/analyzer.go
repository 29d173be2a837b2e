// Package subject guesses which math category a question belongs to from
// keywords and notation.
package subject

import (
	"strings"
)

// Decision 给出分类结果以及命中得分。Category 为空表示无法判断。
type Decision struct {
	Category string
	Score    int
}

// order fixes tie-breaking between categories with equal scores.
var order = []string{"calculus", "statistics", "discrete", "geometry", "algebra", "arithmetic"}

var keywordBuckets = map[string][]string{
	"arithmetic": {
		"sum", "product", "fraction", "percent", "percentage", "divide", "multiply", "remainder",
		"decimal", "round", "lcm", "gcd", "average of",
	},
	"algebra": {
		"solve for", "equation", "polynomial", "factor", "quadratic", "linear", "inequality",
		"variable", "expression", "simplify", "system of", "root", "matrix", "exponent",
	},
	"calculus": {
		"derivative", "differentiate", "integral", "integrate", "limit", "d/dx", "dy/dx", "series",
		"converge", "taylor", "maclaurin", "gradient", "rate of change", "antiderivative", "\\int", "\\lim",
	},
	"geometry": {
		"triangle", "circle", "angle", "area", "perimeter", "volume", "radius", "diameter", "polygon",
		"pythagor", "hypotenuse", "sine", "cosine", "tangent", "coordinate", "vector",
	},
	"statistics": {
		"probability", "mean", "median", "mode", "variance", "standard deviation", "distribution",
		"regression", "sample", "hypothesis", "expected value", "random variable", "dice", "coin",
	},
	"discrete": {
		"graph", "combinat", "permutation", "combination", "induction", "set of", "modulo", "mod ",
		"recurrence", "boolean", "logic", "proof", "prime", "pigeonhole", "binomial coefficient",
	},
}

var symbolBoost = map[string][]string{
	"calculus":   {"∫", "∑", "∂", "lim_"},
	"geometry":   {"°", "π", "\\pi"},
	"arithmetic": {"%"},
	"discrete":   {"\\binom", "n!"},
}

// Analyze 根据用户问题推断所属的数学分类。
func Analyze(text string) Decision {
	normalized := strings.TrimSpace(strings.ToLower(text))
	if normalized == "" {
		return Decision{}
	}

	scores := make(map[string]int)
	for category, keywords := range keywordBuckets {
		for _, word := range keywords {
			if strings.Contains(normalized, word) {
				scores[category] += 3
			}
		}
	}
	for category, symbols := range symbolBoost {
		for _, sym := range symbols {
			if strings.Contains(normalized, sym) {
				scores[category] += 2
			}
		}
	}

	best := Decision{}
	for _, category := range order {
		if s := scores[category]; s > best.Score {
			best = Decision{Category: category, Score: s}
		}
	}
	return best
}
