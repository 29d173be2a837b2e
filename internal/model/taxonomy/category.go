package taxonomy

// Category describes one subject area a topic can be filed under.
type Category struct {
	Key         string   `json:"key"`
	Icon        string   `json:"icon"`
	Label       string   `json:"label"`
	Description string   `json:"description"`
	AccentColor string   `json:"accentColor"`
	SubConcepts []string `json:"subConcepts,omitempty"`
}

// DefaultKey is returned by Describe whenever a key is unknown.
const DefaultKey = "general"

// Seed provides the fixed subject categories.
func Seed() []Category {
	return []Category{
		{
			Key:         DefaultKey,
			Icon:        "functions",
			Label:       "General Math",
			Description: "Any mathematical question that does not fit a narrower subject.",
			AccentColor: "#6750A4",
		},
		{
			Key:         "arithmetic",
			Icon:        "calculate",
			Label:       "Arithmetic",
			Description: "Operations on numbers: sums, products, fractions and percentages.",
			AccentColor: "#4CAF50",
			SubConcepts: []string{"fractions", "decimals", "percentages", "order of operations"},
		},
		{
			Key:         "algebra",
			Icon:        "superscript",
			Label:       "Algebra",
			Description: "Equations, expressions, polynomials and systems of equations.",
			AccentColor: "#2196F3",
			SubConcepts: []string{"linear equations", "quadratics", "polynomials", "inequalities", "systems of equations"},
		},
		{
			Key:         "calculus",
			Icon:        "show_chart",
			Label:       "Calculus",
			Description: "Limits, derivatives, integrals and series.",
			AccentColor: "#FF9800",
			SubConcepts: []string{"limits", "derivatives", "integrals", "series"},
		},
		{
			Key:         "geometry",
			Icon:        "change_history",
			Label:       "Geometry",
			Description: "Shapes, angles, areas, volumes and coordinate geometry.",
			AccentColor: "#9C27B0",
			SubConcepts: []string{"triangles", "circles", "area and volume", "coordinate geometry", "trigonometry"},
		},
		{
			Key:         "statistics",
			Icon:        "bar_chart",
			Label:       "Statistics",
			Description: "Probability, distributions and data analysis.",
			AccentColor: "#F44336",
			SubConcepts: []string{"probability", "distributions", "mean and variance", "hypothesis testing"},
		},
		{
			Key:         "discrete",
			Icon:        "hub",
			Label:       "Discrete Math",
			Description: "Logic, sets, combinatorics and graph theory.",
			AccentColor: "#607D8B",
			SubConcepts: []string{"logic", "sets", "combinatorics", "graph theory", "number theory"},
		},
	}
}
