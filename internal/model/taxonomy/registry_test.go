package taxonomy_test

import (
	"testing"

	"github.com/zhouzirui/mathgpt/internal/model/taxonomy"
)

func TestDescribeKnownCategory(t *testing.T) {
	reg := taxonomy.NewMemoryRegistry(taxonomy.Seed())

	got := reg.Describe("calculus")
	if got.Key != "calculus" {
		t.Fatalf("unexpected category: got %s", got.Key)
	}
	if len(got.SubConcepts) == 0 {
		t.Fatal("expected calculus sub-concepts")
	}
}

func TestDescribeUnknownFallsBack(t *testing.T) {
	reg := taxonomy.NewMemoryRegistry(taxonomy.Seed())

	for _, key := range []string{"unknown-key", "", "ALGEBRA"} {
		got := reg.Describe(key)
		if got.Key != taxonomy.DefaultKey {
			t.Fatalf("Describe(%q): expected fallback %s, got %s", key, taxonomy.DefaultKey, got.Key)
		}
	}
}

func TestDescribeWithoutGeneralUsesFirst(t *testing.T) {
	reg := taxonomy.NewMemoryRegistry([]taxonomy.Category{{Key: "algebra", Label: "Algebra"}})

	if got := reg.Describe("nope"); got.Key != "algebra" {
		t.Fatalf("expected first category as fallback, got %s", got.Key)
	}
}

func TestDescribeEmptyRegistry(t *testing.T) {
	reg := taxonomy.NewMemoryRegistry(nil)

	if got := reg.Describe("anything"); got.Key != taxonomy.DefaultKey {
		t.Fatalf("expected bare general fallback, got %q", got.Key)
	}
}

func TestListReturnsCopy(t *testing.T) {
	reg := taxonomy.NewMemoryRegistry(taxonomy.Seed())

	list := reg.List()
	list[0].Label = "mutated"

	if reg.List()[0].Label == "mutated" {
		t.Fatal("List must not expose internal storage")
	}
}
