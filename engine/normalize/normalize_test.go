package normalize

import (
	"reflect"
	"testing"
)

func TestClean(t *testing.T) {
	cases := []struct{ in, want string }{
		{"  Spore  Formation ", "Spore Formation"},
		{"a\tb\n c", "a b c"},
		{"already clean", "already clean"},
	}
	for _, c := range cases {
		if got := Clean(c.in); got != c.want {
			t.Errorf("Clean(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestKeyLowercases(t *testing.T) {
	if got := Key(" Gram  Stain "); got != "gram stain" {
		t.Fatalf("Key = %q", got)
	}
}

func hasVariant(vs []string, want string) bool {
	for _, v := range vs {
		if v == want {
			return true
		}
	}
	return false
}

func TestVariantsDigitSeparator(t *testing.T) {
	a := Variants("GC_42_65")
	b := Variants("GC_42.65")
	if !hasVariant(a, "gc_42.65") {
		t.Fatalf("GC_42_65 variants missing canonical period form: %v", a)
	}
	if !intersects(a, b) {
		t.Fatalf("underscore and period forms should share a key: %v vs %v", a, b)
	}
}

func TestVariantsOperatorSpacing(t *testing.T) {
	a := Variants("pH < = 7")
	if !hasVariant(a, "ph <= 7") {
		t.Fatalf("spaced operator not canonicalized: %v", a)
	}
}

func TestVariantsHyphenUnderscore(t *testing.T) {
	if !intersects(Variants("gram-positive"), Variants("gram_positive")) {
		t.Fatal("hyphen and underscore forms should share a key")
	}
}

func TestVariantsOneHotDecomposition(t *testing.T) {
	vs := Variants("cell_shape_coccus")
	for _, want := range []string{"cell_shape_coccus", "coccus", "shape coccus"} {
		if !hasVariant(vs, want) {
			t.Errorf("variants missing %q: %v", want, vs)
		}
	}
	// "coccus-shaped" and "coccus shaped" both stand for the bare value.
	if !intersects(Variants("coccus-shaped"), Variants("coccus")) {
		t.Error("shaped suffix form should reach the bare value")
	}
	if !intersects(Variants("coccus shaped"), Variants("coccus")) {
		t.Error("spaced shaped form should reach the bare value")
	}
}

func TestVariantsIdempotent(t *testing.T) {
	inputs := []string{
		"GC_42_65", "cell_shape_coccus", "gram-positive",
		"pH < = 7", "thermophilic", "fermentation: D-glucose",
	}
	for _, in := range inputs {
		closure := Variants(in)
		set := make(map[string]bool, len(closure))
		for _, v := range closure {
			set[v] = true
		}
		// Re-normalizing any member must add nothing.
		for _, v := range closure {
			for _, w := range Variants(v) {
				if !set[w] {
					t.Errorf("Variants(%q) not closed: member %q yields new key %q", in, v, w)
				}
			}
		}
	}
}

func TestVariantsSortedUnique(t *testing.T) {
	vs := Variants("gram-positive")
	sorted := append([]string(nil), vs...)
	for i := 1; i < len(sorted); i++ {
		if sorted[i-1] >= sorted[i] {
			t.Fatalf("variants not sorted unique: %v", vs)
		}
	}
	if !reflect.DeepEqual(vs, sorted) {
		t.Fatal("variants mutated")
	}
}

func TestMatchesKey(t *testing.T) {
	if !MatchesKey("Gram-Positive", "gram_positive") {
		t.Fatal("expected match across punctuation variants")
	}
	if MatchesKey("thermophilic", "psychrophilic") {
		t.Fatal("unrelated strings matched")
	}
}

func intersects(a, b []string) bool {
	set := make(map[string]bool, len(b))
	for _, v := range b {
		set[v] = true
	}
	for _, v := range a {
		if set[v] {
			return true
		}
	}
	return false
}
