package match

import (
	"context"
	"strings"
	"testing"

	"github.com/microbetraits/traitalign/engine/domain"
	"github.com/microbetraits/traitalign/engine/termindex"
)

func fixtureIndex() *termindex.Index {
	return termindex.New([]domain.Term{
		{
			ID:           "MICRO:0001",
			Label:        "thermophilic",
			Synonyms:     []string{"heat-loving"},
			ExternalRefs: []string{"GO:0009266"},
		},
		{
			ID:           "MICRO:0002",
			Label:        "fermentation",
			ExternalRefs: []string{"GO:0006113", "GO:0008150"},
		},
		{
			ID:           "MICRO:0003",
			Label:        "thermophile growth",
			ExternalRefs: []string{"GO:0008150"},
		},
	})
}

func newTestGenerator(opts Options) *Generator {
	return NewGenerator(fixtureIndex(), opts, nil)
}

func generate(t *testing.T, g *Generator, item domain.SourceItem) []Candidate {
	t.Helper()
	cands, err := g.Generate(context.Background(), item)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	return cands
}

func findByJust(cands []Candidate, j domain.Justification) []Candidate {
	var out []Candidate
	for _, c := range cands {
		if c.Justification == j {
			out = append(out, c)
		}
	}
	return out
}

func TestLexicalExact(t *testing.T) {
	g := newTestGenerator(DefaultOptions())
	item := domain.SourceItem{SourceKey: "src:1", RawName: "thermophilic"}

	cands, err := g.Generate(context.Background(), item)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	lex := findByJust(cands, domain.JustLexical)
	if len(lex) != 1 || lex[0].TermID != "MICRO:0001" || lex[0].Confidence != 1.0 {
		t.Fatalf("lexical candidates = %+v", lex)
	}
	if strings.Contains(lex[0].Evidence, `"`) {
		t.Fatalf("evidence carries quote characters: %q", lex[0].Evidence)
	}

	rec, ok := Classify(item, lex[0], fixtureIndex())
	if !ok {
		t.Fatal("Classify failed")
	}
	if rec.Predicate != domain.PredicateExact || rec.Confidence != 1.0 {
		t.Fatalf("record = %+v", rec)
	}
	if rec.SubjectID != "src:1" || rec.ObjectID != "MICRO:0001" || rec.ObjectLabel != "thermophilic" {
		t.Fatalf("record identity wrong: %+v", rec)
	}
}

func TestSynonymMatch(t *testing.T) {
	g := newTestGenerator(DefaultOptions())
	item := domain.SourceItem{SourceKey: "src:2", RawName: "Heat Loving"}

	cands := findByJust(generate(t, g, item), domain.JustSynonym)
	if len(cands) != 1 || cands[0].Confidence != ConfidenceSynonym {
		t.Fatalf("synonym candidates = %+v", cands)
	}
	rec, _ := Classify(item, cands[0], fixtureIndex())
	if rec.Predicate != domain.PredicateClose {
		t.Fatalf("predicate = %s", rec.Predicate)
	}
}

func TestSharedReferenceSpecific(t *testing.T) {
	g := newTestGenerator(DefaultOptions())
	item := domain.SourceItem{
		SourceKey:    "src:3",
		RawName:      "unrelated wording",
		ExternalRefs: []string{"GO:0006113"},
	}

	cands := findByJust(generate(t, g, item), domain.JustSharedRef)
	if len(cands) != 1 || cands[0].TermID != "MICRO:0002" || cands[0].Confidence != ConfidenceSharedRef {
		t.Fatalf("shared-ref candidates = %+v", cands)
	}
	rec, _ := Classify(item, cands[0], fixtureIndex())
	if rec.Predicate != domain.PredicateRelated {
		t.Fatalf("predicate = %s", rec.Predicate)
	}
}

func TestGenericReferenceFallback(t *testing.T) {
	opts := DefaultOptions()
	opts.GenericRefs = []string{"GO:0008150"} // broad "biological process"
	g := newTestGenerator(opts)

	// Only a generic reference, no lexical/synonym/fuzzy hit.
	item := domain.SourceItem{
		SourceKey:    "src:4",
		RawName:      "zzqx",
		ExternalRefs: []string{"GO:0008150"},
	}
	cands := generate(t, g, item)
	if len(cands) != 2 {
		t.Fatalf("fallback should hit both terms sharing the generic ref: %+v", cands)
	}
	for _, c := range cands {
		if c.Confidence != ConfidenceGenericRef {
			t.Errorf("generic fallback confidence = %v", c.Confidence)
		}
	}
}

func TestGenericFallbackSkippedWhenPrimaryMatched(t *testing.T) {
	opts := DefaultOptions()
	opts.GenericRefs = []string{"GO:0008150"}
	g := newTestGenerator(opts)

	item := domain.SourceItem{
		SourceKey:    "src:5",
		RawName:      "fermentation",
		ExternalRefs: []string{"GO:0008150"},
	}
	for _, c := range generate(t, g, item) {
		if c.Confidence == ConfidenceGenericRef {
			t.Fatalf("generic fallback ran despite primary match: %+v", c)
		}
	}
}

func TestGenericFallbackDisabled(t *testing.T) {
	opts := DefaultOptions()
	opts.GenericRefs = []string{"GO:0008150"}
	opts.GenericFallback = false
	g := newTestGenerator(opts)

	item := domain.SourceItem{
		SourceKey:    "src:6",
		RawName:      "zzqx",
		ExternalRefs: []string{"GO:0008150"},
	}
	if cands := generate(t, g, item); len(cands) != 0 {
		t.Fatalf("disabled fallback still produced candidates: %+v", cands)
	}
}

func TestFuzzyThresholdAndCap(t *testing.T) {
	g := newTestGenerator(DefaultOptions())
	item := domain.SourceItem{SourceKey: "src:7", RawName: "thermophilik"}

	cands := findByJust(generate(t, g, item), domain.JustFuzzy)
	if len(cands) == 0 {
		t.Fatal("expected a fuzzy candidate for a near-miss spelling")
	}
	if cands[0].TermID != "MICRO:0001" {
		t.Fatalf("best fuzzy candidate = %+v", cands[0])
	}
	if cands[0].Confidence < 0.85 || cands[0].Confidence > 1.0 {
		t.Fatalf("fuzzy confidence out of expected band: %v", cands[0].Confidence)
	}
	if len(cands) > g.opts.FuzzyTopK {
		t.Fatalf("fuzzy cap violated: %d candidates", len(cands))
	}
}

func TestFuzzyNoMatchBelowThreshold(t *testing.T) {
	g := newTestGenerator(DefaultOptions())
	item := domain.SourceItem{SourceKey: "src:8", RawName: "completely different"}
	if cands := findByJust(generate(t, g, item), domain.JustFuzzy); len(cands) != 0 {
		t.Fatalf("unexpected fuzzy candidates: %+v", cands)
	}
}

func TestRatio(t *testing.T) {
	if Ratio("abc", "abc") != 100 {
		t.Fatal("identical strings should score 100")
	}
	if Ratio("", "abc") != 0 {
		t.Fatal("empty string should score 0")
	}
	if r := Ratio("thermophilic", "thermophilik"); r < 85 || r >= 100 {
		t.Fatalf("one-edit ratio = %d", r)
	}
}
