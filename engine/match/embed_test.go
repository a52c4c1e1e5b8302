package match

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/microbetraits/traitalign/engine/domain"
	"github.com/microbetraits/traitalign/engine/semantic"
	"github.com/microbetraits/traitalign/pkg/fn"
)

type fakeEmbedder struct {
	vec  []float32
	err  error
	seen []string
}

func (f *fakeEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	f.seen = append(f.seen, text)
	return f.vec, f.err
}

type fakeSearcher struct {
	hits []semantic.Hit
	err  error
}

func (f *fakeSearcher) Search(context.Context, []float32, int) ([]semantic.Hit, error) {
	return f.hits, f.err
}

func fastRetry() fn.RetryOpts {
	return fn.RetryOpts{MaxAttempts: 2, InitialWait: time.Millisecond, MaxWait: time.Millisecond}
}

func TestEmbedStrategyGenerate(t *testing.T) {
	emb := &fakeEmbedder{vec: []float32{0.1, 0.2}}
	search := &fakeSearcher{hits: []semantic.Hit{
		{TermID: "MICRO:0001", Label: "thermophilic", Score: 0.95},
		{TermID: "MICRO:0002", Label: "fermentation", Score: 0.70},
		{TermID: "MICRO:0003", Label: "thermophile growth", Score: 0.40},
	}}
	es := NewEmbedStrategy(emb, search, EmbedOpts{TopN: 3, Retry: fastRetry()}, nil)

	item := domain.SourceItem{SourceKey: "src:1", RawName: "heat tolerance"}
	cands, err := es.Generate(context.Background(), item)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if len(cands) != 3 {
		t.Fatalf("got %d candidates", len(cands))
	}
	if emb.seen[0] != "heat tolerance" {
		t.Fatalf("embedded text = %q", emb.seen[0])
	}

	idx := fixtureIndex()
	preds := make([]domain.Predicate, len(cands))
	for i, c := range cands {
		rec, ok := Classify(item, c, idx)
		if !ok {
			t.Fatalf("classify candidate %d", i)
		}
		preds[i] = rec.Predicate
		wantConf := domain.ClampConfidence(1 - c.Distance/2)
		if rec.Confidence != wantConf {
			t.Errorf("confidence = %v, want %v", rec.Confidence, wantConf)
		}
	}
	// distances 0.05 / 0.30 / 0.60
	want := []domain.Predicate{domain.PredicateExact, domain.PredicateClose, domain.PredicateRelated}
	for i := range want {
		if preds[i] != want[i] {
			t.Errorf("hit %d predicate = %s, want %s", i, preds[i], want[i])
		}
	}
}

func TestEmbedPredicateMonotonic(t *testing.T) {
	rank := map[domain.Predicate]int{
		domain.PredicateExact:   3,
		domain.PredicateClose:   2,
		domain.PredicateRelated: 1,
	}
	prev := 4
	for _, d := range []float64{0.0, 0.05, 0.09, 0.10, 0.20, 0.34, 0.35, 0.50, 1.0, 2.0} {
		r := rank[EmbedPredicate(d)]
		if r > prev {
			t.Fatalf("predicate specificity increased with distance at %v", d)
		}
		prev = r
	}
	if EmbedPredicate(0.05) != domain.PredicateExact ||
		EmbedPredicate(0.20) != domain.PredicateClose ||
		EmbedPredicate(0.50) != domain.PredicateRelated {
		t.Fatal("threshold anchors wrong")
	}
}

func TestEmbedStrategyFailureExcludesStrategyOnly(t *testing.T) {
	g := newTestGenerator(DefaultOptions())
	es := NewEmbedStrategy(
		&fakeEmbedder{err: errors.New("service down")},
		&fakeSearcher{},
		EmbedOpts{Retry: fastRetry()},
		nil,
	)
	g.UseEmbedding(es)

	item := domain.SourceItem{SourceKey: "src:9", RawName: "thermophilic"}
	cands, err := g.Generate(context.Background(), item)
	if err == nil {
		t.Fatal("exhausted embedding service should be reported to the caller")
	}
	if len(findByJust(cands, domain.JustEmbedding)) != 0 {
		t.Fatal("embedding candidates produced despite failure")
	}
	if len(findByJust(cands, domain.JustLexical)) != 1 {
		t.Fatal("lexical strategy should still run")
	}
}

func TestEmbedStrategySearchError(t *testing.T) {
	es := NewEmbedStrategy(
		&fakeEmbedder{vec: []float32{1}},
		&fakeSearcher{err: errors.New("index down")},
		EmbedOpts{Retry: fastRetry()},
		nil,
	)
	if _, err := es.Generate(context.Background(), domain.SourceItem{SourceKey: "s", RawName: "x"}); err == nil {
		t.Fatal("expected search error")
	}
}
