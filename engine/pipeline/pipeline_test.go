package pipeline

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/microbetraits/traitalign/engine/compose"
	"github.com/microbetraits/traitalign/engine/domain"
	"github.com/microbetraits/traitalign/engine/match"
	"github.com/microbetraits/traitalign/engine/semantic"
	"github.com/microbetraits/traitalign/engine/sssom"
	"github.com/microbetraits/traitalign/engine/termindex"
	"github.com/microbetraits/traitalign/pkg/fn"
	"github.com/microbetraits/traitalign/pkg/metrics"
)

type captureSink struct {
	statuses  []sssom.ItemStatus
	summaries []Summary
}

func (c *captureSink) ItemStatus(_ context.Context, s sssom.ItemStatus) {
	c.statuses = append(c.statuses, s)
}

func (c *captureSink) RunSummary(_ context.Context, s Summary) {
	c.summaries = append(c.summaries, s)
}

func testDeps(sink EventSink) Deps {
	idx := termindex.New([]domain.Term{
		{ID: "MICRO:0001", Label: "thermophilic", Synonyms: []string{"heat-loving"}},
		{ID: "MICRO:0002", Label: "fermentation", ExternalRefs: []string{"GO:0006113"}},
	})
	gen := match.NewGenerator(idx, match.DefaultOptions(), nil)
	table := compose.NewTable([]compose.PropertyRow{
		{ID: "MTP:0001", Label: "ferments", Category: "fermentation", Outcome: "+"},
		{ID: "MTP:0002", Label: "does not ferment", Category: "fermentation", Outcome: "-"},
	}, nil)
	return Deps{
		Index:     idx,
		Generator: gen,
		Composer:  compose.NewResolver(gen, idx, table, nil),
		Events:    sink,
		Metrics:   metrics.New(),
	}
}

func findStatus(statuses []sssom.ItemStatus, key string) (sssom.ItemStatus, bool) {
	for _, s := range statuses {
		if s.SourceKey == key {
			return s, true
		}
	}
	return sssom.ItemStatus{}, false
}

func TestRunEndToEnd(t *testing.T) {
	sink := &captureSink{}
	deps := testDeps(sink)
	items := []domain.SourceItem{
		{SourceKey: "src:1", RawName: "thermophilic"},
		{SourceKey: "src:2", RawName: "fermentation: glucose", ExternalRefs: []string{"CHEBI:17234", "GO:0006113"}},
		{SourceKey: "src:3", RawName: "assimilation: maltose", ExternalRefs: []string{"CHEBI:17306"}},
		{SourceKey: "src:4", RawName: ""},
		{SourceKey: "src:5", RawName: "zzqx"},
	}

	res, err := Run(context.Background(), deps, items)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	s := res.Summary
	if s.Items != 5 || s.Mapped != 1 || s.Resolved != 1 || s.Blocked != 1 || s.Skipped != 1 || s.NoMatch != 1 {
		t.Fatalf("summary = %+v", s)
	}
	if s.Composed != 2 {
		t.Fatalf("composed count = %d", s.Composed)
	}

	if len(res.Edges) != 1 || res.Edges[0].SourceCardID != "src:2" {
		t.Fatalf("edges = %+v", res.Edges)
	}

	// Global reduction: one pair per (subject, object), validated records.
	seen := map[[2]string]bool{}
	for _, m := range res.Mappings {
		if err := domain.ValidateMapping(m); err != nil {
			t.Errorf("invalid mapping: %v", err)
		}
		k := [2]string{m.SubjectID, m.ObjectID}
		if seen[k] {
			t.Errorf("duplicate pair %v survived reduction", k)
		}
		seen[k] = true
	}
	if !seen[[2]string{"src:1", "MICRO:0001"}] {
		t.Error("base item mapping missing")
	}
	if !seen[[2]string{"src:2", "MICRO:0002"}] {
		t.Error("composed process mapping missing")
	}

	if st, ok := findStatus(sink.statuses, "src:3"); !ok || st.Outcome != OutcomeBlocked {
		t.Fatalf("src:3 status = %+v", st)
	} else if !strings.Contains(st.Detail, string(domain.StatusMissingPositive)) {
		t.Fatalf("src:3 detail = %q", st.Detail)
	}
	if st, _ := findStatus(sink.statuses, "src:4"); st.Outcome != OutcomeSkipped {
		t.Fatalf("src:4 status = %+v", st)
	}
	if len(sink.summaries) != 1 || sink.summaries[0].Mappings != len(res.Mappings) {
		t.Fatalf("summaries = %+v", sink.summaries)
	}
}

type downEmbedder struct{}

func (downEmbedder) Embed(context.Context, string) ([]float32, error) {
	return nil, errors.New("service down")
}

type emptySearcher struct{}

func (emptySearcher) Search(context.Context, []float32, int) ([]semantic.Hit, error) {
	return nil, nil
}

func TestRunCountsEmbeddingFailures(t *testing.T) {
	sink := &captureSink{}
	deps := testDeps(sink)
	deps.Generator.UseEmbedding(match.NewEmbedStrategy(downEmbedder{}, emptySearcher{}, match.EmbedOpts{
		Retry: fn.RetryOpts{MaxAttempts: 2, InitialWait: time.Millisecond, MaxWait: time.Millisecond},
	}, nil))
	items := []domain.SourceItem{
		{SourceKey: "src:1", RawName: "thermophilic"},
	}

	res, err := Run(context.Background(), deps, items)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	// A dead embedding service never fails the item; the lexical match
	// still lands. But the failure must be accounted for, not swallowed.
	if res.Summary.Mapped != 1 || len(res.Mappings) != 1 {
		t.Fatalf("summary = %+v", res.Summary)
	}
	if res.Summary.EmbedErrors != 1 {
		t.Fatalf("embed errors = %d, want 1", res.Summary.EmbedErrors)
	}
	st, ok := findStatus(sink.statuses, "src:1")
	if !ok || st.Outcome != OutcomeMapped {
		t.Fatalf("src:1 status = %+v", st)
	}
	if !strings.Contains(st.Detail, "embedding_error") {
		t.Fatalf("status detail carries no trace of the failure: %q", st.Detail)
	}
}

func TestRunCancellationKeepsPartialResults(t *testing.T) {
	deps := testDeps(nil)
	items := []domain.SourceItem{
		{SourceKey: "src:1", RawName: "thermophilic"},
		{SourceKey: "src:2", RawName: "fermentation"},
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res, err := Run(ctx, deps, items)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Summary.Items != 0 {
		t.Fatalf("cancelled run processed %d items", res.Summary.Items)
	}
	if res.Mappings == nil && len(res.Statuses) != 0 {
		t.Fatalf("unexpected statuses: %+v", res.Statuses)
	}
}

func TestRunWithoutComposerTreatsComposedAsBase(t *testing.T) {
	deps := testDeps(nil)
	deps.Composer = nil
	items := []domain.SourceItem{
		{SourceKey: "src:1", RawName: "fermentation: glucose", ExternalRefs: []string{"GO:0006113"}},
	}
	res, err := Run(context.Background(), deps, items)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	// The shared reference still matches even without decomposition.
	if res.Summary.Mapped != 1 || len(res.Mappings) != 1 {
		t.Fatalf("result = %+v", res.Summary)
	}
	if res.Mappings[0].ObjectID != "MICRO:0002" {
		t.Fatalf("mapping = %+v", res.Mappings[0])
	}
}

const sourceTSV = "source_key\tname\texternal_refs\n" +
	"src:1\tthermophilic\tGO:0009266\n" +
	"src:2\tfermentation: D-glucose\tCHEBI:17234; GO:0006113\n" +
	"\tmissing key\t\n" +
	"src:4\t\t\n"

func TestLoadSourceTSV(t *testing.T) {
	items, err := LoadSourceTSV(strings.NewReader(sourceTSV), DefaultSourceColumns(), nil)
	if err != nil {
		t.Fatalf("LoadSourceTSV: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("got %d items, want 2 (invalid rows skipped)", len(items))
	}
	if items[0].SourceKey != "src:1" || len(items[0].ExternalRefs) != 1 {
		t.Fatalf("item 0 = %+v", items[0])
	}
	second := items[1]
	if !second.IsComposed || second.BaseCategory != "fermentation" || second.QualifierLabel != "D-glucose" {
		t.Fatalf("item 1 = %+v", second)
	}
	if len(second.ExternalRefs) != 2 || second.ExternalRefs[0] != "CHEBI:17234" {
		t.Fatalf("item 1 refs = %v", second.ExternalRefs)
	}
}

func TestLoadSourceTSVMissingColumn(t *testing.T) {
	if _, err := LoadSourceTSV(strings.NewReader("id\tname\n"), DefaultSourceColumns(), nil); err == nil {
		t.Fatal("expected error for missing source_key column")
	}
}
