// Package match generates and classifies candidate alignments between
// source items and vocabulary terms. Five independent strategies run per
// item (lexical, synonym, shared-reference, fuzzy, embedding) and their
// outputs concatenate; reconciliation happens downstream in the
// deduplicator, never here.
package match

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/microbetraits/traitalign/engine/domain"
	"github.com/microbetraits/traitalign/engine/normalize"
	"github.com/microbetraits/traitalign/engine/termindex"
	"github.com/microbetraits/traitalign/pkg/fn"
)

// Raw confidences per strategy.
const (
	ConfidenceLexical    = 1.0
	ConfidenceSynonym    = 0.95
	ConfidenceSharedRef  = 0.85
	ConfidenceGenericRef = 0.5
)

// Candidate is the uniform tuple every strategy emits.
type Candidate struct {
	SourceKey     string
	TermID        string
	Justification domain.Justification
	Confidence    float64
	// Distance is the raw cosine distance; embedding candidates only.
	Distance float64
	// Evidence is the human-readable provenance carried into the record
	// comment: the matched CURIE, similarity ratio, or distance.
	Evidence string
}

// Options tunes the generator. The fuzzy and embedding caps bound output
// volume per item; they are parameters rather than constants.
type Options struct {
	// FuzzyThreshold is the minimum similarity ratio (0-100) to keep a
	// fuzzy candidate.
	FuzzyThreshold int
	// FuzzyTopK caps fuzzy candidates per item.
	FuzzyTopK int
	// EmbedTopN caps embedding nearest neighbors per item.
	EmbedTopN int
	// GenericFallback enables the low-confidence second pass over
	// denylisted generic references for otherwise unmatched items.
	GenericFallback bool
	// GenericRefs is the denylist of broad external references excluded
	// from the primary shared-reference pass.
	GenericRefs []string
}

// DefaultOptions returns the tuned defaults.
func DefaultOptions() Options {
	return Options{
		FuzzyThreshold:  85,
		FuzzyTopK:       3,
		EmbedTopN:       5,
		GenericFallback: true,
	}
}

// Generator runs the candidate strategies against a term index.
type Generator struct {
	index   *termindex.Index
	opts    Options
	generic map[string]bool
	embed   *EmbedStrategy
	logger  *slog.Logger
}

// NewGenerator creates a Generator over the given read-only index.
func NewGenerator(index *termindex.Index, opts Options, logger *slog.Logger) *Generator {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.FuzzyThreshold <= 0 {
		opts.FuzzyThreshold = DefaultOptions().FuzzyThreshold
	}
	if opts.FuzzyTopK <= 0 {
		opts.FuzzyTopK = DefaultOptions().FuzzyTopK
	}
	if opts.EmbedTopN <= 0 {
		opts.EmbedTopN = DefaultOptions().EmbedTopN
	}
	generic := make(map[string]bool, len(opts.GenericRefs))
	for _, ref := range opts.GenericRefs {
		generic[normalize.Key(ref)] = true
	}
	return &Generator{index: index, opts: opts, generic: generic, logger: logger}
}

// UseEmbedding wires the embedding nearest-neighbor strategy. Without it
// the generator runs the four local strategies only.
func (g *Generator) UseEmbedding(e *EmbedStrategy) { g.embed = e }

// Generate produces all raw candidates for one item. An embedding
// failure excludes that strategy only; the others still contribute, and
// the failure is returned alongside the candidates so callers can count
// and surface it per item.
func (g *Generator) Generate(ctx context.Context, item domain.SourceItem) ([]Candidate, error) {
	strategies := []func(domain.SourceItem) []Candidate{
		g.lexical,
		g.synonym,
		g.sharedRefs,
		g.fuzzy,
	}
	out := fn.FlatMap(strategies, func(s func(domain.SourceItem) []Candidate) []Candidate {
		return s(item)
	})

	var embedErr error
	if g.embed != nil {
		cands, err := g.embed.Generate(ctx, item)
		if err != nil {
			embedErr = err
			g.logger.Warn("match: embedding strategy unavailable",
				"source_key", item.SourceKey, "error", err)
		} else {
			out = append(out, cands...)
		}
	}

	if len(out) == 0 && g.opts.GenericFallback {
		out = g.genericRefs(item)
	}
	return out, embedErr
}

// lexical matches normalized raw names against normalized term labels.
func (g *Generator) lexical(item domain.SourceItem) []Candidate {
	return g.keyMatches(item, g.index.ByLabel, domain.JustLexical, ConfidenceLexical, "label")
}

// synonym matches normalized raw names against term synonym sets.
func (g *Generator) synonym(item domain.SourceItem) []Candidate {
	return g.keyMatches(item, g.index.BySynonym, domain.JustSynonym, ConfidenceSynonym, "synonym")
}

func (g *Generator) keyMatches(item domain.SourceItem, lookup func(string) []string, just domain.Justification, conf float64, kind string) []Candidate {
	var out []Candidate
	for _, v := range normalize.Variants(item.RawName) {
		for _, id := range lookup(v) {
			out = append(out, Candidate{
				SourceKey:     item.SourceKey,
				TermID:        id,
				Justification: just,
				Confidence:    conf,
				Evidence:      fmt.Sprintf("%s match on %s", kind, v),
			})
		}
	}
	return dedupeByTerm(out)
}

// sharedRefs is the primary shared-reference pass: denylisted generic
// references are excluded here and only consulted by genericRefs.
func (g *Generator) sharedRefs(item domain.SourceItem) []Candidate {
	return g.refMatches(item, false, domain.JustSharedRef, ConfidenceSharedRef)
}

// genericRefs is the fallback pass over denylisted references, at reduced
// confidence, for items the primary pass left unmatched.
func (g *Generator) genericRefs(item domain.SourceItem) []Candidate {
	return g.refMatches(item, true, domain.JustSharedRef, ConfidenceGenericRef)
}

func (g *Generator) refMatches(item domain.SourceItem, wantGeneric bool, just domain.Justification, conf float64) []Candidate {
	var out []Candidate
	for _, ref := range item.ExternalRefs {
		if g.generic[normalize.Key(ref)] != wantGeneric {
			continue
		}
		evidence := fmt.Sprintf("shared reference %s", ref)
		if n := g.index.RefFanout(ref); n > 1 {
			evidence += fmt.Sprintf(" (shared by %d terms)", n)
		}
		if wantGeneric {
			evidence += " (generic fallback)"
		}
		for _, id := range g.index.ByRef(ref) {
			out = append(out, Candidate{
				SourceKey:     item.SourceKey,
				TermID:        id,
				Justification: just,
				Confidence:    conf,
				Evidence:      evidence,
			})
		}
	}
	return dedupeByTerm(out)
}

// dedupeByTerm keeps one candidate per term within a single strategy;
// cross-strategy duplicates are resolved by the global deduplicator.
func dedupeByTerm(cands []Candidate) []Candidate {
	return fn.UniqueBy(cands, func(c Candidate) string { return c.TermID })
}
