package match

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/microbetraits/traitalign/engine/domain"
	"github.com/microbetraits/traitalign/engine/semantic"
	"github.com/microbetraits/traitalign/pkg/fn"
	"github.com/microbetraits/traitalign/pkg/resilience"
)

// Embedder produces a vector for a text.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Searcher is the k-NN term vector index; *semantic.Store satisfies it.
type Searcher interface {
	Search(ctx context.Context, embedding []float32, topN int) ([]semantic.Hit, error)
}

// EmbedOpts configures the embedding strategy.
type EmbedOpts struct {
	// TopN is the number of nearest neighbors retrieved per item.
	TopN int
	// Retry bounds attempts against the embedding service.
	Retry fn.RetryOpts
	// Breaker guards the embedding service; nil uses defaults.
	Breaker resilience.BreakerOpts
	// SearchRate paces vector index queries (calls per second); zero
	// disables pacing.
	SearchRate float64
}

// DefaultEmbedOpts returns sensible defaults.
func DefaultEmbedOpts() EmbedOpts {
	return EmbedOpts{
		TopN:    5,
		Retry:   fn.DefaultRetry,
		Breaker: resilience.DefaultBreakerOpts,
	}
}

// EmbedStrategy produces candidates from vector nearest-neighbor search.
// Failures are returned to the generator, which excludes this strategy
// for the affected item and lets the others run.
type EmbedStrategy struct {
	embedder Embedder
	searcher Searcher
	breaker  *resilience.Breaker
	limiter  *resilience.Limiter
	opts     EmbedOpts
	logger   *slog.Logger
}

// NewEmbedStrategy wires the embedding strategy.
func NewEmbedStrategy(e Embedder, s Searcher, opts EmbedOpts, logger *slog.Logger) *EmbedStrategy {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.TopN <= 0 {
		opts.TopN = DefaultEmbedOpts().TopN
	}
	if opts.Retry.MaxAttempts <= 0 {
		opts.Retry = fn.DefaultRetry
	}
	es := &EmbedStrategy{
		embedder: e,
		searcher: s,
		breaker:  resilience.NewBreaker(opts.Breaker),
		opts:     opts,
		logger:   logger,
	}
	if opts.SearchRate > 0 {
		es.limiter = resilience.NewLimiter(resilience.LimiterOpts{Rate: opts.SearchRate, Burst: 1})
	}
	return es
}

// Generate embeds the item's raw name and converts the nearest term
// vectors into candidates. Cosine distance never establishes hierarchy,
// so these candidates can only classify as exact/close/related.
func (e *EmbedStrategy) Generate(ctx context.Context, item domain.SourceItem) ([]Candidate, error) {
	vecResult := fn.Retry(ctx, e.opts.Retry, func(ctx context.Context) fn.Result[[]float32] {
		return resilience.CallResult(e.breaker, ctx, func(ctx context.Context) fn.Result[[]float32] {
			return fn.FromPair(e.embedder.Embed(ctx, item.RawName))
		})
	})
	vec, err := vecResult.Unwrap()
	if err != nil {
		return nil, fmt.Errorf("embed %q: %w", item.RawName, err)
	}

	if e.limiter != nil {
		if err := e.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}
	hits, err := e.searcher.Search(ctx, vec, e.opts.TopN)
	if err != nil {
		return nil, fmt.Errorf("vector search %q: %w", item.RawName, err)
	}

	out := make([]Candidate, 0, len(hits))
	for _, h := range hits {
		dist := 1 - float64(h.Score)
		if dist < 0 {
			dist = 0
		}
		out = append(out, Candidate{
			SourceKey:     item.SourceKey,
			TermID:        h.TermID,
			Justification: domain.JustEmbedding,
			Confidence:    domain.ClampConfidence(1 - dist/2),
			Distance:      dist,
			Evidence:      fmt.Sprintf("cosine distance %.4f", dist),
		})
	}
	return out, nil
}
