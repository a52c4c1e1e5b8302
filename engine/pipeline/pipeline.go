// Package pipeline orchestrates a full alignment run: source items
// stream through validation, composed-term routing, candidate
// generation, classification, and the global reduction, with per-item
// failures logged and counted but never fatal to the batch.
package pipeline

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/microbetraits/traitalign/engine/compose"
	"github.com/microbetraits/traitalign/engine/dedupe"
	"github.com/microbetraits/traitalign/engine/domain"
	"github.com/microbetraits/traitalign/engine/match"
	"github.com/microbetraits/traitalign/engine/sssom"
	"github.com/microbetraits/traitalign/engine/termindex"
	"github.com/microbetraits/traitalign/pkg/fn"
	"github.com/microbetraits/traitalign/pkg/metrics"
)

// Status event subjects.
const (
	SubjectItemStatus = "traitalign.status"
	SubjectRunSummary = "traitalign.summary"
)

// Outcome labels for the status log.
const (
	OutcomeMapped   = "mapped"
	OutcomeResolved = "resolved"
	OutcomeBlocked  = "blocked"
	OutcomeNoMatch  = "no_match"
	OutcomeSkipped  = "skipped"
)

// EventSink receives per-item status events and the final run summary.
// A NATS-backed sink publishes them; a nil sink disables events.
type EventSink interface {
	ItemStatus(ctx context.Context, s sssom.ItemStatus)
	RunSummary(ctx context.Context, s Summary)
}

// Deps carries the read-only collaborators of one run. Index and the
// composer's table are built once before Run and never mutated after.
type Deps struct {
	Index     *termindex.Index
	Generator *match.Generator
	Composer  *compose.Resolver
	Logger    *slog.Logger
	Events    EventSink
	Metrics   *metrics.Registry
}

// Summary is the run-level accounting surfaced at the end of a batch.
type Summary struct {
	Items       int       `json:"items"`
	Mapped      int       `json:"mapped"`
	Composed    int       `json:"composed"`
	Resolved    int       `json:"resolved"`
	Blocked     int       `json:"blocked"`
	NoMatch     int       `json:"no_match"`
	Skipped     int       `json:"skipped"`
	Mappings    int       `json:"mappings"`
	Edges       int       `json:"edges"`
	EmbedErrors int       `json:"embed_errors"`
	DurationMS  int64     `json:"duration_ms"`
	Started     time.Time `json:"started"`
}

// Result bundles everything a run produces.
type Result struct {
	Mappings []domain.MappingRecord
	Edges    []domain.EdgeTemplate
	Statuses []sssom.ItemStatus
	Summary  Summary
}

// Run processes the batch sequentially. Malformed rows are skipped with
// a logged reason; composed items route through the resolver, base
// items through the generator directly. The final mapping set is the
// global reduction over everything that succeeded, so partial results
// survive individual failures.
func Run(ctx context.Context, deps Deps, items []domain.SourceItem) (Result, error) {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	var (
		processed *metrics.Counter
		skipped   *metrics.Counter
		emitted   *metrics.Counter
		embedErrs *metrics.Counter
		itemTime  *metrics.Histogram
	)
	if deps.Metrics != nil {
		processed = deps.Metrics.Counter("traitalign_items_processed_total", "Source items processed")
		skipped = deps.Metrics.Counter("traitalign_items_skipped_total", "Source items skipped as malformed")
		emitted = deps.Metrics.Counter("traitalign_mappings_emitted_total", "Mapping records emitted before reduction")
		embedErrs = deps.Metrics.Counter("traitalign_embed_errors_total", "Items whose embedding lookup failed")
		itemTime = deps.Metrics.Histogram("traitalign_item_seconds", "Per-item processing time",
			[]float64{0.005, 0.025, 0.1, 0.5, 2.5, 10})
	}

	res := Result{Summary: Summary{Started: time.Now()}}
	var raw []domain.MappingRecord

	itemStage := fn.Then(
		fn.MapStage(domain.SourceItem.WithComposed),
		fn.TracedStage("pipeline.item",
			func(ctx context.Context, item domain.SourceItem) fn.Result[sssom.ItemStatus] {
				return fn.Ok(processItem(ctx, deps, logger, item, &res, &raw))
			}))

	for _, item := range items {
		if err := ctx.Err(); err != nil {
			// Stop issuing further work; keep what already processed.
			logger.Warn("pipeline: run cancelled", "after_items", res.Summary.Items, "error", err)
			break
		}
		res.Summary.Items++
		start := time.Now()

		status := itemStage(ctx, item).UnwrapOr(
			sssom.ItemStatus{SourceKey: item.SourceKey, Outcome: OutcomeSkipped})
		res.Statuses = append(res.Statuses, status)
		if deps.Events != nil {
			deps.Events.ItemStatus(ctx, status)
		}

		if processed != nil {
			processed.Inc()
			itemTime.Since(start)
			if status.Outcome == OutcomeSkipped {
				skipped.Inc()
			}
		}
	}

	res.Mappings = dedupe.Reduce(raw)
	res.Summary.Mappings = len(res.Mappings)
	res.Summary.Edges = len(res.Edges)
	res.Summary.DurationMS = time.Since(res.Summary.Started).Milliseconds()
	if emitted != nil {
		emitted.Add(int64(len(raw)))
		embedErrs.Add(int64(res.Summary.EmbedErrors))
		byJust := fn.GroupBy(raw, func(r domain.MappingRecord) domain.Justification {
			return r.Justification
		})
		for j, group := range byJust {
			deps.Metrics.Counter(
				metrics.WithLabels("traitalign_candidates_total", "justification", string(j)),
				"Classified candidates per strategy",
			).Add(int64(len(group)))
		}
	}

	logger.Info("pipeline: run complete",
		"items", res.Summary.Items,
		"mapped", res.Summary.Mapped,
		"resolved", res.Summary.Resolved,
		"blocked", res.Summary.Blocked,
		"no_match", res.Summary.NoMatch,
		"skipped", res.Summary.Skipped,
		"embed_errors", res.Summary.EmbedErrors,
		"mappings", res.Summary.Mappings,
		"edges", res.Summary.Edges,
	)
	if deps.Events != nil {
		deps.Events.RunSummary(ctx, res.Summary)
	}
	return res, nil
}

// processItem handles one item, already run through WithComposed, and
// returns its status line. Mutates the run accumulators in place.
func processItem(ctx context.Context, deps Deps, logger *slog.Logger, item domain.SourceItem, res *Result, raw *[]domain.MappingRecord) sssom.ItemStatus {
	if err := domain.ValidateSourceItem(item); err != nil {
		logger.Warn("pipeline: skipping malformed row", "source_key", item.SourceKey, "reason", err)
		res.Summary.Skipped++
		return sssom.ItemStatus{SourceKey: item.SourceKey, Outcome: OutcomeSkipped, Detail: err.Error()}
	}

	if item.IsComposed && deps.Composer != nil {
		res.Summary.Composed++
		return processComposed(ctx, deps, logger, item, res, raw)
	}

	cands, embedErr := deps.Generator.Generate(ctx, item)
	records := match.ClassifyAll(item, cands, deps.Index)
	detail := embedDetail(res, embedErr)
	if len(records) == 0 {
		res.Summary.NoMatch++
		return sssom.ItemStatus{SourceKey: item.SourceKey, Outcome: OutcomeNoMatch, Detail: detail}
	}
	*raw = append(*raw, records...)
	res.Summary.Mapped++
	return sssom.ItemStatus{SourceKey: item.SourceKey, Outcome: OutcomeMapped, Detail: detail}
}

func processComposed(ctx context.Context, deps Deps, logger *slog.Logger, item domain.SourceItem, res *Result, raw *[]domain.MappingRecord) sssom.ItemStatus {
	r, err := deps.Composer.Resolve(ctx, item)
	if err != nil {
		logger.Warn("pipeline: composed resolution failed", "source_key", item.SourceKey, "error", err)
		res.Summary.Skipped++
		return sssom.ItemStatus{SourceKey: item.SourceKey, Outcome: OutcomeSkipped, Detail: err.Error()}
	}

	*raw = append(*raw, r.Records...)
	if r.Edge != nil {
		res.Edges = append(res.Edges, *r.Edge)
	}

	detail := joinDetail(sssom.StatusDetail(r.Statuses), embedDetail(res, r.EmbedErr))
	if r.Resolved() {
		res.Summary.Resolved++
		return sssom.ItemStatus{SourceKey: item.SourceKey, Outcome: OutcomeResolved, Detail: detail}
	}
	res.Summary.Blocked++
	return sssom.ItemStatus{SourceKey: item.SourceKey, Outcome: OutcomeBlocked, Detail: detail}
}

// embedDetail counts an embedding-strategy failure and renders its
// status-log fragment. Failures never change the item outcome: the other
// strategies still contributed, but they must stay visible per item.
func embedDetail(res *Result, embedErr error) string {
	if embedErr == nil {
		return ""
	}
	res.Summary.EmbedErrors++
	return "embedding_error: " + embedErr.Error()
}

func joinDetail(parts ...string) string {
	return strings.Join(fn.Filter(parts, func(p string) bool { return p != "" }), ";")
}
