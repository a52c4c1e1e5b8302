package compose

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/microbetraits/traitalign/engine/domain"
	"github.com/microbetraits/traitalign/engine/match"
	"github.com/microbetraits/traitalign/engine/normalize"
	"github.com/microbetraits/traitalign/engine/termindex"
	"github.com/microbetraits/traitalign/pkg/fn"
)

// InheritedDiscount scales a category match when it is inherited from
// another composed item sharing the same base category.
const InheritedDiscount = 0.9

// Resolution is the full outcome for one composed item: any mapping
// records produced for the process side, the optional edge template, and
// the explicit status list downstream consumers filter on.
type Resolution struct {
	Item     domain.SourceItem
	Statuses []domain.ResolutionStatus
	Records  []domain.MappingRecord
	Edge     *domain.EdgeTemplate
	Pair     domain.PropertyPair
	// EmbedErr is set when the embedding strategy was unavailable for
	// the process side; the other strategies still contributed.
	EmbedErr error
}

// Resolved reports whether the item resolved, with or without notes.
func (r Resolution) Resolved() bool {
	for _, s := range r.Statuses {
		if s == domain.StatusResolved || s == domain.StatusResolvedWithNotes {
			return true
		}
	}
	return false
}

// Resolver decomposes composed traits and resolves each side. The
// category cache lets later items inherit an earlier item's process
// match, so a Resolver is stateful across one run and not safe for
// concurrent use.
type Resolver struct {
	gen    *match.Generator
	index  *termindex.Index
	table  *Table
	logger *slog.Logger

	// byCategory caches the best process record per normalized base
	// category, feeding the chained-inheritance fallback.
	byCategory map[string]domain.MappingRecord
}

// NewResolver wires a resolver over the shared generator, index, and
// property table.
func NewResolver(gen *match.Generator, index *termindex.Index, table *Table, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{
		gen:        gen,
		index:      index,
		table:      table,
		logger:     logger,
		byCategory: make(map[string]domain.MappingRecord),
	}
}

// PartitionRefs splits external references into chemical-compound
// identifiers and process references. Provider data conflates both in a
// single field; CHEBI CURIEs are the chemical side.
func PartitionRefs(refs []string) (process, substrate []string) {
	for _, ref := range refs {
		if strings.HasPrefix(strings.ToLower(strings.TrimSpace(ref)), "chebi:") {
			substrate = append(substrate, strings.TrimSpace(ref))
		} else {
			process = append(process, strings.TrimSpace(ref))
		}
	}
	return process, substrate
}

// Resolve handles one composed item. Items without the separator pattern
// are rejected; callers route them through the base pipeline instead.
func (r *Resolver) Resolve(ctx context.Context, item domain.SourceItem) (Resolution, error) {
	item = item.WithComposed()
	if !item.IsComposed {
		return Resolution{}, fmt.Errorf("compose: %q is not a composed trait", item.RawName)
	}

	processRefs, substrateRefs := PartitionRefs(item.ExternalRefs)
	res := Resolution{Item: item}

	res.Records, res.EmbedErr = r.resolveProcess(ctx, item, processRefs)

	pair, pairFound := r.table.Lookup(item.BaseCategory)
	res.Pair = pair

	var blockers []domain.ResolutionStatus
	if !pairFound || pair.Positive == nil {
		blockers = append(blockers, domain.StatusMissingPositive)
	}
	if !pairFound || pair.Negative == nil {
		blockers = append(blockers, domain.StatusMissingNegative)
	}
	if len(substrateRefs) == 0 {
		blockers = append(blockers, domain.StatusMissingChebi)
	}
	if len(res.Records) == 0 {
		blockers = append(blockers, domain.StatusMissingProcess)
	}

	switch {
	case len(blockers) == 0:
		res.Statuses = []domain.ResolutionStatus{domain.StatusResolved}
	case len(blockers) == 1 && blockers[0] == domain.StatusMissingProcess:
		// Property resolution succeeded; only the process term is
		// missing. Partial, usable downstream.
		res.Statuses = []domain.ResolutionStatus{domain.StatusResolvedWithNotes, domain.StatusMissingProcess}
	default:
		res.Statuses = blockers
	}

	// An edge template needs both property sides and a substrate; a
	// template with blank ids would masquerade as resolved downstream.
	if pairFound && pair.Positive != nil && pair.Negative != nil && len(substrateRefs) > 0 {
		res.Edge = &domain.EdgeTemplate{
			SourceCardID:      item.SourceKey,
			TraitName:         normalize.Clean(item.RawName),
			PredicatePositive: *pair.Positive,
			PredicateNegative: *pair.Negative,
			Object: domain.PropertyRef{
				ID:    substrateRefs[0],
				Label: normalize.Clean(item.QualifierLabel),
			},
		}
	}
	return res, nil
}

// resolveProcess aligns the category side against the vocabulary using
// the standard strategies, restricted to the process references. When no
// strategy fires, a match cached from another item of the same category
// is inherited at a discount with justification "chained".
func (r *Resolver) resolveProcess(ctx context.Context, item domain.SourceItem, processRefs []string) ([]domain.MappingRecord, error) {
	proxy := domain.SourceItem{
		SourceKey:    item.SourceKey,
		RawName:      item.BaseCategory,
		ExternalRefs: processRefs,
	}
	cands, embedErr := r.gen.Generate(ctx, proxy)
	records := match.ClassifyAll(proxy, cands, r.index)

	catKey := normalize.Key(item.BaseCategory)
	if len(records) == 0 {
		if src, ok := r.byCategory[catKey]; ok {
			return []domain.MappingRecord{r.inherit(proxy, src)}, embedErr
		}
		return nil, embedErr
	}

	if best, ok := fn.MaxBy(records, betterRecord); ok {
		if cur, exists := r.byCategory[catKey]; !exists || betterRecord(best, cur) {
			r.byCategory[catKey] = best
		}
	}
	return records, embedErr
}

// inherit clones a cached category match onto another item at reduced
// confidence, preserving where the evidence came from.
func (r *Resolver) inherit(item domain.SourceItem, src domain.MappingRecord) domain.MappingRecord {
	return domain.MappingRecord{
		SubjectID:     item.SourceKey,
		SubjectLabel:  normalize.Clean(item.RawName),
		Predicate:     domain.PredicateRelated,
		ObjectID:      src.ObjectID,
		ObjectLabel:   src.ObjectLabel,
		Justification: domain.JustChained,
		Confidence:    domain.ClampConfidence(src.Confidence * InheritedDiscount),
		Comment:       fmt.Sprintf("inherited from %s", src.SubjectID),
	}
}

// betterRecord orders records by confidence, then justification
// priority, then object id for determinism.
func betterRecord(a, b domain.MappingRecord) bool {
	if a.Confidence != b.Confidence {
		return a.Confidence > b.Confidence
	}
	if pa, pb := a.Justification.Priority(), b.Justification.Priority(); pa != pb {
		return pa > pb
	}
	return a.ObjectID < b.ObjectID
}
