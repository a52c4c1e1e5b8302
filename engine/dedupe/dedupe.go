// Package dedupe reconciles the fan-out of the matching strategies: all
// records for the same (subject, object) pair collapse into the single
// strongest claim. The reduction is order-independent, so callers may
// produce records from parallel strategies without coordinating.
package dedupe

import (
	"sort"

	"github.com/microbetraits/traitalign/engine/domain"
	"github.com/microbetraits/traitalign/pkg/fn"
)

type pairKey struct {
	subject string
	object  string
}

// Reduce keeps the highest-confidence record per (subject, object) pair.
// Equal confidence breaks on justification priority, then predicate and
// comment for full determinism. Output is sorted by subject ascending,
// then confidence descending, then object ascending.
func Reduce(records []domain.MappingRecord) []domain.MappingRecord {
	groups := fn.GroupBy(records, func(r domain.MappingRecord) pairKey {
		return pairKey{subject: r.SubjectID, object: r.ObjectID}
	})

	out := make([]domain.MappingRecord, 0, len(groups))
	for _, group := range groups {
		if best, ok := fn.MaxBy(group, stronger); ok {
			out = append(out, best)
		}
	}
	Sort(out)
	return out
}

// Sort orders records by subject ascending, then confidence descending,
// then object ascending. This is the interchange file order.
func Sort(records []domain.MappingRecord) {
	sort.SliceStable(records, func(i, j int) bool {
		a, b := records[i], records[j]
		if a.SubjectID != b.SubjectID {
			return a.SubjectID < b.SubjectID
		}
		if a.Confidence != b.Confidence {
			return a.Confidence > b.Confidence
		}
		return a.ObjectID < b.ObjectID
	})
}

// stronger reports whether a beats b for the same pair. Every clause is a
// total order over distinct records, so the winner does not depend on
// input order.
func stronger(a, b domain.MappingRecord) bool {
	if a.Confidence != b.Confidence {
		return a.Confidence > b.Confidence
	}
	if pa, pb := a.Justification.Priority(), b.Justification.Priority(); pa != pb {
		return pa > pb
	}
	if a.Predicate != b.Predicate {
		return a.Predicate < b.Predicate
	}
	return a.Comment < b.Comment
}
