package match

import (
	"github.com/microbetraits/traitalign/engine/domain"
	"github.com/microbetraits/traitalign/engine/normalize"
	"github.com/microbetraits/traitalign/engine/termindex"
)

// Embedding distance thresholds for predicate assignment. Lower distance
// always means an equal or more specific predicate.
const (
	EmbedExactMaxDistance = 0.10
	EmbedCloseMaxDistance = 0.35
)

// EmbedPredicate maps a cosine distance to a predicate tier. Embedding
// candidates never classify as broad/narrow: similarity carries no
// hierarchy information.
func EmbedPredicate(distance float64) domain.Predicate {
	switch {
	case distance < EmbedExactMaxDistance:
		return domain.PredicateExact
	case distance < EmbedCloseMaxDistance:
		return domain.PredicateClose
	default:
		return domain.PredicateRelated
	}
}

// Classify converts one raw candidate into a finished mapping record.
// Returns false when the candidate's term is not in the index.
func Classify(item domain.SourceItem, c Candidate, index *termindex.Index) (domain.MappingRecord, bool) {
	term, ok := index.Term(c.TermID)
	if !ok {
		return domain.MappingRecord{}, false
	}

	var pred domain.Predicate
	switch c.Justification {
	case domain.JustLexical:
		pred = domain.PredicateExact
	case domain.JustSynonym:
		pred = domain.PredicateClose
	case domain.JustSharedRef, domain.JustChained:
		// Sharing an external identifier is evidence of relatedness,
		// not identity.
		pred = domain.PredicateRelated
	case domain.JustFuzzy:
		pred = domain.PredicateClose
	case domain.JustEmbedding:
		pred = EmbedPredicate(c.Distance)
	default:
		return domain.MappingRecord{}, false
	}

	return domain.MappingRecord{
		SubjectID:     item.SourceKey,
		SubjectLabel:  normalize.Clean(item.RawName),
		Predicate:     pred,
		ObjectID:      term.ID,
		ObjectLabel:   term.Label,
		Justification: c.Justification,
		Confidence:    domain.ClampConfidence(c.Confidence),
		Comment:       c.Evidence,
	}, true
}

// ClassifyAll converts a candidate batch, dropping candidates whose term
// vanished from the index.
func ClassifyAll(item domain.SourceItem, cands []Candidate, index *termindex.Index) []domain.MappingRecord {
	out := make([]domain.MappingRecord, 0, len(cands))
	for _, c := range cands {
		if rec, ok := Classify(item, c, index); ok {
			out = append(out, rec)
		}
	}
	return out
}
