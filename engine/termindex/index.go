// Package termindex builds the read-only vocabulary index used by all
// matching strategies. The index is constructed once at run start and
// never written afterwards, so it is safe to share across goroutines.
package termindex

import (
	"sort"

	"github.com/microbetraits/traitalign/engine/domain"
	"github.com/microbetraits/traitalign/engine/normalize"
)

// LabelEntry pairs a normalized label key with the term that owns it.
// Used by the fuzzy strategy, which scans all keys.
type LabelEntry struct {
	Key    string
	TermID string
}

// Index holds the vocabulary lookup tables, keyed by normalized variants.
type Index struct {
	terms     map[string]domain.Term
	byLabel   map[string][]string
	bySynonym map[string][]string
	byRef     map[string][]string
	labels    []LabelEntry
}

// New builds an Index from loaded terms. Terms failing validation are
// dropped; the caller is expected to have logged them at load time.
func New(terms []domain.Term) *Index {
	x := &Index{
		terms:     make(map[string]domain.Term, len(terms)),
		byLabel:   make(map[string][]string),
		bySynonym: make(map[string][]string),
		byRef:     make(map[string][]string),
	}
	for _, t := range terms {
		if domain.ValidateTerm(t) != nil {
			continue
		}
		x.terms[t.ID] = t
		for _, v := range normalize.Variants(t.Label) {
			x.byLabel[v] = appendUnique(x.byLabel[v], t.ID)
		}
		key := normalize.Key(t.Label)
		x.labels = append(x.labels, LabelEntry{Key: key, TermID: t.ID})
		for _, syn := range t.Synonyms {
			for _, v := range normalize.Variants(syn) {
				x.bySynonym[v] = appendUnique(x.bySynonym[v], t.ID)
			}
		}
		for _, ref := range t.ExternalRefs {
			k := normalize.Key(ref)
			x.byRef[k] = appendUnique(x.byRef[k], t.ID)
		}
	}
	sort.Slice(x.labels, func(i, j int) bool {
		if x.labels[i].Key != x.labels[j].Key {
			return x.labels[i].Key < x.labels[j].Key
		}
		return x.labels[i].TermID < x.labels[j].TermID
	})
	return x
}

// Term returns the term with the given id.
func (x *Index) Term(id string) (domain.Term, bool) {
	t, ok := x.terms[id]
	return t, ok
}

// Len returns the number of indexed terms.
func (x *Index) Len() int { return len(x.terms) }

// ByLabel returns term ids whose label has the given normalized key.
func (x *Index) ByLabel(key string) []string { return x.byLabel[key] }

// BySynonym returns term ids with a synonym matching the key.
func (x *Index) BySynonym(key string) []string { return x.bySynonym[key] }

// ByRef returns term ids carrying the given external reference CURIE.
func (x *Index) ByRef(curie string) []string {
	return x.byRef[normalize.Key(curie)]
}

// RefFanout returns how many terms share the given external reference.
func (x *Index) RefFanout(curie string) int {
	return len(x.byRef[normalize.Key(curie)])
}

// Labels returns all primary label keys, sorted, for full scans.
func (x *Index) Labels() []LabelEntry { return x.labels }

// Terms returns all terms sorted by id. Used by the vector bootstrap.
func (x *Index) Terms() []domain.Term {
	out := make([]domain.Term, 0, len(x.terms))
	for _, t := range x.terms {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// ParentLabels resolves a term's parent references to labels, skipping
// parents not present in the vocabulary.
func (x *Index) ParentLabels(t domain.Term) []string {
	var out []string
	for _, ref := range t.ParentRefs {
		if p, ok := x.terms[ref]; ok {
			out = append(out, p.Label)
			continue
		}
		// Parent columns sometimes hold labels instead of ids.
		for _, id := range x.ByLabel(normalize.Key(ref)) {
			if p, ok := x.terms[id]; ok {
				out = append(out, p.Label)
			}
		}
	}
	return out
}

func appendUnique(ids []string, id string) []string {
	for _, v := range ids {
		if v == id {
			return ids
		}
	}
	return append(ids, id)
}
