package match

import (
	"fmt"
	"math"
	"sort"

	"github.com/agnivade/levenshtein"
	"github.com/microbetraits/traitalign/engine/domain"
	"github.com/microbetraits/traitalign/engine/normalize"
)

// Ratio is the edit-distance similarity of two strings on a 0-100 scale.
func Ratio(a, b string) int {
	if a == b {
		return 100
	}
	if a == "" || b == "" {
		return 0
	}
	la := len([]rune(a))
	lb := len([]rune(b))
	max := la
	if lb > max {
		max = lb
	}
	dist := levenshtein.ComputeDistance(a, b)
	return int(math.Round(100 * (1 - float64(dist)/float64(max))))
}

// fuzzy scans all term label keys and keeps the top-K candidates at or
// above the similarity threshold.
func (g *Generator) fuzzy(item domain.SourceItem) []Candidate {
	key := normalize.Key(item.RawName)

	best := make(map[string]int)
	for _, le := range g.index.Labels() {
		r := Ratio(key, le.Key)
		if r < g.opts.FuzzyThreshold {
			continue
		}
		if r > best[le.TermID] {
			best[le.TermID] = r
		}
	}
	if len(best) == 0 {
		return nil
	}

	ids := make([]string, 0, len(best))
	for id := range best {
		ids = append(ids, id)
	}
	// Highest ratio first; id order makes ties deterministic.
	sort.Slice(ids, func(i, j int) bool {
		if best[ids[i]] != best[ids[j]] {
			return best[ids[i]] > best[ids[j]]
		}
		return ids[i] < ids[j]
	})
	if len(ids) > g.opts.FuzzyTopK {
		ids = ids[:g.opts.FuzzyTopK]
	}

	out := make([]Candidate, len(ids))
	for i, id := range ids {
		out[i] = Candidate{
			SourceKey:     item.SourceKey,
			TermID:        id,
			Justification: domain.JustFuzzy,
			Confidence:    float64(best[id]) / 100,
			Evidence:      fmt.Sprintf("similarity %d/100", best[id]),
		}
	}
	return out
}
