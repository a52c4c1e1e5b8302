// Package normalize canonicalizes raw trait strings into comparable match
// keys. Source data is punctuation-inconsistent, so normalization yields a
// set of acceptable keys rather than a single form: the set is the closure
// of the cleaned string under a fixed list of rewrite rules, which makes
// Variants idempotent (re-normalizing any member adds nothing).
package normalize

import (
	"regexp"
	"sort"
	"strings"
)

var (
	wsRun    = regexp.MustCompile(`\s+`)
	digitSep = regexp.MustCompile(`([0-9])_([0-9])`)
	spacedOp = regexp.MustCompile(`([<>]) =`)
)

// maxVariants bounds the closure for pathological inputs.
const maxVariants = 32

// Clean trims and collapses internal whitespace to single spaces. Case is
// preserved so the result is usable for display.
func Clean(s string) string {
	return wsRun.ReplaceAllString(strings.TrimSpace(s), " ")
}

// Key returns the primary comparison form: cleaned and lowercased.
func Key(s string) string {
	return strings.ToLower(Clean(s))
}

// Variants returns the sorted set of acceptable match keys for s. Any one
// of them matching a term key counts as a hit. The rules cover the
// inconsistencies observed across providers: underscore/period swaps
// between digits (GC_42_65 vs GC_42.65), spaced comparison operators
// ("< =" vs "<="), hyphen vs underscore, and "category_value" one-hot
// field names that stand for the bare value or a "value shaped" phrase.
func Variants(s string) []string {
	seen := map[string]bool{}
	queue := []string{Key(s)}

	for len(queue) > 0 && len(seen) < maxVariants {
		v := queue[0]
		queue = queue[1:]
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		for _, next := range rewrite(v) {
			if !seen[next] {
				queue = append(queue, next)
			}
		}
	}

	out := make([]string, 0, len(seen))
	for v := range seen {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

// rewrite produces the one-step successors of a key. Canonicalizing rules
// rewrite in place; decomposition rules add strictly shorter strings, so
// the closure terminates.
func rewrite(v string) []string {
	var out []string

	if w := digitSep.ReplaceAllString(v, "$1.$2"); w != v {
		out = append(out, w)
	}
	if w := spacedOp.ReplaceAllString(v, "$1="); w != v {
		out = append(out, w)
	}
	if w := strings.ReplaceAll(v, "-", "_"); w != v {
		out = append(out, w)
	}
	if w := strings.ReplaceAll(v, "_", " "); w != v {
		out = append(out, w)
	}

	// "value shaped" / "value_shaped" stand for the bare value.
	for _, suffix := range []string{" shaped", "_shaped"} {
		if base := strings.TrimSuffix(v, suffix); base != v && base != "" {
			out = append(out, base)
		}
	}

	// One-hot field names: "cell_shape_coccus" also matches "coccus" and
	// "shape coccus" (everything after the category prefix).
	if parts := strings.Split(v, "_"); len(parts) > 1 {
		if last := parts[len(parts)-1]; last != "" {
			out = append(out, last)
		}
		if rest := strings.Join(parts[1:], " "); rest != "" && rest != v {
			out = append(out, rest)
		}
	}

	return out
}

// MatchesKey reports whether any variant of a equals any variant of b.
func MatchesKey(a, b string) bool {
	bv := Variants(b)
	set := make(map[string]bool, len(bv))
	for _, v := range bv {
		set[v] = true
	}
	for _, v := range Variants(a) {
		if set[v] {
			return true
		}
	}
	return false
}
