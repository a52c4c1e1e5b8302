// Package domain defines the core types, enums, and validation for the
// trait-alignment pipeline. It acts as the validation gate at pipeline
// entry points: source rows are checked here before any strategy runs.
package domain

import "strings"

// Predicate is a SKOS mapping predicate tier expressing the semantic
// strength of a claimed correspondence between two terms.
type Predicate string

const (
	PredicateExact   Predicate = "skos:exactMatch"
	PredicateClose   Predicate = "skos:closeMatch"
	PredicateRelated Predicate = "skos:relatedMatch"
	PredicateBroad   Predicate = "skos:broadMatch"
	PredicateNarrow  Predicate = "skos:narrowMatch"
)

// ValidPredicates is the set of recognised mapping predicates.
var ValidPredicates = map[Predicate]bool{
	PredicateExact: true, PredicateClose: true, PredicateRelated: true,
	PredicateBroad: true, PredicateNarrow: true,
}

// Justification identifies which matching strategy produced a record.
type Justification string

const (
	JustLexical   Justification = "lexical"
	JustSynonym   Justification = "synonym"
	JustSharedRef Justification = "shared-reference"
	JustFuzzy     Justification = "fuzzy"
	JustEmbedding Justification = "embedding"
	JustChained   Justification = "chained"
)

// ValidJustifications is the set of recognised justifications.
var ValidJustifications = map[Justification]bool{
	JustLexical: true, JustSynonym: true, JustSharedRef: true,
	JustFuzzy: true, JustEmbedding: true, JustChained: true,
}

// Priority ranks justifications for dedup tie-breaking when two records
// for the same (subject, object) pair carry equal confidence.
func (j Justification) Priority() int {
	switch j {
	case JustLexical:
		return 5
	case JustSynonym:
		return 4
	case JustSharedRef:
		return 3
	case JustEmbedding:
		return 2
	case JustFuzzy:
		return 1
	default:
		return 0
	}
}

// Term is a canonical vocabulary entry. Immutable once loaded; owned by
// the read-only term index built once per run.
type Term struct {
	ID           string   `json:"id"`
	Label        string   `json:"label"`
	Synonyms     []string `json:"synonyms,omitempty"`
	ParentRefs   []string `json:"parent_refs,omitempty"`
	ExternalRefs []string `json:"external_refs,omitempty"`
}

// SourceItem is an external, unresolved trait/field representation.
type SourceItem struct {
	SourceKey    string   `json:"source_key"`
	RawName      string   `json:"raw_name"`
	ExternalRefs []string `json:"external_refs,omitempty"`

	// Composed fields are populated when RawName follows the
	// "<category>: <qualifier>" pattern.
	IsComposed     bool   `json:"is_composed,omitempty"`
	BaseCategory   string `json:"base_category,omitempty"`
	QualifierLabel string `json:"qualifier_label,omitempty"`
}

// ComposedSeparator joins the category and qualifier of a composed trait.
const ComposedSeparator = ": "

// SplitComposed splits a raw name on the first ": " occurrence. Names
// without the separator are base (non-composed) items. Nested qualifiers
// beyond the first separator are not handled; the qualifier side keeps
// any further separators verbatim.
func SplitComposed(name string) (base, qualifier string, ok bool) {
	base, qualifier, ok = strings.Cut(name, ComposedSeparator)
	if !ok || base == "" || qualifier == "" {
		return "", "", false
	}
	return base, qualifier, true
}

// WithComposed returns a copy of the item with the composed fields filled
// in from its raw name, when the name carries the separator.
func (s SourceItem) WithComposed() SourceItem {
	if base, qual, ok := SplitComposed(s.RawName); ok {
		s.IsComposed = true
		s.BaseCategory = base
		s.QualifierLabel = qual
	}
	return s
}

// MappingRecord is the terminal artifact of the pipeline: one
// confidence-scored, provenance-tagged correspondence claim.
type MappingRecord struct {
	SubjectID     string        `json:"subject_id"`
	SubjectLabel  string        `json:"subject_label"`
	Predicate     Predicate     `json:"predicate_id"`
	ObjectID      string        `json:"object_id"`
	ObjectLabel   string        `json:"object_label"`
	Justification Justification `json:"mapping_justification"`
	Confidence    float64       `json:"confidence"`
	Comment       string        `json:"comment,omitempty"`
}

// PropertyRef identifies a knowledge-graph property by id and label.
type PropertyRef struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

// PropertyPair holds the positive and negative assertion properties for a
// trait category. Either side may be absent in the catalog.
type PropertyPair struct {
	Positive *PropertyRef `json:"positive,omitempty"`
	Negative *PropertyRef `json:"negative,omitempty"`
}

// EdgeTemplate is the downstream-facing record for a resolved composed
// trait: the property pair to assert or deny the trait, plus the chemical
// substrate. The subject is left blank for later binding to a specific
// organism or sample.
type EdgeTemplate struct {
	SourceCardID      string      `json:"source_card_id"`
	TraitName         string      `json:"trait_name"`
	PredicatePositive PropertyRef `json:"predicate_positive"`
	PredicateNegative PropertyRef `json:"predicate_negative"`
	Object            PropertyRef `json:"object"`
}

// ResolutionStatus describes the outcome of resolving a composed trait.
// Blocking reasons are reported explicitly so downstream consumers can
// filter on them; they are never swallowed.
type ResolutionStatus string

const (
	StatusResolved          ResolutionStatus = "resolved"
	StatusResolvedWithNotes ResolutionStatus = "resolved_with_notes"
	StatusMissingPositive   ResolutionStatus = "missing_positive_predicate"
	StatusMissingNegative   ResolutionStatus = "missing_negative_predicate"
	StatusMissingChebi      ResolutionStatus = "missing_chebi"
	StatusMissingProcess    ResolutionStatus = "missing_process_term"
)
