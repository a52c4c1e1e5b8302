package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Validation sentinels. Malformed-input rows are skipped with a logged
// reason; they are never fatal to a run.
var (
	ErrMissingSourceKey = errors.New("missing source_key")
	ErrMissingName      = errors.New("missing name")
	ErrMissingTermID    = errors.New("missing term id")
	ErrMissingLabel     = errors.New("missing label")
)

// ValidateSourceItem checks that a source row carries the required fields.
func ValidateSourceItem(s SourceItem) error {
	if strings.TrimSpace(s.SourceKey) == "" {
		return fmt.Errorf("source item: %w", ErrMissingSourceKey)
	}
	if strings.TrimSpace(s.RawName) == "" {
		return fmt.Errorf("source item %s: %w", s.SourceKey, ErrMissingName)
	}
	return nil
}

// ValidateTerm checks that a vocabulary row carries the required fields.
func ValidateTerm(t Term) error {
	if strings.TrimSpace(t.ID) == "" {
		return fmt.Errorf("term: %w", ErrMissingTermID)
	}
	if strings.TrimSpace(t.Label) == "" {
		return fmt.Errorf("term %s: %w", t.ID, ErrMissingLabel)
	}
	return nil
}

// ValidateMapping checks enum membership and the confidence range of a
// finished record. Used by tests and the output writer as a last gate.
func ValidateMapping(m MappingRecord) error {
	if !ValidPredicates[m.Predicate] {
		return fmt.Errorf("mapping %s->%s: unknown predicate %q", m.SubjectID, m.ObjectID, m.Predicate)
	}
	if !ValidJustifications[m.Justification] {
		return fmt.Errorf("mapping %s->%s: unknown justification %q", m.SubjectID, m.ObjectID, m.Justification)
	}
	if m.Confidence < 0 || m.Confidence > 1 {
		return fmt.Errorf("mapping %s->%s: confidence %v out of range", m.SubjectID, m.ObjectID, m.Confidence)
	}
	return nil
}

// ClampConfidence bounds a raw score to [0, 1].
func ClampConfidence(c float64) float64 {
	if c < 0 {
		return 0
	}
	if c > 1 {
		return 1
	}
	return c
}
