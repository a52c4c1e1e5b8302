package sssom

import (
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/microbetraits/traitalign/engine/dedupe"
	"github.com/microbetraits/traitalign/engine/domain"
	"github.com/microbetraits/traitalign/pkg/fn"
)

// mappingColumns is the fixed interchange column order.
var mappingColumns = []string{
	"subject_id",
	"subject_label",
	"predicate_id",
	"object_id",
	"object_label",
	"mapping_justification",
	"confidence",
	"comment",
}

// edgeColumns is the edge-template column order. The subject column is
// intentionally absent; downstream graph builders bind it per organism.
var edgeColumns = []string{
	"source_card_id",
	"trait_name",
	"predicate_positive_id",
	"predicate_positive_label",
	"predicate_negative_id",
	"predicate_negative_label",
	"object_id",
	"object_label",
}

// WriteMappings emits the metadata header followed by the mapping TSV,
// sorted by subject ascending then confidence descending. Every record
// passes through domain.ValidateMapping before it is written; an
// invalid record aborts the write. The input slice is not modified.
func WriteMappings(w io.Writer, meta Meta, records []domain.MappingRecord) error {
	for _, r := range records {
		if err := domain.ValidateMapping(r); err != nil {
			return fmt.Errorf("sssom: %w", err)
		}
	}
	if err := writeHeader(w, meta); err != nil {
		return err
	}

	sorted := make([]domain.MappingRecord, len(records))
	copy(sorted, records)
	dedupe.Sort(sorted)

	cw := csv.NewWriter(w)
	cw.Comma = '\t'
	if err := cw.Write(mappingColumns); err != nil {
		return fmt.Errorf("sssom: write header row: %w", err)
	}
	for _, r := range sorted {
		row := []string{
			r.SubjectID,
			r.SubjectLabel,
			string(r.Predicate),
			r.ObjectID,
			r.ObjectLabel,
			string(r.Justification),
			formatConfidence(r.Confidence),
			r.Comment,
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("sssom: write mapping %s -> %s: %w", r.SubjectID, r.ObjectID, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteEdgeTemplates emits the edge-template TSV sorted by source card
// id ascending.
func WriteEdgeTemplates(w io.Writer, edges []domain.EdgeTemplate) error {
	sorted := make([]domain.EdgeTemplate, len(edges))
	copy(sorted, edges)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].SourceCardID != sorted[j].SourceCardID {
			return sorted[i].SourceCardID < sorted[j].SourceCardID
		}
		return sorted[i].Object.ID < sorted[j].Object.ID
	})

	cw := csv.NewWriter(w)
	cw.Comma = '\t'
	if err := cw.Write(edgeColumns); err != nil {
		return fmt.Errorf("sssom: write edge header row: %w", err)
	}
	for _, e := range sorted {
		row := []string{
			e.SourceCardID,
			e.TraitName,
			e.PredicatePositive.ID,
			e.PredicatePositive.Label,
			e.PredicateNegative.ID,
			e.PredicateNegative.Label,
			e.Object.ID,
			e.Object.Label,
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("sssom: write edge %s: %w", e.SourceCardID, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteStatusLog emits the per-item status TSV, the parallel log that
// surfaces skips and blocking reasons alongside the mapping output.
func WriteStatusLog(w io.Writer, statuses []ItemStatus) error {
	sorted := make([]ItemStatus, len(statuses))
	copy(sorted, statuses)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].SourceKey < sorted[j].SourceKey
	})

	cw := csv.NewWriter(w)
	cw.Comma = '\t'
	if err := cw.Write([]string{"source_key", "outcome", "detail"}); err != nil {
		return fmt.Errorf("sssom: write status header row: %w", err)
	}
	for _, s := range sorted {
		if err := cw.Write([]string{s.SourceKey, s.Outcome, s.Detail}); err != nil {
			return fmt.Errorf("sssom: write status %s: %w", s.SourceKey, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// ItemStatus is one line of the parallel status log.
type ItemStatus struct {
	SourceKey string `json:"source_key"`
	Outcome   string `json:"outcome"`
	Detail    string `json:"detail,omitempty"`
}

// StatusDetail joins resolution statuses for the status log detail cell.
func StatusDetail(statuses []domain.ResolutionStatus) string {
	parts := fn.Map(statuses, func(s domain.ResolutionStatus) string { return string(s) })
	return strings.Join(parts, ";")
}

// formatConfidence keeps a stable short decimal form, free of trailing
// float noise, so diffs between runs stay readable.
func formatConfidence(c float64) string {
	return strconv.FormatFloat(c, 'f', -1, 64)
}
