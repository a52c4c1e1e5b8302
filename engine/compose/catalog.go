// Package compose resolves composed "category: qualifier" traits: the
// category side maps to a process term and an assert/deny property pair,
// the qualifier side carries the chemical substrate. Each side resolves
// independently and the outcome status is reported explicitly.
package compose

import (
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"regexp"
	"strings"

	"github.com/microbetraits/traitalign/engine/domain"
	"github.com/microbetraits/traitalign/engine/normalize"
)

// relatedSynonym extracts the category name a property row is annotated
// with, e.g. hasRelatedSynonym 'fermentation'.
var relatedSynonym = regexp.MustCompile(`hasRelatedSynonym\s+'([^']+)'`)

// PropertyRow is one property catalog entry before pairing.
type PropertyRow struct {
	ID       string
	Label    string
	Category string
	// Outcome is "+" for the asserting property, "-" for the denying one.
	Outcome string
}

// Table maps a normalized base category to its assert/deny property pair.
// Built once at run start, read-only afterwards.
type Table struct {
	pairs map[string]domain.PropertyPair
}

// NewTable pairs catalog rows by category. A category seen with outcome
// "+" fills the positive side, "-" the negative side; either may stay
// absent. Duplicate sides keep the first row and log the conflict. Each
// pair is indexed under every normalized variant of its category so that
// source spellings with different punctuation still resolve.
func NewTable(rows []PropertyRow, logger *slog.Logger) *Table {
	if logger == nil {
		logger = slog.Default()
	}
	byCategory := make(map[string]domain.PropertyPair)
	for _, row := range rows {
		key := normalize.Key(row.Category)
		if key == "" {
			continue
		}
		pair := byCategory[key]
		ref := &domain.PropertyRef{ID: row.ID, Label: row.Label}
		switch row.Outcome {
		case "+":
			if pair.Positive != nil {
				logger.Warn("compose: duplicate positive property for category",
					"category", row.Category, "kept", pair.Positive.ID, "dropped", row.ID)
				continue
			}
			pair.Positive = ref
		case "-":
			if pair.Negative != nil {
				logger.Warn("compose: duplicate negative property for category",
					"category", row.Category, "kept", pair.Negative.ID, "dropped", row.ID)
				continue
			}
			pair.Negative = ref
		default:
			logger.Warn("compose: property row with unknown outcome",
				"category", row.Category, "id", row.ID, "outcome", row.Outcome)
			continue
		}
		byCategory[key] = pair
	}

	pairs := make(map[string]domain.PropertyPair, len(byCategory))
	for key, pair := range byCategory {
		for _, v := range normalize.Variants(key) {
			pairs[v] = pair
		}
	}
	return &Table{pairs: pairs}
}

// Lookup returns the property pair for a base category string. Lookup is
// by normalized variant, so punctuation differences between the source
// name and the catalog annotation still match.
func (t *Table) Lookup(category string) (domain.PropertyPair, bool) {
	for _, v := range normalize.Variants(category) {
		if pair, ok := t.pairs[v]; ok {
			return pair, true
		}
	}
	return domain.PropertyPair{}, false
}

// Len reports the number of indexed category keys.
func (t *Table) Len() int { return len(t.pairs) }

// CatalogColumns names the property catalog TSV columns.
type CatalogColumns struct {
	ID       string
	Label    string
	Synonyms string
	Outcome  string
}

// DefaultCatalogColumns matches the property catalog export convention.
func DefaultCatalogColumns() CatalogColumns {
	return CatalogColumns{
		ID:       "ID",
		Label:    "Label",
		Synonyms: "Synonyms",
		Outcome:  "Outcome",
	}
}

// LoadCatalogTSV reads property rows from the catalog table: one header
// row, then one property per row. The category is extracted from the
// hasRelatedSynonym marker embedded in the synonym-annotation cell; rows
// without the marker or with missing required fields are skipped with a
// logged reason.
func LoadCatalogTSV(r io.Reader, cols CatalogColumns, logger *slog.Logger) ([]PropertyRow, error) {
	if logger == nil {
		logger = slog.Default()
	}
	cr := csv.NewReader(r)
	cr.Comma = '\t'
	cr.LazyQuotes = true
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("compose: read catalog header: %w", err)
	}
	pos := make(map[string]int, len(header))
	for i, h := range header {
		pos[strings.ToLower(strings.TrimSpace(h))] = i
	}
	required := func(name string) (int, error) {
		if i, ok := pos[strings.ToLower(name)]; ok {
			return i, nil
		}
		return -1, fmt.Errorf("compose: catalog header missing column %q", name)
	}
	idIdx, err := required(cols.ID)
	if err != nil {
		return nil, err
	}
	labelIdx, err := required(cols.Label)
	if err != nil {
		return nil, err
	}
	synIdx, err := required(cols.Synonyms)
	if err != nil {
		return nil, err
	}
	outIdx, err := required(cols.Outcome)
	if err != nil {
		return nil, err
	}

	var rows []PropertyRow
	line := 1
	for {
		row, err := cr.Read()
		line++
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("compose: catalog row %d: %w", line, err)
		}

		cell := func(idx int) string {
			if idx < 0 || idx >= len(row) {
				return ""
			}
			return strings.TrimSpace(row[idx])
		}
		pr := PropertyRow{
			ID:      cell(idIdx),
			Label:   cell(labelIdx),
			Outcome: cell(outIdx),
		}
		if m := relatedSynonym.FindStringSubmatch(cell(synIdx)); m != nil {
			pr.Category = m[1]
		}
		switch {
		case pr.ID == "" || pr.Label == "":
			logger.Warn("compose: skipping catalog row", "line", line, "reason", "missing id or label")
			continue
		case pr.Category == "":
			logger.Warn("compose: skipping catalog row", "line", line, "reason", "no hasRelatedSynonym marker")
			continue
		}
		rows = append(rows, pr)
	}
	return rows, nil
}
