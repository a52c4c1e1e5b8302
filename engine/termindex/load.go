package termindex

import (
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/microbetraits/traitalign/engine/domain"
)

// Columns names the vocabulary TSV columns. The header row carries the
// human-readable names; the second row is a machine directive row and is
// skipped entirely.
type Columns struct {
	ID         string
	Label      string
	Parents    string
	Synonyms   string
	DefSources string
}

// DefaultColumns matches the vocabulary export convention.
func DefaultColumns() Columns {
	return Columns{
		ID:         "ID",
		Label:      "Label",
		Parents:    "Parent class",
		Synonyms:   "Synonyms",
		DefSources: "Definition source",
	}
}

// LoadTSV reads the vocabulary table: two header rows, then one term per
// row. Pipe-delimited list cells are split; rows missing required fields
// are skipped with a logged reason.
func LoadTSV(r io.Reader, cols Columns, logger *slog.Logger) ([]domain.Term, error) {
	if logger == nil {
		logger = slog.Default()
	}
	cr := csv.NewReader(r)
	cr.Comma = '\t'
	cr.LazyQuotes = true
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("termindex: read header: %w", err)
	}
	pos := headerPositions(header)

	idIdx, ok := pos[strings.ToLower(cols.ID)]
	if !ok {
		return nil, fmt.Errorf("termindex: header missing column %q", cols.ID)
	}
	labelIdx, ok := pos[strings.ToLower(cols.Label)]
	if !ok {
		return nil, fmt.Errorf("termindex: header missing column %q", cols.Label)
	}
	parentIdx := optional(pos, cols.Parents)
	synIdx := optional(pos, cols.Synonyms)
	defIdx := optional(pos, cols.DefSources)

	// Machine-directive row (ID / LABEL / SPLIT=| markers).
	if _, err := cr.Read(); err != nil {
		if err == io.EOF {
			return nil, nil
		}
		return nil, fmt.Errorf("termindex: read directive row: %w", err)
	}

	var terms []domain.Term
	line := 2
	for {
		row, err := cr.Read()
		line++
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("termindex: row %d: %w", line, err)
		}

		t := domain.Term{
			ID:           cell(row, idIdx),
			Label:        cell(row, labelIdx),
			ParentRefs:   splitList(cell(row, parentIdx), "|"),
			Synonyms:     splitList(cell(row, synIdx), "|"),
			ExternalRefs: splitList(cell(row, defIdx), "|"),
		}
		if err := domain.ValidateTerm(t); err != nil {
			logger.Warn("termindex: skipping row", "line", line, "reason", err)
			continue
		}
		terms = append(terms, t)
	}
	return terms, nil
}

func headerPositions(header []string) map[string]int {
	pos := make(map[string]int, len(header))
	for i, h := range header {
		pos[strings.ToLower(strings.TrimSpace(h))] = i
	}
	return pos
}

func optional(pos map[string]int, name string) int {
	if i, ok := pos[strings.ToLower(name)]; ok {
		return i
	}
	return -1
}

func cell(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

func splitList(s, sep string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, p := range strings.Split(s, sep) {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
