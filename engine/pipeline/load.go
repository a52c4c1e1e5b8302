package pipeline

import (
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/microbetraits/traitalign/engine/domain"
)

// SourceColumns names the source item TSV columns.
type SourceColumns struct {
	SourceKey    string
	Name         string
	ExternalRefs string
}

// DefaultSourceColumns matches the provider export convention.
func DefaultSourceColumns() SourceColumns {
	return SourceColumns{
		SourceKey:    "source_key",
		Name:         "name",
		ExternalRefs: "external_refs",
	}
}

// LoadSourceTSV reads source items: one header row, one item per row,
// external references semicolon-delimited. Rows missing required fields
// are skipped with a logged reason, never fatal.
func LoadSourceTSV(r io.Reader, cols SourceColumns, logger *slog.Logger) ([]domain.SourceItem, error) {
	if logger == nil {
		logger = slog.Default()
	}
	cr := csv.NewReader(r)
	cr.Comma = '\t'
	cr.LazyQuotes = true
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("pipeline: read source header: %w", err)
	}
	pos := make(map[string]int, len(header))
	for i, h := range header {
		pos[strings.ToLower(strings.TrimSpace(h))] = i
	}
	keyIdx, ok := pos[strings.ToLower(cols.SourceKey)]
	if !ok {
		return nil, fmt.Errorf("pipeline: source header missing column %q", cols.SourceKey)
	}
	nameIdx, ok := pos[strings.ToLower(cols.Name)]
	if !ok {
		return nil, fmt.Errorf("pipeline: source header missing column %q", cols.Name)
	}
	refsIdx := -1
	if i, ok := pos[strings.ToLower(cols.ExternalRefs)]; ok {
		refsIdx = i
	}

	var items []domain.SourceItem
	line := 1
	for {
		row, err := cr.Read()
		line++
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("pipeline: source row %d: %w", line, err)
		}

		cell := func(idx int) string {
			if idx < 0 || idx >= len(row) {
				return ""
			}
			return strings.TrimSpace(row[idx])
		}
		item := domain.SourceItem{
			SourceKey: cell(keyIdx),
			RawName:   cell(nameIdx),
		}
		for _, ref := range strings.Split(cell(refsIdx), ";") {
			if ref = strings.TrimSpace(ref); ref != "" {
				item.ExternalRefs = append(item.ExternalRefs, ref)
			}
		}
		if err := domain.ValidateSourceItem(item); err != nil {
			logger.Warn("pipeline: skipping source row", "line", line, "reason", err)
			continue
		}
		items = append(items, item.WithComposed())
	}
	return items, nil
}
