package sssom

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/microbetraits/traitalign/engine/domain"
)

func testMeta() Meta {
	return Meta{
		MappingSetID:  "https://example.org/traitalign/mappings",
		License:       "https://creativecommons.org/licenses/by/4.0/",
		MappingDate:   "2026-08-31",
		SubjectSource: "provider-traits",
		ObjectSource:  "micro-vocabulary",
	}
}

func testRecords() []domain.MappingRecord {
	return []domain.MappingRecord{
		{
			SubjectID: "src:2", SubjectLabel: "gram positive",
			Predicate: domain.PredicateClose,
			ObjectID:  "MICRO:0002", ObjectLabel: "gram-positive",
			Justification: domain.JustSynonym, Confidence: 0.95,
		},
		{
			SubjectID: "src:1", SubjectLabel: "thermophilic",
			Predicate: domain.PredicateExact,
			ObjectID:  "MICRO:0001", ObjectLabel: "thermophilic",
			Justification: domain.JustLexical, Confidence: 1,
			Comment: "label match on thermophilic",
		},
		{
			SubjectID: "src:1", SubjectLabel: "thermophilic",
			Predicate: domain.PredicateRelated,
			ObjectID:  "MICRO:0009", ObjectLabel: "heat response",
			Justification: domain.JustSharedRef, Confidence: 0.85,
		},
	}
}

func TestWriteMappings(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteMappings(&buf, testMeta(), testRecords()); err != nil {
		t.Fatalf("WriteMappings: %v", err)
	}
	out := buf.String()

	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	var header, body []string
	for _, l := range lines {
		if strings.HasPrefix(l, "# ") {
			header = append(header, l)
		} else {
			body = append(body, l)
		}
	}

	if len(header) == 0 || !strings.Contains(header[0], "mapping_set_id") {
		t.Fatalf("header block = %v", header)
	}
	for _, l := range header {
		if !strings.Contains(out, l+"\n") {
			t.Fatalf("header line lost: %q", l)
		}
	}

	if body[0] != strings.Join([]string{
		"subject_id", "subject_label", "predicate_id", "object_id",
		"object_label", "mapping_justification", "confidence", "comment",
	}, "\t") {
		t.Fatalf("column row = %q", body[0])
	}

	// subject ascending, then confidence descending
	if !strings.HasPrefix(body[1], "src:1\tthermophilic\tskos:exactMatch\tMICRO:0001") {
		t.Fatalf("row 1 = %q", body[1])
	}
	if !strings.HasPrefix(body[2], "src:1\tthermophilic\tskos:relatedMatch\tMICRO:0009") {
		t.Fatalf("row 2 = %q", body[2])
	}
	if !strings.HasPrefix(body[3], "src:2\t") {
		t.Fatalf("row 3 = %q", body[3])
	}
	if !strings.Contains(body[1], "\t1\t") {
		t.Fatalf("confidence formatting in %q", body[1])
	}
	if !strings.Contains(body[3], "\t0.95") {
		t.Fatalf("confidence formatting in %q", body[3])
	}

	// Cells must stay naively tab-splittable; a quoted cell would mean
	// csv-style escaping leaked into the TSV.
	for _, l := range body {
		if strings.Contains(l, `"`) {
			t.Fatalf("quoted cell in %q", l)
		}
	}
}

func TestWriteMappingsRejectsInvalidRecord(t *testing.T) {
	records := testRecords()
	records[1].Predicate = "skos:bogusMatch"
	var buf bytes.Buffer
	if err := WriteMappings(&buf, testMeta(), records); err == nil {
		t.Fatal("expected error for invalid predicate")
	}
	if buf.Len() != 0 {
		t.Fatal("partial output written for invalid record set")
	}
}

func TestWriteMappingsDeterministic(t *testing.T) {
	records := testRecords()
	var a, b bytes.Buffer
	if err := WriteMappings(&a, testMeta(), records); err != nil {
		t.Fatal(err)
	}
	// Reversed input must yield identical bytes.
	reversed := []domain.MappingRecord{records[2], records[1], records[0]}
	if err := WriteMappings(&b, testMeta(), reversed); err != nil {
		t.Fatal(err)
	}
	if a.String() != b.String() {
		t.Fatal("output depends on record order")
	}
}

func TestWriteEdgeTemplates(t *testing.T) {
	edges := []domain.EdgeTemplate{
		{
			SourceCardID:      "card:2",
			TraitName:         "fermentation: maltose",
			PredicatePositive: domain.PropertyRef{ID: "MTP:0001", Label: "ferments"},
			PredicateNegative: domain.PropertyRef{ID: "MTP:0002", Label: "does not ferment"},
			Object:            domain.PropertyRef{ID: "CHEBI:17306", Label: "maltose"},
		},
		{
			SourceCardID:      "card:1",
			TraitName:         "fermentation: glucose",
			PredicatePositive: domain.PropertyRef{ID: "MTP:0001", Label: "ferments"},
			PredicateNegative: domain.PropertyRef{ID: "MTP:0002", Label: "does not ferment"},
			Object:            domain.PropertyRef{ID: "CHEBI:17234", Label: "glucose"},
		},
	}
	var buf bytes.Buffer
	if err := WriteEdgeTemplates(&buf, edges); err != nil {
		t.Fatalf("WriteEdgeTemplates: %v", err)
	}
	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if len(lines) != 3 {
		t.Fatalf("got %d lines", len(lines))
	}
	if !strings.HasPrefix(lines[0], "source_card_id\ttrait_name\tpredicate_positive_id") {
		t.Fatalf("header = %q", lines[0])
	}
	if !strings.HasPrefix(lines[1], "card:1\tfermentation: glucose\tMTP:0001\tferments\tMTP:0002\tdoes not ferment\tCHEBI:17234\tglucose") {
		t.Fatalf("row 1 = %q", lines[1])
	}
	if !strings.HasPrefix(lines[2], "card:2\t") {
		t.Fatalf("row 2 = %q", lines[2])
	}
}

func TestWriteStatusLog(t *testing.T) {
	statuses := []ItemStatus{
		{SourceKey: "src:2", Outcome: "skipped", Detail: "missing name"},
		{SourceKey: "src:1", Outcome: "blocked", Detail: StatusDetail([]domain.ResolutionStatus{
			domain.StatusMissingPositive, domain.StatusMissingNegative,
		})},
	}
	var buf bytes.Buffer
	if err := WriteStatusLog(&buf, statuses); err != nil {
		t.Fatalf("WriteStatusLog: %v", err)
	}
	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if lines[1] != "src:1\tblocked\tmissing_positive_predicate;missing_negative_predicate" {
		t.Fatalf("row 1 = %q", lines[1])
	}
	if !strings.HasPrefix(lines[2], "src:2\tskipped") {
		t.Fatalf("row 2 = %q", lines[2])
	}
}

func TestLoadMeta(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "meta.yaml")
	doc := "mapping_set_id: https://example.org/set\nlicense: CC0\ncurie_map:\n  MICRO: http://example.org/MICRO_\n"
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}
	m, err := LoadMeta(path)
	if err != nil {
		t.Fatalf("LoadMeta: %v", err)
	}
	if m.MappingSetID != "https://example.org/set" || m.License != "CC0" {
		t.Fatalf("meta = %+v", m)
	}
	if m.CurieMap["MICRO"] != "http://example.org/MICRO_" {
		t.Fatalf("curie map = %v", m.CurieMap)
	}
}

func TestLoadMetaRequiresID(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "meta.yaml")
	if err := os.WriteFile(path, []byte("license: CC0\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadMeta(path); err == nil {
		t.Fatal("expected error for missing mapping_set_id")
	}
}
