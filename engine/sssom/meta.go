// Package sssom writes the interchange artifacts of a run: the mapping
// set as a TSV with an embedded metadata header, and the edge-template
// table for downstream graph builders. Output is byte-deterministic for
// a given input set.
package sssom

import (
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Meta is the mapping-set metadata embedded as a commented YAML block at
// the top of the mappings file.
type Meta struct {
	MappingSetID  string            `yaml:"mapping_set_id"`
	License       string            `yaml:"license,omitempty"`
	MappingDate   string            `yaml:"mapping_date,omitempty"`
	SubjectSource string            `yaml:"subject_source,omitempty"`
	ObjectSource  string            `yaml:"object_source,omitempty"`
	Creator       string            `yaml:"creator_id,omitempty"`
	Tool          string            `yaml:"mapping_tool,omitempty"`
	Comment       string            `yaml:"comment,omitempty"`
	CurieMap      map[string]string `yaml:"curie_map,omitempty"`
}

// LoadMeta reads mapping-set metadata from a YAML file.
func LoadMeta(path string) (Meta, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Meta{}, fmt.Errorf("sssom: read meta: %w", err)
	}
	var m Meta
	if err := yaml.Unmarshal(data, &m); err != nil {
		return Meta{}, fmt.Errorf("sssom: parse meta %s: %w", path, err)
	}
	if m.MappingSetID == "" {
		return Meta{}, fmt.Errorf("sssom: meta %s: mapping_set_id is required", path)
	}
	return m, nil
}

// writeHeader emits the metadata as a "# "-prefixed YAML block.
func writeHeader(w io.Writer, meta Meta) error {
	data, err := yaml.Marshal(meta)
	if err != nil {
		return fmt.Errorf("sssom: marshal meta: %w", err)
	}
	for _, line := range strings.Split(strings.TrimRight(string(data), "\n"), "\n") {
		if _, err := fmt.Fprintf(w, "# %s\n", line); err != nil {
			return err
		}
	}
	return nil
}
