package bufr

import (
	"bytes"
	_ "embed"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

//go:embed tables/builtin.yaml
var builtinTables []byte

// tableDocument is the YAML layout of a table file. Codes are quoted
// six-digit strings; an unquoted 005001 would be read as an octal integer.
type tableDocument struct {
	Elements []struct {
		Code      string `yaml:"code"`
		Name      string `yaml:"name"`
		Unit      string `yaml:"unit"`
		Scale     int    `yaml:"scale"`
		Reference int64  `yaml:"reference"`
		Width     int    `yaml:"width"`
	} `yaml:"elements"`
	Sequences []struct {
		Code    string   `yaml:"code"`
		Name    string   `yaml:"name,omitempty"`
		Members []string `yaml:"members"`
	} `yaml:"sequences"`
}

// DefaultTables returns a new store holding the built-in master and local
// descriptors. Callers may Load or LoadYAML further entries on top.
func DefaultTables() (*Tables, error) {
	t := NewTables()
	if err := t.LoadYAML(bytes.NewReader(builtinTables)); err != nil {
		return nil, fmt.Errorf("built-in tables: %w", err)
	}
	return t, nil
}

// LoadYAML reads a table document and loads it with the same override
// semantics as Load.
func (t *Tables) LoadYAML(r io.Reader) error {
	var doc tableDocument
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		if err == io.EOF {
			return nil
		}
		return fmt.Errorf("decoding table document: %w", err)
	}

	b := make([]TableBEntry, 0, len(doc.Elements))
	for _, e := range doc.Elements {
		code, err := ParseCode(e.Code)
		if err != nil {
			return fmt.Errorf("element %q: %w", e.Name, err)
		}
		b = append(b, TableBEntry{
			Code:      code,
			Name:      e.Name,
			Unit:      e.Unit,
			Scale:     e.Scale,
			Reference: e.Reference,
			Width:     e.Width,
		})
	}

	d := make([]TableDEntry, 0, len(doc.Sequences))
	for _, s := range doc.Sequences {
		code, err := ParseCode(s.Code)
		if err != nil {
			return fmt.Errorf("sequence: %w", err)
		}
		members := make([]Code, 0, len(s.Members))
		for _, m := range s.Members {
			mc, err := ParseCode(m)
			if err != nil {
				return fmt.Errorf("sequence %s: %w", code, err)
			}
			members = append(members, mc)
		}
		d = append(d, TableDEntry{Code: code, Members: members})
	}
	return t.Load(b, d)
}
