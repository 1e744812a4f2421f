package snapshot

import (
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/solatis/dossier/internal/types"
)

// fileDoc is the on-disk snapshot layout:
//
//	conditions:    [condition, ...]
//	lexicons:      [{id, name, expressions: [{id, kind, value}]}, ...]
//	field_labels:  [{name, fields: [string]}, ...]
type fileDoc struct {
	Conditions  []map[string]any `yaml:"conditions"`
	Lexicons    []map[string]any `yaml:"lexicons"`
	FieldLabels []struct {
		Name   string   `yaml:"name"`
		Fields []string `yaml:"fields"`
	} `yaml:"field_labels"`
}

// LoadYAML reads a snapshot document. JSON is accepted as a YAML subset.
func LoadYAML(r io.Reader) (*Memory, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var doc fileDoc
	if err := dec.Decode(&doc); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse snapshot: %w", err)
	}

	m := NewMemory()
	for i, raw := range doc.Conditions {
		cond, err := DecodeCondition(raw)
		if err != nil {
			return nil, fmt.Errorf("condition %d: %w", i, err)
		}
		if err := m.AddCondition(cond); err != nil {
			return nil, fmt.Errorf("condition %d: %w", i, err)
		}
	}
	for i, raw := range doc.Lexicons {
		lex, err := DecodeLexicon(raw)
		if err != nil {
			return nil, fmt.Errorf("lexicon %d: %w", i, err)
		}
		if err := m.AddLexicon(lex); err != nil {
			return nil, fmt.Errorf("lexicon %d: %w", i, err)
		}
	}
	for _, fl := range doc.FieldLabels {
		m.AddFieldLabel(&types.FieldLabel{Name: fl.Name, Fields: fl.Fields})
	}
	return m, nil
}

// LoadFile reads a snapshot document from path.
func LoadFile(path string) (*Memory, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open snapshot: %w", err)
	}
	defer f.Close()
	return LoadYAML(f)
}
