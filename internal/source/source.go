// Package source reads source documents for evaluation from YAML or JSON
// files.
//
// A document file looks like:
//
//	id: invoice-7
//	metadata:
//	  author: [alice, bob]
//	  pages: 3
//	streams:
//	  body: "..."
//	excluded: false
//	children:
//	  - id: attachment-1
//	    metadata: {filename: scan.pdf}
//
// Metadata values may be a scalar or a list of scalars. Documents without an
// id get a fresh UUIDv7.
package source

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"sort"
	"strconv"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"

	"github.com/solatis/dossier/internal/types"
)

type documentDoc struct {
	ID       string            `mapstructure:"id"`
	Metadata map[string]any    `mapstructure:"metadata"`
	Streams  map[string]string `mapstructure:"streams"`
	Excluded bool              `mapstructure:"excluded"`
	Children []map[string]any  `mapstructure:"children"`
}

// LoadDocument reads one document tree.
func LoadDocument(r io.Reader) (*types.Document, error) {
	var raw map[string]any
	if err := yaml.NewDecoder(r).Decode(&raw); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("parse document: empty input")
		}
		return nil, fmt.Errorf("parse document: %w", err)
	}
	return decodeDocument(raw)
}

// LoadFile reads the document at path inside fsys.
func LoadFile(fsys fs.FS, path string) (*types.Document, error) {
	f, err := fsys.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open document: %w", err)
	}
	defer f.Close()

	doc, err := LoadDocument(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return doc, nil
}

// Glob returns the paths in fsys matching a doublestar pattern such as
// "docs/**/*.yaml", sorted.
func Glob(fsys fs.FS, pattern string) ([]string, error) {
	if !doublestar.ValidatePattern(pattern) {
		return nil, fmt.Errorf("invalid pattern %q: %w", pattern, doublestar.ErrBadPattern)
	}
	matches, err := doublestar.Glob(fsys, pattern, doublestar.WithFilesOnly())
	if err != nil {
		return nil, fmt.Errorf("glob %q: %w", pattern, err)
	}
	sort.Strings(matches)
	return matches, nil
}

func decodeDocument(raw map[string]any) (*types.Document, error) {
	var dd documentDoc
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		ErrorUnused:      true,
		Result:           &dd,
	})
	if err != nil {
		return nil, err
	}
	if err := dec.Decode(raw); err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}

	doc := &types.Document{
		ID:       types.DocumentID(dd.ID),
		Streams:  dd.Streams,
		Excluded: dd.Excluded,
		Metadata: make(map[string][]string, len(dd.Metadata)),
	}
	if doc.ID == "" {
		doc.ID = types.NewDocumentID()
	}
	if doc.Streams == nil {
		doc.Streams = map[string]string{}
	}

	for field, v := range dd.Metadata {
		values, err := metadataValues(v)
		if err != nil {
			return nil, fmt.Errorf("document %s: metadata %q: %w", doc.ID, field, err)
		}
		doc.Metadata[field] = values
	}

	for i, childRaw := range dd.Children {
		child, err := decodeDocument(childRaw)
		if err != nil {
			return nil, fmt.Errorf("document %s child %d: %w", doc.ID, i, err)
		}
		doc.Children = append(doc.Children, child)
	}
	return doc, nil
}

func metadataValues(v any) ([]string, error) {
	list, ok := v.([]any)
	if !ok {
		s, err := scalarString(v)
		if err != nil {
			return nil, err
		}
		return []string{s}, nil
	}

	out := make([]string, 0, len(list))
	for _, item := range list {
		s, err := scalarString(item)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

func scalarString(v any) (string, error) {
	switch x := v.(type) {
	case string:
		return x, nil
	case int:
		return strconv.Itoa(x), nil
	case int64:
		return strconv.FormatInt(x, 10), nil
	case uint64:
		return strconv.FormatUint(x, 10), nil
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64), nil
	case bool:
		return strconv.FormatBool(x), nil
	case time.Time:
		return x.Format(time.RFC3339Nano), nil
	case nil:
		return "", nil
	default:
		return "", fmt.Errorf("unsupported value of type %T", v)
	}
}
