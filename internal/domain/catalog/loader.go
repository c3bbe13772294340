package catalog

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/velora/visearch/internal/domain"
)

// Format is a catalog source encoding.
type Format string

const (
	// FormatJSON is a JSON array of records or an object keyed by id.
	FormatJSON Format = "json"
	// FormatYAML is the YAML equivalent of FormatJSON.
	FormatYAML Format = "yaml"
)

// FormatFromPath picks the format from a file extension.
func FormatFromPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("%w: unsupported catalog file extension %q", domain.ErrCatalogLoadFailed, filepath.Ext(path))
	}
}

// LoadFile reads and parses the catalog file at path.
func LoadFile(path string) (*Catalog, error) {
	format, err := FormatFromPath(path)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrCatalogLoadFailed, err)
	}
	defer func() { _ = f.Close() }()

	return Load(f, format)
}

// Load parses a catalog source. Any parse failure fails the whole load;
// records without features are kept as unscoreable entries.
func Load(r io.Reader, format Format) (*Catalog, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("%w: read source: %w", domain.ErrCatalogLoadFailed, err)
	}

	var records []keyedRecord
	switch format {
	case FormatJSON:
		records, err = decodeJSON(data)
	case FormatYAML:
		records, err = decodeYAML(data)
	default:
		err = fmt.Errorf("unknown format %q", format)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrCatalogLoadFailed, err)
	}

	entries := make([]Entry, 0, len(records))
	for i, kr := range records {
		e, err := kr.toEntry()
		if err != nil {
			return nil, fmt.Errorf("%w: record #%d: %w", domain.ErrCatalogLoadFailed, i, err)
		}
		entries = append(entries, e)
	}

	return New(entries)
}

// record is the on-disk shape of a catalog item.
type record struct {
	ID          recordID  `json:"id" yaml:"id"`
	Name        string    `json:"name" yaml:"name"`
	Category    string    `json:"category" yaml:"category"`
	Price       price     `json:"price" yaml:"price"`
	Description string    `json:"description" yaml:"description"`
	Image       string    `json:"image" yaml:"image"`
	Features    []float32 `json:"features" yaml:"features"`
}

// keyedRecord is a record plus the object key it was found under, if any.
type keyedRecord struct {
	key string
	rec record
}

func (kr keyedRecord) toEntry() (Entry, error) {
	id := string(kr.rec.ID)
	if kr.key != "" {
		if id != "" && id != kr.key {
			return Entry{}, fmt.Errorf("key %q does not match id %q", kr.key, id)
		}
		id = kr.key
	}
	meta := Metadata{
		Name:        kr.rec.Name,
		Category:    kr.rec.Category,
		Price:       kr.rec.Price.Decimal,
		Description: kr.rec.Description,
		Image:       kr.rec.Image,
	}
	return NewEntry(id, meta, kr.rec.Features), nil
}

func decodeJSON(data []byte) ([]keyedRecord, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("empty source")
	}

	switch trimmed[0] {
	case '[':
		var recs []record
		if err := json.Unmarshal(trimmed, &recs); err != nil {
			return nil, fmt.Errorf("parse json array: %w", err)
		}
		out := make([]keyedRecord, len(recs))
		for i, r := range recs {
			out[i] = keyedRecord{rec: r}
		}
		return out, nil
	case '{':
		return decodeJSONObject(trimmed)
	default:
		return nil, fmt.Errorf("json catalog must be an array or an object")
	}
}

// decodeJSONObject streams the object so entries keep the key order of the file.
func decodeJSONObject(data []byte) ([]keyedRecord, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	if _, err := dec.Token(); err != nil {
		return nil, fmt.Errorf("parse json object: %w", err)
	}

	var out []keyedRecord
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("parse json object key: %w", err)
		}
		key, _ := tok.(string)

		var r record
		if err := dec.Decode(&r); err != nil {
			return nil, fmt.Errorf("parse json record %q: %w", key, err)
		}
		out = append(out, keyedRecord{key: key, rec: r})
	}

	if _, err := dec.Token(); err != nil {
		return nil, fmt.Errorf("parse json object end: %w", err)
	}
	return out, nil
}

func decodeYAML(data []byte) ([]keyedRecord, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse yaml: %w", err)
	}
	if len(doc.Content) == 0 {
		return nil, fmt.Errorf("empty source")
	}

	root := doc.Content[0]
	switch root.Kind {
	case yaml.SequenceNode:
		var recs []record
		if err := root.Decode(&recs); err != nil {
			return nil, fmt.Errorf("parse yaml sequence: %w", err)
		}
		out := make([]keyedRecord, len(recs))
		for i, r := range recs {
			out[i] = keyedRecord{rec: r}
		}
		return out, nil
	case yaml.MappingNode:
		out := make([]keyedRecord, 0, len(root.Content)/2)
		for i := 0; i+1 < len(root.Content); i += 2 {
			key := root.Content[i].Value
			var r record
			if err := root.Content[i+1].Decode(&r); err != nil {
				return nil, fmt.Errorf("parse yaml record %q: %w", key, err)
			}
			out = append(out, keyedRecord{key: key, rec: r})
		}
		return out, nil
	default:
		return nil, fmt.Errorf("yaml catalog must be a sequence or a mapping")
	}
}

// recordID accepts both string and numeric ids.
type recordID string

func (id *recordID) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return fmt.Errorf("parse id: %w", err)
		}
		*id = recordID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("id must be a string or a number: %w", err)
	}
	*id = recordID(n.String())
	return nil
}

func (id *recordID) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: id must be a scalar", node.Line)
	}
	if node.Tag == "!!null" {
		return nil
	}
	*id = recordID(node.Value)
	return nil
}

// price decodes JSON numbers or strings through decimal, and YAML scalars.
type price struct {
	decimal.Decimal
}

func (p *price) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: price must be a scalar", node.Line)
	}
	if node.Tag == "!!null" || node.Value == "" {
		return nil
	}
	d, err := decimal.NewFromString(node.Value)
	if err != nil {
		return fmt.Errorf("line %d: parse price: %w", node.Line, err)
	}
	p.Decimal = d
	return nil
}
