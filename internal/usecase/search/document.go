package search

import (
	"encoding/json"
	"fmt"
)

// Document is one record submitted for indexing.
type Document struct {
	Type          string
	IDField       string
	EmbeddedField string
	Fields        map[string]any
}

// ID returns the value of the id field.
func (d Document) ID() string {
	return stringField(d.Fields, d.IDField)
}

// EmbeddedText returns the text the embedding is computed from.
func (d Document) EmbeddedText() string {
	return stringField(d.Fields, d.EmbeddedField)
}

func stringField(fields map[string]any, name string) string {
	v, ok := fields[name]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

// NewDocument builds a Document from any JSON-encodable record.
func NewDocument(docType, idField, embeddedField string, record any) (Document, error) {
	data, err := json.Marshal(record)
	if err != nil {
		return Document{}, fmt.Errorf("encode %s record: %w", docType, err)
	}
	var fields map[string]any
	if err := json.Unmarshal(data, &fields); err != nil {
		return Document{}, fmt.Errorf("decode %s record: %w", docType, err)
	}
	return Document{
		Type:          docType,
		IDField:       idField,
		EmbeddedField: embeddedField,
		Fields:        fields,
	}, nil
}

// Result is a search hit.
type Result struct {
	Type   string          `json:"type"`
	Source json.RawMessage `json:"source"`
	Score  float64         `json:"score"`
}
