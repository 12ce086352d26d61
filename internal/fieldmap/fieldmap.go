// Package fieldmap resolves per-request CGI environment overrides from an
// Item, according to a configured set of field mappings.
package fieldmap

import "github.com/glennschmidt/fcgiq/internal/item"

// Source names where a FieldMapping's value is read from.
type Source string

const (
	SourceBodyJSON Source = "BODY_JSON"
	SourceMetadata Source = "METADATA"
)

// FieldMapping describes how to derive a single CGI environment override:
// read Field from Source.
type FieldMapping struct {
	Source Source `yaml:"source" validate:"required,oneof=BODY_JSON METADATA"`
	Field  string `yaml:"field" validate:"required"`
}

// FieldMappings maps a target CGI environment variable name to the
// FieldMapping that produces its value. Iteration order is irrelevant;
// target names are unique by construction (it's a map).
type FieldMappings map[string]FieldMapping

// Resolve derives the overrides map passed to Pool.Dispatch from an Item.
// A mapping contributes an entry only when its source value is present;
// missing fields are silently omitted, never zero-valued.
func Resolve(it *item.Item, mappings FieldMappings) map[string]string {
	overrides := make(map[string]string, len(mappings))
	for target, fm := range mappings {
		var (
			value string
			ok    bool
		)
		switch fm.Source {
		case SourceBodyJSON:
			value, ok = it.GetStringFromDataJSONObject(fm.Field)
		case SourceMetadata:
			value, ok = it.Metadata[fm.Field]
		}
		if ok {
			overrides[target] = value
		}
	}
	return overrides
}
