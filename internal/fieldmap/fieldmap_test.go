package fieldmap

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/glennschmidt/fcgiq/internal/item"
)

func TestResolveBodyJSON(t *testing.T) {
	it := &item.Item{Data: []byte(`{"user":"alice"}`)}
	mappings := FieldMappings{
		"X_USER": {Source: SourceBodyJSON, Field: "user"},
	}
	overrides := Resolve(it, mappings)
	assert.Equal(t, map[string]string{"X_USER": "alice"}, overrides)
}

func TestResolveMetadata(t *testing.T) {
	it := &item.Item{Metadata: map[string]string{"trace_id": "t-7", "receipt_handle": "r"}}
	mappings := FieldMappings{
		"X_TRACE": {Source: SourceMetadata, Field: "trace_id"},
	}
	overrides := Resolve(it, mappings)
	assert.Equal(t, map[string]string{"X_TRACE": "t-7"}, overrides)
}

func TestResolveMissingFieldOmitted(t *testing.T) {
	it := &item.Item{Data: []byte(`{}`), Metadata: map[string]string{}}
	mappings := FieldMappings{
		"X_USER":  {Source: SourceBodyJSON, Field: "user"},
		"X_TRACE": {Source: SourceMetadata, Field: "trace_id"},
	}
	overrides := Resolve(it, mappings)
	assert.Empty(t, overrides)
}
