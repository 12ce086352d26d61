package item

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReceiptHandle(t *testing.T) {
	it := &Item{Metadata: map[string]string{"receipt_handle": "r1"}}
	h, ok := it.ReceiptHandle()
	require.True(t, ok)
	assert.Equal(t, "r1", h)

	empty := &Item{Metadata: map[string]string{}}
	_, ok = empty.ReceiptHandle()
	assert.False(t, ok)
}

func TestGetStringFromDataJSONObject(t *testing.T) {
	cases := []struct {
		name    string
		data    string
		key     string
		want    string
		wantOK  bool
	}{
		{"present string", `{"user":"alice"}`, "user", "alice", true},
		{"missing key", `{"user":"alice"}`, "trace_id", "", false},
		{"non-string value", `{"user":42}`, "user", "", false},
		{"not an object", `[1,2,3]`, "user", "", false},
		{"invalid json", `{not json`, "user", "", false},
		{"empty data", ``, "user", "", false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			it := &Item{Data: []byte(tc.data)}
			got, ok := it.GetStringFromDataJSONObject(tc.key)
			assert.Equal(t, tc.wantOK, ok)
			if tc.wantOK {
				assert.Equal(t, tc.want, got)
			}
		})
	}
}
