// Package item defines the uniform in-memory representation of a queue
// message as it flows through the dispatcher.
package item

import (
	"log/slog"

	"github.com/bytedance/sonic"
)

// Item is a decoded queue message: an opaque id, the raw payload bytes, and
// a metadata mapping that always carries a "receipt_handle" entry alongside
// any user or system attributes copied from the source message.
type Item struct {
	ID       string
	Data     []byte
	Metadata map[string]string
}

// ReceiptHandle returns the item's receipt handle, and whether one is set.
func (i *Item) ReceiptHandle() (string, bool) {
	h, ok := i.Metadata["receipt_handle"]
	return h, ok && h != ""
}

// ParseDataAsJSON parses Data as a JSON document. Callers that only need a
// single string field from a top-level object should prefer
// GetStringFromDataJSONObject, which additionally coalesces parse failures.
func (i *Item) ParseDataAsJSON() (any, error) {
	var v any
	if err := sonic.Unmarshal(i.Data, &v); err != nil {
		return nil, err
	}
	return v, nil
}

// GetStringFromDataJSONObject returns (value, true) iff Data parses as JSON,
// the top-level value is an object, key is present, and its value is a JSON
// string. Any other outcome — parse failure, non-object, missing key,
// non-string value — returns ("", false). Parse failures are logged at
// debug level and otherwise swallowed; callers never see the underlying
// error.
func (i *Item) GetStringFromDataJSONObject(key string) (string, bool) {
	v, err := i.ParseDataAsJSON()
	if err != nil {
		slog.Debug("item data is not valid JSON", "item", i.ID, "error", err)
		return "", false
	}

	obj, ok := v.(map[string]any)
	if !ok {
		return "", false
	}

	raw, ok := obj[key]
	if !ok {
		return "", false
	}

	s, ok := raw.(string)
	return s, ok
}
