package diff

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Item is a domain record subject to diffing.
type Item map[string]any

// Clone returns a deep copy of the item.
func (it Item) Clone() Item {
	if it == nil {
		return nil
	}
	return CloneValue(map[string]any(it)).(map[string]any)
}

// CloneValue deep-copies maps and lists decoded from JSON.
func CloneValue(v any) any {
	switch v := v.(type) {
	case Item:
		return Item(CloneValue(map[string]any(v)).(map[string]any))
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, e := range v {
			out[k] = CloneValue(e)
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, e := range v {
			out[i] = CloneValue(e)
		}
		return out
	default:
		return v
	}
}

func newDecoder(data string) *json.Decoder {
	dec := json.NewDecoder(bytes.NewReader([]byte(data)))
	dec.UseNumber()
	return dec
}

// DecodeItems parses a collection record. Numbers keep their textual form.
func DecodeItems(data string) ([]Item, error) {
	if data == "" {
		return nil, nil
	}
	var items []Item
	if err := newDecoder(data).Decode(&items); err != nil {
		return nil, fmt.Errorf("failed to decode collection: %w", err)
	}
	return items, nil
}

// EncodeItems renders a collection record.
func EncodeItems(items []Item) (string, error) {
	if items == nil {
		items = []Item{}
	}
	data, err := json.Marshal(items)
	if err != nil {
		return "", fmt.Errorf("failed to encode collection: %w", err)
	}
	return string(data), nil
}

// DecodeSettings parses a settings record.
func DecodeSettings(data string) (map[string]any, error) {
	settings := map[string]any{}
	if data == "" {
		return settings, nil
	}
	if err := newDecoder(data).Decode(&settings); err != nil {
		return nil, fmt.Errorf("failed to decode settings: %w", err)
	}
	return settings, nil
}

// EncodeSettings renders a settings record.
func EncodeSettings(settings map[string]any) (string, error) {
	if settings == nil {
		settings = map[string]any{}
	}
	data, err := json.Marshal(settings)
	if err != nil {
		return "", fmt.Errorf("failed to encode settings: %w", err)
	}
	return string(data), nil
}
