package diff

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// VolatileFields change without the item changing and are ignored.
var VolatileFields = []string{"displayOrder", "cachedValue", "lastViewed"}

// KeyFunc derives the stable key of an item.
type KeyFunc func(Item) string

// ItemKey derives the key of an item. See the package documentation for
// the exact fields involved.
func ItemKey(item Item) string {
	if s := scalar(item["uuid"]); s != "" {
		return "uuid:" + s
	}
	if s := scalar(item["id"]); s != "" {
		return "id:" + s
	}
	if name := strings.ToLower(strings.TrimSpace(scalar(item["name"]))); name != "" {
		return "name:" + name + "|" + scalar(item["year"]) + "|" + scalar(item["country"]) + "|" + scalar(item["denomination"])
	}
	return "hash:" + contentHash(item)
}

func contentHash(item Item) string {
	stable := make(map[string]any, len(item))
	for k, v := range item {
		stable[k] = v
	}
	for _, f := range VolatileFields {
		delete(stable, f)
	}
	// Map keys are marshaled in sorted order
	data, err := json.Marshal(stable)
	if err != nil {
		data = []byte(fmt.Sprint(stable))
	}
	return fmt.Sprintf("%016x", xxhash.Sum64(data))
}

// scalar renders a key component. Numbers are rendered canonically so that
// 7, 7.0 and json.Number("7") produce the same key.
func scalar(v any) string {
	switch v := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(v)
	case json.Number:
		if i, err := v.Int64(); err == nil {
			return strconv.FormatInt(i, 10)
		}
		if f, err := v.Float64(); err == nil {
			return strconv.FormatFloat(f, 'f', -1, 64)
		}
		return v.String()
	case bool:
		return strconv.FormatBool(v)
	}
	if f, ok := toFloat(v); ok {
		return strconv.FormatFloat(f, 'f', -1, 64)
	}
	return fmt.Sprint(v)
}
