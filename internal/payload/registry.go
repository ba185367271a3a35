package payload

import (
	"fmt"
	"sort"
)

// Scope selects which records an export covers.
type Scope string

const (
	ScopeFull   Scope = "full"
	ScopeSync   Scope = "sync"
	ScopeImages Scope = "images"
)

// ParseScope validates a user-supplied data scope.
func ParseScope(s string) (Scope, error) {
	switch Scope(s) {
	case ScopeFull, ScopeSync:
		return Scope(s), nil
	}
	return "", fmt.Errorf("unknown scope %q (use full or sync)", s)
}

// Kind describes how a record's string value is interpreted on restore.
type Kind int

const (
	// KindOpaque records are copied verbatim.
	KindOpaque Kind = iota
	// KindCollection records hold a JSON array of items and are diffed.
	KindCollection
	// KindSettings records hold a JSON object and are diffed key by key.
	KindSettings
)

func (k Kind) String() string {
	switch k {
	case KindCollection:
		return "collection"
	case KindSettings:
		return "settings"
	default:
		return "opaque"
	}
}

// RecordSpec describes one recognized record key.
type RecordSpec struct {
	Key       string
	Kind      Kind
	Secret    bool // credentials and tokens
	LocalOnly bool // caches that are rebuilt per device
}

// InScope reports whether the record is exported under scope.
func (s RecordSpec) InScope(scope Scope) bool {
	switch scope {
	case ScopeFull:
		return true
	case ScopeSync:
		return !s.Secret && !s.LocalOnly
	}
	return false
}

// Registry is the allow-list of record keys.
type Registry struct {
	specs []RecordSpec
	index map[string]RecordSpec
}

// NewRegistry builds a registry. Later specs replace earlier ones with the same key.
func NewRegistry(specs ...RecordSpec) *Registry {
	r := &Registry{index: make(map[string]RecordSpec, len(specs))}
	pos := make(map[string]int, len(specs))
	for _, spec := range specs {
		if i, dup := pos[spec.Key]; dup {
			r.specs[i] = spec
		} else {
			pos[spec.Key] = len(r.specs)
			r.specs = append(r.specs, spec)
		}
		r.index[spec.Key] = spec
	}
	return r
}

// DefaultRegistry returns the records of the collection application.
func DefaultRegistry() *Registry {
	return NewRegistry(
		RecordSpec{Key: "collection", Kind: KindCollection},
		RecordSpec{Key: "settings", Kind: KindSettings},
		RecordSpec{Key: "watchlist"},
		RecordSpec{Key: "tags"},
		RecordSpec{Key: "api_token", Secret: true},
		RecordSpec{Key: "cloud_credentials", Secret: true},
		RecordSpec{Key: "price_cache", LocalOnly: true},
	)
}

// Lookup returns the spec for key.
func (r *Registry) Lookup(key string) (RecordSpec, bool) {
	spec, ok := r.index[key]
	return spec, ok
}

// Allowed reports whether key may be written on restore.
func (r *Registry) Allowed(key string) bool {
	_, ok := r.index[key]
	return ok
}

// Keys returns the record keys exported under scope, in registration order.
func (r *Registry) Keys(scope Scope) []string {
	var keys []string
	for _, spec := range r.specs {
		if spec.InScope(scope) {
			keys = append(keys, spec.Key)
		}
	}
	return keys
}

// Specs returns every registered spec in registration order.
func (r *Registry) Specs() []RecordSpec {
	return append([]RecordSpec(nil), r.specs...)
}

// First returns the first key registered with the given kind.
func (r *Registry) First(kind Kind) (string, bool) {
	for _, spec := range r.specs {
		if spec.Kind == kind {
			return spec.Key, true
		}
	}
	return "", false
}

// Filter splits data into allow-listed records and the sorted list of ignored keys.
func (r *Registry) Filter(data map[string]string) (map[string]string, []string) {
	allowed := make(map[string]string, len(data))
	var ignored []string
	for key, value := range data {
		if r.Allowed(key) {
			allowed[key] = value
		} else {
			ignored = append(ignored, key)
		}
	}
	sort.Strings(ignored)
	return allowed, ignored
}
