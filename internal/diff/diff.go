package diff

import "sort"

// FieldChange is one differing field of a modified item. RemoteVal is the
// candidate new value.
type FieldChange struct {
	Field     string `json:"field" yaml:"field"`
	LocalVal  any    `json:"localVal" yaml:"localVal"`
	RemoteVal any    `json:"remoteVal" yaml:"remoteVal"`
}

// Modification is an item present on both sides with at least one change.
type Modification struct {
	Key     string        `json:"key" yaml:"key"`
	Item    Item          `json:"item" yaml:"item"` // remote version
	Local   Item          `json:"-" yaml:"-"`
	Changes []FieldChange `json:"changes" yaml:"changes"`
}

// Result partitions the union of local and remote keys into four buckets.
type Result struct {
	Added     []Item         `json:"added" yaml:"added"`
	Modified  []Modification `json:"modified" yaml:"modified"`
	Deleted   []Item         `json:"deleted" yaml:"deleted"`
	Unchanged []Item         `json:"-" yaml:"-"`
}

// Empty reports whether applying the result would change nothing.
func (r Result) Empty() bool {
	return len(r.Added) == 0 && len(r.Modified) == 0 && len(r.Deleted) == 0
}

// Total is the number of distinct keys covered by the result.
func (r Result) Total() int {
	return len(r.Added) + len(r.Modified) + len(r.Deleted) + len(r.Unchanged)
}

// Differ is the comparison capability used during restore.
type Differ interface {
	Key(item Item) string
	CompareItems(local, remote []Item) Result
	CompareSettings(local, remote map[string]any) SettingsDiff
	DetectConflicts(base, local, remote []Item) ConflictSet
}

// Engine compares collections. It holds no mutable state and is safe for
// concurrent use.
type Engine struct {
	key    KeyFunc
	ignore map[string]bool
}

// Option configures an Engine.
type Option func(*Engine)

// WithKeyFunc replaces ItemKey.
func WithKeyFunc(fn KeyFunc) Option {
	return func(e *Engine) { e.key = fn }
}

// WithIgnoredFields adds fields excluded from comparison.
func WithIgnoredFields(fields ...string) Option {
	return func(e *Engine) {
		for _, f := range fields {
			e.ignore[f] = true
		}
	}
}

// NewEngine returns an engine using ItemKey and ignoring VolatileFields.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{key: ItemKey, ignore: make(map[string]bool)}
	for _, f := range VolatileFields {
		e.ignore[f] = true
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Key derives the key of an item.
func (e *Engine) Key(item Item) string {
	return e.key(item)
}

type indexed struct {
	order []string
	items map[string]Item
}

// index maps keys to items. A duplicate key keeps its first position and
// its last value.
func (e *Engine) index(items []Item) indexed {
	idx := indexed{items: make(map[string]Item, len(items))}
	for _, item := range items {
		k := e.key(item)
		if _, seen := idx.items[k]; !seen {
			idx.order = append(idx.order, k)
		}
		idx.items[k] = item
	}
	return idx
}

// CompareItems diffs two collections. Added, modified and unchanged follow
// remote order; deleted follows local order.
func (e *Engine) CompareItems(local, remote []Item) Result {
	l := e.index(local)
	r := e.index(remote)

	var result Result
	for _, k := range r.order {
		remoteItem := r.items[k]
		localItem, ok := l.items[k]
		if !ok {
			result.Added = append(result.Added, remoteItem)
			continue
		}
		if changes := e.compareFields(localItem, remoteItem); len(changes) > 0 {
			result.Modified = append(result.Modified, Modification{
				Key:     k,
				Item:    remoteItem,
				Local:   localItem,
				Changes: changes,
			})
		} else {
			result.Unchanged = append(result.Unchanged, remoteItem)
		}
	}
	for _, k := range l.order {
		if _, ok := r.items[k]; !ok {
			result.Deleted = append(result.Deleted, l.items[k])
		}
	}
	return result
}

// compareFields returns one change per differing field, sorted by field name.
func (e *Engine) compareFields(local, remote Item) []FieldChange {
	fields := make(map[string]struct{}, len(local)+len(remote))
	for f := range local {
		fields[f] = struct{}{}
	}
	for f := range remote {
		fields[f] = struct{}{}
	}

	names := make([]string, 0, len(fields))
	for f := range fields {
		if !e.ignore[f] {
			names = append(names, f)
		}
	}
	sort.Strings(names)

	var changes []FieldChange
	for _, f := range names {
		if !Equal(local[f], remote[f]) {
			changes = append(changes, FieldChange{Field: f, LocalVal: local[f], RemoteVal: remote[f]})
		}
	}
	return changes
}
