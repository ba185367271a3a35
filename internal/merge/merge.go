package merge

import (
	"github.com/illarion/statevault/internal/diff"
)

// ChangeType is the kind of a selected change.
type ChangeType string

const (
	Add    ChangeType = "add"
	Modify ChangeType = "modify"
	Delete ChangeType = "delete"
)

// SelectedChange is one approved change. Modify entries target a single
// field; a nil Value removes the field.
type SelectedChange struct {
	Type    ChangeType `json:"type" yaml:"type"`
	Item    diff.Item  `json:"item,omitempty" yaml:"item,omitempty"`
	ItemKey string     `json:"itemKey,omitempty" yaml:"itemKey,omitempty"`
	Field   string     `json:"field,omitempty" yaml:"field,omitempty"`
	Value   any        `json:"value,omitempty" yaml:"value,omitempty"`
}

type entry struct {
	key     string
	item    diff.Item
	removed bool
}

// ApplySelectedChanges returns current with selected applied in order.
// Adds whose key already exists are skipped, so applying the same list
// twice gives the same result as applying it once.
func ApplySelectedChanges(current []diff.Item, selected []SelectedChange, key diff.KeyFunc) []diff.Item {
	if key == nil {
		key = diff.ItemKey
	}

	entries := make([]*entry, 0, len(current)+len(selected))
	byKey := make(map[string][]*entry, len(current))
	for _, item := range current {
		e := &entry{key: key(item), item: item.Clone()}
		entries = append(entries, e)
		byKey[e.key] = append(byKey[e.key], e)
	}

	live := func(k string) []*entry {
		var out []*entry
		for _, e := range byKey[k] {
			if !e.removed {
				out = append(out, e)
			}
		}
		return out
	}

	for _, change := range selected {
		k := change.ItemKey
		if k == "" && change.Item != nil {
			k = key(change.Item)
		}

		switch change.Type {
		case Add:
			if change.Item == nil || len(live(k)) > 0 {
				continue
			}
			e := &entry{key: k, item: change.Item.Clone()}
			entries = append(entries, e)
			byKey[k] = append(byKey[k], e)

		case Modify:
			if change.Field == "" {
				continue
			}
			for _, e := range live(k) {
				if change.Value == nil {
					delete(e.item, change.Field)
				} else {
					e.item[change.Field] = diff.CloneValue(change.Value)
				}
			}

		case Delete:
			for _, e := range live(k) {
				e.removed = true
			}
		}
	}

	out := make([]diff.Item, 0, len(entries))
	for _, e := range entries {
		if !e.removed {
			out = append(out, e.item)
		}
	}
	return out
}

// ApplySettings returns current with the selected setting modifies applied.
// Field names the setting key.
func ApplySettings(current map[string]any, selected []SelectedChange) map[string]any {
	out := diff.Item(current).Clone()
	if out == nil {
		out = diff.Item{}
	}
	for _, change := range selected {
		if change.Type != Modify || change.Field == "" {
			continue
		}
		if change.Value == nil {
			delete(out, change.Field)
		} else {
			out[change.Field] = diff.CloneValue(change.Value)
		}
	}
	return out
}
