package merge

import (
	"github.com/illarion/statevault/internal/diff"
)

// ConflictRef identifies a conflicting item field.
type ConflictRef struct {
	ItemKey string
	Field   string
}

// Selection is what a presentation layer hands back after review.
type Selection struct {
	Items       []SelectedChange
	Settings    []SelectedChange
	Resolutions map[ConflictRef]diff.Resolution
	// Records are opaque records approved to replace their local value.
	Records []string
}

// Empty reports whether nothing was selected.
func (s Selection) Empty() bool {
	return len(s.Items) == 0 && len(s.Settings) == 0 && len(s.Records) == 0
}

// ItemChanges expands a diff result into one change per add, per modified
// field and per delete.
func ItemChanges(r diff.Result, key diff.KeyFunc) []SelectedChange {
	if key == nil {
		key = diff.ItemKey
	}

	var changes []SelectedChange
	for _, item := range r.Added {
		changes = append(changes, SelectedChange{Type: Add, Item: item, ItemKey: key(item)})
	}
	for _, m := range r.Modified {
		for _, c := range m.Changes {
			changes = append(changes, SelectedChange{Type: Modify, ItemKey: m.Key, Field: c.Field, Value: c.RemoteVal})
		}
	}
	for _, item := range r.Deleted {
		changes = append(changes, SelectedChange{Type: Delete, Item: item, ItemKey: key(item)})
	}
	return changes
}

// SettingChanges expands a settings diff into one modify per key.
func SettingChanges(d diff.SettingsDiff) []SelectedChange {
	changes := make([]SelectedChange, 0, len(d.Changed))
	for _, c := range d.Changed {
		changes = append(changes, SelectedChange{Type: Modify, Field: c.Key, Value: c.RemoteVal})
	}
	return changes
}

// SelectAll approves every change of both diffs.
func SelectAll(r diff.Result, d diff.SettingsDiff, key diff.KeyFunc) Selection {
	return Selection{
		Items:    ItemChanges(r, key),
		Settings: SettingChanges(d),
	}
}

// Resolve drops item modifies whose conflict resolves to the local side.
// Resolutions in the selection override the conflict's own default.
func (s Selection) Resolve(cs diff.ConflictSet) Selection {
	if cs.Empty() {
		return s
	}

	out := Selection{Settings: s.Settings, Resolutions: s.Resolutions, Records: s.Records}
	for _, change := range s.Items {
		if change.Type == Modify {
			if c, ok := cs.Lookup(change.ItemKey, change.Field); ok {
				resolution := c.Resolution
				if r, ok := s.Resolutions[ConflictRef{ItemKey: c.ItemKey, Field: c.Field}]; ok {
					resolution = r
				}
				if resolution == diff.ResolutionLocal {
					continue
				}
			}
		}
		out.Items = append(out.Items, change)
	}
	return out
}
