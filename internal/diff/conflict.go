package diff

// Resolution picks the winning side of a conflict.
type Resolution string

const (
	ResolutionRemote Resolution = "remote"
	ResolutionLocal  Resolution = "local"
)

// Conflict is a field changed on both sides relative to the common ancestor.
type Conflict struct {
	ItemKey    string     `json:"itemKey" yaml:"itemKey"`
	Field      string     `json:"field" yaml:"field"`
	BaseVal    any        `json:"baseVal" yaml:"baseVal"`
	LocalVal   any        `json:"localVal" yaml:"localVal"`
	RemoteVal  any        `json:"remoteVal" yaml:"remoteVal"`
	Resolution Resolution `json:"resolution" yaml:"resolution"`
}

// ConflictSet holds the conflicts of one restore attempt.
type ConflictSet struct {
	Conflicts []Conflict `json:"conflicts" yaml:"conflicts"`
}

// Empty reports whether there are no conflicts.
func (cs ConflictSet) Empty() bool {
	return len(cs.Conflicts) == 0
}

// Lookup finds the conflict for an item field.
func (cs ConflictSet) Lookup(itemKey, field string) (Conflict, bool) {
	for _, c := range cs.Conflicts {
		if c.ItemKey == itemKey && c.Field == field {
			return c, true
		}
	}
	return Conflict{}, false
}

// Resolve overrides the resolution of one conflict. It reports whether the
// conflict exists.
func (cs *ConflictSet) Resolve(itemKey, field string, r Resolution) bool {
	for i := range cs.Conflicts {
		if cs.Conflicts[i].ItemKey == itemKey && cs.Conflicts[i].Field == field {
			cs.Conflicts[i].Resolution = r
			return true
		}
	}
	return false
}

// DetectConflicts finds fields of items present in base, local and remote
// where both sides moved away from base to different values. Every conflict
// defaults to ResolutionRemote.
func (e *Engine) DetectConflicts(base, local, remote []Item) ConflictSet {
	b := e.index(base)
	l := e.index(local)

	var cs ConflictSet
	r := e.index(remote)
	for _, k := range r.order {
		baseItem, inBase := b.items[k]
		localItem, inLocal := l.items[k]
		if !inBase || !inLocal {
			continue
		}
		remoteItem := r.items[k]
		for _, change := range e.compareFields(localItem, remoteItem) {
			bv := baseItem[change.Field]
			if Equal(change.LocalVal, bv) || Equal(change.RemoteVal, bv) {
				continue
			}
			cs.Conflicts = append(cs.Conflicts, Conflict{
				ItemKey:    k,
				Field:      change.Field,
				BaseVal:    bv,
				LocalVal:   change.LocalVal,
				RemoteVal:  change.RemoteVal,
				Resolution: ResolutionRemote,
			})
		}
	}
	return cs
}
