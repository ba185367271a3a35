package diff

import "sort"

// SettingChange is a remote setting that is absent locally or differs.
type SettingChange struct {
	Key       string `json:"key" yaml:"key"`
	LocalVal  any    `json:"localVal" yaml:"localVal"`
	RemoteVal any    `json:"remoteVal" yaml:"remoteVal"`
	Missing   bool   `json:"missing,omitempty" yaml:"missing,omitempty"` // absent locally
}

// SettingsDiff lists changed settings sorted by key.
type SettingsDiff struct {
	Changed []SettingChange `json:"changed" yaml:"changed"`
}

// Empty reports whether no setting changed.
func (d SettingsDiff) Empty() bool {
	return len(d.Changed) == 0
}

// CompareSettings reports every remote key that is absent from local or
// unequal. Keys only present locally are not reported: a backup may omit
// settings its device never touched.
func (e *Engine) CompareSettings(local, remote map[string]any) SettingsDiff {
	keys := make([]string, 0, len(remote))
	for k := range remote {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var d SettingsDiff
	for _, k := range keys {
		lv, ok := local[k]
		if ok && Equal(lv, remote[k]) {
			continue
		}
		d.Changed = append(d.Changed, SettingChange{Key: k, LocalVal: lv, RemoteVal: remote[k], Missing: !ok})
	}
	return d
}
