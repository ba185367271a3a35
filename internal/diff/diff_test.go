package diff

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func byKeyField(item Item) string { return fmt.Sprint(item["key"]) }

func TestEqual(t *testing.T) {
	tests := []struct {
		name string
		a, b any
		want bool
	}{
		{"numeric string vs float", "26.73", 26.73, true},
		{"float vs numeric string", 26.73, "26.73", true},
		{"json number vs float", json.Number("3"), 3.0, true},
		{"json number vs string", json.Number("1.50"), "1.5", true},
		{"int vs float", 2, 2.0, true},
		{"padded numeric string", " 5 ", 5, true},
		{"different numbers", 1, 2, false},
		{"non-numeric string vs number", "abc", 0, false},
		{"empty string vs zero", "", 0, false},
		{"strings compare textually", "1.0", "1", false},
		{"equal strings", "EUR", "EUR", true},
		{"nil vs nil", nil, nil, true},
		{"nil vs value", nil, "", false},
		{"bools", true, true, true},
		{"bool vs string", true, "true", false},
		{"lists element-wise", []any{json.Number("1"), "b"}, []any{"1", "b"}, true},
		{"lists differ in length", []any{1}, []any{1, 2}, false},
		{"lists differ in order", []any{1, 2}, []any{2, 1}, false},
		{"maps", map[string]any{"a": "2"}, map[string]any{"a": 2.0}, true},
		{"maps differ", map[string]any{"a": 1}, map[string]any{"b": 1}, false},
		{"item vs map", Item{"a": 1}, map[string]any{"a": "1"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Equal(tt.a, tt.b))
		})
	}
}

func TestItemKey(t *testing.T) {
	tests := []struct {
		name string
		item Item
		want string
	}{
		{"uuid wins", Item{"uuid": "abc", "id": 7, "name": "Penny"}, "uuid:abc"},
		{"numeric id", Item{"id": 7.0}, "id:7"},
		{"json number id", Item{"id": json.Number("7")}, "id:7"},
		{"string id", Item{"id": "7"}, "id:7"},
		{"empty uuid falls through", Item{"uuid": "", "id": "x"}, "id:x"},
		{"composite name", Item{"name": "  Morgan Dollar ", "year": json.Number("1921"), "country": "US", "denomination": "1 dollar"}, "name:morgan dollar|1921|US|1 dollar"},
		{"name only", Item{"name": "Penny"}, "name:penny|||"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ItemKey(tt.item))
		})
	}
}

func TestItemKeyIgnoresVolatileFields(t *testing.T) {
	a := Item{"metal": "silver", "weight": 26.73, "displayOrder": 1, "cachedValue": 30}
	b := Item{"weight": 26.73, "metal": "silver", "displayOrder": 9, "lastViewed": "2026-01-01"}
	assert.Equal(t, ItemKey(a), ItemKey(b))
	assert.Regexp(t, `^hash:[0-9a-f]{16}$`, ItemKey(a))

	c := Item{"metal": "gold", "weight": 26.73}
	assert.NotEqual(t, ItemKey(a), ItemKey(c))

	// Same name, different issue: no collision
	assert.NotEqual(t,
		ItemKey(Item{"name": "Penny", "year": 1950}),
		ItemKey(Item{"name": "Penny", "year": 1951}))
}

func TestCompareItemsScenario(t *testing.T) {
	e := NewEngine(WithKeyFunc(byKeyField))
	local := []Item{{"key": "A", "qty": 1}}
	remote := []Item{{"key": "A", "qty": 3}, {"key": "B", "qty": 1}}

	result := e.CompareItems(local, remote)

	assert.Equal(t, []Item{{"key": "B", "qty": 1}}, result.Added)
	require.Len(t, result.Modified, 1)
	assert.Equal(t, "A", result.Modified[0].Key)
	assert.Equal(t, Item{"key": "A", "qty": 3}, result.Modified[0].Item)
	assert.Equal(t, []FieldChange{{Field: "qty", LocalVal: 1, RemoteVal: 3}}, result.Modified[0].Changes)
	assert.Empty(t, result.Deleted)
	assert.Empty(t, result.Unchanged)
}

func TestCompareItemsLooseEquality(t *testing.T) {
	local, err := DecodeItems(`[{"uuid":"a","weight":"26.73","tags":["x",1]}]`)
	require.NoError(t, err)
	remote, err := DecodeItems(`[{"uuid":"a","weight":26.73,"tags":["x","1"],"displayOrder":4}]`)
	require.NoError(t, err)

	result := NewEngine().CompareItems(local, remote)
	assert.True(t, result.Empty())
	assert.Len(t, result.Unchanged, 1)
}

func TestCompareItemsFieldRemoved(t *testing.T) {
	result := NewEngine().CompareItems(
		[]Item{{"uuid": "a", "note": "old"}},
		[]Item{{"uuid": "a"}},
	)
	require.Len(t, result.Modified, 1)
	assert.Equal(t, []FieldChange{{Field: "note", LocalVal: "old", RemoteVal: nil}}, result.Modified[0].Changes)
}

func TestCompareItemsOrder(t *testing.T) {
	e := NewEngine(WithKeyFunc(byKeyField))
	local := []Item{{"key": "d2"}, {"key": "u"}, {"key": "d1"}}
	remote := []Item{{"key": "a2"}, {"key": "u"}, {"key": "a1"}}

	result := e.CompareItems(local, remote)
	assert.Equal(t, []Item{{"key": "a2"}, {"key": "a1"}}, result.Added)
	assert.Equal(t, []Item{{"key": "d2"}, {"key": "d1"}}, result.Deleted)
	assert.Equal(t, []Item{{"key": "u"}}, result.Unchanged)
}

func TestCompareItemsDuplicateKeys(t *testing.T) {
	e := NewEngine(WithKeyFunc(byKeyField))
	local := []Item{{"key": "A", "qty": 1}}
	remote := []Item{{"key": "A", "qty": 2}, {"key": "A", "qty": 1}}

	result := e.CompareItems(local, remote)
	assert.Equal(t, 1, result.Total())
	assert.Len(t, result.Unchanged, 1)
}

func TestCompareItemsIdempotence(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 50; i++ {
		items := randomItems(rng, 20)
		result := NewEngine(WithKeyFunc(byKeyField)).CompareItems(items, items)
		assert.True(t, result.Empty())
		assert.Equal(t, distinctKeys(items), len(result.Unchanged))
	}
}

func TestCompareItemsCompleteness(t *testing.T) {
	e := NewEngine(WithKeyFunc(byKeyField))
	rng := rand.New(rand.NewSource(42))

	for i := 0; i < 200; i++ {
		local := randomItems(rng, 15)
		remote := randomItems(rng, 15)
		result := e.CompareItems(local, remote)

		union := map[string]bool{}
		for _, it := range append(append([]Item{}, local...), remote...) {
			union[byKeyField(it)] = true
		}
		require.Equal(t, len(union), result.Total())

		seen := map[string]bool{}
		mark := func(k string) {
			require.False(t, seen[k], "key %s in more than one bucket", k)
			seen[k] = true
		}
		for _, it := range result.Added {
			mark(byKeyField(it))
		}
		for _, m := range result.Modified {
			mark(m.Key)
		}
		for _, it := range result.Deleted {
			mark(byKeyField(it))
		}
		for _, it := range result.Unchanged {
			mark(byKeyField(it))
		}
		require.Len(t, seen, len(union))
	}
}

func TestCompareSettingsScenario(t *testing.T) {
	d := NewEngine().CompareSettings(
		map[string]any{"theme": "dark"},
		map[string]any{"theme": "dark", "currency": "EUR"},
	)
	assert.Equal(t, []SettingChange{{Key: "currency", LocalVal: nil, RemoteVal: "EUR", Missing: true}}, d.Changed)
}

func TestCompareSettingsRemoteDriven(t *testing.T) {
	d := NewEngine().CompareSettings(
		map[string]any{"theme": "dark", "onlyLocal": true, "fontSize": "14"},
		map[string]any{"theme": "light", "fontSize": 14, "alerts": false},
	)
	assert.Equal(t, []SettingChange{
		{Key: "alerts", RemoteVal: false, Missing: true},
		{Key: "theme", LocalVal: "dark", RemoteVal: "light"},
	}, d.Changed)

	assert.True(t, NewEngine().CompareSettings(map[string]any{"a": 1}, nil).Empty())
}

func TestDetectConflicts(t *testing.T) {
	e := NewEngine()
	base := []Item{{"uuid": "a", "qty": 1, "note": "n"}, {"uuid": "b", "qty": 1}}
	local := []Item{{"uuid": "a", "qty": 2, "note": "mine"}, {"uuid": "b", "qty": 5}}
	remote := []Item{{"uuid": "a", "qty": 3, "note": "mine"}, {"uuid": "b", "qty": 1}, {"uuid": "c"}}

	cs := e.DetectConflicts(base, local, remote)
	require.Len(t, cs.Conflicts, 1)
	assert.Equal(t, Conflict{
		ItemKey:    "uuid:a",
		Field:      "qty",
		BaseVal:    1,
		LocalVal:   2,
		RemoteVal:  3,
		Resolution: ResolutionRemote,
	}, cs.Conflicts[0])

	assert.True(t, cs.Resolve("uuid:a", "qty", ResolutionLocal))
	assert.False(t, cs.Resolve("uuid:b", "qty", ResolutionLocal))
	c, ok := cs.Lookup("uuid:a", "qty")
	assert.True(t, ok)
	assert.Equal(t, ResolutionLocal, c.Resolution)

	assert.True(t, e.DetectConflicts(nil, local, remote).Empty())
}

func TestDecodeRoundTrip(t *testing.T) {
	items, err := DecodeItems(`[{"uuid":"a","price":12.50,"id":12345678901234567}]`)
	require.NoError(t, err)
	assert.Equal(t, json.Number("12.50"), items[0]["price"])

	out, err := EncodeItems(items)
	require.NoError(t, err)
	assert.Equal(t, `[{"id":12345678901234567,"price":12.50,"uuid":"a"}]`, out)

	empty, err := EncodeItems(nil)
	require.NoError(t, err)
	assert.Equal(t, "[]", empty)

	_, err = DecodeItems(`{"not":"a list"}`)
	assert.Error(t, err)

	settings, err := DecodeSettings("")
	require.NoError(t, err)
	assert.Empty(t, settings)
}

func TestClone(t *testing.T) {
	orig := Item{"tags": []any{"a"}, "meta": map[string]any{"k": "v"}}
	c := orig.Clone()
	c["tags"].([]any)[0] = "b"
	c["meta"].(map[string]any)["k"] = "w"
	assert.Equal(t, "a", orig["tags"].([]any)[0])
	assert.Equal(t, "v", orig["meta"].(map[string]any)["k"])
}

func randomItems(rng *rand.Rand, max int) []Item {
	n := rng.Intn(max)
	items := make([]Item, 0, n)
	for i := 0; i < n; i++ {
		items = append(items, Item{
			"key": fmt.Sprintf("k%d", rng.Intn(max)),
			"qty": rng.Intn(3),
		})
	}
	return items
}

func distinctKeys(items []Item) int {
	keys := map[string]bool{}
	for _, it := range items {
		keys[byKeyField(it)] = true
	}
	return len(keys)
}
