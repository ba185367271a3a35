package payload

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/illarion/statevault/internal/storage"
)

type memStore struct {
	records map[string]string
	images  map[string][]byte
	commits []storage.Changeset
	fail    error
}

func newMemStore() *memStore {
	return &memStore{records: map[string]string{}, images: map[string][]byte{}}
}

func (m *memStore) Get(key string) (string, bool, error) {
	v, ok := m.records[key]
	return v, ok, nil
}

func (m *memStore) ForEachImage(fn func(string, []byte) error) error {
	for id, data := range m.images {
		if err := fn(id, data); err != nil {
			return err
		}
	}
	return nil
}

func (m *memStore) Commit(c storage.Changeset) error {
	if m.fail != nil {
		return m.fail
	}
	m.commits = append(m.commits, c)
	for k, v := range c.Records {
		if v == nil {
			delete(m.records, k)
		} else {
			m.records[k] = *v
		}
	}
	for k, v := range c.Images {
		m.images[k] = v
	}
	return nil
}

var fixedClock = func() time.Time { return time.Date(2026, 3, 1, 12, 30, 45, 123, time.FixedZone("x", 3600)) }

func newCollector(store Reader) *Collector {
	return &Collector{
		Store:      store,
		Registry:   DefaultRegistry(),
		AppVersion: "2.4.0",
		Origin:     "device-1",
		Clock:      fixedClock,
	}
}

func TestRegistryScopes(t *testing.T) {
	reg := DefaultRegistry()

	assert.Equal(t,
		[]string{"collection", "settings", "watchlist", "tags", "api_token", "cloud_credentials", "price_cache"},
		reg.Keys(ScopeFull))
	assert.Equal(t, []string{"collection", "settings", "watchlist", "tags"}, reg.Keys(ScopeSync))
	assert.Empty(t, reg.Keys(ScopeImages))

	key, ok := reg.First(KindCollection)
	assert.True(t, ok)
	assert.Equal(t, "collection", key)
	key, ok = reg.First(KindSettings)
	assert.True(t, ok)
	assert.Equal(t, "settings", key)
}

func TestRegistryReplace(t *testing.T) {
	reg := NewRegistry(
		RecordSpec{Key: "a"},
		RecordSpec{Key: "b"},
		RecordSpec{Key: "a", Secret: true},
	)
	assert.Equal(t, []string{"a", "b"}, reg.Keys(ScopeFull))
	assert.Equal(t, []string{"b"}, reg.Keys(ScopeSync))
}

func TestParseScope(t *testing.T) {
	s, err := ParseScope("sync")
	require.NoError(t, err)
	assert.Equal(t, ScopeSync, s)

	_, err = ParseScope("images")
	assert.Error(t, err)
	_, err = ParseScope("")
	assert.Error(t, err)
}

func TestCollect(t *testing.T) {
	store := newMemStore()
	store.records["collection"] = `[{"uuid":"a"}]`
	store.records["api_token"] = "secret"
	store.records["unknown"] = "ignored"

	full, err := newCollector(store).Collect(ScopeFull)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"collection": `[{"uuid":"a"}]`, "api_token": "secret"}, full.Data)
	assert.Equal(t, ScopeFull, full.Meta.Scope)
	assert.Equal(t, "2.4.0", full.Meta.AppVersion)
	assert.Equal(t, "device-1", full.Meta.ExportOrigin)
	assert.Equal(t, time.Date(2026, 3, 1, 11, 30, 45, 0, time.UTC), full.Meta.ExportTimestamp)
	assert.Equal(t, Checksum(full.Data), full.Meta.Checksum)
	assert.Len(t, full.Meta.Checksum, 16)

	sync, err := newCollector(store).Collect(ScopeSync)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"collection": `[{"uuid":"a"}]`}, sync.Data)
}

func TestCollectEmpty(t *testing.T) {
	store := newMemStore()
	store.records["api_token"] = "secret"

	_, err := newCollector(store).Collect(ScopeSync)
	assert.ErrorIs(t, err, ErrEmptyPayload)
}

func TestChecksum(t *testing.T) {
	a := Checksum(map[string]string{"x": "1", "y": "2"})
	b := Checksum(map[string]string{"y": "2", "x": "1"})
	assert.Equal(t, a, b)

	// Separator prevents boundary shifts from colliding
	assert.NotEqual(t, Checksum(map[string]string{"ab": "c"}), Checksum(map[string]string{"a": "bc"}))

	p := &VaultPayload{Data: map[string]string{"x": "1"}}
	p.Meta.Checksum = Checksum(p.Data)
	assert.NoError(t, VerifyChecksum(p))

	p.Data["x"] = "2"
	assert.ErrorIs(t, VerifyChecksum(p), ErrChecksumMismatch)
}

func TestEncodeDecode(t *testing.T) {
	store := newMemStore()
	store.records["settings"] = `{"theme":"dark"}`
	p, err := newCollector(store).Collect(ScopeSync)
	require.NoError(t, err)

	doc, err := p.Encode()
	require.NoError(t, err)
	assert.Contains(t, string(doc), `"exportTimestamp":"2026-03-01T11:30:45Z"`)

	decoded, err := Decode(doc)
	require.NoError(t, err)
	assert.Equal(t, p.Data, decoded.Data)
	assert.Equal(t, p.Meta.Checksum, decoded.Meta.Checksum)
	assert.NoError(t, VerifyChecksum(decoded))
}

func TestDecodeRejects(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"not json", `{`},
		{"missing data", `{"meta":{"appVersion":"1","exportTimestamp":"2026-01-01T00:00:00Z","scope":"full","checksum":""}}`},
		{"non-string record", `{"meta":{"appVersion":"1","exportTimestamp":"2026-01-01T00:00:00Z","scope":"full","checksum":""},"data":{"a":1}}`},
		{"bad scope", `{"meta":{"appVersion":"1","exportTimestamp":"2026-01-01T00:00:00Z","scope":"all","checksum":""},"data":{}}`},
		{"bad timestamp", `{"meta":{"appVersion":"1","exportTimestamp":"yesterday","scope":"full","checksum":""},"data":{}}`},
		{"image scope", `{"meta":{"appVersion":"1","exportTimestamp":"2026-01-01T00:00:00Z","scope":"images","checksum":""},"data":{}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode([]byte(tt.doc))
			assert.ErrorIs(t, err, ErrInvalidPayload)
		})
	}
}

func TestRestoreAllowList(t *testing.T) {
	store := newMemStore()
	p := &VaultPayload{Data: map[string]string{
		"settings":  `{"theme":"light"}`,
		"tags":      `["rare"]`,
		"evil_key":  "injected",
		"__proto__": "x",
	}}

	result, err := Restore(store, DefaultRegistry(), p)
	require.NoError(t, err)
	assert.Equal(t, []string{"settings", "tags"}, result.Written)
	assert.Equal(t, []string{"__proto__", "evil_key"}, result.Ignored)

	assert.Len(t, store.commits, 1)
	assert.Equal(t, map[string]string{"settings": `{"theme":"light"}`, "tags": `["rare"]`}, store.records)
}

func TestRestoreCommitFailure(t *testing.T) {
	store := newMemStore()
	store.fail = errors.New("disk full")

	_, err := Restore(store, DefaultRegistry(), &VaultPayload{Data: map[string]string{"tags": "[]"}})
	assert.Error(t, err)
	assert.Empty(t, store.records)
}

func TestImagesRoundTrip(t *testing.T) {
	store := newMemStore()
	rec := ImageRecord{UUID: "coin-1", Obverse: []byte{0xff, 0xd8}, ObverseType: "image/jpeg", CachedAt: 1700000000000, Size: 2}
	data, err := json.Marshal(rec)
	require.NoError(t, err)
	store.images["coin-1"] = data

	p, err := newCollector(store).CollectImages(store)
	require.NoError(t, err)
	assert.Equal(t, ScopeImages, p.Meta.Scope)
	require.Len(t, p.Records, 1)
	assert.Equal(t, rec, p.Records[0])
	assert.Equal(t, ImageChecksum(p.Records), p.Meta.Checksum)

	doc, err := p.Encode()
	require.NoError(t, err)
	decoded, err := DecodeImages(doc)
	require.NoError(t, err)
	assert.Equal(t, p.Records, decoded.Records)

	target := newMemStore()
	n, err := RestoreImages(target, decoded)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.JSONEq(t, string(data), string(target.images["coin-1"]))
}

func TestCollectImagesEmpty(t *testing.T) {
	store := newMemStore()
	_, err := newCollector(store).CollectImages(store)
	assert.ErrorIs(t, err, ErrEmptyPayload)
}

func TestManifestRoundTrip(t *testing.T) {
	m := &Manifest{
		Version:         ManifestVersion,
		DeviceID:        "device-1",
		VaultName:       "vault-20260301T113045Z.stvault",
		Scope:           ScopeSync,
		Checksum:        "0123456789abcdef",
		Size:            4096,
		ExportTimestamp: time.Date(2026, 3, 1, 11, 30, 45, 0, time.UTC),
	}
	doc, err := m.Encode()
	require.NoError(t, err)

	decoded, err := DecodeManifest(doc)
	require.NoError(t, err)
	assert.Equal(t, m, decoded)

	_, err = DecodeManifest([]byte(`{"version":1}`))
	assert.ErrorIs(t, err, ErrInvalidPayload)
}
