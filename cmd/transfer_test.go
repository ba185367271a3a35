package cmd

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"testing"
	"time"

	"github.com/illarion/statevault/internal/crypto"
	"github.com/illarion/statevault/internal/diff"
	"github.com/illarion/statevault/internal/payload"
	"github.com/illarion/statevault/internal/restore"
	"github.com/illarion/statevault/internal/storage"
	"github.com/illarion/statevault/internal/transport"
)

var testPassword = []byte("correct horse battery")

// memTransport keeps objects in memory. Every upload is one second newer
// than the previous one.
type memTransport struct {
	objects map[string][]byte
	times   map[string]time.Time
	clock   time.Time
}

func newMemTransport() *memTransport {
	return &memTransport{
		objects: make(map[string][]byte),
		times:   make(map[string]time.Time),
		clock:   time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func (m *memTransport) Upload(_ context.Context, name string, data []byte) error {
	if err := transport.ValidateName(name); err != nil {
		return err
	}
	m.clock = m.clock.Add(time.Second)
	m.objects[name] = append([]byte(nil), data...)
	m.times[name] = m.clock
	return nil
}

func (m *memTransport) Download(_ context.Context, name string) ([]byte, error) {
	data, ok := m.objects[name]
	if !ok {
		return nil, transport.ErrNotFound
	}
	return append([]byte(nil), data...), nil
}

func (m *memTransport) List(context.Context) ([]transport.ObjectInfo, error) {
	var out []transport.ObjectInfo
	for name, data := range m.objects {
		out = append(out, transport.ObjectInfo{Name: name, Size: int64(len(data)), ModifiedAt: m.times[name]})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *memTransport) Delete(_ context.Context, name string) error {
	if _, ok := m.objects[name]; !ok {
		return transport.ErrNotFound
	}
	delete(m.objects, name)
	delete(m.times, name)
	return nil
}

func newTestOrchestrator(t *testing.T, records map[string]string, images map[string][]byte) *restore.Orchestrator {
	t.Helper()
	db, err := storage.Open(filepath.Join(t.TempDir(), "state.db"))
	if err != nil {
		t.Fatalf("Failed to open store: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := db.Initialize(); err != nil {
		t.Fatalf("Failed to initialize store: %v", err)
	}
	for k, v := range records {
		if err := db.Set(k, v); err != nil {
			t.Fatalf("Failed to set %s: %v", k, err)
		}
	}
	if len(images) > 0 {
		if err := db.Commit(storage.Changeset{Images: images}); err != nil {
			t.Fatalf("Failed to store images: %v", err)
		}
	}

	o, err := restore.New(db, crypto.Native{},
		restore.WithIterations(1000),
		restore.WithDiffer(diff.NewEngine()),
		restore.WithOrigin("test", "device"),
	)
	if err != nil {
		t.Fatalf("Failed to create orchestrator: %v", err)
	}
	return o
}

// export runs a full-scope export through uploadExport.
func export(t *testing.T, tr transport.Transport, o *restore.Orchestrator, withImages bool) *payload.Manifest {
	t.Helper()
	ctx := context.Background()

	art, err := o.Export(ctx, testPassword, payload.ScopeFull)
	if err != nil {
		t.Fatalf("Export failed: %v", err)
	}
	var images []byte
	if withImages {
		imgArt, err := o.ExportImages(ctx, testPassword)
		if err != nil {
			t.Fatalf("ExportImages failed: %v", err)
		}
		images = imgArt.Data
	}

	m, name, err := uploadExport(ctx, tr, o, testPassword, art.Meta, art.Data, images)
	if err != nil {
		t.Fatalf("uploadExport failed: %v", err)
	}
	if filepath.Ext(name) != ManifestSuffix {
		t.Errorf("manifest name %q has no %s suffix", name, ManifestSuffix)
	}
	return m
}

func TestUploadExport_LatestPairsVaultAndImages(t *testing.T) {
	ctx := context.Background()
	tr := newMemTransport()
	o := newTestOrchestrator(t,
		map[string]string{"settings": `{"theme":"dark"}`},
		map[string][]byte{"card-1": []byte("png")})

	first := export(t, tr, o, true)
	if first.ImagesName == "" {
		t.Fatal("manifest does not name the image vault")
	}

	m, err := latestManifest(ctx, tr, o, testPassword)
	if err != nil {
		t.Fatalf("latestManifest failed: %v", err)
	}
	if m.VaultName != first.VaultName || m.ImagesName != first.ImagesName {
		t.Errorf("latest manifest = %+v, want %+v", m, first)
	}

	src, err := readLatestSource(ctx, tr, m, true)
	if err != nil {
		t.Fatalf("readLatestSource failed: %v", err)
	}
	if !bytes.Equal(src.vault, tr.objects[first.VaultName]) {
		t.Error("vault does not match the uploaded vault")
	}
	if !bytes.Equal(src.images, tr.objects[first.ImagesName]) {
		t.Error("images do not match the uploaded image vault")
	}

	dst := newTestOrchestrator(t, nil, nil)
	n, err := dst.ImportImages(ctx, src.images, testPassword)
	if err != nil {
		t.Fatalf("ImportImages failed: %v", err)
	}
	if n != 1 {
		t.Errorf("imported %d images, want 1", n)
	}
}

func TestReadLatestSource_NewerExportWithoutImages(t *testing.T) {
	ctx := context.Background()
	tr := newMemTransport()
	o := newTestOrchestrator(t,
		map[string]string{"settings": `{"theme":"dark"}`},
		map[string][]byte{"card-1": []byte("png")})

	export(t, tr, o, true)
	second := export(t, tr, o, false)

	m, err := latestManifest(ctx, tr, o, testPassword)
	if err != nil {
		t.Fatalf("latestManifest failed: %v", err)
	}
	if m.VaultName != second.VaultName {
		t.Errorf("latest vault = %s, want %s", m.VaultName, second.VaultName)
	}

	// The older image vault must not be paired with the newer vault.
	if _, err := readLatestSource(ctx, tr, m, true); !errors.Is(err, transport.ErrNotFound) {
		t.Errorf("readLatestSource with images error = %v, want ErrNotFound", err)
	}

	src, err := readLatestSource(ctx, tr, m, false)
	if err != nil {
		t.Fatalf("readLatestSource failed: %v", err)
	}
	if src.images != nil {
		t.Error("expected no images")
	}
}

func TestLatestManifest_FallsBackToNewestVault(t *testing.T) {
	ctx := context.Background()
	tr := newMemTransport()
	o := newTestOrchestrator(t, map[string]string{"settings": `{"theme":"dark"}`}, nil)

	if err := tr.Upload(ctx, "old"+VaultSuffix, []byte("old")); err != nil {
		t.Fatal(err)
	}
	if err := tr.Upload(ctx, "new"+VaultSuffix, []byte("new")); err != nil {
		t.Fatal(err)
	}

	m, err := latestManifest(ctx, tr, o, testPassword)
	if err != nil {
		t.Fatalf("latestManifest failed: %v", err)
	}
	if m.VaultName != "new"+VaultSuffix || m.ImagesName != "" {
		t.Errorf("fallback manifest = %+v", m)
	}

	if _, err := latestManifest(ctx, newMemTransport(), o, testPassword); !errors.Is(err, transport.ErrNotFound) {
		t.Errorf("empty transport error = %v, want ErrNotFound", err)
	}
}

func TestLatestManifest_WrongPassword(t *testing.T) {
	ctx := context.Background()
	tr := newMemTransport()
	o := newTestOrchestrator(t, map[string]string{"settings": `{"theme":"dark"}`}, nil)
	export(t, tr, o, false)

	if _, err := latestManifest(ctx, tr, o, []byte("wrong password here")); !errors.Is(err, crypto.ErrAuthentication) {
		t.Errorf("latestManifest error = %v, want ErrAuthentication", err)
	}
}

func TestReadFileSource(t *testing.T) {
	dir := t.TempDir()
	vault := filepath.Join(dir, "backup"+VaultSuffix)
	if err := os.WriteFile(vault, []byte("vault"), 0600); err != nil {
		t.Fatal(err)
	}

	src, err := readFileSource(vault, false)
	if err != nil {
		t.Fatalf("readFileSource failed: %v", err)
	}
	if string(src.vault) != "vault" || src.images != nil {
		t.Errorf("unexpected source %+v", src)
	}

	if _, err := readFileSource(vault, true); err == nil {
		t.Error("expected an error without an image vault next to the file")
	}

	if err := os.WriteFile(imagesPath(vault), []byte("images"), 0600); err != nil {
		t.Fatal(err)
	}
	src, err = readFileSource(vault, true)
	if err != nil {
		t.Fatalf("readFileSource with images failed: %v", err)
	}
	if string(src.images) != "images" {
		t.Errorf("images = %q", src.images)
	}

	if _, err := readFileSource(filepath.Join(dir, "missing"+VaultSuffix), false); !os.IsNotExist(err) {
		t.Errorf("missing file error = %v", err)
	}
}

func TestImagesPath(t *testing.T) {
	tests := map[string]string{
		"backup" + VaultSuffix:   "backup" + ImagesSuffix,
		"/tmp/a.b" + VaultSuffix: "/tmp/a.b" + ImagesSuffix,
		"backup.bin":             "backup.bin" + ImagesSuffix,
	}
	for in, want := range tests {
		if got := imagesPath(in); got != want {
			t.Errorf("imagesPath(%q) = %q, want %q", in, got, want)
		}
	}
}
