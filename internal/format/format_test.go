package format

import (
	"bytes"
	"encoding/binary"
	"errors"
	"math/rand"
	"testing"
)

func testHeader() Header {
	return Header{
		Iterations: 600000,
		Salt:       bytes.Repeat([]byte{0x11}, 32),
		IV:         bytes.Repeat([]byte{0x22}, 12),
	}
}

func TestSerializeVault_Layout(t *testing.T) {
	ciphertext := bytes.Repeat([]byte{0xCC}, 20)
	data, err := SerializeVault(testHeader(), ciphertext)
	if err != nil {
		t.Fatalf("SerializeVault failed: %v", err)
	}

	if len(data) != VaultHeaderSize+len(ciphertext) {
		t.Fatalf("length = %d, want %d", len(data), VaultHeaderSize+len(ciphertext))
	}
	if string(data[:7]) != "STVAULT" {
		t.Errorf("magic = %q", data[:7])
	}
	if data[7] != VaultVersion {
		t.Errorf("version = %d, want %d", data[7], VaultVersion)
	}
	if got := binary.BigEndian.Uint32(data[8:12]); got != 600000 {
		t.Errorf("iterations = %d, want 600000", got)
	}
	if !bytes.Equal(data[12:44], testHeader().Salt) {
		t.Error("salt not at offset 12")
	}
	if !bytes.Equal(data[44:56], testHeader().IV) {
		t.Error("iv not at offset 44")
	}
	if !bytes.Equal(data[56:], ciphertext) {
		t.Error("ciphertext not at offset 56")
	}
}

func TestSerializeManifest_Layout(t *testing.T) {
	ciphertext := bytes.Repeat([]byte{0xDD}, 16)
	data, err := SerializeManifest(testHeader(), ciphertext)
	if err != nil {
		t.Fatalf("SerializeManifest failed: %v", err)
	}

	if len(data) != ManifestHeaderSize+len(ciphertext) {
		t.Fatalf("length = %d, want %d", len(data), ManifestHeaderSize+len(ciphertext))
	}
	if string(data[:4]) != "STMF" {
		t.Errorf("magic = %q", data[:4])
	}
	if got := binary.BigEndian.Uint32(data[5:9]); got != 600000 {
		t.Errorf("iterations = %d, want 600000", got)
	}
	if !bytes.Equal(data[41:53], testHeader().IV) {
		t.Error("iv not at offset 41")
	}
}

func TestParse_RoundTrip(t *testing.T) {
	ciphertext := []byte("0123456789abcdef-and-more")

	vault, err := SerializeVault(testHeader(), ciphertext)
	if err != nil {
		t.Fatalf("SerializeVault failed: %v", err)
	}
	parsed, err := ParseVault(vault)
	if err != nil {
		t.Fatalf("ParseVault failed: %v", err)
	}
	if parsed.Iterations != 600000 || parsed.Version != VaultVersion {
		t.Errorf("header mismatch: %+v", parsed.Header)
	}
	if !bytes.Equal(parsed.Ciphertext, ciphertext) {
		t.Error("ciphertext mismatch")
	}

	manifest, err := SerializeManifest(testHeader(), ciphertext)
	if err != nil {
		t.Fatalf("SerializeManifest failed: %v", err)
	}
	mparsed, err := ParseManifest(manifest)
	if err != nil {
		t.Fatalf("ParseManifest failed: %v", err)
	}
	if !bytes.Equal(mparsed.Salt, testHeader().Salt) {
		t.Error("manifest salt mismatch")
	}
}

func TestParseVault_Rejections(t *testing.T) {
	valid, err := SerializeVault(testHeader(), make([]byte, 16))
	if err != nil {
		t.Fatalf("SerializeVault failed: %v", err)
	}
	manifest, err := SerializeManifest(testHeader(), make([]byte, 16))
	if err != nil {
		t.Fatalf("SerializeManifest failed: %v", err)
	}

	newer := append([]byte(nil), valid...)
	newer[7] = VaultVersion + 1

	zero := append([]byte(nil), valid...)
	zero[7] = 0

	costly := append([]byte(nil), valid...)
	binary.BigEndian.PutUint32(costly[8:12], 0xFFFFFFFF)

	noIterations := append([]byte(nil), valid...)
	binary.BigEndian.PutUint32(noIterations[8:12], 0)

	random := make([]byte, 200)
	rand.New(rand.NewSource(42)).Read(random)
	random[0] = 'X'

	tests := []struct {
		name string
		data []byte
		want error
	}{
		{name: "empty", data: nil, want: ErrFormat},
		{name: "header only", data: valid[:VaultHeaderSize], want: ErrFormat},
		{name: "header plus 15", data: valid[:VaultHeaderSize+15], want: ErrFormat},
		{name: "random bytes", data: random, want: ErrFormat},
		{name: "newer version", data: newer, want: ErrVersion},
		{name: "version zero", data: zero, want: ErrFormat},
		{name: "iterations above ceiling", data: costly, want: ErrFormat},
		{name: "zero iterations", data: noIterations, want: ErrFormat},
		{name: "manifest given", data: manifest, want: ErrCrossFormat},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseVault(tt.data)
			if !errors.Is(err, tt.want) {
				t.Errorf("ParseVault() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestParseManifest_RejectsVault(t *testing.T) {
	vault, err := SerializeVault(testHeader(), make([]byte, 32))
	if err != nil {
		t.Fatalf("SerializeVault failed: %v", err)
	}

	_, err = ParseManifest(vault)
	var cross *CrossFormatError
	if !errors.As(err, &cross) {
		t.Fatalf("ParseManifest() error = %v, want CrossFormatError", err)
	}
	if cross.Expected != KindManifest || cross.Found != KindVault {
		t.Errorf("cross = %+v", cross)
	}
	if cross.Error() != "expected a manifest file but found a vault file" {
		t.Errorf("message = %q", cross.Error())
	}
}

func TestVersionError_Message(t *testing.T) {
	data, err := SerializeManifest(testHeader(), make([]byte, 16))
	if err != nil {
		t.Fatalf("SerializeManifest failed: %v", err)
	}
	data[4] = 9

	_, err = ParseManifest(data)
	var verr *VersionError
	if !errors.As(err, &verr) {
		t.Fatalf("error = %v, want VersionError", err)
	}
	if verr.Version != 9 || verr.Supported != ManifestVersion {
		t.Errorf("VersionError = %+v", verr)
	}
}

func TestSerialize_BadHeader(t *testing.T) {
	h := testHeader()
	h.Salt = h.Salt[:10]
	if _, err := SerializeVault(h, nil); !errors.Is(err, ErrFormat) {
		t.Errorf("SerializeVault(bad salt) error = %v, want ErrFormat", err)
	}

	h = testHeader()
	h.IV = nil
	if _, err := SerializeManifest(h, nil); !errors.Is(err, ErrFormat) {
		t.Errorf("SerializeManifest(bad iv) error = %v, want ErrFormat", err)
	}
}

func TestDetect(t *testing.T) {
	tests := []struct {
		data []byte
		want Kind
		ok   bool
	}{
		{data: []byte("STVAULT"), want: KindVault, ok: true},
		{data: []byte("STMF"), want: KindManifest, ok: true},
		{data: []byte("ST"), ok: false},
		{data: []byte("PK\x03\x04"), ok: false},
	}
	for _, tt := range tests {
		got, ok := Detect(tt.data)
		if got != tt.want || ok != tt.ok {
			t.Errorf("Detect(%q) = %q, %v; want %q, %v", tt.data, got, ok, tt.want, tt.ok)
		}
	}
}
