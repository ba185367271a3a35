package envelope

import (
	"bytes"
	"errors"
	"testing"

	"github.com/illarion/statevault/internal/crypto"
	"github.com/illarion/statevault/internal/format"
)

const testIterations = 1000

func TestSealOpenVault_RoundTrip(t *testing.T) {
	b := crypto.Software{}
	payloads := [][]byte{
		{},
		[]byte(`{"meta":{"scope":"full"},"data":{}}`),
		bytes.Repeat([]byte("x"), 64*1024),
	}

	for _, p := range payloads {
		sealed, err := SealVault(b, []byte("password123"), p, testIterations)
		if err != nil {
			t.Fatalf("SealVault failed: %v", err)
		}
		opened, err := OpenVault(b, []byte("password123"), sealed)
		if err != nil {
			t.Fatalf("OpenVault failed: %v", err)
		}
		if !bytes.Equal(opened, p) {
			t.Errorf("round trip mismatch for %d-byte payload", len(p))
		}
	}
}

func TestOpenVault_WrongPassword(t *testing.T) {
	b := crypto.Native{}
	sealed, err := SealVault(b, []byte("password123"), []byte("data"), testIterations)
	if err != nil {
		t.Fatalf("SealVault failed: %v", err)
	}

	for _, pw := range []string{"password124", "Password123", "password1234", "x"} {
		if _, err := OpenVault(b, []byte(pw), sealed); !errors.Is(err, crypto.ErrAuthentication) {
			t.Errorf("OpenVault(%q) error = %v, want ErrAuthentication", pw, err)
		}
	}
}

func TestOpenVault_TamperedCiphertext(t *testing.T) {
	b := crypto.Native{}
	sealed, err := SealVault(b, []byte("password123"), []byte{}, testIterations)
	if err != nil {
		t.Fatalf("SealVault failed: %v", err)
	}
	sealed[format.VaultHeaderSize] ^= 0x80

	if _, err := OpenVault(b, []byte("password123"), sealed); !errors.Is(err, crypto.ErrAuthentication) {
		t.Errorf("OpenVault(tampered) error = %v, want ErrAuthentication", err)
	}
}

func TestOpenVault_UsesHeaderIterations(t *testing.T) {
	b := crypto.Software{}
	sealed, err := SealVault(b, []byte("password123"), []byte("old file"), 1)
	if err != nil {
		t.Fatalf("SealVault failed: %v", err)
	}
	opened, err := OpenVault(b, []byte("password123"), sealed)
	if err != nil {
		t.Fatalf("OpenVault failed: %v", err)
	}
	if string(opened) != "old file" {
		t.Errorf("opened = %q", opened)
	}
}

func TestManifest_CrossFormat(t *testing.T) {
	b := crypto.Native{}
	manifest, err := SealManifest(b, []byte("password123"), []byte(`{"version":1}`), testIterations)
	if err != nil {
		t.Fatalf("SealManifest failed: %v", err)
	}
	vault, err := SealVault(b, []byte("password123"), []byte(`{}`), testIterations)
	if err != nil {
		t.Fatalf("SealVault failed: %v", err)
	}

	if _, err := OpenVault(b, []byte("password123"), manifest); !errors.Is(err, format.ErrCrossFormat) {
		t.Errorf("OpenVault(manifest) error = %v, want ErrCrossFormat", err)
	}
	if _, err := OpenManifest(b, []byte("password123"), vault); !errors.Is(err, format.ErrCrossFormat) {
		t.Errorf("OpenManifest(vault) error = %v, want ErrCrossFormat", err)
	}

	opened, err := OpenManifest(b, []byte("password123"), manifest)
	if err != nil {
		t.Fatalf("OpenManifest failed: %v", err)
	}
	if string(opened) != `{"version":1}` {
		t.Errorf("manifest = %q", opened)
	}
}

func TestSeal_ShortPassword(t *testing.T) {
	if _, err := SealVault(crypto.Native{}, []byte("short"), nil, testIterations); !errors.Is(err, ErrPasswordTooShort) {
		t.Errorf("SealVault(short password) error = %v, want ErrPasswordTooShort", err)
	}
}
