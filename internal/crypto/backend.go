package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	stdpbkdf2 "crypto/pbkdf2"
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"io"
	"runtime"

	"golang.org/x/crypto/pbkdf2"
	"golang.org/x/sys/cpu"
)

// Backend performs key derivation and authenticated encryption.
type Backend interface {
	// Name identifies the implementation for logs and status output.
	Name() string

	// RandomBytes returns n cryptographically secure random bytes.
	RandomBytes(n int) ([]byte, error)

	// DeriveKey stretches a password with PBKDF2-HMAC-SHA256.
	DeriveKey(password, salt []byte, iterations uint32) (*Key, error)

	// Encrypt seals plaintext with AES-256-GCM, appending the tag.
	Encrypt(plaintext []byte, key *Key, iv []byte) ([]byte, error)

	// Decrypt opens ciphertext+tag. Any tag mismatch yields ErrAuthentication.
	Decrypt(ciphertext []byte, key *Key, iv []byte) ([]byte, error)
}

// Native uses the standard library PBKDF2 and the platform's accelerated GCM.
type Native struct {
	Rand io.Reader // nil means crypto/rand
}

// Software uses x/crypto PBKDF2 and the generic GCM implementation.
type Software struct {
	Rand io.Reader // nil means crypto/rand
}

var (
	_ Backend = Native{}
	_ Backend = Software{}
)

// Resolve selects a backend once for the lifetime of the process and checks
// that a secure random source works. Native is chosen when the CPU has AES
// and carry-less multiply instructions.
func Resolve() (Backend, error) {
	var b Backend = Software{}
	if hasHardwareGCM() {
		b = Native{}
	}
	if _, err := b.RandomBytes(1); err != nil {
		return nil, err
	}
	return b, nil
}

func hasHardwareGCM() bool {
	switch runtime.GOARCH {
	case "amd64":
		return cpu.X86.HasAES && cpu.X86.HasPCLMULQDQ
	case "arm64":
		return cpu.ARM64.HasAES && cpu.ARM64.HasPMULL
	}
	return false
}

func (Native) Name() string   { return "native" }
func (Software) Name() string { return "software" }

func (n Native) RandomBytes(size int) ([]byte, error) {
	return readRandom(n.Rand, size)
}

func (s Software) RandomBytes(size int) ([]byte, error) {
	return readRandom(s.Rand, size)
}

func (Native) DeriveKey(password, salt []byte, iterations uint32) (*Key, error) {
	if err := checkKDFParams(salt, iterations); err != nil {
		return nil, err
	}
	raw, err := stdpbkdf2.Key(sha256.New, string(password), salt, int(iterations), KeySize)
	if err != nil {
		return nil, fmt.Errorf("failed to derive key: %w", err)
	}
	return NewKey(raw)
}

func (Software) DeriveKey(password, salt []byte, iterations uint32) (*Key, error) {
	if err := checkKDFParams(salt, iterations); err != nil {
		return nil, err
	}
	return NewKey(pbkdf2.Key(password, salt, int(iterations), KeySize, sha256.New))
}

func (Native) Encrypt(plaintext []byte, key *Key, iv []byte) ([]byte, error) {
	gcm, err := newGCM(key, iv, false)
	if err != nil {
		return nil, err
	}
	return gcm.Seal(nil, iv, plaintext, nil), nil
}

func (Software) Encrypt(plaintext []byte, key *Key, iv []byte) ([]byte, error) {
	gcm, err := newGCM(key, iv, true)
	if err != nil {
		return nil, err
	}
	return gcm.Seal(nil, iv, plaintext, nil), nil
}

func (Native) Decrypt(ciphertext []byte, key *Key, iv []byte) ([]byte, error) {
	return open(ciphertext, key, iv, false)
}

func (Software) Decrypt(ciphertext []byte, key *Key, iv []byte) ([]byte, error) {
	return open(ciphertext, key, iv, true)
}

func readRandom(r io.Reader, n int) ([]byte, error) {
	if r == nil {
		r = rand.Reader
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(r, b); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoBackend, err)
	}
	return b, nil
}

func checkKDFParams(salt []byte, iterations uint32) error {
	if len(salt) != SaltSize {
		return fmt.Errorf("%w: got %d bytes, want %d", ErrInvalidSalt, len(salt), SaltSize)
	}
	if iterations == 0 || iterations > MaxIterations {
		return fmt.Errorf("%w: %d", ErrInvalidIterations, iterations)
	}
	return nil
}

// newGCM builds AES-256-GCM. When generic is set the block is hidden behind
// the plain cipher.Block interface, which keeps crypto/cipher off the
// assembly fast path.
func newGCM(key *Key, iv []byte, generic bool) (cipher.AEAD, error) {
	raw := key.Bytes()
	if len(raw) != KeySize {
		return nil, ErrInvalidKey
	}
	if len(iv) != IVSize {
		return nil, fmt.Errorf("%w: got %d bytes, want %d", ErrInvalidIV, len(iv), IVSize)
	}

	block, err := aes.NewCipher(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	if generic {
		block = struct{ cipher.Block }{block}
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}
	return gcm, nil
}

func open(ciphertext []byte, key *Key, iv []byte, generic bool) ([]byte, error) {
	if len(ciphertext) < TagSize {
		return nil, ErrAuthentication
	}
	gcm, err := newGCM(key, iv, generic)
	if err != nil {
		return nil, err
	}

	plaintext, err := gcm.Open(nil, iv, ciphertext, nil)
	if err != nil {
		return nil, ErrAuthentication
	}
	return plaintext, nil
}
