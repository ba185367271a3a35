// Package envelope seals plaintext payloads into vault and manifest files
// and opens them again.
package envelope

import (
	"errors"
	"fmt"

	"github.com/illarion/statevault/internal/crypto"
	"github.com/illarion/statevault/internal/format"
)

// MinPasswordLength is the shortest password accepted for new files.
const MinPasswordLength = 8

var ErrPasswordTooShort = fmt.Errorf("password must be at least %d characters", MinPasswordLength)

var errNoPassword = errors.New("password required")

type serializer func(format.Header, []byte) ([]byte, error)

type parser func([]byte) (*format.File, error)

// SealVault encrypts plaintext into a vault file with fresh salt and iv.
func SealVault(b crypto.Backend, password, plaintext []byte, iterations uint32) ([]byte, error) {
	return seal(b, password, plaintext, iterations, format.SerializeVault)
}

// OpenVault parses a vault file and decrypts it with the header's parameters.
func OpenVault(b crypto.Backend, password, data []byte) ([]byte, error) {
	return openWith(b, password, data, format.ParseVault)
}

// SealManifest encrypts plaintext into a manifest file.
func SealManifest(b crypto.Backend, password, plaintext []byte, iterations uint32) ([]byte, error) {
	return seal(b, password, plaintext, iterations, format.SerializeManifest)
}

// OpenManifest parses a manifest file and decrypts it.
func OpenManifest(b crypto.Backend, password, data []byte) ([]byte, error) {
	return openWith(b, password, data, format.ParseManifest)
}

// DeriveKey derives the file key from a password and a parsed header.
// The iteration count always comes from the header.
func DeriveKey(b crypto.Backend, password []byte, h format.Header) (*crypto.Key, error) {
	if len(password) == 0 {
		return nil, errNoPassword
	}
	return b.DeriveKey(password, h.Salt, h.Iterations)
}

// Decrypt opens the ciphertext of a parsed file with an already derived key.
func Decrypt(b crypto.Backend, key *crypto.Key, f *format.File) ([]byte, error) {
	return b.Decrypt(f.Ciphertext, key, f.IV)
}

func seal(b crypto.Backend, password, plaintext []byte, iterations uint32, write serializer) ([]byte, error) {
	if len(password) < MinPasswordLength {
		return nil, ErrPasswordTooShort
	}
	if iterations == 0 {
		iterations = crypto.DefaultIterations
	}

	salt, err := b.RandomBytes(crypto.SaltSize)
	if err != nil {
		return nil, fmt.Errorf("failed to generate salt: %w", err)
	}
	iv, err := b.RandomBytes(crypto.IVSize)
	if err != nil {
		return nil, fmt.Errorf("failed to generate iv: %w", err)
	}

	key, err := b.DeriveKey(password, salt, iterations)
	if err != nil {
		return nil, fmt.Errorf("failed to derive key: %w", err)
	}
	defer key.Destroy()

	ciphertext, err := b.Encrypt(plaintext, key, iv)
	if err != nil {
		return nil, fmt.Errorf("failed to encrypt: %w", err)
	}

	return write(format.Header{Iterations: iterations, Salt: salt, IV: iv}, ciphertext)
}

func openWith(b crypto.Backend, password, data []byte, read parser) ([]byte, error) {
	f, err := read(data)
	if err != nil {
		return nil, err
	}

	key, err := DeriveKey(b, password, f.Header)
	if err != nil {
		return nil, err
	}
	defer key.Destroy()

	return Decrypt(b, key, f)
}
