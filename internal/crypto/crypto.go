package crypto

import (
	"crypto/subtle"
	"errors"
)

const (
	SaltSize          = 32     // Salt size in bytes
	KeySize           = 32     // AES-256 key size
	IVSize            = 12     // GCM nonce size
	TagSize           = 16     // GCM authentication tag size
	DefaultIterations = 600000 // PBKDF2 iterations for new exports

	// MaxIterations bounds the PBKDF2 cost a file header may ask for.
	MaxIterations = 10 * DefaultIterations
)

var (
	// ErrAuthentication is returned for every tag mismatch. The message is the
	// same for a wrong password and for corrupted bytes.
	ErrAuthentication = errors.New("authentication failed: wrong password or corrupted data")

	// ErrNoBackend is returned when the runtime has no usable secure random source.
	ErrNoBackend = errors.New("no secure cryptographic backend available")

	ErrInvalidSalt       = errors.New("invalid salt size")
	ErrInvalidIV         = errors.New("invalid iv size")
	ErrInvalidIterations = errors.New("invalid iteration count")
	ErrInvalidKey        = errors.New("invalid key")
)

// ClearBytes securely clears a byte slice
func ClearBytes(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

// ConstantTimeCompare performs a constant-time comparison of two byte slices
func ConstantTimeCompare(a, b []byte) bool {
	return subtle.ConstantTimeCompare(a, b) == 1
}
