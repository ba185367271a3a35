// Package crypto provides the cryptographic backend for statevault.
//
// Key derivation uses PBKDF2-HMAC-SHA256 with:
//   - 32-byte random salt (stored unencrypted in the file header)
//   - 600,000 iterations for new exports; readers always take the
//     iteration count from the header so older files stay readable
//
// Encryption uses AES-256-GCM with:
//   - 32-byte derived key
//   - 12-byte random IV per file
//   - 16-byte authentication tag appended to the ciphertext
//
// Two interchangeable backends exist: Native (standard library PBKDF2 and
// the hardware GCM path) and Software (x/crypto PBKDF2 and the generic GCM
// implementation). Resolve picks one once at startup; callers only see the
// Backend interface.
//
// Memory safety:
//   - Derived keys live in a memguard LockedBuffer; call Key.Destroy when done
//   - Use ClearBytes() to zero passwords and plaintext after use
package crypto
