package payload

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/cespare/xxhash/v2"
)

var (
	// ErrEmptyPayload means no recognized record had a value to export.
	ErrEmptyPayload = errors.New("nothing to export")
	// ErrChecksumMismatch is an integrity warning on the plaintext checksum.
	// It is not fatal: the AEAD tag already authenticated the bytes.
	ErrChecksumMismatch = errors.New("payload checksum mismatch")
)

// Meta describes where and when a payload was produced.
type Meta struct {
	AppVersion      string    `json:"appVersion"`
	ExportTimestamp time.Time `json:"exportTimestamp"`
	ExportOrigin    string    `json:"exportOrigin,omitempty"`
	Scope           Scope     `json:"scope"`
	Checksum        string    `json:"checksum"`
}

// VaultPayload is the plaintext sealed inside a vault file.
type VaultPayload struct {
	Meta Meta              `json:"meta"`
	Data map[string]string `json:"data"`
}

// Encode returns the JSON document for p.
func (p *VaultPayload) Encode() ([]byte, error) {
	return json.Marshal(p)
}

// Keys returns the record keys of p in sorted order.
func (p *VaultPayload) Keys() []string {
	keys := make([]string, 0, len(p.Data))
	for k := range p.Data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Decode validates and parses a decrypted vault document.
func Decode(plaintext []byte) (*VaultPayload, error) {
	if err := validate(vaultSchema, plaintext); err != nil {
		return nil, err
	}
	var p VaultPayload
	if err := json.Unmarshal(plaintext, &p); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	if p.Meta.Scope == ScopeImages {
		return nil, fmt.Errorf("%w: image payload found where data payload expected", ErrInvalidPayload)
	}
	return &p, nil
}

// Checksum digests data in sorted key order. Each entry contributes
// key NUL value NUL; the result is 16 lowercase hex digits.
func Checksum(data map[string]string) string {
	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	h := xxhash.New()
	for _, k := range keys {
		h.WriteString(k)
		h.Write([]byte{0})
		h.WriteString(data[k])
		h.Write([]byte{0})
	}
	return fmt.Sprintf("%016x", h.Sum64())
}

// VerifyChecksum recomputes the checksum of p and compares it with the
// value recorded at export time.
func VerifyChecksum(p *VaultPayload) error {
	if got := Checksum(p.Data); got != p.Meta.Checksum {
		return fmt.Errorf("%w: recorded %s, computed %s", ErrChecksumMismatch, p.Meta.Checksum, got)
	}
	return nil
}
