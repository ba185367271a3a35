package payload

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// ImageRecord is one cached coin image pair. Byte fields are base64 in JSON.
type ImageRecord struct {
	UUID        string `json:"uuid"`
	Obverse     []byte `json:"obverse,omitempty"`
	ObverseType string `json:"obverseType,omitempty"`
	Reverse     []byte `json:"reverse,omitempty"`
	ReverseType string `json:"reverseType,omitempty"`
	CachedAt    int64  `json:"cachedAt"` // unix millis
	Size        int64  `json:"size"`
}

// ImagePayload is the plaintext sealed inside an image vault.
type ImagePayload struct {
	Meta    Meta          `json:"meta"`
	Records []ImageRecord `json:"records"`
}

// Encode returns the JSON document for p.
func (p *ImagePayload) Encode() ([]byte, error) {
	return json.Marshal(p)
}

// DecodeImages validates and parses a decrypted image document.
func DecodeImages(plaintext []byte) (*ImagePayload, error) {
	if err := validate(imageSchema, plaintext); err != nil {
		return nil, err
	}
	var p ImagePayload
	if err := json.Unmarshal(plaintext, &p); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	return &p, nil
}

// ImageChecksum digests the uuid, size and cache time of every record.
func ImageChecksum(records []ImageRecord) string {
	lines := make([]string, 0, len(records))
	for _, r := range records {
		lines = append(lines, fmt.Sprintf("%s\x00%d\x00%d\x00", r.UUID, r.Size, r.CachedAt))
	}
	sort.Strings(lines)
	return fmt.Sprintf("%016x", xxhash.Sum64String(strings.Join(lines, "")))
}
