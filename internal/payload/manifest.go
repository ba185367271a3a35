package payload

import (
	"encoding/json"
	"fmt"
	"time"
)

// ManifestVersion is the version of the manifest document written by this release.
const ManifestVersion = 1

// Manifest points at the latest vault object in a transport.
type Manifest struct {
	Version         int       `json:"version"`
	DeviceID        string    `json:"deviceId"`
	VaultName       string    `json:"vaultName"`
	Scope           Scope     `json:"scope"`
	Checksum        string    `json:"checksum,omitempty"`
	Size            int64     `json:"size"`
	ExportTimestamp time.Time `json:"exportTimestamp"`
	ImagesName      string    `json:"imagesName,omitempty"`
}

// Encode returns the JSON document for m.
func (m *Manifest) Encode() ([]byte, error) {
	return json.Marshal(m)
}

// DecodeManifest validates and parses a decrypted manifest document.
func DecodeManifest(plaintext []byte) (*Manifest, error) {
	if err := validate(manifestSchema, plaintext); err != nil {
		return nil, err
	}
	var m Manifest
	if err := json.Unmarshal(plaintext, &m); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	return &m, nil
}
