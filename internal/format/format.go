package format

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/illarion/statevault/internal/crypto"
)

// Kind names a container type.
type Kind string

const (
	KindVault    Kind = "vault"
	KindManifest Kind = "manifest"
)

const (
	VaultVersion    uint8 = 1 // Highest vault version this release reads and writes
	ManifestVersion uint8 = 1 // Highest manifest version this release reads and writes

	VaultHeaderSize    = 56
	ManifestHeaderSize = 53
)

var (
	VaultMagic    = []byte("STVAULT")
	ManifestMagic = []byte("STMF")
)

// kindByte is the offset that tells the two containers apart.
const kindByte = 2

// Header holds the key-derivation and cipher parameters of a container.
type Header struct {
	Version    uint8
	Iterations uint32
	Salt       []byte
	IV         []byte
}

// File is a parsed container.
type File struct {
	Header
	Ciphertext []byte
}

type layout struct {
	kind      Kind
	magic     []byte
	supported uint8
}

var (
	vaultLayout    = layout{kind: KindVault, magic: VaultMagic, supported: VaultVersion}
	manifestLayout = layout{kind: KindManifest, magic: ManifestMagic, supported: ManifestVersion}
)

func (l layout) headerSize() int {
	return len(l.magic) + 1 + 4 + crypto.SaltSize + crypto.IVSize
}

// SerializeVault writes a vault header followed by the ciphertext.
func SerializeVault(h Header, ciphertext []byte) ([]byte, error) {
	return vaultLayout.serialize(h, ciphertext)
}

// ParseVault splits a vault file into header fields and ciphertext.
func ParseVault(data []byte) (*File, error) {
	return vaultLayout.parse(data)
}

// SerializeManifest writes a manifest header followed by the ciphertext.
func SerializeManifest(h Header, ciphertext []byte) ([]byte, error) {
	return manifestLayout.serialize(h, ciphertext)
}

// ParseManifest splits a manifest file into header fields and ciphertext.
func ParseManifest(data []byte) (*File, error) {
	return manifestLayout.parse(data)
}

// Detect reports which container data looks like, without validating it.
func Detect(data []byte) (Kind, bool) {
	if len(data) <= kindByte || data[0] != 'S' || data[1] != 'T' {
		return "", false
	}
	switch data[kindByte] {
	case VaultMagic[kindByte]:
		return KindVault, true
	case ManifestMagic[kindByte]:
		return KindManifest, true
	}
	return "", false
}

func (l layout) serialize(h Header, ciphertext []byte) ([]byte, error) {
	if len(h.Salt) != crypto.SaltSize {
		return nil, fmt.Errorf("%w: salt must be %d bytes", ErrFormat, crypto.SaltSize)
	}
	if len(h.IV) != crypto.IVSize {
		return nil, fmt.Errorf("%w: iv must be %d bytes", ErrFormat, crypto.IVSize)
	}
	version := h.Version
	if version == 0 {
		version = l.supported
	}

	out := make([]byte, 0, l.headerSize()+len(ciphertext))
	out = append(out, l.magic...)
	out = append(out, version)
	out = binary.BigEndian.AppendUint32(out, h.Iterations)
	out = append(out, h.Salt...)
	out = append(out, h.IV...)
	out = append(out, ciphertext...)
	return out, nil
}

func (l layout) parse(data []byte) (*File, error) {
	if kind, ok := Detect(data); ok && kind != l.kind {
		return nil, &CrossFormatError{Expected: l.kind, Found: kind}
	}

	size := l.headerSize()
	if len(data) < size+crypto.TagSize {
		return nil, fmt.Errorf("%w: %s file too short (%d bytes, need at least %d)",
			ErrFormat, l.kind, len(data), size+crypto.TagSize)
	}
	if !bytes.Equal(data[:len(l.magic)], l.magic) {
		return nil, fmt.Errorf("%w: not a %s file (bad magic)", ErrFormat, l.kind)
	}

	off := len(l.magic)
	version := data[off]
	if version == 0 {
		return nil, fmt.Errorf("%w: %s version 0", ErrFormat, l.kind)
	}
	if version > l.supported {
		return nil, &VersionError{Kind: l.kind, Version: version, Supported: l.supported}
	}
	off++

	iterations := binary.BigEndian.Uint32(data[off : off+4])
	if iterations == 0 || iterations > crypto.MaxIterations {
		return nil, fmt.Errorf("%w: %s iteration count %d outside 1..%d",
			ErrFormat, l.kind, iterations, crypto.MaxIterations)
	}
	off += 4
	salt := append([]byte(nil), data[off:off+crypto.SaltSize]...)
	off += crypto.SaltSize
	iv := append([]byte(nil), data[off:off+crypto.IVSize]...)
	off += crypto.IVSize

	return &File{
		Header: Header{
			Version:    version,
			Iterations: iterations,
			Salt:       salt,
			IV:         iv,
		},
		Ciphertext: append([]byte(nil), data[off:]...),
	}, nil
}
