package crypto

import (
	"fmt"

	"github.com/awnumar/memguard"
)

// Key is a derived AES-256 key held in locked, guarded memory.
type Key struct {
	buf *memguard.LockedBuffer
}

// NewKey moves raw key bytes into guarded memory. The source slice is wiped.
func NewKey(raw []byte) (*Key, error) {
	if len(raw) != KeySize {
		ClearBytes(raw)
		return nil, fmt.Errorf("%w: got %d bytes, want %d", ErrInvalidKey, len(raw), KeySize)
	}
	return &Key{buf: memguard.NewBufferFromBytes(raw)}, nil
}

// Bytes returns the key material. The slice is only valid until Destroy.
func (k *Key) Bytes() []byte {
	if k == nil || k.buf == nil || !k.buf.IsAlive() {
		return nil
	}
	return k.buf.Bytes()
}

// Destroy wipes the key from memory. It is safe to call more than once.
func (k *Key) Destroy() {
	if k == nil || k.buf == nil {
		return
	}
	k.buf.Destroy()
}
