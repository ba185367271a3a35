package payload

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/illarion/statevault/internal/storage"
)

// Reader reads records from the local store.
type Reader interface {
	Get(key string) (string, bool, error)
}

// ImageSource enumerates cached image entries.
type ImageSource interface {
	ForEachImage(fn func(id string, data []byte) error) error
}

// Committer applies a changeset atomically.
type Committer interface {
	Commit(c storage.Changeset) error
}

// Collector assembles payloads from the local store.
type Collector struct {
	Store      Reader
	Registry   *Registry
	AppVersion string
	Origin     string
	Clock      func() time.Time
}

func (c *Collector) meta(scope Scope, checksum string) Meta {
	now := time.Now
	if c.Clock != nil {
		now = c.Clock
	}
	return Meta{
		AppVersion:      c.AppVersion,
		ExportTimestamp: now().UTC().Truncate(time.Second),
		ExportOrigin:    c.Origin,
		Scope:           scope,
		Checksum:        checksum,
	}
}

// Collect reads every record in scope. It returns ErrEmptyPayload when none
// of them has a value.
func (c *Collector) Collect(scope Scope) (*VaultPayload, error) {
	data := make(map[string]string)
	for _, key := range c.Registry.Keys(scope) {
		value, found, err := c.Store.Get(key)
		if err != nil {
			return nil, fmt.Errorf("failed to read record %s: %w", key, err)
		}
		if found {
			data[key] = value
		}
	}
	if len(data) == 0 {
		return nil, ErrEmptyPayload
	}

	return &VaultPayload{
		Meta: c.meta(scope, Checksum(data)),
		Data: data,
	}, nil
}

// CollectImages reads every cached image. It returns ErrEmptyPayload when
// the cache is empty.
func (c *Collector) CollectImages(src ImageSource) (*ImagePayload, error) {
	var records []ImageRecord
	err := src.ForEachImage(func(id string, data []byte) error {
		var rec ImageRecord
		if err := json.Unmarshal(data, &rec); err != nil {
			return fmt.Errorf("failed to decode image %s: %w", id, err)
		}
		if rec.UUID == "" {
			rec.UUID = id
		}
		records = append(records, rec)
		return nil
	})
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, ErrEmptyPayload
	}

	return &ImagePayload{
		Meta:    c.meta(ScopeImages, ImageChecksum(records)),
		Records: records,
	}, nil
}

// RestoreResult lists what a restore wrote and what it refused.
type RestoreResult struct {
	Written []string
	Ignored []string
}

// Plan builds a changeset writing every allow-listed record of p.
// Unrecognized keys are reported in the result and never written.
func Plan(reg *Registry, p *VaultPayload) (storage.Changeset, RestoreResult) {
	allowed, ignored := reg.Filter(p.Data)
	records := make(map[string]*string, len(allowed))
	var written []string
	for _, key := range p.Keys() {
		value, ok := allowed[key]
		if !ok {
			continue
		}
		records[key] = &value
		written = append(written, key)
	}
	return storage.Changeset{Records: records}, RestoreResult{Written: written, Ignored: ignored}
}

// Restore writes every allow-listed record of p in one commit.
func Restore(w Committer, reg *Registry, p *VaultPayload) (RestoreResult, error) {
	changes, result := Plan(reg, p)
	if err := w.Commit(changes); err != nil {
		return RestoreResult{}, fmt.Errorf("failed to restore records: %w", err)
	}
	return result, nil
}

// RestoreImages writes every image record of p in one commit and returns
// the number written. Records without a uuid are skipped.
func RestoreImages(w Committer, p *ImagePayload) (int, error) {
	images := make(map[string][]byte, len(p.Records))
	for _, rec := range p.Records {
		if rec.UUID == "" {
			continue
		}
		data, err := json.Marshal(rec)
		if err != nil {
			return 0, fmt.Errorf("failed to encode image %s: %w", rec.UUID, err)
		}
		images[rec.UUID] = data
	}
	if err := w.Commit(storage.Changeset{Images: images}); err != nil {
		return 0, fmt.Errorf("failed to restore images: %w", err)
	}
	return len(images), nil
}
