package restore

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/illarion/statevault/internal/crypto"
	"github.com/illarion/statevault/internal/envelope"
	"github.com/illarion/statevault/internal/metrics"
	"github.com/illarion/statevault/internal/payload"
)

// Artifact is a sealed file together with the metadata it was built from.
type Artifact struct {
	Data []byte
	Meta payload.Meta
}

// Export snapshots the records in scope and seals them into a vault file.
func (o *Orchestrator) Export(ctx context.Context, password []byte, scope payload.Scope) (*Artifact, error) {
	art, err := o.export(ctx, password, scope)
	o.metrics.Export(string(scope), statusOf(err))
	if err != nil {
		return nil, err
	}
	o.metrics.ExportSize(len(art.Data))
	o.logger.WithFields(logrus.Fields{
		"scope":    scope,
		"bytes":    len(art.Data),
		"checksum": art.Meta.Checksum,
	}).Info("vault exported")
	return art, nil
}

func (o *Orchestrator) export(ctx context.Context, password []byte, scope payload.Scope) (*Artifact, error) {
	if len(password) < envelope.MinPasswordLength {
		return nil, envelope.ErrPasswordTooShort
	}

	var p *payload.VaultPayload
	err := o.exclusive(ctx, func() error {
		var err error
		p, err = o.collector().Collect(scope)
		return err
	})
	if err != nil {
		return nil, err
	}

	plaintext, err := p.Encode()
	if err != nil {
		return nil, fmt.Errorf("failed to encode payload: %w", err)
	}
	data, err := o.seal(ctx, password, plaintext, envelope.SealVault)
	if err != nil {
		return nil, err
	}
	return &Artifact{Data: data, Meta: p.Meta}, nil
}

// ExportImages seals the image cache into its own vault file.
func (o *Orchestrator) ExportImages(ctx context.Context, password []byte) (*Artifact, error) {
	if len(password) < envelope.MinPasswordLength {
		return nil, envelope.ErrPasswordTooShort
	}

	var p *payload.ImagePayload
	err := o.exclusive(ctx, func() error {
		var err error
		p, err = o.collector().CollectImages(o.store)
		return err
	})
	if err != nil {
		return nil, err
	}

	plaintext, err := p.Encode()
	if err != nil {
		return nil, fmt.Errorf("failed to encode images: %w", err)
	}
	data, err := o.seal(ctx, password, plaintext, envelope.SealVault)
	if err != nil {
		return nil, err
	}
	o.logger.WithFields(logrus.Fields{"images": len(p.Records), "bytes": len(data)}).Info("images exported")
	return &Artifact{Data: data, Meta: p.Meta}, nil
}

// ExportManifest seals a manifest document into a manifest file.
func (o *Orchestrator) ExportManifest(ctx context.Context, password []byte, m *payload.Manifest) ([]byte, error) {
	if m.Version == 0 {
		m.Version = payload.ManifestVersion
	}
	plaintext, err := m.Encode()
	if err != nil {
		return nil, fmt.Errorf("failed to encode manifest: %w", err)
	}
	return o.seal(ctx, password, plaintext, envelope.SealManifest)
}

// ReadManifest opens a manifest file.
func (o *Orchestrator) ReadManifest(ctx context.Context, data, password []byte) (*payload.Manifest, error) {
	plaintext, err := o.open(ctx, password, data, envelope.OpenManifest)
	if err != nil {
		return nil, err
	}
	defer crypto.ClearBytes(plaintext)
	return payload.DecodeManifest(plaintext)
}

// ImportImages opens an image vault and writes its records. It is
// independent of any data restore.
func (o *Orchestrator) ImportImages(ctx context.Context, data, password []byte) (int, error) {
	plaintext, err := o.open(ctx, password, data, envelope.OpenVault)
	if err != nil {
		return 0, err
	}
	defer crypto.ClearBytes(plaintext)

	p, err := payload.DecodeImages(plaintext)
	if err != nil {
		return 0, err
	}
	if p.Meta.Checksum != payload.ImageChecksum(p.Records) {
		o.logger.WithField("checksum", p.Meta.Checksum).Warn("image payload checksum mismatch")
	}

	var n int
	err = o.exclusive(ctx, func() error {
		var err error
		n, err = payload.RestoreImages(o.store, p)
		return err
	})
	if err != nil {
		return 0, err
	}
	o.logger.WithField("images", n).Info("images restored")
	return n, nil
}

type sealFunc func(crypto.Backend, []byte, []byte, uint32) ([]byte, error)

type openFunc func(crypto.Backend, []byte, []byte) ([]byte, error)

// seal runs encryption, and with it key derivation, on a worker.
func (o *Orchestrator) seal(ctx context.Context, password, plaintext []byte, fn sealFunc) ([]byte, error) {
	pw := clonePassword(password)
	return runWorker(ctx, func() ([]byte, error) {
		defer crypto.ClearBytes(pw)
		defer crypto.ClearBytes(plaintext)
		return fn(o.backend, pw, plaintext, o.iterations)
	}, nil)
}

// open runs key derivation and decryption on a worker. A plaintext that
// arrives after ctx ended is wiped.
func (o *Orchestrator) open(ctx context.Context, password, data []byte, fn openFunc) ([]byte, error) {
	pw := clonePassword(password)
	return runWorker(ctx, func() ([]byte, error) {
		defer crypto.ClearBytes(pw)
		return fn(o.backend, pw, data)
	}, crypto.ClearBytes)
}

func statusOf(err error) string {
	if err == nil {
		return metrics.StatusOK
	}
	return describe(err)
}
