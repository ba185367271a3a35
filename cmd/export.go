package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/illarion/statevault/internal/crypto"
	"github.com/illarion/statevault/internal/payload"
	"github.com/illarion/statevault/internal/restore"
	"github.com/illarion/statevault/internal/transport"
)

// ExportOptions are the flags of the export command.
type ExportOptions struct {
	Scope  string
	Images bool
	Out    string
}

// objectName builds a unique, time-sortable transport name.
func objectName(kind string, t time.Time, suffix string) string {
	id := strings.SplitN(uuid.NewString(), "-", 2)[0]
	return fmt.Sprintf("statevault-%s-%s-%s%s", kind, t.UTC().Format("20060102T150405Z"), id, suffix)
}

// Export seals local state into a vault file and writes it to --out or
// uploads it through the configured transport together with a manifest.
func Export(ctx context.Context, app *App, opts ExportOptions) {
	defer app.Close()

	scope, err := payload.ParseScope(opts.Scope)
	if err != nil {
		app.Fail(err)
	}

	o := app.Orchestrator(false)
	password := app.NewPassword()
	defer crypto.ClearBytes(password)

	art, err := o.Export(ctx, password, scope)
	if err != nil {
		app.Fail(err)
	}

	var images []byte
	if opts.Images {
		imgArt, err := o.ExportImages(ctx, password)
		if err != nil {
			app.Fail(err)
		}
		images = imgArt.Data
	}

	if opts.Out != "" {
		if err := os.WriteFile(opts.Out, art.Data, 0600); err != nil {
			app.Fail(err)
		}
		fmt.Printf("✓ Exported %s (%s)\n", opts.Out, formatSize(int64(len(art.Data))))
		if images != nil {
			imagesOut := imagesPath(opts.Out)
			if err := os.WriteFile(imagesOut, images, 0600); err != nil {
				app.Fail(err)
			}
			fmt.Printf("✓ Exported %s (%s)\n", imagesOut, formatSize(int64(len(images))))
		}
	} else {
		_, name, err := uploadExport(ctx, app.Transport(ctx), o, password, art.Meta, art.Data, images)
		if err != nil {
			app.Fail(err)
		}
		app.Log.WithField("manifest", name).Info("manifest uploaded")
	}

	if err := app.Store().SetLastExport(art.Meta.ExportTimestamp); err != nil {
		app.Fail(err)
	}
}

// uploadExport uploads the vault, the optional image vault and a manifest
// naming both. It returns the manifest and its object name.
func uploadExport(ctx context.Context, t transport.Transport, o *restore.Orchestrator, password []byte, meta payload.Meta, data, images []byte) (*payload.Manifest, string, error) {
	m := &payload.Manifest{
		DeviceID:        meta.ExportOrigin,
		VaultName:       objectName(string(meta.Scope), meta.ExportTimestamp, VaultSuffix),
		Scope:           meta.Scope,
		Checksum:        meta.Checksum,
		Size:            int64(len(data)),
		ExportTimestamp: meta.ExportTimestamp,
	}

	if err := t.Upload(ctx, m.VaultName, data); err != nil {
		return nil, "", err
	}
	fmt.Printf("✓ Uploaded %s (%s)\n", m.VaultName, formatSize(m.Size))

	if images != nil {
		m.ImagesName = objectName("images", meta.ExportTimestamp, ImagesSuffix)
		if err := t.Upload(ctx, m.ImagesName, images); err != nil {
			return nil, "", err
		}
		fmt.Printf("✓ Uploaded %s (%s)\n", m.ImagesName, formatSize(int64(len(images))))
	}

	manifest, err := o.ExportManifest(ctx, password, m)
	if err != nil {
		return nil, "", err
	}
	name := objectName("manifest", meta.ExportTimestamp, ManifestSuffix)
	if err := t.Upload(ctx, name, manifest); err != nil {
		return nil, "", err
	}
	return m, name, nil
}

// imagesPath is where export --out writes the image vault of a vault file.
func imagesPath(vaultPath string) string {
	return strings.TrimSuffix(vaultPath, VaultSuffix) + ImagesSuffix
}
