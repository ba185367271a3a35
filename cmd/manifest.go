package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/skip2/go-qrcode"

	"github.com/illarion/statevault/internal/crypto"
	"github.com/illarion/statevault/internal/transport"
)

// Manifest shows the latest manifest in the transport, optionally as a QR
// code another device can scan
func Manifest(ctx context.Context, app *App, qr bool) {
	defer app.Close()

	t := app.Transport(ctx)
	info, err := transport.Latest(ctx, t, ManifestSuffix)
	if err != nil {
		app.Fail(err)
	}
	data, err := t.Download(ctx, info.Name)
	if err != nil {
		app.Fail(err)
	}

	o := app.Orchestrator(false)
	password := app.Password("Enter password: ")
	defer crypto.ClearBytes(password)

	m, err := o.ReadManifest(ctx, data, password)
	if err != nil {
		app.Fail(err)
	}

	fmt.Printf("Manifest:  %s\n", info.Name)
	fmt.Printf("Device:    %s\n", m.DeviceID)
	fmt.Printf("Vault:     %s (%s)\n", m.VaultName, formatSize(m.Size))
	fmt.Printf("Scope:     %s\n", m.Scope)
	fmt.Printf("Checksum:  %s\n", m.Checksum)
	fmt.Printf("Exported:  %s\n", m.ExportTimestamp.Local().Format(time.RFC3339))
	if m.ImagesName != "" {
		fmt.Printf("Images:    %s\n", m.ImagesName)
	}

	if !qr {
		return
	}

	doc, err := m.Encode()
	if err != nil {
		app.Fail(err)
	}
	code, err := qrcode.New(string(doc), qrcode.Medium)
	if err != nil {
		app.Fail(fmt.Errorf("failed to render QR code: %w", err))
	}
	fmt.Println()
	fmt.Print(code.ToSmallString(false))
}
