package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/illarion/statevault/internal/crypto"
	"github.com/illarion/statevault/internal/merge"
	"github.com/illarion/statevault/internal/payload"
	"github.com/illarion/statevault/internal/prompt"
	"github.com/illarion/statevault/internal/restore"
	"github.com/illarion/statevault/internal/review"
	"github.com/illarion/statevault/internal/transport"
)

const maxPasswordAttempts = 3

// RestoreOptions are the flags of the restore command.
type RestoreOptions struct {
	File      string
	Latest    bool
	All       bool
	Overwrite bool
	Images    bool
	Report    string
	ReportOut string
}

// restoreSource is what a restore reads: a vault and, when requested, the
// image vault exported with it.
type restoreSource struct {
	vault  []byte
	images []byte
}

// Restore decrypts a vault, shows what would change and applies the
// approved changes.
func Restore(ctx context.Context, app *App, opts RestoreOptions) {
	defer app.Close()

	if opts.Report != "" && opts.Report != review.FormatYAML && opts.Report != review.FormatJSON {
		app.Fail(fmt.Errorf("unknown report format %q (use yaml or json)", opts.Report))
	}
	if opts.File == "" && !opts.Latest {
		app.Fail(fmt.Errorf("specify --file or --latest"))
	}

	var presenter restore.Presenter
	switch {
	case opts.All || opts.Overwrite:
		presenter = restore.PresenterFunc(func(_ context.Context, p *restore.Preview) (merge.Selection, error) {
			return p.SelectAll(), nil
		})
	case prompt.IsTerminal():
		presenter = review.NewInteractive(os.Stdout, prompt.ReadChoice)
	default:
		app.Fail(fmt.Errorf("stdin is not a terminal: use --all or --overwrite to restore without review"))
	}

	var (
		src *restoreSource
		err error
	)
	if opts.File != "" {
		if src, err = readFileSource(opts.File, opts.Images); err != nil {
			app.Fail(err)
		}
	}

	o := app.Orchestrator(opts.Overwrite)
	password := app.Password("Enter password: ")
	defer func() { crypto.ClearBytes(password) }()

	if src == nil {
		t := app.Transport(ctx)
		m := withPassword(app, &password, func(pw []byte) (*payload.Manifest, error) {
			return latestManifest(ctx, t, o, pw)
		})
		if src, err = readLatestSource(ctx, t, m, opts.Images); err != nil {
			app.Fail(err)
		}
		app.Log.WithField("object", m.VaultName).Info("downloaded vault")
	}

	s := o.Begin(src.vault)
	preview := withPassword(app, &password, func(pw []byte) (*restore.Preview, error) {
		p, err := s.Decrypt(ctx, pw)
		if errors.Is(err, restore.ErrNoDifferences) {
			return nil, nil
		}
		return p, err
	})

	if preview == nil {
		fmt.Println("Already up to date: the backup matches local data")
	} else {
		sel, err := s.Present(ctx, presenter)
		if err != nil {
			app.Fail(err)
		}

		out, err := s.Confirm(ctx, sel)
		if err != nil {
			app.Fail(err)
		}
		fmt.Printf("✓ Restored %d record(s), collection now has %d item(s)\n", len(out.Written), out.Items)
		if len(out.Ignored) > 0 {
			fmt.Printf("  ignored unknown records: %v\n", out.Ignored)
		}

		if opts.Report != "" {
			writeReport(app, review.NewReport(preview, out), opts)
		}
	}

	if src.images != nil {
		n, err := o.ImportImages(ctx, src.images, password)
		if err != nil {
			app.Fail(err)
		}
		fmt.Printf("✓ Restored %d image(s)\n", n)
	}
}

// withPassword runs fn, asking for the password again after an
// authentication failure while attempts remain and stdin is a terminal.
func withPassword[T any](app *App, password *[]byte, fn func([]byte) (T, error)) T {
	for attempt := 1; ; attempt++ {
		v, err := fn(*password)
		if err == nil {
			return v
		}
		if errors.Is(err, crypto.ErrAuthentication) && attempt < maxPasswordAttempts && prompt.IsTerminal() {
			crypto.ClearBytes(*password)
			fmt.Fprintln(os.Stderr, "Wrong password, try again.")
			*password = app.PromptPassword("Enter password: ")
			continue
		}
		app.Fail(err)
	}
}

// readFileSource reads a vault file and, with images, the image vault that
// export --out wrote next to it.
func readFileSource(path string, images bool) (*restoreSource, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	src := &restoreSource{vault: data}
	if !images {
		return src, nil
	}

	imagesFile := imagesPath(path)
	if src.images, err = os.ReadFile(imagesFile); err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("no image vault %s next to %s", imagesFile, path)
		}
		return nil, err
	}
	return src, nil
}

// latestManifest opens the newest manifest. Without any manifest it falls
// back to the newest vault object, which has no image vault.
func latestManifest(ctx context.Context, t transport.Transport, o *restore.Orchestrator, password []byte) (*payload.Manifest, error) {
	info, err := transport.Latest(ctx, t, ManifestSuffix)
	if errors.Is(err, transport.ErrNotFound) {
		vault, err := latestVault(ctx, t)
		if err != nil {
			return nil, err
		}
		return &payload.Manifest{VaultName: vault}, nil
	}
	if err != nil {
		return nil, err
	}

	data, err := t.Download(ctx, info.Name)
	if err != nil {
		return nil, err
	}
	return o.ReadManifest(ctx, data, password)
}

// readLatestSource downloads the objects a manifest names, so the image
// vault always belongs to the same export as the vault.
func readLatestSource(ctx context.Context, t transport.Transport, m *payload.Manifest, images bool) (*restoreSource, error) {
	data, err := t.Download(ctx, m.VaultName)
	if err != nil {
		return nil, err
	}
	src := &restoreSource{vault: data}
	if !images {
		return src, nil
	}

	if m.ImagesName == "" {
		return nil, fmt.Errorf("%w: export %s has no image vault", transport.ErrNotFound, m.VaultName)
	}
	if src.images, err = t.Download(ctx, m.ImagesName); err != nil {
		return nil, err
	}
	return src, nil
}

func writeReport(app *App, r *review.Report, opts RestoreOptions) {
	var w io.Writer = os.Stdout
	if opts.ReportOut != "" {
		f, err := os.OpenFile(opts.ReportOut, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
		if err != nil {
			app.Fail(err)
		}
		defer f.Close()
		w = f
	}
	if err := r.Write(w, opts.Report); err != nil {
		app.Fail(err)
	}
}
