package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/illarion/statevault/internal/config"
	"github.com/illarion/statevault/internal/crypto"
	"github.com/illarion/statevault/internal/diff"
	"github.com/illarion/statevault/internal/format"
	"github.com/illarion/statevault/internal/keyring"
	"github.com/illarion/statevault/internal/logging"
	"github.com/illarion/statevault/internal/metrics"
	"github.com/illarion/statevault/internal/prompt"
	"github.com/illarion/statevault/internal/restore"
	"github.com/illarion/statevault/internal/storage"
	"github.com/illarion/statevault/internal/transport"
)

// Object name suffixes in a transport
const (
	VaultSuffix    = ".stvault"
	ImagesSuffix   = ".stimages"
	ManifestSuffix = ".stmanifest"
)

var errNoTransport = errors.New("no transport configured")

// App carries what every command needs.
type App struct {
	Config  *config.Config
	Log     *logrus.Logger
	Metrics *metrics.Metrics

	registry  *prometheus.Registry
	store     *storage.Storage
	transport transport.Transport
}

// NewApp loads configuration and sets up logging and metrics. It exits on
// invalid configuration.
func NewApp(configPath string) *App {
	cfg, err := config.Load(configPath)
	if err != nil {
		HandleError(err)
	}
	log, err := logging.New(cfg.Log)
	if err != nil {
		HandleError(err)
	}
	if cfg.File != "" {
		log.WithField("file", cfg.File).Debug("config loaded")
	}

	reg := prometheus.NewRegistry()
	return &App{Config: cfg, Log: log, Metrics: metrics.New(reg), registry: reg}
}

// Close releases the store and transport and writes the metrics textfile
// when one is configured.
func (a *App) Close() {
	if a.store != nil {
		_ = a.store.Close()
		a.store = nil
	}
	if c, ok := a.transport.(interface{ Close() error }); ok {
		_ = c.Close()
	}
	a.transport = nil

	if path := a.Config.Metrics.Textfile; path != "" {
		if err := metrics.WriteTextfile(path, a.registry); err != nil {
			a.Log.WithError(err).Warn("failed to write metrics textfile")
		}
	}
}

// Fail closes the app and exits through HandleError.
func (a *App) Fail(err error) {
	a.Close()
	HandleError(err)
}

// Store opens the local store. It does not create one.
func (a *App) Store() *storage.Storage {
	if a.store != nil {
		return a.store
	}
	if _, err := os.Stat(a.Config.StorePath); err != nil {
		if os.IsNotExist(err) {
			a.Fail(storage.ErrNotInitialized)
		}
		a.Fail(err)
	}

	s, err := storage.Open(a.Config.StorePath)
	if err != nil {
		a.Fail(err)
	}
	a.store = s

	ok, err := s.IsInitialized()
	if err != nil {
		a.Fail(err)
	}
	if !ok {
		a.Fail(storage.ErrNotInitialized)
	}
	return s
}

// Orchestrator builds a restore orchestrator over the local store.
// Overwrite disables the diff step so every restore replaces local records.
func (a *App) Orchestrator(overwrite bool) *restore.Orchestrator {
	s := a.Store()

	deviceID, err := s.GetOrCreateDeviceID()
	if err != nil {
		a.Fail(err)
	}

	backend, err := crypto.Resolve()
	if err != nil {
		a.Fail(err)
	}
	a.Log.WithField("backend", backend.Name()).Debug("crypto backend resolved")

	opts := []restore.Option{
		restore.WithAncestry(s),
		restore.WithLogger(a.Log),
		restore.WithMetrics(a.Metrics),
		restore.WithIterations(a.Config.Iterations),
		restore.WithOrigin(a.Config.AppVersion, deviceID),
	}
	if !overwrite {
		opts = append(opts, restore.WithDiffer(diff.NewEngine()))
	}

	o, err := restore.New(s, backend, opts...)
	if err != nil {
		a.Fail(err)
	}
	return o
}

// Transport connects to the configured transport.
func (a *App) Transport(ctx context.Context) transport.Transport {
	if a.transport != nil {
		return a.transport
	}

	var (
		t   transport.Transport
		err error
	)
	switch a.Config.Transport.Kind {
	case config.TransportDir:
		t, err = transport.NewDir(a.Config.Transport.Dir)
	case config.TransportS3:
		t, err = transport.NewS3(ctx, a.Config.Transport.S3)
	default:
		err = errNoTransport
	}
	if err != nil {
		a.Fail(err)
	}
	a.transport = t
	return t
}

// Password returns the vault password from STATEVAULT_PASSWORD, the OS
// keyring or a prompt, in that order.
// The caller is responsible for calling crypto.ClearBytes on the returned password
func (a *App) Password(msg string) []byte {
	if password := prompt.PasswordFromEnv(); password != nil {
		return password
	}

	if a.Config.Keyring.Enabled {
		if deviceID, err := a.Store().GetDeviceID(); err == nil {
			if password, err := keyring.GetPassword(deviceID); err == nil {
				a.Log.Debug("using password from keyring")
				return password
			}
		}
	}

	return a.PromptPassword(msg)
}

// PromptPassword always asks on the terminal.
func (a *App) PromptPassword(msg string) []byte {
	password, err := prompt.ReadPassword(msg)
	if err != nil {
		a.Fail(err)
	}
	return password
}

// NewPassword returns the password for a new export: the environment
// variable or a confirmed prompt.
func (a *App) NewPassword() []byte {
	if password := prompt.PasswordFromEnv(); password != nil {
		return password
	}
	if a.Config.Keyring.Enabled {
		if deviceID, err := a.Store().GetDeviceID(); err == nil {
			if password, err := keyring.GetPassword(deviceID); err == nil {
				return password
			}
		}
	}

	password, err := prompt.ReadPasswordConfirm()
	if err != nil {
		a.Fail(err)
	}
	return password
}

// HandleError handles common errors consistently
func HandleError(err error) {
	var versionErr *format.VersionError
	switch {
	case errors.Is(err, storage.ErrNotInitialized):
		fmt.Fprintf(os.Stderr, "Error: statevault not initialized\n")
		fmt.Fprintf(os.Stderr, "Run 'statevault init' first\n")
	case errors.Is(err, crypto.ErrAuthentication):
		fmt.Fprintf(os.Stderr, "Error: wrong password or corrupted file\n")
	case errors.As(err, &versionErr):
		fmt.Fprintf(os.Stderr, "Error: %s\n", versionErr)
		fmt.Fprintf(os.Stderr, "Update statevault to read this file\n")
	case errors.Is(err, restore.ErrCancelled):
		fmt.Fprintf(os.Stderr, "Restore cancelled, nothing was changed\n")
	case errors.Is(err, errNoTransport):
		fmt.Fprintf(os.Stderr, "Error: no transport configured\n")
		fmt.Fprintf(os.Stderr, "Set transport.kind to dir or s3 in %s.yaml, or use --file/--out\n", config.FileName)
	case errors.Is(err, transport.ErrNotFound):
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		fmt.Fprintf(os.Stderr, "Run 'statevault export' first\n")
	default:
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
	}
	os.Exit(1)
}
