package restore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/semaphore"

	"github.com/illarion/statevault/internal/crypto"
	"github.com/illarion/statevault/internal/diff"
	"github.com/illarion/statevault/internal/logging"
	"github.com/illarion/statevault/internal/metrics"
	"github.com/illarion/statevault/internal/payload"
	"github.com/illarion/statevault/internal/storage"
)

var (
	ErrNoDifferences = errors.New("no differences")
	ErrInvalidState  = errors.New("invalid restore state")
	ErrCancelled     = errors.New("restore cancelled")
)

// Store is the local state an orchestrator reads and writes.
type Store interface {
	Get(key string) (string, bool, error)
	ForEachImage(fn func(id string, data []byte) error) error
	Commit(c storage.Changeset) error
}

// AncestryStore returns the snapshot recorded by the last restore.
type AncestryStore interface {
	Ancestor(name string) ([]byte, bool, error)
}

// Orchestrator runs exports and restores against one local store.
type Orchestrator struct {
	store      Store
	backend    crypto.Backend
	differ     diff.Differ
	ancestry   AncestryStore
	registry   *payload.Registry
	logger     logrus.FieldLogger
	metrics    *metrics.Metrics
	clock      func() time.Time
	iterations uint32
	appVersion string
	origin     string

	lock *semaphore.Weighted
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithDiffer enables selective restores. Without it every restore is a
// full overwrite.
func WithDiffer(d diff.Differ) Option {
	return func(o *Orchestrator) { o.differ = d }
}

// WithAncestry enables conflict detection against the last restored snapshot.
func WithAncestry(a AncestryStore) Option {
	return func(o *Orchestrator) { o.ancestry = a }
}

func WithLogger(l logrus.FieldLogger) Option {
	return func(o *Orchestrator) { o.logger = l }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(o *Orchestrator) { o.metrics = m }
}

// WithRegistry replaces payload.DefaultRegistry.
func WithRegistry(r *payload.Registry) Option {
	return func(o *Orchestrator) { o.registry = r }
}

func WithClock(clock func() time.Time) Option {
	return func(o *Orchestrator) { o.clock = clock }
}

// WithIterations sets the PBKDF2 iteration count for new files.
func WithIterations(n uint32) Option {
	return func(o *Orchestrator) { o.iterations = n }
}

// WithOrigin sets the app version and device id recorded in payload metadata.
func WithOrigin(appVersion, deviceID string) Option {
	return func(o *Orchestrator) {
		o.appVersion = appVersion
		o.origin = deviceID
	}
}

// New creates an orchestrator. The backend is resolved by the caller once
// per process.
func New(store Store, backend crypto.Backend, opts ...Option) (*Orchestrator, error) {
	if backend == nil {
		return nil, crypto.ErrNoBackend
	}
	o := &Orchestrator{
		store:      store,
		registry:   payload.DefaultRegistry(),
		logger:     logging.Discard(),
		metrics:    metrics.Nop(),
		clock:      time.Now,
		iterations: crypto.DefaultIterations,
		lock:       semaphore.NewWeighted(1),
	}
	for _, opt := range opts {
		opt(o)
	}
	o.backend = timedBackend{Backend: backend, observe: o.metrics.KeyDerivation}
	return o, nil
}

// Registry returns the record allow-list in use.
func (o *Orchestrator) Registry() *payload.Registry {
	return o.registry
}

func (o *Orchestrator) collector() *payload.Collector {
	return &payload.Collector{
		Store:      o.store,
		Registry:   o.registry,
		AppVersion: o.appVersion,
		Origin:     o.origin,
		Clock:      o.clock,
	}
}

// exclusive runs fn while holding the orchestrator lock.
func (o *Orchestrator) exclusive(ctx context.Context, fn func() error) error {
	if err := o.lock.Acquire(ctx, 1); err != nil {
		return err
	}
	defer o.lock.Release(1)
	return fn()
}

// runWorker runs fn on its own goroutine. If ctx ends first the result is
// handed to discard once fn returns.
func runWorker[T any](ctx context.Context, fn func() (T, error), discard func(T)) (T, error) {
	type result struct {
		value T
		err   error
	}
	ch := make(chan result, 1)
	go func() {
		v, err := fn()
		ch <- result{v, err}
	}()

	select {
	case r := <-ch:
		return r.value, r.err
	case <-ctx.Done():
		go func() {
			if r := <-ch; r.err == nil && discard != nil {
				discard(r.value)
			}
		}()
		var zero T
		return zero, ctx.Err()
	}
}

// timedBackend records key derivation time.
type timedBackend struct {
	crypto.Backend
	observe func(time.Duration)
}

func (b timedBackend) DeriveKey(password, salt []byte, iterations uint32) (*crypto.Key, error) {
	start := time.Now()
	key, err := b.Backend.DeriveKey(password, salt, iterations)
	b.observe(time.Since(start))
	return key, err
}

func clonePassword(password []byte) []byte {
	return append([]byte(nil), password...)
}

func describe(err error) string {
	if errors.Is(err, crypto.ErrAuthentication) {
		return metrics.StatusDenied
	}
	if errors.Is(err, payload.ErrEmptyPayload) {
		return metrics.StatusEmpty
	}
	return metrics.StatusError
}

func wrapState(s State, want ...State) error {
	return fmt.Errorf("%w: session is %s, need %v", ErrInvalidState, s, want)
}
