package restore

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/illarion/statevault/internal/crypto"
	"github.com/illarion/statevault/internal/diff"
	"github.com/illarion/statevault/internal/envelope"
	"github.com/illarion/statevault/internal/format"
	"github.com/illarion/statevault/internal/merge"
	"github.com/illarion/statevault/internal/payload"
	"github.com/illarion/statevault/internal/storage"
)

// Preview is what a presentation layer reviews before a restore is applied.
type Preview struct {
	Mode      Mode
	Meta      payload.Meta
	Items     diff.Result
	Settings  diff.SettingsDiff
	Conflicts diff.ConflictSet
	// Records are opaque records absent locally. The restore writes them.
	Records []string
	// Replaced are opaque records whose local value differs from the backup.
	// They are written only when selected.
	Replaced []string
	// Ignored are payload keys outside the allow-list. They are never written.
	Ignored []string
	// ChecksumErr is set when the plaintext checksum does not match.
	ChecksumErr error

	keyFunc diff.KeyFunc
}

// SelectAll approves every change in the preview.
func (p *Preview) SelectAll() merge.Selection {
	sel := merge.SelectAll(p.Items, p.Settings, p.keyFunc)
	sel.Records = append([]string(nil), p.Replaced...)
	return sel
}

// Key derives the key of an item the same way the diff did.
func (p *Preview) Key(item diff.Item) string {
	if p.keyFunc == nil {
		return diff.ItemKey(item)
	}
	return p.keyFunc(item)
}

// Presenter shows a preview and returns the approved selection. Returning
// ErrCancelled cancels the restore.
type Presenter interface {
	Present(ctx context.Context, p *Preview) (merge.Selection, error)
}

// PresenterFunc adapts a function to Presenter.
type PresenterFunc func(ctx context.Context, p *Preview) (merge.Selection, error)

func (f PresenterFunc) Present(ctx context.Context, p *Preview) (merge.Selection, error) {
	return f(ctx, p)
}

// Outcome reports what an applied restore wrote.
type Outcome struct {
	Mode    Mode
	Written []string
	Ignored []string
	Items   int // collection size after the restore
}

// Session is one restore attempt of one vault file.
type Session struct {
	o    *Orchestrator
	data []byte

	mu      sync.Mutex
	state   State
	payload *payload.VaultPayload
	preview *Preview
}

// Begin starts a restore of a vault file.
func (o *Orchestrator) Begin(data []byte) *Session {
	return &Session{o: o, data: data, state: Idle}
}

// State returns the current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Preview returns the last computed preview, if any.
func (s *Session) Preview() *Preview {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.preview
}

func (s *Session) transition(to State, from ...State) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(from) > 0 {
		allowed := false
		for _, f := range from {
			if s.state == f {
				allowed = true
				break
			}
		}
		if !allowed {
			return wrapState(s.state, from...)
		}
	}
	s.o.logger.WithFields(logrus.Fields{"from": s.state, "to": to}).Debug("restore state")
	s.state = to
	return nil
}

func (s *Session) set(to State) {
	s.transition(to)
}

// Decrypt opens the vault and prepares a preview. On a wrong password the
// session moves to DecryptFailed and Decrypt may be called again.
func (s *Session) Decrypt(ctx context.Context, password []byte) (*Preview, error) {
	if err := s.transition(Decrypting, Idle, DecryptFailed); err != nil {
		return nil, err
	}

	f, err := format.ParseVault(s.data)
	if err != nil {
		s.set(Idle)
		return nil, err
	}

	plaintext, err := s.o.open(ctx, password, s.data, func(b crypto.Backend, pw, _ []byte) ([]byte, error) {
		key, err := envelope.DeriveKey(b, pw, f.Header)
		if err != nil {
			return nil, err
		}
		defer key.Destroy()
		return envelope.Decrypt(b, key, f)
	})
	if err != nil {
		if errors.Is(err, crypto.ErrAuthentication) {
			s.set(DecryptFailed)
			s.o.metrics.Restore(string(s.o.mode()), describe(err))
		} else {
			s.set(Idle)
		}
		return nil, err
	}

	p, err := payload.Decode(plaintext)
	crypto.ClearBytes(plaintext)
	if err != nil {
		s.set(Idle)
		return nil, err
	}

	preview, err := s.o.buildPreview(ctx, p)
	if err != nil {
		s.set(Idle)
		return nil, err
	}

	if preview.Mode == ModeSelective && preview.empty() {
		s.o.logger.Info("restore found no differences")
		s.o.metrics.Restore(string(ModeSelective), "no_changes")
		s.set(Idle)
		return nil, ErrNoDifferences
	}

	s.mu.Lock()
	s.payload = p
	s.preview = preview
	s.mu.Unlock()

	if preview.Mode == ModeFullOverwrite {
		s.set(DiffUnavailable)
	} else {
		s.set(DiffReady)
	}
	return preview, nil
}

// Present shows the preview through presenter and returns its selection.
// A presenter returning ErrCancelled cancels the session.
func (s *Session) Present(ctx context.Context, presenter Presenter) (merge.Selection, error) {
	if err := s.transition(PreviewShown, DiffReady, DiffUnavailable); err != nil {
		return merge.Selection{}, err
	}

	sel, err := presenter.Present(ctx, s.Preview())
	if err != nil {
		if errors.Is(err, ErrCancelled) {
			s.Cancel()
		}
		return merge.Selection{}, err
	}
	return sel, nil
}

// Cancel abandons the restore without touching local state.
func (s *Session) Cancel() error {
	if err := s.transition(Cancelled, DiffReady, DiffUnavailable, DecryptFailed, PreviewShown); err != nil {
		return err
	}
	s.o.metrics.Restore(string(s.o.mode()), "cancelled")

	s.mu.Lock()
	s.payload = nil
	s.preview = nil
	s.mu.Unlock()

	s.set(Idle)
	return nil
}

// Confirm applies the selection. In full-overwrite mode the selection is
// ignored and every recognized remote record is written.
func (s *Session) Confirm(ctx context.Context, sel merge.Selection) (*Outcome, error) {
	if err := s.transition(Applying, PreviewShown); err != nil {
		return nil, err
	}

	s.mu.Lock()
	p, preview := s.payload, s.preview
	s.mu.Unlock()

	out, err := s.o.apply(ctx, p, preview, sel)
	s.o.metrics.Restore(string(preview.Mode), statusOf(err))
	if err != nil {
		// Nothing was committed; the preview can be confirmed again or cancelled
		s.set(PreviewShown)
		return nil, err
	}

	s.set(Done)
	return out, nil
}

func (o *Orchestrator) mode() Mode {
	if o.differ == nil {
		return ModeFullOverwrite
	}
	return ModeSelective
}

func (p *Preview) empty() bool {
	return p.Items.Empty() && p.Settings.Empty() && len(p.Records) == 0 && len(p.Replaced) == 0
}

type localState struct {
	items    []diff.Item
	settings map[string]any
	present  map[string]bool
	values   map[string]string
	base     []diff.Item
}

func (o *Orchestrator) readLocal(keys []string) (*localState, error) {
	st := &localState{
		present: make(map[string]bool, len(keys)),
		values:  make(map[string]string, len(keys)),
	}
	for _, key := range keys {
		spec, _ := o.registry.Lookup(key)
		value, found, err := o.store.Get(key)
		if err != nil {
			return nil, fmt.Errorf("failed to read record %s: %w", key, err)
		}
		st.present[key] = found
		if found {
			st.values[key] = value
		}
		switch spec.Kind {
		case payload.KindCollection:
			if st.items, err = diff.DecodeItems(value); err != nil {
				return nil, err
			}
		case payload.KindSettings:
			if st.settings, err = diff.DecodeSettings(value); err != nil {
				return nil, err
			}
		}
	}
	return st, nil
}

func (o *Orchestrator) readBase(collectionKey string) ([]diff.Item, error) {
	if o.ancestry == nil || collectionKey == "" {
		return nil, nil
	}
	data, found, err := o.ancestry.Ancestor(collectionKey)
	if err != nil || !found {
		return nil, err
	}
	return diff.DecodeItems(string(data))
}

func (o *Orchestrator) buildPreview(ctx context.Context, p *payload.VaultPayload) (*Preview, error) {
	allowed, ignored := o.registry.Filter(p.Data)
	preview := &Preview{Mode: o.mode(), Meta: p.Meta, Ignored: ignored}

	if err := payload.VerifyChecksum(p); err != nil {
		preview.ChecksumErr = err
		o.logger.WithError(err).Warn("payload checksum mismatch")
	}
	if len(ignored) > 0 {
		o.logger.WithField("keys", ignored).Warn("ignoring unrecognized records")
	}

	if o.differ == nil {
		o.logger.WithField("mode", ModeFullOverwrite).Warn("diff engine unavailable, restore will overwrite local state")
		for key := range allowed {
			preview.Records = append(preview.Records, key)
		}
		sort.Strings(preview.Records)
		return preview, nil
	}
	preview.keyFunc = o.differ.Key

	keys := sortedKeys(allowed)
	collectionKey := o.recordOfKind(allowed, payload.KindCollection)

	var local *localState
	var base []diff.Item
	err := o.exclusive(ctx, func() error {
		var err error
		if local, err = o.readLocal(keys); err != nil {
			return err
		}
		base, err = o.readBase(collectionKey)
		return err
	})
	if err != nil {
		return nil, err
	}

	for _, key := range keys {
		spec, _ := o.registry.Lookup(key)
		switch spec.Kind {
		case payload.KindCollection:
			remote, err := diff.DecodeItems(allowed[key])
			if err != nil {
				return nil, err
			}
			preview.Items = o.differ.CompareItems(local.items, remote)
			if base != nil {
				preview.Conflicts = o.differ.DetectConflicts(base, local.items, remote)
			}
		case payload.KindSettings:
			remote, err := diff.DecodeSettings(allowed[key])
			if err != nil {
				return nil, err
			}
			preview.Settings = o.differ.CompareSettings(local.settings, remote)
		default:
			switch {
			case !local.present[key]:
				preview.Records = append(preview.Records, key)
			case local.values[key] != allowed[key]:
				preview.Replaced = append(preview.Replaced, key)
			}
		}
	}

	o.logger.WithFields(logrus.Fields{
		"added":     len(preview.Items.Added),
		"modified":  len(preview.Items.Modified),
		"deleted":   len(preview.Items.Deleted),
		"settings":  len(preview.Settings.Changed),
		"conflicts": len(preview.Conflicts.Conflicts),
		"records":   len(preview.Records),
		"replaced":  len(preview.Replaced),
	}).Debug("restore preview ready")
	return preview, nil
}

// recordOfKind returns the first payload key of the given kind.
func (o *Orchestrator) recordOfKind(data map[string]string, kind payload.Kind) string {
	for _, key := range sortedKeys(data) {
		if spec, _ := o.registry.Lookup(key); spec.Kind == kind {
			return key
		}
	}
	return ""
}

func (o *Orchestrator) apply(ctx context.Context, p *payload.VaultPayload, preview *Preview, sel merge.Selection) (*Outcome, error) {
	var out *Outcome
	err := o.exclusive(ctx, func() error {
		var (
			changes storage.Changeset
			err     error
		)
		if preview.Mode == ModeFullOverwrite {
			changes, out, err = o.planOverwrite(p)
		} else {
			changes, out, err = o.planSelective(p, preview, sel)
		}
		if err != nil {
			return err
		}

		if o.ancestry != nil {
			if key := o.recordOfKind(p.Data, payload.KindCollection); key != "" && o.registry.Allowed(key) {
				changes.Ancestors = map[string][]byte{key: []byte(p.Data[key])}
			}
		}
		return o.store.Commit(changes)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to apply restore: %w", err)
	}

	o.logger.WithFields(logrus.Fields{
		"mode":    out.Mode,
		"written": out.Written,
		"items":   out.Items,
	}).Info("restore applied")
	return out, nil
}

func (o *Orchestrator) planOverwrite(p *payload.VaultPayload) (storage.Changeset, *Outcome, error) {
	o.logger.WithField("mode", ModeFullOverwrite).Warn("overwriting local state with remote records")
	changes, result := payload.Plan(o.registry, p)
	out := &Outcome{Mode: ModeFullOverwrite, Written: result.Written, Ignored: result.Ignored}
	if key := o.recordOfKind(p.Data, payload.KindCollection); key != "" {
		if items, err := diff.DecodeItems(p.Data[key]); err == nil {
			out.Items = len(items)
		}
	}
	return changes, out, nil
}

func (o *Orchestrator) planSelective(p *payload.VaultPayload, preview *Preview, sel merge.Selection) (storage.Changeset, *Outcome, error) {
	allowed, ignored := o.registry.Filter(p.Data)
	keys := sortedKeys(allowed)

	// Re-read under the lock: local state may have moved since the preview
	local, err := o.readLocal(keys)
	if err != nil {
		return storage.Changeset{}, nil, err
	}
	sel = sel.Resolve(preview.Conflicts)
	approved := make(map[string]bool, len(sel.Records))
	for _, key := range sel.Records {
		approved[key] = true
	}

	out := &Outcome{Mode: ModeSelective, Ignored: ignored}
	records := make(map[string]*string)
	for _, key := range keys {
		spec, _ := o.registry.Lookup(key)
		var value string
		switch spec.Kind {
		case payload.KindCollection:
			if len(sel.Items) == 0 {
				out.Items = len(local.items)
				continue
			}
			items := merge.ApplySelectedChanges(local.items, sel.Items, preview.keyFunc)
			out.Items = len(items)
			if value, err = diff.EncodeItems(items); err != nil {
				return storage.Changeset{}, nil, err
			}
		case payload.KindSettings:
			if len(sel.Settings) == 0 {
				continue
			}
			if value, err = diff.EncodeSettings(merge.ApplySettings(local.settings, sel.Settings)); err != nil {
				return storage.Changeset{}, nil, err
			}
		default:
			if local.present[key] && (local.values[key] == allowed[key] || !approved[key]) {
				continue
			}
			value = allowed[key]
		}
		records[key] = &value
		out.Written = append(out.Written, key)
	}
	return storage.Changeset{Records: records}, out, nil
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
