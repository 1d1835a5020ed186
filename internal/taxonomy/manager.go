// Package taxonomy manages the folder and tag names of the signed-in user and
// cascades renames and deletions to the notes that use them.
package taxonomy

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/jun/notesync/internal/adapter"
	"github.com/jun/notesync/internal/model"
	"github.com/jun/notesync/internal/notes"
	"github.com/jun/notesync/internal/session"
)

const (
	opRename = "rename"
	opDelete = "delete"
)

// Options configures a Manager. Zero values select defaults.
type Options struct {
	StoreTimeout time.Duration
	Clock        func() time.Time
	Logger       *zerolog.Logger
}

// Manager owns the folder and tag lists. Cascades go through the Synchronizer
// so every note change is persisted before it is shown.
type Manager struct {
	store   adapter.TaxonomyStore
	notes   *notes.Synchronizer
	timeout time.Duration
	now     func() time.Time
	log     zerolog.Logger

	// opMu serializes mutations from read through persist and cascade.
	opMu sync.Mutex

	mu      sync.RWMutex
	user    *model.User
	folders []string
	tags    []string
	loaded  bool // the lists mirror the store for user
	gen     uint64
}

// NewManager creates a Manager with empty lists and no user.
func NewManager(store adapter.TaxonomyStore, syncer *notes.Synchronizer, opts Options) *Manager {
	m := &Manager{
		store:   store,
		notes:   syncer,
		timeout: opts.StoreTimeout,
		now:     opts.Clock,
		log:     zerolog.Nop(),
	}
	if opts.Logger != nil {
		m.log = opts.Logger.With().Str("component", "taxonomy").Logger()
	}
	if m.timeout == 0 {
		m.timeout = notes.DefaultStoreTimeout
	}
	if m.now == nil {
		m.now = time.Now
	}
	return m
}

// Follow reloads the lists for every identity change until ctx is done or the
// channel is closed.
func (m *Manager) Follow(ctx context.Context, changes <-chan session.Change) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case c, ok := <-changes:
			if !ok {
				return nil
			}
			if err := m.Load(ctx, c.User); err != nil {
				m.log.Error().Err(err).Msg("failed to load taxonomy after identity change")
			}
			c.Ack()
		}
	}
}

// Load reads the lists of user, seeding the defaults when none are stored.
// A nil user empties both lists.
func (m *Manager) Load(ctx context.Context, user *model.User) error {
	m.mu.Lock()
	m.gen++
	gen := m.gen
	if user == nil {
		m.user, m.folders, m.tags = nil, nil, nil
		m.loaded = false
		m.mu.Unlock()
		return nil
	}
	if m.user == nil || m.user.UID != user.UID {
		m.folders, m.tags = nil, nil
		m.loaded = false
	}
	u := *user
	m.user = &u
	m.mu.Unlock()

	var rec *adapter.TaxonomyRecord
	err := m.call(ctx, "get taxonomy", func(ctx context.Context) error {
		var err error
		rec, err = m.store.GetTaxonomy(ctx, user.UID)
		return err
	})
	if errors.Is(err, adapter.ErrNotFound) {
		defaults := model.DefaultTaxonomy()
		rec = &adapter.TaxonomyRecord{
			UserID:    user.UID,
			Folders:   defaults.Folders,
			Tags:      defaults.Tags,
			UpdatedAt: adapter.TimestampOf(m.now()),
		}
		err = m.call(ctx, "seed taxonomy", func(ctx context.Context) error {
			return m.store.PutTaxonomy(ctx, *rec)
		})
	}
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if gen != m.gen {
		return nil
	}
	m.folders = append([]string(nil), rec.Folders...)
	m.tags = append([]string(nil), rec.Tags...)
	m.loaded = true
	return nil
}

// Folders returns a copy of the folder names.
func (m *Manager) Folders() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]string(nil), m.folders...)
}

// Tags returns a copy of the tag names.
func (m *Manager) Tags() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]string(nil), m.tags...)
}

// Taxonomy returns copies of both lists.
func (m *Manager) Taxonomy() model.Taxonomy {
	return model.Taxonomy{Folders: m.Folders(), Tags: m.Tags()}
}

func (m *Manager) AddFolder(ctx context.Context, name string) error {
	return m.add(ctx, model.KindFolder, name)
}

func (m *Manager) AddTag(ctx context.Context, name string) error {
	return m.add(ctx, model.KindTag, name)
}

// RenameFolder renames a folder and moves every note filed under it.
// Renaming onto an existing folder merges the two.
func (m *Manager) RenameFolder(ctx context.Context, oldName, newName string) (Report, error) {
	return m.rename(ctx, model.KindFolder, oldName, newName)
}

// RenameTag renames a tag on the list and on every note carrying it.
func (m *Manager) RenameTag(ctx context.Context, oldName, newName string) (Report, error) {
	return m.rename(ctx, model.KindTag, oldName, newName)
}

// DeleteFolder removes a folder and unfiles every note filed under it.
func (m *Manager) DeleteFolder(ctx context.Context, name string) (Report, error) {
	return m.remove(ctx, model.KindFolder, name)
}

// DeleteTag removes a tag from the list and from every note carrying it.
func (m *Manager) DeleteTag(ctx context.Context, name string) (Report, error) {
	return m.remove(ctx, model.KindTag, name)
}

func (m *Manager) add(ctx context.Context, kind model.TaxonomyKind, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return &notes.ValidationError{Field: string(kind), Reason: "name must not be blank"}
	}

	m.opMu.Lock()
	defer m.opMu.Unlock()

	user, gen, err := m.requireLoaded(ctx)
	if err != nil {
		return err
	}
	list := m.list(kind)
	if contains(list, name) {
		return nil
	}
	return m.persist(ctx, user, gen, kind, append(list, name))
}

func (m *Manager) rename(ctx context.Context, kind model.TaxonomyKind, oldName, newName string) (Report, error) {
	report := Report{Kind: kind, Op: opRename, Name: oldName}
	newName = strings.TrimSpace(newName)
	if newName == "" {
		return report, &notes.ValidationError{Field: string(kind), Reason: "new name must not be blank"}
	}
	if newName == oldName {
		return report, nil
	}

	m.opMu.Lock()
	defer m.opMu.Unlock()

	user, gen, err := m.requireCascade(ctx)
	if err != nil {
		return report, err
	}

	list := m.list(kind)
	next := make([]string, 0, len(list))
	merge := contains(list, newName)
	for _, n := range list {
		switch {
		case n != oldName:
			next = append(next, n)
		case !merge:
			next = append(next, newName)
		}
	}
	if err := m.persist(ctx, user, gen, kind, next); err != nil {
		return report, err
	}

	report.Outcomes = m.cascade(ctx, kind, oldName, func(n model.Note) model.NotePatch {
		if kind == model.KindFolder {
			return model.NotePatch{Folder: model.String(newName)}
		}
		return model.NotePatch{Tags: model.Strings(replaceTag(n.Tags, oldName, newName))}
	})
	m.logReport(report)
	return report, nil
}

func (m *Manager) remove(ctx context.Context, kind model.TaxonomyKind, name string) (Report, error) {
	report := Report{Kind: kind, Op: opDelete, Name: name}

	m.opMu.Lock()
	defer m.opMu.Unlock()

	user, gen, err := m.requireCascade(ctx)
	if err != nil {
		return report, err
	}

	list := m.list(kind)
	next := make([]string, 0, len(list))
	for _, n := range list {
		if n != name {
			next = append(next, n)
		}
	}
	if err := m.persist(ctx, user, gen, kind, next); err != nil {
		return report, err
	}

	report.Outcomes = m.cascade(ctx, kind, name, func(n model.Note) model.NotePatch {
		if kind == model.KindFolder {
			return model.NotePatch{Folder: model.String("")}
		}
		return model.NotePatch{Tags: model.Strings(removeTag(n.Tags, name))}
	})
	m.logReport(report)
	return report, nil
}

// cascade updates every note referencing name, one at a time in collection order.
// A failed update does not stop the remaining ones.
func (m *Manager) cascade(ctx context.Context, kind model.TaxonomyKind, name string, patchFor func(model.Note) model.NotePatch) []Outcome {
	affected := m.notes.Referencing(kind, name)
	outcomes := make([]Outcome, 0, len(affected))
	for _, n := range affected {
		_, err := m.notes.UpdateNote(ctx, n.ID, patchFor(n))
		outcomes = append(outcomes, Outcome{NoteID: n.ID, Err: err})
	}
	return outcomes
}

// persist writes the lists with kind replaced by list, then updates the local copy.
func (m *Manager) persist(ctx context.Context, user *model.User, gen uint64, kind model.TaxonomyKind, list []string) error {
	m.mu.RLock()
	rec := adapter.TaxonomyRecord{
		UserID:    user.UID,
		Folders:   append([]string(nil), m.folders...),
		Tags:      append([]string(nil), m.tags...),
		UpdatedAt: adapter.TimestampOf(m.now()),
	}
	m.mu.RUnlock()
	if kind == model.KindFolder {
		rec.Folders = list
	} else {
		rec.Tags = list
	}

	err := m.call(ctx, "put taxonomy", func(ctx context.Context) error {
		return m.store.PutTaxonomy(ctx, rec)
	})
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if gen != m.gen {
		return nil
	}
	if kind == model.KindFolder {
		m.folders = append([]string(nil), list...)
	} else {
		m.tags = append([]string(nil), list...)
	}
	return nil
}

func (m *Manager) requireUser() (*model.User, uint64, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.user == nil {
		return nil, m.gen, false, notes.ErrUnauthenticated
	}
	u := *m.user
	return &u, m.gen, m.loaded, nil
}

// requireLoaded returns the current user once the lists mirror the store,
// loading them first when an earlier load failed. Lists are never written
// before they have been read.
func (m *Manager) requireLoaded(ctx context.Context) (*model.User, uint64, error) {
	user, gen, loaded, err := m.requireUser()
	if err != nil || loaded {
		return user, gen, err
	}
	if err := m.Load(ctx, user); err != nil {
		return nil, gen, err
	}
	user, gen, loaded, err = m.requireUser()
	if err == nil && !loaded {
		// The identity changed while loading.
		err = notes.ErrUnauthenticated
	}
	return user, gen, err
}

// requireCascade is requireLoaded plus a note collection that mirrors the
// store, so the cascade reaches every note referencing the name.
func (m *Manager) requireCascade(ctx context.Context) (*model.User, uint64, error) {
	user, gen, err := m.requireLoaded(ctx)
	if err != nil {
		return nil, gen, err
	}
	if !m.notes.Ready() {
		if err := m.notes.Load(ctx, user); err != nil {
			return nil, gen, err
		}
	}
	return user, gen, nil
}

// Ready reports whether the lists mirror the store for the current user.
func (m *Manager) Ready() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.user != nil && m.loaded
}

func (m *Manager) list(kind model.TaxonomyKind) []string {
	if kind == model.KindFolder {
		return m.Folders()
	}
	return m.Tags()
}

func (m *Manager) call(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	err := fn(ctx)
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		err = fmt.Errorf("%w: %w", notes.ErrRemoteUnavailable, err)
	}
	if !errors.Is(err, adapter.ErrNotFound) {
		m.log.Error().Err(err).Str("op", op).Msg("store call failed")
	}
	return &notes.StoreError{Op: op, Err: err}
}

func (m *Manager) logReport(r Report) {
	ev := m.log.Info()
	if len(r.Failed()) > 0 {
		ev = m.log.Warn().Err(r.Err())
	}
	ev.Str("kind", string(r.Kind)).
		Str("op", r.Op).
		Str("name", r.Name).
		Int("notes", len(r.Outcomes)).
		Int("failed", len(r.Failed())).
		Msg("taxonomy cascade finished")
}

func contains(list []string, name string) bool {
	for _, n := range list {
		if n == name {
			return true
		}
	}
	return false
}

// replaceTag swaps oldTag for newTag in place, dropping newTag when already present.
func replaceTag(tags []string, oldTag, newTag string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]bool, len(tags))
	for _, t := range tags {
		if t == oldTag {
			t = newTag
		}
		if seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}

func removeTag(tags []string, tag string) []string {
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		if t != tag {
			out = append(out, t)
		}
	}
	return out
}
