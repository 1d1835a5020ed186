// Package notes keeps an in-memory view of a user's notes consistent with the remote store.
//
// The collection is a write-through cache: every mutation is persisted first and
// reflected locally only after the store confirms it.
package notes

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/jun/notesync/internal/adapter"
	"github.com/jun/notesync/internal/model"
	"github.com/jun/notesync/internal/session"
)

// DefaultStoreTimeout bounds every remote store call.
const DefaultStoreTimeout = 10 * time.Second

// Options configures a Synchronizer. Zero values select defaults.
type Options struct {
	StoreTimeout time.Duration
	Clock        func() time.Time
	Logger       *zerolog.Logger
}

// State is a read-only snapshot for rendering.
type State struct {
	Notes   []model.Note
	Loading bool
	Err     error
}

// Synchronizer owns the note collection of the current user.
type Synchronizer struct {
	store   adapter.NoteStore
	timeout time.Duration
	now     func() time.Time
	log     zerolog.Logger

	mu      sync.RWMutex
	user    *model.User
	notes   []model.Note
	loading bool
	loaded  bool // a list for user has succeeded since the identity was set
	err     error
	gen     uint64 // bumped on every identity change; stale results are dropped
}

// NewSynchronizer creates a Synchronizer with no user. It reports loading
// until the first identity is applied.
func NewSynchronizer(store adapter.NoteStore, opts Options) *Synchronizer {
	s := &Synchronizer{
		store:   store,
		timeout: opts.StoreTimeout,
		now:     opts.Clock,
		log:     zerolog.Nop(),
		loading: true,
	}
	if opts.Logger != nil {
		s.log = opts.Logger.With().Str("component", "notes").Logger()
	}
	if s.timeout == 0 {
		s.timeout = DefaultStoreTimeout
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// Follow reloads the collection for every identity change until ctx is done
// or the channel is closed.
func (s *Synchronizer) Follow(ctx context.Context, changes <-chan session.Change) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case c, ok := <-changes:
			if !ok {
				return nil
			}
			if err := s.Load(ctx, c.User); err != nil {
				s.log.Error().Err(err).Msg("failed to load notes after identity change")
			}
			c.Ack()
		}
	}
}

// Load replaces the collection with the notes owned by user.
// A nil user empties the collection without calling the store.
func (s *Synchronizer) Load(ctx context.Context, user *model.User) error {
	s.mu.Lock()
	if user == nil {
		s.user = nil
		s.notes = nil
		s.loading = false
		s.loaded = false
		s.err = nil
		s.gen++
		s.mu.Unlock()
		return nil
	}
	if s.user == nil || s.user.UID != user.UID {
		// Never show another user's notes, not even while loading.
		s.notes = nil
		s.loaded = false
		s.gen++
	}
	u := *user
	s.user = &u
	s.loading = true
	gen := s.gen
	s.mu.Unlock()

	var records []adapter.NoteRecord
	err := s.call(ctx, "list notes", func(ctx context.Context) error {
		var err error
		records, err = s.store.ListNotes(ctx, user.UID)
		return err
	})

	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.gen {
		return nil
	}
	s.loading = false
	if err != nil {
		s.err = err
		return err
	}

	loaded := make([]model.Note, 0, len(records))
	for _, rec := range records {
		if rec.UserID != user.UID {
			s.log.Warn().Str("note_id", rec.ID).Msg("store returned a note owned by another user; dropping it")
			continue
		}
		loaded = append(loaded, recordToNote(rec))
	}
	sort.SliceStable(loaded, func(i, j int) bool {
		if !loaded[i].CreatedAt.Equal(loaded[j].CreatedAt) {
			return loaded[i].CreatedAt.Before(loaded[j].CreatedAt)
		}
		return loaded[i].ID < loaded[j].ID
	})
	s.notes = loaded
	s.loaded = true
	s.err = nil
	s.log.Debug().Str("user_id", user.UID).Int("count", len(loaded)).Msg("notes loaded")
	return nil
}

// Ready reports whether the collection mirrors the store for the current user:
// a load has succeeded and the last one did not fail.
func (s *Synchronizer) Ready() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.user != nil && s.loaded && s.err == nil
}

// CreateNote persists a new note and appends it to the collection.
// Title and content are expected to be validated by the caller.
func (s *Synchronizer) CreateNote(ctx context.Context, in model.NoteInput) (model.Note, error) {
	user, gen := s.identity()
	if user == nil {
		return model.Note{}, ErrUnauthenticated
	}

	now := adapter.TimestampOf(s.now())
	rec := adapter.NoteRecord{
		UserID:    user.UID,
		Title:     in.Title,
		Content:   in.Content,
		Folder:    in.Folder,
		Tags:      model.NormalizeTags(in.Tags),
		CreatedAt: now,
		UpdatedAt: now,
	}

	err := s.call(ctx, "create note", func(ctx context.Context) error {
		id, err := s.store.CreateNote(ctx, rec)
		rec.ID = id
		return err
	})

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.err = err
		return model.Note{}, err
	}

	note := recordToNote(rec)
	if gen == s.gen {
		s.notes = append(s.notes, note)
		s.err = nil
	}
	return note.Clone(), nil
}

// UpdateNote persists a partial update and merges it into the cached note.
// UpdatedAt is always stamped. If the note is not cached, only ID and UpdatedAt
// of the returned note are set.
func (s *Synchronizer) UpdateNote(ctx context.Context, id string, patch model.NotePatch) (model.Note, error) {
	user, gen := s.identity()
	if user == nil {
		return model.Note{}, ErrUnauthenticated
	}

	now := adapter.TimestampOf(s.now())
	err := s.call(ctx, "update note", func(ctx context.Context) error {
		return s.store.UpdateNote(ctx, user.UID, id, adapter.NoteUpdate{Patch: patch, UpdatedAt: now})
	})
	if err != nil {
		return model.Note{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.gen {
		return model.Note{ID: id, UpdatedAt: now.Time()}, nil
	}
	for i := range s.notes {
		if s.notes[i].ID == id {
			merged := patch.Apply(s.notes[i])
			merged.UpdatedAt = now.Time()
			s.notes[i] = merged
			return merged.Clone(), nil
		}
	}
	return model.Note{ID: id, UpdatedAt: now.Time()}, nil
}

// DeleteNote removes a note from the store, then from the collection.
func (s *Synchronizer) DeleteNote(ctx context.Context, id string) error {
	user, gen := s.identity()
	if user == nil {
		return ErrUnauthenticated
	}

	err := s.call(ctx, "delete note", func(ctx context.Context) error {
		return s.store.DeleteNote(ctx, user.UID, id)
	})
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.gen {
		return nil
	}
	kept := s.notes[:0]
	for _, n := range s.notes {
		if n.ID != id {
			kept = append(kept, n)
		}
	}
	s.notes = kept
	return nil
}

// Reset drops the identity and the collection.
func (s *Synchronizer) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.user = nil
	s.notes = nil
	s.loading = false
	s.err = nil
	s.gen++
}

// User returns the identity the collection belongs to, or nil.
func (s *Synchronizer) User() *model.User {
	u, _ := s.identity()
	return u
}

// Notes returns a copy of the collection in insertion order.
func (s *Synchronizer) Notes() []model.Note {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneNotes(s.notes)
}

// Note returns a copy of the note with the given ID.
func (s *Synchronizer) Note(id string) (model.Note, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, n := range s.notes {
		if n.ID == id {
			return n.Clone(), true
		}
	}
	return model.Note{}, false
}

// State returns a snapshot of the collection and its flags.
func (s *Synchronizer) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return State{Notes: cloneNotes(s.notes), Loading: s.loading, Err: s.err}
}

func (s *Synchronizer) identity() (*model.User, uint64) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil {
		return nil, s.gen
	}
	u := *s.user
	return &u, s.gen
}

// call runs fn under the store timeout and wraps failures in a StoreError.
func (s *Synchronizer) call(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	err := fn(ctx)
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		err = fmt.Errorf("%w: %w", ErrRemoteUnavailable, err)
	}
	s.log.Error().Err(err).Str("op", op).Msg("store call failed")
	return &StoreError{Op: op, Err: err}
}

func recordToNote(rec adapter.NoteRecord) model.Note {
	return model.Note{
		ID:        rec.ID,
		Title:     rec.Title,
		Content:   rec.Content,
		Folder:    rec.Folder,
		Tags:      model.NormalizeTags(rec.Tags),
		CreatedAt: rec.CreatedAt.Time(),
		UpdatedAt: rec.UpdatedAt.Time(),
		UserID:    rec.UserID,
	}
}

func cloneNotes(notes []model.Note) []model.Note {
	out := make([]model.Note, len(notes))
	for i, n := range notes {
		out[i] = n.Clone()
	}
	return out
}
