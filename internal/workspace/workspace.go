// Package workspace binds the per-user session, notes and taxonomy state
// and keeps one instance per signed-in user.
package workspace

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/jun/notesync/internal/adapter"
	"github.com/jun/notesync/internal/model"
	"github.com/jun/notesync/internal/notes"
	"github.com/jun/notesync/internal/session"
	"github.com/jun/notesync/internal/taxonomy"
)

// Options configures the components of every workspace.
type Options struct {
	StoreTimeout time.Duration
	Clock        func() time.Time
	Logger       *zerolog.Logger
}

// Workspace is the state of one signed-in user.
type Workspace struct {
	Session  *session.Tracker
	Notes    *notes.Synchronizer
	Taxonomy *taxonomy.Manager

	ready   chan struct{}
	openErr error
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// User returns the identity the workspace is bound to, or nil after Close.
func (w *Workspace) User() *model.User {
	return w.Session.Current()
}

// Reload re-reads notes and lists for the current identity.
func (w *Workspace) Reload(ctx context.Context) error {
	user := w.Session.Current()
	if user == nil {
		return notes.ErrUnauthenticated
	}
	return errors.Join(
		w.Notes.Load(ctx, user),
		w.Taxonomy.Load(ctx, user),
	)
}

// loaded reports whether both the notes and the lists mirror the store.
func (w *Workspace) loaded() bool {
	return w.Notes.Ready() && w.Taxonomy.Ready()
}

// follow runs fn on its own goroutine until the tracker closes its channel.
func (w *Workspace) follow(ctx context.Context, fn func(context.Context, <-chan session.Change) error) {
	changes := w.Session.Subscribe()
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		fn(ctx, changes)
	}()
}

// Registry holds the open workspaces keyed by user ID.
type Registry struct {
	notes      adapter.NoteStore
	taxonomies adapter.TaxonomyStore
	opts       Options
	log        zerolog.Logger

	mu     sync.Mutex
	spaces map[string]*Workspace
}

func NewRegistry(noteStore adapter.NoteStore, taxStore adapter.TaxonomyStore, opts Options) *Registry {
	r := &Registry{
		notes:      noteStore,
		taxonomies: taxStore,
		opts:       opts,
		log:        zerolog.Nop(),
		spaces:     make(map[string]*Workspace),
	}
	if opts.Logger != nil {
		r.log = opts.Logger.With().Str("component", "workspace").Logger()
	}
	return r
}

// Open returns the workspace of user, creating it and loading its state on first use.
// Load failures are recorded in the workspace state rather than returned; a later
// Open retries the loads that failed.
func (r *Registry) Open(ctx context.Context, user *model.User) (*Workspace, error) {
	if user == nil || user.UID == "" {
		return nil, notes.ErrUnauthenticated
	}

	r.mu.Lock()
	w, ok := r.spaces[user.UID]
	if !ok {
		w = r.newWorkspace()
		r.spaces[user.UID] = w
	}
	r.mu.Unlock()

	if ok {
		select {
		case <-w.ready:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		if w.openErr != nil {
			return nil, w.openErr
		}
		if !w.loaded() {
			if err := w.Reload(ctx); err != nil {
				r.log.Warn().Err(err).Str("user_id", user.UID).Msg("workspace reload failed")
			}
		}
		return w, nil
	}

	err := w.Session.Set(ctx, user)
	if err != nil {
		w.openErr = err
		r.mu.Lock()
		delete(r.spaces, user.UID)
		r.mu.Unlock()
		w.shutdown()
	}
	close(w.ready)
	if err != nil {
		return nil, err
	}

	r.log.Debug().Str("user_id", user.UID).Msg("workspace opened")
	return w, nil
}

// Close signs the user out of their workspace, emptying its state, and evicts it.
// Closing a user without a workspace is a no-op.
func (r *Registry) Close(ctx context.Context, uid string) error {
	r.mu.Lock()
	w, ok := r.spaces[uid]
	delete(r.spaces, uid)
	r.mu.Unlock()
	if !ok {
		return nil
	}

	select {
	case <-w.ready:
	case <-ctx.Done():
		return ctx.Err()
	}
	if w.openErr != nil {
		return nil
	}

	err := w.Session.Set(ctx, nil)
	w.shutdown()
	r.log.Debug().Str("user_id", uid).Msg("workspace closed")
	return err
}

// Len returns the number of open workspaces.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.spaces)
}

func (r *Registry) newWorkspace() *Workspace {
	syncer := notes.NewSynchronizer(r.notes, notes.Options{
		StoreTimeout: r.opts.StoreTimeout,
		Clock:        r.opts.Clock,
		Logger:       r.opts.Logger,
	})
	w := &Workspace{
		Session: session.NewTracker(),
		Notes:   syncer,
		Taxonomy: taxonomy.NewManager(r.taxonomies, syncer, taxonomy.Options{
			StoreTimeout: r.opts.StoreTimeout,
			Clock:        r.opts.Clock,
			Logger:       r.opts.Logger,
		}),
		ready: make(chan struct{}),
	}

	ctx, cancel := context.WithCancel(context.Background())
	w.cancel = cancel
	w.follow(ctx, w.Notes.Follow)
	w.follow(ctx, w.Taxonomy.Follow)
	return w
}

func (w *Workspace) shutdown() {
	w.Session.Close()
	w.cancel()
	w.wg.Wait()
}
