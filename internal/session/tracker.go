// Package session tracks the authenticated identity and announces changes to subscribers.
package session

import (
	"context"
	"errors"
	"sync"

	"github.com/jun/notesync/internal/model"
)

// ErrClosed is returned by Set after Close.
var ErrClosed = errors.New("session tracker closed")

// Change announces a new identity to one subscriber. User is nil when signed out.
// The subscriber must call Ack exactly once after reacting to the change.
type Change struct {
	User *model.User
	ack  chan struct{}
}

// Ack reports that the subscriber has finished reacting to the change.
func (c Change) Ack() {
	if c.ack != nil {
		close(c.ack)
	}
}

// Tracker holds the current identity. Set publishes each change to every
// subscriber and waits for all of them to acknowledge before returning.
type Tracker struct {
	setMu sync.Mutex // serializes Set and Close so every subscriber sees changes in the same order

	mu      sync.Mutex
	current *model.User
	subs    []chan Change
	closed  bool
}

// NewTracker creates a Tracker with no identity.
func NewTracker() *Tracker {
	return &Tracker{}
}

// Current returns a copy of the current identity, or nil.
func (t *Tracker) Current() *model.User {
	t.mu.Lock()
	defer t.mu.Unlock()
	return cloneUser(t.current)
}

// Subscribe registers a subscriber. The channel is closed by Close.
func (t *Tracker) Subscribe() <-chan Change {
	t.mu.Lock()
	defer t.mu.Unlock()

	ch := make(chan Change)
	if t.closed {
		close(ch)
		return ch
	}
	t.subs = append(t.subs, ch)
	return ch
}

// Set changes the identity. It is a no-op when the identity is unchanged.
// It returns once every subscriber has acknowledged, or when ctx is done.
func (t *Tracker) Set(ctx context.Context, user *model.User) error {
	t.setMu.Lock()
	defer t.setMu.Unlock()

	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return ErrClosed
	}
	if sameUser(t.current, user) {
		t.mu.Unlock()
		return nil
	}
	t.current = cloneUser(user)
	subs := append([]chan Change(nil), t.subs...)
	t.mu.Unlock()

	acks := make([]chan struct{}, 0, len(subs))
	for _, ch := range subs {
		ack := make(chan struct{})
		select {
		case ch <- Change{User: cloneUser(user), ack: ack}:
			acks = append(acks, ack)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	for _, ack := range acks {
		select {
		case <-ack:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// Close closes every subscriber channel. Later calls to Set fail with ErrClosed.
func (t *Tracker) Close() {
	t.setMu.Lock()
	defer t.setMu.Unlock()

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return
	}
	t.closed = true
	for _, ch := range t.subs {
		close(ch)
	}
	t.subs = nil
}

func cloneUser(u *model.User) *model.User {
	if u == nil {
		return nil
	}
	c := *u
	return &c
}

func sameUser(a, b *model.User) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
