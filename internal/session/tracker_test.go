package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jun/notesync/internal/model"
)

// follow drains changes, records the identities seen, and acknowledges each one.
func follow(changes <-chan Change, seen chan<- *model.User) {
	for c := range changes {
		seen <- c.User
		c.Ack()
	}
	close(seen)
}

func TestTracker_SetNotifiesSubscribers(t *testing.T) {
	tr := NewTracker()
	seenA := make(chan *model.User, 4)
	seenB := make(chan *model.User, 4)
	go follow(tr.Subscribe(), seenA)
	go follow(tr.Subscribe(), seenB)

	ctx := context.Background()
	if err := tr.Set(ctx, &model.User{UID: "u1"}); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	// Set waits for acknowledgements, so both subscribers have already seen the change.
	for _, seen := range []chan *model.User{seenA, seenB} {
		select {
		case u := <-seen:
			if u == nil || u.UID != "u1" {
				t.Errorf("Expected u1, got %+v", u)
			}
		default:
			t.Fatal("Subscriber did not observe the change before Set returned")
		}
	}

	if cur := tr.Current(); cur == nil || cur.UID != "u1" {
		t.Errorf("Current() = %+v, want u1", cur)
	}
	tr.Close()
}

func TestTracker_SignOutPublishesNil(t *testing.T) {
	tr := NewTracker()
	seen := make(chan *model.User, 4)
	go follow(tr.Subscribe(), seen)
	ctx := context.Background()

	tr.Set(ctx, &model.User{UID: "u1"})
	<-seen
	if err := tr.Set(ctx, nil); err != nil {
		t.Fatalf("Set(nil) failed: %v", err)
	}
	if u := <-seen; u != nil {
		t.Errorf("Expected nil identity, got %+v", u)
	}
	if tr.Current() != nil {
		t.Error("Expected no current identity after sign-out")
	}
	tr.Close()
}

func TestTracker_UnchangedIdentityIsNoop(t *testing.T) {
	tr := NewTracker()
	seen := make(chan *model.User, 4)
	go follow(tr.Subscribe(), seen)
	ctx := context.Background()

	tr.Set(ctx, &model.User{UID: "u1", Email: "a@example.com"})
	tr.Set(ctx, &model.User{UID: "u1", Email: "a@example.com"})
	tr.Close()

	count := 0
	for range seen {
		count++
	}
	if count != 1 {
		t.Errorf("Expected 1 change, got %d", count)
	}
}

func TestTracker_SetHonorsContext(t *testing.T) {
	tr := NewTracker()
	_ = tr.Subscribe() // nobody reads this channel

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := tr.Set(ctx, &model.User{UID: "u1"})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Expected DeadlineExceeded, got %v", err)
	}
}

func TestTracker_Close(t *testing.T) {
	tr := NewTracker()
	ch := tr.Subscribe()
	tr.Close()

	if _, ok := <-ch; ok {
		t.Error("Expected subscriber channel to be closed")
	}
	if err := tr.Set(context.Background(), &model.User{UID: "u1"}); !errors.Is(err, ErrClosed) {
		t.Errorf("Expected ErrClosed, got %v", err)
	}
	if _, ok := <-tr.Subscribe(); ok {
		t.Error("Subscribe after Close should return a closed channel")
	}
	tr.Close()
}
