package adapter

import (
	"context"
	"time"

	"github.com/jun/notesync/internal/model"
)

// Timestamp is the store-native time representation: milliseconds since the Unix epoch.
type Timestamp int64

// TimestampOf converts t to a Timestamp, dropping sub-millisecond precision.
func TimestampOf(t time.Time) Timestamp {
	return Timestamp(t.UnixMilli())
}

// Time converts the timestamp back to a UTC instant.
func (ts Timestamp) Time() time.Time {
	return time.UnixMilli(int64(ts)).UTC()
}

// NoteRecord is a note as held by the remote store.
type NoteRecord struct {
	ID        string    `json:"id" dynamodbav:"id"`
	UserID    string    `json:"userId" dynamodbav:"user_id"`
	Title     string    `json:"title" dynamodbav:"title"`
	Content   string    `json:"content" dynamodbav:"content"`
	Folder    string    `json:"folder,omitempty" dynamodbav:"folder,omitempty"`
	Tags      []string  `json:"tags,omitempty" dynamodbav:"tags,omitempty"`
	CreatedAt Timestamp `json:"createdAt" dynamodbav:"created_at"`
	UpdatedAt Timestamp `json:"updatedAt" dynamodbav:"updated_at"`
}

// NoteUpdate is the partial write sent to the store. UpdatedAt is always written.
type NoteUpdate struct {
	Patch     model.NotePatch
	UpdatedAt Timestamp
}

// TaxonomyRecord is a user's folder and tag lists as held by the remote store.
type TaxonomyRecord struct {
	UserID    string    `dynamodbav:"user_id"`
	Folders   []string  `dynamodbav:"folders"`
	Tags      []string  `dynamodbav:"tags"`
	UpdatedAt Timestamp `dynamodbav:"updated_at"`
}

// NoteStore defines the remote document store operations used by the notes synchronizer.
// Every operation is scoped to the owning user; records of other users are invisible.
type NoteStore interface {
	// ListNotes returns every note owned by userID.
	ListNotes(ctx context.Context, userID string) ([]NoteRecord, error)

	// CreateNote persists a new record and returns the store-assigned ID.
	// The ID field of rec is ignored.
	CreateNote(ctx context.Context, rec NoteRecord) (string, error)

	// UpdateNote applies a partial update. It returns ErrNotFound if the note
	// does not exist or belongs to another user.
	UpdateNote(ctx context.Context, userID, id string, update NoteUpdate) error

	// DeleteNote removes a note. It returns ErrNotFound if the note
	// does not exist or belongs to another user.
	DeleteNote(ctx context.Context, userID, id string) error
}

// TaxonomyStore persists folder and tag lists.
type TaxonomyStore interface {
	// GetTaxonomy returns ErrNotFound when the user has no stored taxonomy.
	GetTaxonomy(ctx context.Context, userID string) (*TaxonomyRecord, error)
	PutTaxonomy(ctx context.Context, rec TaxonomyRecord) error
}
