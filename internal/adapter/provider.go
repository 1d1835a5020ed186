package adapter

import (
	"context"
	"strings"
)

// DemoUserPrefix marks identities created by demo login.
const DemoUserPrefix = "demo-user-"

// Stores bundles the note and taxonomy stores of one backend.
type Stores struct {
	Notes      NoteStore
	Taxonomies TaxonomyStore
}

// Hybrid delegates to the demo backend for demo users and to the primary backend otherwise.
type Hybrid struct {
	Primary Stores
	Demo    Stores
}

// IsDemoUser reports whether userID was issued by demo login.
func IsDemoUser(userID string) bool {
	return strings.HasPrefix(userID, DemoUserPrefix)
}

func (h *Hybrid) pick(userID string) Stores {
	if IsDemoUser(userID) {
		return h.Demo
	}
	return h.Primary
}

func (h *Hybrid) ListNotes(ctx context.Context, userID string) ([]NoteRecord, error) {
	return h.pick(userID).Notes.ListNotes(ctx, userID)
}

func (h *Hybrid) CreateNote(ctx context.Context, rec NoteRecord) (string, error) {
	return h.pick(rec.UserID).Notes.CreateNote(ctx, rec)
}

func (h *Hybrid) UpdateNote(ctx context.Context, userID, id string, update NoteUpdate) error {
	return h.pick(userID).Notes.UpdateNote(ctx, userID, id, update)
}

func (h *Hybrid) DeleteNote(ctx context.Context, userID, id string) error {
	return h.pick(userID).Notes.DeleteNote(ctx, userID, id)
}

func (h *Hybrid) GetTaxonomy(ctx context.Context, userID string) (*TaxonomyRecord, error) {
	return h.pick(userID).Taxonomies.GetTaxonomy(ctx, userID)
}

func (h *Hybrid) PutTaxonomy(ctx context.Context, rec TaxonomyRecord) error {
	return h.pick(rec.UserID).Taxonomies.PutTaxonomy(ctx, rec)
}
