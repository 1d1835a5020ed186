package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/jun/notesync/internal/adapter"
	"github.com/jun/notesync/internal/model"
)

func TestStore_CreateAndListNotes(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	id, err := s.CreateNote(ctx, adapter.NoteRecord{UserID: "user1", Title: "First", Content: "hello", CreatedAt: 10, UpdatedAt: 10})
	if err != nil {
		t.Fatalf("CreateNote failed: %v", err)
	}
	if id == "" {
		t.Fatal("Expected a store-assigned ID")
	}

	notes, err := s.ListNotes(ctx, "user1")
	if err != nil {
		t.Fatalf("ListNotes failed: %v", err)
	}
	if len(notes) != 1 {
		t.Fatalf("Expected 1 note, got %d", len(notes))
	}
	if notes[0].ID != id || notes[0].Title != "First" {
		t.Errorf("Unexpected note: %+v", notes[0])
	}
}

func TestStore_ListNotes_ScopedToOwner(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	s.CreateNote(ctx, adapter.NoteRecord{UserID: "user1", Title: "mine", Content: "a"})
	s.CreateNote(ctx, adapter.NoteRecord{UserID: "user2", Title: "theirs", Content: "b"})

	notes, _ := s.ListNotes(ctx, "user1")
	if len(notes) != 1 || notes[0].Title != "mine" {
		t.Errorf("Expected only user1's note, got %+v", notes)
	}
}

func TestStore_ListNotes_OrderedByCreation(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	s.CreateNote(ctx, adapter.NoteRecord{UserID: "u", Title: "late", Content: "x", CreatedAt: 300})
	s.CreateNote(ctx, adapter.NoteRecord{UserID: "u", Title: "early", Content: "x", CreatedAt: 100})
	s.CreateNote(ctx, adapter.NoteRecord{UserID: "u", Title: "middle", Content: "x", CreatedAt: 200})

	notes, _ := s.ListNotes(ctx, "u")
	want := []string{"early", "middle", "late"}
	for i, n := range notes {
		if n.Title != want[i] {
			t.Errorf("notes[%d] = %q, want %q", i, n.Title, want[i])
		}
	}
}

func TestStore_UpdateNote_Partial(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	id, _ := s.CreateNote(ctx, adapter.NoteRecord{UserID: "u", Title: "t", Content: "c", Folder: "Work", Tags: []string{"Todo"}})

	err := s.UpdateNote(ctx, "u", id, adapter.NoteUpdate{
		Patch:     model.NotePatch{Folder: model.String(""), Tags: model.Strings(nil)},
		UpdatedAt: 42,
	})
	if err != nil {
		t.Fatalf("UpdateNote failed: %v", err)
	}

	notes, _ := s.ListNotes(ctx, "u")
	n := notes[0]
	if n.Title != "t" || n.Content != "c" {
		t.Errorf("Unspecified fields changed: %+v", n)
	}
	if n.Folder != "" {
		t.Errorf("Expected folder cleared, got %q", n.Folder)
	}
	if n.Tags != nil {
		t.Errorf("Expected tags absent, got %#v", n.Tags)
	}
	if n.UpdatedAt != 42 {
		t.Errorf("Expected updatedAt 42, got %d", n.UpdatedAt)
	}
}

func TestStore_UpdateAndDelete_NotFound(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	id, _ := s.CreateNote(ctx, adapter.NoteRecord{UserID: "owner", Title: "t", Content: "c"})

	if err := s.UpdateNote(ctx, "owner", "missing", adapter.NoteUpdate{}); !errors.Is(err, adapter.ErrNotFound) {
		t.Errorf("Expected ErrNotFound for missing note, got %v", err)
	}
	if err := s.UpdateNote(ctx, "intruder", id, adapter.NoteUpdate{}); !errors.Is(err, adapter.ErrNotFound) {
		t.Errorf("Expected ErrNotFound for foreign note, got %v", err)
	}
	if err := s.DeleteNote(ctx, "intruder", id); !errors.Is(err, adapter.ErrNotFound) {
		t.Errorf("Expected ErrNotFound deleting foreign note, got %v", err)
	}
	if err := s.DeleteNote(ctx, "owner", id); err != nil {
		t.Fatalf("DeleteNote failed: %v", err)
	}
	if err := s.DeleteNote(ctx, "owner", id); !errors.Is(err, adapter.ErrNotFound) {
		t.Errorf("Expected ErrNotFound on second delete, got %v", err)
	}
}

func TestStore_Taxonomy(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	if _, err := s.GetTaxonomy(ctx, "u"); !errors.Is(err, adapter.ErrNotFound) {
		t.Fatalf("Expected ErrNotFound before first put, got %v", err)
	}

	err := s.PutTaxonomy(ctx, adapter.TaxonomyRecord{UserID: "u", Folders: []string{"Work"}, Tags: []string{"Todo"}})
	if err != nil {
		t.Fatalf("PutTaxonomy failed: %v", err)
	}

	rec, err := s.GetTaxonomy(ctx, "u")
	if err != nil {
		t.Fatalf("GetTaxonomy failed: %v", err)
	}
	if len(rec.Folders) != 1 || rec.Folders[0] != "Work" {
		t.Errorf("Unexpected folders: %v", rec.Folders)
	}

	// Returned slices must not alias the stored record.
	rec.Folders[0] = "changed"
	again, _ := s.GetTaxonomy(ctx, "u")
	if again.Folders[0] != "Work" {
		t.Errorf("Stored taxonomy was mutated through a returned slice")
	}
}
