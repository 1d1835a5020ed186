package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/jun/notesync/internal/adapter"
	"github.com/jun/notesync/internal/model"
)

const (
	maxDemoContentSize = 256 * 1024 // 256KB
	maxDemoTitleLength = 255
	maxDemoItemCount   = 50
)

// Store implements adapter.NoteStore and adapter.TaxonomyStore with in-process maps.
// It backs demo users and tests.
type Store struct {
	notes      map[string]adapter.NoteRecord
	taxonomies map[string]adapter.TaxonomyRecord
	mu         sync.RWMutex

	// Limits are enforced on writes when set.
	Limits bool
}

// NewStore creates an empty store without limits.
func NewStore() *Store {
	return &Store{
		notes:      make(map[string]adapter.NoteRecord),
		taxonomies: make(map[string]adapter.TaxonomyRecord),
	}
}

// NewDemoStore creates an empty store that enforces the demo limits.
func NewDemoStore() *Store {
	s := NewStore()
	s.Limits = true
	return s
}

func (s *Store) countUserNotes(userID string) int {
	n := 0
	for _, rec := range s.notes {
		if rec.UserID == userID {
			n++
		}
	}
	return n
}

func checkTitle(title string) error {
	if utf8.RuneCountInString(title) > maxDemoTitleLength {
		return fmt.Errorf("title too long (max %d characters): %w", maxDemoTitleLength, adapter.ErrLimitExceeded)
	}
	return nil
}

func checkContent(content string) error {
	if len(content) > maxDemoContentSize {
		return fmt.Errorf("content too large (max %d bytes): %w", maxDemoContentSize, adapter.ErrLimitExceeded)
	}
	return nil
}

func cloneRecord(rec adapter.NoteRecord) adapter.NoteRecord {
	rec.Tags = model.NormalizeTags(rec.Tags)
	return rec
}

func (s *Store) ListNotes(ctx context.Context, userID string) ([]adapter.NoteRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []adapter.NoteRecord
	for _, rec := range s.notes {
		if rec.UserID == userID {
			out = append(out, cloneRecord(rec))
		}
	}
	// Map order is random; keep results stable for callers.
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt != out[j].CreatedAt {
			return out[i].CreatedAt < out[j].CreatedAt
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *Store) CreateNote(ctx context.Context, rec adapter.NoteRecord) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.Limits {
		if err := checkTitle(rec.Title); err != nil {
			return "", err
		}
		if err := checkContent(rec.Content); err != nil {
			return "", err
		}
		if s.countUserNotes(rec.UserID) >= maxDemoItemCount {
			return "", fmt.Errorf("item limit reached for demo mode (max %d items): %w", maxDemoItemCount, adapter.ErrLimitExceeded)
		}
	}

	rec = cloneRecord(rec)
	rec.ID = uuid.New().String()
	s.notes[rec.ID] = rec
	return rec.ID, nil
}

func (s *Store) UpdateNote(ctx context.Context, userID, id string, update adapter.NoteUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.notes[id]
	if !ok || rec.UserID != userID {
		return adapter.ErrNotFound
	}

	p := update.Patch
	if s.Limits {
		if p.Title != nil {
			if err := checkTitle(*p.Title); err != nil {
				return err
			}
		}
		if p.Content != nil {
			if err := checkContent(*p.Content); err != nil {
				return err
			}
		}
	}

	if p.Title != nil {
		rec.Title = *p.Title
	}
	if p.Content != nil {
		rec.Content = *p.Content
	}
	if p.Folder != nil {
		rec.Folder = *p.Folder
	}
	if p.Tags != nil {
		rec.Tags = model.NormalizeTags(*p.Tags)
	}
	rec.UpdatedAt = update.UpdatedAt
	s.notes[id] = rec
	return nil
}

func (s *Store) DeleteNote(ctx context.Context, userID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.notes[id]
	if !ok || rec.UserID != userID {
		return adapter.ErrNotFound
	}
	delete(s.notes, id)
	return nil
}

func (s *Store) GetTaxonomy(ctx context.Context, userID string) (*adapter.TaxonomyRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.taxonomies[userID]
	if !ok {
		return nil, adapter.ErrNotFound
	}
	rec.Folders = append([]string(nil), rec.Folders...)
	rec.Tags = append([]string(nil), rec.Tags...)
	return &rec, nil
}

func (s *Store) PutTaxonomy(ctx context.Context, rec adapter.TaxonomyRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec.Folders = append([]string(nil), rec.Folders...)
	rec.Tags = append([]string(nil), rec.Tags...)
	s.taxonomies[rec.UserID] = rec
	return nil
}
