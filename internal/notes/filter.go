package notes

import (
	"strings"

	"github.com/jun/notesync/internal/model"
)

// Query selects notes from the collection. Empty fields match everything.
type Query struct {
	Folder string
	// Tags lists tags a note must all carry.
	Tags []string
	// Text is matched case-insensitively against title and content.
	Text string
}

// Matches reports whether n satisfies q.
func (q Query) Matches(n model.Note) bool {
	if q.Folder != "" && n.Folder != q.Folder {
		return false
	}
	for _, tag := range q.Tags {
		if !n.HasTag(tag) {
			return false
		}
	}
	if text := strings.TrimSpace(q.Text); text != "" {
		text = strings.ToLower(text)
		if !strings.Contains(strings.ToLower(n.Title), text) && !strings.Contains(strings.ToLower(n.Content), text) {
			return false
		}
	}
	return true
}

// Find returns copies of the notes matching q, in collection order.
func (s *Synchronizer) Find(q Query) []model.Note {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []model.Note
	for _, n := range s.notes {
		if q.Matches(n) {
			out = append(out, n.Clone())
		}
	}
	return out
}

// Referencing returns copies of the notes that use name as folder or tag.
func (s *Synchronizer) Referencing(kind model.TaxonomyKind, name string) []model.Note {
	q := Query{Folder: name}
	if kind == model.KindTag {
		q = Query{Tags: []string{name}}
	}
	return s.Find(q)
}
