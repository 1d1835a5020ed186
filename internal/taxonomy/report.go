package taxonomy

import (
	"errors"
	"fmt"

	"github.com/jun/notesync/internal/model"
)

// Outcome is the result of cascading a taxonomy change to one note.
type Outcome struct {
	NoteID string `json:"noteId"`
	Err    error  `json:"-"`
}

// Report lists the per-note results of a rename or delete cascade.
// The list change itself is already persisted when a Report is returned.
type Report struct {
	Kind     model.TaxonomyKind `json:"kind"`
	Op       string             `json:"op"`
	Name     string             `json:"name"`
	Outcomes []Outcome          `json:"outcomes"`
}

// Failed returns the outcomes whose update did not persist.
func (r Report) Failed() []Outcome {
	var failed []Outcome
	for _, o := range r.Outcomes {
		if o.Err != nil {
			failed = append(failed, o)
		}
	}
	return failed
}

// Updated returns the IDs of the notes that were updated.
func (r Report) Updated() []string {
	var ids []string
	for _, o := range r.Outcomes {
		if o.Err == nil {
			ids = append(ids, o.NoteID)
		}
	}
	return ids
}

// Err joins the per-note failures, or returns nil when the cascade completed.
func (r Report) Err() error {
	var errs []error
	for _, o := range r.Failed() {
		errs = append(errs, fmt.Errorf("note %s: %w", o.NoteID, o.Err))
	}
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%s %s %q: %d of %d notes not updated: %w",
		r.Op, r.Kind, r.Name, len(errs), len(r.Outcomes), errors.Join(errs...))
}
