package model

import "time"

// User is the authenticated identity supplied by the session layer.
type User struct {
	UID         string `json:"uid"`
	Email       string `json:"email,omitempty"`
	DisplayName string `json:"displayName,omitempty"`
}

// UserProfile represents the user's profile row stored in DynamoDB.
type UserProfile struct {
	UserID                string    `json:"user_id" dynamodbav:"user_id"`
	Email                 string    `json:"email" dynamodbav:"email"`
	DisplayName           string    `json:"display_name" dynamodbav:"display_name"`
	EncryptedRefreshToken string    `json:"-" dynamodbav:"encrypted_refresh_token,omitempty"`
	UpdatedAt             time.Time `json:"updated_at" dynamodbav:"updated_at"`
}

// Note is a titled text entry owned by one user.
// Folder is empty when the note is not filed; Tags is nil when the note has no tags.
type Note struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	Folder    string    `json:"folder,omitempty"`
	Tags      []string  `json:"tags,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
	UserID    string    `json:"userId"`
}

// HasTag reports whether the note carries the given tag.
func (n Note) HasTag(tag string) bool {
	for _, t := range n.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// Clone returns a copy that shares no slices with n.
func (n Note) Clone() Note {
	if n.Tags != nil {
		n.Tags = append([]string(nil), n.Tags...)
	}
	return n
}

// NoteInput holds the fields supplied when creating a note.
type NoteInput struct {
	Title   string   `json:"title"`
	Content string   `json:"content"`
	Folder  string   `json:"folder,omitempty"`
	Tags    []string `json:"tags,omitempty"`
}

// NotePatch is a partial update. Nil fields are left unchanged.
// A Folder pointing at "" clears the folder; Tags pointing at an empty slice clears the tags.
type NotePatch struct {
	Title   *string   `json:"title,omitempty"`
	Content *string   `json:"content,omitempty"`
	Folder  *string   `json:"folder,omitempty"`
	Tags    *[]string `json:"tags,omitempty"`
}

// Empty reports whether the patch carries no fields.
func (p NotePatch) Empty() bool {
	return p.Title == nil && p.Content == nil && p.Folder == nil && p.Tags == nil
}

// Apply merges the patch into n. Unspecified fields keep their prior values.
func (p NotePatch) Apply(n Note) Note {
	if p.Title != nil {
		n.Title = *p.Title
	}
	if p.Content != nil {
		n.Content = *p.Content
	}
	if p.Folder != nil {
		n.Folder = *p.Folder
	}
	if p.Tags != nil {
		n.Tags = NormalizeTags(*p.Tags)
	}
	return n
}

// NormalizeTags returns a copy of tags, or nil when there are none.
func NormalizeTags(tags []string) []string {
	if len(tags) == 0 {
		return nil
	}
	return append([]string(nil), tags...)
}

// String returns a pointer to s, for building patches.
func String(s string) *string {
	return &s
}

// Strings returns a pointer to tags, for building patches.
func Strings(tags []string) *[]string {
	return &tags
}

// Taxonomy holds the folder and tag names of one user.
type Taxonomy struct {
	Folders []string `json:"folders"`
	Tags    []string `json:"tags"`
}

// DefaultTaxonomy returns the lists a new user starts with.
func DefaultTaxonomy() Taxonomy {
	return Taxonomy{
		Folders: []string{"Personal", "Work", "Ideas"},
		Tags:    []string{"Important", "Todo", "Project"},
	}
}

// TaxonomyKind distinguishes folder names from tag names.
type TaxonomyKind string

const (
	KindFolder TaxonomyKind = "folder"
	KindTag    TaxonomyKind = "tag"
)
