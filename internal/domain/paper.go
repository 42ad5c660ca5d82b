package domain

import (
	"time"

	"github.com/google/uuid"
)

// Paper is a shared research paper with its taxonomy.
type Paper struct {
	ID          uuid.UUID    `json:"id"`
	Title       string       `json:"title"`
	Abstract    string       `json:"abstract"`
	PDFURL      string       `json:"pdfUrl"`
	PublishedAt *time.Time   `json:"publishedAt,omitempty"`
	UploadedAt  time.Time    `json:"uploadedAt"`
	UpdatedAt   time.Time    `json:"updatedAt"`
	UserID      uuid.UUID    `json:"userId"`
	Authors     []Author     `json:"authors"`
	Categories  []Category   `json:"categories"`
	Tags        []Tag        `json:"tags"`
	UploadedBy  *UserSummary `json:"uploadedBy,omitempty"`
}

// PaperDetail is the per-paper view. Bookmarked is relative to the viewer.
type PaperDetail struct {
	Paper
	BookmarkedBy []UserSummary `json:"bookmarkedBy"`
	Bookmarked   bool          `json:"bookmarked"`
}

// IsOwnedBy reports whether userID uploaded the paper.
func (p *Paper) IsOwnedBy(userID uuid.UUID) bool {
	return p.UserID == userID
}

// AuthorNames returns the author names in order.
func (p *Paper) AuthorNames() []string {
	names := make([]string, len(p.Authors))
	for i, a := range p.Authors {
		names[i] = a.Name
	}
	return names
}

// PaperFilter narrows a paper listing. Empty fields do not filter.
type PaperFilter struct {
	// Search matches title, abstract, or any author, category or tag name by substring.
	Search     string
	Sort       SortOrder
	Tags       []string
	Categories []string
	Authors    []string
	// UserID restricts to papers uploaded by this user.
	UserID *uuid.UUID
	// BookmarkedBy restricts to papers bookmarked by this user, newest bookmark first.
	BookmarkedBy *uuid.UUID
	Page         PageRequest
}

// NewPaper holds the columns of a paper row to be inserted.
type NewPaper struct {
	Title       string
	Abstract    string
	PDFURL      string
	PublishedAt *time.Time
	UserID      uuid.UUID
}

// UploadInput is the metadata accepted when a paper is uploaded.
type UploadInput struct {
	Title       string     `json:"title" validate:"required"`
	Abstract    string     `json:"abstract" validate:"required"`
	Authors     []string   `json:"authors" validate:"required,min=1,dive,required"`
	Categories  []string   `json:"categories" validate:"required,min=1,dive,required"`
	Tags        []string   `json:"tags" validate:"omitempty,dive,required"`
	PDFURL      string     `json:"pdfUrl" validate:"required,url"`
	PublishedAt *time.Time `json:"publishedAt,omitempty"`
}

// Normalize trims scalar fields and normalizes taxonomy names.
func (in *UploadInput) Normalize() {
	in.Title = trimSpace(in.Title)
	in.Abstract = trimSpace(in.Abstract)
	in.PDFURL = trimSpace(in.PDFURL)
	in.Authors = NormalizeNames(in.Authors)
	in.Categories = NormalizeNames(in.Categories)
	in.Tags = NormalizeNames(in.Tags)
}

// Dashboard summarizes a user's activity.
type Dashboard struct {
	UploadCount     int64   `json:"uploadCount"`
	BookmarkCount   int64   `json:"bookmarkCount"`
	RecentUploads   []Paper `json:"recentUploads"`
	RecentBookmarks []Paper `json:"recentBookmarks"`
}
