package domain

import (
	"time"

	"github.com/google/uuid"
)

// MaxBioLength is the longest accepted profile bio, in characters.
const MaxBioLength = 500

// User is a registered account. HashedPassword is never serialized.
type User struct {
	ID             uuid.UUID `json:"id"`
	Name           string    `json:"name"`
	Email          string    `json:"email"`
	Image          *string   `json:"image,omitempty"`
	Bio            *string   `json:"bio,omitempty"`
	HashedPassword string    `json:"-"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// Summary returns the public projection of u.
func (u *User) Summary() UserSummary {
	return UserSummary{ID: u.ID, Name: u.Name, Email: u.Email, Image: u.Image}
}

// HasPassword reports whether the account can sign in with credentials.
func (u *User) HasPassword() bool {
	return u.HashedPassword != ""
}

// UserSummary is the public view of a user attached to papers.
type UserSummary struct {
	ID    uuid.UUID `json:"id"`
	Name  string    `json:"name"`
	Email string    `json:"email,omitempty"`
	Image *string   `json:"image,omitempty"`
}

// RegisterInput is the credentials sign-up request.
type RegisterInput struct {
	FirstName string `json:"firstName" validate:"required,min=3"`
	LastName  string `json:"lastName" validate:"required,min=3"`
	Email     string `json:"email" validate:"required,email"`
	Password  string `json:"password" validate:"required,min=6,max=72"`
}

// FullName joins the first and last name with a space.
func (in RegisterInput) FullName() string {
	return trimSpace(in.FirstName) + " " + trimSpace(in.LastName)
}

// LoginInput is the credentials sign-in request.
type LoginInput struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// ProfileUpdate changes profile fields. Nil fields are left as they are.
type ProfileUpdate struct {
	Name  *string `json:"name,omitempty" validate:"omitempty,min=1,max=200"`
	Bio   *string `json:"bio,omitempty" validate:"omitempty,max=500"`
	Image *string `json:"image,omitempty" validate:"omitempty,url"`
}

// OAuthProfile is the identity returned by an external provider.
type OAuthProfile struct {
	Email   string
	Name    string
	Picture string
}
