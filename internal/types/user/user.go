package user

import (
	"time"

	"github.com/google/uuid"
)

// User is the local mirror of an identity-provider account. AuthSubject is the
// token subject (Clerk user id, or the sub claim of a locally issued JWT).
type User struct {
	ID            uuid.UUID `json:"id" db:"id"`
	AuthSubject   string    `json:"authSubject" db:"auth_subject"`
	Email         string    `json:"email" db:"email"`
	EmailVerified bool      `json:"emailVerified" db:"email_verified"`
	Username      string    `json:"username" db:"username"`
	FirstName     string    `json:"firstName" db:"first_name"`
	LastName      string    `json:"lastName" db:"last_name"`
	ImageURL      string    `json:"imageUrl,omitempty" db:"image_url"`
	CreatedAt     time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt     time.Time `json:"updatedAt" db:"updated_at"`
}

type UpsertUserRequest struct {
	AuthSubject   string `json:"authSubject" validate:"required"`
	Email         string `json:"email" validate:"omitempty,email"`
	EmailVerified bool   `json:"emailVerified"`
	Username      string `json:"username" validate:"max=64"`
	FirstName     string `json:"firstName"`
	LastName      string `json:"lastName"`
	ImageURL      string `json:"imageUrl,omitempty"`
}
