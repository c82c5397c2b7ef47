package models

import (
	"time"

	"github.com/google/uuid"
)

// SocialAuthLink binds a user to an external identity. The (provider, subject)
// pair is unique across all users: one external identity maps to at most one
// account.
type SocialAuthLink struct {
	ID        uuid.UUID `json:"id" db:"id"`
	UserID    uuid.UUID `json:"user_id" db:"user_id"`
	Provider  string    `json:"provider" db:"provider"`
	Subject   string    `json:"subject" db:"subject"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
