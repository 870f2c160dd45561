package model

import (
	"time"
)

// Credential is the session token of the signed-in user, kept in the local store.
type Credential struct {
	UserID    string    `db:"user_id"`
	Email     string    `db:"email"`
	Token     string    `db:"token"`
	ExpiresAt time.Time `db:"expires_at"`
	CreatedAt time.Time `db:"created_at"`
}

func (c *Credential) IsExpired() bool {
	return time.Now().After(c.ExpiresAt)
}
