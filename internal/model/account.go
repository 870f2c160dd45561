package model

import "time"

// Account is a sign-in identity held by the remote database. Its ID is the
// userId of the matching User record.
type Account struct {
	ID           string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
}
