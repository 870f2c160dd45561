package model

import (
	"time"
)

type User struct {
	UserID          string
	Username        string
	Email           string
	ProfileImageURL string // empty, http(s) URL or inline base64 image
	CreatedAt       time.Time
}

// Clone returns a copy of u, or nil for nil.
func (u *User) Clone() *User {
	if u == nil {
		return nil
	}
	c := *u
	return &c
}
