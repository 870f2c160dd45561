package model

import (
	"slices"
	"time"
)

const AnonymousUsername = "Anonymous"

type Post struct {
	PostID      string
	UserID      string
	Username    string // snapshot of the author's name when the post was created
	Title       string
	Description string
	Location    string
	Latitude    float64
	Longitude   float64
	ImageURI    string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// HasLocation reports whether the post carries real coordinates.
// (0,0) means "no location set".
func (p *Post) HasLocation() bool {
	return HasLocation(p.Latitude, p.Longitude)
}

func HasLocation(latitude, longitude float64) bool {
	return latitude != 0 || longitude != 0
}

func (p *Post) HasImage() bool {
	return p.ImageURI != ""
}

// SortByCreatedDesc orders posts newest first, in place.
func SortByCreatedDesc(posts []*Post) {
	slices.SortStableFunc(posts, func(a, b *Post) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
}

// Clone returns a copy of p, or nil for nil.
func (p *Post) Clone() *Post {
	if p == nil {
		return nil
	}
	c := *p
	return &c
}

// ClonePosts copies the slice and every post in it.
func ClonePosts(posts []*Post) []*Post {
	if posts == nil {
		return nil
	}
	out := make([]*Post, len(posts))
	for i, p := range posts {
		out[i] = p.Clone()
	}
	return out
}
