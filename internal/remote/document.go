package remote

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/travelog/travelog/internal/model"
)

// Document field names, shared by both collections.
const (
	FieldUserID          = "userId"
	FieldUsername        = "username"
	FieldEmail           = "email"
	FieldProfileImageURL = "profileImageUrl"
	FieldPostID          = "postId"
	FieldTitle           = "title"
	FieldDescription     = "description"
	FieldLocation        = "location"
	FieldLatitude        = "latitude"
	FieldLongitude       = "longitude"
	FieldImageURI        = "imageUri"
	FieldCreatedAt       = "createdAt"
	FieldUpdatedAt       = "updatedAt"
)

var (
	userFields = map[string]bool{
		FieldUserID: true, FieldUsername: true, FieldEmail: true,
		FieldProfileImageURL: true, FieldCreatedAt: true,
	}
	postFields = map[string]bool{
		FieldPostID: true, FieldUserID: true, FieldUsername: true, FieldTitle: true,
		FieldDescription: true, FieldLocation: true, FieldLatitude: true,
		FieldLongitude: true, FieldImageURI: true, FieldCreatedAt: true, FieldUpdatedAt: true,
	}
	// keys and creation data never change after the first write
	immutableFields = map[string]bool{
		FieldUserID: true, FieldPostID: true, FieldCreatedAt: true,
	}
)

type userDocument struct {
	UserID          string `json:"userId"`
	Username        string `json:"username"`
	Email           string `json:"email"`
	ProfileImageURL string `json:"profileImageUrl"`
	CreatedAt       int64  `json:"createdAt"`
}

type postDocument struct {
	PostID      string  `json:"postId"`
	UserID      string  `json:"userId"`
	Username    string  `json:"username"`
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Location    string  `json:"location"`
	Latitude    float64 `json:"latitude"`
	Longitude   float64 `json:"longitude"`
	ImageURI    string  `json:"imageUri"`
	CreatedAt   int64   `json:"createdAt"`
	UpdatedAt   int64   `json:"updatedAt"`
}

func encodeUser(u *model.User) ([]byte, error) {
	return json.Marshal(userDocument{
		UserID:          u.UserID,
		Username:        u.Username,
		Email:           u.Email,
		ProfileImageURL: u.ProfileImageURL,
		CreatedAt:       model.Millis(u.CreatedAt),
	})
}

func encodePost(p *model.Post) ([]byte, error) {
	return json.Marshal(postDocument{
		PostID:      p.PostID,
		UserID:      p.UserID,
		Username:    p.Username,
		Title:       p.Title,
		Description: p.Description,
		Location:    p.Location,
		Latitude:    p.Latitude,
		Longitude:   p.Longitude,
		ImageURI:    p.ImageURI,
		CreatedAt:   model.Millis(p.CreatedAt),
		UpdatedAt:   model.Millis(p.UpdatedAt),
	})
}

// encodeFields validates a partial update against the collection's fields.
// time.Time values are stored as epoch milliseconds.
func encodeFields(allowed map[string]bool, fields map[string]any) ([]byte, error) {
	out := make(map[string]any, len(fields))
	for name, value := range fields {
		if !allowed[name] {
			return nil, fmt.Errorf("%w: %s", ErrInvalidField, name)
		}
		if immutableFields[name] {
			return nil, fmt.Errorf("%w: %s", ErrImmutableField, name)
		}
		if t, ok := value.(time.Time); ok {
			value = model.Millis(t)
		}
		out[name] = value
	}
	return json.Marshal(out)
}

type fieldReader struct {
	fields map[string]any
	now    time.Time
}

func parseObject(body []byte, now time.Time) (*fieldReader, error) {
	decoder := json.NewDecoder(bytes.NewReader(body))
	decoder.UseNumber()

	var fields map[string]any
	err := decoder.Decode(&fields)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if fields == nil {
		return nil, fmt.Errorf("%w: not an object", ErrMalformed)
	}

	return &fieldReader{fields: fields, now: now}, nil
}

func (r *fieldReader) text(name, def string) string {
	v, ok := r.fields[name].(string)
	if !ok {
		return def
	}
	return v
}

// key is text that falls back to def when missing or empty.
func (r *fieldReader) key(name, def string) string {
	if v := r.text(name, ""); v != "" {
		return v
	}
	return def
}

func (r *fieldReader) number(name string) (float64, bool) {
	switch v := r.fields[name].(type) {
	case json.Number:
		f, err := v.Float64()
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return 0, false
		}
		return f, true
	case float64:
		return v, true
	}
	return 0, false
}

func (r *fieldReader) coordinate(name string) float64 {
	f, _ := r.number(name)
	return f
}

func (r *fieldReader) timestamp(name string) time.Time {
	if v, ok := r.fields[name].(json.Number); ok {
		if ms, err := v.Int64(); err == nil {
			return model.FromMillis(ms)
		}
	}
	if f, ok := r.number(name); ok {
		return model.FromMillis(int64(f))
	}
	return r.now
}

func decodeUser(doc RawDocument, now time.Time) (*model.User, error) {
	r, err := parseObject(doc.Body, now)
	if err != nil {
		return nil, err
	}

	return &model.User{
		UserID:          r.key(FieldUserID, doc.ID),
		Username:        r.text(FieldUsername, ""),
		Email:           r.text(FieldEmail, ""),
		ProfileImageURL: r.text(FieldProfileImageURL, ""),
		CreatedAt:       r.timestamp(FieldCreatedAt),
	}, nil
}

func decodePost(doc RawDocument, now time.Time) (*model.Post, error) {
	r, err := parseObject(doc.Body, now)
	if err != nil {
		return nil, err
	}

	return &model.Post{
		PostID:      r.key(FieldPostID, doc.ID),
		UserID:      r.text(FieldUserID, ""),
		Username:    r.text(FieldUsername, ""),
		Title:       r.text(FieldTitle, ""),
		Description: r.text(FieldDescription, ""),
		Location:    r.text(FieldLocation, ""),
		Latitude:    r.coordinate(FieldLatitude),
		Longitude:   r.coordinate(FieldLongitude),
		ImageURI:    r.text(FieldImageURI, ""),
		CreatedAt:   r.timestamp(FieldCreatedAt),
		UpdatedAt:   r.timestamp(FieldUpdatedAt),
	}, nil
}
