package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPublicBaseURL(t *testing.T) {
	assert.Equal(t, "https://photos.s3.eu-west-1.amazonaws.com",
		publicBaseURL(S3Config{Bucket: "photos", Region: "eu-west-1"}))
	assert.Equal(t, "http://localhost:9000/photos",
		publicBaseURL(S3Config{Bucket: "photos", Endpoint: "http://localhost:9000/"}))
}

func TestKeyFromURL(t *testing.T) {
	s := &S3Storage{publicURL: "http://localhost:9000/photos"}

	key, ok := s.KeyFromURL(s.URL("public/images/a.jpg"))
	assert.True(t, ok)
	assert.Equal(t, "public/images/a.jpg", key)

	_, ok = s.KeyFromURL("https://elsewhere.example.com/a.jpg")
	assert.False(t, ok)
}
