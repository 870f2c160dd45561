package validation

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateEmail(t *testing.T) {
	assert.NoError(t, ValidateEmail("walker@example.com"))
	assert.ErrorIs(t, ValidateEmail(""), ErrEmailRequired)
	assert.ErrorIs(t, ValidateEmail("walker"), ErrEmailInvalid)
	assert.ErrorIs(t, ValidateEmail("Walker <walker@example.com>"), ErrEmailInvalid)
	assert.Equal(t, "walker@example.com", NormalizeEmail("  Walker@Example.COM "))
}

func TestValidatePassword(t *testing.T) {
	assert.ErrorIs(t, ValidatePassword("12345"), ErrPasswordTooShort)
	assert.NoError(t, ValidatePassword("123456"))
	assert.ErrorIs(t, ValidatePassword(string(make([]byte, 73))), ErrPasswordTooLong)
}

func TestValidateUsername(t *testing.T) {
	assert.ErrorIs(t, ValidateUsername("   "), ErrUsernameRequired)
	assert.NoError(t, ValidateUsername("walker"))

	assert.Equal(t, "Jos\u00e9", NormalizeText(" Jose\u0301 "))
}

func TestValidatePost(t *testing.T) {
	valid := PostInput{Title: "Lake", Description: "Nice", Location: "Tahoe", Latitude: 39.0, Longitude: -120.0}

	tests := []struct {
		name   string
		modify func(*PostInput)
		create error
		edit   error
	}{
		{"valid", func(*PostInput) {}, nil, nil},
		{"missing title", func(in *PostInput) { in.Title = " " }, ErrTitleRequired, ErrTitleRequired},
		{"missing description", func(in *PostInput) { in.Description = "" }, ErrDescriptionRequired, ErrDescriptionRequired},
		{"missing location", func(in *PostInput) { in.Location = "" }, ErrLocationRequired, nil},
		{"sentinel coordinates", func(in *PostInput) { in.Latitude, in.Longitude = 0, 0 }, ErrCoordinatesRequired, nil},
		{"out of range", func(in *PostInput) { in.Latitude = 91 }, ErrCoordinatesInvalid, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := valid
			tt.modify(&in)

			if tt.create == nil {
				assert.NoError(t, ValidateNewPost(in))
			} else {
				assert.ErrorIs(t, ValidateNewPost(in), tt.create)
			}

			if tt.edit == nil {
				assert.NoError(t, ValidatePostEdit(in))
			} else {
				assert.ErrorIs(t, ValidatePostEdit(in), tt.edit)
			}
		})
	}
}

func TestValidateFile(t *testing.T) {
	dir := t.TempDir()

	png := filepath.Join(dir, "photo.png")
	require.NoError(t, os.WriteFile(png, []byte("\x89PNG\r\n\x1a\n0000"), 0o644))
	contentType, err := ValidateFile(png, ImageConstraints)
	require.NoError(t, err)
	assert.Equal(t, "image/png", contentType)

	fake := filepath.Join(dir, "photo.jpg")
	require.NoError(t, os.WriteFile(fake, []byte("just text"), 0o644))
	_, err = ValidateFile(fake, ImageConstraints)
	assert.ErrorContains(t, err, "invalid file type")

	wrongExt := filepath.Join(dir, "photo.gif")
	require.NoError(t, os.WriteFile(wrongExt, []byte("\x89PNG\r\n\x1a\n0000"), 0o644))
	_, err = ValidateFile(wrongExt, ImageConstraints)
	assert.ErrorContains(t, err, "invalid file extension")

	_, err = ValidateFile(filepath.Join(dir, "missing.png"), ImageConstraints)
	assert.Error(t, err)
}
