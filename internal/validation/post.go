package validation

import (
	"errors"
	"fmt"
	"math"

	"github.com/travelog/travelog/internal/model"
)

var (
	ErrTitleRequired       = errors.New("title is required")
	ErrDescriptionRequired = errors.New("description is required")
	ErrLocationRequired    = errors.New("location is required")
	ErrCoordinatesRequired = errors.New("pick a location on the map")
	ErrCoordinatesInvalid  = errors.New("coordinates are out of range")
)

// PostInput is the form content of a new or edited post.
type PostInput struct {
	Title       string
	Description string
	Location    string
	Latitude    float64
	Longitude   float64
}

// Normalize trims and NFC-normalizes the text fields.
func (in PostInput) Normalize() PostInput {
	in.Title = NormalizeText(in.Title)
	in.Description = NormalizeText(in.Description)
	in.Location = NormalizeText(in.Location)
	return in
}

// ValidateNewPost requires a title, a description, a location label and a
// real coordinate pair.
func ValidateNewPost(in PostInput) error {
	err := ValidatePostEdit(in)
	if err != nil {
		return err
	}

	if NormalizeText(in.Location) == "" {
		return ErrLocationRequired
	}

	if !model.HasLocation(in.Latitude, in.Longitude) {
		return ErrCoordinatesRequired
	}

	return validateCoordinates(in.Latitude, in.Longitude)
}

// ValidatePostEdit requires only a title and a description.
func ValidatePostEdit(in PostInput) error {
	if NormalizeText(in.Title) == "" {
		return ErrTitleRequired
	}

	if NormalizeText(in.Description) == "" {
		return ErrDescriptionRequired
	}

	return nil
}

func validateCoordinates(lat, lng float64) error {
	if math.IsNaN(lat) || math.IsNaN(lng) || lat < -90 || lat > 90 || lng < -180 || lng > 180 {
		return fmt.Errorf("%w: %v, %v", ErrCoordinatesInvalid, lat, lng)
	}
	return nil
}
