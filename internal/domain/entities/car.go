package entities

import (
	"fmt"
	"strings"
)

// CarSummary is the display form of a car parked in a map block.
//
// The wire names follow the latest backend: "brand" for the make and
// camel-cased image URLs. Older drafts used "make" and "image_url"; those
// spellings are not accepted.
type CarSummary struct {
	Year         int    `json:"year"`
	Make         string `json:"brand"`
	Model        string `json:"model"`
	Trim         string `json:"trim"`
	Color        string `json:"color"`
	ImageURL     string `json:"imageUrl,omitempty"`
	ThumbnailURL string `json:"thumbnailUrl,omitempty"`
}

// Title formats the car like the map callouts do, e.g. "2006 Audi A4 2.0T".
func (c CarSummary) Title() string {
	parts := []string{fmt.Sprint(c.Year), c.Make, c.Model}
	if c.Trim != "" {
		parts = append(parts, c.Trim)
	}
	return strings.Join(parts, " ")
}

// Car is a car as listed by GET /cars, with its coordinate.
type Car struct {
	CarSummary
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Coordinate returns where the car is parked.
func (c Car) Coordinate() Coordinate {
	return NewCoordinate(c.Latitude, c.Longitude)
}

// CarSubmission is the POST /cars payload.
type CarSubmission struct {
	Year               int     `json:"year"`
	Make               string  `json:"brand"`
	Model              string  `json:"model"`
	Trim               string  `json:"trim"`
	Color              string  `json:"color"`
	LicenseState       string  `json:"licenseState"`
	LicensePlate       string  `json:"licensePlate"`
	Latitude           float64 `json:"latitude"`
	Longitude          float64 `json:"longitude"`
	Recaptcha          string  `json:"recaptcha"`
	CloudinaryPublicID string  `json:"cloudinaryPublicId,omitempty"`
}

// CarForm is what a user types into the add-car callout. The coordinate is
// taken from the draft annotation, not from the form.
type CarForm struct {
	Year               int    `json:"year"`
	Make               string `json:"brand"`
	Model              string `json:"model"`
	Trim               string `json:"trim"`
	Color              string `json:"color"`
	LicenseState       string `json:"licenseState"`
	LicensePlate       string `json:"licensePlate"`
	Recaptcha          string `json:"recaptcha"`
	CloudinaryPublicID string `json:"cloudinaryPublicId"`
}

// Submission combines the form with the coordinate of the draft marker.
func (f CarForm) Submission(at Coordinate) CarSubmission {
	return CarSubmission{
		Year:               f.Year,
		Make:               strings.TrimSpace(f.Make),
		Model:              strings.TrimSpace(f.Model),
		Trim:               strings.TrimSpace(f.Trim),
		Color:              strings.TrimSpace(f.Color),
		LicenseState:       strings.ToUpper(strings.TrimSpace(f.LicenseState)),
		LicensePlate:       strings.TrimSpace(f.LicensePlate),
		Latitude:           at.Latitude,
		Longitude:          at.Longitude,
		Recaptcha:          f.Recaptcha,
		CloudinaryPublicID: strings.TrimSpace(f.CloudinaryPublicID),
	}
}
