package models

import (
	"time"

	"github.com/dmitrijs2005/petmatch/internal/geo"
)

// LostReport is an owner's report that a pet went missing.
type LostReport struct {
	ID           string
	OwnerID      string
	PetName      string
	Species      string
	Breed        string
	Description  string
	Status       ReportStatus
	LostDate     time.Time
	Location     *geo.Point
	LocationText string
	CreatedAt    time.Time
	UpdatedAt    time.Time

	// DistanceMeters is set by radius listings only.
	DistanceMeters *float64
	// ImageURL is the first photo, set by listings.
	ImageURL string
	// Images is populated by detail lookups.
	Images []*PetImage
}

// NewLostReport holds the caller-supplied fields of a lost report.
type NewLostReport struct {
	PetName      string
	Species      string
	Breed        string
	Description  string
	LostDate     string
	Location     *geo.Point
	LocationText string
}
