package models

import (
	"time"

	"github.com/dmitrijs2005/petmatch/internal/geo"
)

// Sighting is a report that an unidentified animal was seen at a place and
// time.
type Sighting struct {
	ID           string
	ReporterID   string
	Description  string
	Status       SightingStatus
	SightingDate time.Time
	Location     *geo.Point
	LocationText string
	CreatedAt    time.Time
	UpdatedAt    time.Time

	DistanceMeters *float64
	ImageURL       string
	Images         []*PetImage
}

// NewSighting holds the caller-supplied fields of a sighting.
type NewSighting struct {
	Description  string
	SightingDate string
	Location     *geo.Point
	LocationText string
}

// SightingUpdate carries the editable fields of a Sighting. Nil leaves a
// field untouched and an empty string clears a text field.
type SightingUpdate struct {
	Description  *string
	LocationText *string
	Location     *geo.Point
	Status       *SightingStatus
}

func (u SightingUpdate) IsEmpty() bool {
	return u.Description == nil && u.LocationText == nil && u.Location == nil && u.Status == nil
}

// MatchRef is the short form of a Match returned by the intake pipeline.
type MatchRef struct {
	ID       string
	ReportID string
	Score    float64
}

// SightingIntake is the outcome of registering a sighting.
type SightingIntake struct {
	Sighting   *Sighting
	Image      *PetImage
	MatchCount int
	Matches    []MatchRef
}

// LostReportIntake is the outcome of registering a lost report.
type LostReportIntake struct {
	Report *LostReport
	Image  *PetImage
}
