package models

import (
	"math"
	"time"

	"github.com/dmitrijs2005/petmatch/internal/common"
)

// Match is a proposed correspondence between a lost report and a sighting.
type Match struct {
	ID         string
	ReportID   string
	SightingID string
	Score      float64
	Status     MatchStatus
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// MatchDetails is a Match joined with the fields of both parents that the
// owner and the reporter need to review it.
type MatchDetails struct {
	Match

	PetName      string
	Species      string
	Breed        string
	OwnerID      string
	OwnerPhone   *string
	ReportStatus ReportStatus
	LostDate     time.Time

	ReporterID     string
	SightingDate   time.Time
	LocationText   string
	SightingStatus SightingStatus
}

// MatchUpdate carries the mutable fields of a Match. Nil leaves a field
// untouched.
type MatchUpdate struct {
	Score  *float64
	Status *MatchStatus
}

// ValidateScore accepts finite values in [0, 1].
func ValidateScore(score float64) error {
	if math.IsNaN(score) || score < 0 || score > 1 {
		return common.Validationf("score must be between 0.0 and 1.0")
	}
	return nil
}
