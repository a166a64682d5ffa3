package models

import (
	"time"

	"github.com/dmitrijs2005/petmatch/internal/common"
)

// PetImage links a stored photo and its similarity-index entry to exactly one
// parent: a lost report or a sighting.
type PetImage struct {
	ID         string
	URL        string
	VectorID   string
	ReportID   *string
	SightingID *string
	CreatedAt  time.Time
}

// Validate enforces the exactly-one-parent rule and the required fields.
func (p *PetImage) Validate() error {
	hasReport := p.ReportID != nil && *p.ReportID != ""
	hasSighting := p.SightingID != nil && *p.SightingID != ""
	if hasReport == hasSighting {
		return common.Validationf("image must belong to exactly one of report or sighting")
	}
	if p.URL == "" || p.VectorID == "" {
		return common.Validationf("image url and vector id are required")
	}
	return nil
}
