package models

import (
	"time"

	"github.com/dmitrijs2005/petmatch/internal/geo"
)

const (
	DefaultPageLimit = 50
	MaxPageLimit     = 200
)

// RadiusFilter restricts a listing to rows within Meters of Center and orders
// them by distance.
type RadiusFilter struct {
	Center geo.Point
	Meters float64
}

// ListFilter is shared by report and sighting listings. Species is ignored
// for sightings.
type ListFilter struct {
	Status   string
	Species  string
	DateFrom *time.Time
	DateTo   *time.Time
	Radius   *RadiusFilter
	Limit    int
	Offset   int
}

// Normalize clamps paging values into their accepted ranges.
func (f *ListFilter) Normalize() {
	if f.Limit <= 0 {
		f.Limit = DefaultPageLimit
	}
	if f.Limit > MaxPageLimit {
		f.Limit = MaxPageLimit
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
}

// Page describes one page of a listing.
type Page struct {
	Total   int  `json:"total"`
	Limit   int  `json:"limit"`
	Offset  int  `json:"offset"`
	Count   int  `json:"count"`
	HasMore bool `json:"hasMore"`
}

func NewPage(total, limit, offset, count int) Page {
	return Page{Total: total, Limit: limit, Offset: offset, Count: count, HasMore: offset+count < total}
}

// Delivery reports the outcome of a best-effort push notification.
type Delivery struct {
	Delivered bool
	Reason    string
}
