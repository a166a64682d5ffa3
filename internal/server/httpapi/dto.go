package httpapi

import (
	"time"

	"github.com/dmitrijs2005/petmatch/internal/server/models"
	"github.com/dmitrijs2005/petmatch/internal/timex"
)

type imageResponse struct {
	ID         string    `json:"image_id"`
	URL        string    `json:"image_url"`
	VectorID   string    `json:"vector_id"`
	ReportID   *string   `json:"report_id,omitempty"`
	SightingID *string   `json:"sighting_id,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

func toImage(img *models.PetImage) *imageResponse {
	if img == nil {
		return nil
	}
	return &imageResponse{
		ID:         img.ID,
		URL:        img.URL,
		VectorID:   img.VectorID,
		ReportID:   img.ReportID,
		SightingID: img.SightingID,
		CreatedAt:  img.CreatedAt,
	}
}

func toImages(in []*models.PetImage) []*imageResponse {
	if in == nil {
		return nil
	}
	out := make([]*imageResponse, 0, len(in))
	for _, img := range in {
		out = append(out, toImage(img))
	}
	return out
}

type lostReportResponse struct {
	ID             string           `json:"report_id"`
	OwnerID        string           `json:"owner_user_id"`
	PetName        string           `json:"pet_name"`
	Species        string           `json:"species"`
	Breed          string           `json:"breed"`
	Description    string           `json:"description"`
	Status         string           `json:"status"`
	LostDate       string           `json:"lost_date"`
	Latitude       *float64         `json:"latitude"`
	Longitude      *float64         `json:"longitude"`
	LocationText   string           `json:"last_seen_location_text"`
	DistanceMeters *float64         `json:"distance_meters,omitempty"`
	ImageURL       string           `json:"image_url,omitempty"`
	Images         []*imageResponse `json:"images,omitempty"`
	CreatedAt      time.Time        `json:"created_at"`
	UpdatedAt      time.Time        `json:"updated_at"`
}

func toLostReport(r *models.LostReport) *lostReportResponse {
	out := &lostReportResponse{
		ID:             r.ID,
		OwnerID:        r.OwnerID,
		PetName:        r.PetName,
		Species:        r.Species,
		Breed:          r.Breed,
		Description:    r.Description,
		Status:         string(r.Status),
		LostDate:       timex.FormatDate(r.LostDate),
		LocationText:   r.LocationText,
		DistanceMeters: r.DistanceMeters,
		ImageURL:       r.ImageURL,
		Images:         toImages(r.Images),
		CreatedAt:      r.CreatedAt,
		UpdatedAt:      r.UpdatedAt,
	}
	if r.Location != nil {
		out.Latitude, out.Longitude = &r.Location.Latitude, &r.Location.Longitude
	}
	return out
}

type sightingResponse struct {
	ID             string           `json:"sighting_id"`
	ReporterID     string           `json:"reporter_user_id"`
	Description    string           `json:"description"`
	Status         string           `json:"status"`
	SightingDate   string           `json:"sighting_date"`
	Latitude       *float64         `json:"latitude"`
	Longitude      *float64         `json:"longitude"`
	LocationText   string           `json:"location_text"`
	DistanceMeters *float64         `json:"distance_meters,omitempty"`
	ImageURL       string           `json:"image_url,omitempty"`
	Images         []*imageResponse `json:"images,omitempty"`
	CreatedAt      time.Time        `json:"created_at"`
	UpdatedAt      time.Time        `json:"updated_at"`
}

func toSighting(s *models.Sighting) *sightingResponse {
	out := &sightingResponse{
		ID:             s.ID,
		ReporterID:     s.ReporterID,
		Description:    s.Description,
		Status:         string(s.Status),
		SightingDate:   timex.FormatDate(s.SightingDate),
		LocationText:   s.LocationText,
		DistanceMeters: s.DistanceMeters,
		ImageURL:       s.ImageURL,
		Images:         toImages(s.Images),
		CreatedAt:      s.CreatedAt,
		UpdatedAt:      s.UpdatedAt,
	}
	if s.Location != nil {
		out.Latitude, out.Longitude = &s.Location.Latitude, &s.Location.Longitude
	}
	return out
}

type matchRefResponse struct {
	ID       string  `json:"match_id"`
	ReportID string  `json:"report_id"`
	Score    float64 `json:"score"`
}

type sightingIntakeResponse struct {
	Sighting   *sightingResponse  `json:"sighting"`
	Image      *imageResponse     `json:"image"`
	MatchCount int                `json:"matchCount"`
	Matches    []matchRefResponse `json:"matches"`
}

func toSightingIntake(in *models.SightingIntake) *sightingIntakeResponse {
	out := &sightingIntakeResponse{
		Sighting:   toSighting(in.Sighting),
		Image:      toImage(in.Image),
		MatchCount: in.MatchCount,
		Matches:    make([]matchRefResponse, 0, len(in.Matches)),
	}
	for _, m := range in.Matches {
		out.Matches = append(out.Matches, matchRefResponse{ID: m.ID, ReportID: m.ReportID, Score: m.Score})
	}
	return out
}

type lostReportIntakeResponse struct {
	Report *lostReportResponse `json:"report"`
	Image  *imageResponse      `json:"image"`
}

type matchResponse struct {
	ID         string    `json:"match_id"`
	ReportID   string    `json:"report_id"`
	SightingID string    `json:"sighting_id"`
	Score      float64   `json:"ai_distance_score"`
	Status     string    `json:"status"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`

	PetName      string  `json:"pet_name"`
	Species      string  `json:"species"`
	Breed        string  `json:"breed"`
	OwnerID      string  `json:"owner_user_id"`
	OwnerPhone   *string `json:"owner_phone,omitempty"`
	ReportStatus string  `json:"report_status"`
	LostDate     string  `json:"lost_date"`

	ReporterID     string `json:"reporter_user_id"`
	SightingDate   string `json:"sighting_date"`
	LocationText   string `json:"location_text"`
	SightingStatus string `json:"sighting_status"`
}

func toMatch(d *models.MatchDetails) *matchResponse {
	return &matchResponse{
		ID:             d.ID,
		ReportID:       d.ReportID,
		SightingID:     d.SightingID,
		Score:          d.Score,
		Status:         string(d.Status),
		CreatedAt:      d.CreatedAt,
		UpdatedAt:      d.UpdatedAt,
		PetName:        d.PetName,
		Species:        d.Species,
		Breed:          d.Breed,
		OwnerID:        d.OwnerID,
		OwnerPhone:     d.OwnerPhone,
		ReportStatus:   string(d.ReportStatus),
		LostDate:       timex.FormatDate(d.LostDate),
		ReporterID:     d.ReporterID,
		SightingDate:   timex.FormatDate(d.SightingDate),
		LocationText:   d.LocationText,
		SightingStatus: string(d.SightingStatus),
	}
}

type userResponse struct {
	ID           string    `json:"user_id"`
	Email        string    `json:"email"`
	FullName     string    `json:"full_name"`
	Phone        *string   `json:"phone_number"`
	HasPushToken bool      `json:"has_push_token"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func toUser(u *models.User) *userResponse {
	return &userResponse{
		ID:           u.ID,
		Email:        u.Email,
		FullName:     u.FullName,
		Phone:        u.Phone,
		HasPushToken: u.PushToken != nil && *u.PushToken != "",
		CreatedAt:    u.CreatedAt,
		UpdatedAt:    u.UpdatedAt,
	}
}

func mapSlice[T, R any](in []T, f func(T) R) []R {
	out := make([]R, 0, len(in))
	for _, v := range in {
		out = append(out, f(v))
	}
	return out
}
