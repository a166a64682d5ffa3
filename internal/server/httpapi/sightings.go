package httpapi

import (
	"net/http"

	"github.com/dmitrijs2005/petmatch/internal/common"
	"github.com/dmitrijs2005/petmatch/internal/geo"
	"github.com/dmitrijs2005/petmatch/internal/server/models"
	"github.com/go-chi/chi/v5"
)

func (a *api) createSighting(w http.ResponseWriter, r *http.Request) {
	image, err := readMultipart(w, r, a.maxUploadBytes, "image")
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	loc, err := geo.ParsePoint(r.FormValue("longitude"), r.FormValue("latitude"))
	if err != nil {
		a.writeError(w, r, err)
		return
	}

	out, err := a.intake.HandleNewSighting(r.Context(), callerID(r.Context()), models.NewSighting{
		Description:  r.FormValue("description"),
		SightingDate: r.FormValue("sighting_date"),
		Location:     loc,
		LocationText: r.FormValue("location_text"),
	}, image)
	if err != nil {
		a.writeError(w, r, err)
		return
	}

	writeData(w, http.StatusCreated, toSightingIntake(out))
}

func (a *api) listSightings(w http.ResponseWriter, r *http.Request) {
	f, err := listFilter(r)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	list, page, err := a.sightings.List(r.Context(), f)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writePage(w, mapSlice(list, toSighting), page)
}

func (a *api) getSighting(w http.ResponseWriter, r *http.Request) {
	s, err := a.sightings.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, toSighting(s))
}

func (a *api) updateSightingStatus(w http.ResponseWriter, r *http.Request) {
	var req statusRequest
	if err := decodeJSON(r, &req); err != nil {
		a.writeError(w, r, err)
		return
	}
	s, err := a.sightings.UpdateStatus(r.Context(), callerID(r.Context()), chi.URLParam(r, "id"), req.Status)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, toSighting(s))
}

func (a *api) rematchSighting(w http.ResponseWriter, r *http.Request) {
	out, err := a.intake.Rematch(r.Context(), callerID(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, toSightingIntake(out))
}

// locationRequest accepts both the short and the long coordinate names.
type locationRequest struct {
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
	Lat       *float64 `json:"lat"`
	Lng       *float64 `json:"lng"`
}

func (l *locationRequest) point() (*geo.Point, error) {
	lat, lon := l.Latitude, l.Longitude
	if lat == nil {
		lat = l.Lat
	}
	if lon == nil {
		lon = l.Lng
	}
	if lat == nil || lon == nil {
		return nil, common.Validationf("location needs both latitude and longitude")
	}
	p := &geo.Point{Longitude: *lon, Latitude: *lat}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

type updateSightingRequest struct {
	Description  *string          `json:"description"`
	LocationText *string          `json:"location_text"`
	Location     *locationRequest `json:"location"`
	Status       *string          `json:"status"`
}

func (a *api) updateSighting(w http.ResponseWriter, r *http.Request) {
	var req updateSightingRequest
	if err := decodeJSON(r, &req); err != nil {
		a.writeError(w, r, err)
		return
	}

	upd := models.SightingUpdate{Description: req.Description, LocationText: req.LocationText}
	if req.Location != nil {
		p, err := req.Location.point()
		if err != nil {
			a.writeError(w, r, err)
			return
		}
		upd.Location = p
	}
	if req.Status != nil {
		st, err := models.ParseSightingStatus(*req.Status)
		if err != nil {
			a.writeError(w, r, err)
			return
		}
		upd.Status = &st
	}

	s, err := a.sightings.Update(r.Context(), callerID(r.Context()), chi.URLParam(r, "id"), upd)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, toSighting(s))
}

func (a *api) deleteSighting(w http.ResponseWriter, r *http.Request) {
	if err := a.sightings.Delete(r.Context(), callerID(r.Context()), chi.URLParam(r, "id")); err != nil {
		a.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, map[string]string{"sighting_id": chi.URLParam(r, "id")})
}
