package httpapi

import (
	"net/http"

	"github.com/dmitrijs2005/petmatch/internal/geo"
	"github.com/dmitrijs2005/petmatch/internal/server/models"
	"github.com/go-chi/chi/v5"
)

func (a *api) createLostReport(w http.ResponseWriter, r *http.Request) {
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

	out, err := a.lostReports.Create(r.Context(), callerID(r.Context()), models.NewLostReport{
		PetName:      r.FormValue("pet_name"),
		Species:      r.FormValue("species"),
		Breed:        r.FormValue("breed"),
		Description:  r.FormValue("description"),
		LostDate:     r.FormValue("lost_date"),
		Location:     loc,
		LocationText: r.FormValue("last_seen_location_text"),
	}, image)
	if err != nil {
		a.writeError(w, r, err)
		return
	}

	writeData(w, http.StatusCreated, &lostReportIntakeResponse{
		Report: toLostReport(out.Report),
		Image:  toImage(out.Image),
	})
}

func (a *api) listLostReports(w http.ResponseWriter, r *http.Request) {
	f, err := listFilter(r)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	list, page, err := a.lostReports.List(r.Context(), f)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writePage(w, mapSlice(list, toLostReport), page)
}

func (a *api) getLostReport(w http.ResponseWriter, r *http.Request) {
	report, err := a.lostReports.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, toLostReport(report))
}

func (a *api) updateLostReportStatus(w http.ResponseWriter, r *http.Request) {
	var req statusRequest
	if err := decodeJSON(r, &req); err != nil {
		a.writeError(w, r, err)
		return
	}
	report, err := a.lostReports.UpdateStatus(r.Context(), callerID(r.Context()), chi.URLParam(r, "id"), req.Status)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, toLostReport(report))
}
