package httpapi

import (
	"net/http"

	"github.com/dmitrijs2005/petmatch/internal/common"
	"github.com/dmitrijs2005/petmatch/internal/server/models"
	"github.com/go-chi/chi/v5"
)

func (a *api) listMatches(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", models.DefaultPageLimit)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	offset, err := queryInt(r, "offset", 0)
	if err != nil {
		a.writeError(w, r, err)
		return
	}

	list, page, err := a.matches.ListMine(r.Context(), callerID(r.Context()), r.URL.Query().Get("status"), limit, offset)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writePage(w, mapSlice(list, toMatch), page)
}

func (a *api) getMatch(w http.ResponseWriter, r *http.Request) {
	d, err := a.matches.Get(r.Context(), callerID(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, toMatch(d))
}

type updateMatchRequest struct {
	Score  *float64 `json:"ai_distance_score"`
	Status *string  `json:"status"`
}

func (a *api) updateMatch(w http.ResponseWriter, r *http.Request) {
	var req updateMatchRequest
	if err := decodeJSON(r, &req); err != nil {
		a.writeError(w, r, err)
		return
	}

	upd := models.MatchUpdate{Score: req.Score}
	if req.Status != nil {
		st, err := models.ParseMatchStatus(*req.Status)
		if err != nil {
			a.writeError(w, r, err)
			return
		}
		upd.Status = &st
	}

	d, err := a.matches.Update(r.Context(), callerID(r.Context()), chi.URLParam(r, "id"), upd)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, toMatch(d))
}

func (a *api) updateMatchStatus(w http.ResponseWriter, r *http.Request) {
	var req statusRequest
	if err := decodeJSON(r, &req); err != nil {
		a.writeError(w, r, err)
		return
	}
	if req.Status == "" {
		a.writeError(w, r, common.Validationf("status is required"))
		return
	}
	d, err := a.matches.UpdateStatus(r.Context(), callerID(r.Context()), chi.URLParam(r, "id"), req.Status)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, toMatch(d))
}

func (a *api) deleteMatch(w http.ResponseWriter, r *http.Request) {
	if err := a.matches.Delete(r.Context(), callerID(r.Context()), chi.URLParam(r, "id")); err != nil {
		a.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, map[string]string{"match_id": chi.URLParam(r, "id")})
}
