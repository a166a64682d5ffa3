package httpapi

import (
	"net/http"

	"github.com/dmitrijs2005/petmatch/internal/common"
	"github.com/dmitrijs2005/petmatch/internal/server/models"
)

func (a *api) getProfile(w http.ResponseWriter, r *http.Request) {
	u, err := a.users.Get(r.Context(), callerID(r.Context()))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, toUser(u))
}

type profileRequest struct {
	FullName *string `json:"full_name"`
	Phone    *string `json:"phone_number"`
}

func (a *api) updateProfile(w http.ResponseWriter, r *http.Request) {
	var req profileRequest
	if err := decodeJSON(r, &req); err != nil {
		a.writeError(w, r, err)
		return
	}
	u, err := a.users.UpdateProfile(r.Context(), callerID(r.Context()), models.ProfileUpdate{
		FullName: req.FullName,
		Phone:    req.Phone,
	})
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, toUser(u))
}

type pushTokenRequest struct {
	Token string `json:"push_token"`
}

func (a *api) setPushToken(w http.ResponseWriter, r *http.Request) {
	var req pushTokenRequest
	if err := decodeJSON(r, &req); err != nil {
		a.writeError(w, r, err)
		return
	}
	if req.Token == "" {
		a.writeError(w, r, common.Validationf("push_token is required"))
		return
	}
	if err := a.users.SetPushToken(r.Context(), callerID(r.Context()), req.Token); err != nil {
		a.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, map[string]bool{"registered": true})
}

func (a *api) clearPushToken(w http.ResponseWriter, r *http.Request) {
	if err := a.users.ClearPushToken(r.Context(), callerID(r.Context())); err != nil {
		a.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, map[string]bool{"registered": false})
}
