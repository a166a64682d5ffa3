package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/dmitrijs2005/petmatch/internal/common"
	"github.com/dmitrijs2005/petmatch/internal/geo"
	"github.com/dmitrijs2005/petmatch/internal/server/models"
	"github.com/dmitrijs2005/petmatch/internal/timex"
)

func queryInt(r *http.Request, name string, def int) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return 0, common.Validationf("%s must be a non-negative integer", name)
	}
	return v, nil
}

func queryDate(r *http.Request, name string) (*time.Time, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return nil, nil
	}
	d, err := timex.ParseDate(raw)
	if err != nil {
		return nil, common.Validationf("%s must be YYYY-MM-DD", name)
	}
	return &d, nil
}

// listFilter reads status, species, date_from, date_to, lat, lng, radius
// (meters), limit and offset. The radius filter applies only when lat, lng
// and radius are all given.
func listFilter(r *http.Request) (models.ListFilter, error) {
	q := r.URL.Query()
	f := models.ListFilter{
		Status:  strings.TrimSpace(q.Get("status")),
		Species: strings.TrimSpace(q.Get("species")),
	}

	var err error
	if f.DateFrom, err = queryDate(r, "date_from"); err != nil {
		return f, err
	}
	if f.DateTo, err = queryDate(r, "date_to"); err != nil {
		return f, err
	}
	if f.DateFrom != nil && f.DateTo != nil && f.DateTo.Before(*f.DateFrom) {
		return f, common.Validationf("date_to must not be before date_from")
	}

	lat, lng, radius := q.Get("lat"), q.Get("lng"), strings.TrimSpace(q.Get("radius"))
	if strings.TrimSpace(lat) != "" && strings.TrimSpace(lng) != "" && radius != "" {
		center, err := geo.ParsePoint(lng, lat)
		if err != nil {
			return f, err
		}
		meters, err := geo.ParseFloat("radius", radius)
		if err != nil {
			return f, err
		}
		if meters < 0 {
			return f, common.Validationf("radius must not be negative")
		}
		f.Radius = &models.RadiusFilter{Center: *center, Meters: meters}
	}

	if f.Limit, err = queryInt(r, "limit", models.DefaultPageLimit); err != nil {
		return f, err
	}
	if f.Offset, err = queryInt(r, "offset", 0); err != nil {
		return f, err
	}
	return f, nil
}

// readMultipart parses a multipart form capped at limit bytes and returns
// the bytes of the file field.
func readMultipart(w http.ResponseWriter, r *http.Request, limit int64, field string) ([]byte, error) {
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	if err := r.ParseMultipartForm(limit); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			return nil, common.Validationf("request body too large, limit is %d bytes", limit)
		}
		return nil, common.Validationf("invalid multipart form: %v", err)
	}

	file, _, err := r.FormFile(field)
	if err != nil {
		return nil, common.Validationf("%s is required", field)
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, common.Validationf("reading %s: %v", field, err)
	}
	return data, nil
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return common.Validationf("invalid json: %v", err)
	}
	return nil
}

type statusRequest struct {
	Status string `json:"status"`
}
