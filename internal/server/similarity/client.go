// Package similarity is the client of the external visual similarity
// service that indexes pet photos and finds look-alikes.
package similarity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/dmitrijs2005/petmatch/internal/common"
	"github.com/dmitrijs2005/petmatch/internal/imagex"
	"github.com/dmitrijs2005/petmatch/internal/logging"
	"github.com/dmitrijs2005/petmatch/internal/netx"
	"github.com/dmitrijs2005/petmatch/internal/timex"
)

const serviceName = "similarity"

// DefaultTimeout bounds every call; indexing a photo can be slow.
const DefaultTimeout = 60 * time.Second

// Registration is the index entry created for a photo.
type Registration struct {
	VectorID  string
	SubjectID string
	// Duplicate is set when the service already held the same photo and
	// returned its existing entry.
	Duplicate bool
}

// Query bounds a search by event date (inclusive) and result count.
type Query struct {
	MinDate    time.Time
	MaxDate    time.Time
	MaxResults int
}

// Candidate is a subject whose photos resemble the query image. Similarity
// is in [0, 1], higher is closer.
type Candidate struct {
	SubjectID  string  `json:"pet_id"`
	Similarity float64 `json:"similarity"`
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
}

type duplicateDetail struct {
	Detail struct {
		ExistingPhotoID string `json:"existing_photo_id"`
	} `json:"detail"`
}

type Client struct {
	baseURL string
	http    *http.Client
	log     logging.Logger
}

// New returns a client for the service at baseURL. A zero timeout means
// DefaultTimeout.
func New(baseURL string, timeout time.Duration, log logging.Logger) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if log == nil {
		log = logging.Nop{}
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    netx.NewClient(timeout),
		log:     log.With("module", "similarity"),
	}
}

func imagePart(name string, data []byte) netx.File {
	f := netx.File{Name: name + ".jpg", ContentType: "image/jpeg", Data: data}
	if info, err := imagex.Inspect(data); err == nil {
		f.Name = name + info.Extension
		f.ContentType = info.ContentType
	}
	return f
}

func (c *Client) call(ctx context.Context, method, path string, field string, files []netx.File, out any) error {
	var req *http.Request
	var err error

	if len(files) > 0 {
		body, contentType, berr := netx.MultipartBody(field, files...)
		if berr != nil {
			return berr
		}
		req, err = http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
		if err == nil {
			req.Header.Set("Content-Type", contentType)
		}
	} else {
		req, err = http.NewRequestWithContext(ctx, method, c.baseURL+path, nil)
	}
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	var env envelope
	if err := netx.Do(c.http, req, &env); err != nil {
		return err
	}
	if !env.Success {
		return errors.New("service reported failure")
	}
	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return fmt.Errorf("decode data: %w", err)
		}
	}
	return nil
}

// Register indexes image under subjectID with the given event date. When the
// service recognises the photo as already indexed it answers 409 and the
// existing entry is returned with Duplicate set.
func (c *Client) Register(ctx context.Context, subjectID string, eventDate time.Time, image []byte) (*Registration, error) {
	q := url.Values{}
	q.Set("pet_id", subjectID)
	q.Set("event_date", timex.FormatDate(eventDate))

	var data struct {
		PhotoID string `json:"photo_id"`
		PetID   string `json:"pet_id"`
	}
	err := c.call(ctx, http.MethodPost, "/add_pet/?"+q.Encode(), "image", []netx.File{imagePart("pet", image)}, &data)
	if err != nil {
		var se *netx.StatusError
		if errors.As(err, &se) && se.Code == http.StatusConflict {
			var dup duplicateDetail
			if jerr := json.Unmarshal(se.Body, &dup); jerr == nil && dup.Detail.ExistingPhotoID != "" {
				c.log.Warn(ctx, "duplicate image", "subject_id", subjectID, "vector_id", dup.Detail.ExistingPhotoID)
				return &Registration{VectorID: dup.Detail.ExistingPhotoID, SubjectID: subjectID, Duplicate: true}, nil
			}
		}
		c.log.Error(ctx, "register failed", "subject_id", subjectID, "error", err)
		return nil, common.NewExternalServiceError(serviceName, "register", err)
	}
	if data.PhotoID == "" {
		return nil, common.NewExternalServiceError(serviceName, "register", errors.New("empty photo_id"))
	}

	subject := data.PetID
	if subject == "" {
		subject = subjectID
	}
	c.log.Info(ctx, "image registered", "subject_id", subject, "vector_id", data.PhotoID)
	return &Registration{VectorID: data.PhotoID, SubjectID: subject}, nil
}

// Search returns the candidates resembling image, in the service's order.
func (c *Client) Search(ctx context.Context, image []byte, query Query) ([]Candidate, error) {
	q := url.Values{}
	if !query.MinDate.IsZero() {
		q.Set("min_event_date", timex.FormatDate(query.MinDate))
	}
	if !query.MaxDate.IsZero() {
		q.Set("max_event_date", timex.FormatDate(query.MaxDate))
	}
	if query.MaxResults > 0 {
		q.Set("n_results", strconv.Itoa(query.MaxResults))
	}

	var data struct {
		Results []Candidate `json:"results"`
	}
	if err := c.call(ctx, http.MethodPost, "/search_pet/?"+q.Encode(), "images", []netx.File{imagePart("search_0", image)}, &data); err != nil {
		c.log.Error(ctx, "search failed", "error", err)
		return nil, common.NewExternalServiceError(serviceName, "search", err)
	}

	c.log.Info(ctx, "search completed", "candidates", len(data.Results))
	return data.Results, nil
}

// Delete removes one indexed photo.
func (c *Client) Delete(ctx context.Context, vectorID string) error {
	if err := c.call(ctx, http.MethodDelete, "/delete_pet/"+url.PathEscape(vectorID), "", nil, nil); err != nil {
		c.log.Error(ctx, "delete failed", "vector_id", vectorID, "error", err)
		return common.NewExternalServiceError(serviceName, "delete", err)
	}
	return nil
}

// Health returns the service's self-reported status document.
func (c *Client) Health(ctx context.Context) (map[string]any, error) {
	var data map[string]any
	if err := c.call(ctx, http.MethodGet, "/health", "", nil, &data); err != nil {
		return nil, common.NewExternalServiceError(serviceName, "health", err)
	}
	return data, nil
}

// Metrics returns index statistics such as total_vectors.
func (c *Client) Metrics(ctx context.Context) (map[string]any, error) {
	var data map[string]any
	if err := c.call(ctx, http.MethodGet, "/metrics", "", nil, &data); err != nil {
		return nil, common.NewExternalServiceError(serviceName, "metrics", err)
	}
	return data, nil
}
