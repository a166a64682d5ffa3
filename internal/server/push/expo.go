// Package push delivers notifications through the Expo push gateway.
package push

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"regexp"
	"time"

	"github.com/dmitrijs2005/petmatch/internal/common"
	"github.com/dmitrijs2005/petmatch/internal/netx"
)

const (
	DefaultURL     = "https://exp.host/--/api/v2/push/send"
	defaultTimeout = 15 * time.Second

	// errDeviceNotRegistered is the ticket error for an uninstalled app or a
	// revoked token. The token will never work again.
	errDeviceNotRegistered = "DeviceNotRegistered"
)

var (
	expoToken = regexp.MustCompile(`^Expo(nent)?PushToken\[.+\]$`)
	// Bare device tokens issued by older SDKs.
	uuidToken = regexp.MustCompile(`^[a-zA-Z0-9]{8}-[a-zA-Z0-9]{4}-[a-zA-Z0-9]{4}-[a-zA-Z0-9]{4}-[a-zA-Z0-9]{12}$`)
)

// IsExpoPushToken reports whether token has a shape the gateway accepts.
func IsExpoPushToken(token string) bool {
	return expoToken.MatchString(token) || uuidToken.MatchString(token)
}

// Result is the outcome of one send.
type Result struct {
	Delivered bool
	// PermanentFailure means the token is dead and should be forgotten.
	PermanentFailure bool
	Reason           string
}

type message struct {
	To       string         `json:"to"`
	Title    string         `json:"title"`
	Body     string         `json:"body"`
	Data     map[string]any `json:"data,omitempty"`
	Sound    string         `json:"sound"`
	Priority string         `json:"priority"`
	Badge    int            `json:"badge"`
}

type ticket struct {
	Status  string `json:"status"`
	ID      string `json:"id"`
	Message string `json:"message"`
	Details struct {
		Error string `json:"error"`
	} `json:"details"`
}

type response struct {
	Data   json.RawMessage `json:"data"`
	Errors []struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"errors"`
}

// ExpoGateway sends single messages to the Expo push API.
type ExpoGateway struct {
	url         string
	accessToken string
	http        *http.Client
}

func NewExpoGateway(url, accessToken string) *ExpoGateway {
	if url == "" {
		url = DefaultURL
	}
	return &ExpoGateway{url: url, accessToken: accessToken, http: netx.NewClient(defaultTimeout)}
}

// Send pushes one message with default sound, high priority and badge 1.
// Transport and gateway failures are returned as errors; a rejected ticket
// is reported through Result.
func (g *ExpoGateway) Send(ctx context.Context, token, title, body string, data map[string]any) (Result, error) {
	payload, err := json.Marshal([]message{{
		To:       token,
		Title:    title,
		Body:     body,
		Data:     data,
		Sound:    "default",
		Priority: "high",
		Badge:    1,
	}})
	if err != nil {
		return Result{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.url, bytes.NewReader(payload))
	if err != nil {
		return Result{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if g.accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+g.accessToken)
	}

	var resp response
	if err := netx.Do(g.http, req, &resp); err != nil {
		return Result{}, common.NewExternalServiceError("expo", "send", err)
	}
	if len(resp.Errors) > 0 {
		return Result{}, common.NewExternalServiceError("expo", "send", errors.New(resp.Errors[0].Message))
	}

	t, err := firstTicket(resp.Data)
	if err != nil {
		return Result{}, common.NewExternalServiceError("expo", "send", err)
	}
	if t.Status == "error" {
		return Result{
			PermanentFailure: t.Details.Error == errDeviceNotRegistered,
			Reason:           t.Message,
		}, nil
	}
	return Result{Delivered: true}, nil
}

// firstTicket accepts both the array form used for batched sends and the
// single object form.
func firstTicket(raw json.RawMessage) (ticket, error) {
	var many []ticket
	if err := json.Unmarshal(raw, &many); err == nil {
		if len(many) == 0 {
			return ticket{}, errors.New("no tickets returned")
		}
		return many[0], nil
	}
	var one ticket
	if err := json.Unmarshal(raw, &one); err != nil {
		return ticket{}, err
	}
	return one, nil
}
