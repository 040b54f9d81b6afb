// Package backend implements the HTTP client for the conference backend.
//
// The wire contract is fixed: the backend creates a conference session,
// accepts one finalized audio payload per session, and serves the stored
// list, per-conference translation, and recording files. Error bodies
// carry a "detail" string; anything else maps to a generic message.
package backend

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"

	"parley/internal/types"
)

// APIError is a backend rejection with its HTTP status and detail text.
type APIError struct {
	Status int
	Detail string
}

func (e *APIError) Error() string {
	if e.Detail != "" {
		return e.Detail
	}
	return fmt.Sprintf("backend request failed: HTTP %d", e.Status)
}

// Config holds client settings. Zero values fall back to defaults.
type Config struct {
	BaseURL         string
	RequestTimeout  time.Duration
	FinalizeTimeout time.Duration
	RetryCount      int
}

// Client talks to the conference backend.
type Client struct {
	http            *resty.Client
	baseURL         string
	requestTimeout  time.Duration
	finalizeTimeout time.Duration
}

// NewClient creates a backend client. GET requests retry up to
// cfg.RetryCount times on transport errors and 5xx responses;
// POST and DELETE never retry.
func NewClient(cfg Config) *Client {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 30 * time.Second
	}
	if cfg.FinalizeTimeout <= 0 {
		cfg.FinalizeTimeout = 2 * time.Minute
	}

	httpClient := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetHeader("Accept", "application/json").
		SetRetryCount(cfg.RetryCount).
		SetRetryWaitTime(500 * time.Millisecond).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			if r == nil || r.Request == nil {
				return false
			}
			if r.Request.Method != http.MethodGet {
				return false
			}
			return err != nil || r.StatusCode() >= http.StatusInternalServerError
		})

	httpClient.OnBeforeRequest(func(_ *resty.Client, r *resty.Request) error {
		r.SetHeader("X-Request-ID", uuid.NewString())
		return nil
	})

	return &Client{
		http:            httpClient,
		baseURL:         cfg.BaseURL,
		requestTimeout:  cfg.RequestTimeout,
		finalizeTimeout: cfg.FinalizeTimeout,
	}
}

type errorBody struct {
	Detail string `json:"detail"`
}

type startResponse struct {
	ConferenceID string `json:"conference_id"`
}

type recordResponse struct {
	Text string `json:"text"`
}

type translateResponse struct {
	TranslatedText string `json:"translated_text"`
}

// StartConference registers a new conference session for the given
// parent language and returns the backend-assigned id.
func (c *Client) StartConference(ctx context.Context, parentLanguage string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.requestTimeout)
	defer cancel()

	var out startResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(map[string]string{"parent_language": parentLanguage}).
		SetResult(&out).
		SetError(&errorBody{}).
		Post("/conference/start")
	if err != nil {
		return "", fmt.Errorf("start conference: %w", err)
	}
	if resp.IsError() {
		return "", apiError(resp)
	}
	if out.ConferenceID == "" {
		return "", fmt.Errorf("start conference: backend returned no conference id")
	}
	return out.ConferenceID, nil
}

// SubmitRecording uploads the finalized audio payload for a session and
// returns the derived text. The payload's declared MIME type and the
// upload filename must reflect the format negotiated at capture time.
func (c *Client) SubmitRecording(ctx context.Context, conferenceID string, audio []byte, mimeType, filename string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.finalizeTimeout)
	defer cancel()

	var out recordResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetMultipartField("audio", filename, mimeType, bytes.NewReader(audio)).
		SetMultipartFormData(map[string]string{"conference_id": conferenceID}).
		SetResult(&out).
		SetError(&errorBody{}).
		Post("/conference/record")
	if err != nil {
		return "", fmt.Errorf("submit recording: %w", err)
	}
	if resp.IsError() {
		return "", apiError(resp)
	}
	return out.Text, nil
}

// ListConferences fetches the stored conference list.
func (c *Client) ListConferences(ctx context.Context) ([]types.Conference, error) {
	ctx, cancel := context.WithTimeout(ctx, c.requestTimeout)
	defer cancel()

	var out []types.Conference
	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&out).
		SetError(&errorBody{}).
		Get("/conferences")
	if err != nil {
		return nil, fmt.Errorf("list conferences: %w", err)
	}
	if resp.IsError() {
		return nil, apiError(resp)
	}
	return out, nil
}

// DeleteConference removes a stored conference.
func (c *Client) DeleteConference(ctx context.Context, conferenceID string) error {
	ctx, cancel := context.WithTimeout(ctx, c.requestTimeout)
	defer cancel()

	resp, err := c.http.R().
		SetContext(ctx).
		SetError(&errorBody{}).
		Delete("/conferences/" + conferenceID)
	if err != nil {
		return fmt.Errorf("delete conference: %w", err)
	}
	if resp.IsError() {
		return apiError(resp)
	}
	return nil
}

// Translate requests an on-demand translation of a conference summary.
func (c *Client) Translate(ctx context.Context, conferenceID, targetLanguage string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.requestTimeout)
	defer cancel()

	var out translateResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("target_language", targetLanguage).
		SetResult(&out).
		SetError(&errorBody{}).
		Get("/conference/" + conferenceID + "/translate")
	if err != nil {
		return "", fmt.Errorf("translate conference: %w", err)
	}
	if resp.IsError() {
		return "", apiError(resp)
	}
	return out.TranslatedText, nil
}

// RecordingURL returns the URL of the stored recording file for playback.
func (c *Client) RecordingURL(conferenceID string) string {
	return c.baseURL + "/recordings/" + conferenceID + "_recording.webm"
}

func apiError(resp *resty.Response) error {
	apiErr := &APIError{Status: resp.StatusCode()}
	if body, ok := resp.Error().(*errorBody); ok && body != nil {
		apiErr.Detail = body.Detail
	}
	return apiErr
}
