// Package spotify provides HTTP clients for the Spotify accounts service and
// Web API: token exchange for the authorization-code and refresh-token
// grants, and the recently-played history endpoint.
package spotify

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/amolrairikar/spotify-listening-history-app/internal/faults"
	"github.com/amolrairikar/spotify-listening-history-app/internal/logging"
)

const (
	defaultAPIBaseURL = "https://api.spotify.com/v1"
	userAgent         = "spotify-listening-history-app/1.0"

	// DefaultFetchLimit is the page size for recently-played requests, the
	// maximum the API allows.
	DefaultFetchLimit = 50
)

const stageSpotify = "recently played"

// Client calls the Spotify Web API.
type Client struct {
	httpClient *http.Client
	baseURL    string
}

// NewClient creates a Web API client.
func NewClient() *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		baseURL:    defaultAPIBaseURL,
	}
}

// RecentlyPlayed fetches play events strictly after the given watermark
// (unix milliseconds). Non-2xx statuses are returned as classified faults:
// 429 and 5xx transient, other 4xx auth-class.
func (c *Client) RecentlyPlayed(ctx context.Context, accessToken string, after int64, limit int) (*RecentlyPlayed, error) {
	if limit <= 0 {
		limit = DefaultFetchLimit
	}

	query := url.Values{
		"limit": {strconv.Itoa(limit)},
		"after": {strconv.FormatInt(after, 10)},
	}
	reqURL := c.baseURL + "/me/player/recently-played?" + query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("User-Agent", userAgent)

	logging.Info().Int64("after", after).Int("limit", limit).Msg("Fetching recently played tracks")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, faults.Transient(stageSpotify, fmt.Errorf("executing request: %w", err))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, faults.Transient(stageSpotify, fmt.Errorf("reading response body: %w", err))
	}

	if resp.StatusCode != http.StatusOK {
		return nil, faults.FromStatus(stageSpotify, resp.StatusCode, apiErrorDetail(body))
	}

	var envelope struct {
		Items json.RawMessage `json:"items"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, faults.Validation(stageSpotify, fmt.Errorf("parsing response: %w", err))
	}

	result := &RecentlyPlayed{Raw: envelope.Items}
	if len(envelope.Items) == 0 {
		result.Raw = []byte("[]")
		return result, nil
	}

	if err := json.Unmarshal(envelope.Items, &result.Events); err != nil {
		return nil, faults.Validation(stageSpotify, fmt.Errorf("parsing play events: %w", err))
	}
	return result, nil
}

// apiErrorDetail extracts the error message from a Spotify error body, if any.
func apiErrorDetail(body []byte) string {
	var payload struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
		ErrorDescription string `json:"error_description"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return ""
	}
	if payload.Error.Message != "" {
		return payload.Error.Message
	}
	return payload.ErrorDescription
}
