// Package catalog provides a client for the backend catalog API.
package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"
	"golang.org/x/oauth2"

	"github.com/cadenza-audio/cadenza/internal/domain/track"
)

// Config represents catalog client configuration.
type Config struct {
	BaseURL string
	Token   string // Bearer token, empty for anonymous access
}

// Client is a catalog API client.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// trackRecord represents a track as returned by the catalog API.
type trackRecord struct {
	ID         string `json:"id"`
	Title      string `json:"title"`
	Artist     string `json:"artist"`
	ArtworkURL string `json:"artworkUrl"`
	DurationMs int64  `json:"durationMs"`
	AudioURL   string `json:"audioUrl"`
	StreamURL  string `json:"streamUrl"`
	PreviewURL string `json:"previewUrl"`
}

// trackListResponse represents a track list response from the catalog API.
type trackListResponse struct {
	Tracks []trackRecord `json:"tracks"`
}

// apiError represents an error response from the catalog API.
type apiError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// New creates a new catalog client.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("catalog base URL is required")
	}

	httpClient := &http.Client{Timeout: 10 * time.Second}
	if cfg.Token != "" {
		ctx := context.WithValue(context.Background(), oauth2.HTTPClient, httpClient)
		httpClient = oauth2.NewClient(ctx, oauth2.StaticTokenSource(
			&oauth2.Token{AccessToken: cfg.Token, TokenType: "Bearer"},
		))
		httpClient.Timeout = 10 * time.Second
	}

	return &Client{
		baseURL:    strings.TrimSuffix(cfg.BaseURL, "/"),
		httpClient: httpClient,
	}, nil
}

// StreamEndpoint returns the canonical, directly playable streaming URL for
// a track ID. Used as the highest-priority playback candidate.
func (c *Client) StreamEndpoint(trackID string) string {
	if trackID == "" {
		return ""
	}
	return fmt.Sprintf("%s/v1/tracks/%s/stream", c.baseURL, trackID)
}

// Recommendations retrieves personalized track recommendations.
// Requires an authenticated token.
func (c *Client) Recommendations(ctx context.Context, limit int) ([]track.Track, error) {
	return c.fetchTracks(ctx, fmt.Sprintf("%s/v1/me/recommendations?limit=%d", c.baseURL, limit))
}

// Popular retrieves the current popular tracks.
func (c *Client) Popular(ctx context.Context, limit int) ([]track.Track, error) {
	return c.fetchTracks(ctx, fmt.Sprintf("%s/v1/tracks/popular?limit=%d", c.baseURL, limit))
}

// Random retrieves an arbitrary selection of tracks.
func (c *Client) Random(ctx context.Context, limit int) ([]track.Track, error) {
	return c.fetchTracks(ctx, fmt.Sprintf("%s/v1/tracks/random?limit=%d", c.baseURL, limit))
}

// fetchTracks performs a GET for a track list endpoint and converts the
// response to domain tracks.
func (c *Client) fetchTracks(ctx context.Context, url string) ([]track.Track, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create request")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "catalog request failed")
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read response body")
	}

	if resp.StatusCode != http.StatusOK {
		var ae apiError
		if json.Unmarshal(body, &ae) == nil && ae.Message != "" {
			return nil, errors.Newf("catalog API error: %s (status %d)", ae.Message, resp.StatusCode)
		}
		return nil, errors.Newf("catalog API returned status %d", resp.StatusCode)
	}

	var list trackListResponse
	if err := json.Unmarshal(body, &list); err != nil {
		return nil, errors.Wrap(err, "failed to parse track list")
	}

	tracks := make([]track.Track, 0, len(list.Tracks))
	for _, r := range list.Tracks {
		tracks = append(tracks, track.Track{
			ID:         r.ID,
			Title:      r.Title,
			Artist:     r.Artist,
			ArtworkURL: r.ArtworkURL,
			Duration:   time.Duration(r.DurationMs) * time.Millisecond,
			AudioURL:   r.AudioURL,
			StreamURL:  r.StreamURL,
			PreviewURL: r.PreviewURL,
		})
	}

	zlog.Debug().Msgf("catalog: fetched %d tracks from %s", len(tracks), url)
	return tracks, nil
}
