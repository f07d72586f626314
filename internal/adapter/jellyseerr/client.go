// Package jellyseerr implements the request-service connector.
package jellyseerr

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	json "github.com/goccy/go-json"

	"github.com/collectarr/collectarr/internal/domain"
)

const defaultTimeout = 10 * time.Second

// Client implements domain.Requester against the Jellyseerr HTTP API.
type Client struct {
	baseURL    string
	apiKey     string
	dryRun     bool
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a new Jellyseerr API client. With dryRun set, request
// submission logs an intent instead of posting.
func NewClient(baseURL, apiKey string, dryRun bool, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		dryRun:     dryRun,
		httpClient: &http.Client{Timeout: defaultTimeout},
		logger:     logger,
	}
}

func (c *Client) doRequest(ctx context.Context, method, path string, payload interface{}) ([]byte, int, error) {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, 0, err
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("X-Api-Key", c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("jellyseerr %s %s failed: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("failed to read response: %w", err)
	}
	return data, resp.StatusCode, nil
}

// movieDetails represents the availability subset of Jellyseerr's movie
// details payload. The release date has appeared under both spellings.
type movieDetails struct {
	ReleaseDate    string `json:"releaseDate"`
	AltReleaseDate string `json:"release_date"`
	Status         string `json:"status"`
}

// MovieDetails fetches title availability through Jellyseerr's TMDb proxy,
// normalized into the shared release-info shape.
func (c *Client) MovieDetails(ctx context.Context, tmdbID int) (*domain.ReleaseInfo, error) {
	body, status, err := c.doRequest(ctx, http.MethodGet, fmt.Sprintf("/movie/%d", tmdbID), nil)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("jellyseerr movie details returned %d", status)
	}

	var d movieDetails
	if err := json.Unmarshal(body, &d); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	date := d.ReleaseDate
	if date == "" {
		date = d.AltReleaseDate
	}
	return &domain.ReleaseInfo{ReleaseDate: date, Status: d.Status}, nil
}

// IsRequested reports whether media for the TMDb id is already known to the
// request service.
func (c *Client) IsRequested(ctx context.Context, tmdbID int) (bool, error) {
	body, status, err := c.doRequest(ctx, http.MethodGet, fmt.Sprintf("/media/%d", tmdbID), nil)
	if err != nil {
		return false, err
	}
	if status == http.StatusNotFound {
		return false, nil
	}
	if status != http.StatusOK {
		return false, fmt.Errorf("jellyseerr media check returned %d", status)
	}
	return len(body) > 0, nil
}

// RequestMovie submits a movie request.
func (c *Client) RequestMovie(ctx context.Context, tmdbID int) error {
	if c.dryRun {
		c.logger.Info("[dry run] would request movie", "tmdb", tmdbID)
		return nil
	}

	payload := map[string]interface{}{
		"mediaType": "movie",
		"tmdbId":    tmdbID,
	}
	_, status, err := c.doRequest(ctx, http.MethodPost, "/request", payload)
	if err != nil {
		return err
	}
	if status != http.StatusOK && status != http.StatusCreated {
		return fmt.Errorf("jellyseerr request returned %d", status)
	}
	return nil
}
