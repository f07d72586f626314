package jellyfin

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	json "github.com/goccy/go-json"

	"github.com/collectarr/collectarr/internal/domain"
)

const (
	defaultTimeout   = 15 * time.Second
	imageTimeout     = 30 * time.Second
	defaultBatchSize = 200
	maxRetries       = 3
	baseRetryDelay   = 500 * time.Millisecond
)

// Client implements domain.MediaServer against the Jellyfin HTTP API.
//
// With dryRun set, every mutating call logs its intent and returns a
// synthetic identifier instead of touching the server; read calls behave
// normally.
type Client struct {
	baseURL    string
	token      string
	dryRun     bool
	httpClient *http.Client
	logger     *slog.Logger
}

// dryRunID is the synthetic non-persistent identifier returned by mutating
// calls in dry-run mode so downstream steps can proceed.
const dryRunID = "dry-run"

// NewClient creates a new Jellyfin API client.
func NewClient(baseURL, token string, dryRun bool, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		dryRun:  dryRun,
		httpClient: &http.Client{
			Timeout: defaultTimeout,
		},
		logger: logger,
	}
}

// doRequest performs an authenticated HTTP request to the Jellyfin API.
// Includes retry logic with exponential backoff for 5xx server errors.
func (c *Client) doRequest(ctx context.Context, method, path string, query url.Values) ([]byte, error) {
	reqURL := fmt.Sprintf("%s%s", c.baseURL, path)
	if query != nil {
		reqURL = fmt.Sprintf("%s?%s", reqURL, query.Encode())
	}

	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		if attempt > 0 {
			delay := baseRetryDelay * time.Duration(1<<(attempt-1)) // 500ms, 1s, 2s
			c.logger.Debug("retrying request", "attempt", attempt, "delay", delay, "url", reqURL)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		req, err := http.NewRequestWithContext(ctx, method, reqURL, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}

		req.Header.Set("Accept", "application/json")
		req.Header.Set("X-Emby-Token", c.token)

		c.logger.Debug("jellyfin request", "method", method, "url", reqURL, "attempt", attempt)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			c.logger.Error("jellyfin request failed", "error", err)
			return nil, domain.ErrServerOffline
		}

		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to read response: %w", err)
		}

		if resp.StatusCode == http.StatusUnauthorized {
			return nil, domain.ErrAuthFailed
		}

		if resp.StatusCode >= 500 && resp.StatusCode < 600 {
			lastErr = fmt.Errorf("server error: %d - %s", resp.StatusCode, string(body))
			c.logger.Warn("jellyfin server error, will retry",
				"status", resp.StatusCode,
				"attempt", attempt,
				"path", path,
			)
			continue
		}

		if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
			c.logger.Error("jellyfin request error", "status", resp.StatusCode, "body", string(body))
			return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
		}

		return body, nil
	}

	c.logger.Error("jellyfin request failed after retries", "error", lastErr, "path", path)
	return nil, lastErr
}

// ListUsers returns all server accounts.
func (c *Client) ListUsers(ctx context.Context) ([]domain.User, error) {
	body, err := c.doRequest(ctx, http.MethodGet, "/Users", nil)
	if err != nil {
		return nil, err
	}

	var users []userResponse
	if err := json.Unmarshal(body, &users); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	return mapUsers(users), nil
}

// GetMovies returns every movie visible to the user, with provider ids.
// Pagination is handled internally.
func (c *Client) GetMovies(ctx context.Context, userID string) ([]domain.LibraryItem, error) {
	var all []domain.LibraryItem
	offset := 0

	for {
		query := url.Values{}
		query.Set("IncludeItemTypes", "Movie")
		query.Set("Recursive", "true")
		query.Set("Fields", "ProviderIds")
		query.Set("UserId", userID)
		query.Set("StartIndex", strconv.Itoa(offset))
		query.Set("Limit", strconv.Itoa(defaultBatchSize))

		body, err := c.doRequest(ctx, http.MethodGet, "/Items", query)
		if err != nil {
			return nil, err
		}

		var resp itemsResponse
		if err := json.Unmarshal(body, &resp); err != nil {
			return nil, fmt.Errorf("failed to parse response: %w", err)
		}

		all = append(all, mapMovies(resp.Items)...)

		offset += len(resp.Items)
		if offset >= resp.TotalRecordCount || len(resp.Items) == 0 {
			break
		}
	}

	return all, nil
}

// FindCollection returns the id of the box set whose name exactly matches
// name, or "" when none exists. The server search is a substring match, so
// results are filtered client-side down to exact name equality.
func (c *Client) FindCollection(ctx context.Context, name, userID string) (string, error) {
	query := url.Values{}
	query.Set("IncludeItemTypes", "BoxSet")
	query.Set("Recursive", "true")
	query.Set("SearchTerm", name)
	query.Set("UserId", userID)

	body, err := c.doRequest(ctx, http.MethodGet, "/Items", query)
	if err != nil {
		return "", err
	}

	var resp itemsResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("failed to parse response: %w", err)
	}

	for _, it := range resp.Items {
		if it.Name == name {
			return it.ID, nil
		}
	}
	return "", nil
}

// CreateCollection creates a box set with the initial member set and returns
// its id. Creating with no ids is a no-op.
func (c *Client) CreateCollection(ctx context.Context, name string, ids []string) (string, error) {
	if len(ids) == 0 {
		return "", nil
	}

	if c.dryRun {
		c.logger.Info("[dry run] would create collection", "name", name, "items", len(ids))
		return dryRunID, nil
	}

	query := url.Values{}
	query.Set("Name", name)
	query.Set("Ids", strings.Join(ids, ","))

	body, err := c.doRequest(ctx, http.MethodPost, "/Collections", query)
	if err != nil {
		return "", err
	}

	var resp createResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("failed to parse response: %w", err)
	}
	return resp.ID, nil
}

// AddToCollection unions ids into an existing box set. The server
// deduplicates members, so re-adding is idempotent.
func (c *Client) AddToCollection(ctx context.Context, collectionID string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	if c.dryRun {
		c.logger.Info("[dry run] would add items to collection", "collection", collectionID, "items", len(ids))
		return nil
	}

	query := url.Values{}
	query.Set("Ids", strings.Join(ids, ","))

	path := fmt.Sprintf("/Collections/%s/Items", collectionID)
	_, err := c.doRequest(ctx, http.MethodPost, path, query)
	return err
}

// UploadPrimaryImage sets the item's primary image.
func (c *Client) UploadPrimaryImage(ctx context.Context, itemID string, image []byte) error {
	if c.dryRun {
		c.logger.Info("[dry run] would upload primary image", "item", itemID, "bytes", len(image))
		return nil
	}

	reqURL := fmt.Sprintf("%s/Items/%s/Images/Primary", c.baseURL, itemID)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, bytes.NewReader(image))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("X-Emby-Token", c.token)
	req.Header.Set("Content-Type", "image/jpeg")

	client := &http.Client{Timeout: imageTimeout}
	resp, err := client.Do(req)
	if err != nil {
		return domain.ErrServerOffline
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		return fmt.Errorf("failed to upload image: status %d", resp.StatusCode)
	}
	return nil
}

// HasPrimaryImage reports whether the item already has a primary image.
func (c *Client) HasPrimaryImage(ctx context.Context, itemID string) bool {
	reqURL := fmt.Sprintf("%s/Items/%s/Images/Primary", c.baseURL, itemID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return false
	}
	req.Header.Set("X-Emby-Token", c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()

	return resp.StatusCode == http.StatusOK
}
