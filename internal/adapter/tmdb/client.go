package tmdb

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	json "github.com/goccy/go-json"
	"golang.org/x/time/rate"

	"github.com/collectarr/collectarr/internal/domain"
)

const (
	defaultBaseURL      = "https://api.themoviedb.org/3"
	defaultImageBaseURL = "https://image.tmdb.org/t/p/original"
	defaultLanguage     = "en-US"

	defaultTimeout = 10 * time.Second
	posterTimeout  = 30 * time.Second

	maxAttempts     = 3
	retryDelay      = 1 * time.Second
	rateLimitDelay  = 3 * time.Second // 429 fallback when Retry-After is absent
	callInterval    = 250 * time.Millisecond
	windowCallLimit = 40
	windowSpan      = 10 * time.Second
)

// Config holds everything needed to construct a Client.
type Config struct {
	APIKey   string
	Language string
	Offline  bool

	// BaseURL / ImageBaseURL override the TMDb endpoints (tests).
	BaseURL      string
	ImageBaseURL string
}

// Client is a rate-limited, retrying, cache-through TMDb client. In offline
// mode every lookup short-circuits to absent without touching the network or
// the cache write path.
//
// Safe for use from multiple fetch workers: the limiters and the failed-id
// set are the only mutable state and both are serialized.
type Client struct {
	apiKey       string
	language     string
	offline      bool
	baseURL      string
	imageBaseURL string
	httpClient   *http.Client
	limiter      *rate.Limiter
	window       *slidingWindow
	cache        domain.MetadataCache
	logger       *slog.Logger

	mu     sync.Mutex
	failed map[string]struct{} // paths that exhausted retries this run
}

// NewClient creates a TMDb client backed by the given metadata cache.
func NewClient(cfg Config, cache domain.MetadataCache, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Language == "" {
		cfg.Language = defaultLanguage
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.ImageBaseURL == "" {
		cfg.ImageBaseURL = defaultImageBaseURL
	}
	return &Client{
		apiKey:       cfg.APIKey,
		language:     cfg.Language,
		offline:      cfg.Offline,
		baseURL:      cfg.BaseURL,
		imageBaseURL: cfg.ImageBaseURL,
		httpClient:   &http.Client{Timeout: defaultTimeout},
		limiter:      rate.NewLimiter(rate.Every(callInterval), 1),
		window:       newSlidingWindow(windowCallLimit, windowSpan),
		cache:        cache,
		logger:       logger,
	}
}

// Movie returns the normalized title record for a TMDb movie id, consulting
// the cache first. Absent records and exhausted retries return (nil, nil).
func (c *Client) Movie(ctx context.Context, id int) (*domain.Title, error) {
	if c.offline {
		return nil, nil
	}
	if t, ok := c.cache.Title(id); ok {
		return t, nil
	}

	var resp movieResponse
	ok, err := c.getJSON(ctx, "/movie/"+strconv.Itoa(id), &resp)
	if err != nil || !ok {
		return nil, err
	}

	t := mapMovie(resp)
	if err := c.cache.SetTitle(id, t); err != nil {
		c.logger.Warn("failed to cache title", "id", id, "error", err)
	}
	return t, nil
}

// Collection returns the normalized collection record with its full member
// list, consulting the cache first.
func (c *Client) Collection(ctx context.Context, id int) (*domain.Collection, error) {
	if c.offline {
		return nil, nil
	}
	if col, ok := c.cache.Collection(id); ok {
		return col, nil
	}

	var resp collectionResponse
	ok, err := c.getJSON(ctx, "/collection/"+strconv.Itoa(id), &resp)
	if err != nil || !ok {
		return nil, err
	}

	col := mapCollection(resp)
	if err := c.cache.SetCollection(id, col); err != nil {
		c.logger.Warn("failed to cache collection", "id", id, "error", err)
	}
	return col, nil
}

// Poster downloads the collection's poster image. Absence of art is not an
// error: (nil, nil) means there is nothing to upload.
func (c *Client) Poster(ctx context.Context, collectionID int) ([]byte, error) {
	if c.offline {
		return nil, nil
	}

	col, err := c.Collection(ctx, collectionID)
	if err != nil || col == nil || col.PosterPath == "" {
		return nil, err
	}

	if err := c.wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.imageBaseURL+col.PosterPath, nil)
	if err != nil {
		return nil, err
	}

	client := &http.Client{Timeout: posterTimeout}
	resp, err := client.Do(req)
	if err != nil {
		c.logger.Warn("poster fetch failed", "collection", collectionID, "error", err)
		return nil, nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.logger.Warn("poster fetch failed", "collection", collectionID, "status", resp.StatusCode)
		return nil, nil
	}

	return io.ReadAll(resp.Body)
}

// getJSON performs a rate-limited GET with bounded retries and decodes the
// body into dest. Returns ok=false when the record could not be fetched
// (logged, cached as failed for this run); err is non-nil only for fatal
// conditions: a rejected credential or context cancellation.
func (c *Client) getJSON(ctx context.Context, path string, dest interface{}) (bool, error) {
	if c.isFailed(path) {
		return false, nil
	}

	reqURL := fmt.Sprintf("%s%s?api_key=%s&language=%s", c.baseURL, path, c.apiKey, c.language)

	for attempt := 1; attempt <= maxAttempts; {
		if err := c.wait(ctx); err != nil {
			return false, err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
		if err != nil {
			return false, fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return false, ctx.Err()
			}
			c.logger.Warn("tmdb request failed", "path", path, "attempt", attempt, "error", err)
			attempt++
			if err := sleepCtx(ctx, retryDelay); err != nil {
				return false, err
			}
			continue
		}

		body, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusTooManyRequests:
			// Honor the server-specified delay; a 429 does not consume
			// an attempt.
			delay := retryAfter(resp, rateLimitDelay)
			c.logger.Warn("tmdb rate limited", "path", path, "delay", delay)
			if err := sleepCtx(ctx, delay); err != nil {
				return false, err
			}
			continue

		case resp.StatusCode == http.StatusUnauthorized:
			return false, domain.ErrAuthFailed

		case resp.StatusCode != http.StatusOK:
			c.logger.Warn("tmdb request error", "path", path, "status", resp.StatusCode, "attempt", attempt)
			attempt++
			if err := sleepCtx(ctx, retryDelay); err != nil {
				return false, err
			}
			continue
		}

		if readErr != nil {
			c.logger.Warn("tmdb response read failed", "path", path, "attempt", attempt, "error", readErr)
			attempt++
			if err := sleepCtx(ctx, retryDelay); err != nil {
				return false, err
			}
			continue
		}

		if err := json.Unmarshal(body, dest); err != nil {
			c.logger.Warn("tmdb response parse failed", "path", path, "error", err)
			c.markFailed(path)
			return false, nil
		}
		return true, nil
	}

	c.logger.Warn("giving up after repeated tmdb failures", "path", path)
	c.markFailed(path)
	return false, nil
}

// wait enforces the minimum inter-call spacing and the per-window call cap.
func (c *Client) wait(ctx context.Context) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}
	return c.window.Wait(ctx)
}

func (c *Client) isFailed(path string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.failed[path]
	return ok
}

func (c *Client) markFailed(path string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failed == nil {
		c.failed = make(map[string]struct{})
	}
	c.failed[path] = struct{}{}
}

func retryAfter(resp *http.Response, fallback time.Duration) time.Duration {
	if v := resp.Header.Get("Retry-After"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
			return time.Duration(secs) * time.Second
		}
	}
	return fallback
}
