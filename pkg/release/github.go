package release

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/cuemby/jamctl/pkg/log"
	"github.com/cuemby/jamctl/pkg/metrics"
	"github.com/cuemby/jamctl/pkg/types"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

const (
	// DefaultIndexURL is the GitHub releases API for the polkajam toolchain
	DefaultIndexURL = "https://api.github.com/repos/paritytech/polkajam-releases"

	// DefaultListLimit is how many releases --list and "latest" consider
	DefaultListLimit = 10

	userAgent = "jamctl"
)

// Release is one entry of the GitHub releases API
type Release struct {
	TagName     string    `json:"tag_name"`
	Name        string    `json:"name"`
	PublishedAt time.Time `json:"published_at"`
	Assets      []Asset   `json:"assets"`
}

// Asset is a downloadable file attached to a release
type Asset struct {
	Name               string `json:"name"`
	BrowserDownloadURL string `json:"browser_download_url"`
	Size               int64  `json:"size"`
	Digest             string `json:"digest,omitempty"`
}

// Client queries the remote release index
type Client struct {
	// IndexURL is the repository endpoint, without the /releases suffix
	IndexURL string

	// Token is sent as a bearer token when set (GITHUB_TOKEN)
	Token string

	// MaxAttempts bounds retries of transient network failures
	MaxAttempts int

	// RetryInterval is the initial pause between attempts; it doubles each retry
	RetryInterval time.Duration

	HTTPClient *http.Client

	logger zerolog.Logger
}

// NewClient creates a release index client reading GITHUB_TOKEN from the environment
func NewClient() *Client {
	return &Client{
		IndexURL:      DefaultIndexURL,
		Token:         os.Getenv("GITHUB_TOKEN"),
		MaxAttempts:   3,
		RetryInterval: 500 * time.Millisecond,
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger: log.WithComponent("resolver"),
	}
}

// WithIndexURL points the client at a different release index
func (c *Client) WithIndexURL(u string) *Client {
	c.IndexURL = strings.TrimRight(u, "/")
	return c
}

// Releases fetches up to limit releases, as ordered by the index
func (c *Client) Releases(ctx context.Context, limit int) ([]Release, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	endpoint := fmt.Sprintf("%s/releases?per_page=%d", c.IndexURL, limit)

	var releases []Release
	if err := c.getJSON(ctx, endpoint, &releases); err != nil {
		return nil, err
	}
	return releases, nil
}

// Release fetches a single release by tag
func (c *Client) Release(ctx context.Context, tag string) (*Release, error) {
	endpoint := fmt.Sprintf("%s/releases/tags/%s", c.IndexURL, url.PathEscape(tag))

	var release Release
	if err := c.getJSON(ctx, endpoint, &release); err != nil {
		if errors.Is(err, types.ErrNotFound) {
			return nil, fmt.Errorf("release %q: %w", tag, types.ErrVersionNotFound)
		}
		return nil, err
	}
	return &release, nil
}

// statusError is a non-2xx response from the index
type statusError struct {
	url    string
	status int
}

func (e *statusError) Error() string {
	return fmt.Sprintf("release index returned %d %s for %s", e.status, http.StatusText(e.status), e.url)
}

func (e *statusError) retryable() bool {
	return e.status >= 500
}

// getJSON performs a GET with bounded, paced retries. 404 maps to
// types.ErrNotFound; every other failure is types.ErrNetwork.
func (c *Client) getJSON(ctx context.Context, endpoint string, out interface{}) error {
	attempts := c.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}
	interval := c.RetryInterval
	if interval <= 0 {
		interval = 100 * time.Millisecond
	}
	limiter := rate.NewLimiter(rate.Every(interval), 1)

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := limiter.Wait(ctx); err != nil {
			return fmt.Errorf("%w: %v", types.ErrNetwork, err)
		}

		body, err := c.get(ctx, endpoint)
		if err == nil {
			defer body.Close()
			if err := json.NewDecoder(body).Decode(out); err != nil {
				metrics.IndexRequestsTotal.WithLabelValues("invalid").Inc()
				return fmt.Errorf("%w: failed to decode release index response: %v", types.ErrNetwork, err)
			}
			metrics.IndexRequestsTotal.WithLabelValues("success").Inc()
			return nil
		}

		var se *statusError
		if errors.As(err, &se) {
			if se.status == http.StatusNotFound {
				metrics.IndexRequestsTotal.WithLabelValues("not_found").Inc()
				return fmt.Errorf("%s: %w", se.url, types.ErrNotFound)
			}
			if !se.retryable() {
				metrics.IndexRequestsTotal.WithLabelValues("error").Inc()
				return fmt.Errorf("%w: %v", types.ErrNetwork, err)
			}
		}
		if ctx.Err() != nil {
			return fmt.Errorf("%w: %v", types.ErrNetwork, ctx.Err())
		}

		metrics.IndexRequestsTotal.WithLabelValues("retry").Inc()
		lastErr = err
		c.logger.Debug().Err(err).Int("attempt", attempt).Msg("Release index request failed")
		interval *= 2
		limiter.SetLimit(rate.Every(interval))
	}

	metrics.IndexRequestsTotal.WithLabelValues("error").Inc()
	return fmt.Errorf("%w: release index unreachable after %d attempts: %v", types.ErrNetwork, attempts, lastErr)
}

func (c *Client) get(ctx context.Context, endpoint string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/vnd.github+json")
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		return nil, &statusError{url: endpoint, status: resp.StatusCode}
	}
	return resp.Body, nil
}
