// Package covers looks up release cover art through the Discogs API.
package covers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/kartenwerk/schallpappenspieler/internal/monitoring"
	"github.com/kartenwerk/schallpappenspieler/internal/timeutil"
)

const defaultBaseURL = "https://api.discogs.com"

// ErrNoResults is returned when a search matches nothing.
var ErrNoResults = errors.New("covers: no results")

// RateLimit mirrors the X-Discogs-Ratelimit response headers. Fields are
// pointers because the headers may be absent.
type RateLimit struct {
	Limit     *int
	Used      *int
	Remaining *int
}

// Client talks to the Discogs database search API.
type Client struct {
	token     string
	userAgent string
	baseURL   string
	http      *http.Client
	clock     timeutil.Clock

	// LastRate holds the rate limit state from the most recent response.
	LastRate *RateLimit
}

// NewClient creates a Client authenticated with a personal access token.
func NewClient(token, userAgent string) *Client {
	return &Client{
		token:     token,
		userAgent: userAgent,
		baseURL:   defaultBaseURL,
		http:      &http.Client{Timeout: 15 * time.Second},
		clock:     timeutil.RealClock{},
	}
}

// NewClientWith creates a Client with injected transport, base URL and
// clock, for tests.
func NewClientWith(token, userAgent, baseURL string, httpClient *http.Client, clock timeutil.Clock) *Client {
	return &Client{
		token:     token,
		userAgent: userAgent,
		baseURL:   baseURL,
		http:      httpClient,
		clock:     clock,
	}
}

type searchResponse struct {
	Results []struct {
		CoverImage string `json:"cover_image"`
	} `json:"results"`
}

// SearchCover returns the cover image URL for the best release match of
// track (and optionally artist). A 429 response is retried after the
// server-indicated delay, at most twice.
func (c *Client) SearchCover(ctx context.Context, track, artist string) (string, error) {
	params := url.Values{}
	params.Set("track", track)
	params.Set("type", "release")
	params.Set("per_page", "5")
	if artist != "" {
		params.Set("artist", artist)
	}

	const maxRetries = 2
	for attempt := 0; attempt <= maxRetries; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet,
			c.baseURL+"/database/search?"+params.Encode(), nil)
		if err != nil {
			return "", fmt.Errorf("build search request: %w", err)
		}
		req.Header.Set("Authorization", "Discogs token="+c.token)
		req.Header.Set("User-Agent", c.userAgent)

		resp, err := c.http.Do(req)
		if err != nil {
			return "", fmt.Errorf("search request: %w", err)
		}
		c.updateRate(resp.Header)

		if resp.StatusCode == http.StatusTooManyRequests {
			resp.Body.Close()
			wait := retryAfter(resp.Header)
			monitoring.Logf("covers: rate limited, waiting %v", wait)
			c.clock.Sleep(wait)
			continue
		}
		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			return "", fmt.Errorf("search returned %s", resp.Status)
		}

		var parsed searchResponse
		err = json.NewDecoder(resp.Body).Decode(&parsed)
		resp.Body.Close()
		if err != nil {
			return "", fmt.Errorf("decode search response: %w", err)
		}
		if len(parsed.Results) == 0 || parsed.Results[0].CoverImage == "" {
			return "", ErrNoResults
		}
		return parsed.Results[0].CoverImage, nil
	}
	return "", fmt.Errorf("search rate limited after %d retries", maxRetries)
}

// FetchImage downloads an image URL, typically one returned by SearchCover.
func (c *Client) FetchImage(ctx context.Context, imageURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build image request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("image request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("image fetch returned %s", resp.Status)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read image body: %w", err)
	}
	return data, nil
}

// WaitIfLimited sleeps when the last response reported an exhausted rate
// budget. It returns the wait applied.
func (c *Client) WaitIfLimited() time.Duration {
	if c.LastRate == nil || c.LastRate.Remaining == nil || *c.LastRate.Remaining > 0 {
		return 0
	}
	const wait = time.Minute
	c.clock.Sleep(wait)
	return wait
}

func (c *Client) updateRate(h http.Header) {
	rate := &RateLimit{
		Limit:     headerInt(h, "X-Discogs-Ratelimit"),
		Used:      headerInt(h, "X-Discogs-Ratelimit-Used"),
		Remaining: headerInt(h, "X-Discogs-Ratelimit-Remaining"),
	}
	c.LastRate = rate
}

func headerInt(h http.Header, key string) *int {
	v, err := strconv.Atoi(h.Get(key))
	if err != nil {
		return nil
	}
	return &v
}

func retryAfter(h http.Header) time.Duration {
	if seconds, err := strconv.Atoi(h.Get("Retry-After")); err == nil && seconds > 0 {
		return time.Duration(seconds) * time.Second
	}
	return time.Minute
}
