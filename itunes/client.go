// Package itunes is the Remote Search Adapter for the iTunes Search API.
package itunes

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

	"music-search-api-go/logcolors"
	"music-search-api-go/song"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	log "github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

const (
	DefaultSearchURL = "https://itunes.apple.com/search"
	userAgent        = "music-search-api-go/1.0"
	maxBodyBytes     = 8 << 20
)

var remoteRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "music_search_remote_requests_total",
	Help: "iTunes search requests by outcome.",
}, []string{"outcome"})

// Options configures a Client. Zero values fall back to defaults.
type Options struct {
	BaseURL           string
	Country           string
	RequestsPerMinute int
	// Timeout bounds one request. Zero means no client timeout; only the
	// caller's context can stop the request.
	Timeout    time.Duration
	HTTPClient *http.Client
}

// Client queries the iTunes Search API.
type Client struct {
	baseURL    string
	country    string
	httpClient *http.Client
	limiter    *rate.Limiter
}

func NewClient(opts Options) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultSearchURL
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: opts.Timeout}
	}
	limiter := rate.NewLimiter(rate.Inf, 0)
	if opts.RequestsPerMinute > 0 {
		limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(opts.RequestsPerMinute)), opts.RequestsPerMinute)
	}
	return &Client{
		baseURL:    opts.BaseURL,
		country:    opts.Country,
		httpClient: httpClient,
		limiter:    limiter,
	}
}

// Search fetches up to limit songs for query and returns them normalized and
// scored. A cancelled ctx yields an empty result and a nil error.
func (c *Client) Search(ctx context.Context, query string, limit int) ([]song.Song, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		if ctx.Err() != nil {
			remoteRequestsTotal.WithLabelValues("cancelled").Inc()
			return []song.Song{}, nil
		}
		remoteRequestsTotal.WithLabelValues("error").Inc()
		return nil, &RemoteSearchError{Err: fmt.Errorf("rate limiter: %w", err)}
	}

	params := url.Values{}
	params.Set("term", query)
	params.Set("media", "music")
	params.Set("entity", "song")
	params.Set("limit", strconv.Itoa(limit))
	if c.country != "" {
		params.Set("country", c.country)
	}
	requestURL := c.baseURL + "?" + params.Encode()

	log.Debugf("%s Searching: %q (limit %d)", logcolors.LogRemote, query, limit)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		remoteRequestsTotal.WithLabelValues("error").Inc()
		return nil, &RemoteSearchError{Err: fmt.Errorf("failed to create request: %w", err)}
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if isCancelled(ctx, err) {
			log.Debugf("%s Request for %q cancelled", logcolors.LogCancelled, query)
			remoteRequestsTotal.WithLabelValues("cancelled").Inc()
			return []song.Song{}, nil
		}
		remoteRequestsTotal.WithLabelValues("error").Inc()
		return nil, &RemoteSearchError{Err: fmt.Errorf("request failed: %w", err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		remoteRequestsTotal.WithLabelValues("status_" + strconv.Itoa(resp.StatusCode)).Inc()
		return nil, &RemoteSearchError{Status: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		if isCancelled(ctx, err) {
			remoteRequestsTotal.WithLabelValues("cancelled").Inc()
			return []song.Song{}, nil
		}
		remoteRequestsTotal.WithLabelValues("error").Inc()
		return nil, &RemoteSearchError{Status: resp.StatusCode, Err: fmt.Errorf("failed to read response: %w", err)}
	}

	var searchResp SearchResponse
	if err := json.Unmarshal(body, &searchResp); err != nil {
		remoteRequestsTotal.WithLabelValues("error").Inc()
		return nil, &RemoteSearchError{Status: resp.StatusCode, Err: fmt.Errorf("failed to parse response: %w", err)}
	}

	songs := NormalizeAll(searchResp.Results, query)
	remoteRequestsTotal.WithLabelValues("ok").Inc()
	log.Debugf("%s %d results for %q", logcolors.LogRemote, len(songs), query)
	return songs, nil
}

func isCancelled(ctx context.Context, err error) bool {
	return ctx.Err() != nil || errors.Is(err, context.Canceled)
}
