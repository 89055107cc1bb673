// Package energy fetches electricity spot prices from a public JSON feed.
// Prices feed the advisor's context so saving tips can mention cheap hours.
package energy

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"
)

var (
	ErrUnexpectedStatusCode = errors.New("unexpected http status code")
	ErrFeedUnavailable      = errors.New("price feed unavailable")
)

// PricePoint is one hourly spot price in cents per kWh.
type PricePoint struct {
	StartsAt time.Time `json:"startsAt"`
	CtPerKWh float64   `json:"ctPerKWh"`
}

// Snapshot is a fetched price curve with derived statistics.
type Snapshot struct {
	Points    []PricePoint
	Min       float64
	Max       float64
	Average   float64
	FetchedAt time.Time
}

// CurrentPrice returns the price for the hour containing t, or false when
// the curve does not cover it.
func (s Snapshot) CurrentPrice(t time.Time) (float64, bool) {
	for _, p := range s.Points {
		if !t.Before(p.StartsAt) && t.Before(p.StartsAt.Add(time.Hour)) {
			return p.CtPerKWh, true
		}
	}
	return 0, false
}

// CheapestHour returns the start of the cheapest hour in the curve.
func (s Snapshot) CheapestHour() (time.Time, bool) {
	if len(s.Points) == 0 {
		return time.Time{}, false
	}
	best := s.Points[0]
	for _, p := range s.Points[1:] {
		if p.CtPerKWh < best.CtPerKWh {
			best = p
		}
	}
	return best.StartsAt, true
}

// Client fetches spot prices over HTTP and caches the last snapshot for a
// TTL so the advisor does not hammer the feed on every chat turn.
type Client struct {
	httpClient *http.Client
	baseURL    *url.URL
	ttl        time.Duration

	mu     sync.Mutex
	cached Snapshot
}

// NewClient builds a price feed client. A nil httpClient falls back to a
// default with a request timeout.
func NewClient(httpClient *http.Client, feedURL string, ttl time.Duration) (*Client, error) {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	u, err := url.Parse(feedURL)
	if err != nil {
		return nil, fmt.Errorf("parse feed url %q: %w", feedURL, err)
	}
	return &Client{
		httpClient: httpClient,
		baseURL:    u,
		ttl:        ttl,
	}, nil
}

// Prices returns the cached snapshot when fresh, otherwise fetches a new
// one from the feed.
func (c *Client) Prices(ctx context.Context) (Snapshot, error) {
	c.mu.Lock()
	if !c.cached.FetchedAt.IsZero() && time.Since(c.cached.FetchedAt) < c.ttl {
		snap := c.cached
		c.mu.Unlock()
		return snap, nil
	}
	c.mu.Unlock()

	snap, err := c.fetch(ctx)
	if err != nil {
		return Snapshot{}, err
	}

	c.mu.Lock()
	c.cached = snap
	c.mu.Unlock()
	return snap, nil
}

func (c *Client) fetch(ctx context.Context) (Snapshot, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL.String(), nil)
	if err != nil {
		return Snapshot{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Add("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Snapshot{}, fmt.Errorf("%w: %w", ErrFeedUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Snapshot{}, fmt.Errorf("%w: %d", ErrUnexpectedStatusCode, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Snapshot{}, fmt.Errorf("read response body: %w", err)
	}

	var points []PricePoint
	if err := json.Unmarshal(body, &points); err != nil {
		return Snapshot{}, fmt.Errorf("unmarshal price feed: %w", err)
	}

	return buildSnapshot(points, time.Now()), nil
}

func buildSnapshot(points []PricePoint, fetchedAt time.Time) Snapshot {
	snap := Snapshot{Points: points, FetchedAt: fetchedAt}
	if len(points) == 0 {
		return snap
	}
	snap.Min = points[0].CtPerKWh
	snap.Max = points[0].CtPerKWh
	sum := 0.0
	for _, p := range points {
		if p.CtPerKWh < snap.Min {
			snap.Min = p.CtPerKWh
		}
		if p.CtPerKWh > snap.Max {
			snap.Max = p.CtPerKWh
		}
		sum += p.CtPerKWh
	}
	snap.Average = sum / float64(len(points))
	return snap
}
