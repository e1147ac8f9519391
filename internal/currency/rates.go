package currency

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/reggaepotato22/krugerr-brendt/internal/metrics"
)

// RateTable holds units of each currency per 1 USD.
type RateTable struct {
	Rates     map[Code]float64 `json:"rates"`
	FetchedAt time.Time        `json:"fetchedAt"`
	Fallback  bool             `json:"fallback"`
}

// Rate returns the rate for c, or false when the table has no entry.
func (t RateTable) Rate(c Code) (float64, bool) {
	r, ok := t.Rates[c]
	if !ok || r <= 0 {
		return 0, false
	}
	return r, true
}

// FallbackRates is served whenever the live table cannot be fetched.
func FallbackRates() RateTable {
	return RateTable{
		Rates: map[Code]float64{
			USD: 1,
			KES: 130,
			GBP: 0.78,
			EUR: 0.92,
		},
		Fallback: true,
	}
}

// Fetcher loads a live USD-based rate table.
type Fetcher interface {
	Fetch(ctx context.Context) (map[Code]float64, error)
}

// HTTPFetcher reads rates from an exchangerate-api style endpoint returning
// {"base":"USD","rates":{"KES":129.5,...}}.
type HTTPFetcher struct {
	url    string
	client *http.Client
}

func NewHTTPFetcher(url string, timeout time.Duration) *HTTPFetcher {
	return &HTTPFetcher{
		url:    url,
		client: &http.Client{Timeout: timeout},
	}
}

type ratesResponse struct {
	Base  string             `json:"base"`
	Rates map[string]float64 `json:"rates"`
}

func (f *HTTPFetcher) Fetch(ctx context.Context) (map[Code]float64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build rates request: %w", err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch rates: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("rates endpoint returned status %d", resp.StatusCode)
	}

	var body ratesResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("failed to decode rates: %w", err)
	}
	if body.Base != "" && body.Base != string(USD) {
		return nil, fmt.Errorf("unexpected rates base %q", body.Base)
	}
	if len(body.Rates) == 0 {
		return nil, fmt.Errorf("rates response is empty")
	}

	rates := make(map[Code]float64, len(body.Rates))
	for k, v := range body.Rates {
		rates[Code(k)] = v
	}
	rates[USD] = 1
	for _, c := range Supported {
		if r := rates[c]; r <= 0 {
			return nil, fmt.Errorf("rates response has no usable %s rate", c)
		}
	}
	return rates, nil
}

// RateCache serves a live rate table for ttl after each successful fetch.
// A failed fetch yields FallbackRates and is not cached, so the next call
// tries the network again.
type RateCache struct {
	fetcher Fetcher
	ttl     time.Duration
	now     func() time.Time
	logger  *slog.Logger

	mu    sync.Mutex
	table *RateTable
}

type RateCacheOption func(*RateCache)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) RateCacheOption {
	return func(c *RateCache) { c.now = now }
}

func NewRateCache(fetcher Fetcher, ttl time.Duration, logger *slog.Logger, opts ...RateCacheOption) *RateCache {
	c := &RateCache{
		fetcher: fetcher,
		ttl:     ttl,
		now:     time.Now,
		logger:  logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get returns the cached table, refreshing it once older than ttl.
func (c *RateCache) Get(ctx context.Context) RateTable {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if c.table != nil && now.Sub(c.table.FetchedAt) < c.ttl {
		return c.table.copy()
	}

	rates, err := c.fetcher.Fetch(ctx)
	if err != nil {
		metrics.FXFetches.WithLabelValues("fallback").Inc()
		c.logger.Warn("exchange rate fetch failed, using fallback rates", "error", err)
		fb := FallbackRates()
		fb.FetchedAt = now
		return fb
	}

	metrics.FXFetches.WithLabelValues("ok").Inc()
	c.table = &RateTable{Rates: rates, FetchedAt: now}
	return c.table.copy()
}

func (t RateTable) copy() RateTable {
	rates := make(map[Code]float64, len(t.Rates))
	for k, v := range t.Rates {
		rates[k] = v
	}
	t.Rates = rates
	return t
}
