package currency

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reggaepotato22/krugerr-brendt/internal/logging"
)

type stubFetcher struct {
	calls int
	rates map[Code]float64
	err   error
}

func (s *stubFetcher) Fetch(context.Context) (map[Code]float64, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.rates, nil
}

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time { return c.t }

func TestRateCacheServesCachedTableWithinTTL(t *testing.T) {
	f := &stubFetcher{rates: map[Code]float64{USD: 1, KES: 129}}
	clock := &fakeClock{t: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	c := NewRateCache(f, time.Hour, logging.Discard(), WithClock(clock.now))

	first := c.Get(context.Background())
	assert.False(t, first.Fallback)
	assert.Equal(t, 129.0, first.Rates[KES])

	clock.t = clock.t.Add(59 * time.Minute)
	c.Get(context.Background())
	assert.Equal(t, 1, f.calls)

	clock.t = clock.t.Add(2 * time.Minute)
	c.Get(context.Background())
	assert.Equal(t, 2, f.calls)
}

func TestRateCacheFallbackIsNotCached(t *testing.T) {
	f := &stubFetcher{err: errors.New("offline")}
	c := NewRateCache(f, time.Hour, logging.Discard())

	table := c.Get(context.Background())
	assert.True(t, table.Fallback)
	assert.Equal(t, FallbackRates().Rates, table.Rates)

	f.err = nil
	f.rates = map[Code]float64{USD: 1, KES: 128}
	table = c.Get(context.Background())
	assert.False(t, table.Fallback)
	assert.Equal(t, 2, f.calls)
}

func TestRateCacheReturnsCopies(t *testing.T) {
	f := &stubFetcher{rates: map[Code]float64{USD: 1, KES: 129}}
	c := NewRateCache(f, time.Hour, logging.Discard())

	table := c.Get(context.Background())
	table.Rates[KES] = 1

	assert.Equal(t, 129.0, c.Get(context.Background()).Rates[KES])
}

func TestHTTPFetcher(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"base":"USD","rates":{"USD":1,"KES":129.5,"GBP":0.79,"EUR":0.91,"JPY":150}}`))
	}))
	t.Cleanup(srv.Close)

	rates, err := NewHTTPFetcher(srv.URL, time.Second).Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 129.5, rates[KES])
	assert.Equal(t, 1.0, rates[USD])
}

func TestHTTPFetcherErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"server error", http.StatusInternalServerError, ``},
		{"bad json", http.StatusOK, `not json`},
		{"empty rates", http.StatusOK, `{"base":"USD","rates":{}}`},
		{"wrong base", http.StatusOK, `{"base":"EUR","rates":{"USD":1.1}}`},
		{"missing supported code", http.StatusOK, `{"base":"USD","rates":{"KES":129.5,"EUR":0.91}}`},
		{"zero rate", http.StatusOK, `{"base":"USD","rates":{"KES":0,"GBP":0.79,"EUR":0.91}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			t.Cleanup(srv.Close)

			_, err := NewHTTPFetcher(srv.URL, time.Second).Fetch(context.Background())
			assert.Error(t, err)
		})
	}
}
