package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/reggaepotato22/krugerr-brendt/internal/currency"
	"github.com/reggaepotato22/krugerr-brendt/internal/db"
	"github.com/reggaepotato22/krugerr-brendt/internal/domain"
	"github.com/reggaepotato22/krugerr-brendt/internal/localstore"
	"github.com/reggaepotato22/krugerr-brendt/internal/logging"
	"github.com/reggaepotato22/krugerr-brendt/internal/reconcile"
)

func openLocal(t *testing.T) *localstore.Store {
	t.Helper()
	d, err := db.OpenForTesting()
	require.NoError(t, err)
	t.Cleanup(func() { _ = d.Close() })
	return localstore.New(d, nil, logging.Discard())
}

func newCollection[T domain.Record[T]](t *testing.T, local *localstore.Store, key string, seed []T) *reconcile.Collection[T] {
	t.Helper()
	c := reconcile.New(key, key, local, reconcile.Options[T]{Seed: seed}, logging.Discard())
	require.NoError(t, c.Load(context.Background()))
	return c
}

type fixedRates struct{}

func (fixedRates) Get(context.Context) currency.RateTable {
	return currency.RateTable{Rates: map[currency.Code]float64{
		currency.USD: 1, currency.KES: 130, currency.GBP: 0.8, currency.EUR: 0.9,
	}}
}

func fixedClock() func() time.Time {
	t := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	return func() time.Time { return t }
}

func seedProperty(id, title, price string) domain.Property {
	p := domain.Property{
		Title:    title,
		Location: "Nairobi",
		Price:    price,
		Type:     domain.ListingSale,
		Status:   domain.PropertyAvailable,
	}
	p.Meta = p.Meta.Stamped(id, domain.ProvenanceSeed)
	return p
}
