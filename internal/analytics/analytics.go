// Package analytics counts property views and keeps per-visitor display
// preferences in the local store.
package analytics

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/reggaepotato22/krugerr-brendt/internal/currency"
	"github.com/reggaepotato22/krugerr-brendt/internal/localstore"
)

// Tracker counts views per property id.
type Tracker struct {
	store *localstore.Store
	mu    sync.Mutex
}

func NewTracker(store *localstore.Store) *Tracker {
	return &Tracker{store: store}
}

// RecordView increments the view count of propertyID and returns the new
// count.
func (t *Tracker) RecordView(ctx context.Context, propertyID string) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	views, err := t.views(ctx)
	if err != nil {
		return 0, err
	}
	views[propertyID]++

	if err := t.store.Set(ctx, localstore.KeyViews, views); err != nil {
		return 0, fmt.Errorf("failed to save views: %w", err)
	}
	return views[propertyID], nil
}

// Views returns all counters. Properties never viewed are absent.
func (t *Tracker) Views(ctx context.Context) (map[string]int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.views(ctx)
}

func (t *Tracker) views(ctx context.Context) (map[string]int, error) {
	views := make(map[string]int)
	if _, err := t.store.Get(ctx, localstore.KeyViews, &views); err != nil {
		return nil, fmt.Errorf("failed to load views: %w", err)
	}
	if views == nil {
		views = make(map[string]int)
	}
	return views, nil
}

type Theme string

const (
	ThemeLight Theme = "light"
	ThemeDark  Theme = "dark"
)

type Preferences struct {
	Currency currency.Code `json:"currency"`
	Theme    Theme         `json:"theme"`
}

func DefaultPreferences() Preferences {
	return Preferences{Currency: currency.Default, Theme: ThemeLight}
}

var ErrInvalidPreferences = errors.New("invalid preferences")

// Validate normalises the currency code in place.
func (p *Preferences) Validate() error {
	code, ok := currency.ParseCode(string(p.Currency))
	if !ok {
		return fmt.Errorf("%w: unsupported currency %q", ErrInvalidPreferences, p.Currency)
	}
	p.Currency = code

	switch p.Theme {
	case ThemeLight, ThemeDark:
	default:
		return fmt.Errorf("%w: unsupported theme %q", ErrInvalidPreferences, p.Theme)
	}
	return nil
}

type PreferenceStore struct {
	store *localstore.Store
}

func NewPreferenceStore(store *localstore.Store) *PreferenceStore {
	return &PreferenceStore{store: store}
}

// Get returns the visitor's saved preferences, or the defaults.
func (s *PreferenceStore) Get(ctx context.Context, visitorID string) (Preferences, error) {
	prefs := DefaultPreferences()
	if _, err := s.store.Get(ctx, localstore.PrefsKey(visitorID), &prefs); err != nil {
		return DefaultPreferences(), fmt.Errorf("failed to load preferences: %w", err)
	}
	return prefs, nil
}

func (s *PreferenceStore) Set(ctx context.Context, visitorID string, prefs Preferences) (Preferences, error) {
	if err := prefs.Validate(); err != nil {
		return Preferences{}, err
	}
	if err := s.store.Set(ctx, localstore.PrefsKey(visitorID), prefs); err != nil {
		return Preferences{}, fmt.Errorf("failed to save preferences: %w", err)
	}
	return prefs, nil
}
