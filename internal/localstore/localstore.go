// Package localstore is a durable string-keyed JSON store. Several handles
// may share one database; each handle has its own origin and only hears
// about writes made through other handles.
package localstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/reggaepotato22/krugerr-brendt/internal/notify"
)

const (
	KeyProperties = "krugerr:properties"
	KeyProjects   = "krugerr:projects"
	KeyInquiries  = "krugerr:inquiries"
	KeyChats      = "krugerr:chats"
	KeyViews      = "krugerr:analytics:views"
)

// PrefsKey returns the key holding one visitor's preferences.
func PrefsKey(visitorID string) string {
	return "krugerr:prefs:" + visitorID
}

type Store struct {
	db     *sql.DB
	bus    notify.Bus
	origin string
	logger *slog.Logger
}

// New returns a handle with a fresh origin. bus may be nil, in which case
// writes are not announced and Watch never fires.
func New(db *sql.DB, bus notify.Bus, logger *slog.Logger) *Store {
	return &Store{
		db:     db,
		bus:    bus,
		origin: uuid.NewString(),
		logger: logger,
	}
}

func (s *Store) Origin() string { return s.origin }

// Get decodes the value under key into dst. found is false when the key has
// never been written.
func (s *Store) Get(ctx context.Context, key string, dst any) (bool, error) {
	var raw string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM kv WHERE key = ?`, key).Scan(&raw)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to read %s: %w", key, err)
	}

	if err := json.Unmarshal([]byte(raw), dst); err != nil {
		return false, fmt.Errorf("failed to decode %s: %w", key, err)
	}
	return true, nil
}

// Set replaces the value under key. Concurrent writers to one key are
// last-write-wins.
func (s *Store) Set(ctx context.Context, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", key, err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO kv (key, value, origin, updated_at) VALUES (?, ?, ?, datetime('now'))
		ON CONFLICT(key) DO UPDATE SET
			value = excluded.value,
			origin = excluded.origin,
			updated_at = excluded.updated_at
	`, key, string(data), s.origin)
	if err != nil {
		return fmt.Errorf("failed to write %s: %w", key, err)
	}

	s.announce(ctx, key)
	return nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM kv WHERE key = ?`, key); err != nil {
		return fmt.Errorf("failed to delete %s: %w", key, err)
	}
	s.announce(ctx, key)
	return nil
}

// Watch calls fn whenever another handle writes key. The returned func
// stops the subscription.
func (s *Store) Watch(key string, fn func()) (func(), error) {
	if s.bus == nil {
		return func() {}, nil
	}
	return s.bus.Subscribe(key, func(ev notify.Event) {
		if ev.Origin == s.origin {
			return
		}
		fn()
	})
}

// announce never fails the write; the value is already durable and readers
// also catch up on their next poll.
func (s *Store) announce(ctx context.Context, key string) {
	if s.bus == nil {
		return
	}
	if err := s.bus.Publish(ctx, notify.Event{Key: key, Origin: s.origin}); err != nil {
		s.logger.Warn("failed to announce local store write", "key", key, "error", err)
	}
}
