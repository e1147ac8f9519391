// Package remote defines the authoritative backing stores a reconciled
// collection may write through to.
package remote

import (
	"context"
	"errors"
	"fmt"
)

// ErrUnavailable wraps every failure of a remote store: transport, status,
// decoding or a missing row. Callers treat it as "fall back to local".
var ErrUnavailable = errors.New("remote store unavailable")

// Store is one remote collection. Insert returns the record carrying the
// server-assigned id and remote provenance.
type Store[T any] interface {
	List(ctx context.Context) ([]T, error)
	Insert(ctx context.Context, rec T) (T, error)
	Update(ctx context.Context, rec T) error
	Delete(ctx context.Context, id string) error
}

// Unavailable wraps err so that errors.Is(result, ErrUnavailable) holds.
func Unavailable(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrUnavailable, op, err)
}
