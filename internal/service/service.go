// Package service holds the business operations behind the HTTP API.
package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/reggaepotato22/krugerr-brendt/internal/reconcile"
)

// ErrValidation marks errors caused by bad client input. The message after
// the prefix is safe to show to the user.
var ErrValidation = errors.New("validation failed")

// ErrNotFound is returned for unknown record ids.
var ErrNotFound = reconcile.ErrNotFound

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// collection is the subset of reconcile.Collection the services require.
type collection[T any] interface {
	Items() []T
	Get(id string) (T, bool)
	Create(ctx context.Context, rec T) (T, reconcile.Written, error)
	Update(ctx context.Context, rec T) (reconcile.Written, error)
	Delete(ctx context.Context, id string) error
}
