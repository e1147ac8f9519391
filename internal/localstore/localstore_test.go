package localstore

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reggaepotato22/krugerr-brendt/internal/db"
	"github.com/reggaepotato22/krugerr-brendt/internal/logging"
	"github.com/reggaepotato22/krugerr-brendt/internal/notify"
)

type record struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

func openTestStores(t *testing.T) (*Store, *Store) {
	t.Helper()
	d, err := db.OpenForTesting()
	require.NoError(t, err)
	t.Cleanup(func() { _ = d.Close() })

	bus := notify.NewMemoryBus(logging.Discard())
	return New(d, bus, logging.Discard()), New(d, bus, logging.Discard())
}

func TestGetMissingKey(t *testing.T) {
	s, _ := openTestStores(t)

	var out []record
	found, err := s.Get(context.Background(), KeyProperties, &out)
	require.NoError(t, err)
	assert.False(t, found)
	assert.Nil(t, out)
}

func TestSetAndGet(t *testing.T) {
	s, _ := openTestStores(t)
	ctx := context.Background()

	in := []record{{ID: "a", Title: "Villa"}, {ID: "b", Title: "Flat"}}
	require.NoError(t, s.Set(ctx, KeyProperties, in))

	var out []record
	found, err := s.Get(ctx, KeyProperties, &out)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, in, out)
}

func TestSetOverwrites(t *testing.T) {
	a, b := openTestStores(t)
	ctx := context.Background()

	require.NoError(t, a.Set(ctx, KeyInquiries, []record{{ID: "1"}}))
	require.NoError(t, b.Set(ctx, KeyInquiries, []record{{ID: "2"}}))

	var out []record
	_, err := a.Get(ctx, KeyInquiries, &out)
	require.NoError(t, err)
	assert.Equal(t, []record{{ID: "2"}}, out)
}

func TestDelete(t *testing.T) {
	s, _ := openTestStores(t)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, KeyChats, []record{{ID: "1"}}))
	require.NoError(t, s.Delete(ctx, KeyChats))

	var out []record
	found, err := s.Get(ctx, KeyChats, &out)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestWatchIgnoresOwnWrites(t *testing.T) {
	a, b := openTestStores(t)
	ctx := context.Background()

	var aHeard, bHeard atomic.Int32
	stopA, err := a.Watch(KeyProperties, func() { aHeard.Add(1) })
	require.NoError(t, err)
	t.Cleanup(stopA)
	stopB, err := b.Watch(KeyProperties, func() { bHeard.Add(1) })
	require.NoError(t, err)
	t.Cleanup(stopB)

	require.NoError(t, a.Set(ctx, KeyProperties, []record{{ID: "x"}}))

	assert.Eventually(t, func() bool { return bHeard.Load() == 1 }, time.Second, 5*time.Millisecond)
	assert.Zero(t, aHeard.Load())
}

func TestWatchWithoutBus(t *testing.T) {
	d, err := db.OpenForTesting()
	require.NoError(t, err)
	t.Cleanup(func() { _ = d.Close() })

	s := New(d, nil, logging.Discard())
	stop, err := s.Watch(KeyProperties, func() { t.Fatal("unexpected notification") })
	require.NoError(t, err)
	stop()

	require.NoError(t, s.Set(context.Background(), KeyProperties, []record{}))
}

func TestOriginsAreDistinct(t *testing.T) {
	a, b := openTestStores(t)
	assert.NotEqual(t, a.Origin(), b.Origin())
}

func TestPrefsKey(t *testing.T) {
	assert.Equal(t, "krugerr:prefs:v-1", PrefsKey("v-1"))
}
