package service

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reggaepotato22/krugerr-brendt/internal/db"
	"github.com/reggaepotato22/krugerr-brendt/internal/imagestore"
	"github.com/reggaepotato22/krugerr-brendt/internal/logging"
)

type stubUploader struct {
	url   string
	err   error
	calls int
}

func (s *stubUploader) Upload(_ context.Context, _, _ string, r io.Reader) (string, error) {
	s.calls++
	_, _ = io.ReadAll(r)
	return s.url, s.err
}

func newUploadService(t *testing.T, up uploader) *UploadService {
	t.Helper()
	d, err := db.OpenForTesting()
	require.NoError(t, err)
	t.Cleanup(func() { _ = d.Close() })

	disk, err := imagestore.NewDisk(t.TempDir(), logging.Discard())
	require.NoError(t, err)
	return NewUploadService(up, disk, imagestore.NewRecords(d), logging.Discard())
}

func TestUploadRemote(t *testing.T) {
	up := &stubUploader{url: "https://cdn.example.com/a.jpg"}
	s := newUploadService(t, up)

	res, err := s.Upload(context.Background(), "a.jpg", "image/jpeg", strings.NewReader("data"))
	require.NoError(t, err)
	assert.Equal(t, UploadResult{URL: "https://cdn.example.com/a.jpg", Destination: "remote"}, res)

	local, err := s.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, local)
}

func TestUploadFallsBackToDisk(t *testing.T) {
	up := &stubUploader{err: errors.New("backend down")}
	s := newUploadService(t, up)
	ctx := context.Background()

	res, err := s.Upload(ctx, "a.png", "image/png", strings.NewReader("pngdata"))
	require.NoError(t, err)
	assert.Equal(t, "local", res.Destination)
	assert.True(t, strings.HasPrefix(res.URL, "/images/property_"))
	assert.Equal(t, 1, up.calls)

	key := strings.TrimPrefix(res.URL, "/images/")
	rc, mimeType, err := s.Open(ctx, key)
	require.NoError(t, err)
	data, _ := io.ReadAll(rc)
	_ = rc.Close()
	assert.Equal(t, "image/png", mimeType)
	assert.Equal(t, "pngdata", string(data))

	images, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, images, 1)

	require.NoError(t, s.Delete(ctx, key))
	_, _, err = s.Open(ctx, key)
	assert.ErrorIs(t, err, imagestore.ErrNotFound)
}

func TestUploadWithoutRemote(t *testing.T) {
	s := newUploadService(t, nil)
	res, err := s.Upload(context.Background(), "a.jpg", "image/jpeg", strings.NewReader("x"))
	require.NoError(t, err)
	assert.Equal(t, "local", res.Destination)
}

func TestUploadValidation(t *testing.T) {
	s := newUploadService(t, nil)

	_, err := s.Upload(context.Background(), "a.pdf", "application/pdf", strings.NewReader("x"))
	assert.ErrorIs(t, err, ErrValidation)

	_, err = s.Upload(context.Background(), "a.jpg", "image/jpeg", strings.NewReader(""))
	assert.ErrorIs(t, err, ErrValidation)
}
