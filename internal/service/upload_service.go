package service

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/reggaepotato22/krugerr-brendt/internal/imagestore"
)

// uploader is the subset of rest.Uploader that UploadService requires.
type uploader interface {
	Upload(ctx context.Context, filename, mimeType string, r io.Reader) (string, error)
}

// imageRepository is the subset of imagestore.Records that UploadService requires.
type imageRepository interface {
	Create(ctx context.Context, storageKey, mimeType, url string) (*imagestore.Image, error)
	List(ctx context.Context) ([]*imagestore.Image, error)
	Delete(ctx context.Context, storageKey string) error
}

var allowedImageMIME = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/gif":  true,
	"image/webp": true,
}

// AllowedImageMIME reports whether uploads of mimeType are accepted.
func AllowedImageMIME(mimeType string) bool {
	return allowedImageMIME[mimeType]
}

type UploadService struct {
	remote  uploader
	files   imagestore.Store
	records imageRepository
	logger  *slog.Logger
}

// NewUploadService accepts a nil remote; images then always go to disk.
func NewUploadService(remote uploader, files imagestore.Store, records imageRepository, logger *slog.Logger) *UploadService {
	return &UploadService{remote: remote, files: files, records: records, logger: logger}
}

type UploadResult struct {
	URL         string `json:"url"`
	Destination string `json:"destination"`
}

// Upload sends the image to the upload backend and keeps it on local disk
// when that fails. Local images are served from /images/{key}.
func (s *UploadService) Upload(ctx context.Context, filename, mimeType string, r io.Reader) (UploadResult, error) {
	if !AllowedImageMIME(mimeType) {
		return UploadResult{}, invalid("unsupported image type %q", mimeType)
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return UploadResult{}, fmt.Errorf("failed to read image: %w", err)
	}
	if len(data) == 0 {
		return UploadResult{}, invalid("image is empty")
	}

	if s.remote != nil {
		url, err := s.remote.Upload(ctx, filename, mimeType, bytes.NewReader(data))
		if err == nil {
			return UploadResult{URL: url, Destination: "remote"}, nil
		}
		s.logger.Warn("image upload failed, storing locally", "filename", filename, "error", err)
	}

	key, err := s.files.Save(ctx, "property", mimeType, bytes.NewReader(data))
	if err != nil {
		return UploadResult{}, fmt.Errorf("failed to store image: %w", err)
	}

	img, err := s.records.Create(ctx, key, mimeType, "/images/"+key)
	if err != nil {
		if derr := s.files.Delete(ctx, key); derr != nil {
			s.logger.Error("failed to remove image after record error", "storage_key", key, "error", derr)
		}
		return UploadResult{}, err
	}
	return UploadResult{URL: img.URL, Destination: "local"}, nil
}

func (s *UploadService) Open(ctx context.Context, key string) (io.ReadCloser, string, error) {
	return s.files.Get(ctx, key)
}

func (s *UploadService) List(ctx context.Context) ([]*imagestore.Image, error) {
	return s.records.List(ctx)
}

func (s *UploadService) Delete(ctx context.Context, key string) error {
	if err := s.records.Delete(ctx, key); err != nil {
		return err
	}
	if err := s.files.Delete(ctx, key); err != nil {
		s.logger.Warn("image record removed but file delete failed", "storage_key", key, "error", err)
	}
	return nil
}
