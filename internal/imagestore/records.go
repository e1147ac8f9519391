package imagestore

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Image is one locally stored upload.
type Image struct {
	StorageKey string    `json:"storageKey"`
	MimeType   string    `json:"mimeType"`
	URL        string    `json:"url"`
	UploadedAt time.Time `json:"uploadedAt"`
}

// Records indexes locally stored images in the images table.
type Records struct {
	db *sql.DB
}

func NewRecords(db *sql.DB) *Records {
	return &Records{db: db}
}

func (s *Records) Create(ctx context.Context, storageKey, mimeType, url string) (*Image, error) {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO images (storage_key, mime_type, url) VALUES (?, ?, ?)
	`, storageKey, mimeType, url)
	if err != nil {
		return nil, fmt.Errorf("failed to create image record: %w", err)
	}
	return s.Get(ctx, storageKey)
}

func (s *Records) Get(ctx context.Context, storageKey string) (*Image, error) {
	img := &Image{}
	err := s.db.QueryRowContext(ctx, `
		SELECT storage_key, mime_type, url, uploaded_at FROM images WHERE storage_key = ?
	`, storageKey).Scan(&img.StorageKey, &img.MimeType, &img.URL, &img.UploadedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get image record: %w", err)
	}
	return img, nil
}

// List returns records newest first.
func (s *Records) List(ctx context.Context) ([]*Image, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT storage_key, mime_type, url, uploaded_at FROM images
		ORDER BY uploaded_at DESC, storage_key
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list image records: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var images []*Image
	for rows.Next() {
		img := &Image{}
		if err := rows.Scan(&img.StorageKey, &img.MimeType, &img.URL, &img.UploadedAt); err != nil {
			return nil, fmt.Errorf("failed to scan image record: %w", err)
		}
		images = append(images, img)
	}
	return images, rows.Err()
}

func (s *Records) Delete(ctx context.Context, storageKey string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM images WHERE storage_key = ?`, storageKey)
	if err != nil {
		return fmt.Errorf("failed to delete image record: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
