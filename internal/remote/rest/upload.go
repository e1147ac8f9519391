package rest

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"

	"github.com/reggaepotato22/krugerr-brendt/internal/remote"
)

// Uploader posts images to {base}/upload and returns the public URL the
// backend reports.
type Uploader struct {
	client *Client
}

func NewUploader(c *Client) *Uploader {
	return &Uploader{client: c}
}

type uploadResponse struct {
	URL string `json:"url"`
}

func (u *Uploader) Upload(ctx context.Context, filename, mimeType string, r io.Reader) (string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, filename))
	h.Set("Content-Type", mimeType)
	part, err := w.CreatePart(h)
	if err != nil {
		return "", remote.Unavailable("upload", err)
	}
	if _, err := io.Copy(part, r); err != nil {
		return "", remote.Unavailable("upload", fmt.Errorf("failed to read image: %w", err))
	}
	if err := w.Close(); err != nil {
		return "", remote.Unavailable("upload", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.client.baseURL+"/upload", &buf)
	if err != nil {
		return "", remote.Unavailable("upload", err)
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	req.Header.Set("Accept", "application/json")

	var resp uploadResponse
	if err := u.client.send(req, &resp); err != nil {
		return "", remote.Unavailable("upload", err)
	}
	if resp.URL == "" {
		return "", remote.Unavailable("upload", fmt.Errorf("response has no url"))
	}
	return resp.URL, nil
}
