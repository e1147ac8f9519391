package web

import (
	"bytes"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/reggaepotato22/krugerr-brendt/internal/service"
)

const maxImageSize = 10 << 20

// sniffImage returns the detected MIME type and true if data is an accepted
// image format. The stdlib sniffer has no WebP signature, so WebP is matched
// on its RIFF header here.
func sniffImage(data []byte) (string, bool) {
	if len(data) >= 12 && string(data[0:4]) == "RIFF" && string(data[8:12]) == "WEBP" {
		return "image/webp", true
	}
	mime := http.DetectContentType(data)
	if !service.AllowedImageMIME(mime) {
		return "", false
	}
	return mime, true
}

func (s *Server) handleUploadImage(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxImageSize+1<<20)
	if err := r.ParseMultipartForm(maxImageSize); err != nil {
		writeError(w, http.StatusBadRequest, "failed to parse form")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "file field required")
		return
	}
	defer closeWithLog(file, "upload file", s.logger)

	data, err := io.ReadAll(io.LimitReader(file, maxImageSize+1))
	if err != nil {
		s.logger.Error("read upload failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to read file")
		return
	}
	if len(data) > maxImageSize {
		writeError(w, http.StatusRequestEntityTooLarge, "image is too large")
		return
	}

	mimeType, ok := sniffImage(data)
	if !ok {
		writeError(w, http.StatusBadRequest, "unsupported image format")
		return
	}

	res, err := s.deps.Uploads.Upload(r.Context(), header.Filename, mimeType, bytes.NewReader(data))
	if err != nil {
		s.writeServiceError(w, err, "failed to store image")
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

func (s *Server) handleGetImage(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	reader, mimeType, err := s.deps.Uploads.Open(r.Context(), key)
	if err != nil {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	defer closeWithLog(reader, "image reader", s.logger)

	w.Header().Set("Content-Type", mimeType)
	w.Header().Set("Cache-Control", "public, max-age=86400")
	if _, err := io.Copy(w, reader); err != nil {
		s.logger.Error("write image failed", "storage_key", key, "error", err)
	}
}

func (s *Server) handleListImages(w http.ResponseWriter, r *http.Request) {
	images, err := s.deps.Uploads.List(r.Context())
	if err != nil {
		s.writeServiceError(w, err, "failed to list images")
		return
	}
	writeJSON(w, http.StatusOK, images)
}

func (s *Server) handleDeleteImage(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	if err := s.deps.Uploads.Delete(r.Context(), key); err != nil {
		s.writeServiceError(w, err, "failed to delete image", "storage_key", key)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
