package web

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/reggaepotato22/krugerr-brendt/internal/analytics"
	"github.com/reggaepotato22/krugerr-brendt/internal/service"
)

func TestSniffImage(t *testing.T) {
	tests := []struct {
		name     string
		data     []byte
		wantMIME string
		wantOK   bool
	}{
		{"JPEG", []byte{0xFF, 0xD8, 0xFF, 0xE0, 0x00, 0x10}, "image/jpeg", true},
		{"PNG", []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A, 0x00}, "image/png", true},
		{"GIF", []byte("GIF89a"), "image/gif", true},
		{"WebP", append([]byte("RIFF\x00\x00\x00\x00WEBP"), make([]byte, 10)...), "image/webp", true},
		{"RIFF but not WebP", append([]byte("RIFF\x00\x00\x00\x00WAVE"), make([]byte, 10)...), "", false},
		{"PDF disguised as image", []byte("%PDF-1.4 malicious content"), "", false},
		{"empty", []byte{}, "", false},
		{"too short for WebP check", []byte("RIFF"), "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mime, ok := sniffImage(tt.data)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.wantMIME, mime)
		})
	}
}

func TestClientMessage(t *testing.T) {
	assert.Equal(t, "title is required",
		clientMessage(fmt.Errorf("%w: %s", service.ErrValidation, "title is required")))
	assert.Equal(t, `unsupported theme "blue"`,
		clientMessage(fmt.Errorf("%w: unsupported theme %q", analytics.ErrInvalidPreferences, "blue")))
	assert.Equal(t, "other", clientMessage(fmt.Errorf("other")))
}
