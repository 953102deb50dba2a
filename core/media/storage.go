// Package media downloads CV documents from WhatsApp, validates their type,
// and stores them on disk.
package media

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/jobinfo/wabot/core/config"
	"github.com/jobinfo/wabot/core/logger"
	"github.com/jobinfo/wabot/core/whatsapp"
)

var (
	// ErrUnsupportedType marks a CV upload with a MIME type outside the whitelist.
	ErrUnsupportedType = errors.New("media: unsupported file type")
	// ErrTooLarge marks a CV exceeding the configured size limit.
	ErrTooLarge = errors.New("media: file too large")
)

var mimeExtensions = map[string]string{
	"application/pdf":          ".pdf",
	"text/csv":                 ".csv",
	"application/vnd.ms-excel": ".csv",
}

// Store saves CV files fetched from the WhatsApp media endpoint.
type Store struct {
	fetcher  whatsapp.MediaFetcher
	dir      string
	maxBytes int64
}

// NewStore builds a Store from configuration.
func NewStore(fetcher whatsapp.MediaFetcher, cfg config.MediaConfig) *Store {
	return &Store{fetcher: fetcher, dir: cfg.UploadDir, maxBytes: cfg.MaxBytes}
}

// SaveCV downloads a CV document, validates it, and writes it under the
// sender's upload directory. It returns the stored path.
func (s *Store) SaveCV(ctx context.Context, waNumber, mediaID, mimeType string) (string, error) {
	ext, ok := mimeExtensions[mimeType]
	if !ok {
		logger.WA.Warn("cv upload rejected",
			slog.String("event", "media.reject"),
			slog.String("sender", waNumber),
			slog.String("mime", mimeType),
		)
		return "", ErrUnsupportedType
	}

	url, err := s.fetcher.MediaURL(ctx, mediaID)
	if err != nil {
		return "", fmt.Errorf("cv media url: %w", err)
	}
	raw, err := s.fetcher.DownloadMedia(ctx, url)
	if err != nil {
		return "", fmt.Errorf("cv download: %w", err)
	}
	if s.maxBytes > 0 && int64(len(raw)) > s.maxBytes {
		return "", ErrTooLarge
	}

	dir := filepath.Join(s.dir, waNumber)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("cv dir: %w", err)
	}

	dest := filepath.Join(dir, "cv-"+uuid.NewString()+ext)
	if err := os.WriteFile(dest, raw, 0o644); err != nil {
		return "", fmt.Errorf("cv write: %w", err)
	}

	logger.WA.Info("cv saved",
		slog.String("event", "media.save"),
		slog.String("sender", waNumber),
		slog.String("path", dest),
	)
	return dest, nil
}
