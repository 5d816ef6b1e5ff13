package service

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/disintegration/imaging"

	"github.com/peerlearn/peerlearn/internal/audit"
	"github.com/peerlearn/peerlearn/internal/domain"
	"github.com/peerlearn/peerlearn/internal/idgen"
	"github.com/peerlearn/peerlearn/pkg/log"
	"github.com/peerlearn/peerlearn/pkg/storage"
)

const (
	DefaultUploadMaxBytes     = 5 << 20
	DefaultUploadMaxDimension = 1600
	DefaultJPEGQuality        = 85

	attachmentURLExpiry = 7 * 24 * time.Hour
)

// UploadConfig bounds accepted images and shapes the stored copy.
type UploadConfig struct {
	MaxBytes     int64
	MaxDimension int
	JPEGQuality  int
}

type uploadServiceImpl struct {
	media storage.Storage
	ids   idgen.Generator
	cfg   UploadConfig
}

// NewUploadService creates an upload service. Zero config fields take defaults.
func NewUploadService(media storage.Storage, ids idgen.Generator, cfg UploadConfig) UploadService {
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = DefaultUploadMaxBytes
	}
	if cfg.MaxDimension <= 0 {
		cfg.MaxDimension = DefaultUploadMaxDimension
	}
	if cfg.JPEGQuality <= 0 || cfg.JPEGQuality > 100 {
		cfg.JPEGQuality = DefaultJPEGQuality
	}
	return &uploadServiceImpl{media: media, ids: ids, cfg: cfg}
}

// UploadImage decodes the upload, shrinks it to fit MaxDimension, and stores
// it as JPEG under the user's attachment prefix. size is -1 when unknown.
func (s *uploadServiceImpl) UploadImage(ctx context.Context, userID, contentType string, size int64, r io.Reader) (*domain.UploadResult, error) {
	l := log.Ctx(ctx)

	if !strings.HasPrefix(strings.ToLower(strings.TrimSpace(contentType)), "image/") {
		return nil, ErrUnsupportedMedia
	}
	if size > s.cfg.MaxBytes {
		return nil, ErrImageTooLarge
	}

	data, err := io.ReadAll(io.LimitReader(r, s.cfg.MaxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	if int64(len(data)) > s.cfg.MaxBytes {
		return nil, ErrImageTooLarge
	}

	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, ErrInvalidImage
	}

	bounds := img.Bounds()
	if bounds.Dx() > s.cfg.MaxDimension || bounds.Dy() > s.cfg.MaxDimension {
		img = imaging.Fit(img, s.cfg.MaxDimension, s.cfg.MaxDimension, imaging.Lanczos)
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(s.cfg.JPEGQuality)); err != nil {
		return nil, fmt.Errorf("encode image: %w", err)
	}

	id, err := s.ids.Generate()
	if err != nil {
		return nil, err
	}
	key := fmt.Sprintf("%s%s.jpg", attachmentPrefix(userID), id)

	if err := s.media.Write(ctx, key, bytes.NewReader(buf.Bytes()), int64(buf.Len()), "image/jpeg"); err != nil {
		l.Error().Err(err).Str("key", key).Msg("failed to store attachment")
		return nil, err
	}

	url, err := s.media.GetURL(ctx, key, attachmentURLExpiry)
	if err != nil {
		l.Error().Err(err).Str("key", key).Msg("failed to build attachment url")
		return nil, err
	}

	audit.LogWithTarget(ctx, audit.ActionUploadImage, userID, key, "image uploaded")

	final := img.Bounds()
	return &domain.UploadResult{
		URL:    url,
		Key:    key,
		Width:  final.Dx(),
		Height: final.Dy(),
		Size:   int64(buf.Len()),
	}, nil
}

func attachmentPrefix(userID string) string {
	return "attachments/" + userID + "/"
}
