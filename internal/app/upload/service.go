package upload

import (
	"context"
	"fmt"

	"coderoom/internal/metrics"

	"github.com/gabriel-vasile/mimetype"
	"go.uber.org/zap"
)

type Service interface {
	Store(ctx context.Context, fileName string, data []byte) (*StoredFile, error)
	MaxSize() int64
}

type service struct {
	storage Storage
	maxSize int64
	logger  *zap.Logger
}

func NewService(storage Storage, maxSize int64, logger *zap.Logger) Service {
	return &service{
		storage: storage,
		maxSize: maxSize,
		logger:  logger,
	}
}

func (s *service) MaxSize() int64 {
	return s.maxSize
}

// Store sanitizes fileName, enforces the size cap and hands the bytes to the
// configured storage. Nothing is written when any check fails.
func (s *service) Store(ctx context.Context, fileName string, data []byte) (*StoredFile, error) {
	size := int64(len(data))
	if s.maxSize > 0 && size > s.maxSize {
		return nil, fmt.Errorf("%w: %d bytes (limit %d)", ErrPayloadTooLarge, size, s.maxSize)
	}

	name, err := SanitizeFileName(fileName)
	if err != nil {
		return nil, err
	}
	if name != fileName {
		s.logger.Warn("Upload file name sanitized",
			zap.String("requested", fileName),
			zap.String("stored", name),
		)
	}

	contentType := mimetype.Detect(data).String()

	fileURL, err := s.storage.Put(ctx, name, data, contentType)
	if err != nil {
		return nil, fmt.Errorf("failed to store %s in %s: %w", name, s.storage.Name(), err)
	}

	metrics.UploadedBytes.Add(float64(size))
	s.logger.Info("File stored",
		zap.String("name", name),
		zap.Int64("size", size),
		zap.String("content_type", contentType),
		zap.String("storage", s.storage.Name()),
	)

	return &StoredFile{
		Name:        name,
		URL:         fileURL,
		Size:        size,
		ContentType: contentType,
	}, nil
}
