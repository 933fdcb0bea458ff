package upload

import (
	"bytes"
	"context"

	"coderoom/internal/providers/minio"
)

type MinioStorage struct {
	minioP *minio.MinioProvider
}

func NewMinioStorage(minioP *minio.MinioProvider) *MinioStorage {
	return &MinioStorage{minioP: minioP}
}

func (s *MinioStorage) Name() string {
	return "minio:" + s.minioP.GetBucket()
}

func (s *MinioStorage) Put(ctx context.Context, name string, data []byte, contentType string) (string, error) {
	return s.minioP.UploadFromReader(ctx, bytes.NewReader(data), name, contentType, int64(len(data)))
}
