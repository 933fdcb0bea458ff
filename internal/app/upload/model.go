package upload

import "errors"

var (
	ErrPayloadTooLarge = errors.New("file exceeds maximum allowed size")
	ErrInvalidFileName = errors.New("invalid file name")
	ErrOutsideRoot     = errors.New("resolved path escapes storage root")
)

type StoredFile struct {
	Name        string `json:"name"`
	URL         string `json:"url"`
	Size        int64  `json:"size"`
	ContentType string `json:"content_type"`
}
