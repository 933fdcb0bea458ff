package upload

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Storage keeps blobs under an already sanitized name and returns the URL
// they can be fetched from.
type Storage interface {
	Put(ctx context.Context, name string, data []byte, contentType string) (string, error)
	Name() string
}

const maxFileNameLength = 255

// SanitizeFileName reduces a client supplied name to its final path element.
// Both slash styles count as separators so "..\\..\\x" cannot climb either.
func SanitizeFileName(name string) (string, error) {
	name = strings.ReplaceAll(name, "\\", "/")
	base := path.Base(path.Clean("/" + name))

	base = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, base)
	base = strings.TrimSpace(base)

	if base == "" || base == "." || base == ".." || base == "/" {
		return "", fmt.Errorf("%w: %q", ErrInvalidFileName, name)
	}
	if len(base) > maxFileNameLength {
		ext := path.Ext(base)
		if len(ext) > 16 {
			ext = ""
		}
		n := maxFileNameLength - len(ext)
		for n > 0 && !utf8.RuneStart(base[n]) {
			n--
		}
		base = base[:n] + ext
	}
	return base, nil
}

// LocalStorage writes blobs into a directory that is served statically
// under urlPrefix.
type LocalStorage struct {
	root      string
	urlPrefix string
}

func NewLocalStorage(dir, urlPrefix string) (*LocalStorage, error) {
	root, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve upload dir %s: %w", dir, err)
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir %s: %w", root, err)
	}
	return &LocalStorage{
		root:      root,
		urlPrefix: "/" + strings.Trim(urlPrefix, "/"),
	}, nil
}

func (s *LocalStorage) Name() string {
	return "local:" + s.root
}

func (s *LocalStorage) Root() string {
	return s.root
}

func (s *LocalStorage) URLPrefix() string {
	return s.urlPrefix
}

// Resolve returns the on-disk path for name, refusing anything that would
// land outside the storage root.
func (s *LocalStorage) Resolve(name string) (string, error) {
	target := filepath.Join(s.root, name)
	rel, err := filepath.Rel(s.root, target)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) || filepath.IsAbs(rel) {
		return "", fmt.Errorf("%w: %q", ErrOutsideRoot, name)
	}
	return target, nil
}

func (s *LocalStorage) Put(_ context.Context, name string, data []byte, _ string) (string, error) {
	target, err := s.Resolve(name)
	if err != nil {
		return "", err
	}

	tmp, err := os.CreateTemp(s.root, ".upload-*")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return "", fmt.Errorf("write %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return "", fmt.Errorf("close %s: %w", name, err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		os.Remove(tmpName)
		return "", fmt.Errorf("chmod %s: %w", name, err)
	}
	if err := os.Rename(tmpName, target); err != nil {
		os.Remove(tmpName)
		return "", fmt.Errorf("store %s: %w", name, err)
	}

	return s.urlPrefix + "/" + url.PathEscape(name), nil
}
