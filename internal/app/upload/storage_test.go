package upload

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestSanitizeFileName(t *testing.T) {
	cases := map[string]string{
		"notes.txt":          "notes.txt",
		"../../etc/passwd":   "passwd",
		"..\\..\\win.ini":    "win.ini",
		"/abs/path/a.go":     "a.go",
		"dir/":               "dir",
		"  spaced name.md  ": "spaced name.md",
		"bad\x00name\n.txt":  "badname.txt",
	}
	for in, want := range cases {
		got, err := SanitizeFileName(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
}

func TestSanitizeFileNameRejectsEmpty(t *testing.T) {
	for _, in := range []string{"", ".", "..", "/", "../..", "   ", "\x01"} {
		_, err := SanitizeFileName(in)
		assert.ErrorIs(t, err, ErrInvalidFileName, "%q", in)
	}
}

func TestSanitizeFileNameTruncatesKeepingExtension(t *testing.T) {
	got, err := SanitizeFileName(strings.Repeat("a", 400) + ".json")
	require.NoError(t, err)
	assert.Len(t, got, maxFileNameLength)
	assert.True(t, strings.HasSuffix(got, ".json"))

	got, err = SanitizeFileName(strings.Repeat("é", 200) + ".txt")
	require.NoError(t, err)
	assert.True(t, utf8.ValidString(got), "sanitized name is invalid UTF-8")
	assert.LessOrEqual(t, len(got), maxFileNameLength)
	assert.True(t, strings.HasSuffix(got, ".txt"))
	assert.Equal(t, strings.Repeat("é", 125)+".txt", got)
}

func TestLocalStorageStaysInsideRoot(t *testing.T) {
	root := t.TempDir()
	storage, err := NewLocalStorage(root, "uploads/")
	require.NoError(t, err)
	assert.Equal(t, "/uploads", storage.URLPrefix())

	name, err := SanitizeFileName("../../etc/passwd")
	require.NoError(t, err)

	url, err := storage.Put(context.Background(), name, []byte("data"), "text/plain")
	require.NoError(t, err)
	assert.Equal(t, "/uploads/passwd", url)

	resolved, err := storage.Resolve(name)
	require.NoError(t, err)
	rel, err := filepath.Rel(storage.Root(), resolved)
	require.NoError(t, err)
	assert.Equal(t, "passwd", rel)

	data, err := os.ReadFile(resolved)
	require.NoError(t, err)
	assert.Equal(t, "data", string(data))
}

func TestLocalStorageResolveRefusesEscape(t *testing.T) {
	storage, err := NewLocalStorage(t.TempDir(), "/uploads")
	require.NoError(t, err)

	for _, name := range []string{"../outside", "..", "a/../../b", ""} {
		_, err := storage.Resolve(name)
		assert.ErrorIs(t, err, ErrOutsideRoot, "%q", name)
	}
}

func TestLocalStorageOverwritesAndEscapesURL(t *testing.T) {
	storage, err := NewLocalStorage(t.TempDir(), "/files")
	require.NoError(t, err)

	_, err = storage.Put(context.Background(), "my file.txt", []byte("one"), "")
	require.NoError(t, err)
	url, err := storage.Put(context.Background(), "my file.txt", []byte("two"), "")
	require.NoError(t, err)
	assert.Equal(t, "/files/my%20file.txt", url)

	data, err := os.ReadFile(filepath.Join(storage.Root(), "my file.txt"))
	require.NoError(t, err)
	assert.Equal(t, "two", string(data))

	entries, err := os.ReadDir(storage.Root())
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestServiceEnforcesSizeCap(t *testing.T) {
	storage, err := NewLocalStorage(t.TempDir(), "/uploads")
	require.NoError(t, err)
	svc := NewService(storage, 4, zap.NewNop())

	_, err = svc.Store(context.Background(), "big.bin", []byte("12345"))
	assert.ErrorIs(t, err, ErrPayloadTooLarge)

	stored, err := svc.Store(context.Background(), "ok.txt", []byte("1234"))
	require.NoError(t, err)
	assert.Equal(t, "ok.txt", stored.Name)
	assert.Equal(t, int64(4), stored.Size)
	assert.Equal(t, "text/plain; charset=utf-8", stored.ContentType)
}

func TestServiceRejectsInvalidName(t *testing.T) {
	storage, err := NewLocalStorage(t.TempDir(), "/uploads")
	require.NoError(t, err)
	svc := NewService(storage, 1024, zap.NewNop())

	_, err = svc.Store(context.Background(), "..", []byte("x"))
	assert.ErrorIs(t, err, ErrInvalidFileName)

	entries, err := os.ReadDir(storage.Root())
	require.NoError(t, err)
	assert.Empty(t, entries)
}
