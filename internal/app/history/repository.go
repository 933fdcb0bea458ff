package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"go.uber.org/zap"
)

// Repository serializes and deserializes the full ordered history. It never
// touches the in-memory Ledger.
type Repository interface {
	Load(ctx context.Context) ([]Message, error)
	Save(ctx context.Context, messages []Message) error
	Name() string
}

type FileRepository struct {
	path string
}

func NewFileRepository(path string) *FileRepository {
	return &FileRepository{path: path}
}

func (r *FileRepository) Name() string {
	return "file:" + r.path
}

func (r *FileRepository) Load(_ context.Context) ([]Message, error) {
	data, err := os.ReadFile(r.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNoSnapshot
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", r.path, err)
	}
	return decodeSnapshot(data)
}

// Save rewrites the whole document through a temp file and rename so a
// crash mid-write leaves the previous document intact.
func (r *FileRepository) Save(_ context.Context, messages []Message) error {
	data, err := encodeSnapshot(messages)
	if err != nil {
		return err
	}

	if dir := filepath.Dir(r.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("%w: create dir %s: %v", ErrPersistence, dir, err)
		}
	}

	tmp := r.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("%w: write %s: %v", ErrPersistence, tmp, err)
	}
	if err := os.Rename(tmp, r.path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("%w: rename %s: %v", ErrPersistence, tmp, err)
	}
	return nil
}

func encodeSnapshot(messages []Message) ([]byte, error) {
	if messages == nil {
		messages = []Message{}
	}
	data, err := json.MarshalIndent(messages, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("%w: encode: %v", ErrPersistence, err)
	}
	return data, nil
}

// storedMessage also accepts the older layout where code messages kept
// their text under "code" and carried no kind.
type storedMessage struct {
	Message
	Code string `json:"code,omitempty"`
}

func decodeSnapshot(data []byte) ([]Message, error) {
	var stored []storedMessage
	if err := json.Unmarshal(data, &stored); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptSnapshot, err)
	}

	messages := make([]Message, 0, len(stored))
	for i, s := range stored {
		msg := s.Message
		if msg.ID == "" {
			return nil, fmt.Errorf("%w: entry %d has no id", ErrCorruptSnapshot, i)
		}
		if msg.Kind == "" {
			msg.Kind = KindCode
		}
		if msg.Content == "" && s.Code != "" {
			msg.Content = s.Code
		}
		messages = append(messages, msg)
	}
	return messages, nil
}

// Restore builds the startup Ledger from repo. A missing snapshot is created
// empty right away; a malformed one is reported and replaced by an empty
// history in memory. Restore never fails.
func Restore(ctx context.Context, repo Repository, logger *zap.Logger) *Ledger {
	log := logger.Sugar()

	messages, err := repo.Load(ctx)
	switch {
	case err == nil:
		l := NewLedger(messages)
		if skipped := l.Skipped(); skipped > 0 {
			log.Warnw("Skipped history entries with empty or duplicate id",
				"store", repo.Name(),
				"skipped", skipped,
			)
		}
		log.Infow("History loaded", "store", repo.Name(), "messages", l.Len())
		return l

	case errors.Is(err, ErrNoSnapshot):
		if err := repo.Save(ctx, nil); err != nil {
			log.Errorw("Failed to initialize empty history", "store", repo.Name(), "error", err)
		} else {
			log.Infow("Created new empty history", "store", repo.Name())
		}
		return NewLedger(nil)

	default:
		log.Warnw("HISTORY COULD NOT BE LOADED, starting with an empty history; the stored copy will be overwritten on the next change",
			"store", repo.Name(),
			"error", err,
		)
		return NewLedger(nil)
	}
}
