package history

import (
	"errors"
	"time"
)

type Kind string

const (
	KindCode Kind = "code"
	KindFile Kind = "file"
)

// RedactedContent replaces the content of every redacted message.
const RedactedContent = "{MESSAGE HAS BEEN DELETED BY ADMIN}"

var (
	ErrValidation      = errors.New("invalid message")
	ErrNotFound        = errors.New("message not found")
	ErrInvalidState    = errors.New("message cannot be modified")
	ErrNoSnapshot      = errors.New("no persisted history")
	ErrCorruptSnapshot = errors.New("persisted history is malformed")
	ErrPersistence     = errors.New("failed to persist history")
)

// Message is a single ledger entry. The JSON shape is both the wire format
// and the persisted format.
type Message struct {
	ID        string    `json:"id"`
	Author    string    `json:"name"`
	Timestamp time.Time `json:"timestamp"`
	Kind      Kind      `json:"kind"`
	Content   string    `json:"content"`
	FileName  string    `json:"fileName,omitempty"`
	URL       string    `json:"url,omitempty"`
	IsDeleted bool      `json:"isDeleted"`
}

func (m *Message) redact(now time.Time) {
	m.Content = RedactedContent
	m.Kind = KindCode
	m.FileName = ""
	m.URL = ""
	m.IsDeleted = true
	m.Timestamp = now
}

func (m *Message) editable() bool {
	return !m.IsDeleted && m.Kind == KindCode
}
