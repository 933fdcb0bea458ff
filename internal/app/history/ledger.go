package history

import (
	"fmt"
	"sync"
	"time"
)

// Ledger is the in-memory, insertion-ordered message history. It is the
// single source of truth; persisted copies may lag behind it.
type Ledger struct {
	mu       sync.RWMutex
	messages []*Message
	index    map[string]int
	skipped  int
	now      func() time.Time
}

func NewLedger(messages []Message) *Ledger {
	l := &Ledger{
		messages: make([]*Message, 0, len(messages)),
		index:    make(map[string]int, len(messages)),
		now:      func() time.Time { return time.Now().UTC() },
	}
	for i := range messages {
		msg := messages[i]
		if msg.ID == "" {
			l.skipped++
			continue
		}
		if _, dup := l.index[msg.ID]; dup {
			l.skipped++
			continue
		}
		l.index[msg.ID] = len(l.messages)
		l.messages = append(l.messages, &msg)
	}
	return l
}

// Skipped reports how many entries NewLedger dropped for an empty or
// duplicate id.
func (l *Ledger) Skipped() int {
	return l.skipped
}

func (l *Ledger) Append(msg Message) error {
	if msg.ID == "" {
		return fmt.Errorf("%w: empty id", ErrValidation)
	}
	if msg.Kind != KindCode && msg.Kind != KindFile {
		return fmt.Errorf("%w: unknown kind %q", ErrValidation, msg.Kind)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if _, exists := l.index[msg.ID]; exists {
		return fmt.Errorf("%w: duplicate id %s", ErrValidation, msg.ID)
	}

	l.index[msg.ID] = len(l.messages)
	l.messages = append(l.messages, &msg)
	return nil
}

func (l *Ledger) FindByID(id string) (Message, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	i, ok := l.index[id]
	if !ok {
		return Message{}, ErrNotFound
	}
	return *l.messages[i], nil
}

// Redact replaces the message content with RedactedContent. Redacting an
// already redacted message is a no-op and reports changed == false.
func (l *Ledger) Redact(id string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	i, ok := l.index[id]
	if !ok {
		return false, ErrNotFound
	}

	msg := l.messages[i]
	if msg.IsDeleted {
		return false, nil
	}
	msg.redact(l.now())
	return true, nil
}

func (l *Ledger) EditContent(id, content string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	i, ok := l.index[id]
	if !ok {
		return ErrNotFound
	}

	msg := l.messages[i]
	if !msg.editable() {
		return fmt.Errorf("%w: id %s (kind=%s deleted=%t)", ErrInvalidState, id, msg.Kind, msg.IsDeleted)
	}
	msg.Content = content
	msg.Timestamp = l.now()
	return nil
}

// Snapshot returns a copy of the full history in insertion order.
func (l *Ledger) Snapshot() []Message {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]Message, len(l.messages))
	for i, msg := range l.messages {
		out[i] = *msg
	}
	return out
}

func (l *Ledger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.messages)
}
