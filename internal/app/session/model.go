package session

import (
	"errors"
	"time"
)

var ErrNotFound = errors.New("session not found")

// Session describes a joined connection. Name and privilege are fixed at
// join time for the lifetime of the connection.
type Session struct {
	ConnectionID string
	DisplayName  string
	IsPrivileged bool
	JoinedAt     time.Time
}
