package websocket

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// Inbound events.
const (
	EventJoin          = "join"
	EventSendMessage   = "sendMessage"
	EventSendCode      = "sendCode"
	EventSendFile      = "sendFile"
	EventEditMessage   = "editMessage"
	EventDeleteMessage = "deleteMessage"
)

// Outbound events.
const (
	EventLoadHistory    = "loadHistory"
	EventNewMessage     = "newMessage"
	EventNewCode        = "newCode"
	EventAdminStatus    = "adminStatus"
	EventUserJoined     = "userJoined"
	EventUserLeft       = "userLeft"
	EventUpdateUserList = "updateUserList"
)

var (
	ErrNotJoined    = errors.New("connection has not joined")
	ErrUnauthorized = errors.New("connection is not privileged")
	ErrUnknownEvent = errors.New("unknown event")
	ErrRateLimited  = errors.New("submission rate exceeded")
)

// rateLimited lists the events that count against a connection's budget.
// Joins and admin actions are always applied.
func rateLimited(event string) bool {
	switch event {
	case EventSendMessage, EventSendCode, EventSendFile:
		return true
	}
	return false
}

// Envelope is the frame format in both directions.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type outbound struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

func encodeEvent(event string, data any) ([]byte, error) {
	payload, err := json.Marshal(outbound{Event: event, Data: data})
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", event, err)
	}
	return payload, nil
}

type JoinPayload struct {
	Name     string `json:"name"`
	AdminKey string `json:"adminKey,omitempty"`
}

// SendMessagePayload covers both sendMessage{content} and the older
// sendCode{code} frame.
type SendMessagePayload struct {
	Content string `json:"content,omitempty"`
	Code    string `json:"code,omitempty"`
}

func (p SendMessagePayload) Text() string {
	if p.Content != "" {
		return p.Content
	}
	return p.Code
}

// SendFilePayload carries the raw bytes base64 encoded in Buffer.
type SendFilePayload struct {
	FileName string `json:"fileName"`
	Buffer   []byte `json:"buffer"`
}

type EditMessagePayload struct {
	MessageID string `json:"messageId"`
	NewCode   string `json:"newCode"`
}

// DeleteMessagePayload accepts {"messageId": "..."} or a bare id string.
type DeleteMessagePayload struct {
	MessageID string `json:"messageId"`
}

func (p *DeleteMessagePayload) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '"' {
		return json.Unmarshal(trimmed, &p.MessageID)
	}
	type plain DeleteMessagePayload
	var v plain
	if err := json.Unmarshal(trimmed, &v); err != nil {
		return err
	}
	*p = DeleteMessagePayload(v)
	return nil
}

// NewCodePayload is the frame older clients append on a sendCode post.
type NewCodePayload struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Code      string `json:"code"`
	IsDeleted bool   `json:"isDeleted"`
}

type AdminStatusPayload struct {
	IsAdmin bool `json:"isAdmin"`
}

func decodePayload(env Envelope, v any) error {
	if len(env.Data) == 0 {
		return fmt.Errorf("%s: missing data", env.Event)
	}
	if err := json.Unmarshal(env.Data, v); err != nil {
		return fmt.Errorf("%s: %w", env.Event, err)
	}
	return nil
}
