package websocket

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"coderoom/internal/app/history"
	"coderoom/internal/app/session"
	"coderoom/internal/app/upload"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const AnonymousAuthor = "Anonymous"

// Scheduler queues a snapshot for durable storage without blocking.
type Scheduler interface {
	Schedule(snapshot []history.Message)
}

type RoomOptions struct {
	RequireJoin bool
	Presence    bool
}

// Room is the single writer for the ledger. mu is held from mutation through
// the broadcast enqueue so every client observes frames in ledger order.
type Room struct {
	mu        sync.Mutex
	hub       *Hub
	ledger    *history.Ledger
	registry  *session.Registry
	persister Scheduler
	uploads   upload.Service
	opts      RoomOptions
	logger    *zap.SugaredLogger

	now   func() time.Time
	newID func() string
}

func NewRoom(
	hub *Hub,
	ledger *history.Ledger,
	registry *session.Registry,
	persister Scheduler,
	uploads upload.Service,
	opts RoomOptions,
	logger *zap.Logger,
) *Room {
	return &Room{
		hub:       hub,
		ledger:    ledger,
		registry:  registry,
		persister: persister,
		uploads:   uploads,
		opts:      opts,
		logger:    logger.Sugar(),
		now:       func() time.Time { return time.Now().UTC() },
		newID:     uuid.NewString,
	}
}

// Dispatch decodes env and applies it on behalf of c.
func (r *Room) Dispatch(c *Client, env Envelope) error {
	switch env.Event {
	case EventJoin:
		var p JoinPayload
		if err := decodePayload(env, &p); err != nil {
			return err
		}
		r.OnJoin(c, p.Name, p.AdminKey)
		return nil

	case EventSendMessage, EventSendCode:
		var p SendMessagePayload
		if err := decodePayload(env, &p); err != nil {
			return err
		}
		_, err := r.submitCode(c, p.Text(), env.Event == EventSendCode)
		return err

	case EventSendFile:
		var p SendFilePayload
		if err := decodePayload(env, &p); err != nil {
			return err
		}
		_, err := r.OnSubmitFile(context.Background(), c, p.FileName, p.Buffer)
		return err

	case EventEditMessage:
		var p EditMessagePayload
		if err := decodePayload(env, &p); err != nil {
			return err
		}
		return r.OnEdit(c, p.MessageID, p.NewCode)

	case EventDeleteMessage:
		var p DeleteMessagePayload
		if err := decodePayload(env, &p); err != nil {
			return err
		}
		return r.OnDelete(c, p.MessageID)

	default:
		return fmt.Errorf("%w: %q", ErrUnknownEvent, env.Event)
	}
}

// OnConnect registers c and hands it the current history. Nothing can be
// broadcast between the snapshot and the registration.
func (r *Room) OnConnect(c *Client) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.hub.Add(c) {
		return false
	}
	r.sendLocked(c, EventLoadHistory, r.ledger.Snapshot())
	return true
}

func (r *Room) OnJoin(c *Client, name, adminKey string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, joined := r.registry.Lookup(c.ID); joined {
		r.logger.Warnw("Ignoring repeated join", "client_id", c.ID, "name", name)
		return
	}

	name = strings.TrimSpace(name)
	if name == "" {
		name = AnonymousAuthor
	}

	privileged := r.registry.Register(c.ID, name, adminKey)
	if privileged {
		r.logger.Infow("Client joined as admin", "client_id", c.ID, "name", name)
		r.sendLocked(c, EventAdminStatus, AdminStatusPayload{IsAdmin: true})
	} else {
		r.logger.Infow("Client joined", "client_id", c.ID, "name", name)
	}

	if r.opts.Presence {
		r.broadcastExceptLocked(c, EventUserJoined, name+" joined the room.")
		r.broadcastLocked(EventUpdateUserList, r.registry.ActiveNames())
	}
}

// authorFor resolves the display name a submission is recorded under.
func (r *Room) authorFor(c *Client) (string, error) {
	if s, ok := r.registry.Lookup(c.ID); ok {
		return s.DisplayName, nil
	}
	if r.opts.RequireJoin {
		return "", ErrNotJoined
	}
	return AnonymousAuthor, nil
}

func (r *Room) OnSubmitCode(c *Client, content string) (history.Message, error) {
	return r.submitCode(c, content, false)
}

// submitCode records a code post. Posts that arrived as sendCode are also
// announced as newCode for clients that only understand that frame.
func (r *Room) submitCode(c *Client, content string, legacy bool) (history.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	author, err := r.authorFor(c)
	if err != nil {
		r.logger.Warnw("Submission before join rejected", "client_id", c.ID)
		return history.Message{}, err
	}

	msg := history.Message{
		ID:        r.newID(),
		Author:    author,
		Timestamp: r.now(),
		Kind:      history.KindCode,
		Content:   content,
	}
	if err := r.appendLocked(msg); err != nil {
		return msg, err
	}
	if legacy {
		r.broadcastLocked(EventNewCode, NewCodePayload{
			ID:        msg.ID,
			Name:      msg.Author,
			Code:      msg.Content,
			IsDeleted: msg.IsDeleted,
		})
	}
	return msg, nil
}

// OnSubmitFile stores the blob before taking the room lock. A failed store
// never reaches the ledger.
func (r *Room) OnSubmitFile(ctx context.Context, c *Client, fileName string, data []byte) (history.Message, error) {
	author, err := r.authorFor(c)
	if err != nil {
		r.logger.Warnw("File submission before join rejected", "client_id", c.ID)
		return history.Message{}, err
	}

	stored, err := r.uploads.Store(ctx, fileName, data)
	if err != nil {
		r.logger.Warnw("File submission dropped",
			"client_id", c.ID,
			"file_name", fileName,
			"size", len(data),
			"error", err,
		)
		return history.Message{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	msg := history.Message{
		ID:        r.newID(),
		Author:    author,
		Timestamp: r.now(),
		Kind:      history.KindFile,
		Content:   stored.Name,
		FileName:  stored.Name,
		URL:       stored.URL,
	}
	return msg, r.appendLocked(msg)
}

func (r *Room) appendLocked(msg history.Message) error {
	if err := r.ledger.Append(msg); err != nil {
		r.logger.Errorw("Ledger append failed", "message_id", msg.ID, "error", err)
		return err
	}
	r.persister.Schedule(r.ledger.Snapshot())
	r.broadcastLocked(EventNewMessage, msg)
	return nil
}

// OnEdit replaces the content of a code message. Unprivileged requests are
// logged and otherwise look exactly like a missing id to the caller.
func (r *Room) OnEdit(c *Client, id, content string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.registry.IsPrivileged(c.ID) {
		r.logger.Warnw("Unprivileged edit ignored", "client_id", c.ID, "message_id", id)
		return ErrUnauthorized
	}

	if err := r.ledger.EditContent(id, content); err != nil {
		r.logger.Infow("Edit ignored", "client_id", c.ID, "message_id", id, "error", err)
		return err
	}

	r.logger.Infow("Message edited", "client_id", c.ID, "message_id", id)
	r.resyncLocked()
	return nil
}

func (r *Room) OnDelete(c *Client, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.registry.IsPrivileged(c.ID) {
		r.logger.Warnw("Unprivileged delete ignored", "client_id", c.ID, "message_id", id)
		return ErrUnauthorized
	}

	changed, err := r.ledger.Redact(id)
	if err != nil {
		r.logger.Infow("Delete ignored", "client_id", c.ID, "message_id", id, "error", err)
		return err
	}
	if !changed {
		return nil
	}

	r.logger.Infow("Message redacted", "client_id", c.ID, "message_id", id)
	r.resyncLocked()
	return nil
}

func (r *Room) resyncLocked() {
	snapshot := r.ledger.Snapshot()
	r.persister.Schedule(snapshot)
	r.broadcastLocked(EventLoadHistory, snapshot)
}

func (r *Room) OnDisconnect(c *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.hub.Remove(c)

	name, err := r.registry.Unregister(c.ID)
	if err != nil {
		if !errors.Is(err, session.ErrNotFound) {
			r.logger.Warnw("Unregister failed", "client_id", c.ID, "error", err)
		}
		return
	}

	r.logger.Infow("Client left", "client_id", c.ID, "name", name)
	if r.opts.Presence {
		r.broadcastLocked(EventUserLeft, name+" left the room.")
		r.broadcastLocked(EventUpdateUserList, r.registry.ActiveNames())
	}
}

func (r *Room) sendLocked(c *Client, event string, data any) {
	payload, err := encodeEvent(event, data)
	if err != nil {
		r.logger.Errorw("Failed to encode event", "event", event, "error", err)
		return
	}
	r.hub.SendTo(c, payload)
}

func (r *Room) broadcastLocked(event string, data any) {
	r.broadcastExceptLocked(nil, event, data)
}

func (r *Room) broadcastExceptLocked(skip *Client, event string, data any) {
	payload, err := encodeEvent(event, data)
	if err != nil {
		r.logger.Errorw("Failed to encode event", "event", event, "error", err)
		return
	}
	r.hub.BroadcastExcept(skip, payload)
}
