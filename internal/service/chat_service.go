package service

import (
	"context"
	"crypto/subtle"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/reggaepotato22/krugerr-brendt/internal/assistant"
	"github.com/reggaepotato22/krugerr-brendt/internal/domain"
	"github.com/reggaepotato22/krugerr-brendt/internal/reconcile"
)

const maxChatMessageLength = 2000

type ChatService struct {
	sessions  collection[domain.ChatSession]
	responder assistant.Responder
	handoff   *assistant.Handoff
	logger    *slog.Logger
	now       func() time.Time
	locks     *keyedMutex
}

func NewChatService(
	sessions collection[domain.ChatSession],
	responder assistant.Responder,
	handoff *assistant.Handoff,
	logger *slog.Logger,
) *ChatService {
	return &ChatService{
		sessions:  sessions,
		responder: responder,
		handoff:   handoff,
		logger:    logger,
		now:       time.Now,
		locks:     newKeyedMutex(),
	}
}

// ChatRequest is one visitor message. VisitorID is set by the transport
// from the visitor's cookie or header, never from the request body.
type ChatRequest struct {
	SessionID   string `json:"sessionId"`
	VisitorName string `json:"visitorName"`
	Text        string `json:"text"`
	VisitorID   string `json:"-"`
}

// ChatReply carries only the messages appended by this send. The full
// transcript is available to admins through Get.
type ChatReply struct {
	SessionID string               `json:"sessionId"`
	VisitorID string               `json:"visitorId"`
	Status    domain.ChatStatus    `json:"status"`
	Messages  []domain.ChatMessage `json:"messages"`
	Written   reconcile.Written    `json:"written"`
	Reply     string               `json:"reply"`
	Handoff   assistant.Links      `json:"handoff"`
}

// Send appends the visitor message and the bot reply to the session,
// creating the session on the first message. Sends to one session are
// serialized so concurrent messages are never lost.
func (s *ChatService) Send(ctx context.Context, req ChatRequest) (ChatReply, error) {
	text := strings.TrimSpace(req.Text)
	if text == "" {
		return ChatReply{}, invalid("message is required")
	}
	if len(text) > maxChatMessageLength {
		return ChatReply{}, invalid("message is longer than %d characters", maxChatMessageLength)
	}

	var (
		session domain.ChatSession
		isNew   = req.SessionID == ""
	)
	if !isNew {
		unlock := s.locks.Lock(req.SessionID)
		defer unlock()

		existing, ok := s.sessions.Get(req.SessionID)
		if !ok || !ownsSession(existing, req.VisitorID) {
			return ChatReply{}, fmt.Errorf("chat session %s: %w", req.SessionID, ErrNotFound)
		}
		if existing.Status == domain.ChatArchived {
			return ChatReply{}, invalid("chat session is closed")
		}
		session = existing
	} else {
		session = domain.ChatSession{
			VisitorID:   req.VisitorID,
			VisitorName: strings.TrimSpace(req.VisitorName),
			Status:      domain.ChatActive,
			CreatedAt:   s.now().UTC(),
		}
	}

	reply, err := s.responder.Reply(ctx, session.Messages, text)
	if err != nil {
		return ChatReply{}, fmt.Errorf("failed to generate reply: %w", err)
	}

	now := s.now().UTC()
	added := []domain.ChatMessage{
		{Sender: domain.SenderHuman, Text: text, SentAt: now},
		{Sender: domain.SenderBot, Text: reply, SentAt: now},
	}
	messages := make([]domain.ChatMessage, 0, len(session.Messages)+len(added))
	messages = append(messages, session.Messages...)
	session.Messages = append(messages, added...)
	session.UpdatedAt = now

	var w reconcile.Written
	if isNew {
		session, w, err = s.sessions.Create(ctx, session)
	} else {
		w, err = s.sessions.Update(ctx, session)
	}
	if err != nil {
		return ChatReply{}, fmt.Errorf("failed to save chat session: %w", err)
	}

	return ChatReply{
		SessionID: w.ID,
		VisitorID: session.VisitorID,
		Status:    session.Status,
		Messages:  added,
		Written:   w,
		Reply:     reply,
		Handoff:   s.handoff.Links(session.VisitorName, text),
	}, nil
}

// ownsSession reports whether visitor opened c. Sessions without an owner
// accept no public messages.
func ownsSession(c domain.ChatSession, visitor string) bool {
	if c.VisitorID == "" || visitor == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(c.VisitorID), []byte(visitor)) == 1
}

func (s *ChatService) List(status domain.ChatStatus) []domain.ChatSession {
	out := make([]domain.ChatSession, 0)
	for _, c := range s.sessions.Items() {
		if status == "" || c.Status == status {
			out = append(out, c)
		}
	}
	return out
}

func (s *ChatService) Get(id string) (domain.ChatSession, error) {
	c, ok := s.sessions.Get(id)
	if !ok {
		return domain.ChatSession{}, fmt.Errorf("chat session %s: %w", id, ErrNotFound)
	}
	return c, nil
}

func (s *ChatService) Archive(ctx context.Context, id string) (domain.ChatSession, error) {
	unlock := s.locks.Lock(id)
	defer unlock()

	c, ok := s.sessions.Get(id)
	if !ok {
		return domain.ChatSession{}, fmt.Errorf("chat session %s: %w", id, ErrNotFound)
	}
	c.Status = domain.ChatArchived
	c.UpdatedAt = s.now().UTC()

	if _, err := s.sessions.Update(ctx, c); err != nil {
		return domain.ChatSession{}, err
	}
	updated, _ := s.sessions.Get(id)
	return updated, nil
}

func (s *ChatService) Delete(ctx context.Context, id string) error {
	unlock := s.locks.Lock(id)
	defer unlock()
	return s.sessions.Delete(ctx, id)
}

// keyedMutex hands out one mutex per key and drops it once no caller holds
// or waits on it.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*refMutex
}

type refMutex struct {
	sync.Mutex
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[string]*refMutex)}
}

// Lock blocks until key is free and returns the matching unlock.
func (k *keyedMutex) Lock(key string) func() {
	k.mu.Lock()
	m, ok := k.locks[key]
	if !ok {
		m = &refMutex{}
		k.locks[key] = m
	}
	m.refs++
	k.mu.Unlock()

	m.Lock()
	return func() {
		m.Unlock()
		k.mu.Lock()
		m.refs--
		if m.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
