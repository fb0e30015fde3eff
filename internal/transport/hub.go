package transport

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/schooltest/quizbot/internal/chat"
)

// Hub routes outgoing messages to whichever gateway connection last
// spoke for a chat. It implements chat.Transport: a chat without a
// live connection, or one whose write queue is full, yields a
// transient delivery error so the sender's retry policy applies.
type Hub struct {
	logger zerolog.Logger

	mu    sync.RWMutex
	chats map[string]*Conn
}

func NewHub(logger zerolog.Logger) *Hub {
	return &Hub{
		logger: logger.With().Str("component", "transport").Logger(),
		chats:  map[string]*Conn{},
	}
}

// bind records conn as the route for chatID. Called for every inbound
// update so reconnecting gateways take over their chats.
func (h *Hub) bind(chatID string, conn *Conn) {
	h.mu.Lock()
	h.chats[chatID] = conn
	h.mu.Unlock()
}

// drop forgets every chat routed through conn.
func (h *Hub) drop(conn *Conn) {
	h.mu.Lock()
	for chatID, c := range h.chats {
		if c == conn {
			delete(h.chats, chatID)
		}
	}
	h.mu.Unlock()
}

func (h *Hub) conn(chatID string) (*Conn, error) {
	h.mu.RLock()
	conn, ok := h.chats[chatID]
	h.mu.RUnlock()
	if !ok {
		return nil, chat.NewTransient("route", errNoRoute(chatID))
	}
	return conn, nil
}

// Send assigns a message id and pushes a send event to the chat's
// gateway.
func (h *Hub) Send(ctx context.Context, chatID, text string, keyboard chat.Keyboard) (string, error) {
	conn, err := h.conn(chatID)
	if err != nil {
		return "", err
	}
	messageID := uuid.NewString()
	ev := MessageEvent{Event: EventSend, MessageID: messageID, ChatID: chatID, Text: text, Keyboard: keyboard}
	if !conn.enqueue(ev) {
		return "", chat.NewTransient("send", errQueueFull(chatID))
	}
	return messageID, nil
}

// Edit pushes an edit event for an existing message.
func (h *Hub) Edit(ctx context.Context, chatID, messageID, text string, keyboard chat.Keyboard) error {
	conn, err := h.conn(chatID)
	if err != nil {
		return err
	}
	ev := MessageEvent{Event: EventEdit, MessageID: messageID, ChatID: chatID, Text: text, Keyboard: keyboard}
	if !conn.enqueue(ev) {
		return chat.NewTransient("edit", errQueueFull(chatID))
	}
	return nil
}
