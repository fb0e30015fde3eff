package transport

import "github.com/schooltest/quizbot/internal/chat"

// ─── Actions (Gateway → Bot) ────────────────────────────────────────

type Action string

const (
	ActionUpdate Action = "update"
	ActionPing   Action = "ping"
)

// RequestEnvelope is used to peek at the action before full parsing.
type RequestEnvelope struct {
	Action Action `json:"action"`
}

// UpdateRequest carries one piece of user input from the gateway.
type UpdateRequest struct {
	Action Action `json:"action"`
	chat.Update
}

// ─── Events (Bot → Gateway) ─────────────────────────────────────────

type Event string

const (
	EventSend  Event = "send"
	EventEdit  Event = "edit"
	EventError Event = "error"
	EventPong  Event = "pong"
)

// MessageEvent instructs the gateway to render a message. EventSend
// creates a new message under the bot-assigned MessageID; EventEdit
// replaces the content of an existing one.
type MessageEvent struct {
	Event     Event         `json:"event"`
	MessageID string        `json:"message_id"`
	ChatID    string        `json:"chat_id"`
	Text      string        `json:"text"`
	Keyboard  chat.Keyboard `json:"keyboard,omitempty"`
}

type ErrorEvent struct {
	Event Event  `json:"event"`
	Error string `json:"error"`
}

type PongEvent struct {
	Event Event `json:"event"`
}
