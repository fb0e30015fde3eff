package chat

import "context"

// Button is one tappable option under a message: a visible label plus
// an opaque callback payload delivered back when pressed.
type Button struct {
	Label string `json:"label"`
	Data  string `json:"data"`
}

// Keyboard is a grid of buttons rendered under a message.
type Keyboard [][]Button

// Update is one piece of user input handed to the dispatcher: either
// free text or a button callback, never both.
type Update struct {
	UserID string `json:"user_id"`
	ChatID string `json:"chat_id"`
	// MessageID names the message whose button was pressed, for
	// callback updates only.
	MessageID string `json:"message_id,omitempty"`
	Text      string `json:"text,omitempty"`
	Callback  string `json:"callback,omitempty"`
}

// Transport delivers messages to one chat backend. Implementations
// report transient failures with errors satisfying IsTransient and
// unchanged-content edit rejections with ErrNotModified.
type Transport interface {
	// Send posts a new message and returns its id.
	Send(ctx context.Context, chatID, text string, keyboard Keyboard) (string, error)
	// Edit replaces the text and keyboard of an existing message.
	Edit(ctx context.Context, chatID, messageID, text string, keyboard Keyboard) error
}

// Equal reports whether two keyboards render identically.
func (k Keyboard) Equal(other Keyboard) bool {
	if len(k) != len(other) {
		return false
	}
	for i := range k {
		if len(k[i]) != len(other[i]) {
			return false
		}
		for j := range k[i] {
			if k[i][j] != other[i][j] {
				return false
			}
		}
	}
	return true
}

// Row builds a single keyboard row.
func Row(buttons ...Button) []Button {
	return buttons
}

// BackButton is the shared "go back one step" button.
func BackButton() Button {
	return Button{Label: "🔙 Назад", Data: "back"}
}
