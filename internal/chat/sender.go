package chat

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const (
	retryAttempts = 3
	retryWait     = time.Second
)

// rendered remembers what a message currently shows.
type rendered struct {
	text     string
	keyboard Keyboard
}

// Sender wraps a Transport with the delivery policy every flow relies
// on: transient failures are retried up to three times with a fixed
// wait, and an edit that would change nothing is skipped before it
// ever reaches the wire. The unchanged check is an explicit pre-check
// against the last rendered content, not an error caught after the
// fact; ErrNotModified from the transport is still swallowed as a
// fallback for messages the sender never rendered itself.
type Sender struct {
	transport Transport
	logger    zerolog.Logger

	mu       sync.Mutex
	messages map[string]rendered
}

// NewSender wraps transport with retry and no-op-edit handling.
func NewSender(transport Transport, logger zerolog.Logger) *Sender {
	return &Sender{
		transport: transport,
		logger:    logger.With().Str("component", "chat").Logger(),
		messages:  map[string]rendered{},
	}
}

func messageKey(chatID, messageID string) string {
	return chatID + ":" + messageID
}

// Send posts a new message and returns its id.
func (s *Sender) Send(ctx context.Context, chatID, text string, keyboard Keyboard) (string, error) {
	var messageID string
	err := s.withRetry(ctx, "send", func() error {
		var err error
		messageID, err = s.transport.Send(ctx, chatID, text, keyboard)
		return err
	})
	if err != nil {
		return "", err
	}
	s.mu.Lock()
	s.messages[messageKey(chatID, messageID)] = rendered{text: text, keyboard: keyboard}
	s.mu.Unlock()
	return messageID, nil
}

// Edit replaces a message's text and keyboard. Editing to identical
// content is a successful no-op.
func (s *Sender) Edit(ctx context.Context, chatID, messageID, text string, keyboard Keyboard) error {
	key := messageKey(chatID, messageID)
	s.mu.Lock()
	prev, known := s.messages[key]
	s.mu.Unlock()
	if known && prev.text == text && prev.keyboard.Equal(keyboard) {
		s.logger.Debug().Str("chat_id", chatID).Str("message_id", messageID).Msg("edit skipped, content unchanged")
		return nil
	}

	err := s.withRetry(ctx, "edit", func() error {
		return s.transport.Edit(ctx, chatID, messageID, text, keyboard)
	})
	if err != nil {
		if errors.Is(err, ErrNotModified) {
			s.logger.Debug().Str("chat_id", chatID).Str("message_id", messageID).Msg("transport reported message not modified")
		} else {
			return err
		}
	}
	s.mu.Lock()
	s.messages[key] = rendered{text: text, keyboard: keyboard}
	s.mu.Unlock()
	return nil
}

// withRetry runs op, retrying transient failures with a fixed wait.
// ErrNotModified is never retried.
func (s *Sender) withRetry(ctx context.Context, op string, fn func() error) error {
	var err error
	for attempt := 1; attempt <= retryAttempts; attempt++ {
		err = fn()
		if err == nil || errors.Is(err, ErrNotModified) || !IsTransient(err) {
			return err
		}
		s.logger.Warn().Err(err).Str("op", op).Int("attempt", attempt).Msg("transient delivery failure")
		if attempt == retryAttempts {
			break
		}
		select {
		case <-time.After(retryWait):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return err
}
