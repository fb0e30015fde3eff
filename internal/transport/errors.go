package transport

import "fmt"

func errNoRoute(chatID string) error {
	return fmt.Errorf("no gateway connection for chat %s", chatID)
}

func errQueueFull(chatID string) error {
	return fmt.Errorf("gateway write queue full for chat %s", chatID)
}
