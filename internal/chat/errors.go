package chat

import (
	"errors"
	"fmt"
)

// ErrNotModified is returned by transports when an edit would leave
// the message exactly as it is. The sender swallows it.
var ErrNotModified = errors.New("message is not modified")

// DeliveryError wraps a transport failure. Transient failures (network
// hiccups, timeouts) are retried by the sender; permanent ones are not.
type DeliveryError struct {
	Op        string
	Err       error
	Transient bool
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("chat delivery %s: %v", e.Op, e.Err)
}

func (e *DeliveryError) Unwrap() error {
	return e.Err
}

// NewTransient wraps err as a retryable delivery failure.
func NewTransient(op string, err error) error {
	return &DeliveryError{Op: op, Err: err, Transient: true}
}

// IsTransient reports whether err is worth retrying.
func IsTransient(err error) bool {
	var de *DeliveryError
	return errors.As(err, &de) && de.Transient
}
