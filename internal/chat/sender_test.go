package chat

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/rs/zerolog"
)

// fakeTransport scripts per-call results and records every wire call.
type fakeTransport struct {
	sendErrs []error
	editErrs []error
	sent     int
	edited   int
	nextID   int
}

func (f *fakeTransport) Send(_ context.Context, _, _ string, _ Keyboard) (string, error) {
	f.sent++
	if len(f.sendErrs) > 0 {
		err := f.sendErrs[0]
		f.sendErrs = f.sendErrs[1:]
		if err != nil {
			return "", err
		}
	}
	f.nextID++
	return fmt.Sprintf("m%d", f.nextID), nil
}

func (f *fakeTransport) Edit(_ context.Context, _, _, _ string, _ Keyboard) error {
	f.edited++
	if len(f.editErrs) > 0 {
		err := f.editErrs[0]
		f.editErrs = f.editErrs[1:]
		return err
	}
	return nil
}

func TestSendRetriesTransientFailures(t *testing.T) {
	ft := &fakeTransport{sendErrs: []error{
		NewTransient("send", errors.New("socket closed")),
		NewTransient("send", errors.New("socket closed")),
	}}
	s := NewSender(ft, zerolog.Nop())

	id, err := s.Send(context.Background(), "c1", "привет", nil)
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if id == "" {
		t.Error("Send must return the message id")
	}
	if ft.sent != 3 {
		t.Errorf("transport called %d times, want 3", ft.sent)
	}
}

func TestSendGivesUpAfterRetries(t *testing.T) {
	transient := NewTransient("send", errors.New("socket closed"))
	ft := &fakeTransport{sendErrs: []error{transient, transient, transient}}
	s := NewSender(ft, zerolog.Nop())

	if _, err := s.Send(context.Background(), "c1", "привет", nil); !IsTransient(err) {
		t.Fatalf("err = %v, want the final transient failure", err)
	}
	if ft.sent != retryAttempts {
		t.Errorf("transport called %d times, want %d", ft.sent, retryAttempts)
	}
}

func TestSendDoesNotRetryPermanentFailures(t *testing.T) {
	permanent := errors.New("chat is gone")
	ft := &fakeTransport{sendErrs: []error{permanent}}
	s := NewSender(ft, zerolog.Nop())

	if _, err := s.Send(context.Background(), "c1", "привет", nil); !errors.Is(err, permanent) {
		t.Fatalf("err = %v, want permanent failure surfaced", err)
	}
	if ft.sent != 1 {
		t.Errorf("transport called %d times, want 1", ft.sent)
	}
}

func TestEditSkipsUnchangedContent(t *testing.T) {
	ft := &fakeTransport{}
	s := NewSender(ft, zerolog.Nop())
	ctx := context.Background()

	kb := Keyboard{Row(Button{Label: "ok", Data: "ok"})}
	id, err := s.Send(ctx, "c1", "текст", kb)
	if err != nil {
		t.Fatal(err)
	}

	// Identical content never reaches the wire.
	if err := s.Edit(ctx, "c1", id, "текст", kb); err != nil {
		t.Fatalf("no-op edit: %v", err)
	}
	if ft.edited != 0 {
		t.Errorf("no-op edit hit the transport %d times", ft.edited)
	}

	// Changed content does.
	if err := s.Edit(ctx, "c1", id, "новый текст", kb); err != nil {
		t.Fatalf("real edit: %v", err)
	}
	if ft.edited != 1 {
		t.Errorf("real edit hit the transport %d times, want 1", ft.edited)
	}

	// And the cache tracks the latest render.
	if err := s.Edit(ctx, "c1", id, "новый текст", kb); err != nil {
		t.Fatal(err)
	}
	if ft.edited != 1 {
		t.Error("repeat of the latest content must be skipped")
	}
}

func TestEditSwallowsNotModified(t *testing.T) {
	// A message the sender never rendered itself: the pre-check cannot
	// trigger, so the transport's rejection is the fallback.
	ft := &fakeTransport{editErrs: []error{ErrNotModified}}
	s := NewSender(ft, zerolog.Nop())

	if err := s.Edit(context.Background(), "c1", "unknown", "текст", nil); err != nil {
		t.Fatalf("ErrNotModified must be swallowed, got %v", err)
	}
	if ft.edited != 1 {
		t.Errorf("transport called %d times, want 1 (no retries)", ft.edited)
	}
}

func TestKeyboardEqual(t *testing.T) {
	a := Keyboard{Row(Button{Label: "x", Data: "1"}), Row(Button{Label: "y", Data: "2"})}
	b := Keyboard{Row(Button{Label: "x", Data: "1"}), Row(Button{Label: "y", Data: "2"})}
	if !a.Equal(b) {
		t.Error("identical keyboards must compare equal")
	}

	c := Keyboard{Row(Button{Label: "x", Data: "1"})}
	if a.Equal(c) {
		t.Error("different row counts must not compare equal")
	}

	d := Keyboard{Row(Button{Label: "x", Data: "1"}), Row(Button{Label: "y", Data: "другой"})}
	if a.Equal(d) {
		t.Error("different payloads must not compare equal")
	}

	var empty Keyboard
	if !empty.Equal(nil) {
		t.Error("empty keyboards must compare equal")
	}
}
