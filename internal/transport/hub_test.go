package transport

import (
	"context"
	"testing"

	"github.com/rs/zerolog"

	"github.com/schooltest/quizbot/internal/chat"
)

// stubConn builds a Conn without a live websocket; the write pump is
// not running, so enqueued events stay in the queue for inspection.
func stubConn(queue int) *Conn {
	return &Conn{
		out:    make(chan any, queue),
		closed: make(chan struct{}),
		logger: zerolog.Nop(),
	}
}

func TestSendWithoutRouteIsTransient(t *testing.T) {
	h := NewHub(zerolog.Nop())

	_, err := h.Send(context.Background(), "c1", "привет", nil)
	if err == nil {
		t.Fatal("expected an error for an unrouted chat")
	}
	if !chat.IsTransient(err) {
		t.Errorf("no-route error must be transient, got %v", err)
	}

	if err := h.Edit(context.Background(), "c1", "m1", "привет", nil); !chat.IsTransient(err) {
		t.Errorf("no-route edit must be transient, got %v", err)
	}
}

func TestSendRoutesToBoundConn(t *testing.T) {
	h := NewHub(zerolog.Nop())
	conn := stubConn(4)
	h.bind("c1", conn)

	id, err := h.Send(context.Background(), "c1", "привет", chat.Keyboard{chat.Row(chat.Button{Label: "ok", Data: "ok"})})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if id == "" {
		t.Error("Send must assign a message id")
	}

	ev, ok := (<-conn.out).(MessageEvent)
	if !ok {
		t.Fatal("queued value is not a MessageEvent")
	}
	if ev.Event != EventSend || ev.ChatID != "c1" || ev.Text != "привет" || ev.MessageID != id {
		t.Errorf("event = %+v", ev)
	}
}

func TestEditCarriesMessageID(t *testing.T) {
	h := NewHub(zerolog.Nop())
	conn := stubConn(4)
	h.bind("c1", conn)

	if err := h.Edit(context.Background(), "c1", "m7", "новый текст", nil); err != nil {
		t.Fatalf("Edit: %v", err)
	}

	ev := (<-conn.out).(MessageEvent)
	if ev.Event != EventEdit || ev.MessageID != "m7" {
		t.Errorf("event = %+v", ev)
	}
}

func TestFullQueueIsTransient(t *testing.T) {
	h := NewHub(zerolog.Nop())
	conn := stubConn(1)
	h.bind("c1", conn)

	if _, err := h.Send(context.Background(), "c1", "первое", nil); err != nil {
		t.Fatal(err)
	}
	_, err := h.Send(context.Background(), "c1", "второе", nil)
	if !chat.IsTransient(err) {
		t.Errorf("full queue must be transient, got %v", err)
	}
}

func TestRebindTakesOverChat(t *testing.T) {
	h := NewHub(zerolog.Nop())
	old := stubConn(4)
	h.bind("c1", old)

	// A reconnecting gateway binds the same chat to its new conn.
	fresh := stubConn(4)
	h.bind("c1", fresh)

	if _, err := h.Send(context.Background(), "c1", "привет", nil); err != nil {
		t.Fatal(err)
	}
	select {
	case <-fresh.out:
	default:
		t.Error("event must land on the newest conn")
	}
	select {
	case <-old.out:
		t.Error("stale conn must not receive events")
	default:
	}
}

func TestDropForgetsAllChats(t *testing.T) {
	h := NewHub(zerolog.Nop())
	conn := stubConn(4)
	h.bind("c1", conn)
	h.bind("c2", conn)

	h.drop(conn)

	if _, err := h.Send(context.Background(), "c1", "x", nil); !chat.IsTransient(err) {
		t.Errorf("c1 still routed after drop: %v", err)
	}
	if _, err := h.Send(context.Background(), "c2", "x", nil); !chat.IsTransient(err) {
		t.Errorf("c2 still routed after drop: %v", err)
	}
}

func TestEnqueueRefusedAfterClose(t *testing.T) {
	conn := stubConn(4)
	close(conn.closed)

	if conn.enqueue(PongEvent{Event: EventPong}) {
		t.Error("enqueue on a closed conn must be refused")
	}
}
