package session

import "testing"

const (
	stateA State = "a"
	stateB State = "b"
	stateC State = "c"
)

func TestStackPushPop(t *testing.T) {
	s := newSession("u1")

	if got := s.Pop(); got != "" {
		t.Errorf("Pop on empty stack = %q, want empty", got)
	}
	if got := s.Current(); got != "" {
		t.Errorf("Current on empty stack = %q, want empty", got)
	}

	s.Push(stateA)
	s.Push(stateB)
	s.Push(stateC)

	if got := s.Current(); got != stateC {
		t.Errorf("Current = %q, want %q", got, stateC)
	}
	if got := s.Pop(); got != stateC {
		t.Errorf("Pop = %q, want %q", got, stateC)
	}
	if got := s.Pop(); got != stateB {
		t.Errorf("Pop = %q, want %q", got, stateB)
	}
	if got := s.Current(); got != stateA {
		t.Errorf("Current = %q, want %q", got, stateA)
	}
}

func TestPushSkipsConsecutiveDuplicates(t *testing.T) {
	s := newSession("u1")
	s.Push(stateA)
	s.Push(stateA)
	s.Push(stateA)

	if got := s.Pop(); got != stateA {
		t.Fatalf("Pop = %q, want %q", got, stateA)
	}
	if got := s.Pop(); got != "" {
		t.Errorf("duplicate pushes must collapse, second Pop = %q", got)
	}

	// Non-consecutive repeats are kept: a-b-a is a real path.
	s.Push(stateA)
	s.Push(stateB)
	s.Push(stateA)
	if s.Pop() != stateA || s.Pop() != stateB || s.Pop() != stateA {
		t.Error("non-consecutive repeats must all stay on the stack")
	}
}

func TestDataScopedPerState(t *testing.T) {
	s := newSession("u1")
	s.Set(stateA, "name", "Контрольная")
	s.Set(stateB, "name", "другое")
	s.Set(stateA, "count", 3)

	if got := s.GetString(stateA, "name", ""); got != "Контрольная" {
		t.Errorf("GetString = %q", got)
	}
	if got := s.GetString(stateB, "name", ""); got != "другое" {
		t.Errorf("state data must not bleed between states, got %q", got)
	}
	if got := s.GetInt(stateA, "count", 0); got != 3 {
		t.Errorf("GetInt = %d", got)
	}

	// Defaults apply on missing keys and wrong types.
	if got := s.GetString(stateA, "missing", "def"); got != "def" {
		t.Errorf("missing key default = %q", got)
	}
	if got := s.GetInt(stateA, "name", 7); got != 7 {
		t.Errorf("wrong type default = %d", got)
	}
}

func TestDataSurvivesStackMovement(t *testing.T) {
	s := newSession("u1")
	s.Push(stateA)
	s.Set(stateA, "draft", "текст")
	s.Push(stateB)
	s.Pop()
	s.Pop()

	if got := s.GetString(stateA, "draft", ""); got != "текст" {
		t.Errorf("draft lost after pops: %q", got)
	}

	s.ClearState(stateA)
	if _, ok := s.Get(stateA, "draft"); ok {
		t.Error("ClearState must drop the state's data")
	}
}

func TestReset(t *testing.T) {
	s := newSession("u1")
	s.Push(stateA)
	s.Set(stateA, "draft", "текст")
	s.Reset()

	if got := s.Current(); got != "" {
		t.Errorf("stack not cleared: %q", got)
	}
	if _, ok := s.Get(stateA, "draft"); ok {
		t.Error("data not cleared")
	}
}

func TestManagerReuseAndDrop(t *testing.T) {
	m := NewManager()
	first := m.Get("u1")
	first.Push(stateA)

	if again := m.Get("u1"); again != first {
		t.Error("Get must return the same session for the same user")
	}
	if other := m.Get("u2"); other == first {
		t.Error("users must not share sessions")
	}

	m.Drop("u1")
	if fresh := m.Get("u1"); fresh == first || fresh.Current() != "" {
		t.Error("Drop must forget the old session")
	}
}
