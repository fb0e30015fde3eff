package flow

import (
	"strings"
	"testing"

	"github.com/schooltest/quizbot/internal/model"
)

func TestSplitPartsShortText(t *testing.T) {
	parts := splitParts("короткий текст", partLen)
	if len(parts) != 1 || parts[0] != "короткий текст" {
		t.Errorf("parts = %v", parts)
	}
}

func TestSplitPartsPrefersNewlines(t *testing.T) {
	text := strings.Repeat("а", 600) + "\n" + strings.Repeat("б", 600)
	parts := splitParts(text, partLen)
	if len(parts) != 2 {
		t.Fatalf("got %d parts, want 2", len(parts))
	}
	if strings.ContainsRune(parts[0], 'б') || strings.ContainsRune(parts[1], 'а') {
		t.Error("split must land on the newline between the halves")
	}
}

func TestSplitPartsFallsBackToSpaces(t *testing.T) {
	words := strings.Repeat(strings.Repeat("в", 99)+" ", 15)
	parts := splitParts(strings.TrimSpace(words), partLen)
	if len(parts) < 2 {
		t.Fatalf("got %d parts, want at least 2", len(parts))
	}
	for i, p := range parts {
		if n := len([]rune(p)); n > partLen {
			t.Errorf("part %d is %d runes, cap is %d", i, n, partLen)
		}
	}
}

func TestSplitPartsUnbreakableText(t *testing.T) {
	text := strings.Repeat("г", partLen*2+10)
	parts := splitParts(text, partLen)
	joined := strings.Join(parts, "")
	if len([]rune(joined)) != partLen*2+10 {
		t.Errorf("hard cut lost content: %d runes", len([]rune(joined)))
	}
	for i, p := range parts {
		if n := len([]rune(p)); n > partLen {
			t.Errorf("part %d is %d runes, cap is %d", i, n, partLen)
		}
	}
}

func TestClip(t *testing.T) {
	if got := clip("привет", 10); got != "привет" {
		t.Errorf("short text clipped: %q", got)
	}
	if got := clip("привет, мир", 6); got != "привет..." {
		t.Errorf("clip = %q", got)
	}
}

func TestAppealStatusLabel(t *testing.T) {
	if got := appealStatusLabel(model.AppealPending); got != "Ожидает" {
		t.Errorf("pending = %q", got)
	}
	if got := appealStatusLabel(model.AppealResponded); got != "Отвечена" {
		t.Errorf("responded = %q", got)
	}
	if got := appealStatusLabel(model.AppealStatus("weird")); got != "weird" {
		t.Errorf("unknown status = %q", got)
	}
}

func TestStudentTotals(t *testing.T) {
	test := &model.Test{
		Questions: []model.Question{
			{Type: model.QuestionClosed, CorrectAnswer: "4"},
			{Type: model.QuestionClosed, CorrectAnswer: "8"},
			{Type: model.QuestionOpen, CorrectAnswer: "ответ"},
		},
	}
	result := &model.Result{
		Answers: map[string]string{"0": "4", "1": "7", "2": "что-то"},
		Scores:  map[string]float64{"0": 10, "1": 0, "2": 6},
	}

	closed, open := studentTotals(test, result)
	if closed != 1 {
		t.Errorf("closed = %d, want 1", closed)
	}
	if open != 6 {
		t.Errorf("open = %g, want 6", open)
	}
}
