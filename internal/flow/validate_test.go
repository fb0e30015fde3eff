package flow

import (
	"reflect"
	"strings"
	"testing"

	"github.com/schooltest/quizbot/internal/model"
)

func TestSanitizeInput(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain text", "Контрольная работа", "Контрольная работа"},
		{"strips markup chars", "a<b>c|d&e", "abcde"},
		{"collapses whitespace", "  a \t b\n\nc  ", "a b c"},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := sanitizeInput(tt.in); got != tt.want {
				t.Errorf("sanitizeInput(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}

	long := strings.Repeat("ф", maxInputLen+50)
	if got := sanitizeInput(long); len([]rune(got)) != maxInputLen {
		t.Errorf("long input capped at %d runes, want %d", len([]rune(got)), maxInputLen)
	}
}

func TestSanitizeLongInput(t *testing.T) {
	if got := sanitizeLongInput("Решение верное, но оформление хромает!"); got != "Решение верное, но оформление хромает!" {
		t.Errorf("basic punctuation must survive, got %q", got)
	}
	if got := sanitizeLongInput("x@#$%y"); got != "xy" {
		t.Errorf("symbols must be dropped, got %q", got)
	}

	long := strings.Repeat("б", maxLongInputLen+1)
	if got := sanitizeLongInput(long); len([]rune(got)) != maxLongInputLen {
		t.Errorf("capped at %d runes, want %d", len([]rune(got)), maxLongInputLen)
	}
}

func TestClassValidation(t *testing.T) {
	for _, c := range model.Classes {
		if !validClass(c) {
			t.Errorf("class %q should be valid", c)
		}
	}
	for _, c := range []string{"4", "12", "", "7а", "abc"} {
		if validClass(c) {
			t.Errorf("class %q should be invalid", c)
		}
	}

	if !validClasses([]string{"5", "10"}) {
		t.Error("list of valid classes rejected")
	}
	if validClasses(nil) {
		t.Error("empty class list must be invalid")
	}
	if validClasses([]string{"5", "12"}) {
		t.Error("list with an invalid class must be rejected")
	}
}

func TestParseClasses(t *testing.T) {
	got := parseClasses(" 5, 7 ,11")
	want := []string{"5", "7", "11"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("parseClasses = %v, want %v", got, want)
	}
}

func TestValidOptions(t *testing.T) {
	tests := []struct {
		name    string
		options []string
		correct string
		want    bool
	}{
		{"one distractor", []string{"3"}, "4", true},
		{"six distractors", []string{"1", "2", "3", "5", "6", "7"}, "4", true},
		{"no distractors", nil, "4", false},
		{"too many", []string{"1", "2", "3", "5", "6", "7", "8"}, "4", false},
		{"duplicate distractor", []string{"3", "3"}, "4", false},
		{"distractor equals answer", []string{"4"}, "4", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := validOptions(tt.options, tt.correct); got != tt.want {
				t.Errorf("validOptions(%v, %q) = %v, want %v", tt.options, tt.correct, got, tt.want)
			}
		})
	}
}

func TestParseOptions(t *testing.T) {
	got := parseOptions("3, , 5 ,6")
	want := []string{"3", "5", "6"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("parseOptions = %v, want %v", got, want)
	}
}

func TestValidTest(t *testing.T) {
	full := &model.Test{
		TeacherID: "t1",
		Subject:   "Физика",
		Classes:   []string{"9"},
		Name:      "Оптика",
		Questions: []model.Question{{Type: model.QuestionOpen, Text: "q", CorrectAnswer: "a"}},
	}
	if !validTest(full) {
		t.Error("complete draft rejected")
	}

	broken := *full
	broken.Questions = nil
	if validTest(&broken) {
		t.Error("draft without questions accepted")
	}

	broken = *full
	broken.TeacherID = ""
	if validTest(&broken) {
		t.Error("draft without an author accepted")
	}
}
