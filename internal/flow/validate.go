package flow

import (
	"regexp"
	"strings"

	"github.com/schooltest/quizbot/internal/model"
)

const (
	maxTestNameLen  = 100
	maxInputLen     = 200
	maxLongInputLen = 1000
)

var (
	classPattern    = regexp.MustCompile(`^(5|6|7|8|9|10|11)$`)
	unsafeChars     = regexp.MustCompile(`[<>|&]`)
	whitespaceRuns  = regexp.MustCompile(`\s+`)
	disallowedRunes = regexp.MustCompile(`[^\p{L}\p{N}\s.,!?_-]`)
)

// sanitizeInput normalizes authoring input: drops markup-hostile
// characters, collapses whitespace and caps the length.
func sanitizeInput(text string) string {
	text = unsafeChars.ReplaceAllString(text, "")
	text = whitespaceRuns.ReplaceAllString(strings.TrimSpace(text), " ")
	runes := []rune(text)
	if len(runes) > maxInputLen {
		runes = runes[:maxInputLen]
	}
	return string(runes)
}

// sanitizeLongInput normalizes free-form review input: keeps letters,
// digits, whitespace and basic punctuation, caps at a longer limit.
func sanitizeLongInput(text string) string {
	text = disallowedRunes.ReplaceAllString(text, "")
	text = strings.TrimSpace(text)
	runes := []rune(text)
	if len(runes) > maxLongInputLen {
		runes = runes[:maxLongInputLen]
	}
	return string(runes)
}

// validClass reports whether a single class label is one of 5..11.
func validClass(class string) bool {
	return classPattern.MatchString(strings.TrimSpace(class))
}

// validClasses reports whether every label in a non-empty list is
// valid.
func validClasses(classes []string) bool {
	if len(classes) == 0 {
		return false
	}
	for _, c := range classes {
		if !validClass(c) {
			return false
		}
	}
	return true
}

// parseClasses splits comma-separated class input.
func parseClasses(input string) []string {
	parts := strings.Split(input, ",")
	classes := make([]string, 0, len(parts))
	for _, p := range parts {
		classes = append(classes, strings.TrimSpace(p))
	}
	return classes
}

// validTestName enforces the name length cap.
func validTestName(name string) bool {
	return len([]rune(name)) <= maxTestNameLen
}

// validOptions checks a closed question's extra options together with
// its correct answer: 2..7 choices in total, all distinct.
func validOptions(options []string, correctAnswer string) bool {
	all := append(append([]string{}, options...), correctAnswer)
	if len(all) < 2 || len(all) > 7 {
		return false
	}
	seen := map[string]struct{}{}
	for _, o := range all {
		if _, dup := seen[o]; dup {
			return false
		}
		seen[o] = struct{}{}
	}
	return true
}

// parseOptions splits comma-separated options, dropping empty entries.
func parseOptions(input string) []string {
	parts := strings.Split(input, ",")
	options := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			options = append(options, p)
		}
	}
	return options
}

// validTest checks the completeness of a draft before it is committed.
func validTest(t *model.Test) bool {
	return t.Subject != "" &&
		len(t.Classes) > 0 &&
		t.Name != "" &&
		len(t.Questions) > 0 &&
		t.TeacherID != ""
}
