package scoring

import (
	"fmt"
	"math"
	"strings"

	"github.com/schooltest/quizbot/internal/model"
)

// MaxReportLen is the longest report a single chat message may carry.
const MaxReportLen = 4000

const reportTruncatedSuffix = "\n... (отчет урезан)"

// Report is the outcome of grading one finished attempt.
type Report struct {
	// Text is the full student-facing report, one block per question.
	Text string
	// Scores holds the 0..10 score per question index key.
	Scores map[string]float64
	// ModelComments holds the automated grader's remark per open
	// question index key, stored without the display prefix.
	ModelComments map[string]string
	Total         int
	Max           int
}

// Generate grades every question of the test against the given
// answers and builds the student-facing report. It is pure: identical
// inputs always produce identical output.
func Generate(test *model.Test, answers map[string]string) *Report {
	rep := &Report{
		Scores:        map[string]float64{},
		ModelComments: map[string]string{},
	}
	lines := []string{"📊 Результаты теста:"}

	for idx, q := range test.Questions {
		rep.Max += MaxQuestionScore
		key := model.QuestionKey(idx)
		answer, answered := answers[key]

		var status string
		var score int
		switch q.Type {
		case model.QuestionClosed:
			if answered && answer == q.CorrectAnswer {
				status = "✅ Верно (+10 баллов)"
				score = MaxQuestionScore
			} else {
				shown := answer
				if !answered {
					shown = "Не отвечен"
				}
				status = fmt.Sprintf("❌ Неверно\nПравильный ответ: %s\nВаш ответ: %s", q.CorrectAnswer, shown)
			}
		default:
			if !answered {
				status = "❌ Не отвечен"
			} else {
				var comment string
				score, comment = ScoreOpen(answer, q.CorrectAnswer)
				status = fmt.Sprintf("📝 Оценка: %d/10\nВаш ответ: %s\n%s%s", score, answer, ModelCommentPrefix, comment)
				rep.ModelComments[key] = comment
			}
		}

		rep.Total += score
		rep.Scores[key] = float64(score)
		lines = append(lines, fmt.Sprintf("**Вопрос %d:**\n%s", idx+1, status))
	}

	percentage := 0.0
	if rep.Max > 0 {
		percentage = float64(rep.Total) / float64(rep.Max) * 100
	}
	lines = append(lines, fmt.Sprintf("\n💡 Итоговый балл: %d/%d (%.1f%%)", rep.Total, rep.Max, percentage))
	lines = append(lines, "⚠ Это предварительная оценка. Итоговую оценку сообщит учитель.")

	rep.Text = strings.Join(lines, "\n")
	return rep
}

// Truncate shortens a report that would not fit into one chat message,
// marking the cut.
func Truncate(text string) string {
	runes := []rune(text)
	if len(runes) <= MaxReportLen {
		return text
	}
	return string(runes[:MaxReportLen-50]) + reportTruncatedSuffix
}

// DisplayOutOfFive converts an internal 0..10 score to the 0..5 grade
// scale results are presented in, rounding half away from zero.
func DisplayOutOfFive(score float64) string {
	return fmt.Sprintf("%d/5", int(math.Round(score/MaxQuestionScore*5)))
}
