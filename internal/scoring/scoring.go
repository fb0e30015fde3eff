package scoring

import "strings"

// MaxQuestionScore is the score a fully correct answer earns.
const MaxQuestionScore = 10

// ModelCommentPrefix is prepended to automated grader comments when
// they are shown to the student. Stored comments carry no prefix.
const ModelCommentPrefix = "Комментарий модели-проверяющего (Grok-3): "

// Band comments for open answers, picked by score thresholds.
const (
	commentExcellent = "Ответ близок к правильному, отличная работа!"
	commentPartial   = "Ответ частично правильный, но требует уточнений."
	commentWeak      = "Ответ имеет некоторое сходство, но нуждается в доработке."
	commentWrong     = "Ответ не соответствует правильному, требуется более точное объяснение."
)

// ScoreClosed grades a multiple-choice answer: the full score on exact
// match, zero otherwise.
func ScoreClosed(answer, correctAnswer string) int {
	if answer == correctAnswer {
		return MaxQuestionScore
	}
	return 0
}

// ScoreOpen grades a free-text answer by textual similarity against
// the reference answer, both lower-cased. The returned score is
// floor(similarity*10) clamped to [0,10]; the comment names the band
// the score falls into, without the display prefix.
func ScoreOpen(answer, correctAnswer string) (int, string) {
	sim := Ratio(strings.ToLower(answer), strings.ToLower(correctAnswer))
	score := int(sim * MaxQuestionScore)
	if score < 0 {
		score = 0
	}
	if score > MaxQuestionScore {
		score = MaxQuestionScore
	}

	var comment string
	switch {
	case score >= 8:
		comment = commentExcellent
	case score >= 5:
		comment = commentPartial
	case score >= 2:
		comment = commentWeak
	default:
		comment = commentWrong
	}
	return score, comment
}
