package response

// ErrCode is a typed error code enum for consistent API error identification.
type ErrCode string

const (
	// ─── Validation ────────────────────────────────────────────────────
	ErrValidation     ErrCode = "VALIDATION_ERROR"
	ErrInvalidID      ErrCode = "INVALID_ID"
	ErrInvalidPayload ErrCode = "INVALID_PAYLOAD"

	// ─── Resources ─────────────────────────────────────────────────────
	ErrNotFound ErrCode = "NOT_FOUND"
	ErrConflict ErrCode = "CONFLICT"

	// ─── Test-specific ─────────────────────────────────────────────────
	ErrNoQuestions        ErrCode = "NO_QUESTIONS"
	ErrInvalidAnswerType  ErrCode = "INVALID_ANSWER_TYPE"
	ErrAppealWindowClosed ErrCode = "APPEAL_WINDOW_CLOSED"

	// ─── Server ────────────────────────────────────────────────────────
	ErrInternal ErrCode = "INTERNAL_ERROR"
)

// GetMessage returns a human-readable message for a given error code.
func GetMessage(code ErrCode) string {
	switch code {
	// ─── Validation ────────────────────────────────────────────────────
	case ErrValidation:
		return "Проверка данных не пройдена. Проверьте введённые значения."
	case ErrInvalidID:
		return "Неверный формат идентификатора."
	case ErrInvalidPayload:
		return "Неверный формат тела запроса."

	// ─── Resources ─────────────────────────────────────────────────────
	case ErrNotFound:
		return "Ресурс не найден."
	case ErrConflict:
		return "Ресурс уже существует."

	// ─── Test-specific ─────────────────────────────────────────────────
	case ErrNoQuestions:
		return "Тест не содержит вопросов."
	case ErrInvalidAnswerType:
		return "Неизвестный тип вопроса."
	case ErrAppealWindowClosed:
		return "Срок подачи апелляции истёк."

	// ─── Server ────────────────────────────────────────────────────────
	case ErrInternal:
		return "Внутренняя ошибка сервера."
	default:
		return "Произошла непредвиденная ошибка."
	}
}
