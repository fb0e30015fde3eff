package flow

import "github.com/schooltest/quizbot/internal/chat"

// Shared user-facing texts. Flow-specific catalogs live next to their
// flow.
const (
	msgWelcome        = "🎓 Добро пожаловать! Выберите режим:"
	msgRoleReturn     = "🎓 Возвращаемся к выбору роли..."
	msgStudentMenu    = "🏠 Меню ученика:"
	msgTeacherMenu    = "🏠 Меню учителя:"
	msgCanceled       = "❌ Действие отменено"
	msgGenericFailure = "⚠ Произошла ошибка. Попробуйте снова позже."
	msgErrorRestart   = "❌ Произошла ошибка. Пожалуйста, начните заново."

	msgTestNotFound   = "❌ Тест не найден."
	msgResultNotFound = "❌ Результат не найден."
)

func roleKeyboard() chat.Keyboard {
	return chat.Keyboard{
		chat.Row(
			chat.Button{Label: "Учащийся", Data: "student"},
			chat.Button{Label: "Учитель", Data: "teacher"},
		),
	}
}

func studentMenuKeyboard() chat.Keyboard {
	return chat.Keyboard{
		chat.Row(chat.Button{Label: "📝 Начать проверочную работу", Data: "start_test"}),
		chat.Row(chat.Button{Label: "📊 Посмотреть работы", Data: "view_results"}),
		chat.Row(chat.BackButton()),
	}
}

func teacherMenuKeyboard() chat.Keyboard {
	return chat.Keyboard{
		chat.Row(chat.Button{Label: "📝 Создать тест", Data: "create_test"}),
		chat.Row(chat.Button{Label: "📊 Проверить работы", Data: "check_results"}),
		chat.Row(chat.BackButton()),
	}
}

func backKeyboard() chat.Keyboard {
	return chat.Keyboard{chat.Row(chat.BackButton())}
}
