package flow

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/schooltest/quizbot/internal/chat"
	"github.com/schooltest/quizbot/internal/model"
	"github.com/schooltest/quizbot/internal/session"
	"github.com/schooltest/quizbot/internal/storage"
)

// stateAuthorDraft keys the in-progress test draft in session data. It
// never appears on the state stack.
const stateAuthorDraft session.State = "author_draft"

const (
	msgAuthorSelectSubject = "📚 Выберите предмет для теста:"
	msgAuthorInvalidClass  = "❌ Неверный формат! Пример: 5,6,7\nВведите классы заново:"
	msgAuthorInvalidName   = "❌ Слишком длинное название! Макс. 100 символов\nВведите название заново:"
	msgAuthorNoAnswer      = "❌ Введите правильный ответ перед продолжением!"
	msgAuthorBadOptions    = "❌ Нужно от 1 до 6 уникальных вариантов, не включая правильный ответ!\nВведите варианты заново:"
	msgAuthorQuestionAdded = "✅ Вопрос успешно добавлен!"
	msgAuthorNoQuestions   = "❌ Добавьте хотя бы один вопрос!"
	msgAuthorLimitReached  = "❌ Достигнут лимит вопросов: не более 20 в одном тесте."
	msgAuthorSaved         = "✅ Изменения сохранены!"
	msgAuthorSaving        = "⏳ Сохраняем тест в базу данных..."
)

// authoring drives the teacher's test-creation conversation.
type authoring struct {
	store  *storage.Store
	logger zerolog.Logger
}

func newAuthoring(store *storage.Store, logger zerolog.Logger) *authoring {
	return &authoring{store: store, logger: logger.With().Str("flow", "authoring").Logger()}
}

func (a *authoring) register(e *Engine) {
	e.register(StateAuthorSubject, a.handleSubject)
	e.register(StateAuthorClasses, a.handleClasses)
	e.register(StateAuthorName, a.handleName)
	e.register(StateAuthorQuestionType, a.handleQuestionType)
	e.register(StateAuthorQuestionText, a.handleQuestionText)
	e.register(StateAuthorCorrectAnswer, a.handleCorrectAnswer)
	e.register(StateAuthorOptions, a.handleOptions)
	e.register(StateAuthorCheckComment, a.handleCheckComment)
	e.register(StateAuthorFinishQuestion, a.handleFinishQuestion)
	e.register(StateAuthorEditQuestions, a.handleEditQuestions)
	e.register(StateAuthorEditPart, a.handleEditPart)
	e.register(StateAuthorEditContent, a.handleEditContent)
	e.register(StateAuthorGlobalComment, a.handleGlobalComment)
	e.register(StateAuthorFinalConfirm, a.handleFinalConfirm)
	e.register(StateAuthorEditName, a.handleEditName)
	e.register(StateAuthorEditSubject, a.handleEditSubject)
	e.register(StateAuthorEditClasses, a.handleEditClasses)
	e.register(StateAuthorEditGlobComment, a.handleEditGlobalComment)
}

// draft returns the in-progress test, creating it on first use.
func (a *authoring) draft(s *session.Session) *model.Test {
	if v, ok := s.Get(stateAuthorDraft, "test"); ok {
		if t, ok := v.(*model.Test); ok {
			return t
		}
	}
	t := &model.Test{Classes: []string{}, Questions: []model.Question{}}
	s.Set(stateAuthorDraft, "test", t)
	return t
}

// resetDraft drops the draft and every authoring step's saved input.
func (a *authoring) resetDraft(s *session.Session) {
	for _, st := range []session.State{
		stateAuthorDraft, StateAuthorSubject, StateAuthorClasses, StateAuthorName,
		StateAuthorQuestionType, StateAuthorQuestionText, StateAuthorCorrectAnswer,
		StateAuthorOptions, StateAuthorCheckComment, StateAuthorGlobalComment,
	} {
		s.ClearState(st)
	}
}

// prefill renders a previously entered value under a prompt.
func prefill(value string) string {
	if value == "" {
		return ""
	}
	return "Ранее введено: " + value
}

// popTo unwinds the stack until target is current, pushing it if the
// unwind never finds it.
func popTo(s *session.Session, target session.State) {
	for s.Current() != "" && s.Current() != target {
		s.Pop()
	}
	if s.Current() == "" {
		s.Push(target)
	}
}

// ─────────────────────────────────────────────
// Keyboards
// ─────────────────────────────────────────────

func subjectKeyboard() chat.Keyboard {
	var kb chat.Keyboard
	for i := 0; i < len(model.Subjects); i += 2 {
		row := []chat.Button{{Label: model.Subjects[i], Data: "subj_" + model.Subjects[i]}}
		if i+1 < len(model.Subjects) {
			row = append(row, chat.Button{Label: model.Subjects[i+1], Data: "subj_" + model.Subjects[i+1]})
		}
		kb = append(kb, row)
	}
	return append(kb, chat.Row(chat.BackButton()))
}

// inputKeyboard shows a forward button only when a previous value can
// be reused.
func inputKeyboard(hasValue bool) chat.Keyboard {
	var kb chat.Keyboard
	if hasValue {
		kb = append(kb, chat.Row(chat.Button{Label: "▶ Вперед", Data: "next"}))
	}
	return append(kb, chat.Row(chat.BackButton()))
}

func questionTypeKeyboard() chat.Keyboard {
	return chat.Keyboard{
		chat.Row(
			chat.Button{Label: "Тестовый вопрос", Data: "type_test"},
			chat.Button{Label: "Развернутый ответ", Data: "type_open"},
		),
		chat.Row(chat.Button{Label: "🏁 Завершить создание", Data: "finish_test"}),
		chat.Row(chat.BackButton()),
	}
}

func finalizationKeyboard() chat.Keyboard {
	return chat.Keyboard{
		chat.Row(
			chat.Button{Label: "➕ Добавить вопрос", Data: "add_another"},
			chat.Button{Label: "✏️ Редактировать вопросы", Data: "edit_questions"},
		),
		chat.Row(chat.Button{Label: "🏁 Завершить создание", Data: "finish_test"}),
		chat.Row(chat.BackButton()),
	}
}

func questionListKeyboard(questions []model.Question) chat.Keyboard {
	var kb chat.Keyboard
	for i, q := range questions {
		kb = append(kb, chat.Row(chat.Button{
			Label: fmt.Sprintf("Вопрос %d (%s)", i+1, q.Type),
			Data:  fmt.Sprintf("edit_%d", i),
		}))
	}
	kb = append(kb,
		chat.Row(
			chat.Button{Label: "➕ Добавить вопрос", Data: "add_another"},
			chat.Button{Label: "🏁 Завершить создание", Data: "finish_test"},
		),
		chat.Row(chat.BackButton()),
	)
	return kb
}

func editQuestionKeyboard(qType model.QuestionType) chat.Keyboard {
	third := chat.Button{Label: "💬 Комментарий", Data: "edit_comment"}
	if qType == model.QuestionClosed {
		third = chat.Button{Label: "📋 Варианты ответов", Data: "edit_options"}
	}
	return chat.Keyboard{
		chat.Row(
			chat.Button{Label: "📝 Текст вопроса", Data: "edit_text"},
			chat.Button{Label: "✅ Правильный ответ", Data: "edit_correct"},
		),
		chat.Row(third),
		chat.Row(chat.BackButton()),
	}
}

func finalConfirmKeyboard() chat.Keyboard {
	return chat.Keyboard{
		chat.Row(
			chat.Button{Label: "✏️ Редактировать название", Data: "edit_name"},
			chat.Button{Label: "📚 Изменить предмет", Data: "edit_subject"},
		),
		chat.Row(
			chat.Button{Label: "🏫 Изменить классы", Data: "edit_classes"},
			chat.Button{Label: "❓ Редактировать вопросы", Data: "edit_questions"},
		),
		chat.Row(chat.Button{Label: "💬 Изменить комментарий", Data: "edit_global_comment"}),
		chat.Row(chat.Button{Label: "✅ Подтвердить создание", Data: "confirm_test"}),
		chat.Row(chat.BackButton()),
	}
}

// ─────────────────────────────────────────────
// Screens
// ─────────────────────────────────────────────

func classesPrompt(subject string, classes []string) string {
	return fmt.Sprintf("✅ Предмет: %s\n🏫 Введите классы через запятую (например, 5,6,7):\n%s",
		subject, prefill(strings.Join(classes, ", ")))
}

func namePrompt(classes []string, name string) string {
	return fmt.Sprintf("🏫 Классы: %s\n✏️ Введите название теста:\n%s",
		strings.Join(classes, ", "), prefill(name))
}

func questionTypePrompt(name string) string {
	return fmt.Sprintf(
		"✅ Название теста: %s\n📝 Инструкция по созданию теста:\n\n"+
			"1. Выберите тип вопроса\n2. Следуйте подсказкам для каждого типа\n"+
			"3. Добавляйте необходимое количество вопросов\n\n❓ Выберите тип вопроса:", name)
}

func questionTextPrompt(current string) string {
	return "✍️ Введите текст вопроса:\n" + prefill(current)
}

func correctAnswerPrompt(q *model.Question, current string) string {
	action := "📝 Введите эталонный ответ:"
	if q.Type == model.QuestionClosed {
		action = "✅ Введите ПРАВИЛЬНЫЙ ответ:"
	}
	return fmt.Sprintf("✍️ Вопрос:\n%s\n%s:\n%s", q.Text, action, prefill(current))
}

func optionsPrompt(correctAnswer string, options []string) string {
	return fmt.Sprintf("✅ Правильный ответ:\n%s\n📋 Введите дополнительные варианты ответов через запятую (1-6):\n%s",
		correctAnswer, prefill(strings.Join(options, ", ")))
}

func checkCommentPrompt(correctAnswer, current string) string {
	return fmt.Sprintf("✅ Эталонный ответ:\n%s\n💡 Введите комментарий для проверки:\n%s",
		correctAnswer, prefill(current))
}

func questionListPrompt(t *model.Test) string {
	return fmt.Sprintf("📋 Текущий тест: %s\nПредмет: %s\nКлассы: %s\n\nСписок вопросов:",
		t.Name, t.Subject, strings.Join(t.Classes, ", "))
}

func globalCommentPrompt(current string) string {
	return "💡 Введите глобальный комментарий к тесту (или /skip чтобы пропустить):\n" + prefill(current)
}

func finalConfirmationPrompt(t *model.Test) string {
	comment := t.GlobalComment
	if comment == "" {
		comment = "не добавлен"
	}
	return fmt.Sprintf(
		"📋 Итоговые данные теста:\n\nНазвание: %s\nПредмет: %s\nКлассы: %s\nВопросов: %d\nГлобальный комментарий: %s",
		t.Name, t.Subject, strings.Join(t.Classes, ", "), len(t.Questions), comment)
}

// ─────────────────────────────────────────────
// Handlers
// ─────────────────────────────────────────────

// start resets any stale draft and shows the subject screen.
func (a *authoring) start(ctx context.Context, c *Ctx) error {
	a.resetDraft(c.Session)
	draft := a.draft(c.Session)
	draft.TeacherID = c.Update.UserID
	c.Session.Push(StateAuthorSubject)
	return c.Edit(ctx, msgAuthorSelectSubject, subjectKeyboard())
}

func (a *authoring) handleSubject(ctx context.Context, c *Ctx) error {
	s := c.Session
	switch {
	case strings.HasPrefix(c.Update.Callback, "subj_"):
		subject := sanitizeInput(strings.TrimPrefix(c.Update.Callback, "subj_"))
		s.Set(StateAuthorSubject, "subject", subject)
		draft := a.draft(s)
		draft.Subject = subject
		s.Push(StateAuthorClasses)
		return c.Edit(ctx, classesPrompt(subject, draft.Classes), inputKeyboard(len(draft.Classes) > 0))
	case c.Update.Callback == "back":
		a.resetDraft(s)
		popTo(s, StateTeacherMain)
		return c.Edit(ctx, msgTeacherMenu, teacherMenuKeyboard())
	default:
		return c.Edit(ctx, msgAuthorSelectSubject, subjectKeyboard())
	}
}

func (a *authoring) handleClasses(ctx context.Context, c *Ctx) error {
	s := c.Session
	draft := a.draft(s)
	switch {
	case c.Update.Text != "":
		classes := parseClasses(sanitizeInput(c.Update.Text))
		if !validClasses(classes) {
			return c.Reply(ctx, msgAuthorInvalidClass, backKeyboard())
		}
		s.Set(StateAuthorClasses, "classes", classes)
		draft.Classes = classes
		s.Push(StateAuthorName)
		return c.Reply(ctx, namePrompt(classes, ""), inputKeyboard(false))
	case c.Update.Callback == "next":
		if len(draft.Classes) == 0 {
			return c.Edit(ctx, msgAuthorInvalidClass, backKeyboard())
		}
		s.Push(StateAuthorName)
		name := s.GetString(StateAuthorName, "name", "")
		return c.Edit(ctx, namePrompt(draft.Classes, name), inputKeyboard(name != ""))
	case c.Update.Callback == "back":
		s.Pop()
		return c.Edit(ctx, msgAuthorSelectSubject, subjectKeyboard())
	}
	return nil
}

func (a *authoring) handleName(ctx context.Context, c *Ctx) error {
	s := c.Session
	draft := a.draft(s)
	switch {
	case c.Update.Text != "":
		name := sanitizeInput(c.Update.Text)
		if !validTestName(name) {
			return c.Reply(ctx, msgAuthorInvalidName, backKeyboard())
		}
		s.Set(StateAuthorName, "name", name)
		draft.Name = name
		s.Push(StateAuthorQuestionType)
		return c.Reply(ctx, questionTypePrompt(name), questionTypeKeyboard())
	case c.Update.Callback == "next":
		name := s.GetString(StateAuthorName, "name", "")
		if name == "" {
			return c.Edit(ctx, msgAuthorInvalidName, backKeyboard())
		}
		draft.Name = name
		s.Push(StateAuthorQuestionType)
		return c.Edit(ctx, questionTypePrompt(name), questionTypeKeyboard())
	case c.Update.Callback == "back":
		s.Pop()
		return c.Edit(ctx, classesPrompt(draft.Subject, draft.Classes), inputKeyboard(len(draft.Classes) > 0))
	}
	return nil
}

func (a *authoring) handleQuestionType(ctx context.Context, c *Ctx) error {
	s := c.Session
	draft := a.draft(s)
	switch {
	case strings.HasPrefix(c.Update.Callback, "type_"):
		if len(draft.Questions) >= model.MaxQuestions {
			return c.Edit(ctx, msgAuthorLimitReached, questionTypeKeyboard())
		}
		qType := model.QuestionType(strings.TrimPrefix(c.Update.Callback, "type_"))
		draft.Questions = append(draft.Questions, model.Question{Type: qType})
		s.Push(StateAuthorQuestionText)
		text := s.GetString(StateAuthorQuestionText, "question_text", "")
		return c.Edit(ctx, questionTextPrompt(text), inputKeyboard(text != ""))
	case c.Update.Callback == "finish_test":
		return a.finishCreation(ctx, c)
	case c.Update.Callback == "back":
		s.Pop()
		return c.Edit(ctx, namePrompt(draft.Classes, draft.Name), inputKeyboard(draft.Name != ""))
	}
	return nil
}

// currentQuestion returns the question being authored, or nil when the
// draft has none yet.
func (a *authoring) currentQuestion(s *session.Session) *model.Question {
	draft := a.draft(s)
	if len(draft.Questions) == 0 {
		return nil
	}
	return &draft.Questions[len(draft.Questions)-1]
}

func (a *authoring) handleQuestionText(ctx context.Context, c *Ctx) error {
	s := c.Session
	q := a.currentQuestion(s)
	if q == nil {
		return c.Edit(ctx, msgErrorRestart, backKeyboard())
	}
	switch {
	case c.Update.Text != "":
		text := sanitizeInput(c.Update.Text)
		s.Set(StateAuthorQuestionText, "question_text", text)
		q.Text = text
		s.Push(StateAuthorCorrectAnswer)
		answer := s.GetString(StateAuthorCorrectAnswer, "correct_answer", "")
		return c.Reply(ctx, correctAnswerPrompt(q, answer), inputKeyboard(answer != ""))
	case c.Update.Callback == "next":
		text := s.GetString(StateAuthorQuestionText, "question_text", "")
		if text == "" {
			return c.Edit(ctx, questionTextPrompt(""), backKeyboard())
		}
		q.Text = text
		s.Push(StateAuthorCorrectAnswer)
		answer := s.GetString(StateAuthorCorrectAnswer, "correct_answer", "")
		return c.Edit(ctx, correctAnswerPrompt(q, answer), inputKeyboard(answer != ""))
	case c.Update.Callback == "back":
		s.Pop()
		draft := a.draft(s)
		if q.Text == "" {
			draft.Questions = draft.Questions[:len(draft.Questions)-1]
		}
		return c.Edit(ctx, questionTypePrompt(draft.Name), questionTypeKeyboard())
	}
	return nil
}

func (a *authoring) handleCorrectAnswer(ctx context.Context, c *Ctx) error {
	s := c.Session
	q := a.currentQuestion(s)
	if q == nil {
		return c.Edit(ctx, msgErrorRestart, backKeyboard())
	}
	advance := func(answer string) error {
		q.CorrectAnswer = answer
		if q.Type == model.QuestionClosed {
			s.Push(StateAuthorOptions)
			options, _ := s.Get(StateAuthorOptions, "options")
			saved, _ := options.([]string)
			return c.Edit(ctx, optionsPrompt(answer, saved), inputKeyboard(len(saved) > 0))
		}
		s.Push(StateAuthorCheckComment)
		comment := s.GetString(StateAuthorCheckComment, "comment", "")
		return c.Edit(ctx, checkCommentPrompt(answer, comment), inputKeyboard(comment != ""))
	}
	switch {
	case c.Update.Text != "":
		answer := sanitizeInput(c.Update.Text)
		s.Set(StateAuthorCorrectAnswer, "correct_answer", answer)
		return advance(answer)
	case c.Update.Callback == "next":
		answer := s.GetString(StateAuthorCorrectAnswer, "correct_answer", "")
		if answer == "" {
			return c.Edit(ctx, msgAuthorNoAnswer, backKeyboard())
		}
		return advance(answer)
	case c.Update.Callback == "back":
		s.Pop()
		text := s.GetString(StateAuthorQuestionText, "question_text", "")
		return c.Edit(ctx, questionTextPrompt(text), inputKeyboard(text != ""))
	}
	return nil
}

func (a *authoring) handleOptions(ctx context.Context, c *Ctx) error {
	s := c.Session
	q := a.currentQuestion(s)
	if q == nil {
		return c.Edit(ctx, msgErrorRestart, backKeyboard())
	}
	switch {
	case c.Update.Text != "":
		options := parseOptions(sanitizeInput(c.Update.Text))
		if !validOptions(options, q.CorrectAnswer) {
			return c.Reply(ctx, msgAuthorBadOptions, backKeyboard())
		}
		s.Set(StateAuthorOptions, "options", options)
		q.Options = append(append([]string{}, options...), q.CorrectAnswer)
		return a.finalizeQuestion(ctx, c)
	case c.Update.Callback == "next":
		v, _ := s.Get(StateAuthorOptions, "options")
		options, _ := v.([]string)
		if !validOptions(options, q.CorrectAnswer) {
			return c.Edit(ctx, msgAuthorBadOptions, backKeyboard())
		}
		q.Options = append(append([]string{}, options...), q.CorrectAnswer)
		return a.finalizeQuestion(ctx, c)
	case c.Update.Callback == "back":
		s.Pop()
		answer := s.GetString(StateAuthorCorrectAnswer, "correct_answer", "")
		return c.Edit(ctx, correctAnswerPrompt(q, answer), inputKeyboard(answer != ""))
	}
	return nil
}

func (a *authoring) handleCheckComment(ctx context.Context, c *Ctx) error {
	s := c.Session
	q := a.currentQuestion(s)
	if q == nil {
		return c.Edit(ctx, msgErrorRestart, backKeyboard())
	}
	switch {
	case c.Update.Text != "":
		comment := sanitizeInput(c.Update.Text)
		s.Set(StateAuthorCheckComment, "comment", comment)
		q.CheckComment = comment
		return a.finalizeQuestion(ctx, c)
	case c.Update.Callback == "next":
		comment := s.GetString(StateAuthorCheckComment, "comment", "")
		if comment == "" {
			return c.Edit(ctx, checkCommentPrompt(q.CorrectAnswer, ""), backKeyboard())
		}
		q.CheckComment = comment
		return a.finalizeQuestion(ctx, c)
	case c.Update.Callback == "back":
		s.Pop()
		answer := s.GetString(StateAuthorCorrectAnswer, "correct_answer", "")
		return c.Edit(ctx, correctAnswerPrompt(q, answer), inputKeyboard(answer != ""))
	}
	return nil
}

// finalizeQuestion commits the current question and clears the
// per-question draft inputs so the next question starts clean.
func (a *authoring) finalizeQuestion(ctx context.Context, c *Ctx) error {
	s := c.Session
	s.Push(StateAuthorFinishQuestion)
	for _, st := range []session.State{
		StateAuthorQuestionType, StateAuthorQuestionText,
		StateAuthorCorrectAnswer, StateAuthorOptions, StateAuthorCheckComment,
	} {
		s.ClearState(st)
	}
	return c.Edit(ctx, msgAuthorQuestionAdded, finalizationKeyboard())
}

func (a *authoring) handleFinishQuestion(ctx context.Context, c *Ctx) error {
	switch c.Update.Callback {
	case "finish_test":
		return a.finishCreation(ctx, c)
	case "add_another":
		popTo(c.Session, StateAuthorQuestionType)
		return c.Edit(ctx, questionTypePrompt(a.draft(c.Session).Name), questionTypeKeyboard())
	case "edit_questions":
		return a.showQuestionList(ctx, c)
	case "back":
		return c.Edit(ctx, msgAuthorQuestionAdded, finalizationKeyboard())
	}
	return nil
}

func (a *authoring) showQuestionList(ctx context.Context, c *Ctx) error {
	draft := a.draft(c.Session)
	if len(draft.Questions) == 0 {
		popTo(c.Session, StateAuthorQuestionType)
		return c.Edit(ctx, msgAuthorNoQuestions, questionTypeKeyboard())
	}
	c.Session.Push(StateAuthorEditQuestions)
	return c.Edit(ctx, questionListPrompt(draft), questionListKeyboard(draft.Questions))
}

func (a *authoring) handleEditQuestions(ctx context.Context, c *Ctx) error {
	s := c.Session
	draft := a.draft(s)
	switch {
	case strings.HasPrefix(c.Update.Callback, "edit_"):
		idx, err := strconv.Atoi(strings.TrimPrefix(c.Update.Callback, "edit_"))
		if err != nil || idx < 0 || idx >= len(draft.Questions) {
			return c.Edit(ctx, msgErrorRestart, backKeyboard())
		}
		s.Set(stateAuthorDraft, "editing_idx", idx)
		s.Push(StateAuthorEditPart)
		return c.Edit(ctx, fmt.Sprintf("✏️ Редактирование вопроса %d", idx+1), editQuestionKeyboard(draft.Questions[idx].Type))
	case c.Update.Callback == "add_another":
		popTo(s, StateAuthorQuestionType)
		return c.Edit(ctx, questionTypePrompt(draft.Name), questionTypeKeyboard())
	case c.Update.Callback == "finish_test":
		return a.finishCreation(ctx, c)
	case c.Update.Callback == "back":
		popTo(s, StateAuthorFinishQuestion)
		return c.Edit(ctx, msgAuthorQuestionAdded, finalizationKeyboard())
	}
	return nil
}

var editPartLabels = map[string]string{
	"text":    "текст вопроса",
	"correct": "правильный ответ",
	"options": "варианты ответов",
	"comment": "комментарий",
}

// editingQuestion resolves the question picked on the edit list.
func (a *authoring) editingQuestion(s *session.Session) (*model.Question, int) {
	draft := a.draft(s)
	idx := s.GetInt(stateAuthorDraft, "editing_idx", -1)
	if idx < 0 || idx >= len(draft.Questions) {
		return nil, -1
	}
	return &draft.Questions[idx], idx
}

func (a *authoring) handleEditPart(ctx context.Context, c *Ctx) error {
	s := c.Session
	q, _ := a.editingQuestion(s)
	if q == nil {
		return c.Edit(ctx, msgErrorRestart, backKeyboard())
	}
	switch {
	case strings.HasPrefix(c.Update.Callback, "edit_"):
		part := strings.TrimPrefix(c.Update.Callback, "edit_")
		label, ok := editPartLabels[part]
		if !ok {
			return c.Edit(ctx, msgErrorRestart, backKeyboard())
		}
		s.Set(stateAuthorDraft, "editing_part", part)
		current := ""
		switch part {
		case "text":
			current = q.Text
		case "correct":
			current = q.CorrectAnswer
		case "options":
			var extras []string
			for _, o := range q.Options {
				if o != q.CorrectAnswer {
					extras = append(extras, o)
				}
			}
			current = strings.Join(extras, ", ")
		case "comment":
			current = q.CheckComment
		}
		value := ""
		if current != "" {
			value = "Текущее значение: " + current
		}
		s.Push(StateAuthorEditContent)
		return c.Edit(ctx, fmt.Sprintf("Введите новый %s:\n%s", label, value), backKeyboard())
	case c.Update.Callback == "back":
		popTo(s, StateAuthorEditQuestions)
		return a.showQuestionList(ctx, c)
	}
	return nil
}

func (a *authoring) handleEditContent(ctx context.Context, c *Ctx) error {
	s := c.Session
	q, _ := a.editingQuestion(s)
	if q == nil {
		return c.Edit(ctx, msgErrorRestart, backKeyboard())
	}
	if c.Update.Callback == "back" {
		popTo(s, StateAuthorEditQuestions)
		return a.showQuestionList(ctx, c)
	}
	if c.Update.Text == "" {
		return nil
	}
	value := sanitizeInput(c.Update.Text)
	switch s.GetString(stateAuthorDraft, "editing_part", "") {
	case "options":
		options := parseOptions(value)
		if !validOptions(options, q.CorrectAnswer) {
			return c.Reply(ctx, msgAuthorBadOptions, backKeyboard())
		}
		q.Options = append(append([]string{}, options...), q.CorrectAnswer)
	case "text":
		q.Text = value
	case "correct":
		old := q.CorrectAnswer
		q.CorrectAnswer = value
		if q.Type == model.QuestionClosed && len(q.Options) > 0 {
			var kept []string
			for _, o := range q.Options {
				if o != old && o != value {
					kept = append(kept, o)
				}
			}
			q.Options = append(kept, value)
		}
	case "comment":
		q.CheckComment = value
	default:
		return c.Edit(ctx, msgErrorRestart, backKeyboard())
	}
	if err := c.Reply(ctx, msgAuthorSaved, nil); err != nil {
		return err
	}
	popTo(s, StateAuthorEditQuestions)
	return a.showQuestionList(ctx, c)
}

// finishCreation moves on to the global comment once at least one
// question exists.
func (a *authoring) finishCreation(ctx context.Context, c *Ctx) error {
	s := c.Session
	draft := a.draft(s)
	if len(draft.Questions) == 0 {
		popTo(s, StateAuthorQuestionType)
		return c.Edit(ctx, msgAuthorNoQuestions, questionTypeKeyboard())
	}
	s.Push(StateAuthorGlobalComment)
	comment := s.GetString(StateAuthorGlobalComment, "global_comment", "")
	return c.Edit(ctx, globalCommentPrompt(comment), backKeyboard())
}

func (a *authoring) applyGlobalComment(c *Ctx, input string) {
	draft := a.draft(c.Session)
	if strings.EqualFold(input, "/skip") {
		draft.GlobalComment = ""
		c.Session.Set(StateAuthorGlobalComment, "global_comment", "")
		return
	}
	draft.GlobalComment = input
	c.Session.Set(StateAuthorGlobalComment, "global_comment", input)
}

func (a *authoring) handleGlobalComment(ctx context.Context, c *Ctx) error {
	s := c.Session
	switch {
	case c.Update.Text != "":
		a.applyGlobalComment(c, sanitizeInput(c.Update.Text))
		return a.showFinalConfirmation(ctx, c)
	case c.Update.Callback == "next":
		a.draft(s).GlobalComment = s.GetString(StateAuthorGlobalComment, "global_comment", "")
		return a.showFinalConfirmation(ctx, c)
	case c.Update.Callback == "back":
		popTo(s, StateAuthorFinishQuestion)
		return c.Edit(ctx, msgAuthorQuestionAdded, finalizationKeyboard())
	}
	return nil
}

// showFinalConfirmation renders the summary screen, pushing its state
// only when it is not already current.
func (a *authoring) showFinalConfirmation(ctx context.Context, c *Ctx) error {
	s := c.Session
	if s.Current() != StateAuthorFinalConfirm {
		s.Push(StateAuthorFinalConfirm)
	}
	return c.Edit(ctx, finalConfirmationPrompt(a.draft(s)), finalConfirmKeyboard())
}

func (a *authoring) handleFinalConfirm(ctx context.Context, c *Ctx) error {
	s := c.Session
	draft := a.draft(s)
	switch c.Update.Callback {
	case "edit_name":
		s.Push(StateAuthorEditName)
		name := s.GetString(StateAuthorName, "name", "")
		return c.Edit(ctx, namePrompt(draft.Classes, name), inputKeyboard(name != ""))
	case "edit_subject":
		s.Push(StateAuthorEditSubject)
		return c.Edit(ctx, msgAuthorSelectSubject, subjectKeyboard())
	case "edit_classes":
		s.Push(StateAuthorEditClasses)
		return c.Edit(ctx, classesPrompt(draft.Subject, draft.Classes), inputKeyboard(len(draft.Classes) > 0))
	case "edit_questions":
		return a.showQuestionList(ctx, c)
	case "edit_global_comment":
		s.Push(StateAuthorEditGlobComment)
		comment := s.GetString(StateAuthorGlobalComment, "global_comment", "")
		return c.Edit(ctx, globalCommentPrompt(comment), backKeyboard())
	case "confirm_test":
		return a.commit(ctx, c)
	case "back":
		popTo(s, StateAuthorFinishQuestion)
		return c.Edit(ctx, msgAuthorQuestionAdded, finalizationKeyboard())
	}
	return nil
}

func (a *authoring) backToConfirmation(ctx context.Context, c *Ctx) error {
	popTo(c.Session, StateAuthorFinalConfirm)
	return a.showFinalConfirmation(ctx, c)
}

func (a *authoring) handleEditName(ctx context.Context, c *Ctx) error {
	s := c.Session
	switch {
	case c.Update.Text != "":
		name := sanitizeInput(c.Update.Text)
		if !validTestName(name) {
			return c.Reply(ctx, msgAuthorInvalidName, backKeyboard())
		}
		s.Set(StateAuthorName, "name", name)
		a.draft(s).Name = name
		return a.backToConfirmation(ctx, c)
	case c.Update.Callback == "next", c.Update.Callback == "back":
		return a.backToConfirmation(ctx, c)
	}
	return nil
}

func (a *authoring) handleEditSubject(ctx context.Context, c *Ctx) error {
	switch {
	case strings.HasPrefix(c.Update.Callback, "subj_"):
		subject := sanitizeInput(strings.TrimPrefix(c.Update.Callback, "subj_"))
		c.Session.Set(StateAuthorSubject, "subject", subject)
		a.draft(c.Session).Subject = subject
		return a.backToConfirmation(ctx, c)
	case c.Update.Callback == "back":
		return a.backToConfirmation(ctx, c)
	}
	return nil
}

func (a *authoring) handleEditClasses(ctx context.Context, c *Ctx) error {
	s := c.Session
	switch {
	case c.Update.Text != "":
		classes := parseClasses(sanitizeInput(c.Update.Text))
		if !validClasses(classes) {
			return c.Reply(ctx, msgAuthorInvalidClass, backKeyboard())
		}
		s.Set(StateAuthorClasses, "classes", classes)
		a.draft(s).Classes = classes
		return a.backToConfirmation(ctx, c)
	case c.Update.Callback == "next":
		if len(a.draft(s).Classes) == 0 {
			return c.Edit(ctx, msgAuthorInvalidClass, backKeyboard())
		}
		return a.backToConfirmation(ctx, c)
	case c.Update.Callback == "back":
		return a.backToConfirmation(ctx, c)
	}
	return nil
}

func (a *authoring) handleEditGlobalComment(ctx context.Context, c *Ctx) error {
	switch {
	case c.Update.Text != "":
		a.applyGlobalComment(c, sanitizeInput(c.Update.Text))
		return a.backToConfirmation(ctx, c)
	case c.Update.Callback == "next", c.Update.Callback == "back":
		return a.backToConfirmation(ctx, c)
	}
	return nil
}

// commit validates the finished draft and persists it.
func (a *authoring) commit(ctx context.Context, c *Ctx) error {
	s := c.Session
	draft := a.draft(s)
	if !validTest(draft) {
		return c.Edit(ctx, msgErrorRestart, backKeyboard())
	}
	if err := c.Edit(ctx, msgAuthorSaving, nil); err != nil {
		return err
	}
	if err := a.store.SaveTest(ctx, draft); err != nil {
		a.logger.Error().Err(err).Str("teacher_id", draft.TeacherID).Msg("failed to save test")
		return c.Reply(ctx, msgGenericFailure, finalConfirmKeyboard())
	}
	a.logger.Info().
		Str("test_id", draft.ID.String()).
		Str("teacher_id", draft.TeacherID).
		Int("questions", len(draft.Questions)).
		Msg("test created")
	if err := c.Reply(ctx, fmt.Sprintf("✅ Тест '%s' успешно создан!", draft.Name), nil); err != nil {
		return err
	}
	a.resetDraft(s)
	popTo(s, StateTeacherMain)
	return c.Reply(ctx, msgTeacherMenu, teacherMenuKeyboard())
}
