package flow

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/schooltest/quizbot/internal/chat"
	"github.com/schooltest/quizbot/internal/model"
	"github.com/schooltest/quizbot/internal/scoring"
	"github.com/schooltest/quizbot/internal/session"
	"github.com/schooltest/quizbot/internal/storage"
)

// stateTakeScratch keys the in-progress attempt in session data.
const stateTakeScratch session.State = "take_scratch"

const (
	msgTakeSelectSubject = "📚 Выберите предмет:"
	msgTakeSelectClass   = "🏫 Выберите ваш класс:"
	msgTakeEmptyName     = "❌ Название теста не может быть пустым. Попробуйте ещё раз."
	msgTakeSearching     = "🔍 Поиск тестов..."
	msgTakeFoundTests    = "🔍 Найденные тесты:"
	msgTakeEmptyInfo     = "❌ ФИО и класс не могут быть пустыми. Попробуйте ещё раз."
	msgTakeEmptyAnswer   = "❌ Ответ не может быть пустым. Попробуйте ещё раз."
	msgTakeAppealExpired = "❌ Срок подачи апелляции (24 часа) истёк."
	msgTakeEmptyAppeal   = "❌ Комментарий не может быть пустым. Попробуйте ещё раз."
	msgTakeAppealFailed  = "❌ Ошибка при сохранении апелляции. Попробуйте снова."

	msgTakeInstructions = "📜 Инструкция:\n" +
		"1. Нажмите 'Начать' для старта теста\n" +
		"2. Используйте кнопки навигации\n" +
		"3. Для завершения нажмите 'Завершить'"

	appealWindowNotice = "\n\n⚠ Вы можете подать апелляцию в течение 24 часов"
)

// attempt is the student's in-progress test run.
type attempt struct {
	Test        *model.Test
	StudentInfo string
	Answers     map[string]string
	Idx         int
	ResultID    uuid.UUID
	CompletedAt time.Time
	AppealIdx   int
	Report      string
}

// taking drives the student's test-taking conversation.
type taking struct {
	store  *storage.Store
	logger zerolog.Logger
}

func newTaking(store *storage.Store, logger zerolog.Logger) *taking {
	return &taking{store: store, logger: logger.With().Str("flow", "taking").Logger()}
}

func (t *taking) register(e *Engine) {
	e.register(StateTakeSubject, t.handleSubject)
	e.register(StateTakeClass, t.handleClass)
	e.register(StateTakeTestName, t.handleTestName)
	e.register(StateTakeSelectTest, t.handleSelectTest)
	e.register(StateTakeStudentInfo, t.handleStudentInfo)
	e.register(StateTakeInstructions, t.handleInstructions)
	e.register(StateTakeAnswer, t.handleAnswer)
	e.register(StateTakeReview, t.handleReview)
	e.register(StateTakeAppealSelect, t.handleAppealSelect)
	e.register(StateTakeAppealComment, t.handleAppealComment)
}

func (t *taking) attempt(s *session.Session) *attempt {
	if v, ok := s.Get(stateTakeScratch, "attempt"); ok {
		if a, ok := v.(*attempt); ok {
			return a
		}
	}
	a := &attempt{Answers: map[string]string{}}
	s.Set(stateTakeScratch, "attempt", a)
	return a
}

func (t *taking) reset(s *session.Session) {
	for _, st := range []session.State{
		stateTakeScratch, StateTakeSubject, StateTakeClass, StateTakeTestName,
		StateTakeStudentInfo, StateTakeAnswer, StateTakeAppealComment,
	} {
		s.ClearState(st)
	}
}

// cancel resets the attempt and returns to the student menu.
func (t *taking) cancel(ctx context.Context, c *Ctx) error {
	t.reset(c.Session)
	popTo(c.Session, StateStudentMain)
	return c.Edit(ctx, msgStudentMenu, studentMenuKeyboard())
}

// ─────────────────────────────────────────────
// Test search and selection
// ─────────────────────────────────────────────

func (t *taking) start(ctx context.Context, c *Ctx) error {
	t.reset(c.Session)
	c.Session.Push(StateTakeSubject)
	var kb chat.Keyboard
	for _, subj := range model.Subjects {
		kb = append(kb, chat.Row(chat.Button{Label: subj, Data: "subj_" + subj}))
	}
	kb = append(kb, chat.Row(chat.BackButton()))
	return c.Edit(ctx, msgTakeSelectSubject, kb)
}

func classKeyboard() chat.Keyboard {
	var row []chat.Button
	for _, cls := range model.Classes {
		row = append(row, chat.Button{Label: cls, Data: "cls_" + cls})
	}
	return chat.Keyboard{row, chat.Row(chat.BackButton())}
}

func (t *taking) handleSubject(ctx context.Context, c *Ctx) error {
	s := c.Session
	switch {
	case strings.HasPrefix(c.Update.Callback, "subj_"):
		s.Set(StateTakeSubject, "subject", strings.TrimPrefix(c.Update.Callback, "subj_"))
		s.Push(StateTakeClass)
		return c.Edit(ctx, msgTakeSelectClass, classKeyboard())
	case c.Update.Callback == "back":
		return t.cancel(ctx, c)
	}
	return nil
}

func (t *taking) searchPrompt(s *session.Session) (string, chat.Keyboard) {
	name := s.GetString(StateTakeTestName, "test_name", "")
	text := "✏️ Введите название теста для поиска:\n" + prefill(name)
	return text, inputKeyboard(name != "")
}

func (t *taking) handleClass(ctx context.Context, c *Ctx) error {
	s := c.Session
	switch {
	case strings.HasPrefix(c.Update.Callback, "cls_"):
		s.Set(StateTakeClass, "class", strings.TrimPrefix(c.Update.Callback, "cls_"))
		s.Push(StateTakeTestName)
		text, kb := t.searchPrompt(s)
		return c.Edit(ctx, text, kb)
	case c.Update.Callback == "back":
		s.Pop()
		return t.start(ctx, c)
	}
	return nil
}

func (t *taking) handleTestName(ctx context.Context, c *Ctx) error {
	s := c.Session
	switch {
	case c.Update.Text != "":
		name := strings.TrimSpace(c.Update.Text)
		if name == "" {
			return c.Reply(ctx, msgTakeEmptyName, backKeyboard())
		}
		s.Set(StateTakeTestName, "test_name", name)
		return t.searchTests(ctx, c)
	case c.Update.Callback == "next":
		if s.GetString(StateTakeTestName, "test_name", "") == "" {
			return c.Edit(ctx, msgTakeEmptyName, backKeyboard())
		}
		if err := c.Edit(ctx, msgTakeSearching, nil); err != nil {
			return err
		}
		return t.searchTests(ctx, c)
	case c.Update.Callback == "back":
		s.Pop()
		return c.Edit(ctx, msgTakeSelectClass, classKeyboard())
	}
	return nil
}

// searchTests filters all stored tests by subject, class and name
// substring. An empty result loops back to the name prompt.
func (t *taking) searchTests(ctx context.Context, c *Ctx) error {
	s := c.Session
	name := s.GetString(StateTakeTestName, "test_name", "")
	class := s.GetString(StateTakeClass, "class", "")
	subject := s.GetString(StateTakeSubject, "subject", "")

	all, err := t.store.AllTests(ctx)
	if err != nil {
		return err
	}
	var found []model.Test
	for _, test := range all {
		if test.Subject != subject || !strings.Contains(strings.ToLower(test.Name), strings.ToLower(name)) {
			continue
		}
		for _, cls := range test.Classes {
			if cls == class {
				found = append(found, test)
				break
			}
		}
	}
	if len(found) == 0 {
		t.logger.Info().Str("subject", subject).Str("class", class).Str("name", name).Msg("no tests matched search")
		text := fmt.Sprintf(
			"❌ Тесты не найдены по параметрам:\n• Предмет: %s\n• Класс: %s\n• Название: %s\n\nПожалуйста, введите другое название:",
			subject, class, name)
		return c.Edit(ctx, text, backKeyboard())
	}

	var kb chat.Keyboard
	for _, test := range found {
		kb = append(kb, chat.Row(chat.Button{Label: test.Name, Data: "test_" + test.ID.String()}))
	}
	kb = append(kb, chat.Row(chat.BackButton()))
	s.Push(StateTakeSelectTest)
	return c.Edit(ctx, msgTakeFoundTests, kb)
}

func (t *taking) infoPrompt(s *session.Session) (string, chat.Keyboard) {
	info := s.GetString(StateTakeStudentInfo, "student_info", "")
	text := "📝 Введите ваше ФИО и класс:\n" + prefill(info)
	var kb chat.Keyboard
	if info != "" {
		kb = append(kb, chat.Row(chat.Button{Label: "▶ Подтвердить", Data: "confirm"}))
	}
	return text, append(kb, chat.Row(chat.BackButton()))
}

func (t *taking) handleSelectTest(ctx context.Context, c *Ctx) error {
	s := c.Session
	switch {
	case strings.HasPrefix(c.Update.Callback, "test_"):
		id, err := uuid.Parse(strings.TrimPrefix(c.Update.Callback, "test_"))
		if err != nil {
			return c.Edit(ctx, msgTestNotFound, backKeyboard())
		}
		test, err := t.store.TestByID(ctx, id)
		if err != nil {
			return c.Edit(ctx, msgTestNotFound, backKeyboard())
		}
		t.attempt(s).Test = test
		s.Push(StateTakeStudentInfo)
		text, kb := t.infoPrompt(s)
		return c.Edit(ctx, text, kb)
	case c.Update.Callback == "back":
		s.Pop()
		text, kb := t.searchPrompt(s)
		return c.Edit(ctx, text, kb)
	}
	return nil
}

func instructionsKeyboard() chat.Keyboard {
	return chat.Keyboard{chat.Row(
		chat.Button{Label: "◀ Назад", Data: "back"},
		chat.Button{Label: "Начать", Data: "start"},
	)}
}

func (t *taking) handleStudentInfo(ctx context.Context, c *Ctx) error {
	s := c.Session
	showInstructions := func() error {
		s.Push(StateTakeInstructions)
		return c.Edit(ctx, msgTakeInstructions, instructionsKeyboard())
	}
	switch {
	case c.Update.Text != "":
		info := strings.TrimSpace(c.Update.Text)
		if info == "" {
			return c.Reply(ctx, msgTakeEmptyInfo, backKeyboard())
		}
		s.Set(StateTakeStudentInfo, "student_info", info)
		t.attempt(s).StudentInfo = info
		return showInstructions()
	case c.Update.Callback == "confirm":
		info := s.GetString(StateTakeStudentInfo, "student_info", "")
		if info == "" {
			return c.Edit(ctx, msgTakeEmptyInfo, backKeyboard())
		}
		t.attempt(s).StudentInfo = info
		return showInstructions()
	case c.Update.Callback == "back":
		s.Pop()
		return t.searchTests(ctx, c)
	}
	return nil
}

func (t *taking) handleInstructions(ctx context.Context, c *Ctx) error {
	s := c.Session
	switch c.Update.Callback {
	case "start":
		a := t.attempt(s)
		if a.Test == nil {
			return c.Edit(ctx, msgTestNotFound, nil)
		}
		a.Answers = map[string]string{}
		a.Idx = 0
		s.Push(StateTakeAnswer)
		return t.showQuestion(ctx, c)
	case "back":
		s.Pop()
		text, kb := t.infoPrompt(s)
		return c.Edit(ctx, text, kb)
	}
	return nil
}

// ─────────────────────────────────────────────
// Answering
// ─────────────────────────────────────────────

func (t *taking) showQuestion(ctx context.Context, c *Ctx) error {
	a := t.attempt(c.Session)
	questions := a.Test.Questions
	if a.Idx >= len(questions) {
		return t.showReview(ctx, c)
	}
	q := questions[a.Idx]
	text := fmt.Sprintf("❓ Вопрос %d/%d:\n%s", a.Idx+1, len(questions), q.Text)
	if answer, ok := a.Answers[model.QuestionKey(a.Idx)]; ok {
		text += "\n\nВаш ответ: " + answer
	}

	var kb chat.Keyboard
	if q.Type == model.QuestionClosed {
		for i, opt := range q.Options {
			kb = append(kb, chat.Row(chat.Button{Label: opt, Data: fmt.Sprintf("ans_%d", i)}))
		}
	}
	var nav []chat.Button
	if a.Idx > 0 {
		nav = append(nav, chat.Button{Label: "◀️ Назад", Data: "prev"})
	}
	if a.Idx < len(questions)-1 {
		nav = append(nav, chat.Button{Label: "Вперед ▶️", Data: "next"})
	}
	nav = append(nav, chat.Button{Label: "📝 Завершить", Data: "review"})
	kb = append(kb, nav)
	return c.Edit(ctx, text, kb)
}

// recordAnswer stores an answer for the current question and advances,
// moving to review after the last one.
func (t *taking) recordAnswer(ctx context.Context, c *Ctx, answer string) error {
	a := t.attempt(c.Session)
	a.Answers[model.QuestionKey(a.Idx)] = answer
	if a.Idx < len(a.Test.Questions)-1 {
		a.Idx++
		return t.showQuestion(ctx, c)
	}
	return t.showReview(ctx, c)
}

func (t *taking) handleAnswer(ctx context.Context, c *Ctx) error {
	a := t.attempt(c.Session)
	if a.Test == nil {
		return t.cancel(ctx, c)
	}
	switch {
	case c.Update.Text != "":
		answer := strings.TrimSpace(c.Update.Text)
		if answer == "" {
			return c.Reply(ctx, msgTakeEmptyAnswer, backKeyboard())
		}
		return t.recordAnswer(ctx, c, answer)
	case strings.HasPrefix(c.Update.Callback, "ans_"):
		optIdx, err := strconv.Atoi(strings.TrimPrefix(c.Update.Callback, "ans_"))
		q := a.Test.Questions[a.Idx]
		if err != nil || optIdx < 0 || optIdx >= len(q.Options) {
			return c.Edit(ctx, "❌ Неверный вариант ответа!", nil)
		}
		return t.recordAnswer(ctx, c, q.Options[optIdx])
	case c.Update.Callback == "prev":
		if a.Idx > 0 {
			a.Idx--
		}
		return t.showQuestion(ctx, c)
	case c.Update.Callback == "next":
		if a.Idx < len(a.Test.Questions)-1 {
			a.Idx++
		}
		return t.showQuestion(ctx, c)
	case c.Update.Callback == "review":
		return t.showReview(ctx, c)
	}
	return nil
}

func (t *taking) showReview(ctx context.Context, c *Ctx) error {
	a := t.attempt(c.Session)
	text := fmt.Sprintf("📝 Проверьте ваши ответы (время: %s):", time.Now().Format("15:04:05"))
	var kb chat.Keyboard
	for i := range a.Test.Questions {
		kb = append(kb, chat.Row(chat.Button{Label: fmt.Sprintf("Вопрос %d", i+1), Data: fmt.Sprintf("edit_%d", i)}))
	}
	kb = append(kb, chat.Row(chat.Button{Label: "✅ Завершить тест", Data: "finish"}))
	c.Session.Push(StateTakeReview)
	return c.Edit(ctx, text, kb)
}

func (t *taking) handleReview(ctx context.Context, c *Ctx) error {
	s := c.Session
	a := t.attempt(s)
	switch {
	case strings.HasPrefix(c.Update.Callback, "edit_"):
		idx, err := strconv.Atoi(strings.TrimPrefix(c.Update.Callback, "edit_"))
		if err != nil || idx < 0 || idx >= len(a.Test.Questions) {
			return t.cancel(ctx, c)
		}
		a.Idx = idx
		popTo(s, StateTakeAnswer)
		return t.showQuestion(ctx, c)
	case c.Update.Callback == "finish":
		return t.finishTest(ctx, c)
	case c.Update.Callback == "back":
		a.Idx = 0
		popTo(s, StateTakeAnswer)
		return t.showQuestion(ctx, c)
	case c.Update.Callback == "cancel":
		return t.cancel(ctx, c)
	}
	return nil
}

func finalReportKeyboard() chat.Keyboard {
	return chat.Keyboard{
		chat.Row(chat.Button{Label: "📢 Подать апелляцию", Data: "start_appeal"}),
		chat.Row(chat.Button{Label: "🏠 В главное меню", Data: "cancel"}),
	}
}

// finishTest grades the attempt, persists the result and shows the
// report with the appeal entry point.
func (t *taking) finishTest(ctx context.Context, c *Ctx) error {
	s := c.Session
	a := t.attempt(s)
	rep := scoring.Generate(a.Test, a.Answers)

	result := &model.Result{
		TestID:          a.Test.ID,
		StudentInfo:     a.StudentInfo,
		Answers:         a.Answers,
		Scores:          rep.Scores,
		ModelComments:   rep.ModelComments,
		TeacherComments: map[string]string{},
	}
	if err := t.store.SaveResult(ctx, s.UserID, result); err != nil {
		t.logger.Error().Err(err).Str("user_id", s.UserID).Msg("failed to save result")
		return c.Edit(ctx, msgGenericFailure, finalReportKeyboard())
	}
	a.ResultID = result.ID
	a.CompletedAt = time.Now()
	a.Report = scoring.Truncate(rep.Text)

	t.logger.Info().
		Str("result_id", result.ID.String()).
		Str("test_id", a.Test.ID.String()).
		Int("total", rep.Total).
		Int("max", rep.Max).
		Msg("test finished")

	s.Push(StateTakeAppealSelect)
	return c.Edit(ctx, a.Report+appealWindowNotice, finalReportKeyboard())
}

// ─────────────────────────────────────────────
// Appeals
// ─────────────────────────────────────────────

func (t *taking) appealQuestionKeyboard(a *attempt) chat.Keyboard {
	var kb chat.Keyboard
	for i := range a.Test.Questions {
		kb = append(kb, chat.Row(chat.Button{Label: fmt.Sprintf("Вопрос %d", i+1), Data: fmt.Sprintf("appeal_%d", i)}))
	}
	return append(kb, chat.Row(chat.BackButton()))
}

func appealSelectText() string {
	return fmt.Sprintf("🔍 Выберите вопрос для апелляции (время: %s):", time.Now().Format("15:04:05"))
}

func (t *taking) handleAppealSelect(ctx context.Context, c *Ctx) error {
	s := c.Session
	a := t.attempt(s)
	switch {
	case c.Update.Callback == "start_appeal":
		if !a.CompletedAt.IsZero() && time.Since(a.CompletedAt) > model.AppealWindow {
			return c.Edit(ctx, msgTakeAppealExpired, backKeyboard())
		}
		return c.Edit(ctx, appealSelectText(), t.appealQuestionKeyboard(a))
	case strings.HasPrefix(c.Update.Callback, "appeal_"):
		idx, err := strconv.Atoi(strings.TrimPrefix(c.Update.Callback, "appeal_"))
		if err != nil || idx < 0 || idx >= len(a.Test.Questions) {
			return c.Edit(ctx, appealSelectText(), t.appealQuestionKeyboard(a))
		}
		a.AppealIdx = idx
		s.Push(StateTakeAppealComment)
		comment := s.GetString(StateTakeAppealComment, "comment_"+model.QuestionKey(idx), "")
		var kb chat.Keyboard
		if comment != "" {
			kb = append(kb, chat.Row(chat.Button{Label: "▶ Подтвердить", Data: "confirm_appeal"}))
		}
		kb = append(kb, chat.Row(chat.BackButton()))
		text := fmt.Sprintf("📝 Напишите комментарий к апелляции (макс. 500 символов):\n%s", prefill(comment))
		return c.Edit(ctx, text, kb)
	case c.Update.Callback == "back":
		// Back to the final report.
		return c.Edit(ctx, a.Report+appealWindowNotice, finalReportKeyboard())
	case c.Update.Callback == "cancel":
		return t.cancel(ctx, c)
	}
	return nil
}

// submitAppeal persists one appeal and returns to question selection.
func (t *taking) submitAppeal(ctx context.Context, c *Ctx, comment string) error {
	s := c.Session
	a := t.attempt(s)
	if !a.CompletedAt.IsZero() && time.Since(a.CompletedAt) > model.AppealWindow {
		return c.Edit(ctx, msgTakeAppealExpired, backKeyboard())
	}
	appeal := &model.Appeal{
		QuestionIdx:    a.AppealIdx,
		StudentComment: comment,
		Status:         model.AppealPending,
	}
	if err := t.store.SaveAppeal(ctx, s.UserID, a.ResultID, appeal); err != nil {
		t.logger.Error().Err(err).
			Str("result_id", a.ResultID.String()).
			Int("question_idx", a.AppealIdx).
			Msg("failed to save appeal")
		return c.Edit(ctx, msgTakeAppealFailed, backKeyboard())
	}
	text := fmt.Sprintf("✅ Апелляция по вопросу %d отправлена (время: %s):\n🔍 Выберите другой вопрос для апелляции:",
		a.AppealIdx+1, time.Now().Format("15:04:05"))
	popTo(s, StateTakeAppealSelect)
	return c.Edit(ctx, text, t.appealQuestionKeyboard(a))
}

func (t *taking) handleAppealComment(ctx context.Context, c *Ctx) error {
	s := c.Session
	a := t.attempt(s)
	key := "comment_" + model.QuestionKey(a.AppealIdx)
	switch {
	case c.Update.Text != "":
		comment := strings.TrimSpace(c.Update.Text)
		if runes := []rune(comment); len(runes) > model.MaxAppealCommentLen {
			comment = string(runes[:model.MaxAppealCommentLen])
		}
		if comment == "" {
			return c.Reply(ctx, msgTakeEmptyAppeal, backKeyboard())
		}
		s.Set(StateTakeAppealComment, key, comment)
		return t.submitAppeal(ctx, c, comment)
	case c.Update.Callback == "confirm_appeal":
		comment := s.GetString(StateTakeAppealComment, key, "")
		if comment == "" {
			return c.Edit(ctx, "❌ Комментарий отсутствует. Пожалуйста, введите комментарий.", backKeyboard())
		}
		return t.submitAppeal(ctx, c, comment)
	case c.Update.Callback == "back":
		popTo(s, StateTakeAppealSelect)
		return c.Edit(ctx, appealSelectText(), t.appealQuestionKeyboard(a))
	}
	return nil
}
