package flow

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/schooltest/quizbot/internal/chat"
	"github.com/schooltest/quizbot/internal/model"
	"github.com/schooltest/quizbot/internal/notify"
	"github.com/schooltest/quizbot/internal/session"
	"github.com/schooltest/quizbot/internal/storage"
)

// stateReviewScratch keys the teacher's review context in session data.
const stateReviewScratch session.State = "review_scratch"

// partLen is the longest slice of a large text shown per screen part.
const partLen = 1000

const (
	msgReviewNoTests       = "📜 Вы еще не создали ни одного теста."
	msgReviewTestNotFound  = "Ошибка: тест не найден."
	msgReviewNoResult      = "Ошибка: результат не найден."
	msgReviewNoAppeal      = "Ошибка: апелляция не найдена."
	msgReviewMissingData   = "Ошибка: данные для редактирования не найдены."
	msgReviewBadScore      = "Ошибка: оценка должна быть числом (например, 5.0)."
	msgReviewEmptyComment  = "Ошибка: комментарий не может быть пустым."
	msgReviewScoreSaved    = "Оценка сохранена."
	msgReviewCommentSaved  = "Комментарий сохранён."
	msgReviewResponseSaved = "Ответ на апелляцию сохранён."

	reviewDateLayout = "2006-01-02 15:04"
	neverTaken       = "Никто не проходил"
	noValue          = "Нет"
	noAnswer         = "Нет ответа"
)

// reviewScratch carries addressing state between review screens:
// which test, result, question, appeal and list pages the teacher is
// looking at, plus where editing prompts should return to.
type reviewScratch struct {
	Test *model.Test

	TestsPage    int
	StudentsPage int

	ResultID     uuid.UUID
	ResultUserID string
	QuestionIdx  int
	PartIdx      int

	QuestionsPage int
	AnswersPage   int
	AppealsPage   int

	AppealID       uuid.UUID
	AppealUserID   string
	AppealResultID uuid.UUID
	AppealQIdx     int

	Return session.State
}

// review drives the teacher's result-checking conversation.
type review struct {
	store    *storage.Store
	notifier *notify.Notifier
	logger   zerolog.Logger
}

func newReview(store *storage.Store, notifier *notify.Notifier, logger zerolog.Logger) *review {
	return &review{store: store, notifier: notifier, logger: logger.With().Str("flow", "review").Logger()}
}

func (rv *review) register(e *Engine) {
	e.register(StateReviewTests, rv.handleTests)
	e.register(StateReviewTest, rv.handleTest)
	e.register(StateReviewStudents, rv.handleStudents)
	e.register(StateReviewStudentQuestions, rv.handleStudentQuestions)
	e.register(StateReviewQuestions, rv.handleQuestions)
	e.register(StateReviewAnswers, rv.handleAnswers)
	e.register(StateReviewEditScore, rv.handleEditScore)
	e.register(StateReviewAddComment, rv.handleAddComment)
	e.register(StateReviewAppeals, rv.handleAppeals)
	e.register(StateReviewRespondAppeal, rv.handleRespondAppeal)
}

func (rv *review) scratch(s *session.Session) *reviewScratch {
	if v, ok := s.Get(stateReviewScratch, "scratch"); ok {
		if sc, ok := v.(*reviewScratch); ok {
			return sc
		}
	}
	sc := &reviewScratch{}
	s.Set(stateReviewScratch, "scratch", sc)
	return sc
}

// splitParts slices text into chunks of at most max runes, preferring
// to cut at a newline, then at a space.
func splitParts(text string, max int) []string {
	runes := []rune(text)
	if len(runes) <= max {
		return []string{text}
	}
	var parts []string
	for len(runes) > 0 {
		if len(runes) <= max {
			parts = append(parts, string(runes))
			break
		}
		window := runes[:max]
		cut := -1
		for i := len(window) - 1; i >= 0; i-- {
			if window[i] == '\n' {
				cut = i
				break
			}
		}
		if cut == -1 {
			for i := len(window) - 1; i >= 0; i-- {
				if window[i] == ' ' {
					cut = i
					break
				}
			}
		}
		if cut <= 0 {
			cut = max
		}
		parts = append(parts, strings.TrimSpace(string(runes[:cut])))
		runes = []rune(strings.TrimSpace(string(runes[cut:])))
	}
	return parts
}

// clip caps text at n runes, marking the cut.
func clip(text string, n int) string {
	runes := []rune(text)
	if len(runes) <= n {
		return text
	}
	return string(runes[:n]) + "..."
}

func appealStatusLabel(status model.AppealStatus) string {
	switch status {
	case model.AppealPending:
		return "Ожидает"
	case model.AppealResponded:
		return "Отвечена"
	}
	return string(status)
}

func partNavRow(partIdx, totalParts int) []chat.Button {
	var row []chat.Button
	if partIdx > 0 {
		row = append(row, chat.Button{Label: "⬅️ Пред. часть", Data: "text_part_prev"})
	}
	if partIdx < totalParts-1 {
		row = append(row, chat.Button{Label: "След. часть ➡️", Data: "text_part_next"})
	}
	return row
}

func questionNavRow(qIdx, total int) []chat.Button {
	var row []chat.Button
	if qIdx > 0 {
		row = append(row, chat.Button{Label: "⬅️ Пред. вопрос", Data: "question_prev"})
	}
	if qIdx < total-1 {
		row = append(row, chat.Button{Label: "След. вопрос ➡️", Data: "question_next"})
	}
	return row
}

func appendRows(kb chat.Keyboard, rows ...[]chat.Button) chat.Keyboard {
	for _, row := range rows {
		if len(row) > 0 {
			kb = append(kb, row)
		}
	}
	return kb
}

func (rv *review) testResults(ctx context.Context, testID uuid.UUID) ([]model.Result, error) {
	all, err := rv.store.AllResults(ctx)
	if err != nil {
		return nil, err
	}
	var out []model.Result
	for _, r := range all {
		if r.TestID == testID {
			out = append(out, r)
		}
	}
	return out, nil
}

// resultForAppeal locates the result an appeal was filed on.
func (rv *review) resultForAppeal(ctx context.Context, appeal model.Appeal) *model.Result {
	results, err := rv.store.StudentResults(ctx, appeal.UserID)
	if err != nil {
		return nil
	}
	for i := range results {
		if results[i].TestID != appeal.TestID {
			continue
		}
		if a := results[i].AppealFor(appeal.QuestionIdx); a != nil && a.ID == appeal.ID {
			results[i].UserID = appeal.UserID
			return &results[i]
		}
	}
	return nil
}

// ─────────────────────────────────────────────
// Test list and test menu
// ─────────────────────────────────────────────

func (rv *review) start(ctx context.Context, c *Ctx) error {
	sc := rv.scratch(c.Session)
	sc.TestsPage = 0
	c.Session.Push(StateReviewTests)
	return rv.showTests(ctx, c)
}

func (rv *review) showTests(ctx context.Context, c *Ctx) error {
	s := c.Session
	sc := rv.scratch(s)

	tests, err := rv.store.TeacherTests(ctx, s.UserID)
	if err != nil {
		return err
	}
	if len(tests) == 0 {
		return c.Edit(ctx, msgReviewNoTests, backKeyboard())
	}

	onPage, page, totalPages := paginate(tests, sc.TestsPage)
	sc.TestsPage = page

	allResults, err := rv.store.AllResults(ctx)
	if err != nil {
		return err
	}

	var b strings.Builder
	b.WriteString("📜 Ваши тесты:\n\n")
	var kb chat.Keyboard
	for _, test := range onPage {
		count := 0
		var last time.Time
		for _, r := range allResults {
			if r.TestID != test.ID {
				continue
			}
			count++
			if r.Timestamp.After(last) {
				last = r.Timestamp
			}
		}
		lastStr := neverTaken
		if !last.IsZero() {
			lastStr = last.Format(reviewDateLayout)
		}
		fmt.Fprintf(&b, "📝 %s (%s)\nПрохождений: %d\nПоследнее: %s\n\n", test.Name, test.Subject, count, lastStr)
		kb = append(kb, chat.Row(chat.Button{Label: "Выбрать: " + test.Name, Data: "select_test_" + test.ID.String()}))
	}
	kb = appendRows(kb, navRow(page, totalPages, "tests_page"))
	kb = append(kb, chat.Row(chat.BackButton()))
	return c.Edit(ctx, b.String(), kb)
}

func (rv *review) handleTests(ctx context.Context, c *Ctx) error {
	sc := rv.scratch(c.Session)
	switch {
	case c.Update.Callback == "tests_page_prev" || c.Update.Callback == "tests_page_next":
		sc.TestsPage = stepPage(sc.TestsPage, strings.TrimPrefix(c.Update.Callback, "tests_page_"))
		return rv.showTests(ctx, c)
	case strings.HasPrefix(c.Update.Callback, "select_test_"):
		id, err := uuid.Parse(strings.TrimPrefix(c.Update.Callback, "select_test_"))
		if err != nil {
			return c.Edit(ctx, msgReviewMissingData, backKeyboard())
		}
		test, err := rv.store.TestByID(ctx, id)
		if err != nil {
			return c.Edit(ctx, msgReviewTestNotFound, backKeyboard())
		}
		sc.Test = test
		sc.StudentsPage, sc.QuestionsPage, sc.AnswersPage, sc.AppealsPage = 0, 0, 0, 0
		c.Session.Push(StateReviewTest)
		return rv.showTest(ctx, c)
	case c.Update.Callback == "back":
		popTo(c.Session, StateTeacherMain)
		return c.Edit(ctx, msgTeacherMenu, teacherMenuKeyboard())
	}
	return nil
}

func (rv *review) showTest(ctx context.Context, c *Ctx) error {
	sc := rv.scratch(c.Session)
	test := sc.Test
	if test == nil {
		return c.Edit(ctx, msgReviewTestNotFound, backKeyboard())
	}

	results, err := rv.testResults(ctx, test.ID)
	if err != nil {
		return err
	}
	var last time.Time
	for _, r := range results {
		if r.Timestamp.After(last) {
			last = r.Timestamp
		}
	}
	lastStr := neverTaken
	if !last.IsZero() {
		lastStr = last.Format(reviewDateLayout)
	}

	text := fmt.Sprintf(
		"📝 Тест: %s\nПредмет: %s\nКлассы: %s\nСоздан: %s\nВопросов: %d\nПрохождений: %d\nПоследнее прохождение: %s\n\nВыберите действие:",
		test.Name, test.Subject, strings.Join(test.Classes, ", "),
		test.CreatedAt.Format(reviewDateLayout), len(test.Questions), len(results), lastStr,
	)
	kb := chat.Keyboard{
		chat.Row(chat.Button{Label: "Статистика по ученикам", Data: "stats_students"}),
		chat.Row(chat.Button{Label: "Статистика по заданиям", Data: "stats_questions"}),
		chat.Row(chat.Button{Label: "Апелляции", Data: "view_appeals"}),
		chat.Row(chat.BackButton()),
	}
	return c.Edit(ctx, text, kb)
}

// leaveTest flushes queued notifications for the test being left.
func (rv *review) leaveTest(ctx context.Context, c *Ctx) {
	sc := rv.scratch(c.Session)
	if sc.Test != nil {
		rv.notifier.FlushTest(ctx, c.Session.UserID, sc.Test.ID)
	}
}

func (rv *review) handleTest(ctx context.Context, c *Ctx) error {
	sc := rv.scratch(c.Session)
	switch c.Update.Callback {
	case "stats_students":
		sc.StudentsPage = 0
		c.Session.Push(StateReviewStudents)
		return rv.showStudents(ctx, c)
	case "stats_questions":
		sc.QuestionsPage = 0
		sc.PartIdx = 0
		c.Session.Push(StateReviewQuestions)
		return rv.showQuestions(ctx, c)
	case "view_appeals":
		sc.AppealsPage = 0
		return rv.showAppeals(ctx, c)
	case "back":
		rv.leaveTest(ctx, c)
		sc.Test = nil
		sc.TestsPage = 0
		popTo(c.Session, StateReviewTests)
		return rv.showTests(ctx, c)
	}
	return nil
}

// backToTestMenu flushes notifications and re-renders the test menu,
// used when leaving any per-test screen.
func (rv *review) backToTestMenu(ctx context.Context, c *Ctx) error {
	rv.leaveTest(ctx, c)
	popTo(c.Session, StateReviewTest)
	return rv.showTest(ctx, c)
}

// ─────────────────────────────────────────────
// Student statistics
// ─────────────────────────────────────────────

// studentTotals splits a result's score into closed questions answered
// correctly and points earned on open ones.
func studentTotals(test *model.Test, r *model.Result) (closed int, open float64) {
	for idx, q := range test.Questions {
		answer, ok := r.Answer(idx)
		switch q.Type {
		case model.QuestionClosed:
			if ok && answer == q.CorrectAnswer {
				closed++
			}
		default:
			open += r.Score(idx)
		}
	}
	return closed, open
}

func (rv *review) showStudents(ctx context.Context, c *Ctx) error {
	sc := rv.scratch(c.Session)
	test := sc.Test
	if test == nil {
		return c.Edit(ctx, msgReviewTestNotFound, backKeyboard())
	}

	results, err := rv.testResults(ctx, test.ID)
	if err != nil {
		return err
	}
	if len(results) == 0 {
		return c.Edit(ctx, fmt.Sprintf("📜 Тест '%s' ещё никто не проходил.", test.Name), backKeyboard())
	}

	type entry struct {
		r     model.Result
		total float64
	}
	entries := make([]entry, len(results))
	for i := range results {
		closed, open := studentTotals(test, &results[i])
		entries[i] = entry{r: results[i], total: float64(closed) + open}
	}
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].total < entries[j].total })
	onPage, page, totalPages := paginate(entries, sc.StudentsPage)
	sc.StudentsPage = page

	var b strings.Builder
	fmt.Fprintf(&b, "📊 Статистика по ученикам для теста '%s':\n\n", test.Name)
	var kb chat.Keyboard
	for _, e := range onPage {
		closed, open := studentTotals(test, &e.r)
		fmt.Fprintf(&b, "👤 %s\nТестовые: %d\nРазвёрнутые: %g\nОбщая оценка: %g\nДата: %s\n",
			e.r.StudentInfo, closed, open, e.total, e.r.Timestamp.Format(reviewDateLayout))
		if len(e.r.Appeals) > 0 {
			b.WriteString("Апелляции:\n")
			for _, a := range e.r.Appeals {
				fmt.Fprintf(&b, "- Вопрос #%d: %s (Статус: %s)\n",
					a.QuestionIdx+1, clip(a.StudentComment, 50), appealStatusLabel(a.Status))
			}
		}
		b.WriteString("\n")
		kb = append(kb, chat.Row(chat.Button{
			Label: fmt.Sprintf("%s (%g)", e.r.StudentInfo, e.total),
			Data:  "view_student_questions_" + e.r.ID.String(),
		}))
	}
	kb = appendRows(kb, navRow(page, totalPages, "students_page"))
	kb = append(kb, chat.Row(chat.BackButton()))
	return c.Edit(ctx, b.String(), kb)
}

func (rv *review) handleStudents(ctx context.Context, c *Ctx) error {
	sc := rv.scratch(c.Session)
	switch {
	case c.Update.Callback == "students_page_prev" || c.Update.Callback == "students_page_next":
		sc.StudentsPage = stepPage(sc.StudentsPage, strings.TrimPrefix(c.Update.Callback, "students_page_"))
		return rv.showStudents(ctx, c)
	case strings.HasPrefix(c.Update.Callback, "view_student_questions_"):
		id, err := uuid.Parse(strings.TrimPrefix(c.Update.Callback, "view_student_questions_"))
		if err != nil {
			return c.Edit(ctx, msgReviewNoResult, backKeyboard())
		}
		sc.ResultID = id
		sc.QuestionIdx = 0
		sc.PartIdx = 0
		c.Session.Push(StateReviewStudentQuestions)
		return rv.showStudentQuestion(ctx, c)
	case c.Update.Callback == "back":
		return rv.backToTestMenu(ctx, c)
	}
	return nil
}

// ─────────────────────────────────────────────
// Per-student question detail
// ─────────────────────────────────────────────

func (rv *review) showStudentQuestion(ctx context.Context, c *Ctx) error {
	sc := rv.scratch(c.Session)
	test := sc.Test
	if test == nil {
		return c.Edit(ctx, msgReviewTestNotFound, backKeyboard())
	}
	result, err := rv.store.ResultByID(ctx, sc.ResultID)
	if err != nil {
		return c.Edit(ctx, msgReviewNoResult, backKeyboard())
	}
	sc.ResultUserID = result.UserID

	total := len(test.Questions)
	if sc.QuestionIdx < 0 {
		sc.QuestionIdx = 0
	}
	if sc.QuestionIdx >= total {
		sc.QuestionIdx = total - 1
	}
	q := test.Questions[sc.QuestionIdx]

	parts := splitParts(q.Text, partLen)
	if sc.PartIdx >= len(parts) {
		sc.PartIdx = len(parts) - 1
	}

	answer, ok := result.Answer(sc.QuestionIdx)
	if !ok {
		answer = noAnswer
	}
	comment := result.TeacherComments[model.QuestionKey(sc.QuestionIdx)]
	if comment == "" {
		comment = noValue
	}
	checkComment := q.CheckComment
	if checkComment == "" {
		checkComment = noValue
	}

	var appealInfo string
	appeal := result.AppealFor(sc.QuestionIdx)
	if appeal != nil {
		appealInfo = fmt.Sprintf("Апелляция: %s\nСтатус: %s\nДата: %s\n",
			appeal.StudentComment, appealStatusLabel(appeal.Status), appeal.Timestamp.Format(reviewDateLayout))
		if appeal.TeacherComment != "" {
			appealInfo += "Ответ преподавателя: " + appeal.TeacherComment + "\n"
		}
	}

	text := fmt.Sprintf(
		"❓ Вопрос #%d/%d:\n%s\nПравильный ответ: %s\nКомментарий модели: %s\n\n👤 %s\nОтвет: %s\nОценка: %g\nКомментарий учителя: %s\n%s",
		sc.QuestionIdx+1, total, parts[sc.PartIdx], q.CorrectAnswer, checkComment,
		result.StudentInfo, answer, result.Score(sc.QuestionIdx), comment, appealInfo,
	)

	kb := chat.Keyboard{chat.Row(
		chat.Button{Label: "Изменить оценку", Data: fmt.Sprintf("edit_score_%s_%d", result.ID, sc.QuestionIdx)},
		chat.Button{Label: "Оставить комментарий", Data: fmt.Sprintf("add_comment_%s_%d", result.ID, sc.QuestionIdx)},
	)}
	if appeal != nil {
		kb = append(kb, chat.Row(chat.Button{Label: "Ответить на апелляцию", Data: "respond_appeal_" + appeal.ID.String()}))
	}
	kb = appendRows(kb, questionNavRow(sc.QuestionIdx, total), partNavRow(sc.PartIdx, len(parts)))
	kb = append(kb, chat.Row(chat.BackButton()))
	return c.Edit(ctx, text, kb)
}

func (rv *review) handleStudentQuestions(ctx context.Context, c *Ctx) error {
	sc := rv.scratch(c.Session)
	switch {
	case c.Update.Callback == "question_prev":
		sc.QuestionIdx--
		sc.PartIdx = 0
		return rv.showStudentQuestion(ctx, c)
	case c.Update.Callback == "question_next":
		sc.QuestionIdx++
		sc.PartIdx = 0
		return rv.showStudentQuestion(ctx, c)
	case c.Update.Callback == "text_part_prev":
		if sc.PartIdx > 0 {
			sc.PartIdx--
		}
		return rv.showStudentQuestion(ctx, c)
	case c.Update.Callback == "text_part_next":
		sc.PartIdx++
		return rv.showStudentQuestion(ctx, c)
	case strings.HasPrefix(c.Update.Callback, "edit_score_"):
		return rv.startEditScore(ctx, c)
	case strings.HasPrefix(c.Update.Callback, "add_comment_"):
		return rv.startAddComment(ctx, c)
	case strings.HasPrefix(c.Update.Callback, "respond_appeal_"):
		return rv.startRespondAppeal(ctx, c)
	case c.Update.Callback == "back":
		sc.ResultID = uuid.Nil
		sc.QuestionIdx = 0
		sc.PartIdx = 0
		c.Session.Pop()
		return rv.showStudents(ctx, c)
	}
	return nil
}

// ─────────────────────────────────────────────
// Question statistics
// ─────────────────────────────────────────────

func (rv *review) showQuestions(ctx context.Context, c *Ctx) error {
	sc := rv.scratch(c.Session)
	test := sc.Test
	if test == nil {
		return c.Edit(ctx, msgReviewTestNotFound, backKeyboard())
	}
	results, err := rv.testResults(ctx, test.ID)
	if err != nil {
		return err
	}

	indices := make([]int, len(test.Questions))
	for i := range indices {
		indices[i] = i
	}
	onPage, page, totalPages := paginate(indices, sc.QuestionsPage)
	sc.QuestionsPage = page

	var b strings.Builder
	for _, idx := range onPage {
		q := test.Questions[idx]
		answered := 0
		for _, r := range results {
			if _, ok := r.Answer(idx); ok {
				answered++
			}
		}
		fmt.Fprintf(&b, "❓ Вопрос #%d: %s\n", idx+1, clip(q.Text, 200))
		if q.Type == model.QuestionClosed {
			b.WriteString("Варианты ответов:\n")
			for _, opt := range q.Options {
				mark := "  "
				if opt == q.CorrectAnswer {
					mark = "✅"
				}
				var picked []string
				for _, r := range results {
					if a, ok := r.Answer(idx); ok && a == opt {
						picked = append(picked, r.StudentInfo)
					}
				}
				who := "Никто"
				if len(picked) > 0 {
					shown := picked
					if len(shown) > 5 {
						shown = shown[:5]
					}
					who = strings.Join(shown, ", ")
					if len(picked) > 5 {
						who += "..."
					}
				}
				fmt.Fprintf(&b, "%s %s: %s\n", mark, clip(opt, 100), who)
			}
			fmt.Fprintf(&b, "Ответили: %d\n\n", answered)
		} else {
			var sum float64
			var n int
			for _, r := range results {
				if _, ok := r.Answer(idx); ok {
					sum += r.Score(idx)
					n++
				}
			}
			avg := 0.0
			if n > 0 {
				avg = sum / float64(n)
			}
			checkComment := clip(q.CheckComment, 100)
			if checkComment == "" {
				checkComment = noValue
			}
			fmt.Fprintf(&b, "Правильный ответ: %s\nКомментарий: %s\nСредняя оценка: %.2f\nОтветили: %d\n\n",
				clip(q.CorrectAnswer, 100), checkComment, avg, answered)
		}
	}

	parts := splitParts(b.String(), partLen)
	if sc.PartIdx >= len(parts) {
		sc.PartIdx = len(parts) - 1
	}
	text := fmt.Sprintf("📊 Статистика по вопросам для теста '%s':\n\n%s", test.Name, parts[sc.PartIdx])

	var kb chat.Keyboard
	for _, idx := range onPage {
		kb = append(kb, chat.Row(chat.Button{
			Label: fmt.Sprintf("Просмотреть ответы на #%d", idx+1),
			Data:  fmt.Sprintf("view_answers_%d", idx),
		}))
	}
	kb = appendRows(kb, navRow(page, totalPages, "questions_page"), partNavRow(sc.PartIdx, len(parts)))
	kb = append(kb, chat.Row(chat.BackButton()))
	return c.Edit(ctx, text, kb)
}

func (rv *review) handleQuestions(ctx context.Context, c *Ctx) error {
	sc := rv.scratch(c.Session)
	switch {
	case c.Update.Callback == "questions_page_prev" || c.Update.Callback == "questions_page_next":
		sc.QuestionsPage = stepPage(sc.QuestionsPage, strings.TrimPrefix(c.Update.Callback, "questions_page_"))
		sc.PartIdx = 0
		return rv.showQuestions(ctx, c)
	case c.Update.Callback == "text_part_prev":
		if sc.PartIdx > 0 {
			sc.PartIdx--
		}
		return rv.showQuestions(ctx, c)
	case c.Update.Callback == "text_part_next":
		sc.PartIdx++
		return rv.showQuestions(ctx, c)
	case strings.HasPrefix(c.Update.Callback, "view_answers_"):
		idx, err := strconv.Atoi(strings.TrimPrefix(c.Update.Callback, "view_answers_"))
		if err != nil {
			return c.Edit(ctx, msgReviewMissingData, backKeyboard())
		}
		sc.QuestionIdx = idx
		sc.AnswersPage = 0
		sc.PartIdx = 0
		c.Session.Push(StateReviewAnswers)
		return rv.showAnswers(ctx, c)
	case c.Update.Callback == "back":
		return rv.backToTestMenu(ctx, c)
	}
	return nil
}

// ─────────────────────────────────────────────
// Per-question answers
// ─────────────────────────────────────────────

func (rv *review) showAnswers(ctx context.Context, c *Ctx) error {
	sc := rv.scratch(c.Session)
	test := sc.Test
	if test == nil {
		return c.Edit(ctx, msgReviewTestNotFound, backKeyboard())
	}
	total := len(test.Questions)
	if sc.QuestionIdx < 0 {
		sc.QuestionIdx = 0
	}
	if sc.QuestionIdx >= total {
		sc.QuestionIdx = total - 1
	}
	qIdx := sc.QuestionIdx
	q := test.Questions[qIdx]

	all, err := rv.testResults(ctx, test.ID)
	if err != nil {
		return err
	}
	var results []model.Result
	for _, r := range all {
		if _, ok := r.Answer(qIdx); ok {
			results = append(results, r)
		}
	}

	onPage, page, totalPages := paginate(results, sc.AnswersPage)
	sc.AnswersPage = page

	parts := splitParts(q.Text, partLen)
	if sc.PartIdx >= len(parts) {
		sc.PartIdx = len(parts) - 1
	}

	var b strings.Builder
	var kb chat.Keyboard
	for i := range onPage {
		r := &onPage[i]
		answer, _ := r.Answer(qIdx)
		comment := r.TeacherComments[model.QuestionKey(qIdx)]
		if comment == "" {
			comment = noValue
		}
		fmt.Fprintf(&b, "👤 %s\nОтвет: %s\nОценка: %g\nКомментарий учителя: %s\n",
			r.StudentInfo, answer, r.Score(qIdx), comment)
		appeal := r.AppealFor(qIdx)
		if appeal != nil {
			fmt.Fprintf(&b, "Апелляция: %s\nСтатус: %s\nДата: %s\n",
				appeal.StudentComment, appealStatusLabel(appeal.Status), appeal.Timestamp.Format(reviewDateLayout))
			if appeal.TeacherComment != "" {
				b.WriteString("Ответ преподавателя: " + appeal.TeacherComment + "\n")
			}
		}
		b.WriteString("\n")

		row := chat.Row(
			chat.Button{Label: fmt.Sprintf("Изменить оценку: %s (%g)", r.StudentInfo, r.Score(qIdx)), Data: fmt.Sprintf("edit_score_%s_%d", r.ID, qIdx)},
			chat.Button{Label: "Комментарий: " + r.StudentInfo, Data: fmt.Sprintf("add_comment_%s_%d", r.ID, qIdx)},
		)
		if appeal != nil {
			row = append(row, chat.Button{Label: "Ответить на апелляцию", Data: "respond_appeal_" + appeal.ID.String()})
		}
		kb = append(kb, row)
	}

	checkComment := q.CheckComment
	if checkComment == "" {
		checkComment = noValue
	}
	text := fmt.Sprintf("❓ Вопрос #%d:\n%s\nПравильный ответ: %s\nКомментарий модели: %s\n\nОтветы учеников:\n%s",
		qIdx+1, parts[sc.PartIdx], q.CorrectAnswer, checkComment, b.String())

	kb = appendRows(kb,
		navRow(page, totalPages, "answers_page"),
		questionNavRow(qIdx, total),
		partNavRow(sc.PartIdx, len(parts)))
	kb = append(kb, chat.Row(chat.BackButton()))
	return c.Edit(ctx, text, kb)
}

func (rv *review) handleAnswers(ctx context.Context, c *Ctx) error {
	sc := rv.scratch(c.Session)
	switch {
	case c.Update.Callback == "answers_page_prev" || c.Update.Callback == "answers_page_next":
		sc.AnswersPage = stepPage(sc.AnswersPage, strings.TrimPrefix(c.Update.Callback, "answers_page_"))
		return rv.showAnswers(ctx, c)
	case c.Update.Callback == "question_prev":
		if sc.QuestionIdx > 0 {
			sc.QuestionIdx--
		}
		sc.PartIdx = 0
		return rv.showAnswers(ctx, c)
	case c.Update.Callback == "question_next":
		sc.QuestionIdx++
		sc.PartIdx = 0
		return rv.showAnswers(ctx, c)
	case c.Update.Callback == "text_part_prev":
		if sc.PartIdx > 0 {
			sc.PartIdx--
		}
		return rv.showAnswers(ctx, c)
	case c.Update.Callback == "text_part_next":
		sc.PartIdx++
		return rv.showAnswers(ctx, c)
	case strings.HasPrefix(c.Update.Callback, "edit_score_"):
		return rv.startEditScore(ctx, c)
	case strings.HasPrefix(c.Update.Callback, "add_comment_"):
		return rv.startAddComment(ctx, c)
	case strings.HasPrefix(c.Update.Callback, "respond_appeal_"):
		return rv.startRespondAppeal(ctx, c)
	case c.Update.Callback == "back":
		sc.AnswersPage = 0
		sc.PartIdx = 0
		c.Session.Pop()
		return rv.showQuestions(ctx, c)
	}
	return nil
}

// ─────────────────────────────────────────────
// Editing prompts
// ─────────────────────────────────────────────

// parseTargetCallback splits "edit_score_<result>_<idx>" style data
// into its result id and question index.
func parseTargetCallback(data, prefix string) (uuid.UUID, int, bool) {
	rest := strings.TrimPrefix(data, prefix)
	sep := strings.LastIndex(rest, "_")
	if sep < 0 {
		return uuid.Nil, 0, false
	}
	id, err := uuid.Parse(rest[:sep])
	if err != nil {
		return uuid.Nil, 0, false
	}
	idx, err := strconv.Atoi(rest[sep+1:])
	if err != nil || idx < 0 {
		return uuid.Nil, 0, false
	}
	return id, idx, true
}

// returnToPrevious unwinds an editing prompt back to the screen it was
// opened from.
func (rv *review) returnToPrevious(ctx context.Context, c *Ctx) error {
	sc := rv.scratch(c.Session)
	target := sc.Return
	if target == "" {
		target = StateReviewAnswers
	}
	popTo(c.Session, target)
	switch target {
	case StateReviewStudentQuestions:
		sc.PartIdx = 0
		return rv.showStudentQuestion(ctx, c)
	case StateReviewAppeals:
		sc.AppealsPage = 0
		return rv.showAppeals(ctx, c)
	default:
		sc.AnswersPage = 0
		sc.PartIdx = 0
		return rv.showAnswers(ctx, c)
	}
}

func (rv *review) startEditScore(ctx context.Context, c *Ctx) error {
	sc := rv.scratch(c.Session)
	id, qIdx, ok := parseTargetCallback(c.Update.Callback, "edit_score_")
	if !ok {
		return c.Edit(ctx, msgReviewMissingData, backKeyboard())
	}
	result, err := rv.store.ResultByID(ctx, id)
	if err != nil {
		return c.Edit(ctx, msgReviewNoResult, backKeyboard())
	}
	sc.ResultID = id
	sc.ResultUserID = result.UserID
	sc.QuestionIdx = qIdx
	sc.Return = c.Session.Current()

	test := sc.Test
	if test == nil || qIdx >= len(test.Questions) {
		return c.Edit(ctx, msgReviewTestNotFound, backKeyboard())
	}
	answer, ok := result.Answer(qIdx)
	if !ok {
		answer = noAnswer
	}
	comment := result.TeacherComments[model.QuestionKey(qIdx)]
	if comment == "" {
		comment = noValue
	}
	text := fmt.Sprintf(
		"❓ Вопрос #%d: %s\n👤 Студент: %s\nОтвет: %s\nТекущая оценка: %g\nТекущий комментарий: %s\n\nВведите новую оценку (например, 5.0):",
		qIdx+1, test.Questions[qIdx].Text, result.StudentInfo, answer, result.Score(qIdx), comment,
	)
	c.Session.Push(StateReviewEditScore)
	return c.Edit(ctx, text, backKeyboard())
}

func (rv *review) handleEditScore(ctx context.Context, c *Ctx) error {
	sc := rv.scratch(c.Session)
	if c.Update.Callback == "back" {
		return rv.returnToPrevious(ctx, c)
	}
	if c.Update.Text == "" {
		return nil
	}
	score, err := strconv.ParseFloat(strings.TrimSpace(c.Update.Text), 64)
	if err != nil {
		return c.Reply(ctx, msgReviewBadScore, backKeyboard())
	}
	result, err := rv.store.ResultByID(ctx, sc.ResultID)
	if err != nil {
		return c.Reply(ctx, msgReviewNoResult, backKeyboard())
	}
	if result.Score(sc.QuestionIdx) == score {
		if err := c.Reply(ctx, msgReviewScoreSaved, nil); err != nil {
			return err
		}
		return rv.returnToPrevious(ctx, c)
	}

	if err := rv.store.UpdateScore(ctx, result.UserID, sc.ResultID, sc.QuestionIdx, score); err != nil {
		return err
	}
	comment := result.TeacherComments[model.QuestionKey(sc.QuestionIdx)]
	if comment == "" {
		comment = noValue
	}
	rv.queueChange(c, notify.KindScore, result, score, comment)

	if err := c.Reply(ctx, msgReviewScoreSaved, nil); err != nil {
		return err
	}
	return rv.returnToPrevious(ctx, c)
}

func (rv *review) startAddComment(ctx context.Context, c *Ctx) error {
	sc := rv.scratch(c.Session)
	id, qIdx, ok := parseTargetCallback(c.Update.Callback, "add_comment_")
	if !ok {
		return c.Edit(ctx, msgReviewMissingData, backKeyboard())
	}
	result, err := rv.store.ResultByID(ctx, id)
	if err != nil {
		return c.Edit(ctx, msgReviewNoResult, backKeyboard())
	}
	sc.ResultID = id
	sc.ResultUserID = result.UserID
	sc.QuestionIdx = qIdx
	sc.Return = c.Session.Current()

	test := sc.Test
	if test == nil || qIdx >= len(test.Questions) {
		return c.Edit(ctx, msgReviewTestNotFound, backKeyboard())
	}
	answer, ok := result.Answer(qIdx)
	if !ok {
		answer = noAnswer
	}
	comment := result.TeacherComments[model.QuestionKey(qIdx)]
	if comment == "" {
		comment = noValue
	}
	text := fmt.Sprintf(
		"❓ Вопрос #%d: %s\n👤 Студент: %s\nОтвет: %s\nОценка: %g\nТекущий комментарий: %s\n\nВведите новый комментарий:",
		qIdx+1, test.Questions[qIdx].Text, result.StudentInfo, answer, result.Score(qIdx), comment,
	)
	c.Session.Push(StateReviewAddComment)
	return c.Edit(ctx, text, backKeyboard())
}

func (rv *review) handleAddComment(ctx context.Context, c *Ctx) error {
	sc := rv.scratch(c.Session)
	if c.Update.Callback == "back" {
		return rv.returnToPrevious(ctx, c)
	}
	if c.Update.Text == "" {
		return nil
	}
	comment := sanitizeLongInput(c.Update.Text)
	if comment == "" {
		return c.Reply(ctx, msgReviewEmptyComment, backKeyboard())
	}
	result, err := rv.store.ResultByID(ctx, sc.ResultID)
	if err != nil {
		return c.Reply(ctx, msgReviewNoResult, backKeyboard())
	}
	if result.TeacherComments[model.QuestionKey(sc.QuestionIdx)] == comment {
		if err := c.Reply(ctx, msgReviewCommentSaved, nil); err != nil {
			return err
		}
		return rv.returnToPrevious(ctx, c)
	}

	if err := rv.store.UpdateTeacherComment(ctx, result.UserID, sc.ResultID, sc.QuestionIdx, comment); err != nil {
		return err
	}
	rv.queueChange(c, notify.KindComment, result, result.Score(sc.QuestionIdx), comment)

	if err := c.Reply(ctx, msgReviewCommentSaved, nil); err != nil {
		return err
	}
	return rv.returnToPrevious(ctx, c)
}

// queueChange records a grading change for delayed delivery to the
// affected student.
func (rv *review) queueChange(c *Ctx, kind notify.Kind, result *model.Result, score float64, comment string) {
	sc := rv.scratch(c.Session)
	test := sc.Test
	if test == nil {
		return
	}
	change := notify.Change{
		Kind:         kind,
		StudentID:    result.UserID,
		TestID:       test.ID,
		TestName:     test.Name,
		QuestionIdx:  sc.QuestionIdx + 1,
		QuestionText: clip(test.Questions[sc.QuestionIdx].Text, 50),
		Score:        score,
		Comment:      comment,
	}
	rv.notifier.Add(c.Session.UserID, change)
}

// ─────────────────────────────────────────────
// Appeals
// ─────────────────────────────────────────────

func (rv *review) testAppeals(ctx context.Context, testID uuid.UUID) ([]model.Appeal, error) {
	all, err := rv.store.AllAppeals(ctx)
	if err != nil {
		return nil, err
	}
	var out []model.Appeal
	for _, a := range all {
		if a.TestID == testID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (rv *review) showAppeals(ctx context.Context, c *Ctx) error {
	sc := rv.scratch(c.Session)
	test := sc.Test
	if test == nil {
		return c.Edit(ctx, msgReviewTestNotFound, backKeyboard())
	}
	appeals, err := rv.testAppeals(ctx, test.ID)
	if err != nil {
		return err
	}
	if len(appeals) == 0 {
		popTo(c.Session, StateReviewTest)
		return c.Edit(ctx, fmt.Sprintf("📜 По тесту '%s' нет апелляций.", test.Name), backKeyboard())
	}

	onPage, page, totalPages := paginate(appeals, sc.AppealsPage)
	sc.AppealsPage = page

	var b strings.Builder
	fmt.Fprintf(&b, "📜 Апелляции по тесту '%s':\n\n", test.Name)
	var kb chat.Keyboard
	for _, a := range onPage {
		if a.QuestionIdx >= len(test.Questions) {
			continue
		}
		q := test.Questions[a.QuestionIdx]
		result := rv.resultForAppeal(ctx, a)
		studentInfo := "Неизвестный студент"
		var score float64
		resultID := ""
		if result != nil {
			studentInfo = result.StudentInfo
			score = result.Score(a.QuestionIdx)
			resultID = result.ID.String()
		}
		fmt.Fprintf(&b, "❓ Вопрос #%d: %s\nПравильный ответ: %s\n👤 %s\nОценка: %g\nАпелляция: %s\nСтатус: %s\nДата: %s\n",
			a.QuestionIdx+1, clip(q.Text, 200), clip(q.CorrectAnswer, 100),
			studentInfo, score, a.StudentComment, appealStatusLabel(a.Status), a.Timestamp.Format(reviewDateLayout))
		if a.TeacherComment != "" {
			b.WriteString("Ответ преподавателя: " + a.TeacherComment + "\n")
		}
		b.WriteString("\n")

		respondLabel := "Ответить"
		if a.Status == model.AppealResponded {
			respondLabel = "Изменить ответ"
		}
		preview := clip(a.StudentComment, 20)
		kb = append(kb, chat.Row(
			chat.Button{Label: "Изменить оценку: " + preview, Data: fmt.Sprintf("edit_score_%s_%d", resultID, a.QuestionIdx)},
			chat.Button{Label: respondLabel + ": " + preview, Data: "respond_appeal_" + a.ID.String()},
			chat.Button{Label: "Комментарий: " + preview, Data: fmt.Sprintf("add_comment_%s_%d", resultID, a.QuestionIdx)},
		))
	}
	kb = appendRows(kb, navRow(page, totalPages, "appeals_page"))
	kb = append(kb, chat.Row(chat.BackButton()))
	c.Session.Push(StateReviewAppeals)
	return c.Edit(ctx, b.String(), kb)
}

func (rv *review) handleAppeals(ctx context.Context, c *Ctx) error {
	sc := rv.scratch(c.Session)
	switch {
	case c.Update.Callback == "appeals_page_prev" || c.Update.Callback == "appeals_page_next":
		sc.AppealsPage = stepPage(sc.AppealsPage, strings.TrimPrefix(c.Update.Callback, "appeals_page_"))
		popTo(c.Session, StateReviewTest)
		return rv.showAppeals(ctx, c)
	case strings.HasPrefix(c.Update.Callback, "edit_score_"):
		return rv.startEditScore(ctx, c)
	case strings.HasPrefix(c.Update.Callback, "add_comment_"):
		return rv.startAddComment(ctx, c)
	case strings.HasPrefix(c.Update.Callback, "respond_appeal_"):
		return rv.startRespondAppeal(ctx, c)
	case c.Update.Callback == "back":
		sc.AppealsPage = 0
		return rv.backToTestMenu(ctx, c)
	}
	return nil
}

// appealByID resolves an appeal and the result it belongs to.
func (rv *review) appealByID(ctx context.Context, id uuid.UUID) (*model.Appeal, *model.Result, error) {
	all, err := rv.store.AllAppeals(ctx)
	if err != nil {
		return nil, nil, err
	}
	for _, a := range all {
		if a.ID == id {
			result := rv.resultForAppeal(ctx, a)
			return &a, result, nil
		}
	}
	return nil, nil, storage.ErrNotFound
}

func (rv *review) startRespondAppeal(ctx context.Context, c *Ctx) error {
	sc := rv.scratch(c.Session)
	id, err := uuid.Parse(strings.TrimPrefix(c.Update.Callback, "respond_appeal_"))
	if err != nil {
		return c.Edit(ctx, msgReviewNoAppeal, backKeyboard())
	}
	appeal, result, err := rv.appealByID(ctx, id)
	if err != nil {
		return c.Edit(ctx, msgReviewNoAppeal, backKeyboard())
	}
	test := sc.Test
	if test == nil || appeal.QuestionIdx >= len(test.Questions) {
		return c.Edit(ctx, msgReviewTestNotFound, backKeyboard())
	}

	sc.AppealID = id
	sc.AppealUserID = appeal.UserID
	sc.AppealQIdx = appeal.QuestionIdx
	sc.AppealResultID = uuid.Nil
	sc.Return = c.Session.Current()

	studentInfo := "Неизвестный"
	answer := noAnswer
	var score float64
	if result != nil {
		sc.AppealResultID = result.ID
		studentInfo = result.StudentInfo
		if a, ok := result.Answer(appeal.QuestionIdx); ok {
			answer = a
		}
		score = result.Score(appeal.QuestionIdx)
	}
	var current string
	if appeal.TeacherComment != "" {
		current = "Текущий ответ преподавателя: " + appeal.TeacherComment + "\n"
	}
	q := test.Questions[appeal.QuestionIdx]
	text := fmt.Sprintf(
		"❓ Вопрос #%d: %s\nПравильный ответ: %s\n👤 Студент: %s\nОтвет: %s\nОценка: %g\nАпелляция: %s\n%s\nВведите комментарий к апелляции:",
		appeal.QuestionIdx+1, clip(q.Text, 200), clip(q.CorrectAnswer, 100),
		studentInfo, answer, score, appeal.StudentComment, current,
	)
	c.Session.Push(StateReviewRespondAppeal)
	return c.Edit(ctx, text, backKeyboard())
}

func (rv *review) handleRespondAppeal(ctx context.Context, c *Ctx) error {
	sc := rv.scratch(c.Session)
	if c.Update.Callback == "back" {
		return rv.returnToPrevious(ctx, c)
	}
	if c.Update.Text == "" {
		return nil
	}
	comment := sanitizeLongInput(c.Update.Text)
	if comment == "" {
		return c.Reply(ctx, msgReviewEmptyComment, backKeyboard())
	}
	if sc.AppealResultID == uuid.Nil {
		return c.Reply(ctx, msgReviewMissingData, backKeyboard())
	}
	result, err := rv.store.ResultByID(ctx, sc.AppealResultID)
	if err != nil {
		return c.Reply(ctx, msgReviewNoResult, backKeyboard())
	}
	appeal := result.AppealFor(sc.AppealQIdx)
	if appeal == nil {
		return c.Reply(ctx, msgReviewNoAppeal, backKeyboard())
	}
	if appeal.TeacherComment == comment {
		if err := c.Reply(ctx, msgReviewResponseSaved, nil); err != nil {
			return err
		}
		return rv.returnToPrevious(ctx, c)
	}

	if err := rv.store.RespondAppeal(ctx, result.UserID, sc.AppealResultID, sc.AppealQIdx, comment); err != nil {
		return err
	}
	test := sc.Test
	if test != nil && sc.AppealQIdx < len(test.Questions) {
		rv.notifier.Add(c.Session.UserID, notify.Change{
			Kind:         notify.KindAppeal,
			StudentID:    result.UserID,
			TestID:       test.ID,
			TestName:     test.Name,
			QuestionIdx:  sc.AppealQIdx + 1,
			QuestionText: clip(test.Questions[sc.AppealQIdx].Text, 50),
			Score:        result.Score(sc.AppealQIdx),
			Comment:      comment,
		})
	}

	if err := c.Reply(ctx, msgReviewResponseSaved, nil); err != nil {
		return err
	}
	return rv.returnToPrevious(ctx, c)
}
