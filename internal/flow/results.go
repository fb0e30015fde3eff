package flow

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/schooltest/quizbot/internal/chat"
	"github.com/schooltest/quizbot/internal/model"
	"github.com/schooltest/quizbot/internal/scoring"
	"github.com/schooltest/quizbot/internal/session"
	"github.com/schooltest/quizbot/internal/storage"
)

// stateResultsScratch keys the student's results-viewing context.
const stateResultsScratch session.State = "results_scratch"

const (
	msgResultsEmpty   = "📭 Нет доступных работ. Вернитесь в меню:"
	msgResultsList    = "📊 Ваши работы:"
	msgResultsNoData  = "📜 Нет данных."
	msgResultsNoScore = "Оценка отсутствует"

	resultsDateLayout = "02.01.2006 15:04"
)

type resultEntry struct {
	Result model.Result
	Test   *model.Test
}

type resultsScratch struct {
	Entries []resultEntry
	Page    int
	Parts   []string
	PartIdx int
}

// resultsViewer drives the student's results-browsing conversation.
type resultsViewer struct {
	store  *storage.Store
	logger zerolog.Logger
}

func newResultsViewer(store *storage.Store, logger zerolog.Logger) *resultsViewer {
	return &resultsViewer{store: store, logger: logger.With().Str("flow", "results").Logger()}
}

func (v *resultsViewer) register(e *Engine) {
	e.register(StateResultsList, v.handleList)
	e.register(StateResultsDetails, v.handleDetails)
}

func (v *resultsViewer) scratch(s *session.Session) *resultsScratch {
	if val, ok := s.Get(stateResultsScratch, "scratch"); ok {
		if sc, ok := val.(*resultsScratch); ok {
			return sc
		}
	}
	sc := &resultsScratch{}
	s.Set(stateResultsScratch, "scratch", sc)
	return sc
}

func (v *resultsViewer) toMainMenu(ctx context.Context, c *Ctx) error {
	c.Session.ClearState(stateResultsScratch)
	popTo(c.Session, StateStudentMain)
	return c.Edit(ctx, msgStudentMenu, studentMenuKeyboard())
}

func (v *resultsViewer) start(ctx context.Context, c *Ctx) error {
	s := c.Session
	sc := v.scratch(s)

	results, err := v.store.StudentResults(ctx, s.UserID)
	if err != nil {
		return err
	}
	sc.Entries = sc.Entries[:0]
	for _, r := range results {
		test, err := v.store.TestByID(ctx, r.TestID)
		if err != nil {
			v.logger.Warn().
				Str("result_id", r.ID.String()).
				Str("test_id", r.TestID.String()).
				Msg("result references missing test")
		}
		sc.Entries = append(sc.Entries, resultEntry{Result: r, Test: test})
	}

	if len(sc.Entries) == 0 {
		popTo(s, StateStudentMain)
		return c.Edit(ctx, msgResultsEmpty, studentMenuKeyboard())
	}

	s.Push(StateResultsList)
	return v.showList(ctx, c)
}

func (v *resultsViewer) showList(ctx context.Context, c *Ctx) error {
	sc := v.scratch(c.Session)
	onPage, page, totalPages := paginate(sc.Entries, sc.Page)
	sc.Page = page

	var kb chat.Keyboard
	for i, e := range onPage {
		name := "Без названия"
		if e.Test != nil {
			name = sanitizeInput(e.Test.Name)
		}
		label := fmt.Sprintf("%s (%s)", name, e.Result.Timestamp.Format(resultsDateLayout))
		kb = append(kb, chat.Row(chat.Button{Label: label, Data: fmt.Sprintf("view_%d", page*pageSize+i)}))
	}
	var nav []chat.Button
	if page > 0 {
		nav = append(nav, chat.Button{Label: "⬅️ Пред. страница", Data: "results_page_prev"})
	}
	if page < totalPages-1 {
		nav = append(nav, chat.Button{Label: "След. страница ➡️", Data: "results_page_next"})
	}
	kb = appendRows(kb, nav)
	kb = append(kb, chat.Row(chat.Button{Label: "🔙 Назад", Data: "back_to_main"}))
	return c.Edit(ctx, msgResultsList, kb)
}

func (v *resultsViewer) handleList(ctx context.Context, c *Ctx) error {
	sc := v.scratch(c.Session)
	switch {
	case c.Update.Callback == "results_page_prev" || c.Update.Callback == "results_page_next":
		sc.Page = stepPage(sc.Page, strings.TrimPrefix(c.Update.Callback, "results_page_"))
		return v.showList(ctx, c)
	case strings.HasPrefix(c.Update.Callback, "view_"):
		idx, err := strconv.Atoi(strings.TrimPrefix(c.Update.Callback, "view_"))
		if err != nil || idx < 0 || idx >= len(sc.Entries) {
			return c.Edit(ctx, msgResultNotFound, backKeyboard())
		}
		entry := sc.Entries[idx]
		if entry.Test == nil {
			return c.Edit(ctx, msgTestNotFound, backKeyboard())
		}
		sc.Parts = buildResultReport(entry.Test, &entry.Result)
		sc.PartIdx = 0
		c.Session.Push(StateResultsDetails)
		return v.showDetails(ctx, c)
	case c.Update.Callback == "back_to_main" || c.Update.Callback == "back":
		return v.toMainMenu(ctx, c)
	}
	return nil
}

// buildResultReport renders the stored result as per-question blocks
// packed into screen-sized parts.
func buildResultReport(test *model.Test, result *model.Result) []string {
	header := fmt.Sprintf("📋 Результаты теста: %s\nПредмет: %s\nКлассы: %s\nДата завершения: %s\n\n",
		sanitizeInput(test.Name), sanitizeInput(test.Subject),
		strings.Join(test.Classes, ", "), result.Timestamp.Format(reviewDateLayout))

	var parts []string
	current := header
	for idx, q := range test.Questions {
		key := model.QuestionKey(idx)
		answer, answered := result.Answer(idx)
		if !answered {
			answer = "Не отвечено"
		}
		answer = clip(sanitizeInput(answer), 200)

		scoreText := msgResultsNoScore
		if _, ok := result.Scores[key]; ok {
			scoreText = scoring.DisplayOutOfFive(result.Score(idx))
		}

		var b strings.Builder
		if q.Type == model.QuestionClosed {
			var opts []string
			for i, opt := range q.Options {
				opts = append(opts, fmt.Sprintf("%d. %s", i+1, opt))
			}
			fmt.Fprintf(&b, "❓ Вопрос %d: %s\nВарианты ответа:\n%s\nВаш ответ: %s\nОценка: %s\n",
				idx+1, clip(sanitizeInput(q.Text), 200), strings.Join(opts, "\n"), answer, scoreText)
		} else {
			fmt.Fprintf(&b, "❓ Вопрос %d: %s\nВаш ответ: %s\nОценка: %s\n",
				idx+1, clip(sanitizeInput(q.Text), 200), answer, scoreText)
		}

		if comment := result.TeacherComments[key]; comment != "" {
			fmt.Fprintf(&b, "Комментарий учителя: %s\n", clip(sanitizeInput(comment), 200))
		} else {
			b.WriteString("Учитель не оставил комментарий\n")
		}
		if q.Type == model.QuestionOpen {
			if comment := result.ModelComments[key]; comment != "" {
				fmt.Fprintf(&b, "Комментарий модели: %s\n", clip(sanitizeInput(comment), 200))
			}
		}
		if appeal := result.AppealFor(idx); appeal != nil {
			fmt.Fprintf(&b, "📢 Апелляция (отправлена %s):\nКомментарий: %s\nСтатус: %s\n",
				appeal.Timestamp.Format(reviewDateLayout),
				clip(sanitizeInput(appeal.StudentComment), 200),
				appealStatusLabel(appeal.Status))
			if appeal.TeacherComment != "" {
				fmt.Fprintf(&b, "Ответ учителя: %s\n", clip(sanitizeInput(appeal.TeacherComment), 200))
			}
		}
		b.WriteString("\n")

		block := b.String()
		if len([]rune(current))+len([]rune(block)) > partLen {
			parts = append(parts, current)
			current = block
		} else {
			current += block
		}
	}
	if current != "" {
		parts = append(parts, current)
	}
	return parts
}

func detailsKeyboard(partIdx, totalParts int) chat.Keyboard {
	var kb chat.Keyboard
	var nav []chat.Button
	if partIdx > 0 {
		nav = append(nav, chat.Button{Label: "⬅️ Пред. часть", Data: "prev_report_part"})
	}
	if partIdx < totalParts-1 {
		nav = append(nav, chat.Button{Label: "След. часть ➡️", Data: "next_report_part"})
	}
	kb = appendRows(kb, nav)
	kb = append(kb, chat.Row(chat.Button{Label: "📜 К списку тестов", Data: "back_to_list"}))
	kb = append(kb, chat.Row(chat.BackButton()))
	return kb
}

func (v *resultsViewer) showDetails(ctx context.Context, c *Ctx) error {
	sc := v.scratch(c.Session)
	if len(sc.Parts) == 0 {
		return c.Edit(ctx, msgResultsNoData, backKeyboard())
	}
	if sc.PartIdx >= len(sc.Parts) {
		sc.PartIdx = len(sc.Parts) - 1
	}
	return c.Edit(ctx, sc.Parts[sc.PartIdx], detailsKeyboard(sc.PartIdx, len(sc.Parts)))
}

func (v *resultsViewer) handleDetails(ctx context.Context, c *Ctx) error {
	sc := v.scratch(c.Session)
	switch c.Update.Callback {
	case "prev_report_part":
		if sc.PartIdx > 0 {
			sc.PartIdx--
		}
		return v.showDetails(ctx, c)
	case "next_report_part":
		if sc.PartIdx < len(sc.Parts)-1 {
			sc.PartIdx++
		}
		return v.showDetails(ctx, c)
	case "back_to_list", "back":
		sc.Parts = nil
		sc.PartIdx = 0
		c.Session.Pop()
		return v.showList(ctx, c)
	case "cancel":
		return v.toMainMenu(ctx, c)
	}
	return nil
}
