package flow

import "github.com/schooltest/quizbot/internal/chat"

// pageSize is how many entries every paginated list shows at once.
const pageSize = 5

// paginate clamps page into range and returns the visible window plus
// the clamped page and total page count.
func paginate[T any](items []T, page int) ([]T, int, int) {
	totalPages := (len(items) + pageSize - 1) / pageSize
	if totalPages == 0 {
		totalPages = 1
	}
	if page < 0 {
		page = 0
	}
	if page >= totalPages {
		page = totalPages - 1
	}
	start := page * pageSize
	end := start + pageSize
	if end > len(items) {
		end = len(items)
	}
	return items[start:end], page, totalPages
}

// navRow builds prev/next buttons for a paginated list, emitting
// callbacks "<prefix>_prev" and "<prefix>_next". Absent sides are
// omitted; an empty row means the list fits one page.
func navRow(page, totalPages int, prefix string) []chat.Button {
	var row []chat.Button
	if page > 0 {
		row = append(row, chat.Button{Label: "◀️ Назад", Data: prefix + "_prev"})
	}
	if page < totalPages-1 {
		row = append(row, chat.Button{Label: "Вперёд ▶️", Data: prefix + "_next"})
	}
	return row
}

// stepPage applies a prev/next action to a page number.
func stepPage(page int, action string) int {
	switch action {
	case "prev":
		return page - 1
	case "next":
		return page + 1
	}
	return page
}
