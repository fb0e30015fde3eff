package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/schooltest/quizbot/internal/response"
)

// pageParams reads the page/per_page query values shared by all list
// endpoints.
func pageParams(c *gin.Context) (page, perPage int) {
	page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	perPage, _ = strconv.Atoi(c.DefaultQuery("per_page", "10"))
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = 10
	}
	return page, perPage
}

// paginate cuts one page out of items and describes it for the
// response envelope. An out-of-range page clamps to the last one.
func paginate[T any](items []T, page, perPage int) ([]T, *response.Pagination) {
	total := len(items)
	totalPages := (total + perPage - 1) / perPage
	if totalPages == 0 {
		totalPages = 1
	}
	if page > totalPages {
		page = totalPages
	}
	lo := (page - 1) * perPage
	hi := lo + perPage
	if hi > total {
		hi = total
	}
	return items[lo:hi], &response.Pagination{
		Page:       page,
		PerPage:    perPage,
		TotalItems: total,
		TotalPages: totalPages,
	}
}
