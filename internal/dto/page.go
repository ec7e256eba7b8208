package dto

import "github.com/coup-study/coup-api/internal/utils"

// Page is the pagination block of list responses
type Page = utils.PaginationResponse

func NewPage(params utils.PaginationParams, total int64) Page {
	return Page{Page: params.Page, Limit: params.Limit, Total: total}
}
