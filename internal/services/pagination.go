package services

import (
	"github.com/taskhive/backend/pkg/response"
)

const (
	maxPageLimit = 100
	maxPage      = 1_000_000
)

// Pagination is bound from page/limit query parameters.
type Pagination struct {
	Page  int `form:"page"`
	Limit int `form:"limit"`
}

// normalize fills defaults and rejects out-of-range values.
func (p *Pagination) normalize(defaultLimit int) error {
	if p.Page == 0 {
		p.Page = 1
	}
	if p.Limit == 0 {
		p.Limit = defaultLimit
	}
	if p.Page < 1 || p.Page > maxPage {
		return response.NewBadRequest("Page must be between 1 and 1000000")
	}
	if p.Limit < 1 || p.Limit > maxPageLimit {
		return response.NewBadRequest("Limit must be between 1 and 100")
	}
	return nil
}

func (p *Pagination) offset() int {
	return (p.Page - 1) * p.Limit
}

type PageInfo struct {
	Total      int64 `json:"total"`
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	TotalPages int   `json:"total_pages"`
}

func newPageInfo(p Pagination, total int64) PageInfo {
	pages := int((total + int64(p.Limit) - 1) / int64(p.Limit))
	return PageInfo{Total: total, Page: p.Page, Limit: p.Limit, TotalPages: pages}
}
