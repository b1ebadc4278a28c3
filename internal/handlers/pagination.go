package handlers

import (
	"strconv"

	"storefront/internal/apperr"
)

const maxPageLimit = 100

var errInvalidPagination = apperr.BadRequest("invalid pagination params")

func parsePaginationParams(pageStr, limitStr string) (int64, int64, error) {
	page := int64(1)
	limit := int64(20)

	if pageStr != "" {
		p, err := strconv.ParseInt(pageStr, 10, 64)
		if err != nil || p < 1 {
			return 0, 0, errInvalidPagination
		}
		page = p
	}

	if limitStr != "" {
		l, err := strconv.ParseInt(limitStr, 10, 64)
		if err != nil || l < 1 {
			return 0, 0, errInvalidPagination
		}
		limit = l
	}
	if limit > maxPageLimit {
		limit = maxPageLimit
	}

	return page, limit, nil
}

type pageResponse struct {
	Items      interface{} `json:"items"`
	Page       int64       `json:"page"`
	Limit      int64       `json:"limit"`
	Total      int64       `json:"total"`
	TotalPages int64       `json:"totalPages"`
}

func newPage(items interface{}, page, limit, total int64) pageResponse {
	pages := int64(0)
	if limit > 0 {
		pages = (total + limit - 1) / limit
	}
	return pageResponse{Items: items, Page: page, Limit: limit, Total: total, TotalPages: pages}
}
