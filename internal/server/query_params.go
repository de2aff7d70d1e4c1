package server

import (
	"strconv"
	"strings"
)

func parseOptionalPositiveInt(value string) (*int, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil, nil
	}
	parsed, err := strconv.Atoi(trimmed)
	if err != nil {
		return nil, err
	}
	if parsed < 1 {
		return nil, strconv.ErrRange
	}
	return &parsed, nil
}

// parsePagination reads page and per_page; absent values stay zero so the
// gateway applies its own defaults.
func parsePagination(pageRaw, perPageRaw string) (int, int, error) {
	page, err := parseOptionalPositiveInt(pageRaw)
	if err != nil {
		return 0, 0, newValidationError("page", "invalid_page", "page must be a positive integer")
	}
	perPage, err := parseOptionalPositiveInt(perPageRaw)
	if err != nil {
		return 0, 0, newValidationError("per_page", "invalid_per_page", "per_page must be a positive integer")
	}

	var p, pp int
	if page != nil {
		p = *page
	}
	if perPage != nil {
		pp = *perPage
	}
	return p, pp, nil
}
