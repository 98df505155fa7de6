package rest

import (
	"fmt"
	"strconv"

	"github.com/gin-gonic/gin"
)

const (
	defaultLimit = 50
	maxLimit     = 200
)

// PaginationParams holds parsed limit/offset query parameters
type PaginationParams struct {
	Limit  int
	Offset int
}

// ParsePagination parses limit and offset query parameters with defaults
func ParsePagination(c *gin.Context) (PaginationParams, error) {
	params := PaginationParams{Limit: defaultLimit}

	if raw := c.Query("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit <= 0 {
			return params, fmt.Errorf("limit must be a positive integer")
		}
		if limit > maxLimit {
			return params, fmt.Errorf("limit must not exceed %d", maxLimit)
		}
		params.Limit = limit
	}

	if raw := c.Query("offset"); raw != "" {
		offset, err := strconv.Atoi(raw)
		if err != nil || offset < 0 {
			return params, fmt.Errorf("offset must be a non-negative integer")
		}
		params.Offset = offset
	}

	return params, nil
}

// parseIDParam parses a positive integer path parameter
func parseIDParam(c *gin.Context, name string) (int64, error) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%s must be a positive integer", name)
	}
	return id, nil
}

// parseBoolQuery parses an optional boolean query parameter
func parseBoolQuery(c *gin.Context, name string) (bool, error) {
	raw := c.Query(name)
	if raw == "" {
		return false, nil
	}
	value, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("%s must be a boolean", name)
	}
	return value, nil
}
