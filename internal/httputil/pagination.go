package httputil

import (
	"fmt"
	"strconv"

	"github.com/gin-gonic/gin"
)

// ParseCursorPagination reads the cursor and limit query parameters. The cursor is
// returned verbatim; limit defaults to defaultLimit and cannot exceed maxLimit.
func ParseCursorPagination(c *gin.Context, defaultLimit, maxLimit int) (cursor string, limit int, err error) {
	cursor = c.Query("cursor")

	limitStr := c.Query("limit")
	if limitStr == "" {
		return cursor, defaultLimit, nil
	}
	limit, err = strconv.Atoi(limitStr)
	if err != nil || limit < 1 || limit > maxLimit {
		return "", 0, fmt.Errorf("invalid limit parameter: must be between 1 and %d", maxLimit)
	}

	return cursor, limit, nil
}

// ParseBoolQuery reads an optional boolean query parameter. Missing or empty values are false.
func ParseBoolQuery(c *gin.Context, name string) (bool, error) {
	raw := c.Query(name)
	if raw == "" {
		return false, nil
	}
	value, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("invalid %s parameter: must be a boolean", name)
	}
	return value, nil
}
