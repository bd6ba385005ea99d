package utils

import (
	"strconv"
)

// StringToInt converts string to int, returns 0 if error
func StringToInt(s string) int {
	i, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return i
}

// Paging clamps limit/offset query values. Missing or invalid limit falls
// back to def; limit is capped at max; negative offsets become 0.
func Paging(limitStr, offsetStr string, def, max int) (limit, offset int) {
	limit = StringToInt(limitStr)
	if limit <= 0 {
		limit = def
	}
	if limit > max {
		limit = max
	}
	offset = StringToInt(offsetStr)
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
