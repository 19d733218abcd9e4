package handlers_test

import (
	"strconv"
	"time"
)

var seenAt = time.Date(2024, 6, 1, 8, 30, 0, 0, time.UTC)

func itoa(id uint) string {
	return strconv.FormatUint(uint64(id), 10)
}
