package rabbitmq

import (
	"errors"
	"strconv"
	"time"
)

var errMissingSession = errors.New("event without session_id")

// RetryCount reads the retry counter carried in the x-retry header.
func RetryCount(headers map[string]any) int {
	switch v := headers["x-retry"].(type) {
	case int32:
		return int(v)
	case int64:
		return int(v)
	case int:
		return v
	case string:
		n, _ := strconv.Atoi(v)
		return n
	}
	return 0
}

func formatMillis(d time.Duration) string {
	if d < time.Millisecond {
		d = time.Millisecond
	}
	return strconv.FormatInt(d.Milliseconds(), 10)
}
