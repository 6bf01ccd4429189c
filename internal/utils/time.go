package utils

import (
	"context"
	"fmt"
	"time"
)

// FormatTime renders seconds as hh:mm:ss for display.
func FormatTime(seconds float64) string {
	if seconds < 0 {
		return "00:00:00"
	}
	total := int(seconds)
	mins, secs := total/60, total%60
	hours, mins := mins/60, mins%60
	return fmt.Sprintf("%02d:%02d:%02d", hours, mins, secs)
}

// SleepCtx waits for d or until ctx is done, returning ctx.Err() in that case.
func SleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
