package utils

import (
	"context"
	"testing"
	"time"
)

func TestFormatTime(t *testing.T) {
	tests := []struct {
		name    string
		seconds float64
		want    string
	}{
		{name: "zero", seconds: 0, want: "00:00:00"},
		{name: "seconds", seconds: 59.7, want: "00:00:59"},
		{name: "minutes", seconds: 100, want: "00:01:40"},
		{name: "hours", seconds: 3723, want: "01:02:03"},
		{name: "long", seconds: 360000, want: "100:00:00"},
		{name: "negative", seconds: -5, want: "00:00:00"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FormatTime(tt.seconds); got != tt.want {
				t.Errorf("FormatTime() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSleepCtx(t *testing.T) {
	if err := SleepCtx(context.Background(), time.Millisecond); err != nil {
		t.Errorf("SleepCtx() failed: %v", err)
	}
	ctx, cancelF := context.WithCancel(context.Background())
	cancelF()
	if err := SleepCtx(ctx, time.Minute); err == nil {
		t.Error("SleepCtx() succeeded with cancelled context")
	}
}
