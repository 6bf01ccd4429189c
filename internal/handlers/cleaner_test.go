package handlers

import (
	"context"
	"errors"
	"testing"
)

func TestCleaner_Process(t *testing.T) {
	tests := []struct {
		name string
		data string
		want string
	}{
		{name: "trims", data: "  hello  ", want: "hello"},
		{name: "underscores", data: "hello_world", want: "hello world"},
		{name: "collapses whitespace", data: "hello   there \t world", want: "hello there world"},
		{name: "empty", data: "", want: ""},
		{name: "mixed", data: " a_b   c ", want: "a b c"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NewCleaner().Process(context.Background(), tt.data)
			if err != nil {
				t.Errorf("Process() failed: %v", err)
			}
			if got != tt.want {
				t.Errorf("Process() = %q, want %q", got, tt.want)
			}
		})
	}
}

type upperHandler struct{}

func (upperHandler) Process(ctx context.Context, data string) (string, error) {
	return data + "!", nil
}

type failHandler struct{}

func (failHandler) Process(ctx context.Context, data string) (string, error) {
	return "", errors.New("broken")
}

func TestListHandler_Process(t *testing.T) {
	hList, err := NewListHandler()
	if err != nil {
		t.Fatalf("NewListHandler() failed: %v", err)
	}
	hList.Add(upperHandler{})
	hList.Add(failHandler{})
	hList.Add(upperHandler{})

	got, err := hList.Process(context.Background(), "text")
	if err != nil {
		t.Fatalf("Process() failed: %v", err)
	}
	// the failing middleware is skipped, the others still apply
	if got != "text!!" {
		t.Errorf("Process() = %q, want %q", got, "text!!")
	}
}
