package handlers

import (
	"context"
	"strings"
	"time"

	"github.com/airenas/chapter-transcriber/internal/utils"
	"github.com/airenas/go-app/pkg/goapp"
)

// Cleaner normalizes chapter text
type Cleaner struct {
}

// NewCleaner creates a text cleaner
func NewCleaner() *Cleaner {
	res := Cleaner{}
	goapp.Log.Info().Msg("Cleaner")
	return &res
}

func (sp *Cleaner) Process(ctx context.Context, data string) (string, error) {
	defer utils.MeasureTime("cleaner", time.Now())
	data = strings.TrimSpace(data)
	data = strings.ReplaceAll(data, "_", " ")
	data = strings.Join(strings.Fields(data), " ")
	return data, nil
}
