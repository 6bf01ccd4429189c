package handlers

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/airenas/chapter-transcriber/internal/domain"
	"github.com/airenas/chapter-transcriber/internal/utils"
	"github.com/airenas/go-app/pkg/goapp"
	"github.com/go-audio/wav"
)

// AudioFileHandler builds metadata for an already-saved local audio file.
// Local files carry no chapter information, so the returned boundary list is
// the single sentinel chapter.
type AudioFileHandler struct {
}

func NewAudioFileHandler() *AudioFileHandler {
	return &AudioFileHandler{}
}

// Extract reads file attributes: the title comes from the basename, the
// upload date from the file's mtime, and, for WAV input, the duration from
// the container header.
func (h *AudioFileHandler) Extract(ctx context.Context, path string) (*domain.Metadata, []domain.Chapter, string, error) {
	goapp.Log.Info().Str("path", path).Msg("extracting audio attributes")
	fi, err := os.Stat(path)
	if err != nil {
		return nil, nil, "", fmt.Errorf("stat audio file: %w", err)
	}
	meta := &domain.Metadata{
		Title:      strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)),
		UploadDate: fi.ModTime().Format("2006-01-02"),
	}
	if strings.EqualFold(filepath.Ext(path), ".wav") {
		if dur, err := wavDuration(path); err != nil {
			goapp.Log.Warn().Err(err).Str("path", path).Msg("can't read wav duration")
		} else {
			meta.Duration = utils.FormatTime(dur.Seconds())
		}
	}
	chapters := []domain.Chapter{{StartTime: 0.0, EndTime: 0.0}}
	return meta, chapters, path, nil
}

func wavDuration(path string) (time.Duration, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	d := wav.NewDecoder(f)
	d.ReadInfo()
	if format := d.Format(); format != nil {
		goapp.Log.Debug().Int("sample_rate", format.SampleRate).Int("channels", format.NumChannels).Msg("wav format")
	}
	dur, err := d.Duration()
	if err != nil {
		return 0, fmt.Errorf("read wav duration: %w", err)
	}
	return dur, nil
}
