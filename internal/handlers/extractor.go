package handlers

import (
	"context"
	"errors"
	"fmt"

	"github.com/airenas/chapter-transcriber/internal/domain"
)

// ErrMetadataExtraction marks a source that could not be reached or parsed.
// No transcription state is persisted when extraction fails.
var ErrMetadataExtraction = errors.New("error extracting metadata")

// Extractor produces the metadata record, the raw chapter boundaries, and
// the local audio path for a source.
type Extractor interface {
	Extract(ctx context.Context, source domain.AudioSource) (*domain.Metadata, []domain.Chapter, string, error)
}

// MetadataExtractor dispatches on the AudioSource variant, resolved once at
// construction of the source rather than re-derived per call site.
type MetadataExtractor struct {
	youtube *YouTubeHandler
	audio   *AudioFileHandler
}

func NewMetadataExtractor(youtube *YouTubeHandler, audio *AudioFileHandler) *MetadataExtractor {
	return &MetadataExtractor{youtube: youtube, audio: audio}
}

// Extract implements Extractor.
func (e *MetadataExtractor) Extract(ctx context.Context, source domain.AudioSource) (*domain.Metadata, []domain.Chapter, string, error) {
	var (
		meta     *domain.Metadata
		chapters []domain.Chapter
		path     string
		err      error
	)
	switch source.Kind() {
	case domain.SourceYouTube:
		meta, chapters, path, err = e.youtube.Extract(ctx, source.URL())
	case domain.SourceLocalFile:
		meta, chapters, path, err = e.audio.Extract(ctx, source.Path())
	default:
		err = fmt.Errorf("unsupported source kind %d", source.Kind())
	}
	if err != nil {
		return nil, nil, "", fmt.Errorf("%w: %w", ErrMetadataExtraction, err)
	}
	return meta, chapters, path, nil
}
