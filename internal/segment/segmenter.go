package segment

import (
	"math"
	"strings"

	"github.com/airenas/chapter-transcriber/internal/domain"
)

// Notifier receives the transcription progress percentage at each chapter
// close. May be nil.
type Notifier func(percent int)

// Segmenter turns a forward-only ASR segment stream into ordered chapters.
// It reads the stream exactly once and does no I/O.
type Segmenter struct {
	chunkDuration float64
	notify        Notifier
}

// New creates a segmenter for the given time-based chunk size in seconds.
func New(chunkDuration float64, notify Notifier) *Segmenter {
	return &Segmenter{chunkDuration: chunkDuration, notify: notify}
}

// Chapters consumes the segment stream and returns the chaptered transcript.
// Mode selection, in priority order: short audio collapses to one chapter,
// real metadata boundaries drive chapter edges, otherwise chapters are cut
// by elapsed time. hints is the normalized boundary list from the source;
// a single boundary with EndTime == 0 means "no real chapters".
func (s *Segmenter) Chapters(segments <-chan domain.Segment, totalDuration float64, hints []domain.Chapter) []domain.Chapter {
	if !hasRealBoundaries(hints) && totalDuration <= s.chunkDuration {
		return s.singleChapter(segments)
	}
	if hasRealBoundaries(hints) {
		return s.fromMetadata(segments, hints, totalDuration)
	}
	return s.timeBased(segments, totalDuration)
}

func hasRealBoundaries(hints []domain.Chapter) bool {
	return len(hints) > 0 && hints[0].EndTime != 0
}

func (s *Segmenter) singleChapter(segments <-chan domain.Segment) []domain.Chapter {
	var texts []string
	var first, last domain.Segment
	n := 0
	for seg := range segments {
		if n == 0 {
			first = seg
		}
		last = seg
		texts = append(texts, seg.Text)
		n++
	}
	if n == 0 {
		return nil
	}
	return []domain.Chapter{{
		StartTime: round2(first.Start),
		EndTime:   round2(last.End),
		Text:      joinTexts(texts),
		Number:    1,
	}}
}

// fromMetadata walks the boundary list in order, filling each chapter with
// the segments whose start falls inside it. The segment that reaches a
// boundary's end closes the chapter and overrides the boundary's end time
// with its own; that same time seeds the next boundary's start, so adjacent
// chapters never gap or overlap. Source boundaries are advisory for end
// alignment, not authoritative.
func (s *Segmenter) fromMetadata(segments <-chan domain.Segment, hints []domain.Chapter, totalDuration float64) []domain.Chapter {
	chapters := make([]domain.Chapter, len(hints))
	copy(chapters, hints)
	var current []domain.Segment
	for i := range chapters {
		current = current[:0]
		for seg := range segments {
			if seg.End >= chapters[i].EndTime {
				end := round2(seg.End)
				chapters[i].EndTime = end
				chapters[i].Text = joinSegments(current)
				chapters[i].Number = i + 1
				if i+1 < len(chapters) {
					chapters[i+1].StartTime = end
				}
				s.progress(seg.End, totalDuration)
				current = current[:0]
				break
			}
			if chapters[i].StartTime <= seg.Start && seg.Start < chapters[i].EndTime {
				current = append(current, seg)
			}
		}
	}
	// the final boundary may be under-filled when the stream exhausts
	if len(current) > 0 {
		last := len(chapters) - 1
		chapters[last].Text = joinSegments(current)
		chapters[last].Number = len(chapters)
		chapters[last].StartTime = round2(current[0].Start)
	}
	return chapters
}

// timeBased greedily accumulates segments and closes a chapter when a
// segment's start reaches the running target end. Chapters end on segment
// boundaries, never mid-segment.
func (s *Segmenter) timeBased(segments <-chan domain.Segment, totalDuration float64) []domain.Chapter {
	var chapters []domain.Chapter
	targetEnd := s.chunkDuration
	current := domain.Chapter{StartTime: 0.0, EndTime: round2(targetEnd), Number: 1}
	var texts []string
	number := 1
	for seg := range segments {
		if seg.Start >= targetEnd {
			current.Text = joinTexts(texts)
			chapters = append(chapters, current)
			number++
			current = domain.Chapter{StartTime: round2(seg.Start), EndTime: 0.0, Number: number}
			texts = texts[:0]
			targetEnd = seg.End + s.chunkDuration
			s.progress(seg.End, totalDuration)
		} else {
			texts = append(texts, seg.Text)
			current.EndTime = round2(seg.End)
		}
	}
	if len(texts) > 0 {
		current.Text = joinTexts(texts)
		chapters = append(chapters, current)
	}
	return chapters
}

func (s *Segmenter) progress(segEnd, totalDuration float64) {
	if s.notify == nil || totalDuration <= 0 {
		return
	}
	s.notify(int(math.Round(segEnd / totalDuration * 100)))
}

func joinSegments(segs []domain.Segment) string {
	texts := make([]string, 0, len(segs))
	for _, seg := range segs {
		texts = append(texts, seg.Text)
	}
	return joinTexts(texts)
}

func joinTexts(texts []string) string {
	res := make([]string, 0, len(texts))
	for _, t := range texts {
		if t = strings.TrimSpace(t); t != "" {
			res = append(res, t)
		}
	}
	return strings.Join(res, " ")
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// Stream adapts an in-memory segment slice to the forward-only stream shape.
func Stream(segs []domain.Segment) <-chan domain.Segment {
	ch := make(chan domain.Segment)
	go func() {
		defer close(ch)
		for _, seg := range segs {
			ch <- seg
		}
	}()
	return ch
}
