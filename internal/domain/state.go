package domain

import "fmt"

// TranscriptionState is the aggregate root of one transcription: created once
// metadata and raw chapter boundaries are known, filled in as chapter text
// arrives, complete when every chapter has text.
type TranscriptionState struct {
	Key            string     `json:"key"`
	Basename       string     `json:"basename"`
	LocalAudioPath string     `json:"local_audio_path"`
	Metadata       *Metadata  `json:"metadata,omitempty"`
	Chapters       []Chapter  `json:"chapters"`
}

// UpdateChapter sets the text of the chapter starting at start.
func (s *TranscriptionState) UpdateChapter(start float64, text string) error {
	for i := range s.Chapters {
		if s.Chapters[i].StartTime == start {
			s.Chapters[i].Text = text
			return nil
		}
	}
	return fmt.Errorf("no chapter found with start time %.2f", start)
}

func (s *TranscriptionState) ClearChapters() {
	s.Chapters = nil
}

// IsComplete reports whether every required field is populated and every
// chapter carries transcript text.
func (s *TranscriptionState) IsComplete() bool {
	if s == nil {
		return false
	}
	if s.Key == "" || s.Basename == "" || s.LocalAudioPath == "" || s.Metadata == nil {
		return false
	}
	if len(s.Chapters) == 0 {
		return false
	}
	for _, ch := range s.Chapters {
		if ch.Text == "" {
			return false
		}
	}
	return true
}

// Cleanup nulls the state's fields. Used only on unrecoverable error paths.
func (s *TranscriptionState) Cleanup() {
	if s == nil {
		return
	}
	s.ClearChapters()
	s.Key = ""
	s.Basename = ""
	s.LocalAudioPath = ""
	s.Metadata = nil
}
