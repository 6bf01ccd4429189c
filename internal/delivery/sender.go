package delivery

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/airenas/chapter-transcriber/internal/api"
	"github.com/airenas/chapter-transcriber/internal/domain"
	"github.com/airenas/chapter-transcriber/internal/utils"
	"github.com/airenas/go-app/pkg/goapp"
)

// ErrUnknownField indicates a resync request naming a field outside the
// allowed set. Reported to the client as a status message, not a failure.
var ErrUnknownField = errors.New("unknown content field")

var allowedFields = map[string]bool{
	api.FieldKey:         true,
	api.FieldBasename:    true,
	api.FieldNumChapters: true,
	api.FieldMetadata:    true,
	api.FieldChapters:    true,
}

// Sender shapes orchestrator output into the typed event protocol. The fixed
// pacing delay between data events stands in for real flow control: the
// transport is push-only, so delays let a slow client render incrementally.
type Sender struct {
	queue *Queue
	pace  time.Duration
}

func NewSender(queue *Queue, pace time.Duration) *Sender {
	return &Sender{queue: queue, pace: pace}
}

// Status sends a free-text non-terminal progress message.
func (s *Sender) Status(msg string) {
	s.queue.Put(api.Message{Event: api.EventStatus, Data: msg})
}

// Error sends the terminal server-error event.
func (s *Sender) Error(msg string) {
	s.queue.Put(api.Message{Event: api.EventServerError, Data: msg})
}

// Done sends the end-of-stream data sentinel.
func (s *Sender) Done() {
	s.queue.Put(api.Message{Event: api.EventData, Data: api.DataDone})
}

func (s *Sender) data(payload any) error {
	bs, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal data payload: %w", err)
	}
	s.queue.Put(api.Message{Event: api.EventData, Data: string(bs)})
	return nil
}

// SendState emits the ordered batch for the named state fields: reset-state,
// then one data event per field, chapters one event each in number order,
// all separated by the pacing delay. Unknown field names produce a single
// status message and no data events.
func (s *Sender) SendState(ctx context.Context, state *domain.TranscriptionState, fields []string) error {
	var invalid []string
	for _, f := range fields {
		if !allowedFields[f] {
			invalid = append(invalid, f)
		}
	}
	if len(invalid) > 0 {
		goapp.Log.Error().Strs("fields", invalid).Msg("invalid content fields requested")
		s.Status(fmt.Sprintf("Invalid values: [%s]", strings.Join(invalid, ", ")))
		return fmt.Errorf("%w: %s", ErrUnknownField, strings.Join(invalid, ", "))
	}

	// let pending status messages reach the client first
	if err := utils.SleepCtx(ctx, s.pace); err != nil {
		return err
	}
	s.queue.Put(api.Message{Event: api.EventResetState, Data: "Clear out the previous content."})
	if err := utils.SleepCtx(ctx, s.pace); err != nil {
		return err
	}

	for _, field := range fields {
		switch field {
		case api.FieldKey:
			if err := s.data(map[string]string{api.FieldKey: state.Key}); err != nil {
				return err
			}
		case api.FieldBasename:
			if err := s.data(map[string]string{api.FieldBasename: state.Basename}); err != nil {
				return err
			}
		case api.FieldNumChapters:
			if err := s.data(map[string]int{api.FieldNumChapters: len(state.Chapters)}); err != nil {
				return err
			}
		case api.FieldMetadata:
			if err := s.data(map[string]*domain.Metadata{api.FieldMetadata: state.Metadata}); err != nil {
				return err
			}
		case api.FieldChapters:
			for _, ch := range state.Chapters {
				if err := s.data(map[string]api.ChapterPayload{"chapter": toPayload(ch)}); err != nil {
					return err
				}
				goapp.Log.Debug().Int("chapter", ch.Number).Msg("sent chapter")
				if err := utils.SleepCtx(ctx, s.pace); err != nil {
					return err
				}
			}
		}
		if err := utils.SleepCtx(ctx, s.pace); err != nil {
			return err
		}
	}
	goapp.Log.Info().Str("fields", strings.Join(fields, ", ")).Msg("content sent")
	return nil
}

func toPayload(ch domain.Chapter) api.ChapterPayload {
	return api.ChapterPayload{
		Title:     ch.Title,
		StartTime: utils.FormatTime(ch.StartTime),
		EndTime:   utils.FormatTime(ch.EndTime),
		Text:      ch.Text,
		Number:    ch.Number,
	}
}
