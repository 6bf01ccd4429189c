package process

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/airenas/chapter-transcriber/internal/api"
	"github.com/airenas/chapter-transcriber/internal/db"
	"github.com/airenas/chapter-transcriber/internal/delivery"
	"github.com/airenas/chapter-transcriber/internal/domain"
	"github.com/airenas/chapter-transcriber/internal/handlers"
	"github.com/airenas/chapter-transcriber/internal/segment"
	"github.com/airenas/chapter-transcriber/internal/utils"
	"github.com/airenas/go-app/pkg/goapp"
	"github.com/oklog/ulid/v2"
)

// ErrBusy rejects a submit while another transcription runs. One job at a
// time, system wide; concurrent requests are not queued.
var ErrBusy = errors.New("another process is already running")

// ErrNoActiveJob is returned by Cancel when nothing runs.
var ErrNoActiveJob = errors.New("no active job")

// ErrNoState is returned by RequestContent for an unknown cache key.
var ErrNoState = errors.New("no state found for key")

// delivery field orders as the client expects them
var (
	cacheHitFields = []string{api.FieldKey, api.FieldBasename, api.FieldNumChapters, api.FieldMetadata, api.FieldChapters}
	finalFields    = []string{api.FieldKey, api.FieldNumChapters, api.FieldBasename, api.FieldMetadata, api.FieldChapters}
)

// Processor drives one transcription request end to end: key resolution,
// cache short-circuit, metadata extraction, segmentation over the ASR
// stream, cache population, and ordered delivery.
type Processor struct {
	cache       *db.StateCache
	extractor   handlers.Extractor
	transcriber handlers.Transcriber
	queue       *delivery.Queue
	sender      *delivery.Sender
	// Middleware optionally post-processes chapter text before storing.
	Middleware handlers.Handler

	baseCtx context.Context

	mu      sync.Mutex
	running bool
	jobID   string
	state   State
	cancelF context.CancelFunc
	done    chan struct{}
}

// New creates a processor. Jobs derive their context from ctx, so process
// shutdown cancels the in-flight job.
func New(ctx context.Context, cache *db.StateCache, extractor handlers.Extractor, transcriber handlers.Transcriber,
	queue *delivery.Queue, sender *delivery.Sender) *Processor {
	return &Processor{baseCtx: ctx, cache: cache, extractor: extractor, transcriber: transcriber,
		queue: queue, sender: sender, state: StateIdle}
}

// Submit starts orchestration for source and returns the job ID. Fails with
// ErrBusy when a job is already active.
func (p *Processor) Submit(source domain.AudioSource) (string, error) {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return "", ErrBusy
	}
	p.running = true
	p.jobID = ulid.Make().String()
	p.state = StateReceived
	ctx, cancelF := context.WithCancel(p.baseCtx)
	p.cancelF = cancelF
	done := make(chan struct{})
	p.done = done
	id := p.jobID
	p.mu.Unlock()

	p.queue.Clear()
	goapp.Log.Info().Str("job", id).Msg("starting transcription job")
	go p.run(ctx, source, done)
	return id, nil
}

// Cancel cancels the active job and waits until it has wound down. The
// delivery queue is cleared; durably written cache entries are kept so
// partial progress survives for resumption.
func (p *Processor) Cancel() error {
	p.mu.Lock()
	cancelF, done := p.cancelF, p.done
	p.mu.Unlock()
	if cancelF == nil {
		return ErrNoActiveJob
	}
	cancelF()
	<-done
	p.queue.Clear()
	goapp.Log.Info().Msg("job cancelled")
	return nil
}

// ClientGone handles a transport-detected disconnect: same as Cancel, but
// quiet when nothing runs.
func (p *Processor) ClientGone() {
	if err := p.Cancel(); err != nil && !errors.Is(err, ErrNoActiveJob) {
		goapp.Log.Error().Err(err).Msg("cancel on disconnect")
	}
}

// RequestContent re-emits the named state fields for key through the ordered
// batch mechanism, letting a client recover content it missed.
func (p *Processor) RequestContent(ctx context.Context, key string, fields []string) error {
	state := p.cache.Get(key)
	if state == nil {
		msg := fmt.Sprintf("No state found for key: %s. Do not know what content is wanted.", key)
		p.sender.Error(msg)
		return fmt.Errorf("%w: %s", ErrNoState, key)
	}
	return p.sender.SendState(ctx, state, fields)
}

// CurrentState returns the lifecycle state of the latest job.
func (p *Processor) CurrentState() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// IsRunning reports whether a job is active.
func (p *Processor) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

func (p *Processor) setState(s State) {
	p.mu.Lock()
	p.state = s
	p.mu.Unlock()
}

func (p *Processor) run(ctx context.Context, source domain.AudioSource, done chan struct{}) {
	defer close(done)
	defer func() {
		p.mu.Lock()
		p.running = false
		p.cancelF = nil
		p.mu.Unlock()
	}()

	p.sender.Status("We're on it! Checking inventory...")
	key, err := p.cache.MakeKey(source)
	if err != nil {
		goapp.Log.Error().Err(err).Msg("can't resolve key")
		p.fail("Can't resolve content key.")
		return
	}
	p.setState(StateKeyResolved)

	state := p.cache.Get(key)
	if state.IsComplete() {
		goapp.Log.Info().Str("key", key).Msg("cache hit, content complete")
		p.sender.Status("Sheer happiness! We already have the content.")
		if err := p.sender.SendState(ctx, state, cacheHitFields); err != nil {
			p.deliveryFailed(ctx, err)
			return
		}
		p.sender.Done()
		p.setState(StateComplete)
		return
	}

	if state != nil {
		// partial state from an earlier failed run: its metadata and
		// chapter boundaries are still good, skip re-extraction
		goapp.Log.Info().Str("key", key).Msg("partial state cached, resuming")
		p.sender.Status("Found prepped content. Resuming transcription.")
		p.setState(StateMetadataExtracted)
	} else {
		goapp.Log.Info().Str("key", key).Msg("cache miss, retrieving content")
		p.sender.Status("Setting up stuff, back shortly!")
		meta, hints, audioPath, err := p.extractor.Extract(ctx, source)
		if err != nil {
			if p.cancelledErr(err) {
				return
			}
			goapp.Log.Error().Err(err).Msg("extraction failed")
			// no state was built, nothing to keep
			p.fail("Error extracting metadata.")
			return
		}
		state = &domain.TranscriptionState{
			Key:            key,
			Basename:       strings.TrimSuffix(filepath.Base(audioPath), filepath.Ext(audioPath)),
			LocalAudioPath: audioPath,
			Metadata:       meta,
			Chapters:       domain.BuildChapters(hints),
		}
		p.setState(StateMetadataExtracted)
		if err := p.cache.Put(ctx, state); err != nil {
			goapp.Log.Error().Err(err).Msg("can't persist state")
		}
		p.sender.Status("Content has been prepped. All systems go for transcription.")
	}
	p.setState(StateSegmented)

	start := time.Now()
	segments, totalDuration, err := p.transcriber.Transcribe(ctx, state.LocalAudioPath, source.Quality)
	if err != nil {
		if p.cancelledErr(err) {
			return
		}
		goapp.Log.Error().Err(err).Msg("transcription failed")
		// the partial state stays cached so a retry can reuse it
		p.fail("Error during transcription.")
		return
	}
	p.sender.Status(fmt.Sprintf("Content length: %.0f seconds.", totalDuration))
	p.setState(StateTranscribing)

	segmenter := segment.New(source.Quality.ChunkDuration(), func(percent int) {
		p.sender.Status(fmt.Sprintf("Transcribed %d%%", percent))
	})
	state.Chapters = segmenter.Chapters(segments, totalDuration, state.Chapters)
	if ctx.Err() != nil {
		p.cleanup()
		return
	}
	p.applyMiddleware(ctx, state.Chapters)
	state.Metadata.TranscriptionTime = utils.FormatTime(time.Since(start).Seconds())
	if err := p.cache.Put(ctx, state); err != nil {
		goapp.Log.Error().Err(err).Msg("can't persist state")
	}
	goapp.Log.Info().Str("key", key).Str("took", state.Metadata.TranscriptionTime).Msg("transcription complete")

	p.sender.Status("Have the content. Need a few moments to process. Please hang on.")
	if err := p.sender.SendState(ctx, state, finalFields); err != nil {
		p.deliveryFailed(ctx, err)
		return
	}
	p.sender.Done()
	p.setState(StateComplete)
}

func (p *Processor) applyMiddleware(ctx context.Context, chapters []domain.Chapter) {
	if p.Middleware == nil {
		return
	}
	for i := range chapters {
		txt, err := p.Middleware.Process(ctx, chapters[i].Text)
		if err != nil {
			goapp.Log.Error().Err(err).Int("chapter", chapters[i].Number).Msg("middleware failed")
			continue
		}
		chapters[i].Text = txt
	}
}

// fail converts a local, expected error into a terminal delivery event: the
// client always gets a definitive end to the stream, never silence.
func (p *Processor) fail(msg string) {
	p.sender.Error(msg)
	p.setState(StateErrored)
}

func (p *Processor) deliveryFailed(ctx context.Context, err error) {
	if p.cancelledErr(err) {
		return
	}
	goapp.Log.Error().Err(err).Msg("delivery failed")
	p.fail("Error sending content.")
}

func (p *Processor) cancelledErr(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		p.cleanup()
		return true
	}
	return false
}

// cleanup is the cancellation teardown: drop queued messages and emit
// nothing further. Cache entries already written stay.
func (p *Processor) cleanup() {
	goapp.Log.Info().Msg("cleaning up cancelled job")
	p.queue.Clear()
	p.setState(StateCancelled)
}
