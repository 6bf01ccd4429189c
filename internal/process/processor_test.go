package process

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/airenas/chapter-transcriber/internal/api"
	"github.com/airenas/chapter-transcriber/internal/db"
	"github.com/airenas/chapter-transcriber/internal/delivery"
	"github.com/airenas/chapter-transcriber/internal/domain"
	"github.com/airenas/chapter-transcriber/internal/segment"
)

var errTest = errors.New("test failure")

type memStore struct {
	mu    sync.Mutex
	saved int
}

func (s *memStore) Save(ctx context.Context, key string, state *domain.TranscriptionState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saved++
	return nil
}

func (s *memStore) LoadAll(ctx context.Context) (map[string][]byte, error) {
	return map[string][]byte{}, nil
}

type fakeExtractor struct {
	mu    sync.Mutex
	calls int
	hints []domain.Chapter
	err   error
}

func (e *fakeExtractor) Extract(ctx context.Context, source domain.AudioSource) (*domain.Metadata, []domain.Chapter, string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls++
	if e.err != nil {
		return nil, nil, "", e.err
	}
	return &domain.Metadata{Title: "Talk", Duration: "00:01:40"}, e.hints, "/audio/talk.mp3", nil
}

type fakeASR struct {
	mu       sync.Mutex
	calls    int
	segments []domain.Segment
	duration float64
	err      error
	block    chan struct{}
}

func (a *fakeASR) Transcribe(ctx context.Context, audioPath string, quality domain.Quality) (<-chan domain.Segment, float64, error) {
	a.mu.Lock()
	a.calls++
	block := a.block
	a.mu.Unlock()
	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return nil, 0, ctx.Err()
		}
	}
	if a.err != nil {
		return nil, 0, a.err
	}
	return segment.Stream(a.segments), a.duration, nil
}

func (a *fakeASR) callCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.calls
}

type fixture struct {
	processor *Processor
	queue     *delivery.Queue
	cache     *db.StateCache
	extractor *fakeExtractor
	asr       *fakeASR
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	cache := db.NewStateCache(&memStore{})
	queue := delivery.NewQueue()
	sender := delivery.NewSender(queue, 0)
	extractor := &fakeExtractor{}
	asr := &fakeASR{
		segments: []domain.Segment{
			{Start: 0, End: 50, Text: "hello"},
			{Start: 50, End: 100, Text: "world"},
		},
		duration: 100,
	}
	return &fixture{
		processor: New(context.Background(), cache, extractor, asr, queue, sender),
		queue:     queue,
		cache:     cache,
		extractor: extractor,
		asr:       asr,
	}
}

func testSource(t *testing.T) domain.AudioSource {
	t.Helper()
	src, err := domain.NewLocalFileSource("/audio/talk.mp3", domain.DefaultQuality())
	if err != nil {
		t.Fatalf("NewLocalFileSource() failed: %v", err)
	}
	return src
}

// collect drains the queue until the terminal event or a timeout.
func collect(t *testing.T, q *delivery.Queue) []api.Message {
	t.Helper()
	var res []api.Message
	for {
		ctx, cancelF := context.WithTimeout(context.Background(), 2*time.Second)
		msg, err := q.Get(ctx)
		cancelF()
		if err != nil {
			t.Fatalf("no terminal event, got so far: %+v", res)
		}
		res = append(res, msg)
		if msg.Event == api.EventServerError || (msg.Event == api.EventData && msg.Data == api.DataDone) {
			return res
		}
	}
}

// waitIdle waits for the job goroutine to wind down fully, the done sentinel
// is queued slightly before the running flag drops.
func waitIdle(t *testing.T, p *Processor) {
	t.Helper()
	for i := 0; i < 200; i++ {
		if !p.IsRunning() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("processor still running")
}

func dataEvents(msgs []api.Message) []api.Message {
	var res []api.Message
	for _, msg := range msgs {
		if msg.Event == api.EventData && msg.Data != api.DataDone {
			res = append(res, msg)
		}
	}
	return res
}

func TestSubmit_FullRun(t *testing.T) {
	f := newFixture(t)
	id, err := f.processor.Submit(testSource(t))
	if err != nil {
		t.Fatalf("Submit() failed: %v", err)
	}
	if id == "" {
		t.Error("Submit() returned empty job id")
	}

	msgs := collect(t, f.queue)
	waitIdle(t, f.processor)
	last := msgs[len(msgs)-1]
	if last.Event != api.EventData || last.Data != api.DataDone {
		t.Errorf("last event = %+v, want done sentinel", last)
	}

	data := dataEvents(msgs)
	if len(data) != 5 {
		t.Fatalf("got %d data events, want 5: %+v", len(data), data)
	}
	wantOrder := []string{`"key"`, `"num_chapters"`, `"basename"`, `"metadata"`, `"chapter"`}
	for i, want := range wantOrder {
		if !strings.Contains(data[i].Data, want) {
			t.Errorf("data %d = %q, want it to carry %s", i, data[i].Data, want)
		}
	}

	state := f.cache.Get("talk.mp3_default")
	if state == nil {
		t.Fatal("no cached state under expected key")
	}
	if !state.IsComplete() {
		t.Errorf("state not complete: %+v", state)
	}
	if len(state.Chapters) != 1 {
		t.Fatalf("got %d chapters, want 1 for short audio", len(state.Chapters))
	}
	if state.Chapters[0].Text != "hello world" {
		t.Errorf("chapter text = %q", state.Chapters[0].Text)
	}
	if f.processor.CurrentState() != StateComplete {
		t.Errorf("state = %v, want %v", f.processor.CurrentState(), StateComplete)
	}
}

func TestSubmit_CacheHit(t *testing.T) {
	f := newFixture(t)
	if _, err := f.processor.Submit(testSource(t)); err != nil {
		t.Fatalf("Submit() failed: %v", err)
	}
	collect(t, f.queue)
	waitIdle(t, f.processor)

	if _, err := f.processor.Submit(testSource(t)); err != nil {
		t.Fatalf("resubmit failed: %v", err)
	}
	msgs := collect(t, f.queue)

	if f.asr.callCount() != 1 {
		t.Errorf("ASR called %d times, want 1", f.asr.callCount())
	}
	var hit bool
	for _, msg := range msgs {
		if msg.Event == api.EventStatus && strings.Contains(msg.Data, "already have the content") {
			hit = true
		}
	}
	if !hit {
		t.Errorf("no cache-hit status in %+v", msgs)
	}
	// cache-hit batch sends basename before num_chapters
	data := dataEvents(msgs)
	if len(data) != 5 {
		t.Fatalf("got %d data events, want 5", len(data))
	}
	if !strings.Contains(data[1].Data, `"basename"`) || !strings.Contains(data[2].Data, `"num_chapters"`) {
		t.Errorf("cache-hit field order wrong: %+v", data)
	}
}

func TestSubmit_Busy(t *testing.T) {
	f := newFixture(t)
	f.asr.block = make(chan struct{})
	if _, err := f.processor.Submit(testSource(t)); err != nil {
		t.Fatalf("Submit() failed: %v", err)
	}
	if _, err := f.processor.Submit(testSource(t)); err != ErrBusy {
		t.Errorf("second Submit() = %v, want ErrBusy", err)
	}
	close(f.asr.block)
	collect(t, f.queue)
}

func TestCancel(t *testing.T) {
	f := newFixture(t)
	f.asr.block = make(chan struct{})
	if _, err := f.processor.Submit(testSource(t)); err != nil {
		t.Fatalf("Submit() failed: %v", err)
	}
	if err := f.processor.Cancel(); err != nil {
		t.Fatalf("Cancel() failed: %v", err)
	}
	if f.processor.IsRunning() {
		t.Error("still running after Cancel()")
	}
	if f.queue.Len() != 0 {
		t.Errorf("queue holds %d messages after Cancel(), want 0", f.queue.Len())
	}
	if f.processor.CurrentState() != StateCancelled {
		t.Errorf("state = %v, want %v", f.processor.CurrentState(), StateCancelled)
	}
	// cancelling again reports no active job
	if err := f.processor.Cancel(); err != ErrNoActiveJob {
		t.Errorf("Cancel() = %v, want ErrNoActiveJob", err)
	}
}

func TestSubmit_ExtractionError(t *testing.T) {
	f := newFixture(t)
	f.extractor.err = errTest
	msgsBefore := f.asr.callCount()
	if _, err := f.processor.Submit(testSource(t)); err != nil {
		t.Fatalf("Submit() failed: %v", err)
	}
	msgs := collect(t, f.queue)
	last := msgs[len(msgs)-1]
	if last.Event != api.EventServerError {
		t.Errorf("last event = %+v, want server-error", last)
	}
	if f.cache.Get("talk.mp3_default") != nil {
		t.Error("state persisted despite extraction failure")
	}
	if f.asr.callCount() != msgsBefore {
		t.Error("ASR called despite extraction failure")
	}
}

func TestSubmit_TranscriptionError_KeepsPartialState(t *testing.T) {
	f := newFixture(t)
	f.asr.err = errTest
	if _, err := f.processor.Submit(testSource(t)); err != nil {
		t.Fatalf("Submit() failed: %v", err)
	}
	msgs := collect(t, f.queue)
	last := msgs[len(msgs)-1]
	if last.Event != api.EventServerError {
		t.Errorf("last event = %+v, want server-error", last)
	}
	state := f.cache.Get("talk.mp3_default")
	if state == nil {
		t.Fatal("partial state dropped, want it kept for retry")
	}
	if state.IsComplete() {
		t.Error("partial state reports complete")
	}
}

func TestRequestContent_UnknownKey(t *testing.T) {
	f := newFixture(t)
	err := f.processor.RequestContent(context.Background(), "nope", []string{api.FieldKey})
	if err == nil {
		t.Fatal("RequestContent() succeeded unexpectedly")
	}
	msg, gErr := f.queue.Get(context.Background())
	if gErr != nil {
		t.Fatalf("Get() failed: %v", gErr)
	}
	if msg.Event != api.EventServerError || !strings.Contains(msg.Data, "nope") {
		t.Errorf("got %+v, want server-error naming the key", msg)
	}
}

func TestRequestContent_Resync(t *testing.T) {
	f := newFixture(t)
	if _, err := f.processor.Submit(testSource(t)); err != nil {
		t.Fatalf("Submit() failed: %v", err)
	}
	collect(t, f.queue)

	err := f.processor.RequestContent(context.Background(), "talk.mp3_default", []string{api.FieldMetadata})
	if err != nil {
		t.Fatalf("RequestContent() failed: %v", err)
	}
	var data int
	for f.queue.Len() > 0 {
		msg, _ := f.queue.Get(context.Background())
		if msg.Event == api.EventData {
			data++
			if !strings.Contains(msg.Data, `"metadata"`) {
				t.Errorf("unexpected data event: %+v", msg)
			}
		}
	}
	if data != 1 {
		t.Errorf("got %d data events, want 1", data)
	}
}
