package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/airenas/chapter-transcriber/internal/domain"
	"github.com/airenas/chapter-transcriber/internal/utils"
	"github.com/airenas/go-app/pkg/goapp"
)

// ErrTranscription marks an ASR failure after state was already partially
// built. The partial state is kept so a retry can reuse it.
var ErrTranscription = errors.New("error during transcription")

// Transcriber turns local audio into a forward-only segment stream plus the
// total audio duration. The stream is consumed exactly once.
type Transcriber interface {
	Transcribe(ctx context.Context, audioPath string, quality domain.Quality) (<-chan domain.Segment, float64, error)
}

// ASRClient talks to a whisper transcription service.
type ASRClient struct {
	httpclient *http.Client
	getURL     string
	timeout    time.Duration
}

// NewASRClient creates a transcription service client.
func NewASRClient(getURL string) (*ASRClient, error) {
	res := ASRClient{}
	if getURL == "" {
		return nil, fmt.Errorf("no getURL")
	}
	res.getURL = getURL
	res.timeout = time.Minute * 30
	res.httpclient = asrHTTPClient()
	goapp.Log.Info().Str("url", getURL).Msg("ASR")
	return &res, nil
}

type asrRequest struct {
	Path      string `json:"path"`
	Model     string `json:"model"`
	Precision string `json:"precision"`
}

type asrResponse struct {
	Duration float64          `json:"duration"`
	Segments []domain.Segment `json:"segments"`
}

// Transcribe invokes the service and adapts its response to the stream shape.
func (sp *ASRClient) Transcribe(ctx context.Context, audioPath string, quality domain.Quality) (<-chan domain.Segment, float64, error) {
	defer utils.MeasureTime("asr", time.Now())
	res, err := sp.invoke(ctx, audioPath, quality)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %w", ErrTranscription, err)
	}
	ch := make(chan domain.Segment)
	go func() {
		defer close(ch)
		for _, seg := range res.Segments {
			select {
			case ch <- seg:
			case <-ctx.Done():
				return
			}
		}
	}()
	return ch, res.Duration, nil
}

func (sp *ASRClient) invoke(ctx context.Context, audioPath string, quality domain.Quality) (*asrResponse, error) {
	ctx, cancelF := context.WithTimeout(ctx, sp.timeout)
	defer cancelF()

	b := new(bytes.Buffer)
	err := json.NewEncoder(b).Encode(asrRequest{Path: audioPath, Model: string(quality.Model), Precision: string(quality.Precision)})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequest(http.MethodPost, sp.getURL, b)
	if err != nil {
		return nil, err
	}
	req = req.WithContext(ctx)
	resp, err := sp.httpclient.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1000))
		_ = resp.Body.Close()
	}()
	if err := goapp.ValidateHTTPResp(resp, 100); err != nil {
		err = fmt.Errorf("can't invoke '%s': %w", req.URL.String(), err)
		return nil, err
	}
	res := &asrResponse{}
	if err := json.NewDecoder(resp.Body).Decode(res); err != nil {
		return nil, err
	}
	return res, nil
}

func asrHTTPClient() *http.Client {
	return &http.Client{Transport: newTransport()}
}

func newTransport() http.RoundTripper {
	res := http.DefaultTransport.(*http.Transport).Clone()
	res.MaxConnsPerHost = 5
	res.MaxIdleConns = 2
	res.MaxIdleConnsPerHost = 2
	res.IdleConnTimeout = 90 * time.Second
	return res
}
