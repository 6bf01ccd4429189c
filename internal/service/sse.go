package service

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/airenas/go-app/pkg/goapp"
	"github.com/labstack/echo/v4"

	"github.com/airenas/chapter-transcriber/internal/api"
)

// sse streams delivery queue messages as server-sent events. Each forwarded
// event gets a strictly increasing id and a reconnect hint. A server-error
// event or the done sentinel ends the stream without being forwarded, a
// closed stream is the definitive end-of-transcription signal. Client
// disconnect cancels the active job.
func sse(data *Data) func(echo.Context) error {
	return func(c echo.Context) error {
		w := c.Response()
		w.Header().Set(echo.HeaderContentType, "text/event-stream")
		w.Header().Set(echo.HeaderCacheControl, "no-cache")
		w.Header().Set(echo.HeaderConnection, "keep-alive")
		w.WriteHeader(http.StatusOK)
		w.Flush()

		ctx, cancelF := consumerCtx(data, c.Request().Context())
		defer cancelF()
		goapp.Log.Info().Msg("sse client connected")
		defer goapp.Log.Info().Msg("sse client done")

		id := 0
		for {
			msg, ok, err := nextMessage(ctx, data)
			if err != nil {
				data.Processor.ClientGone()
				return nil
			}
			if !ok {
				continue
			}
			if terminal(msg) {
				goapp.Log.Info().Str("event", msg.Event).Msg("end of stream")
				return nil
			}
			id++
			if err := writeSSE(w, id, msg); err != nil {
				goapp.Log.Warn().Err(err).Msg("sse write failed")
				data.Processor.ClientGone()
				return nil
			}
			w.Flush()
		}
	}
}

// consumerCtx derives a stream context that also ends on service shutdown,
// so stopping the process closes open streams.
func consumerCtx(data *Data, reqCtx context.Context) (context.Context, context.CancelFunc) {
	ctx, cancelF := context.WithCancel(reqCtx)
	if data.Ctx != nil {
		go func() {
			select {
			case <-data.Ctx.Done():
				cancelF()
			case <-ctx.Done():
			}
		}()
	}
	return ctx, cancelF
}

// nextMessage waits for one queue message with a bounded timeout. Returns
// ok=false on timeout so the caller can loop, err on client disconnect or
// service shutdown.
func nextMessage(ctx context.Context, data *Data) (api.Message, bool, error) {
	waitCtx, cancelF := context.WithTimeout(ctx, queueWaitTimeout)
	defer cancelF()
	msg, err := data.Queue.Get(waitCtx)
	if err != nil {
		if ctx.Err() != nil {
			return api.Message{}, false, ctx.Err()
		}
		return api.Message{}, false, nil
	}
	return msg, true, nil
}

func terminal(msg api.Message) bool {
	return msg.Event == api.EventServerError ||
		(msg.Event == api.EventData && msg.Data == api.DataDone)
}

func writeSSE(w io.Writer, id int, msg api.Message) error {
	_, err := fmt.Fprintf(w, "event: %s\nid: %d\nretry: %d\ndata: %s\n\n",
		msg.Event, id, sseRetryTimeout, msg.Data)
	return err
}
