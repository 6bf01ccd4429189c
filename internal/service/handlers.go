package service

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/airenas/go-app/pkg/goapp"
	"github.com/labstack/echo/v4"

	"github.com/airenas/chapter-transcriber/internal/api"
	"github.com/airenas/chapter-transcriber/internal/delivery"
	"github.com/airenas/chapter-transcriber/internal/domain"
	"github.com/airenas/chapter-transcriber/internal/process"
)

// ErrLocalFileSave indicates an uploaded audio file could not be persisted.
var ErrLocalFileSave = errors.New("can't save local audio file")

func transcribe(data *Data) func(echo.Context) error {
	return func(c echo.Context) error {
		quality, err := domain.ParseQuality(c.FormValue("model_size"),
			c.FormValue("compute_precision"), formInt(c, "chunk_minutes"))
		if err != nil {
			return badInput(data, err)
		}

		var source domain.AudioSource
		if url := c.FormValue("youtube_url"); url != "" {
			source, err = domain.NewYouTubeSource(url, quality)
			if err != nil {
				return badInput(data, err)
			}
		} else if fh, fErr := c.FormFile("file"); fErr == nil {
			path := filepath.Join(data.AudioDir, filepath.Base(fh.Filename))
			source, err = domain.NewLocalFileSource(path, quality)
			if err != nil {
				return badInput(data, err)
			}
			if err := saveLocalAudio(fh, path); err != nil {
				goapp.Log.Error().Err(err).Msg("save upload")
				data.Sender.Error(err.Error())
				return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
			}
		} else {
			return badInput(data, errors.New("no youtube url or audio file to transcribe"))
		}

		id, err := data.Processor.Submit(source)
		if err != nil {
			if errors.Is(err, process.ErrBusy) {
				return echo.NewHTTPError(http.StatusConflict, "Another transcription is already running.")
			}
			goapp.Log.Error().Err(err).Msg("submit")
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}
		goapp.Log.Info().Str("job", id).Msg("accepted")
		return c.JSON(http.StatusOK, api.StatusResponse{Status: "Transcription process has started."})
	}
}

// badInput pushes the validation failure onto the event stream, so a client
// listening only there still sees it, and fails the HTTP request.
func badInput(data *Data, err error) error {
	data.Sender.Error(err.Error())
	return echo.NewHTTPError(http.StatusBadRequest, err.Error())
}

func formInt(c echo.Context, name string) int {
	s := strings.TrimSpace(c.FormValue(name))
	if s == "" {
		return 0
	}
	res, err := strconv.Atoi(s)
	if err != nil {
		goapp.Log.Warn().Str("field", name).Str("value", s).Msg("not a number, ignoring")
		return 0
	}
	return res
}

// saveLocalAudio persists an upload. An already saved file is kept as is:
// the cache keys transcripts by basename, so replacing the bytes under an
// existing name would serve a stale transcript for the new content.
func saveLocalAudio(fh *multipart.FileHeader, path string) error {
	if _, err := os.Stat(path); err == nil {
		goapp.Log.Info().Str("file", path).Msg("file already saved, keeping it")
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("%w: %w", ErrLocalFileSave, err)
	}
	src, err := fh.Open()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrLocalFileSave, err)
	}
	defer src.Close()
	dst, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrLocalFileSave, err)
	}
	defer dst.Close()
	if _, err := io.Copy(dst, src); err != nil {
		return fmt.Errorf("%w: %w", ErrLocalFileSave, err)
	}
	goapp.Log.Debug().Str("file", path).Msg("saved upload")
	return nil
}

func cancel(data *Data) func(echo.Context) error {
	return func(c echo.Context) error {
		if err := data.Processor.Cancel(); err != nil {
			if errors.Is(err, process.ErrNoActiveJob) {
				return c.JSON(http.StatusOK, api.StatusResponse{Status: "No active transcription to cancel."})
			}
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}
		return c.JSON(http.StatusOK, api.StatusResponse{Status: "Task cancelled successfully."})
	}
}

func missingContent(data *Data) func(echo.Context) error {
	return func(c echo.Context) error {
		var input api.MissingContent
		if err := c.Bind(&input); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "can't decode input")
		}
		if input.Key == "" {
			return echo.NewHTTPError(http.StatusBadRequest, "no key")
		}
		err := data.Processor.RequestContent(c.Request().Context(), input.Key, input.MissingContents)
		if err != nil {
			// both failure modes were already reported on the event
			// stream, the HTTP answer just mirrors them
			if errors.Is(err, process.ErrNoState) || errors.Is(err, delivery.ErrUnknownField) {
				return c.JSON(http.StatusOK, api.StatusResponse{Status: err.Error()})
			}
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}
		return c.JSON(http.StatusOK, api.StatusResponse{
			Status: fmt.Sprintf("Requested content: %s", strings.Join(input.MissingContents, ", "))})
	}
}
