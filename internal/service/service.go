package service

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/facebookgo/grace/gracehttp"
	"github.com/gorilla/websocket"

	"github.com/airenas/go-app/pkg/goapp"

	"github.com/labstack/echo-contrib/prometheus"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/airenas/chapter-transcriber/internal/delivery"
	"github.com/airenas/chapter-transcriber/internal/process"
)

// sseRetryTimeout is sent with every event so a dropped client knows how
// fast to reconnect.
const sseRetryTimeout = 3000

// queueWaitTimeout bounds one wait on the delivery queue. The consumer loop
// checks the connection and waits again, so an idle stream never hangs a
// worker forever.
const queueWaitTimeout = 30 * time.Second

// Data keeps data required for service work
type Data struct {
	Port      int
	Processor *process.Processor
	Queue     *delivery.Queue
	Sender    *delivery.Sender
	AudioDir  string
	Ctx       context.Context
}

// StartWebServer starts echo web service
func StartWebServer(data *Data) (<-chan struct{}, error) {
	goapp.Log.Info().Msgf("Starting transcriber service at %d", data.Port)
	if err := validate(data); err != nil {
		return nil, err
	}

	portStr := strconv.Itoa(data.Port)

	e := initRoutes(data)

	e.Server.Addr = ":" + portStr
	e.Server.ReadHeaderTimeout = 5 * time.Second
	e.Server.ReadTimeout = 60 * time.Second
	// SSE responses stay open for the whole transcription
	e.Server.WriteTimeout = 0

	gracehttp.SetLogger(log.New(goapp.Log, "", 0))

	res := make(chan struct{}, 1)
	go func() {
		defer close(res)
		if err := gracehttp.Serve(e.Server); err != nil {
			goapp.Log.Error().Err(err).Msg("can't start web server")
		}
		goapp.Log.Info().Msg("exit http routine")
	}()
	return res, nil
}

var promMdlw *prometheus.Prometheus

func init() {
	promMdlw = prometheus.NewPrometheus("transcriber", nil)
}

func initRoutes(data *Data) *echo.Echo {
	e := echo.New()
	e.Use(middleware.Logger())
	promMdlw.Use(e)

	e.GET("/live", live(data))
	e.POST("/transcribe", transcribe(data))
	e.GET("/sse", sse(data))
	e.GET("/client/ws/events", wsEvents(data))
	e.GET("/cancel", cancel(data))
	e.POST("/missing-content", missingContent(data))

	goapp.Log.Info().Msg("Routes:")
	for _, r := range e.Routes() {
		goapp.Log.Info().Msgf("  %s %s", r.Method, r.Path)
	}
	return e
}

func live(data *Data) func(echo.Context) error {
	return func(c echo.Context) error {
		return c.JSONBlob(http.StatusOK, []byte(`{"service":"OK"}`))
	}
}

func validate(data *Data) error {
	if data.Processor == nil {
		return fmt.Errorf("no Processor")
	}
	if data.Queue == nil {
		return fmt.Errorf("no Queue")
	}
	if data.Sender == nil {
		return fmt.Errorf("no Sender")
	}
	if data.AudioDir == "" {
		return fmt.Errorf("no AudioDir")
	}
	return nil
}

var wsUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	}}
