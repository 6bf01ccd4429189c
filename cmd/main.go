package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/airenas/go-app/pkg/goapp"
	"github.com/labstack/gommon/color"

	"github.com/airenas/chapter-transcriber/internal/db"
	"github.com/airenas/chapter-transcriber/internal/delivery"
	"github.com/airenas/chapter-transcriber/internal/handlers"
	"github.com/airenas/chapter-transcriber/internal/process"
	"github.com/airenas/chapter-transcriber/internal/service"
)

func main() {
	goapp.StartWithDefault()

	printBanner()

	cfg := goapp.Config

	ctx, cancelFunc := context.WithCancel(context.Background())
	defer cancelFunc()

	store := newStore()
	cache := db.NewStateCache(store)
	if cache.Load(ctx) {
		goapp.Log.Info().Msg("loaded cached transcriptions")
	}

	audioDir := cfg.GetString("audio.dir")
	if audioDir == "" {
		audioDir = "audio"
	}

	queue := delivery.NewQueue()
	pace := cfg.GetDuration("delivery.pace")
	if pace == 0 {
		pace = 2 * time.Second
	}
	sender := delivery.NewSender(queue, pace)

	ytHandler, err := handlers.NewYouTubeHandler(cfg.GetString("ytdlp.path"), audioDir)
	if err != nil {
		goapp.Log.Fatal().Err(err).Msg("can't init youtube handler")
	}
	ytHandler.Progress = sender.Status
	extractor := handlers.NewMetadataExtractor(ytHandler, handlers.NewAudioFileHandler())

	asr, err := handlers.NewASRClient(cfg.GetString("asr.url"))
	if err != nil {
		goapp.Log.Fatal().Err(err).Msg("can't init asr client")
	}

	processor := process.New(ctx, cache, extractor, asr, queue, sender)
	processor.Middleware = newMiddleware()

	data := &service.Data{}
	data.Ctx = ctx
	data.Port = cfg.GetInt("port")
	data.Processor = processor
	data.Queue = queue
	data.Sender = sender
	data.AudioDir = audioDir

	doneCh, err := service.StartWebServer(data)
	if err != nil {
		goapp.Log.Fatal().Err(err).Msg("can't start web server")
	}

	/////////////////////// Waiting for terminate
	waitCh := make(chan os.Signal, 2)
	signal.Notify(waitCh, os.Interrupt, syscall.SIGTERM)
	select {
	case <-waitCh:
		goapp.Log.Info().Msg("Got exit signal")
	case <-doneCh:
		goapp.Log.Info().Msg("Service exit")
	}
	cancelFunc()
	select {
	case <-doneCh:
		goapp.Log.Info().Msg("All code returned. Now exit. Bye")
	case <-time.After(time.Second * 15):
		goapp.Log.Warn().Msg("Timeout gracefull shutdown")
	}
}

// newStore selects the durable mirror: redis when configured, a local JSON
// file otherwise.
func newStore() db.Store {
	cfg := goapp.Config
	if url := cfg.GetString("redis.url"); url != "" {
		store, err := db.NewRedisStore(url, cfg.GetString("redis.key"))
		if err != nil {
			goapp.Log.Fatal().Err(err).Msg("can't init redis store")
		}
		return store
	}
	path := cfg.GetString("cache.file")
	if path == "" {
		path = "data/transcriptions.json"
	}
	store, err := db.NewFileStore(path)
	if err != nil {
		goapp.Log.Fatal().Err(err).Msg("can't init file store")
	}
	return store
}

// newMiddleware builds the chapter text post-processing chain.
func newMiddleware() handlers.Handler {
	hList, err := handlers.NewListHandler()
	if err != nil {
		goapp.Log.Fatal().Err(err).Msg("can't init list handler")
	}
	hList.Add(handlers.NewCleaner())
	if url := goapp.Config.GetString("punctuator.url"); url != "" {
		punctuator, err := handlers.NewPunctuator(url)
		if err != nil {
			goapp.Log.Fatal().Err(err).Msg("can't init punctuator")
		}
		hList.Add(punctuator)
	}
	return hList
}

var (
	version = "DEV"
)

func printBanner() {
	banner :=
		`
    CHAPTER TRANSCRIBER v: %s
	
%s
________________________________________________________

`
	cl := color.New()
	cl.Printf(banner, cl.Red(version), cl.Green("https://github.com/airenas/chapter-transcriber"))
}
