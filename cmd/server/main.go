package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/obiente/translate/livescribe/internal/config"
	"github.com/obiente/translate/livescribe/internal/events"
	serverhttp "github.com/obiente/translate/livescribe/internal/http"
	"github.com/obiente/translate/livescribe/internal/language"
	"github.com/obiente/translate/livescribe/internal/logging"
	"github.com/obiente/translate/livescribe/internal/recognizer"
	"github.com/obiente/translate/livescribe/internal/translation"
	"github.com/obiente/translate/livescribe/internal/ws"
)

func main() {
	// A missing .env is fine.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}
	logging.Init(logging.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})

	sink, err := events.Build(events.Config{
		Kafka: events.KafkaConfig{
			Enabled: cfg.Kafka.Enabled,
			Brokers: cfg.Kafka.Brokers,
			Topic:   cfg.Kafka.Topic,
		},
		NATS: events.NATSConfig{
			Enabled:        cfg.NATS.Enabled,
			Servers:        cfg.NATS.Servers,
			Subject:        cfg.NATS.Subject,
			ConnectTimeout: cfg.NATS.ConnectTimeout,
			Token:          cfg.NATS.Token,
		},
	}, logging.WithComponent("events"))
	if err != nil {
		log.Fatal().Err(err).Msg("event sinks unavailable")
	}
	defer sink.Close()

	var translator *translation.Client
	if cfg.Translation.Enabled {
		translator = translation.New(cfg.Translation.BaseURL, cfg.Translation.Timeout)
	}

	engineOpts := recognizer.Options{
		Mode:     cfg.Recognizer.Mode,
		ModelDir: cfg.Recognizer.ModelDir,
		Threads:  cfg.Recognizer.Threads,
		Local: recognizer.LocalConfig{
			SpeechThreshold:  cfg.Recognizer.SpeechThreshold,
			SilenceDuration:  cfg.SilenceDuration,
			RealtimeInterval: cfg.Recognizer.RealtimeInterval,
			DumpDir:          cfg.Recognizer.DumpDir,
		},
		Remote: recognizer.RemoteConfig{
			URL:             cfg.Recognizer.URL,
			SilenceDuration: cfg.SilenceDuration,
		},
	}

	registry := language.NewRegistry(cfg.Constrained())
	wss := ws.NewServer(ws.Deps{
		Config:   cfg,
		Registry: registry,
		Detector: language.NewDetector(),
		NewEngine: func(lang language.Language, logger zerolog.Logger) (recognizer.Engine, error) {
			return recognizer.NewEngine(engineOpts, lang, logger)
		},
		Sink:       sink,
		Translator: translator,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := &http.Server{
		Addr:         cfg.Addr,
		Handler:      serverhttp.NewRouter(wss),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		BaseContext:  func(net.Listener) context.Context { return ctx },
	}

	shutdownDone := make(chan struct{})
	go func() {
		defer close(shutdownDone)
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Warn().Err(err).Msg("graceful shutdown failed")
		}
	}()

	log.Info().
		Str("addr", cfg.Addr).
		Str("profile", string(cfg.Profile)).
		Str("recognizer", cfg.Recognizer.Mode).
		Str("language", cfg.DefaultLanguage).
		Strs("languages", registry.Codes()).
		Msg("livescribe server starting")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal().Err(err).Msg("server failed")
	}
	<-shutdownDone

	// Shutdown does not wait for hijacked websockets. Let them write their
	// final exports and publish before the sinks close.
	waitCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := wss.Wait(waitCtx); err != nil {
		log.Warn().Err(err).Msg("connections still open at exit")
	}
	log.Info().Msg("server stopped")
}
