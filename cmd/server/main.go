package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/babelroom/babelroom/internal/adapters/engines"
	router "github.com/babelroom/babelroom/internal/adapters/http"
	wssignal "github.com/babelroom/babelroom/internal/adapters/signal"
	"github.com/babelroom/babelroom/internal/app"
	"github.com/babelroom/babelroom/internal/app/orch"
	"github.com/babelroom/babelroom/internal/artifacts"
	"github.com/babelroom/babelroom/internal/config"
	"github.com/babelroom/babelroom/internal/pipeline"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Initialize zerolog global logger early so config.Load can use it.
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	// Human-friendly output for terminal; in production you may want JSON only.
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	cfg, err := config.Load()
	if err != nil {
		log.Error().Err(err).Msg("failed to load config")
	}

	for _, dir := range []string{cfg.UploadPath, cfg.StaticPath} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			log.Fatal().Err(err).Str("dir", dir).Msg("failed to create directory")
		}
	}

	store := artifacts.NewStore()
	defer store.Close()

	engine := engines.NewExecEngine(cfg.PythonBin, cfg.ScriptDir)
	runner := pipeline.NewRunner(pipeline.RunnerOptions{
		Primary:         engine.Online(),
		Fallback:        engine.Offline(),
		Trans:           engine.Translator(),
		Synth:           engine.Synthesizer(),
		Store:           store,
		StaticDir:       cfg.StaticPath,
		BaseURL:         "/static",
		Workers:         cfg.PipelineWorkers,
		RoomRetention:   cfg.RoomRetention,
		SingleRetention: cfg.SingleRetention,
	})
	defer runner.Close()

	o := &orch.Orchestrator{
		Registry:      app.NewRegistry(),
		Rooms:         app.NewRoomManager(),
		Policy:        app.DropPolicy{},
		Pipeline:      runner,
		UploadDir:     cfg.UploadPath,
		DefaultFanout: pipeline.ParseFanout(cfg.Fanout, pipeline.FanoutShared),
	}

	ctl := wssignal.NewController(o, cfg)
	o.Notify = ctl

	h := router.NewHandlers(o, store, engine, cfg)
	r := router.SetupRouter(ctx, cfg, h, ctl)
	addr := fmt.Sprintf(":%d", cfg.Port)

	srv := &http.Server{
		Addr:    addr,
		Handler: r,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("Babelroom server started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("server error")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	log.Info().Msg("Server exited gracefully")
}
