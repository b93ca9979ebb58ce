package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/satindergrewal/codystudio/internal/api"
	"github.com/satindergrewal/codystudio/internal/audio"
	"github.com/satindergrewal/codystudio/internal/config"
	"github.com/satindergrewal/codystudio/internal/logging"
	"github.com/satindergrewal/codystudio/internal/stream"
	"github.com/satindergrewal/codystudio/internal/studio"
	"github.com/satindergrewal/codystudio/internal/task"
)

func main() {
	cfg := config.Load()

	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "codystudio: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()
	log := logger.Sugar()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Task progress fan-out for websocket clients
	events := stream.NewBroadcaster[task.Progress](stream.EventBuffer)

	svc, err := studio.NewService(ctx, log.Named("studio"), studio.Options{
		UploadDir:    cfg.UploadDir,
		Buckets:      cfg.WaveformBuckets,
		Steps:        cfg.ProgressSteps,
		UploadStep:   cfg.UploadStep,
		MasterStep:   cfg.MasterStep,
		StemsStep:    cfg.StemsStep,
		JobRetention: cfg.JobRetention,
		Premium:      cfg.Premium,
	}, audio.Decode, events.Publish)
	if err != nil {
		log.Fatalw("studio init failed", "error", err)
	}

	// Preview playback: player -> broadcaster -> WebRTC peers
	player := audio.NewPlayer(log.Named("player"), nil)
	go player.Run(ctx)

	frames := stream.NewBroadcaster[[]int16](stream.PreviewBuffer)
	go frames.Run(ctx, player.Frames())

	srv := api.NewServer(log.Named("api"), svc, player, api.Options{
		MaxUploadBytes: cfg.MaxUploadMB << 20,
		Events:         stream.NewEventsHandler(log.Named("events"), events),
		Offer:          stream.NewWebRTCHandler(log.Named("webrtc"), frames),
	})

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		log.Info("shutting down")
		shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
		defer done()
		server.Shutdown(shutdownCtx)
	}()

	log.Infow("codystudio listening", "addr", server.Addr, "upload_dir", cfg.UploadDir, "premium", cfg.Premium)
	if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		log.Fatalw("http server error", "error", err)
	}
}
