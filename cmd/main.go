package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/Harshitjoshi133/MangoDesk/internal/config"
	"github.com/Harshitjoshi133/MangoDesk/internal/engine"
	"github.com/Harshitjoshi133/MangoDesk/internal/generators"
	"github.com/Harshitjoshi133/MangoDesk/internal/input"
	"github.com/Harshitjoshi133/MangoDesk/internal/logger"
	"github.com/Harshitjoshi133/MangoDesk/internal/metrics"
	"github.com/Harshitjoshi133/MangoDesk/internal/storage"
	"github.com/Harshitjoshi133/MangoDesk/internal/web"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to the config file")
	flag.Parse()

	// .env is optional
	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	cache, redisStore, err := storage.NewRefCache(cfg, log)
	if err != nil {
		log.Warn("Redis unavailable, using in-memory media cache", zap.Error(err))
	}
	if redisStore != nil {
		defer redisStore.Close()
		log.Info("Redis connected", zap.String("addr", cfg.Redis.Addr()))
	}

	if mc, ok := cache.(*generators.MemoryRefCache); ok {
		m.WatchCache(func() int { return mc.Stats().TotalEntries })
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	queue := generators.NewQueue(cfg.Queue, log)
	queue.Start(ctx)
	defer queue.Stop()
	m.WatchQueue(queue.Size, queue.Workers)

	media := generators.NewMedia(cfg, cache, log, m, generators.WithReadyQueue(queue))
	client := engine.NewSessionClient(cfg, log,
		engine.WithAudioGenerator(media.Audio),
		engine.WithImageGenerator(media.Image),
		engine.WithMetrics(m),
	)

	hub := web.NewPageHub(log)
	go hub.Run(ctx)

	deps := web.PageDeps{
		Config:    cfg,
		Service:   client,
		Queue:     queue,
		Publisher: hub,
		Logger:    log,
	}
	if cfg.Input.Transcription.Enabled {
		deps.Transcriber = input.NewWhisperTranscriber(cfg.Input.Transcription, log)
		log.Info("Recording transcription enabled", zap.String("model", cfg.Input.Transcription.Model))
	}
	pages := web.NewPages(deps)
	defer pages.CloseAll()

	r := web.NewRouter(web.RouterDeps{
		Config:     cfg,
		Pages:      pages,
		Hub:        hub,
		Summarizer: client,
		Media:      media,
		Queue:      queue,
		Cache:      cache,
		Redis:      redisStore,
		Gatherer:   reg,
		Logger:     log,
	})

	server := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		log.Info("Server starting",
			zap.String("addr", server.Addr),
			zap.String("backend", cfg.Backend.URL))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Server failed to start", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Server shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("Server shutdown error", zap.Error(err))
	}

	log.Info("Server stopped")
}
