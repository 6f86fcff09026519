package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"persona-engine/internal/acquire"
	"persona-engine/internal/config"
	"persona-engine/internal/media"
	"persona-engine/internal/pipeline"
	"persona-engine/internal/providers/chroma"
	"persona-engine/internal/providers/elevenlabs"
	"persona-engine/internal/providers/openai"
	"persona-engine/internal/repository/postgresql"
	"persona-engine/internal/service"
	"persona-engine/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	logger := config.NewLogger(cfg.AppEnv)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := postgresql.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: db connection failed")
	}
	defer pool.Close()

	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	if err := rdb.Ping(ctx).Err(); err != nil {
		logger.Fatal().Err(err).Msg("worker: redis connection failed")
	}

	jobs := postgresql.NewJobRepository(pool)
	personas := postgresql.NewPersonaRepository(pool)
	chunks := postgresql.NewChunkRepository(pool)
	sig := service.NewRedisSignal(rdb, "jobs:signal")

	httpClient := &http.Client{Timeout: 120 * time.Second}
	openaiClient := openai.NewClient(openai.Options{
		APIKey:     cfg.OpenAIAPIKey,
		BaseURL:    cfg.OpenAIBaseURL,
		HTTPClient: httpClient,
		Logger:     logger,
	})
	elevenClient := elevenlabs.NewClient(elevenlabs.Options{
		APIKey:     cfg.ElevenLabsAPIKey,
		BaseURL:    cfg.ElevenLabsBaseURL,
		HTTPClient: httpClient,
		Logger:     logger,
	})
	chromaClient := chroma.NewClient(chroma.Options{
		BaseURL:    cfg.ChromaURL,
		HTTPClient: httpClient,
		Logger:     logger,
	})

	fetchProviders := []acquire.Provider{acquire.NewYtdlp(cfg.YtdlpBin)}
	if cfg.GrabberBaseURL != "" {
		fetchProviders = append(fetchProviders, acquire.NewGrabber(cfg.GrabberBaseURL, cfg.GrabberAPIKey, httpClient))
	}
	fetch := acquire.NewChain(logger, cfg.FetchTimeout, fetchProviders...)
	ffmpeg := media.NewFFmpeg(cfg.FfmpegBin)

	exec := pipeline.NewExecutor(logger,
		pipeline.VoiceExtract(cfg.DataDir, fetch, ffmpeg),
		pipeline.VoiceClone(cfg.DataDir, fetch, ffmpeg, elevenClient, personas),
		pipeline.VoiceCloneFromExtract(cfg.DataDir, ffmpeg, elevenClient, personas),
		pipeline.PersonaExtract(cfg.DataDir, openaiClient, openaiClient, personas),
		pipeline.RAGIngest(openaiClient, chromaClient, chunks),
	)

	var wg sync.WaitGroup
	for _, typ := range cfg.WorkerTypes {
		if !exec.Has(typ) {
			logger.Fatal().Str("job_type", typ).Msg("worker: no pipeline for configured type")
		}
		w := worker.New(typ, jobs, sig, exec, cfg.SignalWait, cfg.HeartbeatEvery, logger)
		wg.Add(1)
		go func() {
			defer wg.Done()
			w.Run(ctx)
		}()
	}

	reaper := worker.NewReaper(jobs, sig, cfg.ReaperEvery, cfg.VisibilityTimeout, logger)
	wg.Add(1)
	go func() {
		defer wg.Done()
		reaper.Run(ctx)
	}()

	logger.Info().Strs("types", cfg.WorkerTypes).Msg("worker: started")
	wg.Wait()
	logger.Info().Msg("worker: stopped")
}
