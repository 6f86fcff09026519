package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"persona-engine/internal/entity"
)

// Config holds everything the binaries need, loaded once in main and passed
// into constructors. No component reads the environment on its own.
type Config struct {
	AppEnv      string
	HTTPAddr    string
	DatabaseURL string
	RedisAddr   string
	DataDir     string

	WorkerTypes       []string
	SignalWait        time.Duration
	HeartbeatEvery    time.Duration
	VisibilityTimeout time.Duration
	ReaperEvery       time.Duration

	OpenAIAPIKey      string
	OpenAIBaseURL     string
	ElevenLabsAPIKey  string
	ElevenLabsBaseURL string
	ChromaURL         string

	GrabberBaseURL string
	GrabberAPIKey  string
	YtdlpBin       string
	FfmpegBin      string
	FetchTimeout   time.Duration
}

// Load reads configuration from the environment, after loading a local .env
// file when one exists.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		AppEnv:      getEnv("APP_ENV", "development"),
		HTTPAddr:    getEnv("HTTP_ADDR", ":8080"),
		DatabaseURL: os.Getenv("DATABASE_URL"),
		RedisAddr:   getEnv("REDIS_ADDR", "localhost:6379"),
		DataDir:     getEnv("DATA_DIR", "./data"),

		WorkerTypes:       splitList(getEnv("WORKER_TYPES", defaultWorkerTypes)),
		SignalWait:        time.Second * time.Duration(getEnvInt("SIGNAL_WAIT_SECONDS", 5)),
		HeartbeatEvery:    time.Second * time.Duration(getEnvInt("HEARTBEAT_SECONDS", 15)),
		VisibilityTimeout: time.Second * time.Duration(getEnvInt("VISIBILITY_TIMEOUT_SECONDS", 300)),
		ReaperEvery:       time.Second * time.Duration(getEnvInt("REAPER_SECONDS", 30)),

		OpenAIAPIKey:      os.Getenv("OPENAI_API_KEY"),
		OpenAIBaseURL:     getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"),
		ElevenLabsAPIKey:  os.Getenv("ELEVENLABS_API_KEY"),
		ElevenLabsBaseURL: getEnv("ELEVENLABS_BASE_URL", "https://api.elevenlabs.io"),
		ChromaURL:         getEnv("CHROMA_URL", "http://localhost:8000"),

		GrabberBaseURL: os.Getenv("GRABBER_BASE_URL"),
		GrabberAPIKey:  os.Getenv("GRABBER_API_KEY"),
		YtdlpBin:       getEnv("YTDLP_BIN", "yt-dlp"),
		FfmpegBin:      getEnv("FFMPEG_BIN", "ffmpeg"),
		FetchTimeout:   time.Second * time.Duration(getEnvInt("FETCH_TIMEOUT_SECONDS", 180)),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	for _, typ := range cfg.WorkerTypes {
		if !entity.KnownJobType(typ) {
			return nil, fmt.Errorf("WORKER_TYPES: unknown job type %q", typ)
		}
	}

	return cfg, nil
}

var defaultWorkerTypes = strings.Join([]string{
	entity.TypeVoiceExtract,
	entity.TypeVoiceClone,
	entity.TypeVoiceCloneFromExtract,
	entity.TypePersonaExtract,
	entity.TypeRAGIngest,
}, ",")

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}
