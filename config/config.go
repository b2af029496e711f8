// Package config loads service configuration from the environment, applying
// defaults and clamping values to their documented bounds.
package config

import (
	"os"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/irthomasthomas/Observer-sub001/domain/entities"
)

const (
	// Chunk duration bounds for the recording loop.
	MinChunkDuration = 5 * time.Second
	MaxChunkDuration = 60 * time.Second
)

// Config holds all runtime settings for the transcription service.
type Config struct {
	Port   string
	Engine string // "mock" or "google"

	Model entities.ModelConfig

	ChunkDuration       time.Duration
	TranscriptRetention int
	MaxInFlight         int
	TranscribeTimeout   time.Duration

	JWTSecret string
}

// Load reads configuration from the environment. Out-of-range values are
// clamped with a warning rather than rejected.
func Load(logger *zap.Logger) Config {
	cfg := Config{
		Port:   getEnv("PORT", "8080"),
		Engine: getEnv("SPEECH_ENGINE", "mock"),
		Model: entities.ModelConfig{
			ModelID:   getEnv("MODEL_ID", "whisper-small-en"),
			Task:      entities.Task(getEnv("MODEL_TASK", string(entities.TaskTranscribe))),
			Language:  os.Getenv("MODEL_LANGUAGE"),
			Quantized: getBool("MODEL_QUANTIZED", false),
		},
		ChunkDuration:       getDuration("CHUNK_DURATION", 15*time.Second),
		TranscriptRetention: getInt("TRANSCRIPT_RETENTION", 60),
		MaxInFlight:         getInt("MAX_INFLIGHT_SEGMENTS", 32),
		TranscribeTimeout:   getDuration("TRANSCRIBE_TIMEOUT", 80*time.Second),
		JWTSecret:           getEnv("JWT_SECRET", "dev-secret-change-me"),
	}

	if cfg.ChunkDuration < MinChunkDuration {
		logger.Warn("Chunk duration below minimum, clamping",
			zap.Duration("requested", cfg.ChunkDuration),
			zap.Duration("minimum", MinChunkDuration))
		cfg.ChunkDuration = MinChunkDuration
	}
	if cfg.ChunkDuration > MaxChunkDuration {
		logger.Warn("Chunk duration above maximum, clamping",
			zap.Duration("requested", cfg.ChunkDuration),
			zap.Duration("maximum", MaxChunkDuration))
		cfg.ChunkDuration = MaxChunkDuration
	}
	if err := cfg.Model.Validate(); err != nil {
		logger.Warn("Invalid model settings, falling back to defaults", zap.Error(err))
		cfg.Model = entities.ModelConfig{
			ModelID: "whisper-small-en",
			Task:    entities.TaskTranscribe,
		}
	}
	if cfg.TranscriptRetention <= 0 {
		cfg.TranscriptRetention = 60
	}
	if cfg.MaxInFlight <= 0 {
		cfg.MaxInFlight = 32
	}
	if cfg.TranscribeTimeout <= 0 {
		cfg.TranscribeTimeout = 80 * time.Second
	}

	return cfg
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func getInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func getDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}
