package engine

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/irthomasthomas/Observer-sub001/domain/entities"
	"github.com/irthomasthomas/Observer-sub001/domain/repositories"
)

// MockEngine is a deterministic local engine for development and tests. Load
// reports staged progress for two assets; Transcribe produces a phrase keyed
// by segment length and reports silence as empty output.
type MockEngine struct {
	logger *zap.Logger
}

// NewMockEngine creates a mock speech engine.
func NewMockEngine(logger *zap.Logger) repositories.SpeechEngine {
	return &MockEngine{logger: logger}
}

// Load emits progress for the model weights and tokenizer, then succeeds.
func (e *MockEngine) Load(ctx context.Context, config entities.ModelConfig, onProgress repositories.LoadProgressFunc) error {
	e.logger.Info("Loading mock speech model",
		zap.String("modelID", config.ModelID),
		zap.Bool("quantized", config.Quantized))

	assets := []struct {
		name  string
		total uint64
	}{
		{name: config.ModelID + "/model.bin", total: 48 * 1024 * 1024},
		{name: config.ModelID + "/tokenizer.json", total: 2 * 1024 * 1024},
	}

	for _, asset := range assets {
		for _, pct := range []float64{0, 50, 100} {
			item := entities.ProgressItem{
				AssetName:   asset.name,
				Percent:     pct,
				BytesLoaded: uint64(float64(asset.total) * pct / 100),
				BytesTotal:  asset.total,
				Phase:       entities.ProgressPhaseInProgress,
			}
			if pct == 100 {
				item.Phase = entities.ProgressPhaseDone
			}
			if onProgress != nil {
				onProgress(item)
			}
		}
	}

	return nil
}

// Transcribe returns a deterministic phrase based on the segment length.
// All-zero samples are treated as silence and yield no text.
func (e *MockEngine) Transcribe(ctx context.Context, samples []float32) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	silent := true
	for _, s := range samples {
		if s != 0 {
			silent = false
			break
		}
	}
	if len(samples) == 0 || silent {
		e.logger.Debug("Mock engine heard silence", zap.Int("samples", len(samples)))
		return "", nil
	}

	var text string
	switch {
	case len(samples) > 80000:
		text = "This is a longer mock transcription covering several seconds of speech."
	case len(samples) > 16000:
		text = "This is a mock transcription."
	default:
		text = fmt.Sprintf("Mock segment of %d samples.", len(samples))
	}

	e.logger.Debug("Mock transcription produced",
		zap.Int("samples", len(samples)),
		zap.String("text", text))
	return text, nil
}

// Close implements the SpeechEngine interface.
func (e *MockEngine) Close() error {
	return nil
}
