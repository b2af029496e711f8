package engine

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/irthomasthomas/Observer-sub001/domain/entities"
	"github.com/irthomasthomas/Observer-sub001/domain/repositories"
)

// TranslatingEngine decorates a SpeechEngine with post-translation of its
// transcripts. Used when the configured task is translate and the underlying
// engine only transcribes.
type TranslatingEngine struct {
	inner          repositories.SpeechEngine
	translator     repositories.Translator
	logger         *zap.Logger
	targetLanguage string
}

// NewTranslatingEngine wraps inner so every transcript is translated into
// targetLanguage. An empty targetLanguage defaults to English, matching the
// translate task of speech models.
func NewTranslatingEngine(inner repositories.SpeechEngine, translator repositories.Translator, targetLanguage string, logger *zap.Logger) *TranslatingEngine {
	if targetLanguage == "" {
		targetLanguage = "en"
	}
	return &TranslatingEngine{
		inner:          inner,
		translator:     translator,
		logger:         logger,
		targetLanguage: targetLanguage,
	}
}

// Load delegates to the wrapped engine.
func (e *TranslatingEngine) Load(ctx context.Context, config entities.ModelConfig, onProgress repositories.LoadProgressFunc) error {
	return e.inner.Load(ctx, config, onProgress)
}

// Transcribe runs the wrapped engine, then translates non-empty output.
// Empty output passes through untouched so silence is still reported as
// silence.
func (e *TranslatingEngine) Transcribe(ctx context.Context, samples []float32) (string, error) {
	text, err := e.inner.Transcribe(ctx, samples)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(text) == "" {
		return text, nil
	}

	translated, err := e.translator.Translate(ctx, text, e.targetLanguage)
	if err != nil {
		// A failed translation should not lose the recognized speech.
		e.logger.Warn("Translation failed, returning original transcript",
			zap.String("targetLanguage", e.targetLanguage),
			zap.Error(err))
		return text, nil
	}
	return translated, nil
}

// Close delegates to the wrapped engine.
func (e *TranslatingEngine) Close() error {
	return e.inner.Close()
}
