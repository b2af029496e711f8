package repositories

import (
	"context"

	"github.com/irthomasthomas/Observer-sub001/domain/entities"
)

// LoadProgressFunc receives per-asset progress while an engine initializes.
type LoadProgressFunc func(entities.ProgressItem)

// SpeechEngine abstracts one loaded speech model as an opaque function from
// normalized samples to text. Transcribe must be safe for concurrent calls:
// the worker may run several inferences against one instance at a time.
type SpeechEngine interface {
	// Load (re)initializes the model described by config, possibly fetching
	// remote assets. onProgress may be invoked zero or more times before
	// Load returns.
	Load(ctx context.Context, config entities.ModelConfig, onProgress LoadProgressFunc) error
	// Transcribe runs inference on 16 kHz mono float32 samples.
	Transcribe(ctx context.Context, samples []float32) (string, error)
	// Close releases the model and any underlying clients.
	Close() error
}

// Translator converts transcribed text into a target language. Used when the
// model task is translate and the underlying engine only transcribes.
type Translator interface {
	Translate(ctx context.Context, text string, targetLanguage string) (string, error)
}
