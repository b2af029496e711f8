package engine

import (
	"context"
	"fmt"
	"io"
	"sync"

	speech "cloud.google.com/go/speech/apiv1"
	"cloud.google.com/go/speech/apiv1/speechpb"
	"go.uber.org/zap"

	"github.com/irthomasthomas/Observer-sub001/domain/entities"
	"github.com/irthomasthomas/Observer-sub001/domain/repositories"
	"github.com/irthomasthomas/Observer-sub001/internal/audio"
)

// GoogleEngine implements SpeechEngine over Google Cloud Speech-to-Text.
// Load establishes a persistent client; each Transcribe call runs one
// single-utterance streaming recognition over it. The client is safe for
// concurrent streams, which the worker relies on.
type GoogleEngine struct {
	logger *zap.Logger

	mu       sync.Mutex
	client   *speech.Client
	language string
}

// NewGoogleEngine creates an engine backed by Google Cloud Speech.
func NewGoogleEngine(logger *zap.Logger) *GoogleEngine {
	return &GoogleEngine{logger: logger}
}

// Load creates the speech client. The only remote asset is the client
// handshake; credentials and model selection are handled server-side, so the
// quantized flag has no effect here.
func (e *GoogleEngine) Load(ctx context.Context, config entities.ModelConfig, onProgress repositories.LoadProgressFunc) error {
	if config.Quantized {
		e.logger.Warn("Quantized flag is ignored by the Google Cloud engine",
			zap.String("modelID", config.ModelID))
	}

	progress := entities.ProgressItem{
		AssetName: "speech-client",
		Percent:   0,
		Phase:     entities.ProgressPhaseInProgress,
	}
	if onProgress != nil {
		onProgress(progress)
	}

	client, err := speech.NewClient(ctx)
	if err != nil {
		return fmt.Errorf("failed to create speech client: %w", err)
	}

	e.mu.Lock()
	if e.client != nil {
		e.client.Close()
	}
	e.client = client
	e.language = config.Language
	if e.language == "" {
		e.language = "en-US"
	}
	e.mu.Unlock()

	progress.Percent = 100
	progress.Phase = entities.ProgressPhaseDone
	if onProgress != nil {
		onProgress(progress)
	}

	e.logger.Info("Google speech client ready",
		zap.String("modelID", config.ModelID),
		zap.String("language", e.language))
	return nil
}

// Transcribe sends one segment through a single-utterance streaming
// recognition session and returns the final transcript.
func (e *GoogleEngine) Transcribe(ctx context.Context, samples []float32) (string, error) {
	e.mu.Lock()
	client := e.client
	language := e.language
	e.mu.Unlock()

	if client == nil {
		return "", fmt.Errorf("engine not loaded")
	}

	stream, err := client.StreamingRecognize(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to create streaming recognize: %w", err)
	}

	if err := stream.Send(&speechpb.StreamingRecognizeRequest{
		StreamingRequest: &speechpb.StreamingRecognizeRequest_StreamingConfig{
			StreamingConfig: &speechpb.StreamingRecognitionConfig{
				Config: &speechpb.RecognitionConfig{
					Encoding:        speechpb.RecognitionConfig_LINEAR16,
					SampleRateHertz: int32(audio.SampleRate),
					LanguageCode:    language,
				},
				InterimResults:  false,
				SingleUtterance: true,
			},
		},
	}); err != nil {
		stream.CloseSend()
		return "", fmt.Errorf("failed to send streaming config: %w", err)
	}

	if err := stream.Send(&speechpb.StreamingRecognizeRequest{
		StreamingRequest: &speechpb.StreamingRecognizeRequest_AudioContent{
			AudioContent: audio.EncodePCM16(samples),
		},
	}); err != nil {
		stream.CloseSend()
		return "", fmt.Errorf("failed to send audio content: %w", err)
	}

	if err := stream.CloseSend(); err != nil {
		return "", fmt.Errorf("failed to close send stream: %w", err)
	}

	var transcript string
	for {
		resp, err := stream.Recv()
		if err == io.EOF {
			return transcript, nil
		}
		if err != nil {
			return "", fmt.Errorf("failed to receive recognition response: %w", err)
		}
		for _, result := range resp.Results {
			if result.IsFinal && len(result.Alternatives) > 0 {
				transcript = result.Alternatives[0].Transcript
			}
		}
	}
}

// Close releases the underlying client.
func (e *GoogleEngine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.client == nil {
		return nil
	}
	err := e.client.Close()
	e.client = nil
	return err
}
