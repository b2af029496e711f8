package engine

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"

	"github.com/irthomasthomas/Observer-sub001/domain/entities"
	"github.com/irthomasthomas/Observer-sub001/domain/repositories"
)

func TestMockEngineLoadReportsBothAssets(t *testing.T) {
	eng := NewMockEngine(zap.NewNop())

	var items []entities.ProgressItem
	err := eng.Load(context.Background(), entities.ModelConfig{ModelID: "small-en"}, func(item entities.ProgressItem) {
		items = append(items, item)
	})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	seen := map[string]entities.ProgressItem{}
	for _, item := range items {
		seen[item.AssetName] = item
	}
	for _, asset := range []string{"small-en/model.bin", "small-en/tokenizer.json"} {
		last, ok := seen[asset]
		if !ok {
			t.Errorf("no progress reported for %s", asset)
			continue
		}
		if last.Percent != 100 || last.Phase != entities.ProgressPhaseDone {
			t.Errorf("%s final progress = %.0f%%/%s, want 100%%/done", asset, last.Percent, last.Phase)
		}
	}
}

func TestMockEngineSilenceYieldsNoText(t *testing.T) {
	eng := NewMockEngine(zap.NewNop())

	text, err := eng.Transcribe(context.Background(), make([]float32, 16000))
	if err != nil {
		t.Fatalf("Transcribe() error = %v", err)
	}
	if text != "" {
		t.Errorf("silence produced text %q", text)
	}
}

func TestMockEngineSpeechYieldsText(t *testing.T) {
	eng := NewMockEngine(zap.NewNop())

	samples := make([]float32, 16000)
	samples[0] = 0.5
	text, err := eng.Transcribe(context.Background(), samples)
	if err != nil {
		t.Fatalf("Transcribe() error = %v", err)
	}
	if text == "" {
		t.Error("non-silent samples produced no text")
	}
}

type fakeTranslator struct {
	err   error
	calls int
}

func (f *fakeTranslator) Translate(ctx context.Context, text, targetLanguage string) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return "[" + targetLanguage + "] " + text, nil
}

type staticEngine struct {
	text string
}

func (e *staticEngine) Load(ctx context.Context, config entities.ModelConfig, onProgress repositories.LoadProgressFunc) error {
	return nil
}

func (e *staticEngine) Transcribe(ctx context.Context, samples []float32) (string, error) {
	return e.text, nil
}

func (e *staticEngine) Close() error { return nil }

func TestTranslatingEngineTranslatesTranscripts(t *testing.T) {
	tr := &fakeTranslator{}
	eng := NewTranslatingEngine(&staticEngine{text: "hola mundo"}, tr, "en", zap.NewNop())

	text, err := eng.Transcribe(context.Background(), make([]float32, 8))
	if err != nil {
		t.Fatalf("Transcribe() error = %v", err)
	}
	if text != "[en] hola mundo" {
		t.Errorf("Transcribe() = %q", text)
	}
}

func TestTranslatingEngineSkipsEmptyTranscripts(t *testing.T) {
	tr := &fakeTranslator{}
	eng := NewTranslatingEngine(&staticEngine{text: "  "}, tr, "en", zap.NewNop())

	text, err := eng.Transcribe(context.Background(), make([]float32, 8))
	if err != nil {
		t.Fatalf("Transcribe() error = %v", err)
	}
	if text != "  " {
		t.Errorf("empty transcript rewritten to %q", text)
	}
	if tr.calls != 0 {
		t.Errorf("translator called %d times for empty output", tr.calls)
	}
}

func TestTranslatingEngineFallsBackOnFailure(t *testing.T) {
	tr := &fakeTranslator{err: errors.New("quota exceeded")}
	eng := NewTranslatingEngine(&staticEngine{text: "hola mundo"}, tr, "en", zap.NewNop())

	text, err := eng.Transcribe(context.Background(), make([]float32, 8))
	if err != nil {
		t.Fatalf("Transcribe() error = %v", err)
	}
	if text != "hola mundo" {
		t.Errorf("Transcribe() = %q, want original transcript", text)
	}
}
