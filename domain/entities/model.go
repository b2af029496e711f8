package entities

import "errors"

// Task selects what the speech model does with the audio.
type Task string

const (
	TaskTranscribe Task = "transcribe"
	TaskTranslate  Task = "translate"
)

// ModelStatus represents the lifecycle state of the speech model.
type ModelStatus string

const (
	ModelStatusUnloaded ModelStatus = "unloaded"
	ModelStatusLoading  ModelStatus = "loading"
	ModelStatusLoaded   ModelStatus = "loaded"
	ModelStatusError    ModelStatus = "error"
)

// ModelConfig describes the model to load. It is immutable once a load
// begins; replacing it requires unload then load.
type ModelConfig struct {
	ModelID   string `json:"model_id"`
	Task      Task   `json:"task,omitempty"`
	Language  string `json:"language,omitempty"`
	Quantized bool   `json:"quantized"`
}

// Validate checks the config before a load is accepted.
func (c ModelConfig) Validate() error {
	if c.ModelID == "" {
		return errors.New("model id is required")
	}
	switch c.Task {
	case "", TaskTranscribe, TaskTranslate:
	default:
		return errors.New("task must be transcribe or translate")
	}
	return nil
}

// ProgressPhase indicates whether a model asset is still initializing.
type ProgressPhase string

const (
	ProgressPhaseInProgress ProgressPhase = "in_progress"
	ProgressPhaseDone       ProgressPhase = "done"
)

// ProgressItem tracks download/initialization progress for one model asset.
type ProgressItem struct {
	AssetName   string        `json:"asset_name"`
	Percent     float64       `json:"percent"`
	BytesLoaded uint64        `json:"bytes_loaded"`
	BytesTotal  uint64        `json:"bytes_total"`
	Phase       ProgressPhase `json:"phase"`
}

// ModelState is a snapshot of the model lifecycle. Progress is non-empty only
// while loading; Config is set for every status except unloaded.
type ModelState struct {
	Status   ModelStatus    `json:"status"`
	Config   *ModelConfig   `json:"config,omitempty"`
	Progress []ProgressItem `json:"progress,omitempty"`
	Error    string         `json:"error,omitempty"`
}

// UpsertProgress replaces the entry matching item's asset name or appends a
// new one, so Progress holds exactly one entry per distinct asset.
func (s *ModelState) UpsertProgress(item ProgressItem) {
	for i := range s.Progress {
		if s.Progress[i].AssetName == item.AssetName {
			s.Progress[i] = item
			return
		}
	}
	s.Progress = append(s.Progress, item)
}

// Clone returns an independent copy safe to hand to listeners.
func (s ModelState) Clone() ModelState {
	out := s
	if s.Config != nil {
		cfg := *s.Config
		out.Config = &cfg
	}
	if s.Progress != nil {
		out.Progress = make([]ProgressItem, len(s.Progress))
		copy(out.Progress, s.Progress)
	}
	return out
}
