// Package recorder implements the chunked recording and transcription
// service: a record loop that captures fixed-duration segments from a live
// audio source and submits each one for transcription without ever waiting
// on a previous segment's result.
package recorder

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/irthomasthomas/Observer-sub001/domain"
	"github.com/irthomasthomas/Observer-sub001/domain/entities"
	"github.com/irthomasthomas/Observer-sub001/internal/model"
)

// AudioSource supplies live audio. ReadSegment blocks for one recording
// window and returns the audio captured during it. The source is owned by
// the caller; the service only reads from it while running.
type AudioSource interface {
	ReadSegment(ctx context.Context, duration time.Duration) ([]byte, error)
}

// Transcriber is the slice of the model manager the service depends on.
type Transcriber interface {
	State() entities.ModelState
	Load(config entities.ModelConfig) error
	Subscribe(l model.Listener) func()
	Transcribe(audioSegment []byte, id uint64) (<-chan model.TranscriptionResult, error)
}

// Result is delivered to the caller once per recorded segment: the completed
// chunk on success, or Err describing why this segment produced no text.
// Recording continues regardless of individual segment failures.
type Result struct {
	ID    uint64
	Audio []byte
	Text  string
	Err   error
}

// ResultFunc receives per-segment results in completion order.
type ResultFunc func(Result)

// Options configures a service instance.
type Options struct {
	// ChunkDuration is the fixed length of each recorded segment.
	ChunkDuration time.Duration
	// MaxInFlight caps retained segments awaiting results; when full the
	// oldest outstanding segment is dropped so capture cadence never stalls.
	MaxInFlight int
	// TranscriptRetention bounds the rolling transcript.
	TranscriptRetention int
	// ModelConfig is loaded on Start when the model is not already loaded.
	ModelConfig entities.ModelConfig
	// WarmUpTimeout bounds the auto-warm-up load on Start.
	WarmUpTimeout time.Duration
}

const (
	defaultChunkDuration = 15 * time.Second
	defaultMaxInFlight   = 32
	defaultRetention     = 60
	defaultWarmUpTimeout = 2 * time.Minute
)

type status int

const (
	statusStopped status = iota
	statusRunning
)

// Service records chunks from one audio source per session. The record loop
// and the completion path run independently; correlation IDs tie them back
// together.
type Service struct {
	manager Transcriber
	opts    Options
	logger  *zap.Logger

	mu        sync.Mutex
	status    status
	sessionID string
	source    AudioSource
	onResult  ResultFunc
	segments  map[uint64][]byte
	order     []uint64
	nextID    uint64
	cancel    context.CancelFunc

	transcript *entities.RollingTranscript
}

// NewService creates a stopped service bound to the given manager.
func NewService(manager Transcriber, opts Options, logger *zap.Logger) *Service {
	if opts.ChunkDuration <= 0 {
		opts.ChunkDuration = defaultChunkDuration
	}
	if opts.MaxInFlight <= 0 {
		opts.MaxInFlight = defaultMaxInFlight
	}
	if opts.TranscriptRetention <= 0 {
		opts.TranscriptRetention = defaultRetention
	}
	if opts.WarmUpTimeout <= 0 {
		opts.WarmUpTimeout = defaultWarmUpTimeout
	}
	return &Service{
		manager:    manager,
		opts:       opts,
		logger:     logger,
		segments:   make(map[uint64][]byte),
		transcript: entities.NewRollingTranscript(opts.TranscriptRetention),
	}
}

// SessionID returns the identifier of the current (or last) session.
func (s *Service) SessionID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessionID
}

// Transcript returns the current session's rolling transcript. It stays
// readable after Stop until the next Start begins a fresh one.
func (s *Service) Transcript() string {
	s.mu.Lock()
	transcript := s.transcript
	s.mu.Unlock()
	return transcript.Text()
}

// Start begins the record loop against source, delivering per-segment
// results to onResult. If the model is not loaded it is loaded first using
// the configured ModelConfig before any recording happens.
func (s *Service) Start(ctx context.Context, source AudioSource, onResult ResultFunc) error {
	s.mu.Lock()
	if s.status == statusRunning {
		s.mu.Unlock()
		return domain.ErrAlreadyRunning
	}
	s.mu.Unlock()

	if s.manager.State().Status != entities.ModelStatusLoaded {
		if err := s.warmUp(ctx); err != nil {
			return fmt.Errorf("model warm-up failed: %w", err)
		}
	}

	s.mu.Lock()
	if s.status == statusRunning {
		s.mu.Unlock()
		return domain.ErrAlreadyRunning
	}
	loopCtx, cancel := context.WithCancel(ctx)
	s.status = statusRunning
	s.sessionID = uuid.New().String()
	s.source = source
	s.onResult = onResult
	s.segments = make(map[uint64][]byte)
	s.order = nil
	s.cancel = cancel
	s.transcript = entities.NewRollingTranscript(s.opts.TranscriptRetention)
	sessionID := s.sessionID
	s.mu.Unlock()

	s.logger.Info("Recording session started",
		zap.String("sessionID", sessionID),
		zap.Duration("chunkDuration", s.opts.ChunkDuration))

	go s.recordLoop(loopCtx)
	return nil
}

// Stop idempotently halts recording and clears per-session state. In-flight
// transcriptions are abandoned; their late results find no stored segment
// and are ignored. The model stays loaded — its lifetime is owned elsewhere.
func (s *Service) Stop() {
	s.mu.Lock()
	if s.status == statusStopped {
		s.mu.Unlock()
		return
	}
	s.status = statusStopped
	cancel := s.cancel
	s.cancel = nil
	s.source = nil
	s.onResult = nil
	abandoned := len(s.segments)
	s.segments = make(map[uint64][]byte)
	s.order = nil
	sessionID := s.sessionID
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	s.logger.Info("Recording session stopped",
		zap.String("sessionID", sessionID),
		zap.Int("abandonedSegments", abandoned))
}

// warmUp loads the model and blocks until it is loaded or fails.
func (s *Service) warmUp(ctx context.Context) error {
	if err := s.manager.Load(s.opts.ModelConfig); err != nil && !errors.Is(err, domain.ErrAlreadyLoadingOrLoaded) {
		return err
	}

	outcome := make(chan error, 1)
	unsubscribe := s.manager.Subscribe(func(state entities.ModelState) {
		switch state.Status {
		case entities.ModelStatusLoaded:
			select {
			case outcome <- nil:
			default:
			}
		case entities.ModelStatusError:
			select {
			case outcome <- fmt.Errorf("model load failed: %s", state.Error):
			default:
			}
		}
	})
	defer unsubscribe()

	select {
	case err := <-outcome:
		return err
	case <-time.After(s.opts.WarmUpTimeout):
		return fmt.Errorf("timed out waiting for model to load")
	case <-ctx.Done():
		return ctx.Err()
	}
}

// recordLoop is the capture side of the pipeline: mint ID, record one
// segment, retain it, submit it, and immediately loop for the next segment.
// It never waits for a transcription result.
func (s *Service) recordLoop(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}

		s.mu.Lock()
		source := s.source
		running := s.status == statusRunning
		s.mu.Unlock()
		if !running || source == nil {
			return
		}

		segment, err := source.ReadSegment(ctx, s.opts.ChunkDuration)
		if ctx.Err() != nil {
			return
		}
		if err != nil || len(segment) == 0 {
			// A silent interval is a hard failure for the session: without
			// capturable audio the loop cannot make progress.
			if err == nil {
				err = domain.ErrNoAudioSource
			} else {
				err = fmt.Errorf("%w: %v", domain.ErrNoAudioSource, err)
			}
			s.logger.Error("Audio capture failed, halting session", zap.Error(err))
			s.deliver(Result{Err: err})
			s.Stop()
			return
		}

		id, dropped, onResult := s.retain(segment)
		if dropped != nil {
			s.logger.Warn("In-flight ceiling reached, dropping oldest segment",
				zap.Uint64("droppedID", dropped.ID))
			if onResult != nil {
				onResult(*dropped)
			}
		}

		resultCh, err := s.manager.Transcribe(segment, id)
		if err != nil {
			// Local rejection (decode failure, model not loaded). Surface it
			// for this segment and keep recording.
			s.release(id)
			s.logger.Warn("Segment rejected before dispatch",
				zap.Uint64("correlationID", id),
				zap.Error(err))
			s.deliver(Result{ID: id, Audio: segment, Err: err})
			continue
		}

		go s.awaitResult(id, resultCh)
	}
}

// retain stores the segment under a fresh correlation ID, evicting the
// oldest outstanding segment when the ceiling is hit.
func (s *Service) retain(segment []byte) (uint64, *Result, ResultFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var dropped *Result
	if len(s.order) >= s.opts.MaxInFlight {
		oldest := s.order[0]
		s.order = s.order[1:]
		audio := s.segments[oldest]
		delete(s.segments, oldest)
		dropped = &Result{ID: oldest, Audio: audio, Err: domain.ErrSegmentBacklog}
	}

	s.nextID++
	id := s.nextID
	s.segments[id] = segment
	s.order = append(s.order, id)
	return id, dropped, s.onResult
}

// release removes a stored segment without delivering anything.
func (s *Service) release(id uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.segments, id)
	s.removeFromOrderLocked(id)
}

// awaitResult is the completion path: it runs independently of the record
// loop and handles one settled transcription.
func (s *Service) awaitResult(id uint64, ch <-chan model.TranscriptionResult) {
	res := <-ch

	s.mu.Lock()
	segment, ok := s.segments[id]
	if !ok {
		// Session stopped, or the segment was evicted by the backlog
		// ceiling. Nothing references this ID anymore.
		s.mu.Unlock()
		s.logger.Debug("Ignoring result for unknown segment", zap.Uint64("correlationID", id))
		return
	}
	delete(s.segments, id)
	s.removeFromOrderLocked(id)
	onResult := s.onResult
	transcript := s.transcript
	s.mu.Unlock()

	out := Result{ID: id, Audio: segment, Text: res.Text, Err: res.Err}
	if res.Err == nil {
		// Completion order, not recording order: slow segments land late.
		transcript.Append(res.Text)
		s.logger.Debug("Segment transcribed",
			zap.Uint64("correlationID", id),
			zap.Int("textLength", len(res.Text)))
	}

	if onResult != nil {
		onResult(out)
	}
}

func (s *Service) removeFromOrderLocked(id uint64) {
	for i, v := range s.order {
		if v == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			return
		}
	}
}

// deliver invokes the current result callback, if any.
func (s *Service) deliver(res Result) {
	s.mu.Lock()
	onResult := s.onResult
	s.mu.Unlock()
	if onResult != nil {
		onResult(res)
	}
}
