// Package model owns the speech model lifecycle: the unloaded/loading/loaded
// state machine, the inference worker handle, and the correlation-ID
// bookkeeping that matches asynchronous transcription results back to their
// callers.
package model

import (
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/irthomasthomas/Observer-sub001/domain"
	"github.com/irthomasthomas/Observer-sub001/domain/entities"
	"github.com/irthomasthomas/Observer-sub001/domain/repositories"
	"github.com/irthomasthomas/Observer-sub001/internal/audio"
	"github.com/irthomasthomas/Observer-sub001/internal/worker"
)

// DefaultTranscribeTimeout bounds how long a transcription may stay pending
// before it is rejected locally. The worker computation is not cancelled; a
// late result for a timed-out ID is dropped as unrecognized.
const DefaultTranscribeTimeout = 80 * time.Second

// TranscriptionResult settles a Transcribe call: exactly one of Text or Err.
type TranscriptionResult struct {
	Text string
	Err  error
}

// Listener observes model state snapshots.
type Listener func(entities.ModelState)

// pendingTranscription tracks one in-flight correlation ID. The manager map
// is the single owner; settlement deletes the entry under the mutex so only
// the first terminal outcome wins.
type pendingTranscription struct {
	id     uint64
	result chan TranscriptionResult
	timer  *time.Timer
}

// Manager is the single synchronization point between the recording side and
// the inference worker. One instance serves the whole process.
type Manager struct {
	logger    *zap.Logger
	newEngine func() repositories.SpeechEngine
	timeout   time.Duration

	mu         sync.Mutex
	state      entities.ModelState
	worker     *worker.Worker
	pending    map[uint64]*pendingTranscription
	listeners  map[uint64]Listener
	listenerID uint64
}

// NewManager creates a manager in the unloaded state. newEngine is invoked
// once per Load to build the engine handed to a fresh worker.
func NewManager(newEngine func() repositories.SpeechEngine, timeout time.Duration, logger *zap.Logger) *Manager {
	if timeout <= 0 {
		timeout = DefaultTranscribeTimeout
	}
	return &Manager{
		logger:    logger,
		newEngine: newEngine,
		timeout:   timeout,
		state:     entities.ModelState{Status: entities.ModelStatusUnloaded},
		pending:   make(map[uint64]*pendingTranscription),
		listeners: make(map[uint64]Listener),
	}
}

// State returns an immutable snapshot of the current model state.
func (m *Manager) State() entities.ModelState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.Clone()
}

// Subscribe registers a listener notified with a snapshot on every state
// mutation, and immediately with the current state. The returned function
// unsubscribes.
func (m *Manager) Subscribe(l Listener) func() {
	m.mu.Lock()
	m.listenerID++
	id := m.listenerID
	m.listeners[id] = l
	snapshot := m.state.Clone()
	m.mu.Unlock()

	l(snapshot)

	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.listeners, id)
	}
}

// Load transitions unloaded/error -> loading and spawns a worker configured
// with config. The loaded (or error) state is reached asynchronously via
// worker events.
func (m *Manager) Load(config entities.ModelConfig) error {
	if err := config.Validate(); err != nil {
		return fmt.Errorf("invalid model config: %w", err)
	}

	m.mu.Lock()
	if m.state.Status == entities.ModelStatusLoading || m.state.Status == entities.ModelStatusLoaded {
		m.mu.Unlock()
		return domain.ErrAlreadyLoadingOrLoaded
	}

	cfg := config
	m.state = entities.ModelState{
		Status: entities.ModelStatusLoading,
		Config: &cfg,
	}
	old := m.worker
	w := worker.New(m.newEngine(), m.logger.Named("worker"))
	m.worker = w
	notify := m.snapshotLocked()
	m.mu.Unlock()

	if old != nil {
		// A reload from the error state replaces a live worker. Stop it so
		// its engine closes; its remaining events fail the staleness check.
		old.Stop()
	}

	m.logger.Info("Model load started",
		zap.String("modelID", config.ModelID),
		zap.String("task", string(config.Task)),
		zap.Bool("quantized", config.Quantized))

	notify()
	go m.pumpEvents(w)
	w.Configure(config)
	return nil
}

// Unload rejects every pending transcription, terminates the worker and
// resets the state machine. Calling it while already unloaded is a no-op
// with a warning.
func (m *Manager) Unload() {
	m.mu.Lock()
	if m.state.Status == entities.ModelStatusUnloaded {
		m.mu.Unlock()
		m.logger.Warn("Unload requested but model is already unloaded")
		return
	}

	w := m.worker
	m.worker = nil
	rejected := m.takeAllPendingLocked()
	m.state = entities.ModelState{Status: entities.ModelStatusUnloaded}
	notify := m.snapshotLocked()
	m.mu.Unlock()

	for _, p := range rejected {
		p.result <- TranscriptionResult{Err: domain.ErrModelUnloaded}
	}
	m.logger.Info("Model unloaded", zap.Int("rejectedPending", len(rejected)))
	notify()

	if w != nil {
		w.Stop()
	}
}

// Transcribe decodes audio into normalized samples, registers the correlation
// ID and posts the segment to the worker. The returned channel settles
// exactly once with the transcript or an error; the timeout timer and the
// worker's terminal event race for the same entry and only the first wins.
func (m *Manager) Transcribe(audioSegment []byte, id uint64) (<-chan TranscriptionResult, error) {
	// The loaded check comes before decoding: an unloaded model rejects every
	// segment the same way, decodable or not.
	m.mu.Lock()
	if m.state.Status != entities.ModelStatusLoaded {
		m.mu.Unlock()
		return nil, domain.ErrModelNotLoaded
	}
	m.mu.Unlock()

	samples, err := audio.Decode(audioSegment)
	if err != nil {
		// Local failure; the worker is never contacted.
		return nil, fmt.Errorf("%w: %v", domain.ErrAudioDecode, err)
	}

	m.mu.Lock()
	if m.state.Status != entities.ModelStatusLoaded {
		m.mu.Unlock()
		return nil, domain.ErrModelNotLoaded
	}
	if _, exists := m.pending[id]; exists {
		m.mu.Unlock()
		return nil, fmt.Errorf("correlation id %d already in flight", id)
	}

	p := &pendingTranscription{
		id:     id,
		result: make(chan TranscriptionResult, 1),
	}
	p.timer = time.AfterFunc(m.timeout, func() {
		m.settle(id, TranscriptionResult{Err: domain.ErrTranscriptionTimeout})
	})
	m.pending[id] = p
	w := m.worker
	m.mu.Unlock()

	m.logger.Debug("Transcription submitted",
		zap.Uint64("correlationID", id),
		zap.Int("samples", len(samples)))

	w.Transcribe(samples, id)
	return p.result, nil
}

// PendingCount reports the number of in-flight correlation IDs.
func (m *Manager) PendingCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.pending)
}

// pumpEvents is the only consumer of a worker's event stream. The channel
// closing while this worker is still current means the worker terminated
// unexpectedly.
func (m *Manager) pumpEvents(w *worker.Worker) {
	for ev := range w.Events() {
		m.handleEvent(w, ev)
	}
	m.handleWorkerExit(w)
}

func (m *Manager) handleEvent(w *worker.Worker, ev worker.Event) {
	m.mu.Lock()
	if m.worker != w {
		// Stale worker; it was replaced or unloaded after emitting.
		m.mu.Unlock()
		return
	}

	switch ev.Kind {
	case worker.EventProgress:
		if m.state.Status != entities.ModelStatusLoading {
			m.mu.Unlock()
			return
		}
		m.state.UpsertProgress(ev.Progress)
		notify := m.snapshotLocked()
		m.mu.Unlock()
		notify()

	case worker.EventReady:
		m.state.Status = entities.ModelStatusLoaded
		m.state.Progress = nil
		notify := m.snapshotLocked()
		m.mu.Unlock()
		m.logger.Info("Model loaded")
		notify()

	case worker.EventError:
		if ev.HasID {
			m.mu.Unlock()
			m.logger.Warn("Transcription failed",
				zap.Uint64("correlationID", ev.ID),
				zap.Error(ev.Err))
			m.settle(ev.ID, TranscriptionResult{Err: ev.Err})
			return
		}
		m.state.Status = entities.ModelStatusError
		m.state.Error = ev.Err.Error()
		m.state.Progress = nil
		notify := m.snapshotLocked()
		m.mu.Unlock()
		m.logger.Error("Model load failed", zap.Error(ev.Err))
		notify()

	case worker.EventTranscriptionComplete:
		m.mu.Unlock()
		m.logger.Debug("Transcription complete",
			zap.Uint64("correlationID", ev.ID),
			zap.Int("textLength", len(ev.Text)))
		m.settle(ev.ID, TranscriptionResult{Text: ev.Text})

	default:
		m.mu.Unlock()
	}
}

// handleWorkerExit flips state to error when the current worker's event
// stream ends without an unload. There is no auto-restart; callers must Load
// again.
func (m *Manager) handleWorkerExit(w *worker.Worker) {
	m.mu.Lock()
	if m.worker != w {
		m.mu.Unlock()
		return
	}

	m.worker = nil
	rejected := m.takeAllPendingLocked()
	m.state.Status = entities.ModelStatusError
	m.state.Error = domain.ErrWorkerFailure.Error()
	m.state.Progress = nil
	notify := m.snapshotLocked()
	m.mu.Unlock()

	for _, p := range rejected {
		p.result <- TranscriptionResult{Err: domain.ErrWorkerFailure}
	}
	m.logger.Error("Worker terminated unexpectedly",
		zap.Int("rejectedPending", len(rejected)))
	notify()
}

// settle resolves or rejects a pending transcription exactly once. The
// check-then-delete under the mutex makes the second terminal outcome for the
// same ID a no-op.
func (m *Manager) settle(id uint64, res TranscriptionResult) {
	m.mu.Lock()
	p, ok := m.pending[id]
	if !ok {
		m.mu.Unlock()
		return
	}
	delete(m.pending, id)
	m.mu.Unlock()

	p.timer.Stop()
	p.result <- res
}

// takeAllPendingLocked empties the pending map and stops its timers. Caller
// holds the mutex and delivers the rejections after unlocking.
func (m *Manager) takeAllPendingLocked() []*pendingTranscription {
	out := make([]*pendingTranscription, 0, len(m.pending))
	for id, p := range m.pending {
		p.timer.Stop()
		out = append(out, p)
		delete(m.pending, id)
	}
	return out
}

// snapshotLocked captures the state and listener set under the mutex and
// returns a closure that performs the notification after unlock, so listeners
// run synchronously with the mutation but outside the lock.
func (m *Manager) snapshotLocked() func() {
	snapshot := m.state.Clone()
	listeners := make([]Listener, 0, len(m.listeners))
	for _, l := range m.listeners {
		listeners = append(listeners, l)
	}
	return func() {
		for _, l := range listeners {
			l(snapshot)
		}
	}
}
