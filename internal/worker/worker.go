// Package worker runs speech inference in an isolated goroutine that owns
// exactly one engine instance. Commands go in over a channel, correlation-ID
// tagged events come out over another; the worker never blocks its caller.
package worker

import (
	"context"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/irthomasthomas/Observer-sub001/domain"
	"github.com/irthomasthomas/Observer-sub001/domain/entities"
	"github.com/irthomasthomas/Observer-sub001/domain/repositories"
)

const (
	commandBuffer = 16
	eventBuffer   = 64
)

// Worker owns one speech engine and executes configure/transcribe commands.
// Transcriptions run on their own goroutines, so completions may arrive out
// of submission order; configure waits for in-flight transcriptions before
// reinitializing the engine.
type Worker struct {
	engine   repositories.SpeechEngine
	logger   *zap.Logger
	commands chan command
	events   chan Event

	inflight sync.WaitGroup
	stopOnce sync.Once
}

// New starts a worker around the given engine. The worker goroutine runs
// until Stop is called; the events channel closes once the worker has fully
// terminated and all in-flight transcriptions have settled.
func New(engine repositories.SpeechEngine, logger *zap.Logger) *Worker {
	w := &Worker{
		engine:   engine,
		logger:   logger,
		commands: make(chan command, commandBuffer),
		events:   make(chan Event, eventBuffer),
	}
	go w.run()
	return w
}

// Events returns the stream of worker events. The channel is closed when the
// worker terminates.
func (w *Worker) Events() <-chan Event {
	return w.events
}

// Configure asks the worker to (re)initialize its engine with config. The
// terminal outcome arrives as a ready or error event.
func (w *Worker) Configure(config entities.ModelConfig) {
	w.post(command{kind: commandConfigure, config: config})
}

// Transcribe submits one segment of normalized samples for inference. The
// terminal outcome arrives as a transcription_complete or error event
// carrying id.
func (w *Worker) Transcribe(samples []float32, id uint64) {
	w.post(command{kind: commandTranscribe, samples: samples, id: id})
}

// Stop terminates the worker. Idempotent; commands posted after Stop are
// dropped.
func (w *Worker) Stop() {
	w.stopOnce.Do(func() {
		close(w.commands)
	})
}

// post guards against sends on the closed command channel after Stop.
func (w *Worker) post(cmd command) {
	defer func() {
		if recover() != nil {
			w.logger.Warn("Command dropped: worker stopped")
		}
	}()
	w.commands <- cmd
}

func (w *Worker) run() {
	for cmd := range w.commands {
		switch cmd.kind {
		case commandConfigure:
			w.handleConfigure(cmd.config)
		case commandTranscribe:
			w.inflight.Add(1)
			go func(samples []float32, id uint64) {
				defer w.inflight.Done()
				w.handleTranscribe(samples, id)
			}(cmd.samples, cmd.id)
		}
	}

	w.inflight.Wait()
	if err := w.engine.Close(); err != nil {
		w.logger.Warn("Engine close failed", zap.Error(err))
	}
	close(w.events)
}

func (w *Worker) handleConfigure(config entities.ModelConfig) {
	// Reinitializing under in-flight inference would swap the model out from
	// under running calls; drain them first.
	w.inflight.Wait()

	w.logger.Info("Configuring speech engine",
		zap.String("modelID", config.ModelID),
		zap.String("task", string(config.Task)))

	err := w.engine.Load(context.Background(), config, func(item entities.ProgressItem) {
		w.emit(Event{Kind: EventProgress, Progress: item})
	})
	if err != nil {
		w.logger.Error("Engine load failed",
			zap.String("modelID", config.ModelID),
			zap.Error(err))
		w.emit(Event{Kind: EventError, Err: err})
		return
	}

	w.emit(Event{Kind: EventReady})
}

func (w *Worker) handleTranscribe(samples []float32, id uint64) {
	text, err := w.engine.Transcribe(context.Background(), samples)
	if err != nil {
		w.emit(Event{Kind: EventError, Err: err, ID: id, HasID: true})
		return
	}

	// Distinguish "ran but found nothing" from success so callers never
	// mistake silence for an empty transcript.
	if strings.TrimSpace(text) == "" {
		w.emit(Event{Kind: EventError, Err: domain.ErrNoTextProduced, ID: id, HasID: true})
		return
	}

	w.emit(Event{Kind: EventTranscriptionComplete, ID: id, Text: text})
}

// emit delivers an event, blocking if the owner is slow to drain. The event
// channel is only closed by run after all emitters have finished.
func (w *Worker) emit(ev Event) {
	w.events <- ev
}
