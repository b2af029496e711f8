package worker

import "github.com/irthomasthomas/Observer-sub001/domain/entities"

type commandKind int

const (
	commandConfigure commandKind = iota
	commandTranscribe
)

// command is a message posted to the worker loop. Exactly one of the payload
// fields is meaningful per kind.
type command struct {
	kind    commandKind
	config  entities.ModelConfig
	samples []float32
	id      uint64
}

// EventKind discriminates worker events.
type EventKind int

const (
	// EventProgress carries per-asset load progress during configure.
	EventProgress EventKind = iota
	// EventReady is the terminal success of a configure command.
	EventReady
	// EventError is the terminal failure of a configure or transcribe
	// command; HasID is set only for transcribe failures.
	EventError
	// EventTranscriptionComplete is the terminal success of a transcribe
	// command.
	EventTranscriptionComplete
)

// Event is an asynchronous message from the worker to its owner. Events for
// transcribe commands always carry the originating correlation ID because
// completions may arrive out of submission order.
type Event struct {
	Kind     EventKind
	Progress entities.ProgressItem
	Err      error
	ID       uint64
	HasID    bool
	Text     string
}
