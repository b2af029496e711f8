package domain

import "errors"

// Sentinel errors for the transcription subsystem. Callers match them with
// errors.Is; wrapping sites add context with fmt.Errorf and %w.
var (
	// ErrModelNotLoaded is returned when a transcription is requested while
	// the model is not in the loaded state.
	ErrModelNotLoaded = errors.New("model not loaded")

	// ErrAlreadyLoadingOrLoaded is returned by Load when a load is in
	// progress or has already completed.
	ErrAlreadyLoadingOrLoaded = errors.New("model already loading or loaded")

	// ErrModelUnloaded rejects pending transcriptions cancelled by Unload.
	ErrModelUnloaded = errors.New("model unloaded")

	// ErrAudioDecode indicates a segment could not be decoded into samples.
	// The worker is never contacted for such segments.
	ErrAudioDecode = errors.New("audio decode failed")

	// ErrNoTextProduced indicates inference ran but yielded an empty or
	// whitespace-only transcript.
	ErrNoTextProduced = errors.New("transcription produced no text")

	// ErrTranscriptionTimeout indicates no terminal worker event arrived
	// within the configured deadline.
	ErrTranscriptionTimeout = errors.New("transcription timed out")

	// ErrWorkerFailure indicates the inference worker terminated
	// unexpectedly. The model must be loaded again explicitly.
	ErrWorkerFailure = errors.New("inference worker failed")

	// ErrNoAudioSource indicates the audio source yielded no capturable
	// data for a recording interval.
	ErrNoAudioSource = errors.New("no audio captured from source")

	// ErrAlreadyRunning is returned by Start on a running recorder session.
	ErrAlreadyRunning = errors.New("recording session already running")

	// ErrSegmentBacklog reports a segment dropped because the in-flight
	// segment ceiling was reached before its transcription returned.
	ErrSegmentBacklog = errors.New("segment dropped: in-flight backlog full")
)
