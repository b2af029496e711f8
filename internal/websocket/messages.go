package websocket

// Control and event messages exchanged with streaming clients. Audio itself
// travels as binary frames; everything else is JSON text messages keyed by
// type.

const (
	// Client -> server.
	MessageListeningStart = "listening_start"
	MessageListeningEnd   = "listening_end"

	// Server -> client.
	MessageTranscription = "transcription"
	MessageTranscript    = "transcript"
	MessageError         = "error"
)

// InboundMessage is a control message from a streaming client.
type InboundMessage struct {
	Type       string `json:"type"`
	SampleRate int    `json:"sample_rate,omitempty"`
	Language   string `json:"language,omitempty"`
}

// SessionMessage acknowledges session control transitions.
type SessionMessage struct {
	Type      string `json:"type"`
	SessionID string `json:"session_id"`
	Error     string `json:"error,omitempty"`
}

// TranscriptionMessage delivers one segment's result in completion order.
type TranscriptionMessage struct {
	Type  string `json:"type"`
	ID    uint64 `json:"id"`
	Text  string `json:"text,omitempty"`
	Error string `json:"error,omitempty"`
}

// TranscriptMessage carries the cumulative rolling transcript.
type TranscriptMessage struct {
	Type string `json:"type"`
	Text string `json:"text"`
}
