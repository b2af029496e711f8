package entities

import (
	"strings"
	"sync"
)

// TranscriptionChunk is one completed unit of work: the correlation ID minted
// at record time, the raw audio segment that was retained until the result
// arrived, and the transcribed text.
type TranscriptionChunk struct {
	ID    uint64 `json:"id"`
	Audio []byte `json:"-"`
	Text  string `json:"text"`
}

// RollingTranscript is a bounded FIFO of transcribed text fragments. Entries
// are appended in completion order; once the retention limit is reached the
// oldest entry is evicted.
type RollingTranscript struct {
	mu      sync.Mutex
	max     int
	entries []string
}

// NewRollingTranscript creates a transcript retaining at most max entries.
func NewRollingTranscript(max int) *RollingTranscript {
	if max <= 0 {
		max = 1
	}
	return &RollingTranscript{max: max}
}

// Append adds text, evicting the oldest entry when the window is full.
func (t *RollingTranscript) Append(text string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.entries) == t.max {
		t.entries = append(t.entries[:0], t.entries[1:]...)
		t.entries = t.entries[:t.max-1]
	}
	t.entries = append(t.entries, text)
}

// Entries returns a copy of the retained fragments, oldest first.
func (t *RollingTranscript) Entries() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]string, len(t.entries))
	copy(out, t.entries)
	return out
}

// Text concatenates the retained fragments into a best-effort cumulative
// transcript.
func (t *RollingTranscript) Text() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return strings.Join(t.entries, " ")
}

// Len reports the number of retained fragments.
func (t *RollingTranscript) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}
