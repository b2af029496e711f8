package recorder

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/irthomasthomas/Observer-sub001/domain"
	"github.com/irthomasthomas/Observer-sub001/domain/entities"
	"github.com/irthomasthomas/Observer-sub001/internal/model"
)

// fakeTranscriber stands in for the model manager. Tests settle each
// correlation ID explicitly to force completion orders.
type fakeTranscriber struct {
	mu         sync.Mutex
	state      entities.ModelState
	channels   map[uint64]chan model.TranscriptionResult
	submitted  []uint64
	rejectWith error
	loadCalls  int
}

func newFakeTranscriber(loaded bool) *fakeTranscriber {
	status := entities.ModelStatusUnloaded
	if loaded {
		status = entities.ModelStatusLoaded
	}
	return &fakeTranscriber{
		state:    entities.ModelState{Status: status},
		channels: make(map[uint64]chan model.TranscriptionResult),
	}
}

func (f *fakeTranscriber) State() entities.ModelState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state.Clone()
}

func (f *fakeTranscriber) Load(config entities.ModelConfig) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.loadCalls++
	cfg := config
	f.state = entities.ModelState{Status: entities.ModelStatusLoaded, Config: &cfg}
	return nil
}

func (f *fakeTranscriber) Subscribe(l model.Listener) func() {
	l(f.State())
	return func() {}
}

func (f *fakeTranscriber) Transcribe(audioSegment []byte, id uint64) (<-chan model.TranscriptionResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.rejectWith != nil {
		return nil, f.rejectWith
	}
	ch := make(chan model.TranscriptionResult, 1)
	f.channels[id] = ch
	f.submitted = append(f.submitted, id)
	return ch, nil
}

func (f *fakeTranscriber) settle(id uint64, res model.TranscriptionResult) {
	f.mu.Lock()
	ch := f.channels[id]
	f.mu.Unlock()
	ch <- res
}

func (f *fakeTranscriber) submittedCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.submitted)
}

// scriptedSource hands out queued segments, then blocks until cancelled.
type scriptedSource struct {
	mu       sync.Mutex
	segments [][]byte
}

func (s *scriptedSource) ReadSegment(ctx context.Context, duration time.Duration) ([]byte, error) {
	s.mu.Lock()
	if len(s.segments) > 0 {
		seg := s.segments[0]
		s.segments = s.segments[1:]
		s.mu.Unlock()
		return seg, nil
	}
	s.mu.Unlock()

	<-ctx.Done()
	return nil, ctx.Err()
}

func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal(msg)
}

func newTestService(tr Transcriber, maxInFlight int) *Service {
	return NewService(tr, Options{
		ChunkDuration: 5 * time.Second,
		MaxInFlight:   maxInFlight,
		ModelConfig:   entities.ModelConfig{ModelID: "small-en"},
	}, zap.NewNop())
}

func TestServiceAppendsInCompletionOrder(t *testing.T) {
	tr := newFakeTranscriber(true)
	source := &scriptedSource{segments: [][]byte{
		[]byte("audio-1"), []byte("audio-2"), []byte("audio-3"),
	}}
	svc := newTestService(tr, 10)

	results := make(chan Result, 10)
	if err := svc.Start(context.Background(), source, func(r Result) { results <- r }); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer svc.Stop()

	waitFor(t, func() bool { return tr.submittedCount() == 3 }, "segments never submitted")

	// Results return out of submission order: 2, 3, 1. Each settlement is
	// confirmed before the next so the completion order is deterministic.
	var got []Result
	for _, id := range []uint64{2, 3, 1} {
		tr.settle(id, model.TranscriptionResult{Text: fmt.Sprintf("text%d", id)})
		select {
		case r := <-results:
			got = append(got, r)
		case <-time.After(5 * time.Second):
			t.Fatalf("result for id %d never delivered", id)
		}
	}

	wantOrder := []uint64{2, 3, 1}
	for i, r := range got {
		if r.Err != nil {
			t.Fatalf("result %d error = %v", i, r.Err)
		}
		if r.ID != wantOrder[i] {
			t.Errorf("result %d ID = %d, want %d", i, r.ID, wantOrder[i])
		}
		if string(r.Audio) != fmt.Sprintf("audio-%d", r.ID) {
			t.Errorf("result %d audio = %q: segment not matched to its ID", i, r.Audio)
		}
	}

	if got := svc.Transcript(); got != "text2 text3 text1" {
		t.Errorf("Transcript() = %q, want completion order %q", got, "text2 text3 text1")
	}
}

func TestServiceStartWhileRunningFails(t *testing.T) {
	tr := newFakeTranscriber(true)
	source := &scriptedSource{}
	svc := newTestService(tr, 10)

	if err := svc.Start(context.Background(), source, nil); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer svc.Stop()

	if err := svc.Start(context.Background(), source, nil); !errors.Is(err, domain.ErrAlreadyRunning) {
		t.Errorf("second Start() error = %v, want ErrAlreadyRunning", err)
	}
}

func TestServiceWarmsUpUnloadedModel(t *testing.T) {
	tr := newFakeTranscriber(false)
	source := &scriptedSource{segments: [][]byte{[]byte("audio-1")}}
	svc := newTestService(tr, 10)

	if err := svc.Start(context.Background(), source, nil); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer svc.Stop()

	tr.mu.Lock()
	loadCalls := tr.loadCalls
	tr.mu.Unlock()
	if loadCalls != 1 {
		t.Errorf("Load called %d times, want 1", loadCalls)
	}

	waitFor(t, func() bool { return tr.submittedCount() == 1 }, "segment never submitted after warm-up")
}

func TestServiceLocalRejectionContinuesRecording(t *testing.T) {
	tr := newFakeTranscriber(true)
	tr.rejectWith = fmt.Errorf("%w: bad header", domain.ErrAudioDecode)
	source := &scriptedSource{segments: [][]byte{[]byte("bad-1"), []byte("bad-2")}}
	svc := newTestService(tr, 10)

	results := make(chan Result, 10)
	if err := svc.Start(context.Background(), source, func(r Result) { results <- r }); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer svc.Stop()

	for i := 0; i < 2; i++ {
		select {
		case r := <-results:
			if !errors.Is(r.Err, domain.ErrAudioDecode) {
				t.Errorf("result error = %v, want ErrAudioDecode", r.Err)
			}
		case <-time.After(5 * time.Second):
			t.Fatalf("only %d decode failures delivered, want 2", i)
		}
	}

	if svc.Transcript() != "" {
		t.Errorf("failed segments must not reach the transcript: %q", svc.Transcript())
	}
}

func TestServiceStopAbandonsInFlight(t *testing.T) {
	tr := newFakeTranscriber(true)
	source := &scriptedSource{segments: [][]byte{[]byte("audio-1")}}
	svc := newTestService(tr, 10)

	results := make(chan Result, 10)
	if err := svc.Start(context.Background(), source, func(r Result) { results <- r }); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	waitFor(t, func() bool { return tr.submittedCount() == 1 }, "segment never submitted")
	svc.Stop()
	svc.Stop() // idempotent

	// A late result finds no session state and is ignored.
	tr.settle(1, model.TranscriptionResult{Text: "too late"})
	time.Sleep(100 * time.Millisecond)

	select {
	case r := <-results:
		t.Errorf("abandoned segment delivered a result: %+v", r)
	default:
	}
	if svc.Transcript() != "" {
		t.Errorf("abandoned segment reached the transcript: %q", svc.Transcript())
	}
}

func TestServiceBacklogDropsOldestSegment(t *testing.T) {
	tr := newFakeTranscriber(true)
	source := &scriptedSource{segments: [][]byte{
		[]byte("audio-1"), []byte("audio-2"), []byte("audio-3"),
	}}
	svc := newTestService(tr, 2)

	results := make(chan Result, 10)
	if err := svc.Start(context.Background(), source, func(r Result) { results <- r }); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer svc.Stop()

	waitFor(t, func() bool { return tr.submittedCount() == 3 }, "segments never submitted")

	// Retaining segment 3 evicts segment 1.
	select {
	case r := <-results:
		if r.ID != 1 || !errors.Is(r.Err, domain.ErrSegmentBacklog) {
			t.Fatalf("dropped result = %+v, want ID 1 with ErrSegmentBacklog", r)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("backlog drop never reported")
	}

	// The evicted segment's late result is ignored; the survivors land.
	tr.settle(1, model.TranscriptionResult{Text: "text1"})
	tr.settle(2, model.TranscriptionResult{Text: "text2"})
	waitFor(t, func() bool { return svc.Transcript() == "text2" }, "segment 2 never landed")
	tr.settle(3, model.TranscriptionResult{Text: "text3"})
	waitFor(t, func() bool { return svc.Transcript() == "text2 text3" }, "segment 3 never landed")
}

func TestServiceFreshStartResetsTranscript(t *testing.T) {
	tr := newFakeTranscriber(true)
	svc := newTestService(tr, 10)

	results := make(chan Result, 10)
	onResult := func(r Result) { results <- r }

	source := &scriptedSource{segments: [][]byte{[]byte("audio-1")}}
	if err := svc.Start(context.Background(), source, onResult); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	waitFor(t, func() bool { return tr.submittedCount() == 1 }, "segment never submitted")
	tr.settle(1, model.TranscriptionResult{Text: "first session"})
	waitFor(t, func() bool { return svc.Transcript() == "first session" }, "first result never landed")

	svc.Stop()
	if got := svc.Transcript(); got != "first session" {
		t.Errorf("Transcript() after Stop = %q, want it readable until the next Start", got)
	}

	source = &scriptedSource{segments: [][]byte{[]byte("audio-2")}}
	if err := svc.Start(context.Background(), source, onResult); err != nil {
		t.Fatalf("second Start() error = %v", err)
	}
	defer svc.Stop()

	if got := svc.Transcript(); got != "" {
		t.Errorf("Transcript() after fresh Start = %q, want empty", got)
	}

	waitFor(t, func() bool { return tr.submittedCount() == 2 }, "second segment never submitted")
	tr.settle(2, model.TranscriptionResult{Text: "second session"})
	waitFor(t, func() bool { return svc.Transcript() == "second session" }, "second result never landed")
}

func TestServiceHaltsWithoutAudio(t *testing.T) {
	tr := newFakeTranscriber(true)
	// A source that immediately yields empty captures.
	source := emptySource{}
	svc := newTestService(tr, 10)

	results := make(chan Result, 10)
	if err := svc.Start(context.Background(), source, func(r Result) { results <- r }); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	select {
	case r := <-results:
		if !errors.Is(r.Err, domain.ErrNoAudioSource) {
			t.Errorf("result error = %v, want ErrNoAudioSource", r.Err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no-audio failure never reported")
	}

	// The session halted; a fresh Start is allowed.
	waitFor(t, func() bool {
		err := svc.Start(context.Background(), &scriptedSource{}, nil)
		if err == nil {
			svc.Stop()
			return true
		}
		return false
	}, "service did not halt after no-audio failure")
}

type emptySource struct{}

func (emptySource) ReadSegment(ctx context.Context, duration time.Duration) ([]byte, error) {
	return nil, nil
}
