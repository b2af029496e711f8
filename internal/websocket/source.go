package websocket

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/irthomasthomas/Observer-sub001/internal/audio"
)

const frameBuffer = 256

// StreamSource adapts a stream of binary PCM16 frames pushed by a websocket
// client into the recorder's AudioSource contract. ReadSegment collects the
// frames that arrive during one recording window and returns them framed as
// WAV so the decoding path is uniform.
type StreamSource struct {
	logger     *zap.Logger
	sampleRate int

	frames    chan []byte
	closeOnce sync.Once
}

// NewStreamSource creates a source for PCM16 mono audio at sampleRate.
func NewStreamSource(sampleRate int, logger *zap.Logger) *StreamSource {
	return &StreamSource{
		logger:     logger,
		sampleRate: sampleRate,
		frames:     make(chan []byte, frameBuffer),
	}
}

// Push queues one binary frame. Frames are dropped with a warning when the
// buffer is full; backpressure on the network reader would stall the
// websocket ping/pong cycle.
func (s *StreamSource) Push(data []byte) {
	if len(data) == 0 {
		return
	}
	frame := make([]byte, len(data))
	copy(frame, data)

	defer func() {
		if recover() != nil {
			s.logger.Debug("Frame dropped: source closed")
		}
	}()

	select {
	case s.frames <- frame:
	default:
		s.logger.Warn("Frame dropped: source buffer full", zap.Int("size", len(data)))
	}
}

// Close stops the source. Pending ReadSegment calls return what they have.
func (s *StreamSource) Close() {
	s.closeOnce.Do(func() {
		close(s.frames)
	})
}

// ReadSegment implements recorder.AudioSource: it accumulates frames for one
// window of wall time and returns them as a WAV buffer. An empty window
// returns an empty buffer, which the recorder treats as no audio source.
func (s *StreamSource) ReadSegment(ctx context.Context, duration time.Duration) ([]byte, error) {
	timer := time.NewTimer(duration)
	defer timer.Stop()

	var pcm []byte
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case frame, ok := <-s.frames:
			if !ok {
				if len(pcm) == 0 {
					return nil, nil
				}
				return audio.EncodeWAV(pcm, s.sampleRate), nil
			}
			pcm = append(pcm, frame...)
		case <-timer.C:
			if len(pcm) == 0 {
				return nil, nil
			}
			return audio.EncodeWAV(pcm, s.sampleRate), nil
		}
	}
}
