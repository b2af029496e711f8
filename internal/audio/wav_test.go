package audio

import (
	"encoding/binary"
	"math"
	"testing"
)

func pcm16(samples []int16) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(s))
	}
	return out
}

func TestDecodeMono16k(t *testing.T) {
	in := []int16{0, 16384, -16384, 32767}
	data := EncodeWAV(pcm16(in), SampleRate)

	samples, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if len(samples) != len(in) {
		t.Fatalf("got %d samples, want %d", len(samples), len(in))
	}

	for i, want := range []float32{0, 0.5, -0.5, 32767.0 / 32768.0} {
		if math.Abs(float64(samples[i]-want)) > 0.001 {
			t.Errorf("sample %d = %v, want %v", i, samples[i], want)
		}
	}
}

func TestDecodeResamples(t *testing.T) {
	// One second of 48kHz audio should land at one second of 16kHz.
	in := make([]int16, 48000)
	for i := range in {
		in[i] = int16(8000 * math.Sin(2*math.Pi*float64(i)*440/48000))
	}
	data := EncodeWAV(pcm16(in), 48000)

	samples, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if len(samples) != SampleRate {
		t.Errorf("got %d samples, want %d", len(samples), SampleRate)
	}
}

func TestDecodeStereoDownmix(t *testing.T) {
	// Interleaved L/R frames; downmix averages the channels.
	frames := []int16{16384, -16384, 8192, 8192}
	pcm := pcm16(frames)

	// Build a stereo header by hand: EncodeWAV only does mono.
	data := EncodeWAV(pcm, SampleRate)
	// Patch channel count and the frame-derived fields.
	binary.LittleEndian.PutUint16(data[22:], 2)
	binary.LittleEndian.PutUint32(data[28:], SampleRate*4)
	binary.LittleEndian.PutUint16(data[32:], 4)

	samples, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if len(samples) != 2 {
		t.Fatalf("got %d samples, want 2", len(samples))
	}
	if math.Abs(float64(samples[0])) > 0.001 {
		t.Errorf("downmixed sample 0 = %v, want 0", samples[0])
	}
	if math.Abs(float64(samples[1]-0.25)) > 0.001 {
		t.Errorf("downmixed sample 1 = %v, want 0.25", samples[1])
	}
}

func TestDecodeRejectsMalformed(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{name: "empty", data: nil},
		{name: "too short", data: []byte("RIFF")},
		{name: "not riff", data: make([]byte, 64)},
		{
			name: "truncated data chunk",
			data: func() []byte {
				d := EncodeWAV(pcm16([]int16{1, 2, 3, 4}), SampleRate)
				return d[:len(d)-4]
			}(),
		},
		{
			name: "empty data chunk",
			data: EncodeWAV(nil, SampleRate),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Decode(tt.data); err == nil {
				t.Error("Decode() succeeded on malformed input")
			}
		})
	}
}

func TestEncodePCM16Clips(t *testing.T) {
	out := EncodePCM16([]float32{0, 1.5, -1.5})
	if len(out) != 6 {
		t.Fatalf("got %d bytes, want 6", len(out))
	}
	if v := int16(binary.LittleEndian.Uint16(out[2:])); v != 32767 {
		t.Errorf("over-range sample = %d, want 32767", v)
	}
	if v := int16(binary.LittleEndian.Uint16(out[4:])); v != -32768 {
		t.Errorf("under-range sample = %d, want -32768", v)
	}
}
