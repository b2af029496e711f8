package audio

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// SampleRate is the normalized rate every engine receives.
const SampleRate = 16000

// Decode parses a RIFF/WAVE PCM16 buffer into normalized float32 samples:
// mono, 16 kHz, values in [-1, 1]. Stereo input is downmixed and other rates
// are resampled with linear interpolation.
func Decode(data []byte) ([]float32, error) {
	if len(data) < 44 {
		return nil, fmt.Errorf("wav too short: %d bytes", len(data))
	}
	if string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return nil, fmt.Errorf("not a RIFF/WAVE container")
	}

	var (
		format     uint16
		channels   uint16
		sampleRate uint32
		bits       uint16
		pcm        []byte
		haveFmt    bool
	)

	// Walk the chunk list; fmt must precede data.
	off := 12
	for off+8 <= len(data) {
		id := string(data[off : off+4])
		size := int(binary.LittleEndian.Uint32(data[off+4 : off+8]))
		body := off + 8
		if size < 0 || body+size > len(data) {
			return nil, fmt.Errorf("truncated %q chunk", id)
		}
		switch id {
		case "fmt ":
			if size < 16 {
				return nil, fmt.Errorf("fmt chunk too short: %d bytes", size)
			}
			format = binary.LittleEndian.Uint16(data[body : body+2])
			channels = binary.LittleEndian.Uint16(data[body+2 : body+4])
			sampleRate = binary.LittleEndian.Uint32(data[body+4 : body+8])
			bits = binary.LittleEndian.Uint16(data[body+14 : body+16])
			haveFmt = true
		case "data":
			pcm = data[body : body+size]
		}
		// Chunks are word-aligned.
		off = body + size
		if size%2 == 1 {
			off++
		}
	}

	if !haveFmt {
		return nil, fmt.Errorf("missing fmt chunk")
	}
	if pcm == nil {
		return nil, fmt.Errorf("missing data chunk")
	}
	if format != 1 {
		return nil, fmt.Errorf("unsupported wav format %d, want PCM", format)
	}
	if bits != 16 {
		return nil, fmt.Errorf("unsupported bit depth %d, want 16", bits)
	}
	if channels != 1 && channels != 2 {
		return nil, fmt.Errorf("unsupported channel count %d", channels)
	}
	if sampleRate == 0 {
		return nil, fmt.Errorf("invalid sample rate 0")
	}
	if len(pcm) == 0 {
		return nil, fmt.Errorf("empty data chunk")
	}

	frames := len(pcm) / (2 * int(channels))
	if frames == 0 {
		return nil, fmt.Errorf("no complete audio frames")
	}

	samples := make([]float32, frames)
	for i := 0; i < frames; i++ {
		var acc float64
		for ch := 0; ch < int(channels); ch++ {
			v := int16(binary.LittleEndian.Uint16(pcm[(i*int(channels)+ch)*2:]))
			acc += float64(v)
		}
		samples[i] = float32(acc / float64(channels) / 32768.0)
	}

	if int(sampleRate) != SampleRate {
		samples = resample(samples, int(sampleRate), SampleRate)
	}
	return samples, nil
}

// resample converts samples between rates using linear interpolation.
func resample(in []float32, from, to int) []float32 {
	if from == to || len(in) == 0 {
		return in
	}
	outLen := int(int64(len(in)) * int64(to) / int64(from))
	if outLen == 0 {
		outLen = 1
	}
	out := make([]float32, outLen)
	ratio := float64(from) / float64(to)
	for i := range out {
		pos := float64(i) * ratio
		idx := int(pos)
		frac := pos - float64(idx)
		s0 := in[clampIndex(idx, len(in))]
		s1 := in[clampIndex(idx+1, len(in))]
		out[i] = s0 + float32(frac)*(s1-s0)
	}
	return out
}

func clampIndex(i, n int) int {
	if i >= n {
		return n - 1
	}
	if i < 0 {
		return 0
	}
	return i
}

// EncodePCM16 converts normalized float32 samples to little-endian signed
// 16-bit PCM, clipping out-of-range values.
func EncodePCM16(samples []float32) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		v := s * 32767.0
		if v > 32767 {
			v = 32767
		} else if v < -32768 {
			v = -32768
		}
		binary.LittleEndian.PutUint16(out[i*2:], uint16(int16(v)))
	}
	return out
}

// EncodeWAV wraps raw little-endian PCM16 mono audio in a minimal 44-byte
// WAV header at the given sample rate.
func EncodeWAV(pcm []byte, sampleRate int) []byte {
	var buf bytes.Buffer
	byteRate := uint32(sampleRate * 2)

	buf.WriteString("RIFF")
	binary.Write(&buf, binary.LittleEndian, uint32(36+len(pcm)))
	buf.WriteString("WAVE")

	buf.WriteString("fmt ")
	binary.Write(&buf, binary.LittleEndian, uint32(16))
	binary.Write(&buf, binary.LittleEndian, uint16(1)) // PCM
	binary.Write(&buf, binary.LittleEndian, uint16(1)) // mono
	binary.Write(&buf, binary.LittleEndian, uint32(sampleRate))
	binary.Write(&buf, binary.LittleEndian, byteRate)
	binary.Write(&buf, binary.LittleEndian, uint16(2))  // block align
	binary.Write(&buf, binary.LittleEndian, uint16(16)) // bits per sample

	buf.WriteString("data")
	binary.Write(&buf, binary.LittleEndian, uint32(len(pcm)))
	buf.Write(pcm)

	return buf.Bytes()
}
