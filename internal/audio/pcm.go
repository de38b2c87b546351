// Package audio holds the PCM16 codec and chunk type shared by the capture
// and playback sides of the live voice bridge.
package audio

import (
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"math"
	"time"

	"github.com/antoniostano/bootcamp/internal/failure"
)

const (
	CaptureSampleRate  = 16000
	PlaybackSampleRate = 24000
	FrameSize          = 4096
	BytesPerSample     = 2

	pcmScale = 32768
)

// EncodePCM16 converts samples in [-1,1] to 16-bit signed little-endian PCM.
// Each sample is scaled by 32768 and truncated toward zero; values outside the
// int16 range are clamped.
func EncodePCM16(samples []float32) []byte {
	out := make([]byte, len(samples)*BytesPerSample)
	for i, s := range samples {
		v := math.Trunc(float64(s) * pcmScale)
		switch {
		case v > math.MaxInt16:
			v = math.MaxInt16
		case v < math.MinInt16:
			v = math.MinInt16
		case math.IsNaN(v):
			v = 0
		}
		binary.LittleEndian.PutUint16(out[i*BytesPerSample:], uint16(int16(v)))
	}
	return out
}

// DecodePCM16 converts 16-bit signed little-endian PCM back to floats.
func DecodePCM16(b []byte) ([]float32, error) {
	if len(b)%BytesPerSample != 0 {
		return nil, failure.Newf(failure.KindMalformedPayload, "decode pcm16", "odd byte length %d", len(b))
	}
	out := make([]float32, len(b)/BytesPerSample)
	for i := range out {
		v := int16(binary.LittleEndian.Uint16(b[i*BytesPerSample:]))
		out[i] = float32(v) / pcmScale
	}
	return out, nil
}

// DecodeFloat32LE reads raw little-endian float32 samples, the format browsers
// send for captured microphone frames.
func DecodeFloat32LE(b []byte) ([]float32, error) {
	if len(b)%4 != 0 {
		return nil, failure.Newf(failure.KindMalformedPayload, "decode float32", "byte length %d not a multiple of 4", len(b))
	}
	out := make([]float32, len(b)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return out, nil
}

// EncodeBase64 encodes samples to PCM16 and wraps them for a text transport.
func EncodeBase64(samples []float32) string {
	return base64.StdEncoding.EncodeToString(EncodePCM16(samples))
}

// DecodeBase64 reverses EncodeBase64.
func DecodeBase64(s string) ([]float32, error) {
	raw, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, failure.New(failure.KindMalformedPayload, "decode base64", err)
	}
	return DecodePCM16(raw)
}

// Chunk is a contiguous mono PCM16 buffer at a fixed sample rate.
type Chunk struct {
	PCM        []byte
	SampleRate int
}

// NewChunk encodes samples captured at sampleRate.
func NewChunk(samples []float32, sampleRate int) Chunk {
	return Chunk{PCM: EncodePCM16(samples), SampleRate: sampleRate}
}

// ParseChunk validates raw PCM16 bytes received at sampleRate.
func ParseChunk(pcm []byte, sampleRate int) (Chunk, error) {
	if len(pcm)%BytesPerSample != 0 {
		return Chunk{}, failure.Newf(failure.KindMalformedPayload, "parse chunk", "odd byte length %d", len(pcm))
	}
	if sampleRate <= 0 {
		return Chunk{}, failure.Newf(failure.KindMalformedPayload, "parse chunk", "invalid sample rate %d", sampleRate)
	}
	return Chunk{PCM: pcm, SampleRate: sampleRate}, nil
}

// ParseChunkBase64 decodes a base64 transport payload into a chunk.
func ParseChunkBase64(s string, sampleRate int) (Chunk, error) {
	raw, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return Chunk{}, failure.New(failure.KindMalformedPayload, "parse chunk", err)
	}
	return ParseChunk(raw, sampleRate)
}

func (c Chunk) Samples() int { return len(c.PCM) / BytesPerSample }

// Duration is the playback length of the chunk.
func (c Chunk) Duration() time.Duration {
	if c.SampleRate <= 0 {
		return 0
	}
	return time.Duration(c.Samples()) * time.Second / time.Duration(c.SampleRate)
}

func (c Chunk) Base64() string { return base64.StdEncoding.EncodeToString(c.PCM) }

// MIMEType is the wire mime type, e.g. "audio/pcm;rate=16000".
func (c Chunk) MIMEType() string { return MIMEType(c.SampleRate) }

func MIMEType(sampleRate int) string { return fmt.Sprintf("audio/pcm;rate=%d", sampleRate) }

// ParseMIMERate extracts the rate parameter from an "audio/pcm;rate=N" mime
// type, returning fallback when absent.
func ParseMIMERate(mimeType string, fallback int) int {
	var rate int
	if _, err := fmt.Sscanf(mimeType, "audio/pcm;rate=%d", &rate); err != nil || rate <= 0 {
		return fallback
	}
	return rate
}
