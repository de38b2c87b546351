package capture

import (
	"fmt"

	resampling "github.com/tphakala/go-audio-resampling"

	"github.com/antoniostano/bootcamp/internal/audio"
)

// framer converts microphone frames of any rate and size into 16 kHz chunks
// of exactly frameSize samples.
type framer struct {
	size      int
	resampler resampling.Resampler
	pending   []float32
}

func newFramer(inputRate, frameSize int) (*framer, error) {
	if frameSize <= 0 {
		frameSize = audio.FrameSize
	}
	f := &framer{size: frameSize}
	if inputRate > 0 && inputRate != audio.CaptureSampleRate {
		rs, err := resampling.New(&resampling.Config{
			InputRate:  float64(inputRate),
			OutputRate: float64(audio.CaptureSampleRate),
			Channels:   1,
			Quality:    resampling.QualitySpec{Preset: resampling.QualityHigh},
		})
		if err != nil {
			return nil, fmt.Errorf("create resampler %d->%d: %w", inputRate, audio.CaptureSampleRate, err)
		}
		f.resampler = rs
	}
	return f, nil
}

func (f *framer) push(frame []float32) ([]audio.Chunk, error) {
	samples := frame
	if f.resampler != nil {
		in := make([]float64, len(frame))
		for i, s := range frame {
			in[i] = float64(s)
		}
		out, err := f.resampler.Process(in)
		if err != nil {
			return nil, fmt.Errorf("resample frame: %w", err)
		}
		samples = toFloat32(out)
	}
	f.pending = append(f.pending, samples...)
	return f.frames(), nil
}

func (f *framer) frames() []audio.Chunk {
	var chunks []audio.Chunk
	for len(f.pending) >= f.size {
		chunks = append(chunks, audio.NewChunk(f.pending[:f.size], audio.CaptureSampleRate))
		n := copy(f.pending, f.pending[f.size:])
		f.pending = f.pending[:n]
	}
	return chunks
}

// flush drains the resampler's filter tail and returns the remaining chunks,
// ending with the trailing partial frame, if any.
func (f *framer) flush() ([]audio.Chunk, error) {
	if f.resampler != nil {
		tail, err := f.resampler.Flush()
		if err != nil {
			return nil, fmt.Errorf("flush resampler: %w", err)
		}
		f.pending = append(f.pending, toFloat32(tail)...)
	}
	chunks := f.frames()
	if len(f.pending) > 0 {
		chunks = append(chunks, audio.NewChunk(f.pending, audio.CaptureSampleRate))
		f.pending = f.pending[:0]
	}
	return chunks, nil
}

func toFloat32(in []float64) []float32 {
	out := make([]float32, len(in))
	for i, s := range in {
		out[i] = float32(s)
	}
	return out
}
