package capture

import (
	"testing"

	"github.com/antoniostano/bootcamp/internal/audio"
)

// delayResampler passes samples through but holds back the last hold of them
// until Flush, like a filter's group delay.
type delayResampler struct {
	hold int
	buf  []float64
}

func (r *delayResampler) Process(in []float64) ([]float64, error) {
	r.buf = append(r.buf, in...)
	if len(r.buf) <= r.hold {
		return nil, nil
	}
	n := len(r.buf) - r.hold
	out := append([]float64(nil), r.buf[:n]...)
	r.buf = append(r.buf[:0], r.buf[n:]...)
	return out, nil
}

func (r *delayResampler) ProcessFloat32(in []float32) ([]float32, error) { return in, nil }
func (r *delayResampler) ProcessMulti(in [][]float64) ([][]float64, error) { return in, nil }

func (r *delayResampler) Flush() ([]float64, error) {
	out := r.buf
	r.buf = nil
	return out, nil
}

func (r *delayResampler) GetLatency() int   { return r.hold }
func (r *delayResampler) Reset()            { r.buf = nil }
func (r *delayResampler) GetRatio() float64 { return 1 }

func TestFramerFlushDrainsResamplerTail(t *testing.T) {
	f := &framer{size: 8, resampler: &delayResampler{hold: 10}}

	chunks, err := f.push(make([]float32, 20))
	if err != nil {
		t.Fatalf("push() error = %v", err)
	}
	if len(chunks) != 1 {
		t.Fatalf("push() chunks = %d, want 1", len(chunks))
	}

	tail, err := f.flush()
	if err != nil {
		t.Fatalf("flush() error = %v", err)
	}
	total := chunks[0].Samples()
	for _, c := range tail {
		total += c.Samples()
	}
	if total != 20 {
		t.Fatalf("total samples = %d, want 20", total)
	}
	if len(tail) != 2 || tail[0].Samples() != 8 || tail[1].Samples() != 4 {
		t.Fatalf("flush() = %d chunks, want a full frame and a 4-sample partial", len(tail))
	}
	if tail[1].SampleRate != audio.CaptureSampleRate {
		t.Fatalf("partial rate = %d, want %d", tail[1].SampleRate, audio.CaptureSampleRate)
	}
}

func TestFramerFlushWithoutResampler(t *testing.T) {
	f, err := newFramer(audio.CaptureSampleRate, 8)
	if err != nil {
		t.Fatalf("newFramer() error = %v", err)
	}
	if _, err := f.push(make([]float32, 3)); err != nil {
		t.Fatalf("push() error = %v", err)
	}
	tail, _ := f.flush()
	if len(tail) != 1 || tail[0].Samples() != 3 {
		t.Fatalf("flush() = %v, want one 3-sample chunk", tail)
	}
	if tail, _ = f.flush(); len(tail) != 0 {
		t.Fatalf("second flush() = %d chunks, want 0", len(tail))
	}
}
