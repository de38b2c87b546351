package audio

import (
	"bytes"
	"encoding/binary"
	"testing"
)

func TestWAVWriteReadRoundTrip(t *testing.T) {
	samples := []float32{0, 0.25, -0.25, 0.5}
	wav, err := EncodeWAVPCM16LE(EncodePCM16(samples), 24000)
	if err != nil {
		t.Fatalf("EncodeWAVPCM16LE() error = %v", err)
	}
	if len(wav) != 44+len(samples)*2 {
		t.Fatalf("wav length = %d, want %d", len(wav), 44+len(samples)*2)
	}

	got, err := ReadWAVPCM16(bytes.NewReader(wav))
	if err != nil {
		t.Fatalf("ReadWAVPCM16() error = %v", err)
	}
	if got.SampleRate != 24000 {
		t.Fatalf("SampleRate = %d, want 24000", got.SampleRate)
	}
	if len(got.Samples) != len(samples) {
		t.Fatalf("len(Samples) = %d, want %d", len(got.Samples), len(samples))
	}
	for i := range samples {
		if got.Samples[i] != samples[i] {
			t.Fatalf("Samples[%d] = %v, want %v", i, got.Samples[i], samples[i])
		}
	}
}

func TestReadWAVDownmixesStereo(t *testing.T) {
	pcm := EncodePCM16([]float32{0.5, 0, -0.5, -0.5})
	var buf bytes.Buffer
	buf.WriteString("RIFF")
	_ = binary.Write(&buf, binary.LittleEndian, uint32(36+len(pcm)))
	buf.WriteString("WAVE")
	buf.WriteString("fmt ")
	_ = binary.Write(&buf, binary.LittleEndian, uint32(16))
	_ = binary.Write(&buf, binary.LittleEndian, uint16(1))
	_ = binary.Write(&buf, binary.LittleEndian, uint16(2))
	_ = binary.Write(&buf, binary.LittleEndian, uint32(16000))
	_ = binary.Write(&buf, binary.LittleEndian, uint32(16000*4))
	_ = binary.Write(&buf, binary.LittleEndian, uint16(4))
	_ = binary.Write(&buf, binary.LittleEndian, uint16(16))
	buf.WriteString("LIST")
	_ = binary.Write(&buf, binary.LittleEndian, uint32(3))
	buf.Write([]byte{1, 2, 3, 0})
	buf.WriteString("data")
	_ = binary.Write(&buf, binary.LittleEndian, uint32(len(pcm)))
	buf.Write(pcm)

	got, err := ReadWAVPCM16(&buf)
	if err != nil {
		t.Fatalf("ReadWAVPCM16() error = %v", err)
	}
	if len(got.Samples) != 2 {
		t.Fatalf("len(Samples) = %d, want 2", len(got.Samples))
	}
	if got.Samples[0] != 0.25 || got.Samples[1] != -0.5 {
		t.Fatalf("Samples = %v, want [0.25 -0.5]", got.Samples)
	}
}

func TestReadWAVRejectsNonRIFF(t *testing.T) {
	if _, err := ReadWAVPCM16(bytes.NewReader([]byte("not a wav file at all"))); err == nil {
		t.Fatalf("ReadWAVPCM16() error = nil, want error")
	}
}
