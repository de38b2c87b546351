package audio

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
)

// EncodeWAVPCM16LE wraps raw PCM16LE mono audio bytes in a WAV container.
func EncodeWAVPCM16LE(pcm []byte, sampleRate int) ([]byte, error) {
	var buf bytes.Buffer
	if err := WriteWAVPCM16LETo(&buf, pcm, sampleRate); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// WriteWAVPCM16LEFile writes raw PCM16LE mono audio bytes as a WAV file.
func WriteWAVPCM16LEFile(path string, pcm []byte, sampleRate int) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return WriteWAVPCM16LETo(f, pcm, sampleRate)
}

// WriteWAVPCM16LETo writes raw PCM16LE mono audio bytes to out as a WAV stream.
func WriteWAVPCM16LETo(out io.Writer, pcm []byte, sampleRate int) error {
	const (
		numChannels   = 1
		bitsPerSample = 16
		audioFormat   = 1 // PCM
	)
	if sampleRate <= 0 {
		sampleRate = CaptureSampleRate
	}

	dataSize := uint32(len(pcm))
	byteRate := uint32(sampleRate * numChannels * bitsPerSample / 8)
	blockAlign := uint16(numChannels * bitsPerSample / 8)

	w := bufio.NewWriter(out)

	// RIFF header.
	if _, err := w.WriteString("RIFF"); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, uint32(36)+dataSize); err != nil {
		return err
	}
	if _, err := w.WriteString("WAVE"); err != nil {
		return err
	}

	// fmt chunk.
	if _, err := w.WriteString("fmt "); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, uint32(16)); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, uint16(audioFormat)); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, uint16(numChannels)); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, uint32(sampleRate)); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, byteRate); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, blockAlign); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, uint16(bitsPerSample)); err != nil {
		return err
	}

	// data chunk.
	if _, err := w.WriteString("data"); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, dataSize); err != nil {
		return err
	}
	if _, err := w.Write(pcm); err != nil {
		return err
	}
	return w.Flush()
}

// WAV is a decoded 16-bit PCM WAV stream downmixed to mono.
type WAV struct {
	Samples    []float32
	SampleRate int
}

// ReadWAVPCM16File reads a 16-bit PCM WAV file.
func ReadWAVPCM16File(path string) (WAV, error) {
	f, err := os.Open(path)
	if err != nil {
		return WAV{}, err
	}
	defer f.Close()
	return ReadWAVPCM16(bufio.NewReader(f))
}

// ReadWAVPCM16 parses a RIFF/WAVE stream carrying 16-bit PCM. Multi-channel
// audio is averaged down to mono.
func ReadWAVPCM16(in io.Reader) (WAV, error) {
	var header [12]byte
	if _, err := io.ReadFull(in, header[:]); err != nil {
		return WAV{}, fmt.Errorf("read riff header: %w", err)
	}
	if string(header[0:4]) != "RIFF" || string(header[8:12]) != "WAVE" {
		return WAV{}, errors.New("not a RIFF/WAVE stream")
	}

	var (
		channels      uint16
		sampleRate    uint32
		bitsPerSample uint16
		haveFmt       bool
	)
	for {
		var chunkHeader [8]byte
		if _, err := io.ReadFull(in, chunkHeader[:]); err != nil {
			return WAV{}, fmt.Errorf("read chunk header: %w", err)
		}
		id := string(chunkHeader[0:4])
		size := binary.LittleEndian.Uint32(chunkHeader[4:8])

		switch id {
		case "fmt ":
			body := make([]byte, size)
			if _, err := io.ReadFull(in, body); err != nil {
				return WAV{}, fmt.Errorf("read fmt chunk: %w", err)
			}
			if size < 16 {
				return WAV{}, fmt.Errorf("fmt chunk too short: %d", size)
			}
			if size%2 == 1 {
				if _, err := io.CopyN(io.Discard, in, 1); err != nil {
					return WAV{}, fmt.Errorf("read fmt padding: %w", err)
				}
			}
			if format := binary.LittleEndian.Uint16(body[0:2]); format != 1 {
				return WAV{}, fmt.Errorf("unsupported wav format %d", format)
			}
			channels = binary.LittleEndian.Uint16(body[2:4])
			sampleRate = binary.LittleEndian.Uint32(body[4:8])
			bitsPerSample = binary.LittleEndian.Uint16(body[14:16])
			haveFmt = true
		case "data":
			if !haveFmt {
				return WAV{}, errors.New("data chunk before fmt chunk")
			}
			if bitsPerSample != 16 || channels == 0 {
				return WAV{}, fmt.Errorf("unsupported wav layout: %d bits, %d channels", bitsPerSample, channels)
			}
			pcm := make([]byte, size)
			n, err := io.ReadFull(in, pcm)
			if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) {
				return WAV{}, fmt.Errorf("read data chunk: %w", err)
			}
			pcm = pcm[:n-n%(BytesPerSample*int(channels))]
			interleaved, err := DecodePCM16(pcm)
			if err != nil {
				return WAV{}, err
			}
			return WAV{Samples: downmix(interleaved, int(channels)), SampleRate: int(sampleRate)}, nil
		default:
			// Chunks are word aligned.
			skip := int64(size) + int64(size%2)
			if _, err := io.CopyN(io.Discard, in, skip); err != nil {
				return WAV{}, fmt.Errorf("skip %q chunk: %w", id, err)
			}
		}
	}
}

func downmix(interleaved []float32, channels int) []float32 {
	if channels <= 1 {
		return interleaved
	}
	out := make([]float32, len(interleaved)/channels)
	for i := range out {
		var sum float32
		for c := 0; c < channels; c++ {
			sum += interleaved[i*channels+c]
		}
		out[i] = sum / float32(channels)
	}
	return out
}
