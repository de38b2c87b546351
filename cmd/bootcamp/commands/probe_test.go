package commands

import (
	"bytes"
	"testing"

	"github.com/antoniostano/bootcamp/internal/audio"
)

func TestWSURLForSession(t *testing.T) {
	tests := []struct {
		base    string
		want    string
		wantErr bool
	}{
		{base: "http://127.0.0.1:8080", want: "ws://127.0.0.1:8080/v1/voice/session/ws?session_id=s1"},
		{base: "https://example.com/app/", want: "wss://example.com/app/v1/voice/session/ws?session_id=s1"},
		{base: "ftp://example.com", wantErr: true},
		{base: "http://", wantErr: true},
	}
	for _, tc := range tests {
		got, err := wsURLForSession(tc.base, "s1")
		if tc.wantErr {
			if err == nil {
				t.Fatalf("wsURLForSession(%q) error = nil, want error", tc.base)
			}
			continue
		}
		if err != nil || got != tc.want {
			t.Fatalf("wsURLForSession(%q) = %q, %v, want %q", tc.base, got, err, tc.want)
		}
	}
}

func TestSplitFrames(t *testing.T) {
	samples := make([]float32, 10000)
	frames := splitFrames(samples, 16000, 256)
	if len(frames) != 3 {
		t.Fatalf("len(frames) = %d, want 3", len(frames))
	}
	if len(frames[0]) != 4096 || len(frames[2]) != 10000-2*4096 {
		t.Fatalf("frame sizes = %d, %d", len(frames[0]), len(frames[2]))
	}
}

func TestEncodeFloat32LEMatchesServerDecoder(t *testing.T) {
	in := []float32{0, 0.5, -0.25, 1}
	got, err := audio.DecodeFloat32LE(encodeFloat32LE(in))
	if err != nil {
		t.Fatalf("DecodeFloat32LE() error = %v", err)
	}
	for i := range in {
		if got[i] != in[i] {
			t.Fatalf("sample %d = %v, want %v", i, got[i], in[i])
		}
	}
}

func TestCalcCommand(t *testing.T) {
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"calc", "12*15+20"})
	defer rootCmd.SetArgs(nil)
	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if out.String() != "200\n" {
		t.Fatalf("output = %q, want %q", out.String(), "200\n")
	}
}
