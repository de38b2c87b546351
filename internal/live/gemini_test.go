package live

import (
	"context"
	"errors"
	"testing"

	"google.golang.org/genai"

	"github.com/antoniostano/bootcamp/internal/audio"
	"github.com/antoniostano/bootcamp/internal/failure"
)

func TestGeminiRemoteMissingKey(t *testing.T) {
	_, err := NewGeminiRemote("").Connect(context.Background(), Config{})
	if !errors.Is(err, failure.ErrConfigurationMissing) {
		t.Fatalf("Connect() error = %v, want configuration missing", err)
	}
}

func TestEventsFromMessage(t *testing.T) {
	pcm := audio.EncodePCM16([]float32{0.1, 0.2, 0.3})
	msg := &genai.LiveServerMessage{
		ServerContent: &genai.LiveServerContent{
			Interrupted: true,
			ModelTurn: &genai.Content{Parts: []*genai.Part{
				{Text: "ignored"},
				{InlineData: &genai.Blob{Data: pcm, MIMEType: "audio/pcm;rate=24000"}},
			}},
			OutputTranscription: &genai.Transcription{Text: "hello", Finished: true},
			TurnComplete:        true,
		},
	}

	events, err := eventsFromMessage(msg)
	if err != nil {
		t.Fatalf("eventsFromMessage() error = %v", err)
	}
	if len(events) != 4 {
		t.Fatalf("len(events) = %d, want 4", len(events))
	}
	if !events[0].Interrupted {
		t.Fatalf("events[0] = %+v, want interruption first", events[0])
	}
	if events[1].Audio == nil || events[1].Audio.Samples() != 3 || events[1].Audio.SampleRate != 24000 {
		t.Fatalf("events[1] = %+v, want 3-sample 24k chunk", events[1])
	}
	if tr := events[2].Transcript; tr == nil || tr.Role != RoleAssistant || tr.Text != "hello" {
		t.Fatalf("events[2] = %+v, want assistant transcript", events[2])
	}
	if !events[3].TurnComplete {
		t.Fatalf("events[3] = %+v, want turn complete", events[3])
	}
}

func TestEventsFromMessageRejectsOddAudio(t *testing.T) {
	msg := &genai.LiveServerMessage{
		ServerContent: &genai.LiveServerContent{
			ModelTurn: &genai.Content{Parts: []*genai.Part{
				{InlineData: &genai.Blob{Data: []byte{1, 2, 3}, MIMEType: "audio/pcm;rate=24000"}},
			}},
		},
	}
	if _, err := eventsFromMessage(msg); !errors.Is(err, failure.ErrMalformedPayload) {
		t.Fatalf("eventsFromMessage() error = %v, want malformed payload", err)
	}
}

func TestMockRemoteReplies(t *testing.T) {
	stream, err := (&MockRemote{ReplyEvery: 2}).Connect(context.Background(), Config{})
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer stream.Close()

	chunk := audio.NewChunk(make([]float32, 16), audio.CaptureSampleRate)
	for i := 0; i < 2; i++ {
		if err := stream.SendAudio(context.Background(), chunk); err != nil {
			t.Fatalf("SendAudio() error = %v", err)
		}
	}

	var audioEvents int
	for {
		ev, err := stream.Receive(context.Background())
		if err != nil {
			t.Fatalf("Receive() error = %v", err)
		}
		if ev.Audio != nil {
			audioEvents++
		}
		if ev.TurnComplete {
			break
		}
	}
	if audioEvents != 3 {
		t.Fatalf("audio events = %d, want 3", audioEvents)
	}
}
