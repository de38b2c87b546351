package protocol

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestParseClientMessageAudioChunk(t *testing.T) {
	raw := []byte(`{"type":"client_audio_chunk","session_id":"s1","seq":1,"pcm16_base64":"AQID","sample_rate":16000,"ts_ms":123}`)
	msg, err := ParseClientMessage(raw)
	if err != nil {
		t.Fatalf("ParseClientMessage() error = %v", err)
	}

	audio, ok := msg.(ClientAudioChunk)
	if !ok {
		t.Fatalf("message type = %T, want ClientAudioChunk", msg)
	}
	if audio.SessionID != "s1" || audio.SampleRate != 16000 {
		t.Fatalf("unexpected audio chunk: %+v", audio)
	}
}

func TestParseClientMessageRejectsUnknownType(t *testing.T) {
	_, err := ParseClientMessage([]byte(`{"type":"wat"}`))
	if !errors.Is(err, ErrUnsupportedType) {
		t.Fatalf("error = %v, want ErrUnsupportedType", err)
	}
}

func TestParseClientMessageControl(t *testing.T) {
	raw := []byte(`{"type":"client_control","session_id":"s1","action":"stop","reason":"user","ts_ms":456}`)
	msg, err := ParseClientMessage(raw)
	if err != nil {
		t.Fatalf("ParseClientMessage() error = %v", err)
	}

	control, ok := msg.(ClientControl)
	if !ok {
		t.Fatalf("message type = %T, want ClientControl", msg)
	}
	if control.SessionID != "s1" || control.Action != ActionStop {
		t.Fatalf("unexpected client control: %+v", control)
	}
	if control.TSMs != 456 || control.Reason != "user" {
		t.Fatalf("control = %+v, want ts 456 reason user", control)
	}
}

func TestParseClientMessageMicrophone(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		wantErr bool
	}{
		{name: "granted", raw: `{"type":"client_control","session_id":"s1","action":"microphone","granted":true,"sample_rate":48000}`},
		{name: "denied", raw: `{"type":"client_control","session_id":"s1","action":"microphone","granted":false}`},
		{name: "granted without rate", raw: `{"type":"client_control","session_id":"s1","action":"microphone","granted":true}`, wantErr: true},
		{name: "unknown action", raw: `{"type":"client_control","session_id":"s1","action":"dance"}`, wantErr: true},
		{name: "missing session", raw: `{"type":"client_control","action":"start"}`, wantErr: true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseClientMessage([]byte(tc.raw))
			if (err != nil) != tc.wantErr {
				t.Fatalf("ParseClientMessage() error = %v, wantErr %v", err, tc.wantErr)
			}
		})
	}
}

func TestAssistantAudioChunkWireFormat(t *testing.T) {
	raw, err := json.Marshal(AssistantAudioChunk{
		Type:        TypeAssistantAudio,
		SessionID:   "s1",
		Seq:         2,
		PCM16Base64: "AAA=",
		SampleRate:  24000,
		StartAtMS:   150,
		DurationMS:  100,
	})
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	want := `{"type":"assistant_audio_chunk","session_id":"s1","seq":2,"pcm16_base64":"AAA=","sample_rate":24000,"start_at_ms":150,"duration_ms":100}`
	if string(raw) != want {
		t.Fatalf("json = %s, want %s", raw, want)
	}
}
