package live

import (
	"context"
	"io"
	"strings"
	"sync"

	"google.golang.org/genai"

	"github.com/antoniostano/bootcamp/internal/audio"
	"github.com/antoniostano/bootcamp/internal/gemini"
)

// GeminiRemote connects to the Gemini Live API.
type GeminiRemote struct {
	APIKey string
}

func NewGeminiRemote(apiKey string) *GeminiRemote {
	return &GeminiRemote{APIKey: apiKey}
}

func (r *GeminiRemote) Connect(ctx context.Context, cfg Config) (Stream, error) {
	const op = "live connect"
	client, err := gemini.NewClient(ctx, op, r.APIKey)
	if err != nil {
		return nil, err
	}
	cfg = cfg.withDefaults()

	conf := &genai.LiveConnectConfig{
		ResponseModalities: []genai.Modality{genai.ModalityAudio},
		SystemInstruction:  genai.NewContentFromText(cfg.SystemInstruction, genai.RoleUser),
		SpeechConfig: &genai.SpeechConfig{
			VoiceConfig: &genai.VoiceConfig{
				PrebuiltVoiceConfig: &genai.PrebuiltVoiceConfig{VoiceName: cfg.Voice},
			},
		},
	}
	if cfg.Temperature > 0 {
		conf.Temperature = genai.Ptr(cfg.Temperature)
	}
	if cfg.Transcribe {
		conf.InputAudioTranscription = &genai.AudioTranscriptionConfig{}
		conf.OutputAudioTranscription = &genai.AudioTranscriptionConfig{}
	}

	session, err := client.Live.Connect(ctx, cfg.Model, conf)
	if err != nil {
		return nil, gemini.Classify(op, err)
	}
	return &geminiStream{session: session}, nil
}

type geminiStream struct {
	session *genai.Session

	sendMu  sync.Mutex
	pending []Event

	closeOnce sync.Once
	closeErr  error
}

func (s *geminiStream) SendAudio(_ context.Context, chunk audio.Chunk) error {
	s.sendMu.Lock()
	defer s.sendMu.Unlock()
	err := s.session.SendRealtimeInput(genai.LiveRealtimeInput{
		Media: &genai.Blob{Data: chunk.PCM, MIMEType: chunk.MIMEType()},
	})
	return gemini.Classify("live send", err)
}

// Receive is only called from one goroutine.
func (s *geminiStream) Receive(ctx context.Context) (Event, error) {
	for len(s.pending) == 0 {
		if err := ctx.Err(); err != nil {
			return Event{}, err
		}
		msg, err := s.session.Receive()
		if err != nil {
			if gemini.IsNormalClose(err) {
				return Event{}, io.EOF
			}
			return Event{}, gemini.Classify("live receive", err)
		}
		events, err := eventsFromMessage(msg)
		if err != nil {
			return Event{}, err
		}
		s.pending = events
	}
	ev := s.pending[0]
	s.pending = s.pending[1:]
	return ev, nil
}

func (s *geminiStream) Close() error {
	s.closeOnce.Do(func() { s.closeErr = s.session.Close() })
	return s.closeErr
}

// eventsFromMessage flattens a server message into events in the order the
// client should apply them: interruption first, then audio, transcripts and
// the turn boundary.
func eventsFromMessage(msg *genai.LiveServerMessage) ([]Event, error) {
	if msg == nil || msg.ServerContent == nil {
		return nil, nil
	}
	sc := msg.ServerContent

	var events []Event
	if sc.Interrupted {
		events = append(events, Event{Interrupted: true})
	}
	if sc.ModelTurn != nil {
		for _, part := range sc.ModelTurn.Parts {
			if part == nil || part.InlineData == nil || !strings.HasPrefix(part.InlineData.MIMEType, "audio/") {
				continue
			}
			rate := audio.ParseMIMERate(part.InlineData.MIMEType, audio.PlaybackSampleRate)
			chunk, err := audio.ParseChunk(part.InlineData.Data, rate)
			if err != nil {
				return nil, err
			}
			events = append(events, Event{Audio: &chunk})
		}
	}
	if tr := sc.InputTranscription; tr != nil && tr.Text != "" {
		events = append(events, Event{Transcript: &Transcript{Role: RoleUser, Text: tr.Text, Final: tr.Finished}})
	}
	if tr := sc.OutputTranscription; tr != nil && tr.Text != "" {
		events = append(events, Event{Transcript: &Transcript{Role: RoleAssistant, Text: tr.Text, Final: tr.Finished}})
	}
	if sc.TurnComplete {
		events = append(events, Event{TurnComplete: true})
	}
	return events, nil
}
