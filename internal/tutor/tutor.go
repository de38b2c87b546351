// Package tutor proxies the two study chat widgets to the model: the
// consultant for exam questions and the casual sidekick that can also draw.
package tutor

import (
	"context"
	"errors"
	"fmt"
	"log"
	"regexp"
	"strings"
	"time"

	"github.com/antoniostano/bootcamp/internal/failure"
	"github.com/antoniostano/bootcamp/internal/memory"
	"github.com/antoniostano/bootcamp/internal/observability"
	"github.com/antoniostano/bootcamp/internal/policy"
	"github.com/antoniostano/bootcamp/internal/reliability"
)

const (
	DefaultTextModel  = "gemini-3-flash-preview"
	DefaultImageModel = "gemini-2.5-flash-image"

	ConsultantInstruction = "You are the Elite Accountancy Consultant. Precise, expert, and professional. You help students master complex accounting concepts. No filler. Big Four style delivery."
	SidekickInstruction   = "You are a friendly, casual sidekick. Keep answers brief and witty. Part of the Bootcamp by Piyush Pandey."

	ConsultantFallback = "Protocol failure: Null response."
	SidekickFallback   = "I'm drawing a blank, try again!"
	ImageFallback      = "I couldn't quite visualize that. Rephrase your request!"
)

const consultantTemperature float32 = 0.6

var imageRequest = regexp.MustCompile(`(?i)\b(generate|create|draw|make|show|picture|image|photo|art|sketch)\b`)

// ErrPromptRejected is returned when a prompt fails the prompt policy.
var ErrPromptRejected = errors.New("tutor: prompt rejected")

// WantsImage reports whether prompt asks the sidekick for a picture.
func WantsImage(prompt string) bool { return imageRequest.MatchString(prompt) }

type Answer struct {
	Channel  string `json:"channel"`
	Text     string `json:"text"`
	ImageURL string `json:"image_url,omitempty"`
	Fallback bool   `json:"fallback"`
}

type Options struct {
	TextModel      string
	ImageModel     string
	Retry          reliability.RetryPolicy
	MaxPromptRunes int
	Transcripts    memory.Store
	Metrics        *observability.Metrics
}

type Tutor struct {
	gen  Generator
	opts Options
}

// New builds a Tutor. A zero Options.Retry uses the default policy for the
// consultant; the sidekick never retries.
func New(gen Generator, opts Options) *Tutor {
	if opts.TextModel == "" {
		opts.TextModel = DefaultTextModel
	}
	if opts.ImageModel == "" {
		opts.ImageModel = DefaultImageModel
	}
	if opts.Retry.MaxAttempts == 0 {
		opts.Retry = reliability.DefaultRetryPolicy()
	}
	return &Tutor{gen: gen, opts: opts}
}

// Consult answers an accounting question with the consultant persona.
// Rate-limit and server failures are retried by the configured policy.
func (t *Tutor) Consult(ctx context.Context, userID, prompt string) (Answer, error) {
	temp := consultantTemperature
	req := Request{
		Model:             t.opts.TextModel,
		SystemInstruction: ConsultantInstruction,
		Temperature:       &temp,
		Prompt:            prompt,
	}
	return t.run(ctx, memory.ChannelConsultant, userID, req, t.opts.Retry, ConsultantFallback)
}

// Chat answers with the sidekick persona, routing picture requests to the
// image model.
func (t *Tutor) Chat(ctx context.Context, userID, prompt string) (Answer, error) {
	req := Request{Prompt: prompt}
	fallback := SidekickFallback
	if WantsImage(prompt) {
		req.Model = t.opts.ImageModel
		req.Image = true
		fallback = ImageFallback
	} else {
		req.Model = t.opts.TextModel
		req.SystemInstruction = SidekickInstruction
	}
	return t.run(ctx, memory.ChannelSidekick, userID, req, reliability.NoRetry(), fallback)
}

func (t *Tutor) run(ctx context.Context, channel, userID string, req Request, retry reliability.RetryPolicy, fallback string) (Answer, error) {
	if d := policy.CheckPrompt(req.Prompt, t.opts.MaxPromptRunes); !d.Allowed {
		t.count(channel, "rejected")
		return Answer{}, fmt.Errorf("%w: %s", ErrPromptRejected, d.Reason)
	}
	req.Prompt = strings.TrimSpace(req.Prompt)

	op := "chat " + channel
	if t.opts.Metrics != nil {
		retry.OnRetry = func(attempt int, delay time.Duration, err error) {
			t.opts.Metrics.RetryAttempts.WithLabelValues(op).Inc()
			log.Printf("%s: attempt %d failed (%v), retrying in %s", op, attempt, err, delay)
		}
	}

	started := time.Now()
	var reply Reply
	err := retry.Do(ctx, func(ctx context.Context) error {
		var err error
		reply, err = t.gen.Generate(ctx, req)
		return err
	})
	if t.opts.Metrics != nil {
		t.opts.Metrics.ObserveChatLatency(channel, time.Since(started))
	}
	if err != nil {
		t.count(channel, "error")
		if t.opts.Metrics != nil {
			t.opts.Metrics.ProviderErrors.WithLabelValues(op, string(failure.KindOf(err))).Inc()
		}
		return Answer{}, err
	}

	ans := Answer{Channel: channel, Text: strings.TrimSpace(reply.Text), ImageURL: reply.ImageURL}
	switch {
	case req.Image && ans.ImageURL == "":
		ans = Answer{Channel: channel, Text: fallback, Fallback: true}
	case !req.Image && ans.Text == "":
		ans.Text = fallback
		ans.Fallback = true
	}
	t.count(channel, "ok")
	t.record(ctx, channel, userID, req.Prompt, ans)
	return ans, nil
}

func (t *Tutor) count(channel, outcome string) {
	if t.opts.Metrics != nil {
		t.opts.Metrics.ChatRequests.WithLabelValues(channel, outcome).Inc()
	}
}

// record stores the exchange after redaction. Storage failures are logged,
// not returned; the answer has already been produced.
func (t *Tutor) record(ctx context.Context, channel, userID, prompt string, ans Answer) {
	if t.opts.Transcripts == nil || userID == "" {
		return
	}
	reply := ans.Text
	if ans.ImageURL != "" {
		reply = "[image]"
	}
	now := time.Now().UTC()
	for i, turn := range []struct{ role, text string }{{"user", prompt}, {"assistant", reply}} {
		content, redacted := policy.Redact(turn.text)
		err := t.opts.Transcripts.SaveTurn(ctx, memory.TurnRecord{
			UserID:      userID,
			Channel:     channel,
			Role:        turn.role,
			Content:     content,
			PIIRedacted: redacted,
			CreatedAt:   now.Add(time.Duration(i) * time.Microsecond),
		})
		if err != nil {
			log.Printf("tutor %s: save transcript for %s: %v", channel, userID, err)
			return
		}
	}
}

// History returns the user's recent turns on channel.
func (t *Tutor) History(ctx context.Context, userID, channel string, limit int) ([]memory.TurnRecord, error) {
	if t.opts.Transcripts == nil {
		return nil, nil
	}
	return t.opts.Transcripts.Recent(ctx, userID, channel, limit)
}
