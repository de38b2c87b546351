package tutor

import (
	"context"
	"encoding/base64"

	"google.golang.org/genai"

	"github.com/antoniostano/bootcamp/internal/gemini"
)

// Request is one prompt sent to a generative model.
type Request struct {
	Model             string
	SystemInstruction string
	Temperature       *float32
	Prompt            string
	// Image asks for an image response with a square aspect ratio.
	Image bool
}

type Reply struct {
	Text string
	// ImageURL is a data: URL for the first image part, if any.
	ImageURL string
}

// Generator produces model output for a request.
type Generator interface {
	Generate(ctx context.Context, req Request) (Reply, error)
}

// GeminiGenerator calls the Gemini API. A client is created per call so a
// missing key is reported on use, not at startup.
type GeminiGenerator struct {
	APIKey string
}

func NewGeminiGenerator(apiKey string) *GeminiGenerator {
	return &GeminiGenerator{APIKey: apiKey}
}

func (g *GeminiGenerator) Generate(ctx context.Context, req Request) (Reply, error) {
	const op = "gemini generate"
	client, err := gemini.NewClient(ctx, op, g.APIKey)
	if err != nil {
		return Reply{}, err
	}

	cfg := &genai.GenerateContentConfig{Temperature: req.Temperature}
	if req.SystemInstruction != "" {
		cfg.SystemInstruction = genai.NewContentFromText(req.SystemInstruction, genai.RoleUser)
	}
	if req.Image {
		cfg.ImageConfig = &genai.ImageConfig{AspectRatio: "1:1"}
	}

	resp, err := client.Models.GenerateContent(ctx, req.Model, genai.Text(req.Prompt), cfg)
	if err != nil {
		return Reply{}, gemini.Classify(op, err)
	}
	return replyFromResponse(resp), nil
}

func replyFromResponse(resp *genai.GenerateContentResponse) Reply {
	var out Reply
	if resp == nil {
		return out
	}
	out.Text = resp.Text()
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return out
	}
	for _, part := range resp.Candidates[0].Content.Parts {
		if part == nil || part.InlineData == nil || len(part.InlineData.Data) == 0 {
			continue
		}
		out.ImageURL = "data:" + part.InlineData.MIMEType + ";base64," +
			base64.StdEncoding.EncodeToString(part.InlineData.Data)
		break
	}
	return out
}
