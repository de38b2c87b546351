package tutor

import (
	"testing"

	"google.golang.org/genai"
)

func TestReplyFromResponse(t *testing.T) {
	resp := &genai.GenerateContentResponse{Candidates: []*genai.Candidate{{
		Content: &genai.Content{Parts: []*genai.Part{
			{Text: "here you go"},
			{InlineData: &genai.Blob{MIMEType: "image/png", Data: []byte{1, 2, 3}}},
		}},
	}}}
	got := replyFromResponse(resp)
	if got.Text != "here you go" {
		t.Fatalf("Text = %q", got.Text)
	}
	if got.ImageURL != "data:image/png;base64,AQID" {
		t.Fatalf("ImageURL = %q", got.ImageURL)
	}

	if got := replyFromResponse(&genai.GenerateContentResponse{}); got != (Reply{}) {
		t.Fatalf("empty response = %+v, want zero", got)
	}
}
