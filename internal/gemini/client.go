// Package gemini builds genai clients and maps their errors onto failure
// kinds.
package gemini

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gorilla/websocket"
	"google.golang.org/genai"

	"github.com/antoniostano/bootcamp/internal/failure"
	"github.com/antoniostano/bootcamp/internal/reliability"
)

// MissingKeyDetail is the detail reported when no API key is configured.
const MissingKeyDetail = "API_KEY_MISSING"

// NewClient returns a Gemini API client. An empty key fails with
// failure.KindConfigurationMissing before any network call.
func NewClient(ctx context.Context, op, apiKey string) (*genai.Client, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, failure.Newf(failure.KindConfigurationMissing, op, MissingKeyDetail)
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, failure.New(failure.KindConfigurationMissing, op, err)
	}
	return client, nil
}

// Classify wraps err with the failure kind it represents. Context errors and
// errors that already carry a kind are returned unchanged.
func Classify(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var fe *failure.Error
	if errors.As(err, &fe) {
		return err
	}

	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return failure.New(kindForStatus(apiErr.Code), op, err)
	}
	var closeErr *websocket.CloseError
	if errors.As(err, &closeErr) {
		switch closeErr.Code {
		case websocket.CloseTryAgainLater:
			return failure.New(failure.KindRateLimited, op, err)
		case websocket.CloseInternalServerErr, websocket.CloseServiceRestart:
			return failure.New(failure.KindServerError, op, err)
		case websocket.ClosePolicyViolation, websocket.CloseInvalidFramePayloadData:
			return failure.New(failure.KindMalformedPayload, op, err)
		}
		return failure.New(failure.KindConnectivity, op, err)
	}
	return failure.New(failure.KindConnectivity, op, err)
}

func kindForStatus(code int) failure.Kind {
	switch {
	case code == http.StatusTooManyRequests:
		return failure.KindRateLimited
	case reliability.IsRetryableHTTPStatus(code):
		return failure.KindServerError
	default:
		return failure.KindConnectivity
	}
}

// IsNormalClose reports whether err is the remote side ending the stream
// cleanly.
func IsNormalClose(err error) bool {
	return websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway)
}
