// Package provider implements the model-provider boundary. The gateway talks to
// a Client; the Gemini implementation speaks the generativelanguage REST API
// directly so failures stay classifiable by status code.
package provider

import (
	"context"
	"time"
)

// GenerateParams are the inputs for one model call.
type GenerateParams struct {
	Contents          string
	SystemInstruction string
	Temperature       float64
	MaxOutputTokens   int
	// FileSearchStore, when set, enables the provider's retrieval-augmented
	// mode scoped to that store handle.
	FileSearchStore string
}

// Client is a single-provider model client.
type Client interface {
	// Generate performs one blocking completion. Failures are *Error.
	Generate(ctx context.Context, params GenerateParams) (string, error)

	// GenerateStream starts a streaming completion. Text chunks arrive on the
	// first channel in provider order; at most one error arrives on the second.
	// Both channels close when the stream ends. The stream is not restartable.
	GenerateStream(ctx context.Context, params GenerateParams) (<-chan string, <-chan error)
}

// Config holds Gemini client settings.
type Config struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

// DefaultConfig returns sensible defaults for the Gemini API.
func DefaultConfig(apiKey string) Config {
	return Config{
		APIKey:  apiKey,
		BaseURL: "https://generativelanguage.googleapis.com/v1beta",
		Model:   "gemini-2.5-flash",
		Timeout: 120 * time.Second,
	}
}
