package provider

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"companion/internal/logging"
)

// GeminiClient implements Client for the Google Gemini API.
type GeminiClient struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewGeminiClient creates a Gemini client with default settings.
func NewGeminiClient(apiKey string) *GeminiClient {
	return NewGeminiClientWithConfig(DefaultConfig(apiKey))
}

// NewGeminiClientWithConfig creates a Gemini client with custom config.
func NewGeminiClientWithConfig(config Config) *GeminiClient {
	model := strings.TrimSpace(config.Model)
	if model == "" {
		model = "gemini-2.5-flash"
	}
	baseURL := strings.TrimSpace(config.BaseURL)
	if baseURL == "" {
		baseURL = "https://generativelanguage.googleapis.com/v1beta"
	}
	timeout := config.Timeout
	if timeout <= 0 {
		timeout = 120 * time.Second
	}

	return &GeminiClient{
		apiKey:  config.APIKey,
		baseURL: baseURL,
		model:   model,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: logging.Named("provider"),
	}
}

// Model returns the configured model name.
func (c *GeminiClient) Model() string { return c.model }

// Wire types for the generativelanguage REST API.

type geminiRequest struct {
	Contents          []geminiContent        `json:"contents"`
	SystemInstruction *geminiContent         `json:"systemInstruction,omitempty"`
	GenerationConfig  geminiGenerationConfig `json:"generationConfig"`
	Tools             []geminiTool           `json:"tools,omitempty"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiGenerationConfig struct {
	Temperature     float64 `json:"temperature"`
	MaxOutputTokens int     `json:"maxOutputTokens,omitempty"`
}

type geminiTool struct {
	FileSearch *geminiFileSearch `json:"file_search,omitempty"`
}

type geminiFileSearch struct {
	FileSearchStoreNames []string `json:"file_search_store_names"`
}

type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []geminiPart `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error,omitempty"`
}

func (c *GeminiClient) buildRequest(params GenerateParams) geminiRequest {
	req := geminiRequest{
		Contents: []geminiContent{
			{
				Role:  "user",
				Parts: []geminiPart{{Text: params.Contents}},
			},
		},
		GenerationConfig: geminiGenerationConfig{
			Temperature:     params.Temperature,
			MaxOutputTokens: params.MaxOutputTokens,
		},
	}
	if strings.TrimSpace(params.SystemInstruction) != "" {
		req.SystemInstruction = &geminiContent{
			Parts: []geminiPart{{Text: params.SystemInstruction}},
		}
	}
	if params.FileSearchStore != "" {
		req.Tools = append(req.Tools, geminiTool{
			FileSearch: &geminiFileSearch{
				FileSearchStoreNames: []string{params.FileSearchStore},
			},
		})
	}
	return req
}

// Generate performs one blocking completion. It does not retry; the gateway
// owns the retry policy.
func (c *GeminiClient) Generate(ctx context.Context, params GenerateParams) (string, error) {
	if c.apiKey == "" {
		return "", &Error{Class: ClassFatal, Message: "API key not configured"}
	}

	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.httpClient.Timeout)
		defer cancel()
	}

	startTime := time.Now()
	c.logger.Debug("generate",
		zap.String("model", c.model),
		zap.Int("content_len", len(params.Contents)),
		zap.Bool("file_search", params.FileSearchStore != ""))

	jsonData, err := json.Marshal(c.buildRequest(params))
	if err != nil {
		return "", &Error{Class: ClassFatal, Message: fmt.Sprintf("failed to marshal request: %v", err)}
	}

	url := fmt.Sprintf("%s/models/%s:generateContent?key=%s", c.baseURL, c.model, c.apiKey)
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(jsonData))
	if err != nil {
		return "", &Error{Class: ClassFatal, Message: fmt.Sprintf("failed to create request: %v", err)}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", ClassifyError(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &Error{Class: ClassUnavailable, Message: fmt.Sprintf("failed to read response: %v", err)}
	}

	if resp.StatusCode != http.StatusOK {
		return "", &Error{
			Class:      ClassifyStatus(resp.StatusCode),
			StatusCode: resp.StatusCode,
			Message:    strings.TrimSpace(string(body)),
		}
	}

	var geminiResp geminiResponse
	if err := json.Unmarshal(body, &geminiResp); err != nil {
		return "", &Error{Class: ClassFatal, Message: fmt.Sprintf("failed to parse response: %v", err)}
	}
	if geminiResp.Error != nil {
		return "", &Error{
			Class:      ClassifyStatus(geminiResp.Error.Code),
			StatusCode: geminiResp.Error.Code,
			Message:    geminiResp.Error.Message,
		}
	}
	if len(geminiResp.Candidates) == 0 || len(geminiResp.Candidates[0].Content.Parts) == 0 {
		return "", &Error{Class: ClassUnavailable, Message: "no completion returned"}
	}

	var result strings.Builder
	for _, part := range geminiResp.Candidates[0].Content.Parts {
		result.WriteString(part.Text)
	}

	c.logger.Debug("generate completed",
		zap.Duration("elapsed", time.Since(startTime)),
		zap.Int("response_len", result.Len()))

	return strings.TrimSpace(result.String()), nil
}

// GenerateStream starts a streaming completion over SSE. Chunks are forwarded
// in provider order; cancellation stops the scan.
func (c *GeminiClient) GenerateStream(ctx context.Context, params GenerateParams) (<-chan string, <-chan error) {
	contentChan := make(chan string, 100)
	errorChan := make(chan error, 1)

	go func() {
		defer close(contentChan)
		defer close(errorChan)

		if c.apiKey == "" {
			errorChan <- &Error{Class: ClassFatal, Message: "API key not configured"}
			return
		}

		if _, hasDeadline := ctx.Deadline(); !hasDeadline {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, c.httpClient.Timeout)
			defer cancel()
		}

		startTime := time.Now()

		jsonData, err := json.Marshal(c.buildRequest(params))
		if err != nil {
			errorChan <- &Error{Class: ClassFatal, Message: fmt.Sprintf("failed to marshal request: %v", err)}
			return
		}

		url := fmt.Sprintf("%s/models/%s:streamGenerateContent?alt=sse&key=%s", c.baseURL, c.model, c.apiKey)
		req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(jsonData))
		if err != nil {
			errorChan <- &Error{Class: ClassFatal, Message: fmt.Sprintf("failed to create request: %v", err)}
			return
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "text/event-stream")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			errorChan <- ClassifyError(err)
			return
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			body, _ := io.ReadAll(resp.Body)
			errorChan <- &Error{
				Class:      ClassifyStatus(resp.StatusCode),
				StatusCode: resp.StatusCode,
				Message:    strings.TrimSpace(string(body)),
			}
			return
		}

		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

		for scanner.Scan() {
			line := scanner.Text()
			if !strings.HasPrefix(line, "data:") {
				continue
			}
			data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
			if data == "" || data == "[DONE]" {
				continue
			}

			var chunk geminiResponse
			if err := json.Unmarshal([]byte(data), &chunk); err != nil {
				continue
			}
			if chunk.Error != nil {
				errorChan <- &Error{
					Class:      ClassifyStatus(chunk.Error.Code),
					StatusCode: chunk.Error.Code,
					Message:    chunk.Error.Message,
				}
				return
			}
			if len(chunk.Candidates) == 0 {
				continue
			}
			for _, part := range chunk.Candidates[0].Content.Parts {
				if part.Text == "" {
					continue
				}
				select {
				case contentChan <- part.Text:
				case <-ctx.Done():
					errorChan <- ctx.Err()
					return
				}
			}
		}
		if err := scanner.Err(); err != nil {
			if ctx.Err() != nil {
				errorChan <- ctx.Err()
				return
			}
			errorChan <- &Error{Class: ClassUnavailable, Message: fmt.Sprintf("stream error: %v", err)}
			return
		}

		c.logger.Debug("stream completed", zap.Duration("elapsed", time.Since(startTime)))
	}()

	return contentChan, errorChan
}
