package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *GeminiClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewGeminiClientWithConfig(Config{
		APIKey:  "test-key",
		BaseURL: srv.URL,
		Model:   "gemini-2.5-flash",
		Timeout: 5 * time.Second,
	})
}

func completionBody(texts ...string) string {
	parts := ""
	for i, tx := range texts {
		if i > 0 {
			parts += ","
		}
		b, _ := json.Marshal(tx)
		parts += fmt.Sprintf(`{"text":%s}`, b)
	}
	return fmt.Sprintf(`{"candidates":[{"content":{"parts":[%s]}}]}`, parts)
}

func TestGeminiClient_Generate(t *testing.T) {
	var gotReq geminiRequest
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))
		fmt.Fprint(w, completionBody("hello there"))
	})

	text, err := client.Generate(context.Background(), GenerateParams{
		Contents:          "hi",
		SystemInstruction: "you are a friendly companion",
		Temperature:       0.7,
		MaxOutputTokens:   3000,
	})
	require.NoError(t, err)
	assert.Equal(t, "hello there", text)

	require.Len(t, gotReq.Contents, 1)
	assert.Equal(t, "user", gotReq.Contents[0].Role)
	assert.Equal(t, "hi", gotReq.Contents[0].Parts[0].Text)
	require.NotNil(t, gotReq.SystemInstruction)
	assert.Equal(t, "you are a friendly companion", gotReq.SystemInstruction.Parts[0].Text)
	assert.Empty(t, gotReq.Tools)
}

func TestGeminiClient_GenerateWithFileSearch(t *testing.T) {
	var gotReq geminiRequest
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))
		fmt.Fprint(w, completionBody("grounded answer"))
	})

	_, err := client.Generate(context.Background(), GenerateParams{
		Contents:        "what does my file say?",
		FileSearchStore: "fileSearchStores/abc123",
	})
	require.NoError(t, err)

	require.Len(t, gotReq.Tools, 1)
	require.NotNil(t, gotReq.Tools[0].FileSearch)
	assert.Equal(t, []string{"fileSearchStores/abc123"}, gotReq.Tools[0].FileSearch.FileSearchStoreNames)
}

func TestGeminiClient_GenerateClassifiesStatus(t *testing.T) {
	tests := []struct {
		status int
		want   ErrorClass
	}{
		{429, ClassRateLimited},
		{503, ClassOverloaded},
		{500, ClassUnavailable},
		{400, ClassFatal},
	}

	for _, tt := range tests {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tt.status)
			fmt.Fprint(w, `{"error":{"message":"boom"}}`)
		})

		_, err := client.Generate(context.Background(), GenerateParams{Contents: "hi"})
		require.Error(t, err)

		var pe *Error
		require.True(t, errors.As(err, &pe), "status %d: expected *Error", tt.status)
		assert.Equal(t, tt.want, pe.Class, "status %d", tt.status)
		assert.Equal(t, tt.status, pe.StatusCode)
	}
}

func TestGeminiClient_GenerateNoAPIKey(t *testing.T) {
	client := NewGeminiClient("")
	_, err := client.Generate(context.Background(), GenerateParams{Contents: "hi"})

	var pe *Error
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, ClassFatal, pe.Class)
}

func TestGeminiClient_GenerateStream(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprintf(w, "data: %s\n\n", completionBody("Hel"))
		fmt.Fprintf(w, "data: %s\n\n", completionBody("lo!"))
		fmt.Fprint(w, "data: [DONE]\n\n")
	})

	contentChan, errorChan := client.GenerateStream(context.Background(), GenerateParams{Contents: "hi"})

	var chunks []string
	for chunk := range contentChan {
		chunks = append(chunks, chunk)
	}
	require.NoError(t, <-errorChan)
	assert.Equal(t, []string{"Hel", "lo!"}, chunks)
}

func TestGeminiClient_GenerateStreamErrorStatus(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		fmt.Fprint(w, "slow down")
	})

	contentChan, errorChan := client.GenerateStream(context.Background(), GenerateParams{Contents: "hi"})

	for range contentChan {
		t.Error("expected no content chunks")
	}
	err := <-errorChan
	var pe *Error
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, ClassRateLimited, pe.Class)
}

func TestGeminiClient_GenerateStreamCancellation(t *testing.T) {
	release := make(chan struct{})
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprintf(w, "data: %s\n\n", completionBody("first"))
		if f, ok := w.(http.Flusher); ok {
			f.Flush()
		}
		<-release
	})
	defer close(release)

	ctx, cancel := context.WithCancel(context.Background())
	contentChan, errorChan := client.GenerateStream(ctx, GenerateParams{Contents: "hi"})

	first, ok := <-contentChan
	require.True(t, ok)
	assert.Equal(t, "first", first)

	cancel()

	for range contentChan {
	}
	err := <-errorChan
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled) || errors.As(err, new(*Error)))
}
