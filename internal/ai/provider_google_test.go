package ai

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/p-n-ai/pai-course/internal/platform/httputil"
)

func textResponse(text string) geminiResponse {
	return geminiResponse{
		Candidates: []geminiCandidate{
			{Content: geminiContent{Role: "model", Parts: []geminiPart{{Text: text}}}},
		},
	}
}

func TestGoogleProvider_Complete(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Verify Gemini-specific URL pattern.
		if !strings.Contains(r.URL.Path, "/models/gemini-2.5-flash:generateContent") {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if r.Header.Get("x-goog-api-key") != "test-key" {
			t.Errorf("missing or wrong API key header")
		}
		if r.URL.RawQuery != "" {
			t.Errorf("query = %q, want none", r.URL.RawQuery)
		}

		var req geminiRequest
		json.NewDecoder(r.Body).Decode(&req)

		if len(req.Contents) == 0 {
			t.Error("no contents in request")
		}

		resp := textResponse("Gemini response")
		resp.UsageMetadata = geminiUsage{PromptTokenCount: 8, CandidatesTokenCount: 12}
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	provider := NewGoogleProvider("test-key", WithGoogleBaseURL(server.URL))

	resp, err := provider.Complete(context.Background(), CompletionRequest{
		Messages: []Message{{Role: "user", Content: "hello"}},
	})

	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if resp.Content != "Gemini response" {
		t.Errorf("content = %q, want %q", resp.Content, "Gemini response")
	}
	if resp.InputTokens != 8 {
		t.Errorf("input_tokens = %d, want 8", resp.InputTokens)
	}
	if resp.TotalTokens() != 20 {
		t.Errorf("TotalTokens() = %d, want 20", resp.TotalTokens())
	}
}

func TestGoogleProvider_Complete_RoleMappings(t *testing.T) {
	var received geminiRequest

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&received)
		json.NewEncoder(w).Encode(textResponse("ok"))
	}))
	defer server.Close()

	provider := NewGoogleProvider("test-key", WithGoogleBaseURL(server.URL))

	_, err := provider.Complete(context.Background(), CompletionRequest{
		Messages: []Message{
			{Role: "system", Content: "You are a tutor."},
			{Role: "user", Content: "hello"},
			{Role: "assistant", Content: "hi"},
			{Role: "user", Content: "explain algebra"},
		},
	})

	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}

	// System messages move to systemInstruction, assistant maps to "model".
	if len(received.Contents) != 3 {
		t.Fatalf("got %d contents, want 3 (system should be lifted out)", len(received.Contents))
	}
	if received.Contents[1].Role != "model" {
		t.Errorf("assistant role mapped to %q, want %q", received.Contents[1].Role, "model")
	}
	if received.SystemInstruction == nil || received.SystemInstruction.Parts[0].Text != "You are a tutor." {
		t.Errorf("systemInstruction = %+v, want tutor prompt", received.SystemInstruction)
	}
}

func TestGoogleProvider_Complete_InlineDataAndSchema(t *testing.T) {
	var received geminiRequest

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&received)
		json.NewEncoder(w).Encode(textResponse(`{"title":"Algebra"}`))
	}))
	defer server.Close()

	provider := NewGoogleProvider("test-key", WithGoogleBaseURL(server.URL))

	_, err := provider.Complete(context.Background(), CompletionRequest{
		System: "Extract the course structure.",
		Messages: []Message{{
			Role:        "user",
			Content:     "Here is the syllabus.",
			Attachments: []Attachment{{MimeType: "application/pdf", Data: []byte("%PDF-1.4")}},
		}},
		ResponseSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"title":   map[string]any{"type": "string"},
				"modules": map[string]any{"type": "array", "items": map[string]any{"type": "object"}},
			},
			"additionalProperties": false,
		},
	})
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}

	parts := received.Contents[0].Parts
	if len(parts) != 2 {
		t.Fatalf("got %d parts, want 2 (document + text)", len(parts))
	}
	if parts[0].InlineData == nil || parts[0].InlineData.MimeType != "application/pdf" {
		t.Fatalf("first part = %+v, want inline pdf", parts[0])
	}
	if parts[0].InlineData.Data != base64.StdEncoding.EncodeToString([]byte("%PDF-1.4")) {
		t.Errorf("inline data not base64 encoded: %q", parts[0].InlineData.Data)
	}

	cfg := received.GenerationConfig
	if cfg == nil || cfg.ResponseMimeType != "application/json" {
		t.Fatalf("generationConfig = %+v, want JSON response mime type", cfg)
	}
	if cfg.ResponseSchema["type"] != "OBJECT" {
		t.Errorf("schema type = %v, want OBJECT", cfg.ResponseSchema["type"])
	}
	if _, ok := cfg.ResponseSchema["additionalProperties"]; ok {
		t.Error("unsupported keyword additionalProperties should be dropped")
	}
	props := cfg.ResponseSchema["properties"].(map[string]any)
	modules := props["modules"].(map[string]any)
	if modules["items"].(map[string]any)["type"] != "OBJECT" {
		t.Errorf("nested items type not converted: %v", modules["items"])
	}
}

func TestGoogleProvider_Complete_Speech(t *testing.T) {
	pcm := []byte{0x00, 0x40, 0x00, 0xC0}
	var received geminiRequest

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.URL.Path, "/models/gemini-2.5-flash-preview-tts:generateContent") {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		json.NewDecoder(r.Body).Decode(&received)
		json.NewEncoder(w).Encode(geminiResponse{
			Candidates: []geminiCandidate{{Content: geminiContent{Parts: []geminiPart{{
				InlineData: &geminiBlob{
					MimeType: "audio/L16;codec=pcm;rate=24000",
					Data:     base64.StdEncoding.EncodeToString(pcm),
				},
			}}}}},
		})
	}))
	defer server.Close()

	provider := NewGoogleProvider("test-key", WithGoogleBaseURL(server.URL))

	resp, err := provider.Complete(context.Background(), CompletionRequest{
		Model:    "gemini-2.5-flash-preview-tts",
		Messages: []Message{{Role: "user", Content: "Say hello"}},
		Speech:   &SpeechConfig{Voice: "Kore"},
	})
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}

	cfg := received.GenerationConfig
	if cfg == nil || len(cfg.ResponseModalities) != 1 || cfg.ResponseModalities[0] != "AUDIO" {
		t.Fatalf("generationConfig = %+v, want AUDIO modality", cfg)
	}
	if cfg.SpeechConfig.VoiceConfig.PrebuiltVoiceConfig.VoiceName != "Kore" {
		t.Errorf("voice = %q, want Kore", cfg.SpeechConfig.VoiceConfig.PrebuiltVoiceConfig.VoiceName)
	}
	if resp.Audio == nil {
		t.Fatal("Audio is nil")
	}
	if string(resp.Audio.Data) != string(pcm) {
		t.Errorf("audio data = %v, want %v", resp.Audio.Data, pcm)
	}
}

func TestGoogleProvider_Complete_APIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{"error": "forbidden"}`))
	}))
	defer server.Close()

	provider := NewGoogleProvider("test-key", WithGoogleBaseURL(server.URL))

	_, err := provider.Complete(context.Background(), CompletionRequest{
		Messages: []Message{{Role: "user", Content: "hello"}},
	})

	if err == nil {
		t.Fatal("Complete() should return error on API error")
	}
}

func TestGoogleProvider_Complete_RetriesRateLimit(t *testing.T) {
	httputil.RetryBaseDelay = time.Millisecond
	defer func() { httputil.RetryBaseDelay = 2 * time.Second }()

	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		json.NewEncoder(w).Encode(textResponse("after retry"))
	}))
	defer server.Close()

	provider := NewGoogleProvider("test-key", WithGoogleBaseURL(server.URL))

	resp, err := provider.Complete(context.Background(), CompletionRequest{
		Messages: []Message{{Role: "user", Content: "hello"}},
	})
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if resp.Content != "after retry" {
		t.Errorf("content = %q, want %q", resp.Content, "after retry")
	}
}

func TestGoogleProvider_Complete_EmptyRequest(t *testing.T) {
	provider := NewGoogleProvider("test-key", WithGoogleBaseURL("http://127.0.0.1:0"))

	_, err := provider.Complete(context.Background(), CompletionRequest{System: "only a system prompt"})
	if err == nil {
		t.Fatal("Complete() should reject a request without contents")
	}
}

func TestGoogleProvider_HealthCheck(t *testing.T) {
	tests := []struct {
		name       string
		statusCode int
		wantErr    bool
	}{
		{"healthy", http.StatusOK, false},
		{"unhealthy", http.StatusForbidden, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if !strings.Contains(r.URL.Path, "/models") {
					t.Errorf("unexpected path: %s", r.URL.Path)
				}
				w.WriteHeader(tt.statusCode)
			}))
			defer server.Close()

			provider := NewGoogleProvider("test-key", WithGoogleBaseURL(server.URL))
			err := provider.HealthCheck(context.Background())

			if (err != nil) != tt.wantErr {
				t.Errorf("HealthCheck() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestGoogleProvider_KeyNotInErrors(t *testing.T) {
	provider := NewGoogleProvider("SECRET-API-KEY", WithGoogleBaseURL("http://127.0.0.1:1"), WithGoogleMaxRetries(0))

	_, err := provider.Complete(context.Background(), CompletionRequest{
		Messages: []Message{{Role: "user", Content: "hi"}},
	})
	if err == nil {
		t.Fatal("Complete() should fail against a closed port")
	}
	if strings.Contains(err.Error(), "SECRET-API-KEY") {
		t.Errorf("Complete() error leaks the key: %v", err)
	}

	err = provider.HealthCheck(context.Background())
	if err == nil {
		t.Fatal("HealthCheck() should fail against a closed port")
	}
	if strings.Contains(err.Error(), "SECRET-API-KEY") {
		t.Errorf("HealthCheck() error leaks the key: %v", err)
	}
}

func TestGoogleProvider_Models(t *testing.T) {
	provider := NewGoogleProvider("test-key")
	models := provider.Models()

	if len(models) == 0 {
		t.Fatal("Models() returned empty list")
	}
	for _, m := range models {
		if m.Name == "" {
			t.Errorf("model %q has empty name", m.ID)
		}
	}
}
