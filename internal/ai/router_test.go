package ai_test

import (
	"context"
	"errors"
	"testing"

	"github.com/p-n-ai/pai-course/internal/ai"
)

func TestRouter_SingleProvider(t *testing.T) {
	router := ai.NewRouter()
	mock := ai.NewMockProvider("Hello!")
	router.Register("gemini", mock)

	resp, err := router.Complete(context.Background(), ai.CompletionRequest{
		Messages: []ai.Message{{Role: "user", Content: "hi"}},
	})

	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if resp.Content != "Hello!" {
		t.Errorf("Content = %q, want %q", resp.Content, "Hello!")
	}
}

func TestRouter_Fallback(t *testing.T) {
	router := ai.NewRouter()

	failing := &ai.MockProvider{Err: errors.New("rate limited")}
	fallback := ai.NewMockProvider("Fallback response")

	router.Register("gemini-flash", failing)
	router.Register("gemini-pro", fallback)

	resp, err := router.Complete(context.Background(), ai.CompletionRequest{
		Messages: []ai.Message{{Role: "user", Content: "hi"}},
	})

	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if resp.Content != "Fallback response" {
		t.Errorf("Content = %q, want %q", resp.Content, "Fallback response")
	}
}

func TestRouter_AllProvidersFail(t *testing.T) {
	router := ai.NewRouter()

	cause := errors.New("fail 2")
	router.Register("gemini-flash", &ai.MockProvider{Err: errors.New("fail 1")})
	router.Register("gemini-pro", &ai.MockProvider{Err: cause})

	_, err := router.Complete(context.Background(), ai.CompletionRequest{
		Messages: []ai.Message{{Role: "user", Content: "hi"}},
	})

	if err == nil {
		t.Fatal("Complete() should return error when all providers fail")
	}
	if !errors.Is(err, cause) {
		t.Errorf("error %v should wrap the provider errors", err)
	}
}

func TestRouter_NoProviders(t *testing.T) {
	router := ai.NewRouter()

	_, err := router.Complete(context.Background(), ai.CompletionRequest{
		Messages: []ai.Message{{Role: "user", Content: "hi"}},
	})

	if !errors.Is(err, ai.ErrNoProvider) {
		t.Fatalf("Complete() error = %v, want ErrNoProvider", err)
	}
}

func TestRouter_HasProvider(t *testing.T) {
	router := ai.NewRouter()
	if router.HasProvider() {
		t.Error("HasProvider() should be false with no providers")
	}

	router.Register("mock", ai.NewMockProvider("ok"))
	if !router.HasProvider() {
		t.Error("HasProvider() should be true after Register")
	}
}

func TestRouter_FallbackOrder(t *testing.T) {
	router := ai.NewRouter()

	// First registered should be tried first.
	first := ai.NewMockProvider("first")
	second := ai.NewMockProvider("second")

	router.Register("first", first)
	router.Register("second", second)

	resp, err := router.Complete(context.Background(), ai.CompletionRequest{
		Messages: []ai.Message{{Role: "user", Content: "hi"}},
	})

	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if resp.Content != "first" {
		t.Errorf("Content = %q, want %q (first registered should be tried first)", resp.Content, "first")
	}
	if len(second.Requests()) != 0 {
		t.Error("second provider should not be called when the first succeeds")
	}
}

func TestRouter_ReRegisterKeepsOrder(t *testing.T) {
	router := ai.NewRouter()
	router.Register("a", &ai.MockProvider{Err: errors.New("down")})
	router.Register("b", ai.NewMockProvider("b"))
	router.Register("a", ai.NewMockProvider("a replaced"))

	resp, err := router.Complete(context.Background(), ai.CompletionRequest{
		Messages: []ai.Message{{Role: "user", Content: "hi"}},
	})
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if resp.Content != "a replaced" {
		t.Errorf("Content = %q, want %q", resp.Content, "a replaced")
	}
}

func TestRouter_HealthCheck(t *testing.T) {
	router := ai.NewRouter()
	if err := router.HealthCheck(context.Background()); err == nil {
		t.Fatal("HealthCheck() should fail with no providers")
	}

	router.Register("down", &ai.MockProvider{Err: errors.New("down")})
	if err := router.HealthCheck(context.Background()); err == nil {
		t.Fatal("HealthCheck() should fail when every provider is down")
	}

	router.Register("up", ai.NewMockProvider("ok"))
	if err := router.HealthCheck(context.Background()); err != nil {
		t.Fatalf("HealthCheck() error = %v, want nil with one healthy provider", err)
	}
}

func TestRouter_Models(t *testing.T) {
	router := ai.NewRouter()
	router.Register("google", ai.NewGoogleProvider("test-key"))
	router.Register("google-fallback", ai.NewGoogleProvider("test-key", ai.WithGoogleModel("gemini-2.5-pro")))
	router.Register("mock", ai.NewMockProvider("hi"))

	models := router.Models()
	seen := make(map[string]int)
	for _, m := range models {
		seen[m.ID]++
	}
	for id, n := range seen {
		if n != 1 {
			t.Errorf("model %q listed %d times", id, n)
		}
	}
	if seen["gemini-2.5-flash-preview-tts"] != 1 || seen["mock"] != 1 {
		t.Errorf("Models() = %+v", models)
	}
	if models[len(models)-1].ID != "mock" {
		t.Errorf("last model = %q, want the mock registered last", models[len(models)-1].ID)
	}
}
