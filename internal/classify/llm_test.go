package classify

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/yutingko/teascout/internal/types"
)

func geminiResponse(text, finishReason string) map[string]any {
	return map[string]any{
		"candidates": []map[string]any{
			{
				"content": map[string]any{
					"parts": []map[string]string{{"text": text}},
				},
				"finishReason": finishReason,
			},
		},
	}
}

func TestGenerateGemini(t *testing.T) {
	var gotPath string
	var gotBody map[string]any

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		if key := r.URL.Query().Get("key"); key != "test-key" {
			t.Errorf("key = %q, want test-key", key)
		}
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		_ = json.NewEncoder(w).Encode(geminiResponse(`[{"name":"x"}]`, "STOP"))
	}))
	defer srv.Close()

	cfg := testClassifyConfig()
	cfg.Provider = "gemini"
	cfg.Endpoint = srv.URL

	c := NewLLMClient(cfg, "test-key", testLogger())
	out, err := c.Generate(context.Background(), "classify these")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if out != `[{"name":"x"}]` {
		t.Errorf("out = %q", out)
	}

	wantPath := "/v1beta/models/" + cfg.Model + ":generateContent"
	if gotPath != wantPath {
		t.Errorf("path = %q, want %q", gotPath, wantPath)
	}
	gen, ok := gotBody["generationConfig"].(map[string]any)
	if !ok {
		t.Fatalf("request missing generationConfig: %v", gotBody)
	}
	if gen["maxOutputTokens"].(float64) != float64(cfg.MaxOutputTokens) {
		t.Errorf("maxOutputTokens = %v", gen["maxOutputTokens"])
	}
}

func TestGenerateGeminiRateLimited(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	cfg := testClassifyConfig()
	cfg.Provider = "gemini"
	cfg.Endpoint = srv.URL

	c := NewLLMClient(cfg, "k", testLogger())
	_, err := c.Generate(context.Background(), "p")
	if !errors.Is(err, types.ErrRateLimited) {
		t.Fatalf("error = %v, want ErrRateLimited", err)
	}
}

func TestGenerateGeminiEmptyCandidate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(geminiResponse("", "MAX_TOKENS"))
	}))
	defer srv.Close()

	cfg := testClassifyConfig()
	cfg.Provider = "gemini"
	cfg.Endpoint = srv.URL

	c := NewLLMClient(cfg, "k", testLogger())
	_, err := c.Generate(context.Background(), "p")
	if err == nil || !strings.Contains(err.Error(), "MAX_TOKENS") {
		t.Fatalf("error = %v, want empty-candidate error naming the finish reason", err)
	}
}

func TestGenerateOpenAI(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if auth := r.Header.Get("Authorization"); auth != "Bearer sk-test" {
			t.Errorf("auth = %q", auth)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]string{"content": "[]"}},
			},
		})
	}))
	defer srv.Close()

	cfg := testClassifyConfig()
	cfg.Provider = "openai"
	cfg.Endpoint = srv.URL

	c := NewLLMClient(cfg, "sk-test", testLogger())
	out, err := c.Generate(context.Background(), "p")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if out != "[]" {
		t.Errorf("out = %q", out)
	}
}

func TestGenerateUnsupportedProvider(t *testing.T) {
	cfg := testClassifyConfig()
	cfg.Provider = "mystery"
	c := NewLLMClient(cfg, "", testLogger())
	if _, err := c.Generate(context.Background(), "p"); err == nil {
		t.Fatal("expected error for unsupported provider")
	}
}
