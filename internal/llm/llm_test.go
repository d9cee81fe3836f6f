package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/hyperjump/pdfqa/internal/config"
)

func TestNew_Providers(t *testing.T) {
	tests := []struct {
		name     string
		cfg      config.LLMConfig
		wantType string
		wantErr  bool
	}{
		{"ollama", config.LLMConfig{Provider: "ollama", Model: "mistral", BaseURL: "http://localhost:11434"}, "*llm.OllamaGenerator", false},
		{"empty provider defaults to ollama", config.LLMConfig{Model: "mistral"}, "*llm.OllamaGenerator", false},
		{"openai", config.LLMConfig{Provider: "OpenAI", Model: "mistral", BaseURL: "http://localhost:11434"}, "*llm.OpenAIGenerator", false},
		{"unknown", config.LLMConfig{Provider: "nope", Model: "mistral"}, "", true},
		{"missing model", config.LLMConfig{Provider: "ollama"}, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, err := New(tt.cfg)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("New: %v", err)
			}
			if got := fmt.Sprintf("%T", g); got != tt.wantType {
				t.Errorf("type = %s, want %s", got, tt.wantType)
			}
			if g.Model() != tt.cfg.Model {
				t.Errorf("Model() = %q", g.Model())
			}
		})
	}
}

func TestOllamaGenerator_Generate(t *testing.T) {
	var got generateRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/generate" || r.Method != http.MethodPost {
			http.NotFound(w, r)
			return
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		enc := json.NewEncoder(w)
		_ = enc.Encode(generateChunk{Response: "The contract "})
		_ = enc.Encode(generateChunk{Response: "ends in May."})
		_ = enc.Encode(generateChunk{Done: true})
	}))
	defer srv.Close()

	g := NewOllamaGenerator(srv.URL+"/", "mistral", 0.5, srv.Client(), nil)
	answer, err := g.Generate(context.Background(), "When does the contract end?")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if answer != "The contract ends in May." {
		t.Errorf("answer = %q", answer)
	}
	if got.Model != "mistral" || !got.Stream || got.Options.Temperature != 0.5 {
		t.Errorf("unexpected request %+v", got)
	}
	if got.Prompt != "When does the contract end?" {
		t.Errorf("prompt = %q", got.Prompt)
	}
}

func TestOllamaGenerator_Errors(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		want    string
	}{
		{
			name: "http status",
			handler: func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "model not found", http.StatusNotFound)
			},
			want: "status 404",
		},
		{
			name: "stream error",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(`{"response":"par"}` + "\n" + `{"error":"out of memory"}` + "\n"))
			},
			want: "out of memory",
		},
		{
			name: "malformed stream",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(`{"response":`))
			},
			want: "decode response stream",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()
			g := NewOllamaGenerator(srv.URL, "mistral", 0.5, srv.Client(), nil)
			_, err := g.Generate(context.Background(), "q")
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("err = %v, want containing %q", err, tt.want)
			}
		})
	}
}

func TestOllamaGenerator_ContextCanceled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	g := NewOllamaGenerator(srv.URL, "mistral", 0.5, srv.Client(), nil)
	if _, err := g.Generate(ctx, "q"); err == nil {
		t.Fatal("expected error for canceled context")
	}
}

func TestOpenAIGenerator_Generate(t *testing.T) {
	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			http.NotFound(w, r)
			return
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"x","object":"chat.completion","choices":[{"index":0,"message":{"role":"assistant","content":"  Forty days.  "},"finish_reason":"stop"}]}`))
	}))
	defer srv.Close()

	g := NewOpenAIGenerator(srv.URL, "", "mistral", 0.25, srv.Client())
	answer, err := g.Generate(context.Background(), "How long is the notice period?")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if answer != "Forty days." {
		t.Errorf("answer = %q", answer)
	}
	if body["model"] != "mistral" {
		t.Errorf("model = %v", body["model"])
	}
	if temp, _ := body["temperature"].(float64); temp != 0.25 {
		t.Errorf("temperature = %v", body["temperature"])
	}
}

func TestOpenAIGenerator_ZeroTemperatureIsSent(t *testing.T) {
	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&body)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"x","choices":[{"index":0,"message":{"role":"assistant","content":"ok"}}]}`))
	}))
	defer srv.Close()

	g := NewOpenAIGenerator(srv.URL, "", "mistral", 0, srv.Client())
	if _, err := g.Generate(context.Background(), "q"); err != nil {
		t.Fatal(err)
	}
	temp, ok := body["temperature"].(float64)
	if !ok || temp > 1e-6 {
		t.Errorf("temperature = %v, want a near-zero value in the request", body["temperature"])
	}
}

func TestOpenAIGenerator_NoChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"x","choices":[]}`))
	}))
	defer srv.Close()

	g := NewOpenAIGenerator(srv.URL+"/v1", "", "mistral", 0.5, srv.Client())
	if _, err := g.Generate(context.Background(), "q"); err == nil {
		t.Fatal("expected error")
	}
}
