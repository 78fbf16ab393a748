package ai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestOllamaClient_CompleteAndEmbed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/chat":
			var req chatRequest
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				t.Errorf("bad request body: %v", err)
			}
			if req.Format != "json" || req.Model != "llama3.2:latest" {
				t.Errorf("unexpected request %+v", req)
			}
			json.NewEncoder(w).Encode(map[string]interface{}{
				"message":           map[string]string{"role": "assistant", "content": `{"ok":true}`},
				"done":              true,
				"prompt_eval_count": 7,
				"eval_count":        3,
			})
		case "/api/embeddings":
			json.NewEncoder(w).Encode(map[string]interface{}{"embedding": []float32{0.1, 0.2}})
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c := NewOllamaClient(srv.URL, "", "")
	comp, err := c.Complete(context.Background(), "", []Message{User("hi")}, Options{ResponseFormat: ResponseFormatJSON})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if comp.Content != `{"ok":true}` || comp.Usage.TotalTokens != 10 || comp.Provider != VendorOllama {
		t.Fatalf("unexpected completion %+v", comp)
	}

	vec, err := c.GenerateEmbedding(context.Background(), "text")
	if err != nil || len(vec) != 2 {
		t.Fatalf("GenerateEmbedding: %v %v", vec, err)
	}
}

func TestOllamaClient_StatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	if _, err := NewOllamaClient(srv.URL, "", "").GenerateEmbedding(context.Background(), "x"); err == nil {
		t.Fatal("expected error on 503")
	}
}
