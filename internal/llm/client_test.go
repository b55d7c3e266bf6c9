package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"virtual-patient-service/internal/logger"
)

func completionBody(content string) string {
	b, _ := json.Marshal(map[string]any{
		"choices": []any{
			map[string]any{"message": map[string]any{"content": content}},
		},
	})
	return string(b)
}

func TestCompleteTextRetriesOn500(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			http.Error(w, "upstream hiccup", http.StatusInternalServerError)
			return
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("authorization header = %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(completionBody("hello")))
	}))
	defer server.Close()

	client := NewClient(logger.NewNop(), Options{BaseURL: server.URL, APIKey: "test-key", MaxRetries: 2})
	out, err := client.CompleteText(context.Background(), "sys", "user")
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if out != "hello" {
		t.Fatalf("content = %q, want hello", out)
	}
	if atomic.LoadInt32(&calls) != 2 {
		t.Fatalf("expected one retry, got %d calls", calls)
	}
}

func TestCompleteTextDoesNotRetryOn400(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.Error(w, "bad request", http.StatusBadRequest)
	}))
	defer server.Close()

	client := NewClient(logger.NewNop(), Options{BaseURL: server.URL, MaxRetries: 3})
	if _, err := client.CompleteText(context.Background(), "sys", "user"); err == nil {
		t.Fatalf("expected error")
	}
	if atomic.LoadInt32(&calls) != 1 {
		t.Fatalf("4xx must not retry, got %d calls", calls)
	}
}

func TestCompleteJSONDecodesStructuredContent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req map[string]any
		_ = json.NewDecoder(r.Body).Decode(&req)
		if _, ok := req["response_format"]; !ok {
			t.Errorf("expected response_format in request")
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(completionBody(`{"answer": 42}`)))
	}))
	defer server.Close()

	client := NewClient(logger.NewNop(), Options{BaseURL: server.URL})
	out, err := client.CompleteJSON(context.Background(), "sys", "user", "test", map[string]any{"type": "object"})
	if err != nil {
		t.Fatalf("complete json: %v", err)
	}
	if out["answer"].(float64) != 42 {
		t.Fatalf("decoded = %v", out)
	}
}
