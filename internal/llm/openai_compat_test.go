package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestChatJSONReturnsRawContent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req chatCompletionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.ResponseFormat == nil || req.ResponseFormat.Type != "json_object" {
			t.Errorf("expected json_object response format, got %+v", req.ResponseFormat)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]string{"content": `{"main_question":"q","sub_questions":[]}`}},
			},
		})
	}))
	defer srv.Close()

	p := NewOpenAICompat(Config{BaseURL: srv.URL, Model: "test-model"})
	raw, err := p.ChatJSON(context.Background(), ChatRequest{Messages: []Message{{Role: "user", Content: "hi"}}})
	if err != nil {
		t.Fatalf("ChatJSON: %v", err)
	}

	var decoded struct {
		MainQuestion string   `json:"main_question"`
		SubQuestions []string `json:"sub_questions"`
	}
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("unmarshal raw json: %v", err)
	}
	if decoded.MainQuestion != "q" {
		t.Errorf("main_question = %q, want %q", decoded.MainQuestion, "q")
	}
}

func TestDoPostNonRetryableErrorReturnsImmediately(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	p := NewOpenAICompat(Config{BaseURL: srv.URL, Model: "test-model"})
	_, err := p.Chat(context.Background(), ChatRequest{Messages: []Message{{Role: "user", Content: "hi"}}})
	if err == nil {
		t.Fatal("expected error")
	}
	if calls != 1 {
		t.Errorf("expected no retries on 400, got %d calls", calls)
	}
}
