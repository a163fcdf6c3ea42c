package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"
)

// useTempDataDirs points conversation and personality storage at temp
// directories for the duration of a test.
func useTempDataDirs(t *testing.T) {
	t.Helper()

	oldDataDir := DataDir
	oldPersonalitiesDir := PersonalitiesDir
	DataDir = t.TempDir()
	PersonalitiesDir = t.TempDir()
	t.Cleanup(func() {
		DataDir = oldDataDir
		PersonalitiesDir = oldPersonalitiesDir
	})
}

// useMockOpenRouter points the OpenRouter client at a mock server for the
// duration of a test and restores the config afterwards.
func useMockOpenRouter(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()

	server := httptest.NewServer(handler)

	oldAPIURL := OpenRouterAPIURL
	oldAPIKey := OpenRouterAPIKey
	OpenRouterAPIURL = server.URL
	OpenRouterAPIKey = "test-key"
	t.Cleanup(func() {
		OpenRouterAPIURL = oldAPIURL
		OpenRouterAPIKey = oldAPIKey
		server.Close()
	})

	return server
}

// writeOpenRouterResponse writes a successful chat-completions response with
// the given content.
func writeOpenRouterResponse(w http.ResponseWriter, content string) {
	apiResponse := map[string]interface{}{
		"choices": []map[string]interface{}{
			{
				"message": map[string]interface{}{
					"content": content,
				},
			},
		},
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(apiResponse)
}

// mockOpenRouterHandler returns a handler that answers every model with the
// same content and verifies request headers.
func mockOpenRouterHandler(t *testing.T, response string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Content-Type") != "application/json" {
			t.Errorf("Expected Content-Type application/json, got %s", r.Header.Get("Content-Type"))
		}
		if r.Header.Get("Authorization") == "" {
			t.Errorf("Missing Authorization header")
		}

		writeOpenRouterResponse(w, response)
	}
}

// mockOpenRouterErrorHandler returns a handler that fails every request.
func mockOpenRouterErrorHandler(statusCode int, errorMsg string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(statusCode)
		w.Write([]byte(errorMsg))
	}
}

// requestRecorder captures every OpenRouter request a test's mock server
// receives, keyed by model, so tests can assert on message structure.
type requestRecorder struct {
	mu       sync.Mutex
	requests map[string][]OpenRouterRequest
}

func newRequestRecorder() *requestRecorder {
	return &requestRecorder{requests: make(map[string][]OpenRouterRequest)}
}

// handler decodes each request, records it, and responds with respond(model).
func (rec *requestRecorder) handler(t *testing.T, respond func(model string) string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var request OpenRouterRequest
		if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
			t.Errorf("Failed to decode request: %v", err)
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		rec.mu.Lock()
		rec.requests[request.Model] = append(rec.requests[request.Model], request)
		rec.mu.Unlock()

		writeOpenRouterResponse(w, respond(request.Model))
	}
}

// totalRequests returns how many requests were recorded across all models.
func (rec *requestRecorder) totalRequests() int {
	rec.mu.Lock()
	defer rec.mu.Unlock()

	total := 0
	for _, reqs := range rec.requests {
		total += len(reqs)
	}
	return total
}

// messagesFor returns the messages of the n-th recorded request for a model.
func (rec *requestRecorder) messagesFor(t *testing.T, model string, n int) []OpenRouterMessage {
	rec.mu.Lock()
	defer rec.mu.Unlock()

	reqs := rec.requests[model]
	if len(reqs) <= n {
		t.Fatalf("Expected at least %d requests for %s, got %d", n+1, model, len(reqs))
	}
	return reqs[n].Messages
}

// sampleConversation creates a sample conversation for storage tests.
func sampleConversation(id string) *Conversation {
	return &Conversation{
		ID:        id,
		CreatedAt: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC),
		Title:     "Test Conversation",
		Messages: []Message{
			{
				Role:    "user",
				Content: "What is Go?",
			},
			{
				Role: "assistant",
				Stage1: []Stage1Response{
					{Model: "test/model1", Response: "Go is a programming language."},
					{Model: "test/model2", Response: "Go is developed by Google."},
				},
				Stage2: []Stage2Ranking{
					{
						Model:         "test/model1",
						Ranking:       "FINAL RANKING:\n1. Response B\n2. Response A",
						ParsedRanking: []string{"Response B", "Response A"},
					},
				},
				Stage3: &Stage3Response{
					Model:    "test/chairman",
					Response: "Go is a programming language developed by Google.",
				},
			},
		},
	}
}

// writePersonality stores a personality directly for tests.
func writePersonality(t *testing.T, p Personality) {
	t.Helper()
	if err := SavePersonality(&p); err != nil {
		t.Fatalf("Failed to save personality: %v", err)
	}
}
