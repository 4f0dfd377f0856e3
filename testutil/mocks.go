// Package testutil provides httptest-backed mocks for the external
// generation collaborators.
package testutil

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
)

// MockOpenAIServer mimics the chat completions endpoint with a fixed reply.
type MockOpenAIServer struct {
	*httptest.Server
	Reply    string
	Status   int
	Requests atomic.Int64
}

// NewMockOpenAIServer creates a mock completions API returning reply.
func NewMockOpenAIServer(t *testing.T, reply string) *MockOpenAIServer {
	t.Helper()
	m := &MockOpenAIServer{Reply: reply, Status: http.StatusOK}
	m.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		m.Requests.Add(1)
		if m.Status != http.StatusOK {
			w.WriteHeader(m.Status)
			_, _ = w.Write([]byte(`{"error":{"message":"mock failure"}}`))
			return
		}
		response := map[string]any{
			"id":     "chatcmpl-mock",
			"object": "chat.completion",
			"model":  "gpt-3.5-turbo",
			"choices": []map[string]any{
				{
					"index":         0,
					"finish_reason": "stop",
					"message": map[string]any{
						"role":    "assistant",
						"content": m.Reply,
					},
				},
			},
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(response) //nolint:errcheck // test mock response
	}))
	t.Cleanup(m.Close)
	return m
}

// MockTTSServer mimics the Azure TTS REST endpoint with fixed audio bytes.
type MockTTSServer struct {
	*httptest.Server
	Audio    []byte
	Status   int
	Requests atomic.Int64
	LastBody []byte
}

// NewMockTTSServer creates a mock synthesis endpoint returning audio.
func NewMockTTSServer(t *testing.T, audio []byte) *MockTTSServer {
	t.Helper()
	m := &MockTTSServer{Audio: audio, Status: http.StatusOK}
	m.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.Requests.Add(1)
		body, _ := io.ReadAll(r.Body)
		m.LastBody = body
		if m.Status != http.StatusOK {
			w.WriteHeader(m.Status)
			return
		}
		w.Header().Set("Content-Type", "audio/mpeg")
		_, _ = w.Write(m.Audio)
	}))
	t.Cleanup(m.Close)
	return m
}
