package inference

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evalforge/modelrun/pkg/job"
	"github.com/evalforge/modelrun/pkg/prompt"
)

func testJob() job.Job {
	return job.Job{ID: "q1", Question: "What is 2+2?", AnswerType: job.AnswerTypeExactMatch}
}

func streamHandler(t *testing.T, lines []string) http.HandlerFunc {
	t.Helper()
	return func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)

		var payload map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		assert.Equal(t, true, payload["stream"])
		assert.Equal(t, "test-model", payload["model"])

		w.Header().Set("Content-Type", "text/event-stream")
		for _, line := range lines {
			fmt.Fprintf(w, "%s\n\n", line)
		}
	}
}

func TestClient_Complete(t *testing.T) {
	server := httptest.NewServer(streamHandler(t, []string{
		`data: {"choices":[{"delta":{"reasoning_content":"hm"}}]}`,
		`data: {"choices":[{"delta":{"content":"Answer: 4"}}]}`,
		`data: [DONE]`,
	}))
	defer server.Close()

	client := NewClient(Config{
		BaseURL:     server.URL + "/v1",
		Model:       "test-model",
		Temperature: 0.2,
	})

	completion, err := client.Complete(context.Background(), prompt.Build(testJob()), nil)
	require.NoError(t, err)

	assert.Equal(t, "Answer: 4", completion.Content)
	assert.Equal(t, "hm", completion.Reasoning)
}

func TestClient_CompleteReportsBadChunks(t *testing.T) {
	server := httptest.NewServer(streamHandler(t, []string{
		`data: {"choices":[{"delta":{"content":"ok"}}]}`,
		`data: garbage`,
		`data: [DONE]`,
	}))
	defer server.Close()

	client := NewClient(Config{BaseURL: server.URL + "/v1", Model: "test-model"})

	var reported []string
	completion, err := client.Complete(context.Background(), prompt.Build(testJob()), func(line string, err error) {
		reported = append(reported, line)
	})
	require.NoError(t, err)

	assert.Equal(t, "ok", completion.Content)
	assert.Equal(t, []string{"garbage"}, reported)
}

func TestClient_CompleteNon2xx(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not loaded", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := NewClient(Config{BaseURL: server.URL + "/v1", Model: "test-model"})

	_, err := client.Complete(context.Background(), prompt.Build(testJob()), nil)
	require.Error(t, err)

	var httpErr *HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusServiceUnavailable, httpErr.StatusCode)
	assert.Contains(t, httpErr.Message, "model not loaded")
}

func TestClient_CompleteConnectionRefused(t *testing.T) {
	client := NewClient(Config{BaseURL: "http://127.0.0.1:1/v1", Model: "test-model"})

	_, err := client.Complete(context.Background(), prompt.Build(testJob()), nil)
	assert.Error(t, err)
}

func TestClient_CompleteTimeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer server.Close()
	defer close(release)

	client := NewClient(Config{
		BaseURL: server.URL + "/v1",
		Model:   "test-model",
		Timeout: 50 * time.Millisecond,
	})

	start := time.Now()
	_, err := client.Complete(context.Background(), prompt.Build(testJob()), nil)
	assert.Error(t, err)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestNewClient_Defaults(t *testing.T) {
	client := NewClient(Config{BaseURL: "http://localhost:8000/v1/ ", Model: "m"})

	assert.Equal(t, 300*time.Second, client.timeout)
	assert.NotNil(t, client.httpClient)
	assert.Equal(t, "http://localhost:8000/v1", client.baseURL)
}
