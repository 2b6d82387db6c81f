package assistant

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MikeSquared-Agency/ava/internal/upstream"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(h)
	t.Cleanup(server.Close)
	return NewClient("test-key", server.URL+"/v1", "asst_test")
}

func TestCreateThread_SeedsFirstMessage(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/threads", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var body struct {
			Messages []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Len(t, body.Messages, 1)
		assert.Equal(t, "user", body.Messages[0].Role)
		assert.Equal(t, "hello there", body.Messages[0].Content)

		json.NewEncoder(w).Encode(map[string]any{"id": "thread_abc", "object": "thread"})
	})

	id, err := c.CreateThread(context.Background(), "hello there")
	require.NoError(t, err)
	assert.Equal(t, "thread_abc", id)
}

func TestCreateThread_UpstreamError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]any{"message": "server exploded", "type": "server_error"},
		})
	})

	_, err := c.CreateThread(context.Background(), "")
	require.Error(t, err)
	assert.ErrorIs(t, err, upstream.ErrUnavailable)
}

func TestAddMessageAndStartRun(t *testing.T) {
	var gotMessage, gotAssistant string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v1/threads/thread_1/messages":
			var body map[string]any
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			gotMessage, _ = body["content"].(string)
			json.NewEncoder(w).Encode(map[string]any{"id": "msg_1", "object": "thread.message", "role": "user"})
		case "/v1/threads/thread_1/runs":
			var body map[string]any
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			gotAssistant, _ = body["assistant_id"].(string)
			json.NewEncoder(w).Encode(map[string]any{"id": "run_1", "object": "thread.run", "status": "queued"})
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	})

	require.NoError(t, c.AddMessage(context.Background(), "thread_1", "Any places in Tempe?"))
	runID, err := c.StartRun(context.Background(), "thread_1")
	require.NoError(t, err)

	assert.Equal(t, "run_1", runID)
	assert.Equal(t, "Any places in Tempe?", gotMessage)
	assert.Equal(t, "asst_test", gotAssistant)
}

func TestRunMessages_FiltersByRunNewestFirst(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/v1/threads/thread_1/messages", r.URL.Path)
		q := r.URL.Query()
		assert.Equal(t, "desc", q.Get("order"))
		assert.Equal(t, "run_9", q.Get("run_id"))

		json.NewEncoder(w).Encode(map[string]any{
			"object": "list",
			"data": []map[string]any{
				{
					"id":   "msg_2",
					"role": "assistant",
					"content": []map[string]any{
						{"type": "text", "text": map[string]any{"value": "Here are", "annotations": []any{}}},
						{"type": "text", "text": map[string]any{"value": "three options.", "annotations": []any{}}},
					},
				},
				{
					"id":   "msg_1",
					"role": "user",
					"content": []map[string]any{
						{"type": "text", "text": map[string]any{"value": "help", "annotations": []any{}}},
					},
				},
			},
			"has_more": false,
		})
	})

	msgs, err := c.RunMessages(context.Background(), "thread_1", "run_9")
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, Message{ID: "msg_2", Role: RoleAssistant, Text: "Here are\nthree options."}, msgs[0])
	assert.Equal(t, "user", msgs[1].Role)
}

func TestRunMessages_TransportError(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	c := NewClient("test-key", url+"/v1", "asst_test")
	_, err := c.RunMessages(context.Background(), "thread_1", "run_1")
	require.Error(t, err)
	assert.ErrorIs(t, err, upstream.ErrUnavailable)
}
