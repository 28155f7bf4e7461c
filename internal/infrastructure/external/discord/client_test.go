package discord

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mentor-hub/learning-mentor/pkg/logger"
)

func newTestClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c := NewClient(ClientConfig{
		Token:   "test-token",
		BaseURL: srv.URL,
		Timeout: 5 * time.Second,
		Logger:  logger.New(logger.Options{Level: logger.LevelError, Output: io.Discard}),
	})
	return c, srv
}

func TestGetMessages(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/channels/111/messages", r.URL.Path)
		assert.Equal(t, "Bot test-token", r.Header.Get("Authorization"))
		assert.Equal(t, "50", r.URL.Query().Get("limit"))
		assert.Equal(t, "999", r.URL.Query().Get("after"))

		json.NewEncoder(w).Encode([]Message{
			{ID: "1002", ChannelID: "111", Content: "newest", Author: User{ID: "42", Username: "alice"}},
			{ID: "1001", ChannelID: "111", Content: "older", Author: User{ID: "42", Username: "alice"}},
		})
	}))

	messages, err := c.GetMessages(context.Background(), "111", ListMessagesOptions{Limit: 50, After: "999"})
	require.NoError(t, err)
	require.Len(t, messages, 2)
	assert.Equal(t, "newest", messages[0].Content)
	assert.Equal(t, "alice", messages[0].Author.Username)
}

func TestCreateMessage(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/channels/111/messages", r.URL.Path)

		var req CreateMessageRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "hello", req.Content)

		json.NewEncoder(w).Encode(Message{ID: "2000", ChannelID: "111", Content: req.Content})
	}))

	msg, err := c.CreateMessage(context.Background(), "111", CreateMessageRequest{Content: "hello"})
	require.NoError(t, err)
	assert.Equal(t, "2000", msg.ID)
}

func TestCreateReactionEscapesEmoji(t *testing.T) {
	var gotPath atomic.Value
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath.Store(r.URL.EscapedPath())
		w.WriteHeader(http.StatusNoContent)
	}))

	require.NoError(t, c.CreateReaction(context.Background(), "111", "2000", "✅"))
	assert.Contains(t, gotPath.Load().(string), "/reactions/%E2%9C%85/@me")
}

func TestRateLimitRetried(t *testing.T) {
	var calls int32
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			json.NewEncoder(w).Encode(rateLimitResponse{RetryAfter: 0.01})
			return
		}
		json.NewEncoder(w).Encode(Message{ID: "1", ChannelID: "111"})
	}))

	msg, err := c.GetMessage(context.Background(), "111", "1")
	require.NoError(t, err)
	assert.Equal(t, "1", msg.ID)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestClientErrorNotRetried(t *testing.T) {
	var calls int32
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(map[string]any{"code": 10008, "message": "Unknown Message"})
	}))

	_, err := c.GetMessage(context.Background(), "111", "404")
	require.Error(t, err)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusNotFound, apiErr.Status)
	assert.Equal(t, 10008, apiErr.Code)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls), "4xx must not retry")
}

func TestServerErrorRetried(t *testing.T) {
	var calls int32
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		json.NewEncoder(w).Encode(Message{ID: "1", ChannelID: "111"})
	}))

	_, err := c.GetMessage(context.Background(), "111", "1")
	require.NoError(t, err)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestStartThread(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/channels/111/threads", r.URL.Path)

		var req StartThreadRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, ChannelTypePublicThread, req.Type)

		json.NewEncoder(w).Encode(Channel{ID: "3000", Type: ChannelTypePublicThread, Name: req.Name, ParentID: "111"})
	}))

	th, err := c.StartThread(context.Background(), "111", "📚 Learning Log - August 29, 2026")
	require.NoError(t, err)
	assert.True(t, th.IsThread())
	assert.Equal(t, "111", th.ParentID)
}

func TestGetPinnedMessages(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/channels/111/pins", r.URL.Path)
		json.NewEncoder(w).Encode([]Message{{ID: "5", Pinned: true, Embeds: []Embed{{Title: "🔒 Bot State [DO NOT MODIFY]"}}}})
	}))

	pins, err := c.GetPinnedMessages(context.Background(), "111")
	require.NoError(t, err)
	require.Len(t, pins, 1)
	assert.True(t, pins[0].Pinned)
}
