package slack

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

	"github.com/commercekit/orderworker/internal/observability/notify"
)

func testPayload() notify.DeadLetterPayload {
	return notify.DeadLetterPayload{
		EnvelopeID: "env-1",
		Task:       "order_receipt",
		OrderID:    42,
		Attempt:    2,
		Reason:     "store unavailable",
		TraceID:    "abc123",
		OccurredAt: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestNewClientRequiresWebhook(t *testing.T) {
	_, err := NewClient(Config{})
	require.Error(t, err)
}

func TestSendDeadLetter(t *testing.T) {
	var got map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &got))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client, err := NewClient(Config{
		WebhookURL: server.URL,
		Channel:    "#worker-alerts",
		Username:   "orderworker",
	})
	require.NoError(t, err)

	require.NoError(t, client.SendDeadLetter(context.Background(), testPayload()))

	assert.Equal(t, "#worker-alerts", got["channel"])
	assert.Equal(t, "orderworker", got["username"])
	text, _ := got["text"].(string)
	assert.Contains(t, text, "order_receipt")
	assert.Contains(t, text, "env-1")
	assert.Contains(t, text, "store unavailable")
	assert.Contains(t, text, "abc123")
}

func TestSendDeadLetterRetries(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client, err := NewClient(Config{WebhookURL: server.URL, RetryLimit: 2})
	require.NoError(t, err)

	require.NoError(t, client.SendDeadLetter(context.Background(), testPayload()))
	assert.Equal(t, int32(2), calls.Load())
}

func TestSendDeadLetterGivesUpAfterRetries(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	client, err := NewClient(Config{WebhookURL: server.URL, RetryLimit: 1})
	require.NoError(t, err)

	err = client.SendDeadLetter(context.Background(), testPayload())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
}
