package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bryanwahyu/medreport/internal/domain/ai"
)

func TestComplete(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"1","object":"chat.completion","choices":[{"index":0,"message":{"role":"assistant","content":"{\"insights\":[\"ok\"]}"}}]}`))
	}))
	defer srv.Close()

	c := NewClient("test", "o3-mini", srv.URL+"/v1")
	out, err := c.Complete(context.Background(), "sys", "usr")
	require.NoError(t, err)
	assert.Equal(t, `{"insights":["ok"]}`, out)
	assert.Equal(t, "o3-mini", got["model"])
	assert.Contains(t, got, "max_completion_tokens")
	assert.NotContains(t, got, "max_tokens")
}

func TestComplete_Quota(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"message":"quota","type":"insufficient_quota"}}`))
	}))
	defer srv.Close()

	c := NewClient("test", "gpt-4o-mini", srv.URL+"/v1")
	_, err := c.Complete(context.Background(), "sys", "usr")
	assert.ErrorIs(t, err, ai.ErrQuotaExceeded)
}
