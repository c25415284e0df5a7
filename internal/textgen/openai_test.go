package textgen

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/JonMunkholm/shopsheet/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newOpenAIServer(t *testing.T, status int, body string, seen *openAIRequest) *OpenAI {
	t.Helper()
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		if seen != nil {
			raw, _ := io.ReadAll(r.Body)
			_ = json.Unmarshal(raw, seen)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		io.WriteString(w, body)
	}))
	t.Cleanup(ts.Close)
	return NewOpenAI(OpenAIConfig{APIKey: "sk-test", BaseURL: ts.URL + "/", Model: "test-model"})
}

func TestOpenAI_Complete(t *testing.T) {
	var seen openAIRequest
	c := newOpenAIServer(t, http.StatusOK,
		`{"choices":[{"message":{"role":"assistant","content":"  A sturdy oak desk.\n"}}]}`, &seen)

	got, err := c.Complete(context.Background(), Request{
		System:      "be brief",
		Prompt:      "describe a desk",
		MaxTokens:   50,
		Temperature: 0.7,
	})
	require.NoError(t, err)
	assert.Equal(t, "A sturdy oak desk.", got)

	assert.Equal(t, "test-model", seen.Model)
	assert.Equal(t, 50, seen.MaxTokens)
	require.Len(t, seen.Messages, 2)
	assert.Equal(t, "system", seen.Messages[0].Role)
	assert.Equal(t, "describe a desk", seen.Messages[1].Content)
}

func TestOpenAI_StatusErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		want   error
	}{
		{"quota", http.StatusTooManyRequests, core.ErrQuotaExceeded},
		{"unauthorized", http.StatusUnauthorized, core.ErrAuth},
		{"forbidden", http.StatusForbidden, core.ErrAuth},
		{"gateway timeout", http.StatusGatewayTimeout, core.ErrTimeout},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newOpenAIServer(t, tt.status, `{"error":{"message":"nope","type":"test"}}`, nil)
			_, err := c.Complete(context.Background(), Request{Prompt: "x"})
			require.ErrorIs(t, err, tt.want)
			assert.Contains(t, err.Error(), "nope")
		})
	}
}

func TestOpenAI_ServerErrorIsNotClassified(t *testing.T) {
	c := newOpenAIServer(t, http.StatusInternalServerError, `upstream broke`, nil)
	_, err := c.Complete(context.Background(), Request{Prompt: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 500: upstream broke")
	assert.NotErrorIs(t, err, core.ErrAuth)
}

func TestOpenAI_NoChoices(t *testing.T) {
	c := newOpenAIServer(t, http.StatusOK, `{"choices":[]}`, nil)
	_, err := c.Complete(context.Background(), Request{Prompt: "x"})
	assert.EqualError(t, err, "openai: no completion returned")
}

func TestOpenAI_Timeout(t *testing.T) {
	release := make(chan struct{})
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer ts.Close()
	defer close(release)

	c := NewOpenAI(OpenAIConfig{APIKey: "sk-test", BaseURL: ts.URL})
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := c.Complete(ctx, Request{Prompt: "x"})
	assert.ErrorIs(t, err, core.ErrTimeout)
}

func TestOpenAI_MissingKey(t *testing.T) {
	c := NewOpenAI(OpenAIConfig{})
	_, err := c.Complete(context.Background(), Request{Prompt: "x"})
	assert.ErrorIs(t, err, ErrNotConfigured)
}
