package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tordrt/ldmgen/internal/config"
)

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		want    string
		wantErr error
	}{
		{"bare object", `{"a":1}`, `{"a":1}`, nil},
		{"json fence", "```json\n{\"a\":1}\n```", `{"a":1}`, nil},
		{"plain fence", "```\n{\"a\":[1,2]}\n```", `{"a":[1,2]}`, nil},
		{"prose around", "Here you go: {\"a\":1} hope it helps", `{"a":1}`, nil},
		{"empty", "   ", "", ErrEmptyResponse},
		{"no object", "sorry, I cannot", "", ErrMalformedResponse},
		{"broken object", `{"a":`, "", ErrMalformedResponse},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExtractJSON(tt.text)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.JSONEq(t, tt.want, string(got))
		})
	}
}

func TestLinearBackOff(t *testing.T) {
	b := &linearBackOff{base: 100 * time.Millisecond}
	assert.Equal(t, 100*time.Millisecond, b.NextBackOff())
	assert.Equal(t, 200*time.Millisecond, b.NextBackOff())
	assert.Equal(t, 300*time.Millisecond, b.NextBackOff())
	b.Reset()
	assert.Equal(t, 100*time.Millisecond, b.NextBackOff())
}

func TestRetrier(t *testing.T) {
	errFlaky := errors.New("flaky")

	tests := []struct {
		name      string
		failures  int
		permanent bool
		retries   int
		wantCalls int
		wantErr   bool
	}{
		{"first try", 0, false, 3, 1, false},
		{"succeeds on retry", 2, false, 3, 3, false},
		{"retries exhausted", 10, false, 3, 4, true},
		{"no retries", 10, false, 0, 1, true},
		{"permanent stops", 10, true, 3, 1, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			r := Retrier{MaxRetries: tt.retries, Delay: time.Millisecond, Timeout: time.Second}
			err := r.Do(context.Background(), "test", func(ctx context.Context) error {
				calls++
				if calls <= tt.failures {
					if tt.permanent {
						return Permanent(errFlaky)
					}
					return errFlaky
				}
				return nil
			})

			assert.Equal(t, tt.wantCalls, calls)
			if tt.wantErr {
				assert.ErrorIs(t, err, errFlaky)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestRetrierAttemptTimeout(t *testing.T) {
	r := Retrier{MaxRetries: 1, Delay: time.Millisecond, Timeout: 20 * time.Millisecond}
	calls := 0
	err := r.Do(context.Background(), "slow", func(ctx context.Context) error {
		calls++
		<-ctx.Done()
		return ctx.Err()
	})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 2, calls, "each attempt gets its own timeout")
}

func TestRetrierParentCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	err := Retrier{MaxRetries: 5, Delay: time.Millisecond}.Do(ctx, "cancelled", func(ctx context.Context) error {
		calls++
		return ctx.Err()
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func chatServer(t *testing.T, content string, status int) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)

		var req map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "test-model", req["model"])

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		if status != http.StatusOK {
			_, _ = w.Write([]byte(`{"error":{"message":"overloaded","type":"server_error"}}`))
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":      "cmpl-1",
			"object":  "chat.completion",
			"created": 1,
			"model":   "test-model",
			"choices": []map[string]any{{
				"index":         0,
				"message":       map[string]any{"role": "assistant", "content": content},
				"finish_reason": "stop",
			}},
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestOpenAIClient(t *testing.T) {
	srv := chatServer(t, "```json\n{\"columns\":[]}\n```", http.StatusOK)
	c := NewOpenAI(config.LLMConfig{Model: "test-model", BaseURL: srv.URL + "/v1/", APIKey: "sk-test"}, nil)

	_, err := c.Send(context.Background(), "hi")
	require.ErrorIs(t, err, ErrNotReady)
	assert.False(t, c.Ready())

	require.NoError(t, c.Init(context.Background()))
	assert.True(t, c.Ready())

	got, err := c.Send(context.Background(), "hi")
	require.NoError(t, err)
	assert.JSONEq(t, `{"columns":[]}`, string(got))
}

func TestOpenAIClientServerError(t *testing.T) {
	srv := chatServer(t, "", http.StatusInternalServerError)
	c := NewOpenAI(config.LLMConfig{Model: "test-model", BaseURL: srv.URL + "/v1", APIKey: "sk-test"}, nil)
	require.NoError(t, c.Init(context.Background()))

	_, err := c.Send(context.Background(), "hi")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrMalformedResponse)
}

func TestOpenAIClientNotConfigured(t *testing.T) {
	c := NewOpenAI(config.LLMConfig{}, nil)
	assert.ErrorIs(t, c.Init(context.Background()), ErrNotConfigured)
	assert.False(t, c.Ready())
}
