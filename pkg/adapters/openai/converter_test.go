package openai_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aretw0/kiosk/pkg/adapters/openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const converted = "```json\n" + `{"version":"2","languages":{"en":{"nodes":{
  "start":{"type":"choice","content":"Pick","choices":[{"id":"a","text":"A","keywords":["alpha"],"next":"end"}]},
  "end":{"type":"message","content":"Bye"}}}}}` + "\n```"

func completionServer(t *testing.T, content string, calls *atomic.Int32) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if !strings.HasSuffix(r.URL.Path, "/chat/completions") {
			http.NotFound(w, r)
			return
		}
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "test-model", body["model"])

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":      "chatcmpl-1",
			"object":  "chat.completion",
			"created": 1,
			"model":   "test-model",
			"choices": []any{map[string]any{
				"index":         0,
				"finish_reason": "stop",
				"message":       map[string]any{"role": "assistant", "content": content},
			}},
		})
	}))
}

func TestConverter_Convert(t *testing.T) {
	var calls atomic.Int32
	srv := completionServer(t, converted, &calls)
	defer srv.Close()

	conv := openai.New(
		openai.WithAPIKey("test"),
		openai.WithBaseURL(srv.URL+"/v1/"),
		openai.WithModel("test-model"),
		openai.WithRate(100),
	)

	doc, err := conv.Convert(context.Background(), map[string]any{"anything": "goes"})
	require.NoError(t, err)
	assert.Equal(t, "2", doc.Version)
	en := doc.Languages["en"]
	require.NotNil(t, en)
	assert.Equal(t, "end", en.Nodes["start"].Choices[0].Next)
	assert.Equal(t, int32(1), calls.Load())
}

func TestConverter_EmptyAnswer(t *testing.T) {
	var calls atomic.Int32
	srv := completionServer(t, "   ", &calls)
	defer srv.Close()

	conv := openai.New(openai.WithAPIKey("test"), openai.WithBaseURL(srv.URL+"/v1/"), openai.WithModel("test-model"))
	_, err := conv.Convert(context.Background(), map[string]any{})
	assert.ErrorIs(t, err, openai.ErrEmptyCompletion)
}

func TestConverter_RateLimited(t *testing.T) {
	var calls atomic.Int32
	srv := completionServer(t, converted, &calls)
	defer srv.Close()

	conv := openai.New(
		openai.WithAPIKey("test"),
		openai.WithBaseURL(srv.URL+"/v1/"),
		openai.WithModel("test-model"),
		openai.WithRate(0.01),
	)
	ctx := context.Background()
	_, err := conv.Convert(ctx, map[string]any{})
	require.NoError(t, err)

	short, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()
	_, err = conv.Convert(short, map[string]any{})
	assert.Error(t, err, "second call waits beyond the deadline")
	assert.Equal(t, int32(1), calls.Load())
}
