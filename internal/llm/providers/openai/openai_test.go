// internal/llm/providers/openai/openai_test.go
package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Corphon/CreatorStudioMCP/internal/llm"
)

func newTestProvider(t *testing.T, handler http.HandlerFunc) *Provider {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	p := &Provider{}
	require.NoError(t, p.Initialize(map[string]string{
		"api_key":  "test-key",
		"base_url": server.URL,
	}))
	return p
}

func TestInitializeRequiresAPIKey(t *testing.T) {
	p := &Provider{}
	assert.Error(t, p.Initialize(map[string]string{}))
	assert.Error(t, p.Initialize(map[string]string{"api_key": ""}))
}

func TestGenerateText(t *testing.T) {
	var gotAuth string
	var gotBody map[string]interface{}

	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/chat/completions", r.URL.Path)
		gotAuth = r.Header.Get("Authorization")
		json.NewDecoder(r.Body).Decode(&gotBody)

		json.NewEncoder(w).Encode(map[string]interface{}{
			"choices": []map[string]interface{}{{
				"message":       map[string]string{"content": `{"title":"t","scenes":[]}`},
				"finish_reason": "stop",
			}},
			"usage": map[string]int{"prompt_tokens": 12, "completion_tokens": 34},
		})
	})

	resp, err := p.GenerateText(context.Background(), llm.TextRequest{
		Prompt:       "写个脚本",
		SystemPrompt: "你是编剧",
		Model:        "gpt-4.1-mini",
		Temperature:  0.8,
	})
	require.NoError(t, err)

	assert.Equal(t, "Bearer test-key", gotAuth)
	assert.Equal(t, "gpt-4.1-mini", gotBody["model"])
	assert.Contains(t, resp.Text, `"title"`)
	assert.Equal(t, 12, resp.PromptTokens)
	assert.Equal(t, 34, resp.OutputTokens)

	// system提示要作为首条消息带上
	messages := gotBody["messages"].([]interface{})
	first := messages[0].(map[string]interface{})
	assert.Equal(t, "system", first["role"])
}

func TestGenerateTextVendorError(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error":{"message":"Rate limit reached"}}`))
	})

	_, err := p.GenerateText(context.Background(), llm.TextRequest{Prompt: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")
}

func TestGenerateImageReturnsDataURI(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/images/generations", r.URL.Path)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"data": []map[string]string{{"b64_json": "aW1hZ2U="}},
		})
	})

	resp, err := p.GenerateImage(context.Background(), llm.ImageRequest{
		Prompt: "a studio",
		Model:  "gpt-image-1",
	})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(resp.Data, "data:image/png;base64,"))
	assert.Equal(t, "image/png", resp.MimeType)
}

func TestSynthesizeSpeechEncodesRawBytes(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/audio/speech", r.URL.Path)

		var body map[string]interface{}
		json.NewDecoder(r.Body).Decode(&body)
		assert.Equal(t, "wav", body["response_format"])
		assert.Equal(t, "alloy", body["voice"], "未指定音色时用默认值")

		w.Write([]byte("RIFFxxxxWAVE假音频字节"))
	})

	resp, err := p.SynthesizeSpeech(context.Background(), llm.SpeechRequest{
		Text:  "你好世界",
		Model: "tts-1",
	})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(resp.Data, "data:audio/wav;base64,"))
	assert.Equal(t, "wav", resp.Format)
	assert.Equal(t, 4, resp.Characters, "按原文字符数计费")
}
