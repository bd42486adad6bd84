package groq

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chefbot/llm"
)

func newTestServer(t *testing.T, status int, body string, seen *chatRequest) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		if seen != nil {
			assert.NoError(t, json.NewDecoder(r.Body).Decode(seen))
		}
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestNewClient(t *testing.T) {
	_, err := NewClient(ClientOpts{})
	assert.ErrorContains(t, err, "GROQ_API_KEY")

	c, err := NewClient(ClientOpts{APIKey: "k"})
	require.NoError(t, err)
	assert.Equal(t, DefaultBaseURL, c.baseURL)
}

func TestClient_Complete_JSONMode(t *testing.T) {
	var seen chatRequest
	srv := newTestServer(t, http.StatusOK,
		`{"choices":[{"message":{"role":"assistant","content":"{\"steps\":[\"a\"]}"},"finish_reason":"stop"}],"usage":{"prompt_tokens":10,"completion_tokens":5}}`,
		&seen)

	c, err := NewClient(ClientOpts{BaseURL: srv.URL + "/", APIKey: "test-key", ModelID: "llama-3.3-70b-versatile", HTTPClient: srv.Client()})
	require.NoError(t, err)

	res, err := c.Complete(context.Background(), llm.Request{
		Messages:    []llm.Message{llm.System("planifie"), llm.User("Contraintes : x")},
		Temperature: 0.3,
		JSONMode:    true,
	})
	require.NoError(t, err)

	assert.Equal(t, `{"steps":["a"]}`, res.Content)
	assert.Equal(t, "stop", res.StopReason)
	assert.Equal(t, int64(10), res.Usage.InputTokens)
	assert.Equal(t, int64(5), res.Usage.OutputTokens)

	assert.Equal(t, "llama-3.3-70b-versatile", seen.Model)
	assert.Equal(t, map[string]string{"type": "json_object"}, seen.ResponseFormat)
	assert.Nil(t, seen.ParallelToolCalls)
	assert.Empty(t, seen.Tools)
	require.Len(t, seen.Messages, 2)
	assert.Equal(t, "system", seen.Messages[0].Role)
}

func TestClient_Complete_ToolCalls(t *testing.T) {
	var seen chatRequest
	srv := newTestServer(t, http.StatusOK,
		`{"choices":[{"message":{"role":"assistant","content":null,"tool_calls":[
			{"id":"call_a","type":"function","function":{"name":"get_recipe","arguments":"{\"dish_name\":\"omelette\"}"}},
			{"id":"call_b","type":"function","function":{"name":"check_fridge","arguments":"not json"}}
		]},"finish_reason":"tool_calls"}]}`,
		&seen)

	c, err := NewClient(ClientOpts{BaseURL: srv.URL, APIKey: "test-key", HTTPClient: srv.Client()})
	require.NoError(t, err)

	res, err := c.Complete(context.Background(), llm.Request{
		Model: "m",
		Messages: []llm.Message{
			llm.User("recette ?"),
			llm.Assistant("", llm.ToolCall{ID: "call_0", Name: "check_fridge"}),
			llm.ToolResult("call_0", "check_fridge", "oeufs"),
		},
		Tools: []llm.ToolSpec{{Name: "check_fridge", Description: "frigo"}},
	})
	require.NoError(t, err)

	require.Len(t, res.ToolCalls, 2)
	assert.Equal(t, "call_a", res.ToolCalls[0].ID)
	assert.Equal(t, "omelette", res.ToolCalls[0].Args["dish_name"])
	assert.Empty(t, res.ToolCalls[1].Args)

	require.NotNil(t, seen.ParallelToolCalls)
	assert.False(t, *seen.ParallelToolCalls)
	assert.Equal(t, "auto", seen.ToolChoice)
	require.Len(t, seen.Messages, 3)
	require.Len(t, seen.Messages[1].ToolCalls, 1)
	assert.Equal(t, "{}", seen.Messages[1].ToolCalls[0].Function.Arguments)
	assert.Equal(t, "call_0", seen.Messages[2].ToolCallID)
}

func TestClient_Complete_Errors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   string
	}{
		{"api error", http.StatusTooManyRequests, `{"error":{"message":"rate limit","type":"tokens"}}`, "rate limit"},
		{"plain error", http.StatusBadGateway, "upstream down", "upstream down"},
		{"no choices", http.StatusOK, `{"choices":[]}`, "no choices"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(t, tt.status, tt.body, nil)
			c, err := NewClient(ClientOpts{BaseURL: srv.URL, APIKey: "test-key", HTTPClient: srv.Client()})
			require.NoError(t, err)

			_, err = c.Complete(context.Background(), llm.Request{Messages: []llm.Message{llm.User("hi")}})
			assert.ErrorContains(t, err, tt.want)
		})
	}
}
