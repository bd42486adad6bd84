package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chefbot/llm"
)

type mockDoer struct {
	status int
	body   string
	err    error
	seen   wireRequest
	url    string
}

func (m *mockDoer) Do(req *http.Request) (*http.Response, error) {
	m.url = req.URL.String()
	b, _ := io.ReadAll(req.Body)
	_ = json.Unmarshal(b, &m.seen)
	if m.err != nil {
		return nil, m.err
	}
	return &http.Response{
		StatusCode: m.status,
		Status:     http.StatusText(m.status),
		Body:       io.NopCloser(bytes.NewBufferString(m.body)),
	}, nil
}

func TestNewClient(t *testing.T) {
	_, err := NewClient(ClientOpts{})
	assert.Error(t, err)

	c, err := NewClient(ClientOpts{BaseEndpoint: "http://localhost:11434/", ModelID: "llama3.1"})
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:11434/api/chat", c.endpoint)
}

func TestClient_Complete(t *testing.T) {
	tests := []struct {
		name    string
		req     llm.Request
		status  int
		body    string
		wantErr bool
		check   func(t *testing.T, d *mockDoer, res llm.Response)
	}{
		{
			name: "json mode text answer",
			req: llm.Request{
				Messages:    []llm.Message{llm.System("sys"), llm.User(`{"steps"?}`)},
				Temperature: 0.3,
				JSONMode:    true,
			},
			status: http.StatusOK,
			body:   `{"message":{"role":"assistant","content":"{\"steps\":[]}"},"done_reason":"stop","prompt_eval_count":12,"eval_count":4}`,
			check: func(t *testing.T, d *mockDoer, res llm.Response) {
				assert.Equal(t, "json", d.seen.Format)
				assert.Equal(t, "llama3.1", d.seen.Model)
				assert.InDelta(t, 0.3, d.seen.Options.Temperature, 1e-9)
				require.Len(t, d.seen.Messages, 2)
				assert.Equal(t, "system", d.seen.Messages[0].Role)
				assert.Equal(t, `{"steps":[]}`, res.Content)
				assert.Equal(t, int64(12), res.Usage.InputTokens)
				assert.False(t, res.HasToolCalls())
			},
		},
		{
			name: "tool calls get generated ids",
			req: llm.Request{
				Model: "qwen3",
				Messages: []llm.Message{
					llm.User("frigo ?"),
					llm.Assistant("", llm.ToolCall{ID: "call_1", Name: "check_fridge", Args: map[string]any{}}),
					llm.ToolResult("call_1", "check_fridge", "oeufs"),
					llm.ToolResult("call_2", "", "dropped"),
				},
				Tools: []llm.ToolSpec{{Name: "check_fridge", Description: "frigo"}},
			},
			status: http.StatusOK,
			body:   `{"message":{"role":"assistant","content":"","tool_calls":[{"function":{"name":"get_recipe","arguments":{"dish_name":"omelette"}}}]}}`,
			check: func(t *testing.T, d *mockDoer, res llm.Response) {
				assert.Equal(t, "qwen3", d.seen.Model)
				require.Len(t, d.seen.Tools, 1)
				assert.Equal(t, "function", d.seen.Tools[0].Type)
				require.Len(t, d.seen.Messages, 3)
				assert.Equal(t, "check_fridge", d.seen.Messages[2].Name)
				require.Len(t, res.ToolCalls, 1)
				assert.Equal(t, "get_recipe", res.ToolCalls[0].Name)
				assert.Equal(t, "omelette", res.ToolCalls[0].Args["dish_name"])
				assert.Contains(t, res.ToolCalls[0].ID, "call_")
			},
		},
		{
			name:    "non 200 status",
			req:     llm.Request{Messages: []llm.Message{llm.User("hi")}},
			status:  http.StatusInternalServerError,
			body:    "boom",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := &mockDoer{status: tt.status, body: tt.body}
			c, err := NewClient(ClientOpts{BaseEndpoint: "http://localhost:11434", ModelID: "llama3.1", HTTPClient: d})
			require.NoError(t, err)

			res, err := c.Complete(context.Background(), tt.req)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			tt.check(t, d, res)
		})
	}
}
