package claude

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/modelcontextprotocol/go-sdk/jsonschema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chefbot/llm"
)

type mockMessages struct {
	raw    string
	err    error
	params anthropic.MessageNewParams
}

func (m *mockMessages) New(ctx context.Context, body anthropic.MessageNewParams, opts ...option.RequestOption) (*anthropic.Message, error) {
	m.params = body
	if m.err != nil {
		return nil, m.err
	}
	var msg anthropic.Message
	if err := json.Unmarshal([]byte(m.raw), &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

func TestNewClient(t *testing.T) {
	_, err := NewClient(ClientConfig{})
	assert.ErrorContains(t, err, "ANTHROPIC_API_KEY")

	c := newClient(&mockMessages{}, ClientConfig{})
	assert.Equal(t, anthropic.ModelClaudeSonnet4_20250514, c.model)
	assert.Equal(t, int64(defaultMaxTokens), c.maxTokens)
}

func TestClient_Complete_Text(t *testing.T) {
	m := &mockMessages{raw: `{
		"id": "msg_1", "type": "message", "role": "assistant", "model": "claude-sonnet-4-20250514",
		"content": [{"type": "text", "text": "{\"pertinence\": 0.8}"}],
		"stop_reason": "end_turn",
		"usage": {"input_tokens": 42, "output_tokens": 7}
	}`}
	c := newClient(m, ClientConfig{Model: "claude-sonnet-4-20250514"})

	res, err := c.Complete(context.Background(), llm.Request{
		Messages:    []llm.Message{llm.System("Tu es un juge."), llm.User("note")},
		Temperature: 0.1,
		JSONMode:    true,
	})
	require.NoError(t, err)

	assert.Equal(t, `{"pertinence": 0.8}`, res.Content)
	assert.Equal(t, "end_turn", res.StopReason)
	assert.Equal(t, int64(42), res.Usage.InputTokens)
	assert.False(t, res.HasToolCalls())

	require.Len(t, m.params.System, 1)
	assert.Contains(t, m.params.System[0].Text, "Tu es un juge.")
	assert.Contains(t, m.params.System[0].Text, llm.JSONInstruction)
	assert.Len(t, m.params.Messages, 1)
	assert.Equal(t, 0.1, m.params.Temperature.Value)
}

func TestClient_Complete_ToolUse(t *testing.T) {
	m := &mockMessages{raw: `{
		"id": "msg_2", "type": "message", "role": "assistant", "model": "claude-sonnet-4-20250514",
		"content": [
			{"type": "text", "text": "Je regarde le frigo."},
			{"type": "tool_use", "id": "toolu_1", "name": "get_recipe", "input": {"dish_name": "omelette"}}
		],
		"stop_reason": "tool_use",
		"usage": {"input_tokens": 10, "output_tokens": 5}
	}`}
	c := newClient(m, ClientConfig{})

	res, err := c.Complete(context.Background(), llm.Request{
		Messages: []llm.Message{
			llm.User("recette ?"),
			llm.Assistant("", llm.ToolCall{ID: "toolu_0", Name: "check_fridge"}),
			llm.ToolResult("toolu_0", "check_fridge", "oeufs"),
		},
		Tools: []llm.ToolSpec{{
			Name:        "get_recipe",
			Description: "Retourne une recette pour un plat",
			Parameters: &jsonschema.Schema{
				Type:       "object",
				Properties: map[string]*jsonschema.Schema{"dish_name": {Type: "string"}},
				Required:   []string{"dish_name"},
			},
		}},
	})
	require.NoError(t, err)

	assert.Equal(t, "Je regarde le frigo.", res.Content)
	require.Len(t, res.ToolCalls, 1)
	assert.Equal(t, llm.ToolCall{ID: "toolu_1", Name: "get_recipe", Args: map[string]any{"dish_name": "omelette"}}, res.ToolCalls[0])

	assert.Len(t, m.params.Messages, 3)
	require.Len(t, m.params.Tools, 1)
	require.NotNil(t, m.params.Tools[0].OfTool)
	assert.Equal(t, "get_recipe", m.params.Tools[0].OfTool.Name)
	assert.Equal(t, []string{"dish_name"}, m.params.Tools[0].OfTool.InputSchema.Required)
}

func TestClient_Complete_Error(t *testing.T) {
	c := newClient(&mockMessages{err: assert.AnError}, ClientConfig{})
	_, err := c.Complete(context.Background(), llm.Request{Messages: []llm.Message{llm.User("hi")}})
	require.Error(t, err)
	assert.ErrorIs(t, err, assert.AnError)
}

func TestBuildMessages_GroupsToolResults(t *testing.T) {
	msgs := buildMessages([]llm.Message{
		llm.System("ignored"),
		llm.User("q"),
		llm.Assistant("", llm.ToolCall{ID: "a", Name: "x"}, llm.ToolCall{ID: "b", Name: "y"}),
		llm.ToolResult("a", "x", "1"),
		llm.ToolResult("b", "y", "2"),
		llm.User("suite"),
	})
	require.Len(t, msgs, 4)
	assert.Equal(t, anthropic.MessageParamRoleUser, msgs[0].Role)
	assert.Equal(t, anthropic.MessageParamRoleAssistant, msgs[1].Role)
	assert.Len(t, msgs[2].Content, 2)
	assert.Equal(t, anthropic.MessageParamRoleUser, msgs[3].Role)
}
