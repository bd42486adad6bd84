// Package claude implements llm.Client with the Anthropic Messages API.
package claude

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"chefbot/llm"
)

const defaultMaxTokens = 1024

type messagesAPI interface {
	New(ctx context.Context, body anthropic.MessageNewParams, opts ...option.RequestOption) (*anthropic.Message, error)
}

type Client struct {
	messages  messagesAPI
	model     anthropic.Model
	maxTokens int64
}

type ClientConfig struct {
	APIKey    string
	Model     string
	MaxTokens int
}

func NewClient(cfg ClientConfig) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("ANTHROPIC_API_KEY environment variable is not set")
	}
	inner := anthropic.NewClient(option.WithAPIKey(cfg.APIKey))
	return newClient(&inner.Messages, cfg), nil
}

func newClient(api messagesAPI, cfg ClientConfig) *Client {
	model := anthropic.Model(cfg.Model)
	if model == "" {
		model = anthropic.ModelClaudeSonnet4_20250514
	}
	maxTokens := int64(cfg.MaxTokens)
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}
	return &Client{messages: api, model: model, maxTokens: maxTokens}
}

// Complete issues one Messages.New call. JSON mode is requested through the
// system prompt since the API has no response format switch.
func (c *Client) Complete(ctx context.Context, req llm.Request) (llm.Response, error) {
	model := c.model
	if req.Model != "" {
		model = anthropic.Model(req.Model)
	}
	maxTokens := c.maxTokens
	if req.MaxTokens > 0 {
		maxTokens = int64(req.MaxTokens)
	}

	params := anthropic.MessageNewParams{
		Model:       model,
		MaxTokens:   maxTokens,
		Messages:    buildMessages(req.Messages),
		Temperature: anthropic.Float(req.Temperature),
	}

	system := llm.SystemText(req.Messages)
	if req.JSONMode {
		system = strings.TrimSpace(system + "\n\n" + llm.JSONInstruction)
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}

	for _, t := range req.Tools {
		params.Tools = append(params.Tools, toolParam(t))
	}

	resp, err := c.messages.New(ctx, params)
	if err != nil {
		return llm.Response{}, fmt.Errorf("API call failed: %w", err)
	}

	out := llm.Response{
		StopReason: string(resp.StopReason),
		Usage:      llm.Usage{InputTokens: resp.Usage.InputTokens, OutputTokens: resp.Usage.OutputTokens},
	}
	var text strings.Builder
	for _, block := range resp.Content {
		switch variant := block.AsAny().(type) {
		case anthropic.TextBlock:
			text.WriteString(variant.Text)
		case anthropic.ToolUseBlock:
			args := map[string]any{}
			if len(variant.Input) > 0 {
				if err := json.Unmarshal(variant.Input, &args); err != nil {
					args = map[string]any{}
				}
			}
			out.ToolCalls = append(out.ToolCalls, llm.ToolCall{ID: variant.ID, Name: variant.Name, Args: args})
		}
	}
	out.Content = text.String()
	return out, nil
}

// buildMessages maps the conversation onto user/assistant turns. Consecutive
// tool results are grouped into one user turn.
func buildMessages(msgs []llm.Message) []anthropic.MessageParam {
	var out []anthropic.MessageParam
	var pending []anthropic.ContentBlockParamUnion

	flush := func() {
		if len(pending) > 0 {
			out = append(out, anthropic.NewUserMessage(pending...))
			pending = nil
		}
	}

	for _, m := range msgs {
		switch m.Role {
		case llm.RoleSystem:
			continue
		case llm.RoleTool:
			pending = append(pending, anthropic.NewToolResultBlock(m.ToolCallID, m.Content, false))
		case llm.RoleAssistant:
			flush()
			var blocks []anthropic.ContentBlockParamUnion
			if strings.TrimSpace(m.Content) != "" {
				blocks = append(blocks, anthropic.NewTextBlock(m.Content))
			}
			for _, tc := range m.ToolCalls {
				input := tc.Args
				if input == nil {
					input = map[string]any{}
				}
				blocks = append(blocks, anthropic.NewToolUseBlock(tc.ID, input, tc.Name))
			}
			out = append(out, anthropic.NewAssistantMessage(blocks...))
		default:
			flush()
			out = append(out, anthropic.NewUserMessage(anthropic.NewTextBlock(m.Content)))
		}
	}
	flush()
	return out
}

func toolParam(t llm.ToolSpec) anthropic.ToolUnionParam {
	schema := anthropic.ToolInputSchemaParam{Properties: map[string]any{}}
	if t.Parameters != nil {
		var decoded struct {
			Properties map[string]any `json:"properties"`
			Required   []string       `json:"required"`
		}
		if b, err := json.Marshal(t.Parameters); err == nil && json.Unmarshal(b, &decoded) == nil {
			if decoded.Properties != nil {
				schema.Properties = decoded.Properties
			}
			schema.Required = decoded.Required
		}
	}
	return anthropic.ToolUnionParam{
		OfTool: &anthropic.ToolParam{
			Name:        t.Name,
			Description: anthropic.String(t.Description),
			InputSchema: schema,
		},
	}
}
