// Package ollama implements llm.Client against a local Ollama /api/chat endpoint.
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/modelcontextprotocol/go-sdk/jsonschema"

	"chefbot"
	"chefbot/llm"
)

type options struct {
	Temperature   float64 `json:"temperature"`
	TopP          float64 `json:"top_p,omitempty"`
	RepeatPenalty float64 `json:"repeat_penalty,omitempty"`
	NumCtx        int     `json:"num_ctx,omitempty"`
	NumPredict    int     `json:"num_predict,omitempty"`
}

type Client struct {
	endpoint   string
	model      string
	httpClient chefbot.HTTPClient
}

type ClientOpts struct {
	BaseEndpoint string
	ModelID      string
	HTTPClient   chefbot.HTTPClient
}

func NewClient(opts ClientOpts) (*Client, error) {
	if strings.TrimSpace(opts.BaseEndpoint) == "" {
		return nil, fmt.Errorf("missing ollama endpoint")
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}
	return &Client{
		model:      opts.ModelID,
		httpClient: opts.HTTPClient,
		endpoint:   strings.TrimRight(opts.BaseEndpoint, "/") + "/api/chat",
	}, nil
}

type wireToolCall struct {
	Function struct {
		Name      string         `json:"name"`
		Arguments map[string]any `json:"arguments"`
	} `json:"function"`
}

type wireMessage struct {
	Role      string         `json:"role"`
	Content   string         `json:"content"`
	Name      string         `json:"name,omitempty"`
	ToolCalls []wireToolCall `json:"tool_calls,omitempty"`
}

type wireFunction struct {
	Name        string             `json:"name"`
	Description string             `json:"description"`
	Parameters  *jsonschema.Schema `json:"parameters"`
}

type wireTool struct {
	Type     string       `json:"type"`
	Function wireFunction `json:"function"`
}

type wireRequest struct {
	Model    string        `json:"model"`
	Messages []wireMessage `json:"messages"`
	Tools    []wireTool    `json:"tools,omitempty"`
	Format   string        `json:"format,omitempty"`
	Stream   bool          `json:"stream"`
	Options  options       `json:"options"`
}

type wireResponse struct {
	Message         wireMessage `json:"message"`
	DoneReason      string      `json:"done_reason"`
	PromptEvalCount int64       `json:"prompt_eval_count"`
	EvalCount       int64       `json:"eval_count"`
}

// Complete sends one non-streaming chat request. Ollama does not return call
// IDs, so each tool call gets a generated one.
func (c *Client) Complete(ctx context.Context, req llm.Request) (llm.Response, error) {
	model := req.Model
	if model == "" {
		model = c.model
	}

	body := wireRequest{
		Model:    model,
		Messages: buildMessages(req.Messages),
		Stream:   false,
		Options: options{
			Temperature:   req.Temperature,
			TopP:          0.9,
			RepeatPenalty: 1.05,
			NumCtx:        16384,
			NumPredict:    req.MaxTokens,
		},
	}
	if req.JSONMode {
		body.Format = "json"
	}
	for _, t := range req.Tools {
		body.Tools = append(body.Tools, wireTool{
			Type:     "function",
			Function: wireFunction{Name: t.Name, Description: t.Description, Parameters: t.Parameters},
		})
	}

	reqBytes, err := json.Marshal(body)
	if err != nil {
		return llm.Response{}, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewBuffer(reqBytes))
	if err != nil {
		return llm.Response{}, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return llm.Response{}, err
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return llm.Response{}, fmt.Errorf("ollama: %s: %s", resp.Status, string(respBody))
	}

	var wr wireResponse
	if err := json.Unmarshal(respBody, &wr); err != nil {
		slog.Warn("LLM_CLIENT: decode failed, returning raw", "err", err, "body", string(respBody))
		return llm.Response{Content: string(respBody)}, nil
	}

	out := llm.Response{
		Content:    wr.Message.Content,
		StopReason: wr.DoneReason,
		Usage:      llm.Usage{InputTokens: wr.PromptEvalCount, OutputTokens: wr.EvalCount},
	}
	for _, call := range wr.Message.ToolCalls {
		args := call.Function.Arguments
		if args == nil {
			args = map[string]any{}
		}
		out.ToolCalls = append(out.ToolCalls, llm.ToolCall{
			ID:   "call_" + uuid.NewString(),
			Name: call.Function.Name,
			Args: args,
		})
	}
	return out, nil
}

// buildMessages converts the conversation into Ollama chat messages.
// Tool results are sent as role=tool with the function name; results
// without a name are dropped.
func buildMessages(msgs []llm.Message) []wireMessage {
	out := make([]wireMessage, 0, len(msgs))
	for _, m := range msgs {
		switch m.Role {
		case llm.RoleSystem, llm.RoleUser:
			out = append(out, wireMessage{Role: string(m.Role), Content: m.Content})

		case llm.RoleAssistant:
			wm := wireMessage{Role: "assistant", Content: m.Content}
			for _, tc := range m.ToolCalls {
				var w wireToolCall
				w.Function.Name = tc.Name
				w.Function.Arguments = tc.Args
				wm.ToolCalls = append(wm.ToolCalls, w)
			}
			out = append(out, wm)

		case llm.RoleTool:
			if strings.TrimSpace(m.Name) == "" {
				slog.Warn("ollama: dropping tool message without name", "tool_call_id", m.ToolCallID)
				continue
			}
			out = append(out, wireMessage{Role: "tool", Name: m.Name, Content: m.Content})

		default:
			slog.Warn("ollama: unknown role, coercing to user", "role", m.Role)
			out = append(out, wireMessage{Role: "user", Content: m.Content})
		}
	}
	return out
}
