// Package bedrock implements llm.Client with the AWS Bedrock Converse API.
package bedrock

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/document"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"

	"chefbot/llm"
)

const (
	// defaultModelID is an inference profile ID, not the foundation model's ID.
	// See https://docs.aws.amazon.com/bedrock/latest/userguide/inference-profiles.html.
	defaultModelID = "us.anthropic.claude-3-7-sonnet-20250219-v1:0"

	// 1k is a good balance for cost + safety. Raise it when expecting longer menus.
	defaultMaxTokens = 1024

	defaultTopP = 0.9
)

type bedrockRuntimeClient interface {
	Converse(context.Context, *bedrockruntime.ConverseInput, ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error)
}

type LLMOptions struct {
	ModelID   string
	MaxTokens int32
	TopP      float32
}

type LLMClient struct {
	brc  bedrockRuntimeClient
	opts LLMOptions
}

func NewLLMClient(brc bedrockRuntimeClient, opts LLMOptions) *LLMClient {
	if opts.ModelID == "" {
		opts.ModelID = defaultModelID
	}
	if opts.MaxTokens == 0 {
		opts.MaxTokens = defaultMaxTokens
	}
	if opts.TopP == 0 {
		opts.TopP = defaultTopP
	}
	return &LLMClient{
		brc:  brc,
		opts: opts,
	}
}

// Complete issues one Converse call. Converse has no JSON mode, so JSON
// requests get an extra system instruction and the JSON text block is preferred.
func (c *LLMClient) Complete(ctx context.Context, req llm.Request) (llm.Response, error) {
	modelID := req.Model
	if modelID == "" {
		modelID = c.opts.ModelID
	}
	maxTokens := c.opts.MaxTokens
	if req.MaxTokens > 0 {
		maxTokens = int32(req.MaxTokens)
	}

	var sys []types.SystemContentBlock
	if text := llm.SystemText(req.Messages); text != "" {
		sys = append(sys, &types.SystemContentBlockMemberText{Value: text})
	}
	if req.JSONMode {
		sys = append(sys, &types.SystemContentBlockMemberText{Value: llm.JSONInstruction})
	}

	in := &bedrockruntime.ConverseInput{
		ModelId:  aws.String(modelID),
		System:   sys,
		Messages: buildMessages(req.Messages),
		InferenceConfig: &types.InferenceConfiguration{
			MaxTokens:   aws.Int32(maxTokens),
			Temperature: aws.Float32(float32(req.Temperature)),
			TopP:        aws.Float32(c.opts.TopP),
		},
	}

	if len(req.Tools) > 0 {
		var specs []types.Tool
		for _, t := range req.Tools {
			spec, err := buildToolSpec(t)
			if err != nil {
				slog.Error("LLM_CLIENT: Failed to build tool spec", "error", err)
				continue
			}
			specs = append(specs, &types.ToolMemberToolSpec{Value: spec})
		}
		in.ToolConfig = &types.ToolConfiguration{Tools: specs, ToolChoice: &types.ToolChoiceMemberAuto{}}
	}

	out, err := c.brc.Converse(ctx, in)
	if err != nil {
		slog.Error("LLM_CLIENT: Bedrock invoke failed", "error", err, "model", modelID)
		return llm.Response{}, err
	}

	res := llm.Response{StopReason: string(out.StopReason)}
	if out.Usage != nil {
		res.Usage = llm.Usage{
			InputTokens:  int64(aws.ToInt32(out.Usage.InputTokens)),
			OutputTokens: int64(aws.ToInt32(out.Usage.OutputTokens)),
		}
	}

	switch out.StopReason {
	case types.StopReasonToolUse:
		res.ToolCalls = toolCallsFromOutput(out)
		res.Content = textFromOutput(out)
		return res, nil

	case types.StopReasonMaxTokens:
		return llm.Response{}, fmt.Errorf("model hit MaxTokens limit; consider increasing MAX_TOKENS")

	case types.StopReasonGuardrailIntervened, types.StopReasonContentFiltered:
		return llm.Response{}, fmt.Errorf("model response blocked by Bedrock safety filters")

	default:
		res.Content = textFromOutput(out)
		res.ToolCalls = toolCallsFromOutput(out)
		return res, nil
	}
}

// buildMessages converts the conversation into Converse messages. System
// messages are sent separately; consecutive tool results are merged into a
// single user turn, as Converse requires strictly alternating roles.
func buildMessages(msgs []llm.Message) []types.Message {
	var out []types.Message
	for _, m := range msgs {
		switch m.Role {
		case llm.RoleSystem:
			continue

		case llm.RoleUser:
			out = append(out, types.Message{
				Role:    types.ConversationRoleUser,
				Content: []types.ContentBlock{&types.ContentBlockMemberText{Value: m.Content}},
			})

		case llm.RoleAssistant:
			msg := types.Message{Role: types.ConversationRoleAssistant}
			if strings.TrimSpace(m.Content) != "" {
				msg.Content = append(msg.Content, &types.ContentBlockMemberText{Value: m.Content})
			}
			for _, tc := range m.ToolCalls {
				input := tc.Args
				if input == nil {
					input = map[string]any{}
				}
				msg.Content = append(msg.Content, &types.ContentBlockMemberToolUse{Value: types.ToolUseBlock{
					ToolUseId: aws.String(tc.ID),
					Name:      aws.String(tc.Name),
					Input:     document.NewLazyDocument(input),
				}})
			}
			out = append(out, msg)

		case llm.RoleTool:
			block := &types.ContentBlockMemberToolResult{Value: types.ToolResultBlock{
				ToolUseId: aws.String(m.ToolCallID),
				Status:    types.ToolResultStatusSuccess,
				Content: []types.ToolResultContentBlock{
					&types.ToolResultContentBlockMemberText{Value: m.Content},
				},
			}}
			if n := len(out); n > 0 && out[n-1].Role == types.ConversationRoleUser && isToolResultTurn(out[n-1]) {
				out[n-1].Content = append(out[n-1].Content, block)
				continue
			}
			out = append(out, types.Message{Role: types.ConversationRoleUser, Content: []types.ContentBlock{block}})
		}
	}
	return out
}

func isToolResultTurn(m types.Message) bool {
	for _, cb := range m.Content {
		if _, ok := cb.(*types.ContentBlockMemberToolResult); !ok {
			return false
		}
	}
	return len(m.Content) > 0
}

// buildToolSpec constructs a ToolSpecification for a tool.
func buildToolSpec(t llm.ToolSpec) (types.ToolSpecification, error) {
	// Round-trip through JSON so the schema's own MarshalJSON is honored by the document encoder.
	schemaJSON, err := json.Marshal(t.Parameters)
	if err != nil {
		return types.ToolSpecification{}, fmt.Errorf("failed to marshal tool schema for %s: %w", t.Name, err)
	}

	schemaMap := map[string]any{}
	if err := json.Unmarshal(schemaJSON, &schemaMap); err != nil || len(schemaMap) == 0 {
		schemaMap = map[string]any{"type": "object", "properties": map[string]any{}}
	}

	return types.ToolSpecification{
		Name:        aws.String(t.Name),
		Description: aws.String(t.Description),
		InputSchema: &types.ToolInputSchemaMemberJson{
			Value: document.NewLazyDocument(schemaMap),
		},
	}, nil
}

// textFromOutput returns assistant text:
// 1) If any text block looks like a single JSON object, return the last such block.
// 2) Else join all text blocks with '\n'.
func textFromOutput(out *bedrockruntime.ConverseOutput) string {
	if out == nil || out.Output == nil {
		return ""
	}

	msg, ok := out.Output.(*types.ConverseOutputMemberMessage)
	if !ok || msg == nil || len(msg.Value.Content) == 0 {
		return ""
	}

	texts := make([]string, 0, len(msg.Value.Content))
	for _, cb := range msg.Value.Content {
		if t, ok := cb.(*types.ContentBlockMemberText); ok && t != nil && t.Value != "" {
			texts = append(texts, t.Value)
		}
	}

	for i := len(texts) - 1; i >= 0; i-- {
		s := strings.TrimSpace(texts[i])
		if len(s) > 1 && s[0] == '{' && s[len(s)-1] == '}' {
			return s
		}
	}

	return strings.Join(texts, "\n")
}

// toolCallsFromOutput extracts tool uses emitted by the assistant.
func toolCallsFromOutput(out *bedrockruntime.ConverseOutput) []llm.ToolCall {
	var calls []llm.ToolCall

	msg, ok := out.Output.(*types.ConverseOutputMemberMessage)
	if !ok || msg == nil {
		return calls
	}

	for _, cb := range msg.Value.Content {
		tu, ok := cb.(*types.ContentBlockMemberToolUse)
		if !ok || tu == nil {
			continue
		}

		input := map[string]any{}
		if tu.Value.Input != nil {
			// Lazy documents can fill the map and still report an error.
			if err := tu.Value.Input.UnmarshalSmithyDocument(&input); err != nil {
				slog.Warn("LLM_CLIENT: Tool input decode reported an error", "tool", aws.ToString(tu.Value.Name), "error", err, "decoded_keys", len(input))
				if input == nil {
					input = map[string]any{}
				}
			}
		}

		calls = append(calls, llm.ToolCall{
			ID:   aws.ToString(tu.Value.ToolUseId),
			Name: aws.ToString(tu.Value.Name),
			Args: normalizeInput(input).(map[string]any),
		})
	}

	return calls
}

// number matches the document.Number values produced by the smithy decoder.
type number interface {
	Int64() (int64, error)
	Float64() (float64, error)
}

// normalizeInput recursively coerces numbers to int when whole, float64 otherwise,
// and decodes stringified JSON arrays and objects.
func normalizeInput(val any) any {
	switch v := val.(type) {
	case number:
		if i, err := v.Int64(); err == nil {
			return int(i)
		}
		f, _ := v.Float64()
		return normalizeInput(f)

	case float64:
		if v == float64(int(v)) {
			return int(v)
		}
		return v

	case string:
		// Some models send array or object arguments as stringified JSON.
		t := strings.TrimSpace(v)
		if len(t) > 1 && (t[0] == '[' || t[0] == '{') {
			var decoded any
			if json.Unmarshal([]byte(t), &decoded) == nil {
				return normalizeInput(decoded)
			}
		}
		return v

	case []any:
		for i := range v {
			v[i] = normalizeInput(v[i])
		}
		return v

	case map[string]any:
		for key, val := range v {
			v[key] = normalizeInput(val)
		}
		return v

	default:
		return v
	}
}
