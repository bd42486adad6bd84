// Package mock provides model clients that never touch the network: a scripted
// client for tests and a deterministic chef for offline runs.
package mock

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"

	"chefbot/llm"
)

var ErrScriptExhausted = errors.New("mock: no scripted response left")

// Step is one scripted reply.
type Step struct {
	Response llm.Response
	Err      error
}

// Text scripts a plain text answer.
func Text(content string) Step { return Step{Response: llm.Response{Content: content}} }

// Fail scripts a model error.
func Fail(err error) Step { return Step{Err: err} }

// Calls scripts a tool-call response. IDs are generated when empty.
func Calls(calls ...llm.ToolCall) Step {
	for i := range calls {
		if calls[i].ID == "" {
			calls[i].ID = "call_" + uuid.NewString()
		}
		if calls[i].Args == nil {
			calls[i].Args = map[string]any{}
		}
	}
	return Step{Response: llm.Response{ToolCalls: calls, StopReason: "tool_calls"}}
}

// Scripted replays steps in order and records every request it receives.
type Scripted struct {
	mu       sync.Mutex
	steps    []Step
	requests []llm.Request
	repeat   bool
}

func NewScripted(steps ...Step) *Scripted {
	return &Scripted{steps: steps}
}

// Repeating returns a client that answers every call with the same step.
func Repeating(step Step) *Scripted {
	return &Scripted{steps: []Step{step}, repeat: true}
}

func (s *Scripted) Complete(ctx context.Context, req llm.Request) (llm.Response, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.requests = append(s.requests, cloneRequest(req))
	if err := ctx.Err(); err != nil {
		return llm.Response{}, err
	}
	if len(s.steps) == 0 {
		return llm.Response{}, ErrScriptExhausted
	}
	step := s.steps[0]
	if !s.repeat {
		s.steps = s.steps[1:]
	}
	return step.Response, step.Err
}

// Requests returns a copy of the recorded requests.
func (s *Scripted) Requests() []llm.Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]llm.Request, len(s.requests))
	copy(out, s.requests)
	return out
}

func (s *Scripted) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.requests)
}

func cloneRequest(req llm.Request) llm.Request {
	msgs := make([]llm.Message, len(req.Messages))
	copy(msgs, req.Messages)
	req.Messages = msgs
	return req
}

// Chef is a deterministic stand-in for a real model. JSON requests get a
// three-step plan or judge scores, tool requests call the first offered tool
// once and then summarize its result, and anything else gets a short menu.
type Chef struct{}

func NewChef() *Chef { return &Chef{} }

func (c *Chef) Complete(ctx context.Context, req llm.Request) (llm.Response, error) {
	if err := ctx.Err(); err != nil {
		return llm.Response{}, err
	}
	last := lastUser(req.Messages)
	slog.Info("LLM_CLIENT: Mock invoked", "messages_len", len(req.Messages), "tools", len(req.Tools), "json_mode", req.JSONMode)

	switch {
	case req.JSONMode && strings.Contains(llm.SystemText(req.Messages)+last, "pertinence"):
		return jsonResponse(map[string]any{
			"pertinence":  0.8,
			"creativite":  0.6,
			"praticite":   0.7,
			"explanation": "Menu cohérent avec les contraintes, peu original.",
		})

	case req.JSONMode:
		return jsonResponse(map[string]any{
			"steps": []string{
				"Lister les légumes et produits de saison disponibles",
				"Composer les plats de chaque jour en respectant les contraintes",
				"Établir la liste de courses et vérifier le budget",
			},
			"reasoning": "On part des produits, puis des plats, puis du budget.",
		})

	case len(req.Tools) > 0:
		if results := toolResults(req.Messages); len(results) > 0 {
			return llm.Response{Content: "D'après mes outils : " + strings.Join(results, " | "), StopReason: "stop"}, nil
		}
		tool := req.Tools[0]
		args := map[string]any{}
		if tool.Parameters != nil {
			for _, name := range tool.Parameters.Required {
				args[name] = last
			}
		}
		return llm.Response{
			ToolCalls:  []llm.ToolCall{{ID: "call_" + uuid.NewString(), Name: tool.Name, Args: args}},
			StopReason: "tool_calls",
		}, nil

	default:
		return llm.Response{
			Content:    fmt.Sprintf("Proposition de ChefBot pour « %s » : velouté de potiron, gratin de légumes racines, poire pochée.", llm.Preview(last, 80)),
			StopReason: "stop",
		}, nil
	}
}

func jsonResponse(v any) (llm.Response, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return llm.Response{}, err
	}
	return llm.Response{Content: string(b), StopReason: "stop"}, nil
}

func lastUser(msgs []llm.Message) string {
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role == llm.RoleUser {
			return msgs[i].Content
		}
	}
	return ""
}

// toolResults returns the tool outputs that follow the last user message.
func toolResults(msgs []llm.Message) []string {
	var out []string
	for i := len(msgs) - 1; i >= 0; i-- {
		switch msgs[i].Role {
		case llm.RoleUser:
			return out
		case llm.RoleTool:
			out = append([]string{msgs[i].Content}, out...)
		}
	}
	return out
}
