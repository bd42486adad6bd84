package chefbot

import (
	"context"
	"net/http"

	"chefbot/tools"
)

type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

type SlackClient interface {
	PostMessage(ctx context.Context, channel string, message string) error
}

// ToolProvider exposes the tool set offered to the model and resolves calls by exact name.
type ToolProvider interface {
	GetTools() []tools.Tool
	Resolve(name string) tools.Resolution
}

// MenuPlanner runs one full orchestration for a set of constraints.
type MenuPlanner interface {
	Run(ctx context.Context, constraints string) Result
}

// Plan is the planner's contract: an ordered list of sub-tasks.
type Plan struct {
	Steps     []string `json:"steps"`
	Reasoning string   `json:"reasoning"`
}

// StepResult holds the output of one executed step. Index is a display label
// supplied by the caller.
type StepResult struct {
	Step   string `json:"step"`
	Index  int    `json:"index"`
	Output string `json:"output"`
}

type Status string

const (
	StatusSuccess Status = "success"
	StatusError   Status = "error"
)

// Result is the terminal value of an orchestration: either a payload or an error message.
type Result struct {
	Status  Status `json:"status"`
	Payload string `json:"payload,omitempty"`
	Message string `json:"message,omitempty"`
}

func Success(payload string) Result {
	return Result{Status: StatusSuccess, Payload: payload}
}

func Failure(message string) Result {
	return Result{Status: StatusError, Message: message}
}

// OK reports whether the result carries a payload.
func (r Result) OK() bool {
	return r.Status == StatusSuccess
}
