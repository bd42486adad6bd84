package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"chefbot"
	"chefbot/llm"
)

// StepExecutionError wraps a model failure while executing one step.
type StepExecutionError struct {
	Step  string
	Index int
	Err   error
}

func (e *StepExecutionError) Error() string {
	return fmt.Sprintf("step %d (%s) failed: %v", e.Index+1, e.Step, e.Err)
}

func (e *StepExecutionError) Unwrap() error { return e.Err }

// Executor runs one plan step against the outputs of the earlier steps.
type Executor struct {
	client  llm.Client
	prompts PromptSet
	cfg     Config
	tracer  trace.Tracer
}

func NewExecutor(client llm.Client, prompts PromptSet, cfg Config, tracer trace.Tracer) *Executor {
	return &Executor{client: client, prompts: prompts, cfg: cfg, tracer: tracer}
}

// Execute runs one step with the outputs of all prior steps as context. The
// index is copied into the result as given.
func (e *Executor) Execute(ctx context.Context, step string, index int, prior []chefbot.StepResult) (chefbot.StepResult, error) {
	ctx, span := e.tracer.Start(chefbot.WithStage(ctx, "executor"), "Executor.Execute", trace.WithAttributes(
		attribute.String("chefbot.step", step),
		attribute.Int("chefbot.step.index", index),
		attribute.Int("chefbot.step.prior_results", len(prior)),
	))
	defer span.End()

	history := RenderHistory(prior, e.prompts.NoHistory)
	res, err := e.client.Complete(ctx, llm.Request{
		Model:       e.cfg.Model,
		Messages:    e.prompts.messages(e.prompts.ExecutorSystem, fmt.Sprintf(e.prompts.ExecutorUser, step, history)),
		Temperature: e.prompts.ExecutorTemperature,
		MaxTokens:   e.cfg.MaxTokens,
	})
	if err != nil {
		serr := &StepExecutionError{Step: step, Index: index, Err: err}
		span.SetStatus(codes.Error, serr.Error())
		span.RecordError(err)
		return chefbot.StepResult{}, serr
	}

	slog.Info("EXECUTOR: Step done", "index", index, "step", step, "output_length", len(res.Content))
	return chefbot.StepResult{Step: step, Index: index, Output: res.Content}, nil
}

// RenderHistory formats prior outputs as "- output" lines, or returns
// noHistory when there are none.
func RenderHistory(prior []chefbot.StepResult, noHistory string) string {
	if len(prior) == 0 {
		return noHistory
	}
	lines := make([]string, 0, len(prior))
	for _, r := range prior {
		lines = append(lines, "- "+r.Output)
	}
	return strings.Join(lines, "\n")
}
