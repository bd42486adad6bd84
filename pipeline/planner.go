package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"chefbot"
	"chefbot/llm"
)

// maxPlanAttempts is the first call plus exactly one retry.
const maxPlanAttempts = 2

var errMissingSteps = errors.New("missing 'steps' key in JSON")

// PlanningError is returned when no attempt produced a usable plan.
type PlanningError struct {
	Attempts int
	// Raw is the response text of the last attempt.
	Raw string
	Err error
}

func (e *PlanningError) Error() string {
	return fmt.Sprintf("planning failed after %d attempts: %v", e.Attempts, e.Err)
}

func (e *PlanningError) Unwrap() error { return e.Err }

// Planner turns constraints into an ordered list of steps.
type Planner struct {
	client  llm.Client
	prompts PromptSet
	model   string
	tracer  trace.Tracer
}

func NewPlanner(client llm.Client, prompts PromptSet, cfg Config, tracer trace.Tracer) *Planner {
	model := cfg.Model
	if prompts.UsePlannerModel && cfg.PlannerModel != "" {
		model = cfg.PlannerModel
	}
	return &Planner{client: client, prompts: prompts, model: model, tracer: tracer}
}

// Plan asks the model for a JSON plan, retrying once on a malformed response.
// Model call failures are not retried.
func (p *Planner) Plan(ctx context.Context, constraints string) (chefbot.Plan, error) {
	ctx, span := p.tracer.Start(chefbot.WithStage(ctx, "planner"), "Planner.Plan",
		trace.WithAttributes(attribute.String("chefbot.constraints", constraints)))
	defer span.End()

	req := llm.Request{
		Model:       p.model,
		Messages:    p.prompts.messages(p.prompts.PlannerSystem, fmt.Sprintf(p.prompts.PlannerUser, constraints)),
		Temperature: p.prompts.PlannerTemperature,
		JSONMode:    true,
	}

	var (
		raw     string
		lastErr error
	)
	for attempt := 1; attempt <= maxPlanAttempts; attempt++ {
		res, err := p.client.Complete(ctx, req)
		if err != nil {
			span.SetStatus(codes.Error, "model call failed")
			span.RecordError(err)
			return chefbot.Plan{}, fmt.Errorf("planner model call: %w", err)
		}
		raw = res.Content

		plan, err := decodePlan(raw)
		if err == nil {
			slog.Info("PLANNER: Plan accepted", "attempt", attempt, "steps", len(plan.Steps))
			span.SetAttributes(attribute.Int("chefbot.plan.steps", len(plan.Steps)), attribute.Int("chefbot.plan.attempts", attempt))
			return plan, nil
		}
		lastErr = err

		if attempt < maxPlanAttempts {
			slog.Warn("PLANNER: Invalid JSON plan, retrying", "attempt", attempt, "error", err)
			span.AddEvent("plan.retry", trace.WithAttributes(attribute.String("error", err.Error())))
		}
	}

	perr := &PlanningError{Attempts: maxPlanAttempts, Raw: raw, Err: lastErr}
	slog.Error("PLANNER: Giving up after retry", "error", lastErr, "raw_preview", llm.Preview(raw, 200))
	span.SetAttributes(attribute.String("chefbot.plan.raw_response", raw))
	span.SetStatus(codes.Error, perr.Error())
	span.RecordError(perr)
	return chefbot.Plan{}, perr
}

// decodePlan enforces the plan contract: a JSON object with a "steps" array of
// strings. An empty array is accepted.
func decodePlan(raw string) (chefbot.Plan, error) {
	var wire struct {
		Steps     json.RawMessage `json:"steps"`
		Reasoning any             `json:"reasoning"`
	}
	if err := json.Unmarshal([]byte(raw), &wire); err != nil {
		return chefbot.Plan{}, fmt.Errorf("invalid JSON: %w", err)
	}
	if len(wire.Steps) == 0 || string(wire.Steps) == "null" {
		return chefbot.Plan{}, errMissingSteps
	}

	var plan chefbot.Plan
	if err := json.Unmarshal(wire.Steps, &plan.Steps); err != nil {
		return chefbot.Plan{}, fmt.Errorf("'steps' is not a list of strings: %w", err)
	}
	if plan.Steps == nil {
		plan.Steps = []string{}
	}
	switch r := wire.Reasoning.(type) {
	case nil:
	case string:
		plan.Reasoning = r
	default:
		b, _ := json.Marshal(r)
		plan.Reasoning = string(b)
	}
	return plan, nil
}
