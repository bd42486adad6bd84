package pipeline

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"chefbot"
	"chefbot/llm"
)

type planner interface {
	Plan(ctx context.Context, constraints string) (chefbot.Plan, error)
}

type stepExecutor interface {
	Execute(ctx context.Context, step string, index int, prior []chefbot.StepResult) (chefbot.StepResult, error)
}

type synthesizer interface {
	Synthesize(ctx context.Context, constraints string, results []chefbot.StepResult) (string, error)
}

// Orchestrator sequences planning, step execution and synthesis, and is the
// only place where pipeline errors become a Result.
type Orchestrator struct {
	planner     planner
	executor    stepExecutor
	synthesizer synthesizer
	tags        []string
	tracer      trace.Tracer

	runs     metric.Int64Counter
	failures metric.Int64Counter
	steps    metric.Int64Counter
	duration metric.Float64Histogram
}

// New wires the three stages of prompts over one model client.
func New(client llm.Client, prompts PromptSet, cfg Config, tracer trace.Tracer, meter metric.Meter) *Orchestrator {
	return NewOrchestrator(
		NewPlanner(client, prompts, cfg, tracer),
		NewExecutor(client, prompts, cfg, tracer),
		NewSynthesizer(client, prompts, cfg, tracer),
		[]string{"chefbot", prompts.Name},
		tracer,
		meter,
	)
}

func NewOrchestrator(p planner, e stepExecutor, s synthesizer, tags []string, tracer trace.Tracer, meter metric.Meter) *Orchestrator {
	o := &Orchestrator{planner: p, executor: e, synthesizer: s, tags: tags, tracer: tracer}
	o.runs, _ = meter.Int64Counter("pipeline_runs_total",
		metric.WithDescription("Total number of menu pipeline runs started"))
	o.failures, _ = meter.Int64Counter("pipeline_runs_failed_total",
		metric.WithDescription("Total number of menu pipeline runs that returned an error result"))
	o.steps, _ = meter.Int64Counter("pipeline_steps_total",
		metric.WithDescription("Total number of executed plan steps"))
	o.duration, _ = meter.Float64Histogram("pipeline_duration_seconds",
		metric.WithDescription("Duration of a full menu pipeline run in seconds"))
	return o
}

// Run never returns a partial menu: any failure yields an error Result.
func (o *Orchestrator) Run(ctx context.Context, constraints string) chefbot.Result {
	ctx, span := o.tracer.Start(ctx, "Orchestrator.Run", trace.WithAttributes(
		attribute.StringSlice("chefbot.tags", o.tags),
		attribute.String("chefbot.constraints", constraints),
	))
	defer span.End()

	start := time.Now()
	o.runs.Add(ctx, 1)
	slog.Info("ORCHESTRATOR: Starting run", "constraints", constraints, "tags", o.tags)

	menu, err := o.run(ctx, constraints)
	o.duration.Record(ctx, time.Since(start).Seconds())
	if err != nil {
		o.failures.Add(ctx, 1)
		span.SetStatus(codes.Error, err.Error())
		span.RecordError(err)
		slog.Error("RESULT: Pipeline failed", "error", err)
		return chefbot.Failure(err.Error())
	}

	span.SetAttributes(attribute.Int("chefbot.menu_length", len(menu)))
	slog.Info("RESULT: Menu generated", "length", len(menu), "duration_ms", time.Since(start).Milliseconds())
	return chefbot.Success(menu)
}

func (o *Orchestrator) run(ctx context.Context, constraints string) (string, error) {
	plan, err := o.planner.Plan(ctx, constraints)
	if err != nil {
		return "", err
	}

	results := make([]chefbot.StepResult, 0, len(plan.Steps))
	for i, step := range plan.Steps {
		// Each step sees only the results produced before it.
		res, err := o.executor.Execute(ctx, step, i, results[:len(results):len(results)])
		if err != nil {
			return "", err
		}
		o.steps.Add(ctx, 1)
		results = append(results, res)
	}

	return o.synthesizer.Synthesize(ctx, constraints, results)
}
