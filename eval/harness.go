package eval

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"chefbot"
)

// Score names recorded for every case.
const (
	ScoreSafety     = "safety_rule"
	ScoreInclusion  = "inclusion_rule"
	ScorePertinence = "llm_pertinence"
	ScoreCreativite = "llm_creativite"
	ScorePraticite  = "llm_praticite"
)

type Score struct {
	Name    string  `json:"name"`
	Value   float64 `json:"value"`
	Comment string  `json:"comment,omitempty"`
}

// ItemResult is the outcome of one case. Error is set when the orchestration
// or the judge failed; the scores that could be computed are still present.
type ItemResult struct {
	Case   Case    `json:"case"`
	Output string  `json:"output"`
	Error  string  `json:"error,omitempty"`
	Scores []Score `json:"scores"`
}

// Score returns the named score and whether it was recorded.
func (r ItemResult) Score(name string) (float64, bool) {
	for _, s := range r.Scores {
		if s.Name == name {
			return s.Value, true
		}
	}
	return 0, false
}

// Run is one experiment over a dataset, as saved to the Store.
type Run struct {
	ID         string       `json:"id"`
	Dataset    string       `json:"dataset"`
	Model      string       `json:"model"`
	PromptSet  string       `json:"prompt_set"`
	StartedAt  time.Time    `json:"started_at"`
	FinishedAt time.Time    `json:"finished_at"`
	Items      []ItemResult `json:"items"`
}

type HarnessConfig struct {
	Model       string
	PromptSet   string
	Concurrency int
}

type scorer interface {
	Score(ctx context.Context, constraints, output string) (JudgeScores, error)
}

// Harness runs the menu planner on every case of a dataset and scores the output.
type Harness struct {
	planner chefbot.MenuPlanner
	judge   scorer
	store   Store
	cfg     HarnessConfig
	tracer  trace.Tracer

	cases     metric.Int64Counter
	failures  metric.Int64Counter
	histogram metric.Float64Histogram
}

func NewHarness(planner chefbot.MenuPlanner, judge *Judge, store Store, cfg HarnessConfig, tracer trace.Tracer, meter metric.Meter) *Harness {
	return newHarness(planner, judge, store, cfg, tracer, meter)
}

func newHarness(planner chefbot.MenuPlanner, judge scorer, store Store, cfg HarnessConfig, tracer trace.Tracer, meter metric.Meter) *Harness {
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	h := &Harness{planner: planner, judge: judge, store: store, cfg: cfg, tracer: tracer}
	h.cases, _ = meter.Int64Counter("eval_cases_total",
		metric.WithDescription("Total number of evaluation cases run"))
	h.failures, _ = meter.Int64Counter("eval_cases_failed_total",
		metric.WithDescription("Total number of evaluation cases whose orchestration or judge failed"))
	h.histogram, _ = meter.Float64Histogram("eval_score",
		metric.WithDescription("Evaluation scores by name"))
	return h
}

// Run evaluates every case of the named dataset and saves the run. Results
// follow dataset order regardless of concurrency.
func (h *Harness) Run(ctx context.Context, datasetName string) (Run, error) {
	ds, err := h.store.EnsureDataset(ctx, datasetName)
	if err != nil {
		return Run{}, fmt.Errorf("ensure dataset: %w", err)
	}

	run := Run{
		ID:        fmt.Sprintf("chefbot-eval-%s-%s", time.Now().Format("150405"), uuid.NewString()[:8]),
		Dataset:   ds.Name,
		Model:     h.cfg.Model,
		PromptSet: h.cfg.PromptSet,
		StartedAt: time.Now().UTC(),
		Items:     make([]ItemResult, len(ds.Cases)),
	}

	ctx, span := h.tracer.Start(ctx, "Eval.Run", trace.WithAttributes(
		attribute.String("eval.run_id", run.ID),
		attribute.String("eval.dataset", ds.Name),
		attribute.Int("eval.cases", len(ds.Cases)),
	))
	defer span.End()

	slog.Info("EVAL: Starting experiment", "run_id", run.ID, "dataset", ds.Name, "cases", len(ds.Cases), "concurrency", h.cfg.Concurrency)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(h.cfg.Concurrency)
	for i, c := range ds.Cases {
		if c.ID == "" {
			c.ID = strconv.Itoa(i + 1)
		}
		g.Go(func() error {
			run.Items[i] = h.evaluate(gctx, c)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Run{}, err
	}
	run.FinishedAt = time.Now().UTC()

	if err := h.store.SaveRun(ctx, run); err != nil {
		return run, fmt.Errorf("save run: %w", err)
	}
	slog.Info("EVAL: Experiment saved", "run_id", run.ID, "duration", run.FinishedAt.Sub(run.StartedAt))
	return run, nil
}

func (h *Harness) evaluate(ctx context.Context, c Case) ItemResult {
	ctx, span := h.tracer.Start(ctx, "Eval.Case", trace.WithAttributes(
		attribute.String("eval.case_id", c.ID),
		attribute.String("eval.constraints", c.Input.Constraints),
	))
	defer span.End()
	h.cases.Add(ctx, 1)

	item := ItemResult{Case: c}
	res := h.planner.Run(ctx, c.Input.Constraints)
	if !res.OK() {
		slog.Warn("EVAL: Orchestration failed", "case", c.ID, "error", res.Message)
		h.failures.Add(ctx, 1)
		item.Error = res.Message
		item.Scores = zeroScores()
		return item
	}
	item.Output = res.Payload

	rules := Rules(item.Output, c.Expected)
	item.Scores = []Score{
		{Name: ScoreSafety, Value: rules.Safety},
		{Name: ScoreInclusion, Value: rules.Inclusion},
	}

	judged, err := h.judge.Score(ctx, c.Input.Constraints, item.Output)
	if err != nil {
		slog.Warn("EVAL: Judge failed", "case", c.ID, "error", err)
		h.failures.Add(ctx, 1)
		item.Error = err.Error()
	} else {
		item.Scores = append(item.Scores,
			Score{Name: ScorePertinence, Value: judged.Pertinence, Comment: judged.Explanation},
			Score{Name: ScoreCreativite, Value: judged.Creativite},
			Score{Name: ScorePraticite, Value: judged.Praticite},
		)
	}

	for _, s := range item.Scores {
		h.histogram.Record(ctx, s.Value, metric.WithAttributes(attribute.String("score.name", s.Name)))
		span.SetAttributes(attribute.Float64("eval.score."+s.Name, s.Value))
	}
	slog.Info("EVAL: Case scored", "case", c.ID, "safety", rules.Safety, "inclusion", rules.Inclusion)
	return item
}

func zeroScores() []Score {
	return []Score{
		{Name: ScoreSafety}, {Name: ScoreInclusion},
		{Name: ScorePertinence}, {Name: ScoreCreativite}, {Name: ScorePraticite},
	}
}
