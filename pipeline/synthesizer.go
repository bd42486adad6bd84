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

// Synthesizer writes the final menu from all step results.
type Synthesizer struct {
	client  llm.Client
	prompts PromptSet
	cfg     Config
	tracer  trace.Tracer
}

func NewSynthesizer(client llm.Client, prompts PromptSet, cfg Config, tracer trace.Tracer) *Synthesizer {
	return &Synthesizer{client: client, prompts: prompts, cfg: cfg, tracer: tracer}
}

// Synthesize compiles all step results into the final menu. The model text is
// returned without validation.
func (s *Synthesizer) Synthesize(ctx context.Context, constraints string, results []chefbot.StepResult) (string, error) {
	ctx, span := s.tracer.Start(chefbot.WithStage(ctx, "synthesizer"), "Synthesizer.Synthesize",
		trace.WithAttributes(attribute.Int("chefbot.results", len(results))))
	defer span.End()

	res, err := s.client.Complete(ctx, llm.Request{
		Model:       s.cfg.Model,
		Messages:    s.prompts.messages(s.prompts.SynthesizerSystem, fmt.Sprintf(s.prompts.SynthesizerUser, constraints, RenderResults(results))),
		Temperature: s.prompts.SynthesizerTemperature,
		MaxTokens:   s.cfg.MaxTokens,
	})
	if err != nil {
		span.SetStatus(codes.Error, "model call failed")
		span.RecordError(err)
		return "", fmt.Errorf("synthesis model call: %w", err)
	}

	slog.Info("SYNTHESIZER: Menu compiled", "results", len(results), "length", len(res.Content))
	return res.Content, nil
}

// RenderResults formats each result as "Phase n (step) : output", separated by blank lines.
func RenderResults(results []chefbot.StepResult) string {
	blocks := make([]string, 0, len(results))
	for _, r := range results {
		blocks = append(blocks, fmt.Sprintf("Phase %d (%s) : %s", r.Index+1, r.Step, r.Output))
	}
	return strings.Join(blocks, "\n\n")
}
