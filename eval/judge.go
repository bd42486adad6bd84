package eval

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"chefbot"
	"chefbot/llm"
)

const JudgePrompt = `Tu es un critique gastronomique expert. Évalue le menu suivant sur une échelle de 0.0 à 1.0.

Critères :
1. pertinence : Le menu respecte-t-il strictement les contraintes de l'utilisateur ?
2. creativite : Les plats sont-ils variés et originaux ?
3. praticite : Les recettes sont-elles réalisables par un amateur ?

Réponds UNIQUEMENT en JSON :
{
    "pertinence": 0.0,
    "creativite": 0.0,
    "praticite": 0.0,
    "explanation": "justification courte"
}`

const judgeTemperature = 0.1

type JudgeScores struct {
	Pertinence  float64 `json:"pertinence"`
	Creativite  float64 `json:"creativite"`
	Praticite   float64 `json:"praticite"`
	Explanation string  `json:"explanation"`
}

type Judge struct {
	client llm.Client
	model  string
	tracer trace.Tracer
}

func NewJudge(client llm.Client, model string, tracer trace.Tracer) *Judge {
	return &Judge{client: client, model: model, tracer: tracer}
}

// Score asks the model to grade output against the constraints. Scores
// outside [0,1] are clamped.
func (j *Judge) Score(ctx context.Context, constraints, output string) (JudgeScores, error) {
	ctx, span := j.tracer.Start(chefbot.WithStage(ctx, "judge"), "Judge.Score", trace.WithAttributes(
		attribute.String("judge.model", j.model),
	))
	defer span.End()

	res, err := j.client.Complete(ctx, llm.Request{
		Model: j.model,
		Messages: []llm.Message{
			llm.System(JudgePrompt),
			llm.User(fmt.Sprintf("Contraintes: %s\n\nMenu généré: %s", constraints, output)),
		},
		Temperature: judgeTemperature,
		JSONMode:    true,
	})
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return JudgeScores{}, fmt.Errorf("judge call: %w", err)
	}

	var s JudgeScores
	if err := json.Unmarshal([]byte(res.Content), &s); err != nil {
		span.SetStatus(codes.Error, "invalid judge response")
		span.SetAttributes(attribute.String("judge.raw_response", res.Content))
		return JudgeScores{}, fmt.Errorf("decode judge response: %w", err)
	}
	s.Pertinence, s.Creativite, s.Praticite = clamp(s.Pertinence), clamp(s.Creativite), clamp(s.Praticite)

	slog.Info("EVAL: Judge scored output", "pertinence", s.Pertinence, "creativite", s.Creativite, "praticite", s.Praticite)
	span.SetAttributes(
		attribute.Float64("judge.pertinence", s.Pertinence),
		attribute.Float64("judge.creativite", s.Creativite),
		attribute.Float64("judge.praticite", s.Praticite),
	)
	return s, nil
}

func clamp(v float64) float64 {
	return min(max(v, 0), 1)
}
