package pipeline

import (
	"context"
	"fmt"

	"chefbot"
	"chefbot/llm"
)

// Asker answers single cooking questions with the ChefBot persona.
type Asker struct {
	client llm.Client
	model  string
}

func NewAsker(client llm.Client, model string) *Asker {
	return &Asker{client: client, model: model}
}

func (a *Asker) Ask(ctx context.Context, question string, temperature float64) (string, error) {
	res, err := a.client.Complete(chefbot.WithStage(ctx, "ask"), llm.Request{
		Model:       a.model,
		Messages:    []llm.Message{llm.System(ChefPersona), llm.User(question)},
		Temperature: temperature,
	})
	if err != nil {
		return "", fmt.Errorf("ask: %w", err)
	}
	return res.Content, nil
}
