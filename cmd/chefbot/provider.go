package main

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"

	"chefbot"
	"chefbot/llm"
	"chefbot/llm/bedrock"
	"chefbot/llm/claude"
	"chefbot/llm/groq"
	"chefbot/llm/mock"
	"chefbot/llm/ollama"
)

func newLLMClient(ctx context.Context, mc chefbot.ModelConfig, pc chefbot.ProviderConfig) (llm.Client, error) {
	hc := httpClient(pc)

	switch mc.Provider {
	case "groq":
		return groq.NewClient(groq.ClientOpts{
			BaseURL:    pc.GroqBaseURL,
			APIKey:     pc.GroqAPIKey,
			ModelID:    mc.ModelID,
			HTTPClient: hc,
		})
	case "ollama":
		return ollama.NewClient(ollama.ClientOpts{
			BaseEndpoint: pc.BaseOllamaEndpoint,
			ModelID:      mc.ModelID,
			HTTPClient:   hc,
		})
	case "bedrock":
		opts := []func(*config.LoadOptions) error{config.WithRetryMaxAttempts(5)}
		if pc.AWSRegion != "" {
			opts = append(opts, config.WithRegion(pc.AWSRegion))
		}
		awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
		if err != nil {
			return nil, fmt.Errorf("failed to load AWS config: %w", err)
		}
		return bedrock.NewLLMClient(bedrockruntime.NewFromConfig(awsCfg), bedrock.LLMOptions{
			ModelID:   mc.ModelID,
			MaxTokens: mc.MaxTokens,
			TopP:      0.9,
		}), nil
	case "anthropic":
		return claude.NewClient(claude.ClientConfig{
			APIKey:    pc.AnthropicAPIKey,
			Model:     mc.ModelID,
			MaxTokens: int(mc.MaxTokens),
		})
	case "mock":
		return mock.NewChef(), nil
	default:
		return nil, fmt.Errorf("unknown provider %q (want one of groq, ollama, bedrock, anthropic, mock)", mc.Provider)
	}
}
