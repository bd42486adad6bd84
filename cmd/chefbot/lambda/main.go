package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/joeshaw/envdecode"

	"chefbot"
	"chefbot/llm"
	"chefbot/llm/bedrock"
	"chefbot/pipeline"
	"chefbot/toolloop"
	"chefbot/tools"
	"chefbot/tools/storage"
)

// Params selects what to run. Mode is "menu" (default), "kitchen" or "brigade".
type Params struct {
	Mode      string `json:"mode"`
	Task      string `json:"task"`
	PromptSet string `json:"prompt_set"`
}

type Results struct {
	Output string `json:"output"`
	Capped bool   `json:"capped,omitempty"`
}

func main() {
	fn := func(ctx context.Context, params Params) (Results, error) {
		var modelConfig chefbot.ModelConfig
		if err := envdecode.Decode(&modelConfig); err != nil {
			return Results{}, fmt.Errorf("failed to decode model config: %w", err)
		}

		var agentConfig chefbot.AgentConfig
		if err := envdecode.Decode(&agentConfig); err != nil {
			return Results{}, fmt.Errorf("failed to decode agent config: %w", err)
		}

		awsCfg, err := config.LoadDefaultConfig(ctx, config.WithRetryMaxAttempts(5))
		if err != nil {
			return Results{}, fmt.Errorf("failed to load AWS config: %w", err)
		}

		tracerProvider, meterProvider, otelShutdown, err := chefbot.InitOtel(ctx)
		if err != nil {
			slog.Error("SETUP: Failed to initialize OpenTelemetry", "error", err)
			return Results{}, err
		}
		defer func() {
			if err := otelShutdown(ctx); err != nil {
				slog.Error("SETUP: Failed to shutdown OpenTelemetry", "error", err)
			}
		}()

		logger := chefbot.NewStdoutCoordinationLogger()
		client := llm.NewRecorder(
			bedrock.NewLLMClient(bedrockruntime.NewFromConfig(awsCfg), bedrock.LLMOptions{
				ModelID:   modelConfig.ModelID,
				MaxTokens: modelConfig.MaxTokens,
				TopP:      0.9,
			}),
			logger,
			tracerProvider.Tracer(chefbot.TracerNameLLM),
			meterProvider.Meter(chefbot.TracerNameLLM),
		)

		switch params.Mode {
		case "", "menu":
			name := params.PromptSet
			if name == "" {
				name = agentConfig.PromptSet
			}
			prompts, err := pipeline.LookupPromptSet(name)
			if err != nil {
				return Results{}, err
			}
			res := pipeline.New(client, prompts, pipeline.Config{
				Model:        modelConfig.ModelID,
				PlannerModel: modelConfig.PlannerModelID,
				MaxTokens:    int(modelConfig.MaxTokens),
			}, tracerProvider.Tracer(chefbot.TracerNamePipeline), meterProvider.Meter(chefbot.TracerNamePipeline)).Run(ctx, params.Task)
			if !res.OK() {
				slog.Error("RESULT: Menu generation failed", "error", res.Message)
				return Results{}, fmt.Errorf("%s", res.Message)
			}
			return Results{Output: res.Payload}, nil

		case "kitchen", "brigade":
			if agentConfig.ArtifactsBucket == "" {
				return Results{}, fmt.Errorf("missing S3 config: ARTIFACTS_S3_BUCKET must be set")
			}
			kitchen, err := tools.LoadKitchen(ctx, storage.NewS3State(s3.NewFromConfig(awsCfg), agentConfig.ArtifactsBucket, agentConfig.KitchenS3Key))
			if err != nil {
				slog.Error("SETUP: Failed to load kitchen data from S3", "error", err)
				return Results{}, err
			}
			slog.Info("SETUP: Kitchen data loaded from S3", "fridge_items", len(kitchen.Fridge), "recipes", len(kitchen.Recipes))

			deps := toolloop.Deps{
				Client: client,
				Logger: logger,
				Tracer: tracerProvider.Tracer(chefbot.TracerNameToolLoop),
				Meter:  meterProvider.Meter(chefbot.TracerNameToolLoop),
			}
			var loop *toolloop.Loop
			if params.Mode == "kitchen" {
				loop, err = toolloop.NewKitchenAssistant(deps, kitchen, toolloop.Config{
					Model:         modelConfig.ModelID,
					MaxIterations: agentConfig.MaxIterations,
					Temperature:   modelConfig.Temperature,
					MaxTokens:     int(modelConfig.MaxTokens),
				})
			} else {
				loop, err = toolloop.NewBrigade(deps, kitchen, toolloop.BrigadeConfig{
					Model:       modelConfig.ModelID,
					Temperature: modelConfig.Temperature,
					MaxTokens:   int(modelConfig.MaxTokens),
				})
			}
			if err != nil {
				return Results{}, err
			}

			out, err := loop.Run(ctx, params.Task)
			if err != nil {
				slog.Error("RESULT: Error handling task", "error", err)
				return Results{}, err
			}
			return Results{Output: out, Capped: toolloop.IsMaxIterations(out)}, nil

		default:
			return Results{}, fmt.Errorf("unknown mode %q (want one of menu, kitchen, brigade)", params.Mode)
		}
	}

	lambda.Start(fn)
}
