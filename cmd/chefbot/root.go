package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/joeshaw/envdecode"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"chefbot"
	"chefbot/llm"
)

var (
	flagProvider string
	flagModel    string
	flagDump     bool
	flagNoLog    bool
)

var rootCmd = &cobra.Command{
	Use:   "chefbot",
	Short: "Recipes and menus from a chat model",
	Long: `ChefBot asks a chat model for recipes and menus.

It can answer single questions, plan a menu through a plan, execute and
synthesize chain, run tool-using kitchen and restaurant agents, delegate to a
brigade of sub-agents, and score generated menus against an evaluation dataset.`,
	SilenceUsage:      true,
	PersistentPreRunE: setupApp,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagProvider, "provider", "", "Model provider: groq, ollama, bedrock, anthropic or mock (default from LLM_PROVIDER)")
	rootCmd.PersistentFlags().StringVar(&flagModel, "model", "", "Model ID (default from MODEL_ID)")
	rootCmd.PersistentFlags().BoolVar(&flagDump, "dump", false, "Dump intermediate values to stderr")
	rootCmd.PersistentFlags().BoolVar(&flagNoLog, "no-log", false, "Do not write a coordination log file")

	rootCmd.AddCommand(askCmd)
	rootCmd.AddCommand(menuCmd)
	rootCmd.AddCommand(kitchenCmd)
	rootCmd.AddCommand(restaurantCmd)
	rootCmd.AddCommand(brigadeCmd)
	rootCmd.AddCommand(evalCmd)
}

// app holds everything a subcommand needs once configuration is decoded.
type app struct {
	model    chefbot.ModelConfig
	provider chefbot.ProviderConfig
	agent    chefbot.AgentConfig
	eval     chefbot.EvalConfig

	client llm.Client
	logger chefbot.CoordinationLogger
	tracer trace.TracerProvider
	meter  metric.MeterProvider

	cleanups []func(context.Context) error
}

var current *app

func setupApp(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a := &app{}
	for _, cfg := range []any{&a.model, &a.provider, &a.agent, &a.eval} {
		if err := envdecode.Decode(cfg); err != nil {
			return fmt.Errorf("SETUP: failed to decode config: %w", err)
		}
	}
	if flagProvider != "" {
		a.model.Provider = flagProvider
	}
	if flagModel != "" {
		a.model.ModelID = flagModel
	}

	tp, mp, otelShutdown, err := chefbot.InitOtel(ctx)
	if err != nil {
		return fmt.Errorf("SETUP: failed to initialize OpenTelemetry: %w", err)
	}
	a.tracer, a.meter = tp, mp
	a.cleanups = append(a.cleanups, otelShutdown)

	logger, flush, err := newCoordinationLogger(a.agent.LogDir, a.model.ModelID)
	if err != nil {
		return errors.Join(err, a.close(ctx))
	}
	a.logger = logger
	a.cleanups = append(a.cleanups, func(context.Context) error { return flush() })

	client, err := newLLMClient(ctx, a.model, a.provider)
	if err != nil {
		return errors.Join(fmt.Errorf("SETUP: failed to create LLM client: %w", err), a.close(ctx))
	}
	a.client = llm.NewRecorder(client, a.logger, tp.Tracer(chefbot.TracerNameLLM), mp.Meter(chefbot.TracerNameLLM))

	slog.Info("SETUP: Ready", "provider", a.model.Provider, "model", a.model.ModelID)
	dump(a.model)
	current = a
	return nil
}

// close runs cleanups in reverse order so the log is flushed before telemetry shuts down.
func (a *app) close(ctx context.Context) error {
	var errs []error
	for i := len(a.cleanups) - 1; i >= 0; i-- {
		errs = append(errs, a.cleanups[i](ctx))
	}
	a.cleanups = nil
	return errors.Join(errs...)
}

func (a *app) pipelineTracer() trace.Tracer { return a.tracer.Tracer(chefbot.TracerNamePipeline) }
func (a *app) pipelineMeter() metric.Meter  { return a.meter.Meter(chefbot.TracerNamePipeline) }
func (a *app) loopTracer() trace.Tracer     { return a.tracer.Tracer(chefbot.TracerNameToolLoop) }
func (a *app) loopMeter() metric.Meter      { return a.meter.Meter(chefbot.TracerNameToolLoop) }

func newCoordinationLogger(dir, modelID string) (chefbot.CoordinationLogger, func() error, error) {
	if flagNoLog {
		return chefbot.NewNoOpCoordinationLogger(), func() error { return nil }, nil
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	logFilePath := chefbot.NewCoordinationLogFilePath(dir, modelID)
	logFile, err := os.OpenFile(filepath.Clean(logFilePath), os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open log file: %w", err)
	}

	logger := chefbot.NewFileCoordinationLogger(logFile)
	cleanup := func() error {
		return errors.Join(logger.Flush(), logFile.Close())
	}
	return logger, cleanup, nil
}

func dump(v ...any) {
	if flagDump {
		chefbot.Dump(os.Stderr, v...)
	}
}

func httpClient(pc chefbot.ProviderConfig) *http.Client {
	return &http.Client{Timeout: time.Duration(pc.HTTPTimeoutSeconds) * time.Second}
}
