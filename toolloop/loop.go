// Package toolloop runs a bounded conversation in which the model may call
// registered tools before giving a final text answer.
package toolloop

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"chefbot"
	"chefbot/llm"
	"chefbot/tools"
)

// MaxIterationsMessage is returned, with a nil error, when the model is still
// calling tools after the last allowed model call.
const MaxIterationsMessage = "Error: max iterations reached"

const (
	DefaultMaxIterations = 5
	DefaultSystemPrompt  = "You are a helpful assistant. Use the provided tools when needed to answer questions accurately."
)

// IsMaxIterations reports whether out is the iteration cap sentinel.
func IsMaxIterations(out string) bool { return out == MaxIterationsMessage }

type State int

const (
	StateAwaitingModel State = iota
	StateExecutingTools
	StateDone
)

func (s State) String() string {
	switch s {
	case StateAwaitingModel:
		return "AWAITING_MODEL"
	case StateExecutingTools:
		return "EXECUTING_TOOLS"
	case StateDone:
		return "DONE"
	default:
		return "UNKNOWN"
	}
}

type Config struct {
	Name          string
	Model         string
	SystemPrompt  string
	MaxIterations int
	Temperature   float64
	MaxTokens     int
}

// Loop is safe for concurrent use; each Run works on its own conversation.
type Loop struct {
	client llm.Client
	tools  chefbot.ToolProvider
	specs  []llm.ToolSpec
	cfg    Config
	logger chefbot.CoordinationLogger
	tracer trace.Tracer

	runs        metric.Int64Counter
	iterations  metric.Int64Counter
	toolCalls   metric.Int64Counter
	toolFailed  metric.Int64Counter
	capped      metric.Int64Counter
	toolLatency metric.Float64Histogram
}

// NewLoop builds a loop over the given tools. A nil logger disables the tool log.
func NewLoop(client llm.Client, tp chefbot.ToolProvider, cfg Config, logger chefbot.CoordinationLogger, tracer trace.Tracer, meter metric.Meter) *Loop {
	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = DefaultMaxIterations
	}
	if cfg.SystemPrompt == "" {
		cfg.SystemPrompt = DefaultSystemPrompt
	}
	if cfg.Name == "" {
		cfg.Name = "tool_loop"
	}
	if logger == nil {
		logger = chefbot.NewNoOpCoordinationLogger()
	}

	l := &Loop{
		client: client,
		tools:  tp,
		specs:  llm.Specs(tp.GetTools()),
		cfg:    cfg,
		logger: logger,
		tracer: tracer,
	}
	l.runs, _ = meter.Int64Counter("toolloop_runs_total",
		metric.WithDescription("Total number of tool loop runs started"))
	l.iterations, _ = meter.Int64Counter("toolloop_iterations_total",
		metric.WithDescription("Total number of model calls made by tool loops"))
	l.toolCalls, _ = meter.Int64Counter("tool_calls_total",
		metric.WithDescription("Total number of tool calls executed"))
	l.toolFailed, _ = meter.Int64Counter("tool_calls_failed_total",
		metric.WithDescription("Total number of tool calls that were unresolved or failed"))
	l.capped, _ = meter.Int64Counter("toolloop_max_iterations_total",
		metric.WithDescription("Total number of runs that hit the iteration cap"))
	l.toolLatency, _ = meter.Float64Histogram("tool_execution_time_seconds",
		metric.WithDescription("Time taken to execute individual tools in seconds"))
	return l
}

func (l *Loop) Name() string { return l.cfg.Name }

// Run answers one user message in a fresh conversation.
func (l *Loop) Run(ctx context.Context, userMessage string) (string, error) {
	conv := []llm.Message{llm.System(l.cfg.SystemPrompt), llm.User(userMessage)}
	_, out, err := l.run(ctx, conv)
	return out, err
}

// run drives the state machine over conv and returns the extended conversation.
func (l *Loop) run(ctx context.Context, conv []llm.Message) ([]llm.Message, string, error) {
	attrs := []attribute.KeyValue{attribute.String("toolloop.name", l.cfg.Name)}
	ctx, span := l.tracer.Start(chefbot.WithStage(ctx, l.cfg.Name), "ToolLoop.Run", trace.WithAttributes(append(attrs,
		attribute.Int("toolloop.max_iterations", l.cfg.MaxIterations),
		attribute.Int("toolloop.tools", len(l.specs)),
	)...))
	defer span.End()

	l.runs.Add(ctx, 1, metric.WithAttributes(attrs...))
	slog.Info("TOOL_LOOP: Starting run", "agent", l.cfg.Name, "messages", len(conv), "tools", len(l.specs))

	state := StateAwaitingModel
	var pending []llm.ToolCall

	for iter := 1; iter <= l.cfg.MaxIterations; iter++ {
		// AWAITING_MODEL
		l.iterations.Add(ctx, 1, metric.WithAttributes(attrs...))
		res, err := l.client.Complete(ctx, llm.Request{
			Model:       l.cfg.Model,
			Messages:    conv,
			Temperature: l.cfg.Temperature,
			MaxTokens:   l.cfg.MaxTokens,
			Tools:       l.specs,
		})
		if err != nil {
			span.SetStatus(codes.Error, "model call failed")
			span.RecordError(err)
			return conv, "", fmt.Errorf("%s: model call %d: %w", l.cfg.Name, iter, err)
		}

		if !res.HasToolCalls() {
			state = StateDone
			conv = append(conv, llm.Assistant(res.Content))
			slog.Info("TOOL_LOOP: Final answer ready", "agent", l.cfg.Name, "iteration", iter, "state", state)
			span.SetAttributes(attribute.Int("toolloop.iterations", iter))
			return conv, res.Content, nil
		}

		// EXECUTING_TOOLS
		state = StateExecutingTools
		pending = res.ToolCalls
		conv = append(conv, llm.Assistant(res.Content, pending...))

		iterLog := chefbot.IterationLog{Iteration: iter, Stage: l.cfg.Name, Timestamp: time.Now(), Model: l.cfg.Model}
		for _, call := range pending {
			out, callLog := l.execute(ctx, call)
			iterLog.ToolCalls = append(iterLog.ToolCalls, callLog)
			conv = append(conv, llm.ToolResult(call.ID, call.Name, out))
		}
		if err := l.logger.LogIteration(iterLog); err != nil {
			slog.Error("Failed to log coordination iteration", "error", err, "iteration", iter)
		}
		state = StateAwaitingModel
	}

	l.capped.Add(ctx, 1, metric.WithAttributes(attrs...))
	span.SetAttributes(attribute.Int("toolloop.iterations", l.cfg.MaxIterations), attribute.Bool("toolloop.capped", true))
	slog.Warn("TOOL_LOOP: Max iterations reached", "agent", l.cfg.Name, "max_iterations", l.cfg.MaxIterations, "state", state)
	return conv, MaxIterationsMessage, nil
}

// execute resolves and runs one tool call. Unresolved names and handler
// failures become the text result the model sees.
func (l *Loop) execute(ctx context.Context, call llm.ToolCall) (string, chefbot.ToolCallLog) {
	callLog := chefbot.ToolCallLog{ID: call.ID, Name: call.Name, Input: call.Args}
	attrs := metric.WithAttributes(attribute.String("tool.name", call.Name))

	ctx, span := l.tracer.Start(ctx, "Tool."+call.Name, trace.WithAttributes(attribute.String("tool.call_id", call.ID)))
	defer span.End()

	res := l.tools.Resolve(call.Name)
	if !res.Resolved() {
		out := res.ErrorText()
		l.toolFailed.Add(ctx, 1, attrs)
		span.SetStatus(codes.Error, out)
		slog.Warn("TOOL_LOOP: Unknown tool requested", "tool", call.Name)
		callLog.Output, callLog.Error = out, out
		return out, callLog
	}

	slog.Info("TOOL_LOOP: Tool call", "tool", call.Name, "kind", res.Kind, "args", call.Args)
	start := time.Now()
	out, err := res.Tool.Run(ctx, call.Args)
	l.toolLatency.Record(ctx, time.Since(start).Seconds(), attrs)
	l.toolCalls.Add(ctx, 1, attrs)
	if err != nil {
		l.toolFailed.Add(ctx, 1, attrs)
		span.SetStatus(codes.Error, err.Error())
		span.RecordError(err)
		out = fmt.Sprintf("Error: %v", err)
		callLog.Error = err.Error()
	}
	slog.Info("TOOL_LOOP: Tool result", "tool", call.Name, "result_preview", llm.Preview(out, 120))
	callLog.Output = out
	return out, callLog
}

var _ chefbot.ToolProvider = (*tools.Registry)(nil)
