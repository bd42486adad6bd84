package llm

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"chefbot"
)

// Recorder decorates a Client with a span, structured logs, metrics and an
// iteration log entry per call.
type Recorder struct {
	next   Client
	logger chefbot.CoordinationLogger
	tracer trace.Tracer

	calls    metric.Int64Counter
	failures metric.Int64Counter
	latency  metric.Float64Histogram
	tokens   metric.Int64Counter

	mu  sync.Mutex
	seq int
}

// NewRecorder wraps next. A nil logger disables the iteration log.
func NewRecorder(next Client, logger chefbot.CoordinationLogger, tracer trace.Tracer, meter metric.Meter) *Recorder {
	r := &Recorder{next: next, logger: logger, tracer: tracer}
	r.calls, _ = meter.Int64Counter("llm_calls_total",
		metric.WithDescription("Total number of model calls"))
	r.failures, _ = meter.Int64Counter("llm_calls_failed_total",
		metric.WithDescription("Total number of model calls that returned an error"))
	r.latency, _ = meter.Float64Histogram("llm_response_time_seconds",
		metric.WithDescription("Time taken to receive a response from the model in seconds"))
	r.tokens, _ = meter.Int64Counter("llm_tokens_total",
		metric.WithDescription("Tokens consumed, split by direction"))
	return r
}

func (r *Recorder) Complete(ctx context.Context, req Request) (Response, error) {
	stage := chefbot.StageFrom(ctx)
	attrs := []attribute.KeyValue{
		attribute.String("llm.model", req.Model),
		attribute.String("chefbot.stage", stage),
	}

	ctx, span := r.tracer.Start(ctx, "llm.Complete", trace.WithAttributes(append(attrs,
		attribute.Int("llm.messages_count", len(req.Messages)),
		attribute.Int("llm.tools_count", len(req.Tools)),
		attribute.Bool("llm.json_mode", req.JSONMode),
		attribute.Float64("llm.temperature", req.Temperature),
	)...))
	defer span.End()

	iter := chefbot.IterationLog{
		Iteration: r.nextSeq(),
		Stage:     stage,
		Timestamp: time.Now(),
		Model:     req.Model,
	}
	if b, err := json.Marshal(req); err == nil {
		iter.LLMInput = string(b)
	}

	last := ""
	if n := len(req.Messages); n > 0 {
		last = Preview(req.Messages[n-1].Content, 100)
	}
	slog.Info("LLM_CLIENT: Sending request",
		"stage", stage,
		"model", req.Model,
		"messages_count", len(req.Messages),
		"tools_count", len(req.Tools),
		"json_mode", req.JSONMode,
		"last_message_preview", last,
	)

	start := time.Now()
	res, err := r.next.Complete(ctx, req)
	iter.Duration = time.Since(start)

	r.calls.Add(ctx, 1, metric.WithAttributes(attrs...))
	r.latency.Record(ctx, iter.Duration.Seconds(), metric.WithAttributes(attrs...))

	if err != nil {
		r.failures.Add(ctx, 1, metric.WithAttributes(attrs...))
		span.SetStatus(codes.Error, "model call failed")
		span.RecordError(err)
		iter.Error = err.Error()
		r.log(iter)
		slog.Error("LLM_CLIENT: Request failed", "stage", stage, "model", req.Model, "error", err)
		return Response{}, err
	}

	r.tokens.Add(ctx, res.Usage.InputTokens, metric.WithAttributes(append(attrs, attribute.String("direction", "input"))...))
	r.tokens.Add(ctx, res.Usage.OutputTokens, metric.WithAttributes(append(attrs, attribute.String("direction", "output"))...))

	span.SetAttributes(
		attribute.Int("llm.response_content_length", len(res.Content)),
		attribute.Int("llm.response_tool_calls", len(res.ToolCalls)),
		attribute.String("llm.stop_reason", res.StopReason),
	)

	iter.LLMOutput = res
	r.log(iter)

	slog.Info("LLM_CLIENT: Response received",
		"stage", stage,
		"content_length", len(res.Content),
		"tool_calls", len(res.ToolCalls),
		"response_time_ms", iter.Duration.Milliseconds(),
	)

	return res, nil
}

func (r *Recorder) nextSeq() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	return r.seq
}

func (r *Recorder) log(iter chefbot.IterationLog) {
	if r.logger == nil {
		return
	}
	if err := r.logger.LogIteration(iter); err != nil {
		slog.Error("Failed to log coordination iteration", "error", err, "iteration", iter.Iteration)
	}
}
