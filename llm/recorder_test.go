package llm_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"chefbot"
	"chefbot/llm"
	"chefbot/llm/mock"
)

type memLogger struct{ iterations []chefbot.IterationLog }

func (m *memLogger) LogIteration(it chefbot.IterationLog) error {
	m.iterations = append(m.iterations, it)
	return nil
}

func newRecorder(t *testing.T, next llm.Client) (*llm.Recorder, *tracetest.SpanRecorder, *sdkmetric.ManualReader, *memLogger) {
	t.Helper()
	spans := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(spans))
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	logger := &memLogger{}
	return llm.NewRecorder(next, logger, tp.Tracer("test"), mp.Meter("test")), spans, reader, logger
}

func metricNames(t *testing.T, reader *sdkmetric.ManualReader) []string {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	var names []string
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			names = append(names, m.Name)
		}
	}
	return names
}

func TestRecorder_Success(t *testing.T) {
	next := mock.NewScripted(mock.Step{Response: llm.Response{Content: "ok", Usage: llm.Usage{InputTokens: 3, OutputTokens: 2}}})
	rec, spans, reader, logger := newRecorder(t, next)

	ctx := chefbot.WithStage(context.Background(), "planner")
	res, err := rec.Complete(ctx, llm.Request{Model: "llama", Messages: []llm.Message{llm.User("bonjour")}})
	require.NoError(t, err)
	assert.Equal(t, "ok", res.Content)

	ended := spans.Ended()
	require.Len(t, ended, 1)
	assert.Equal(t, "llm.Complete", ended[0].Name())
	assert.NotEqual(t, codes.Error, ended[0].Status().Code)

	require.Len(t, logger.iterations, 1)
	assert.Equal(t, 1, logger.iterations[0].Iteration)
	assert.Equal(t, "planner", logger.iterations[0].Stage)
	assert.Equal(t, "llama", logger.iterations[0].Model)
	assert.Contains(t, logger.iterations[0].LLMInput, "bonjour")

	names := metricNames(t, reader)
	assert.Contains(t, names, "llm_calls_total")
	assert.Contains(t, names, "llm_tokens_total")
	assert.Contains(t, names, "llm_response_time_seconds")
}

func TestRecorder_Error(t *testing.T) {
	boom := errors.New("rate limited")
	rec, spans, reader, logger := newRecorder(t, mock.NewScripted(mock.Fail(boom)))

	_, err := rec.Complete(context.Background(), llm.Request{Model: "llama"})
	assert.ErrorIs(t, err, boom)

	ended := spans.Ended()
	require.Len(t, ended, 1)
	assert.Equal(t, codes.Error, ended[0].Status().Code)

	require.Len(t, logger.iterations, 1)
	assert.Equal(t, "rate limited", logger.iterations[0].Error)
	assert.Contains(t, metricNames(t, reader), "llm_calls_failed_total")
}

func TestRecorder_NilLogger(t *testing.T) {
	tp := sdktrace.NewTracerProvider()
	mp := sdkmetric.NewMeterProvider()
	rec := llm.NewRecorder(mock.NewScripted(mock.Text("ok")), nil, tp.Tracer("t"), mp.Meter("t"))

	res, err := rec.Complete(context.Background(), llm.Request{})
	require.NoError(t, err)
	assert.Equal(t, "ok", res.Content)
}
