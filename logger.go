package chefbot

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// CoordinationLogger is the interface for call-by-call run logging.
type CoordinationLogger interface {
	LogIteration(iteration IterationLog) error
}

// NewCoordinationLogFilePath returns a file path under dir based on a cleaned up model name, to make it easier to identify logs produced with various models.
func NewCoordinationLogFilePath(dir, model string) string {
	name := strings.NewReplacer(":", "_", "/", "_").Replace(strings.ToLower(model))
	return filepath.Join(dir, fmt.Sprintf("%d.%s.json", time.Now().Unix(), name))
}

// IterationLog represents a single model call or tool batch in a run.
type IterationLog struct {
	Iteration int           `json:"iteration"`
	Stage     string        `json:"stage,omitempty"`
	Timestamp time.Time     `json:"timestamp"`
	Model     string        `json:"model,omitempty"`
	Duration  time.Duration `json:"duration_ns,omitempty"`
	LLMInput  string        `json:"llm_input,omitempty"`
	LLMOutput any           `json:"llm_output,omitempty"`
	ToolCalls []ToolCallLog `json:"tool_calls,omitempty"`
	Error     string        `json:"error,omitempty"`
}

// ToolCallLog represents a tool execution within an iteration
type ToolCallLog struct {
	ID     string         `json:"id,omitempty"`
	Name   string         `json:"name"`
	Input  map[string]any `json:"input"`
	Output string         `json:"output"`
	Error  string         `json:"error,omitempty"`
}

type stageKey struct{}

// WithStage tags ctx with the pipeline stage that issues the next model calls.
func WithStage(ctx context.Context, stage string) context.Context {
	return context.WithValue(ctx, stageKey{}, stage)
}

// StageFrom returns the stage set by WithStage, or "".
func StageFrom(ctx context.Context) string {
	s, _ := ctx.Value(stageKey{}).(string)
	return s
}

// FileCoordinationLogger logs to a file, accumulating iterations and flushing at the end
type FileCoordinationLogger struct {
	mu         sync.Mutex
	iterations []IterationLog
	writer     io.Writer
}

// NewFileCoordinationLogger creates a new file-based coordination logger
func NewFileCoordinationLogger(writer io.Writer) *FileCoordinationLogger {
	return &FileCoordinationLogger{
		iterations: make([]IterationLog, 0),
		writer:     writer,
	}
}

// LogIteration logs an iteration to the buffer (does not flush immediately)
func (fcl *FileCoordinationLogger) LogIteration(iteration IterationLog) error {
	fcl.mu.Lock()
	defer fcl.mu.Unlock()
	fcl.iterations = append(fcl.iterations, iteration)
	return nil
}

// Flush writes all accumulated iterations as one JSON document.
func (fcl *FileCoordinationLogger) Flush() error {
	fcl.mu.Lock()
	defer fcl.mu.Unlock()

	if fcl.writer == nil {
		return nil
	}

	data, err := json.MarshalIndent(map[string]any{
		"coordination_session": map[string]any{
			"timestamp":  time.Now(),
			"iterations": fcl.iterations,
		},
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal coordination log: %w", err)
	}

	if _, err := fcl.writer.Write(data); err != nil {
		return fmt.Errorf("failed to write coordination log: %w", err)
	}

	fcl.iterations = fcl.iterations[:0]
	return nil
}

// Len returns the number of buffered iterations.
func (fcl *FileCoordinationLogger) Len() int {
	fcl.mu.Lock()
	defer fcl.mu.Unlock()
	return len(fcl.iterations)
}

// NoOpCoordinationLogger is a logger that discards all log entries
type NoOpCoordinationLogger struct{}

func NewNoOpCoordinationLogger() *NoOpCoordinationLogger {
	return &NoOpCoordinationLogger{}
}

func (nop *NoOpCoordinationLogger) LogIteration(iteration IterationLog) error {
	return nil
}

// StdoutCoordinationLogger logs each iteration as a JSON line (for Lambda/CloudWatch)
type StdoutCoordinationLogger struct {
	out io.Writer
}

func NewStdoutCoordinationLogger() *StdoutCoordinationLogger {
	return &StdoutCoordinationLogger{out: os.Stdout}
}

// LogIteration writes the iteration as a single JSON line.
func (l *StdoutCoordinationLogger) LogIteration(iteration IterationLog) error {
	data, err := json.Marshal(iteration)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(l.out, string(data))
	return err
}
