package toolloop

import (
	"context"
	"errors"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/jsonschema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	tracenoop "go.opentelemetry.io/otel/trace/noop"

	"chefbot"
	"chefbot/llm"
	"chefbot/llm/mock"
	"chefbot/tools"
	"chefbot/tools/storage"
)

var (
	testTracer = tracenoop.NewTracerProvider().Tracer("test")
	testMeter  = metricnoop.NewMeterProvider().Meter("test")
)

type stubTool struct {
	name  string
	out   string
	err   error
	calls []map[string]any
}

func (s *stubTool) Kind() tools.Kind    { return tools.KindCheckFridge }
func (s *stubTool) Name() string        { return s.name }
func (s *stubTool) Title() string       { return s.name }
func (s *stubTool) Description() string { return "stub" }
func (s *stubTool) InputSchema() *jsonschema.Schema {
	return &jsonschema.Schema{Type: "object"}
}
func (s *stubTool) Run(_ context.Context, input map[string]any) (string, error) {
	s.calls = append(s.calls, input)
	return s.out, s.err
}

type recordingLogger struct{ iterations []chefbot.IterationLog }

func (r *recordingLogger) LogIteration(it chefbot.IterationLog) error {
	r.iterations = append(r.iterations, it)
	return nil
}

func newTestLoop(t *testing.T, client llm.Client, logger chefbot.CoordinationLogger, ts ...tools.Tool) *Loop {
	t.Helper()
	reg, err := tools.NewRegistry(ts...)
	require.NoError(t, err)
	return NewLoop(client, reg, Config{Model: "test-model"}, logger, testTracer, testMeter)
}

func TestLoop_DirectAnswer(t *testing.T) {
	client := mock.NewScripted(mock.Text("Bonjour"))
	fridge := &stubTool{name: "check_fridge", out: "oeufs"}
	loop := newTestLoop(t, client, nil, fridge)

	out, err := loop.Run(context.Background(), "Salut")
	require.NoError(t, err)
	assert.Equal(t, "Bonjour", out)
	assert.Equal(t, 1, client.Calls())
	assert.Empty(t, fridge.calls)

	req := client.Requests()[0]
	require.Len(t, req.Messages, 2)
	assert.Equal(t, llm.System(DefaultSystemPrompt), req.Messages[0])
	assert.Equal(t, llm.User("Salut"), req.Messages[1])
	require.Len(t, req.Tools, 1)
	assert.Equal(t, "check_fridge", req.Tools[0].Name)
	assert.Equal(t, "test-model", req.Model)
}

func TestLoop_ToolCallThenAnswer(t *testing.T) {
	client := mock.NewScripted(
		mock.Calls(llm.ToolCall{ID: "c1", Name: "check_fridge"}),
		mock.Text("Tu as des oeufs."),
	)
	fridge := &stubTool{name: "check_fridge", out: "oeufs, tomates"}
	logger := &recordingLogger{}
	loop := newTestLoop(t, client, logger, fridge)

	out, err := loop.Run(context.Background(), "Qu'y a-t-il dans le frigo ?")
	require.NoError(t, err)
	assert.Equal(t, "Tu as des oeufs.", out)
	assert.Len(t, fridge.calls, 1)

	second := client.Requests()[1].Messages
	require.Len(t, second, 4)
	assert.Equal(t, llm.RoleAssistant, second[2].Role)
	require.Len(t, second[2].ToolCalls, 1)
	assert.Equal(t, llm.ToolResult("c1", "check_fridge", "oeufs, tomates"), second[3])

	require.Len(t, logger.iterations, 1)
	assert.Equal(t, 1, logger.iterations[0].Iteration)
	require.Len(t, logger.iterations[0].ToolCalls, 1)
	assert.Equal(t, "oeufs, tomates", logger.iterations[0].ToolCalls[0].Output)
}

func TestLoop_ToolCallsRunSequentiallyInOrder(t *testing.T) {
	client := mock.NewScripted(
		mock.Calls(
			llm.ToolCall{ID: "a", Name: "check_fridge"},
			llm.ToolCall{ID: "b", Name: "get_recipe", Args: map[string]any{"dish_name": "omelette"}},
		),
		mock.Text("fini"),
	)
	loop := newTestLoop(t, client, nil,
		&stubTool{name: "check_fridge", out: "oeufs"},
		&stubTool{name: "get_recipe", out: "Battre les oeufs"},
	)

	_, err := loop.Run(context.Background(), "omelette ?")
	require.NoError(t, err)

	msgs := client.Requests()[1].Messages
	require.Len(t, msgs, 5)
	assert.Equal(t, "a", msgs[3].ToolCallID)
	assert.Equal(t, "oeufs", msgs[3].Content)
	assert.Equal(t, "b", msgs[4].ToolCallID)
	assert.Equal(t, "Battre les oeufs", msgs[4].Content)
}

func TestLoop_UnknownToolContinues(t *testing.T) {
	client := mock.NewScripted(
		mock.Calls(llm.ToolCall{ID: "c1", Name: "x"}),
		mock.Text("désolé"),
	)
	loop := newTestLoop(t, client, nil, &stubTool{name: "check_fridge"})

	out, err := loop.Run(context.Background(), "?")
	require.NoError(t, err)
	assert.Equal(t, "désolé", out)

	msgs := client.Requests()[1].Messages
	assert.Equal(t, llm.ToolResult("c1", "x", "Error: unknown tool 'x'"), msgs[len(msgs)-1])
}

func TestLoop_HandlerErrorBecomesText(t *testing.T) {
	client := mock.NewScripted(
		mock.Calls(llm.ToolCall{ID: "c1", Name: "check_fridge"}),
		mock.Text("ok"),
	)
	logger := &recordingLogger{}
	loop := newTestLoop(t, client, logger, &stubTool{name: "check_fridge", err: errors.New("frigo fermé")})

	_, err := loop.Run(context.Background(), "?")
	require.NoError(t, err)

	msgs := client.Requests()[1].Messages
	assert.Equal(t, "Error: frigo fermé", msgs[len(msgs)-1].Content)
	assert.Equal(t, "frigo fermé", logger.iterations[0].ToolCalls[0].Error)
}

func TestLoop_MaxIterations(t *testing.T) {
	tests := []struct {
		name    string
		max     int
		wantCap int
	}{
		{name: "default cap", max: 0, wantCap: DefaultMaxIterations},
		{name: "custom cap", max: 3, wantCap: 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := mock.Repeating(mock.Calls(llm.ToolCall{ID: "c", Name: "check_fridge"}))
			fridge := &stubTool{name: "check_fridge", out: "oeufs"}
			reg, err := tools.NewRegistry(fridge)
			require.NoError(t, err)
			loop := NewLoop(client, reg, Config{MaxIterations: tt.max}, nil, testTracer, testMeter)

			out, err := loop.Run(context.Background(), "boucle")
			require.NoError(t, err)
			assert.Equal(t, MaxIterationsMessage, out)
			assert.True(t, IsMaxIterations(out))
			assert.Equal(t, tt.wantCap, client.Calls())
			assert.Len(t, fridge.calls, tt.wantCap)
		})
	}
}

func TestLoop_ModelErrorPropagates(t *testing.T) {
	boom := errors.New("rate limited")
	client := mock.NewScripted(
		mock.Calls(llm.ToolCall{ID: "c1", Name: "check_fridge"}),
		mock.Fail(boom),
	)
	loop := newTestLoop(t, client, nil, &stubTool{name: "check_fridge", out: "oeufs"})

	out, err := loop.Run(context.Background(), "?")
	assert.ErrorIs(t, err, boom)
	assert.ErrorContains(t, err, "model call 2")
	assert.Empty(t, out)
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "AWAITING_MODEL", StateAwaitingModel.String())
	assert.Equal(t, "EXECUTING_TOOLS", StateExecutingTools.String())
	assert.Equal(t, "DONE", StateDone.String())
	assert.Equal(t, "UNKNOWN", State(42).String())
}

func TestSession_KeepsHistory(t *testing.T) {
	client := mock.NewScripted(
		mock.Calls(llm.ToolCall{ID: "c1", Name: "menu_search", Args: map[string]any{"vegetarien": true}}),
		mock.Text("Je propose le velouté."),
		mock.Text("Votre total est de 12€."),
	)
	search := &stubTool{name: "menu_search", out: "- Velouté (12€)"}
	loop := newTestLoop(t, client, nil, search)
	s := loop.NewSession()

	out, err := s.Send(context.Background(), "Un plat végétarien ?")
	require.NoError(t, err)
	assert.Equal(t, "Je propose le velouté.", out)

	out, err = s.Send(context.Background(), "Et le total ?")
	require.NoError(t, err)
	assert.Equal(t, "Votre total est de 12€.", out)

	third := client.Requests()[2].Messages
	// system, user, assistant(calls), tool, assistant, user
	require.Len(t, third, 6)
	assert.Equal(t, llm.User("Un plat végétarien ?"), third[1])
	assert.Equal(t, "Je propose le velouté.", third[4].Content)
	assert.Equal(t, llm.User("Et le total ?"), third[5])

	msgs := s.Messages()
	assert.Len(t, msgs, 7)
	msgs[0].Content = "changed"
	assert.Equal(t, DefaultSystemPrompt, s.Messages()[0].Content)
}

func TestSession_ErrorKeepsPriorTurns(t *testing.T) {
	client := mock.NewScripted(mock.Text("premier"), mock.Fail(errors.New("down")))
	loop := newTestLoop(t, client, nil, &stubTool{name: "check_fridge"})
	s := loop.NewSession()

	_, err := s.Send(context.Background(), "un")
	require.NoError(t, err)
	_, err = s.Send(context.Background(), "deux")
	require.Error(t, err)

	msgs := s.Messages()
	require.Len(t, msgs, 4)
	assert.Equal(t, llm.User("deux"), msgs[3])
}

func TestAgentTool(t *testing.T) {
	sub := mock.NewScripted(mock.Text("omelette"))
	chef := NewLoop(sub, emptyRegistry(t), Config{Name: "chef_agent"}, nil, testTracer, testMeter)
	at := NewAgentTool(chef, "cuisine")

	assert.Equal(t, tools.KindAgent, at.Kind())
	assert.Equal(t, "chef_agent", at.Name())
	assert.Equal(t, []string{"task"}, at.InputSchema().Required)

	out, err := at.Run(context.Background(), map[string]any{"task": "Que cuisiner ?"})
	require.NoError(t, err)
	assert.Equal(t, "omelette", out)
	assert.Equal(t, llm.User("Que cuisiner ?"), sub.Requests()[0].Messages[1])

	_, err = at.Run(context.Background(), map[string]any{})
	assert.ErrorContains(t, err, "task")
}

func TestAgentTool_CappedSubAgentReportsSentinel(t *testing.T) {
	sub := mock.Repeating(mock.Calls(llm.ToolCall{Name: "check_fridge"}))
	reg, err := tools.NewRegistry(&stubTool{name: "check_fridge", out: "oeufs"})
	require.NoError(t, err)
	chef := NewLoop(sub, reg, Config{Name: "chef_agent", MaxIterations: 2}, nil, testTracer, testMeter)

	out, err := NewAgentTool(chef, "cuisine").Run(context.Background(), map[string]any{"task": "boucle"})
	require.NoError(t, err)
	assert.Equal(t, MaxIterationsMessage, out)
	assert.Equal(t, 2, sub.Calls())
}

func emptyRegistry(t *testing.T) *tools.Registry {
	t.Helper()
	reg, err := tools.NewRegistry()
	require.NoError(t, err)
	return reg
}

func TestNewBrigade_DelegatesToSubAgents(t *testing.T) {
	k, err := tools.LoadKitchen(context.Background(), storage.DefaultKitchenState())
	require.NoError(t, err)

	logger := &recordingLogger{}
	manager, err := NewBrigade(Deps{Client: mock.NewChef(), Logger: logger, Tracer: testTracer, Meter: testMeter}, k, BrigadeConfig{})
	require.NoError(t, err)
	assert.Equal(t, "manager_agent", manager.Name())

	var names []string
	for _, tl := range manager.tools.GetTools() {
		names = append(names, tl.Name())
		assert.Equal(t, tools.KindAgent, tl.Kind())
	}
	assert.Equal(t, []string{"nutritionist_agent", "chef_agent", "budget_agent"}, names)

	out, err := manager.Run(context.Background(), "tomates")
	require.NoError(t, err)
	assert.Contains(t, out, "Infos pour tomates")

	var stages []string
	for _, it := range logger.iterations {
		stages = append(stages, it.Stage)
	}
	assert.Equal(t, []string{"nutritionist_agent", "manager_agent"}, stages)
}

func TestNewWaiter(t *testing.T) {
	m, err := tools.LoadMenu(context.Background(), storage.DefaultMenuState())
	require.NoError(t, err)

	client := mock.NewScripted(mock.Text("Bienvenue"))
	waiter, err := NewWaiter(Deps{Client: client, Tracer: testTracer, Meter: testMeter}, m, Config{})
	require.NoError(t, err)
	assert.Equal(t, "waiter", waiter.Name())
	assert.Equal(t, 8, waiter.cfg.MaxIterations)

	_, err = waiter.NewSession().Send(context.Background(), "Bonjour")
	require.NoError(t, err)
	req := client.Requests()[0]
	assert.Equal(t, waiterPrompt, req.Messages[0].Content)
	require.Len(t, req.Tools, 2)
	assert.Equal(t, "menu_search", req.Tools[0].Name)
	assert.Equal(t, "calculate", req.Tools[1].Name)
}

func TestNewKitchenAssistant_WithMockChef(t *testing.T) {
	k, err := tools.LoadKitchen(context.Background(), storage.DefaultKitchenState())
	require.NoError(t, err)

	loop, err := NewKitchenAssistant(Deps{Client: mock.NewChef(), Tracer: testTracer, Meter: testMeter}, k, Config{})
	require.NoError(t, err)
	assert.Equal(t, "kitchen_assistant", loop.Name())

	out, err := loop.Run(context.Background(), "Que puis-je cuisiner ?")
	require.NoError(t, err)
	assert.Equal(t, "D'après mes outils : oeufs, tomates, fromage, lait, basilic", out)
}
