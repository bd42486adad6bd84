package toolloop

import (
	"context"
	"errors"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/jsonschema"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"chefbot"
	"chefbot/llm"
	"chefbot/tools"
)

// AgentTool exposes a sub-agent to a manager loop as a tool taking {"task"}.
type AgentTool struct {
	loop        *Loop
	description string
}

func NewAgentTool(loop *Loop, description string) *AgentTool {
	return &AgentTool{loop: loop, description: description}
}

func (a *AgentTool) Kind() tools.Kind    { return tools.KindAgent }
func (a *AgentTool) Name() string        { return a.loop.Name() }
func (a *AgentTool) Title() string       { return a.loop.Name() }
func (a *AgentTool) Description() string { return a.description }

func (a *AgentTool) InputSchema() *jsonschema.Schema {
	return &jsonschema.Schema{
		Type: "object",
		Properties: map[string]*jsonschema.Schema{
			"task": {Type: "string", Description: "Long detailed description of the task for this agent."},
		},
		Required: []string{"task"},
	}
}

// Run delegates the task. A capped sub-agent reports the sentinel text to its
// manager rather than failing.
func (a *AgentTool) Run(ctx context.Context, input map[string]any) (string, error) {
	task, ok := input["task"].(string)
	if !ok || task == "" {
		return "", errors.New(`missing required argument "task"`)
	}
	return a.loop.Run(ctx, task)
}

// Deps groups what every preset agent needs.
type Deps struct {
	Client llm.Client
	Logger chefbot.CoordinationLogger
	Tracer trace.Tracer
	Meter  metric.Meter
}

func (d Deps) loop(tp chefbot.ToolProvider, cfg Config) *Loop {
	return NewLoop(d.Client, tp, cfg, d.Logger, d.Tracer, d.Meter)
}

// NewKitchenAssistant answers questions about the fridge, recipes and dietary info.
func NewKitchenAssistant(d Deps, k *tools.Kitchen, cfg Config) (*Loop, error) {
	reg, err := tools.NewKitchenRegistry(k)
	if err != nil {
		return nil, err
	}
	if cfg.Name == "" {
		cfg.Name = "kitchen_assistant"
	}
	return d.loop(reg, cfg), nil
}

const waiterPrompt = `Tu es un serveur de restaurant expert.
DÉMARCHE :
- Cherche les plats via 'menu_search'.
- Calcule le total avec 'calculate'.
- Respecte les contraintes des convives (végétarien, sans gluten, budget).
- Conclus avec le menu complet et le total.`

// NewWaiter searches the restaurant menu and totals orders. It is meant to be
// used through a Session so that follow-up requests keep the order context.
func NewWaiter(d Deps, m *tools.Menu, cfg Config) (*Loop, error) {
	reg, err := tools.NewRestaurantRegistry(m)
	if err != nil {
		return nil, err
	}
	if cfg.Name == "" {
		cfg.Name = "waiter"
	}
	if cfg.SystemPrompt == "" {
		cfg.SystemPrompt = waiterPrompt
	}
	if cfg.MaxIterations == 0 {
		cfg.MaxIterations = 8
	}
	return d.loop(reg, cfg), nil
}

// BrigadeConfig sets the caps of the manager and of each sub-agent.
type BrigadeConfig struct {
	Model                string
	Temperature          float64
	MaxTokens            int
	ManagerMaxIterations int
	AgentMaxIterations   int
}

const managerPrompt = "Tu es le chef de brigade. Tu orchestres le travail du nutritionniste, du chef et de l'agent budget " +
	"pour construire un menu répondant aux contraintes. Délègue chaque sous-tâche à l'agent compétent, " +
	"puis rédige la réponse finale de façon brève."

// NewBrigade builds a manager loop whose tools are the chef, nutritionist and
// budget agents.
func NewBrigade(d Deps, k *tools.Kitchen, cfg BrigadeConfig) (*Loop, error) {
	if cfg.ManagerMaxIterations == 0 {
		cfg.ManagerMaxIterations = 8
	}
	if cfg.AgentMaxIterations == 0 {
		cfg.AgentMaxIterations = DefaultMaxIterations
	}
	sub := func(name, prompt string) Config {
		return Config{
			Name:          name,
			Model:         cfg.Model,
			SystemPrompt:  prompt,
			MaxIterations: cfg.AgentMaxIterations,
			Temperature:   cfg.Temperature,
			MaxTokens:     cfg.MaxTokens,
		}
	}

	nutritionistTools, err := tools.NewRegistry(tools.NewCheckDietaryInfo(k))
	if err != nil {
		return nil, fmt.Errorf("nutritionist tools: %w", err)
	}
	chefTools, err := tools.NewRegistry(tools.NewCheckFridge(k), tools.NewGetRecipe(k))
	if err != nil {
		return nil, fmt.Errorf("chef tools: %w", err)
	}
	budgetTools, err := tools.NewRegistry(tools.NewCalculate())
	if err != nil {
		return nil, fmt.Errorf("budget tools: %w", err)
	}

	nutritionist := d.loop(nutritionistTools, sub("nutritionist_agent",
		"Tu es nutritionniste. Donne des conseils précis sur l'équilibre des repas et les contraintes alimentaires."))
	chef := d.loop(chefTools, sub("chef_agent",
		"Tu es chef cuisinier. Propose des recettes à partir des ingrédients disponibles et donne les instructions de cuisson."))
	budget := d.loop(budgetTools, sub("budget_agent",
		"Tu es responsable du budget. Optimise le menu selon les contraintes de coût et fais les calculs demandés."))

	managed, err := tools.NewRegistry(
		NewAgentTool(nutritionist, "A nutritionist agent that can provide expert advice on meal planning and dietary constraints. "+
			"Give it a question about nutrition or meal planning and it will provide informed guidance."),
		NewAgentTool(chef, "A chef agent that can suggest recipes based on available ingredients and provide cooking instructions. "+
			"Give it a question about cooking or meal preparation and it will offer practical advice."),
		NewAgentTool(budget, "A budget agent that can help optimize meal plans based on cost constraints. "+
			"Give it a question about budgeting for meals and it will provide cost-effective suggestions."),
	)
	if err != nil {
		return nil, fmt.Errorf("managed agents: %w", err)
	}

	return d.loop(managed, Config{
		Name:          "manager_agent",
		Model:         cfg.Model,
		SystemPrompt:  managerPrompt,
		MaxIterations: cfg.ManagerMaxIterations,
		Temperature:   cfg.Temperature,
		MaxTokens:     cfg.MaxTokens,
	}), nil
}
