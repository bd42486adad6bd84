// Package pipeline implements the plan, execute and synthesize prompt chain
// that turns dietary constraints into a menu.
package pipeline

// Config selects the models and token budget of a pipeline run.
type Config struct {
	Model        string
	PlannerModel string
	MaxTokens    int
}
