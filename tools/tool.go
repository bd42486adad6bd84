package tools

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/jsonschema"
)

type Tool interface {
	Kind() Kind
	Name() string
	Title() string
	Description() string
	InputSchema() *jsonschema.Schema
	Run(ctx context.Context, input map[string]any) (string, error)
}

// Kind enumerates the closed set of tool variants the registry can hold.
type Kind int

const (
	KindUnresolved Kind = iota
	KindCheckFridge
	KindGetRecipe
	KindCheckDietaryInfo
	KindMenuSearch
	KindCalculate
	KindAgent
)

func (k Kind) String() string {
	switch k {
	case KindCheckFridge:
		return "check_fridge"
	case KindGetRecipe:
		return "get_recipe"
	case KindCheckDietaryInfo:
		return "check_dietary_info"
	case KindMenuSearch:
		return "menu_search"
	case KindCalculate:
		return "calculate"
	case KindAgent:
		return "agent"
	default:
		return "unresolved"
	}
}

// Resolution is the outcome of looking a tool up by name. An unmatched name
// yields KindUnresolved with a nil Tool.
type Resolution struct {
	Kind Kind
	Name string
	Tool Tool
}

func (r Resolution) Resolved() bool {
	return r.Kind != KindUnresolved && r.Tool != nil
}

// ErrorText is the tool result fed back to the model for an unresolved name.
func (r Resolution) ErrorText() string {
	return fmt.Sprintf("Error: unknown tool '%s'", r.Name)
}
