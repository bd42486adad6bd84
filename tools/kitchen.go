package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/jsonschema"

	"chefbot/tools/storage"
)

// Recipe is one named recipe. Recipes are kept in file order because lookup
// returns the first match.
type Recipe struct {
	Name         string `json:"name"`
	Instructions string `json:"instructions"`
}

type DietaryInfo struct {
	Calories   int      `json:"calories"`
	Allergenes []string `json:"allergenes"`
}

// Kitchen is the fridge, recipe and dietary data shared by the kitchen tools.
// It is loaded once and never mutated.
type Kitchen struct {
	Fridge      []string               `json:"fridge"`
	Recipes     []Recipe               `json:"recipes"`
	DietaryInfo map[string]DietaryInfo `json:"dietary_info"`
}

// LoadKitchen reads and decodes the kitchen tables from state.
func LoadKitchen(ctx context.Context, state storage.State) (*Kitchen, error) {
	b, err := state.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load kitchen data: %w", err)
	}
	var k Kitchen
	if err := json.Unmarshal(b, &k); err != nil {
		return nil, fmt.Errorf("failed to decode kitchen data: %w", err)
	}
	return &k, nil
}

// CheckFridge lists the fridge contents.
type CheckFridge struct{ kitchen *Kitchen }

func NewCheckFridge(k *Kitchen) *CheckFridge { return &CheckFridge{kitchen: k} }

func (t *CheckFridge) Kind() Kind    { return KindCheckFridge }
func (t *CheckFridge) Name() string  { return "check_fridge" }
func (t *CheckFridge) Title() string { return "Check Fridge" }
func (t *CheckFridge) Description() string {
	return "Retourne une liste d'ingrédients disponibles dans le frigo"
}

func (t *CheckFridge) InputSchema() *jsonschema.Schema {
	return &jsonschema.Schema{
		Type:       "object",
		Properties: map[string]*jsonschema.Schema{},
	}
}

func (t *CheckFridge) Run(ctx context.Context, input map[string]any) (string, error) {
	return strings.Join(t.kitchen.Fridge, ", "), nil
}

// GetRecipe returns the first recipe whose name contains the requested dish.
type GetRecipe struct{ kitchen *Kitchen }

func NewGetRecipe(k *Kitchen) *GetRecipe { return &GetRecipe{kitchen: k} }

func (t *GetRecipe) Kind() Kind          { return KindGetRecipe }
func (t *GetRecipe) Name() string        { return "get_recipe" }
func (t *GetRecipe) Title() string       { return "Get Recipe" }
func (t *GetRecipe) Description() string { return "Retourne une recette pour un plat" }

func (t *GetRecipe) InputSchema() *jsonschema.Schema {
	return &jsonschema.Schema{
		Type: "object",
		Properties: map[string]*jsonschema.Schema{
			"dish_name": {Type: "string", Description: "Nom du plat"},
		},
		Required: []string{"dish_name"},
	}
}

const RecipeNotFound = "Recette non trouvée."

func (t *GetRecipe) Run(ctx context.Context, input map[string]any) (string, error) {
	dish, err := requireString(input, "dish_name")
	if err != nil {
		return "", err
	}
	dish = strings.ToLower(dish)
	for _, r := range t.kitchen.Recipes {
		if strings.Contains(r.Name, dish) {
			return r.Instructions, nil
		}
	}
	return RecipeNotFound, nil
}

// CheckDietaryInfo reports calories and allergens for one ingredient.
type CheckDietaryInfo struct{ kitchen *Kitchen }

func NewCheckDietaryInfo(k *Kitchen) *CheckDietaryInfo { return &CheckDietaryInfo{kitchen: k} }

func (t *CheckDietaryInfo) Kind() Kind    { return KindCheckDietaryInfo }
func (t *CheckDietaryInfo) Name() string  { return "check_dietary_info" }
func (t *CheckDietaryInfo) Title() string { return "Check Dietary Info" }
func (t *CheckDietaryInfo) Description() string {
	return "Donne les infos nutritionnelles d'un ingrédient"
}

func (t *CheckDietaryInfo) InputSchema() *jsonschema.Schema {
	return &jsonschema.Schema{
		Type: "object",
		Properties: map[string]*jsonschema.Schema{
			"ingredient": {Type: "string", Description: "Nom de l'ingrédient"},
		},
		Required: []string{"ingredient"},
	}
}

func (t *CheckDietaryInfo) Run(ctx context.Context, input map[string]any) (string, error) {
	ingredient, err := requireString(input, "ingredient")
	if err != nil {
		return "", err
	}
	info, ok := t.kitchen.DietaryInfo[strings.ToLower(ingredient)]
	if !ok {
		return fmt.Sprintf("Pas d'infos pour %s", ingredient), nil
	}
	if info.Allergenes == nil {
		info.Allergenes = []string{}
	}
	b, err := json.Marshal(info)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Infos pour %s: %s", ingredient, b), nil
}

// NewKitchenRegistry builds the registry offered to the kitchen tool loop.
func NewKitchenRegistry(k *Kitchen) (*Registry, error) {
	return NewRegistry(NewCheckFridge(k), NewGetRecipe(k), NewCheckDietaryInfo(k))
}
