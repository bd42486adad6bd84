package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/expr-lang/expr"
	"github.com/modelcontextprotocol/go-sdk/jsonschema"

	"chefbot/tools/storage"
)

type Dish struct {
	Nom        string   `json:"nom"`
	Prix       float64  `json:"prix"`
	Categorie  string   `json:"cat"`
	Vegetarien bool     `json:"vege"`
	Allergenes []string `json:"allergenes"`
}

// Menu is the restaurant card searched by menu_search.
type Menu struct {
	Dishes []Dish `json:"dishes"`
}

func LoadMenu(ctx context.Context, state storage.State) (*Menu, error) {
	b, err := state.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load menu data: %w", err)
	}
	var m Menu
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, fmt.Errorf("failed to decode menu data: %w", err)
	}
	return &m, nil
}

type MenuSearch struct{ menu *Menu }

func NewMenuSearch(m *Menu) *MenuSearch { return &MenuSearch{menu: m} }

func (t *MenuSearch) Kind() Kind    { return KindMenuSearch }
func (t *MenuSearch) Name() string  { return "menu_search" }
func (t *MenuSearch) Title() string { return "Search Menu" }
func (t *MenuSearch) Description() string {
	return "Recherche des plats selon la catégorie, le prix max et les allergènes."
}

func (t *MenuSearch) InputSchema() *jsonschema.Schema {
	return &jsonschema.Schema{
		Type: "object",
		Properties: map[string]*jsonschema.Schema{
			"prix_max":         {Type: "number", Description: "Budget maximum par plat."},
			"categorie":        {Type: "string", Description: "entrée, plat ou dessert."},
			"allergene_absent": {Type: "string", Description: "Allergène à exclure (ex: 'gluten')."},
			"vegetarien":       {Type: "boolean", Description: "Filtrer les plats végétariens."},
		},
	}
}

const NoDishMatches = "Aucun plat ne correspond à vos critères."

// Run applies every filter that is present; a zero prix_max means no price filter.
func (t *MenuSearch) Run(ctx context.Context, input map[string]any) (string, error) {
	prixMax, hasPrix := numberArg(input, "prix_max")
	categorie, hasCat := stringArg(input, "categorie")
	allergene, hasAllergene := stringArg(input, "allergene_absent")
	vegetarien := boolArg(input, "vegetarien")

	categorie = strings.ToLower(categorie)
	allergene = strings.ToLower(allergene)

	var lines []string
	for _, d := range t.menu.Dishes {
		if hasPrix && prixMax != 0 && d.Prix > prixMax {
			continue
		}
		if hasCat && d.Categorie != categorie {
			continue
		}
		if vegetarien && !d.Vegetarien {
			continue
		}
		if hasAllergene && containsFold(d.Allergenes, allergene) {
			continue
		}
		lines = append(lines, fmt.Sprintf("- %s (%s€)", d.Nom, strconv.FormatFloat(d.Prix, 'f', -1, 64)))
	}
	if len(lines) == 0 {
		return NoDishMatches, nil
	}
	return strings.Join(lines, "\n"), nil
}

func containsFold(list []string, want string) bool {
	for _, s := range list {
		if strings.ToLower(s) == want {
			return true
		}
	}
	return false
}

// Calculate evaluates an arithmetic expression restricted to digits, operators,
// dots, parentheses and spaces.
type Calculate struct{}

func NewCalculate() *Calculate { return &Calculate{} }

func (t *Calculate) Kind() Kind    { return KindCalculate }
func (t *Calculate) Name() string  { return "calculate" }
func (t *Calculate) Title() string { return "Calculate" }
func (t *Calculate) Description() string {
	return "Évalue une expression mathématique pour calculer le total."
}

func (t *Calculate) InputSchema() *jsonschema.Schema {
	return &jsonschema.Schema{
		Type: "object",
		Properties: map[string]*jsonschema.Schema{
			"expression": {Type: "string", Description: "L'opération à effectuer (ex: '18 + 20 + 15')."},
		},
		Required: []string{"expression"},
	}
}

const calcAllowed = "0123456789+-*/.() "

func (t *Calculate) Run(ctx context.Context, input map[string]any) (string, error) {
	expression, _ := stringArg(input, "expression")
	for _, c := range expression {
		if !strings.ContainsRune(calcAllowed, c) {
			return "Erreur: caractères non autorisés.", nil
		}
	}
	out, err := expr.Eval(expression, nil)
	if err != nil {
		return fmt.Sprintf("Erreur de calcul: %v", err), nil
	}
	switch v := out.(type) {
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), nil
	default:
		return fmt.Sprint(v), nil
	}
}

// NewRestaurantRegistry builds the registry offered to the restaurant waiter loop.
func NewRestaurantRegistry(m *Menu) (*Registry, error) {
	return NewRegistry(NewMenuSearch(m), NewCalculate())
}
