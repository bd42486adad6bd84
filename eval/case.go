// Package eval scores generated menus against a named dataset of constraint
// cases, using keyword rules and a model judge.
package eval

const DefaultDatasetName = "chefbot-menu-eval"

type Input struct {
	Constraints string `json:"constraints"`
}

type Expected struct {
	MustAvoid   []string `json:"must_avoid"`
	MustInclude []string `json:"must_include"`
}

type Case struct {
	ID       string   `json:"id,omitempty"`
	Input    Input    `json:"input"`
	Expected Expected `json:"expected"`
}

type Dataset struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Cases       []Case `json:"cases"`
}

// DefaultCases are the cases a dataset is seeded with on first use.
func DefaultCases() []Case {
	return []Case{
		{
			Input:    Input{Constraints: "Repas pour diabétique"},
			Expected: Expected{MustAvoid: []string{"sucre", "pâtes blanches", "sirop"}, MustInclude: []string{"légumes verts", "fibres"}},
		},
		{
			Input:    Input{Constraints: "Régime sans gluten, budget serré"},
			Expected: Expected{MustAvoid: []string{"blé", "farine de blé", "pâtes"}, MustInclude: []string{"riz", "légumineuses"}},
		},
		{
			Input:    Input{Constraints: "Sportif, haute teneur en protéines, pas de produits laitiers"},
			Expected: Expected{MustAvoid: []string{"lait", "fromage", "beurre"}, MustInclude: []string{"poulet", "oeufs", "lentilles"}},
		},
		{
			Input:    Input{Constraints: "Étudiant, cuisine avec seulement un micro-ondes, 20€/semaine"},
			Expected: Expected{MustAvoid: []string{"four", "plaques de cuisson"}, MustInclude: []string{"conserves", "pommes de terre"}},
		},
		{
			Input:    Input{Constraints: "Menu traditionnel français pour 6 convives, saison hiver"},
			Expected: Expected{MustAvoid: []string{"tomates", "fraises"}, MustInclude: []string{"vin rouge", "viande en sauce", "racines"}},
		},
	}
}

func defaultDataset(name string) Dataset {
	return Dataset{
		Name:        name,
		Description: "Évaluation des menus hebdomadaires de ChefBot",
		Cases:       DefaultCases(),
	}
}
