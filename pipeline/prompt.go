package pipeline

import (
	"fmt"
	"sort"
	"strings"

	"chefbot/llm"
)

// PromptSet holds the prompts and sampling settings of one menu pipeline
// variant. User templates are fmt formats: the planner gets the constraints,
// the executor gets the step then the rendered history, the synthesizer gets
// the constraints then the rendered results.
type PromptSet struct {
	Name string

	PlannerSystem      string
	PlannerUser        string
	PlannerTemperature float64
	// UsePlannerModel routes planning to Config.PlannerModel instead of Config.Model.
	UsePlannerModel bool

	ExecutorSystem      string
	ExecutorUser        string
	ExecutorTemperature float64
	NoHistory           string

	SynthesizerSystem      string
	SynthesizerUser        string
	SynthesizerTemperature float64
}

// Weekly plans a week of menus in three concrete steps.
var Weekly = PromptSet{
	Name: "weekly",

	PlannerUser: `Tu es un planificateur culinaire expert.
Décompose la création d'un menu hebdomadaire selon ces contraintes : %s.
Génère 3 étapes concrètes (ex: 'identifier les protéines', 'choisir les légumes', 'équilibrer les repas').

RETOURNE UNIQUEMENT DU JSON au format suivant :
{
    "steps": ["étape 1", "étape 2", "étape 3"],
    "reasoning": "explication courte"
}`,
	PlannerTemperature: 0.3,
	UsePlannerModel:    true,

	ExecutorUser: `Exécute cette étape : %s
Contexte précédent : %s`,
	ExecutorTemperature: 0.7,
	NoHistory:           "Aucun",

	SynthesizerUser: `Synthétise un menu hebdomadaire basé sur : %s.
Résultats des étapes : %s`,
	SynthesizerTemperature: 0.5,
}

// Daily plans breakfast, lunch and dinner in three logical steps.
var Daily = PromptSet{
	Name: "daily",

	PlannerSystem: "Tu es l'assistant de planification de ChefBot. Décompose la création d'un menu complet " +
		"(Petit-déjeuner, Déjeuner, Dîner) en 3 étapes logiques. " +
		"Réponds UNIQUEMENT en JSON.",
	PlannerUser:        "Contraintes : %s. \nFormat: {'steps': ['étape 1', 'étape 2', ...], 'reasoning': '...'}",
	PlannerTemperature: 0.4,

	ExecutorSystem: "Tu es ChefBot, expert en cuisine de saison. Exécute précisément l'étape demandée " +
		"en tenant compte du travail déjà effectué précédemment.",
	ExecutorUser:        "Historique du menu :\n%[2]s\n\nÉtape à réaliser : %[1]s",
	ExecutorTemperature: 0.4,
	NoHistory:           "Aucun historique.",

	SynthesizerSystem: "Tu es ChefBot. Compile les réflexions précédentes en un menu hebdomadaire structuré, " +
		"élégant et respectant les contraintes de saison.",
	SynthesizerUser:        "Contraintes : %s\n\nTravail préparatoire :\n%s",
	SynthesizerTemperature: 0.4,
}

var promptSets = map[string]PromptSet{
	Weekly.Name: Weekly,
	Daily.Name:  Daily,
}

// LookupPromptSet returns the prompt set registered under name.
func LookupPromptSet(name string) (PromptSet, error) {
	ps, ok := promptSets[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		names := make([]string, 0, len(promptSets))
		for n := range promptSets {
			names = append(names, n)
		}
		sort.Strings(names)
		return PromptSet{}, fmt.Errorf("unknown prompt set %q (want one of %s)", name, strings.Join(names, ", "))
	}
	return ps, nil
}

// ChefPersona is the system prompt used for single questions.
const ChefPersona = "Tu es ChefBot, un grand chef cuisinier français spécialisé en cuisine de saison. " +
	"Ton expertise porte sur les produits frais du terroir. " +
	"Réponds avec élégance et conseille toujours des ingrédients de saison."

func (ps PromptSet) messages(system, user string) []llm.Message {
	var msgs []llm.Message
	if system != "" {
		msgs = append(msgs, llm.System(system))
	}
	return append(msgs, llm.User(user))
}
