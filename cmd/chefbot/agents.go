package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/spf13/cobra"

	"chefbot/toolloop"
	"chefbot/tools"
	"chefbot/tools/storage"
)

var kitchenCmd = &cobra.Command{
	Use:   "kitchen [question]",
	Short: "Answer a question with the fridge, recipe and dietary tools",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		k, err := loadKitchen(ctx)
		if err != nil {
			return err
		}
		loop, err := toolloop.NewKitchenAssistant(deps(), k, toolloop.Config{
			Model:         current.model.AgentModelID,
			MaxIterations: current.agent.MaxIterations,
			Temperature:   current.model.Temperature,
			MaxTokens:     int(current.model.MaxTokens),
		})
		if err != nil {
			return err
		}

		out, err := loop.Run(ctx, argOr(args, 0, "Qu'est-ce que je peux cuisiner avec ce qu'il y a dans le frigo ? Donne la recette."))
		if err != nil {
			return err
		}
		printAgentOutput(cmd.OutOrStdout(), out)
		return nil
	},
}

var restaurantCmd = &cobra.Command{
	Use:   "restaurant",
	Short: "Talk to the restaurant waiter, one line per turn",
	Long: `Starts a conversation with the waiter agent. Each line read from stdin is
one turn; the waiter remembers the previous turns. Without input, a scripted
order for a table of four is played.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		m, err := loadMenu(ctx)
		if err != nil {
			return err
		}
		waiter, err := toolloop.NewWaiter(deps(), m, toolloop.Config{
			Model:       current.model.AgentModelID,
			Temperature: current.model.Temperature,
			MaxTokens:   int(current.model.MaxTokens),
		})
		if err != nil {
			return err
		}

		turns := readTurns(cmd.InOrStdin())
		if len(turns) == 0 {
			turns = []string{
				"Bonjour, nous sommes 4 : un végétarien, une personne sans gluten et deux sans contraintes. Budget 80€ maximum.",
				"Finalement, remplace le dessert du végétarien par quelque chose de moins cher et donne le nouveau total.",
			}
		}

		session := waiter.NewSession()
		for _, turn := range turns {
			fmt.Fprintf(cmd.OutOrStdout(), "> %s\n", turn)
			out, err := session.Send(ctx, turn)
			if err != nil {
				return err
			}
			printAgentOutput(cmd.OutOrStdout(), out)
		}
		dump(session.Messages())
		return nil
	},
}

var brigadeCmd = &cobra.Command{
	Use:   "brigade [request]",
	Short: "Delegate a menu request to the chef, nutritionist and budget agents",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		k, err := loadKitchen(ctx)
		if err != nil {
			return err
		}
		manager, err := toolloop.NewBrigade(deps(), k, toolloop.BrigadeConfig{
			Model:       current.model.AgentModelID,
			Temperature: current.model.Temperature,
			MaxTokens:   int(current.model.MaxTokens),
		})
		if err != nil {
			return err
		}

		out, err := manager.Run(ctx, argOr(args, 0,
			"Prépare un menu de 4 services pour 8 personnes (2 végé, 1 sans gluten, 1 sans arachides). Budget max: 120€. "+
				"Demande au Chef les noms des plats et au Budget Agent le calcul final. Sois bref."))
		if err != nil {
			return err
		}
		printAgentOutput(cmd.OutOrStdout(), out)
		return nil
	},
}

func deps() toolloop.Deps {
	return toolloop.Deps{
		Client: current.client,
		Logger: current.logger,
		Tracer: current.loopTracer(),
		Meter:  current.loopMeter(),
	}
}

func printAgentOutput(w io.Writer, out string) {
	if toolloop.IsMaxIterations(out) {
		slog.Warn("RESULT: Agent stopped at the iteration cap")
	}
	fmt.Fprintln(w, out)
}

func readTurns(r io.Reader) []string {
	// An interactive terminal means no piped script.
	if f, ok := r.(*os.File); ok {
		if st, err := f.Stat(); err == nil && st.Mode()&os.ModeCharDevice != 0 {
			return nil
		}
	}
	var turns []string
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		if line := strings.TrimSpace(sc.Text()); line != "" {
			turns = append(turns, line)
		}
	}
	return turns
}

func loadKitchen(ctx context.Context) (*tools.Kitchen, error) {
	state, err := artifactState(ctx, current.agent.ArtifactsKitchenPath, current.agent.KitchenS3Key, storage.DefaultKitchenState())
	if err != nil {
		return nil, err
	}
	k, err := tools.LoadKitchen(ctx, state)
	if err != nil {
		return nil, err
	}
	slog.Info("SETUP: Kitchen data loaded", "fridge_items", len(k.Fridge), "recipes", len(k.Recipes))
	return k, nil
}

func loadMenu(ctx context.Context) (*tools.Menu, error) {
	state, err := artifactState(ctx, current.agent.ArtifactsMenuPath, current.agent.MenuS3Key, storage.DefaultMenuState())
	if err != nil {
		return nil, err
	}
	m, err := tools.LoadMenu(ctx, state)
	if err != nil {
		return nil, err
	}
	slog.Info("SETUP: Restaurant menu loaded", "dishes", len(m.Dishes))
	return m, nil
}

// artifactState reads from S3 when a bucket is configured, otherwise from the
// local path, otherwise from the embedded data.
func artifactState(ctx context.Context, path, key string, fallback storage.State) (storage.State, error) {
	if bucket := current.agent.ArtifactsBucket; bucket != "" {
		awsCfg, err := config.LoadDefaultConfig(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to load AWS config: %w", err)
		}
		return storage.NewS3State(s3.NewFromConfig(awsCfg), bucket, key), nil
	}
	return storage.Resolve(path, fallback), nil
}
