package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"chefbot/pipeline"
)

var askTemperatures []float64

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Ask ChefBot one question at several temperatures",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		question := argOr(args, 0, "Donne-moi une recette originale avec des courgettes.")
		asker := pipeline.NewAsker(current.client, current.model.ModelID)

		for _, temp := range askTemperatures {
			answer, err := asker.Ask(cmd.Context(), question, temp)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "\n--- temperature %.1f ---\n%s\n", temp, strings.TrimSpace(answer))
		}
		return nil
	},
}

func init() {
	askCmd.Flags().Float64SliceVar(&askTemperatures, "temperature", []float64{0.1, 0.7, 1.2}, "Temperatures to sample at")
}

func argOr(args []string, i int, def string) string {
	if len(args) > i && strings.TrimSpace(args[i]) != "" {
		return args[i]
	}
	return def
}
