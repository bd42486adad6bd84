package main

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"chefbot"
	"chefbot/eval"
	"chefbot/pipeline"
)

var (
	flagEvalMemory bool
	flagEvalJSON   bool
)

var evalCmd = &cobra.Command{
	Use:   "eval",
	Short: "Score generated menus against the evaluation dataset",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		var store eval.Store
		if flagEvalMemory {
			store = eval.NewMemoryStore()
		} else {
			s, err := eval.OpenSQLite(current.eval.DBPath)
			if err != nil {
				return err
			}
			defer s.Close()
			store = s
		}

		name := current.agent.PromptSet
		if flagPromptSet != "" {
			name = flagPromptSet
		}
		prompts, err := pipeline.LookupPromptSet(name)
		if err != nil {
			return err
		}
		orch := pipeline.New(current.client, prompts, pipeline.Config{
			Model:        current.model.ModelID,
			PlannerModel: current.model.PlannerModelID,
			MaxTokens:    int(current.model.MaxTokens),
		}, current.pipelineTracer(), current.pipelineMeter())

		harness := eval.NewHarness(orch,
			eval.NewJudge(current.client, current.model.JudgeModelID, current.tracer.Tracer(chefbot.TracerNameEval)),
			store,
			eval.HarnessConfig{Model: current.model.ModelID, PromptSet: prompts.Name, Concurrency: current.eval.Concurrency},
			current.tracer.Tracer(chefbot.TracerNameEval),
			current.meter.Meter(chefbot.TracerNameEval),
		)

		run, err := harness.Run(ctx, current.eval.DatasetName)
		if err != nil {
			return err
		}
		dump(run)

		if flagEvalJSON {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(run)
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Run %s on %s (%d cases)\n\n", run.ID, run.Dataset, len(run.Items))
		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "CASE\tSAFETY\tINCLUSION\tPERTINENCE\tCREATIVITE\tPRATICITE\tERROR")
		for _, item := range run.Items {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
				item.Case.Input.Constraints,
				scoreCell(item, eval.ScoreSafety),
				scoreCell(item, eval.ScoreInclusion),
				scoreCell(item, eval.ScorePertinence),
				scoreCell(item, eval.ScoreCreativite),
				scoreCell(item, eval.ScorePraticite),
				item.Error,
			)
		}
		return tw.Flush()
	},
}

func init() {
	evalCmd.Flags().BoolVar(&flagEvalMemory, "memory", false, "Keep the dataset and results in memory instead of SQLite")
	evalCmd.Flags().BoolVar(&flagEvalJSON, "json", false, "Print the run as JSON")
	evalCmd.Flags().StringVar(&flagPromptSet, "prompts", "", "Prompt set: weekly or daily (default from PROMPT_SET)")
}

func scoreCell(item eval.ItemResult, name string) string {
	v, ok := item.Score(name)
	if !ok {
		return "-"
	}
	return fmt.Sprintf("%.2f", v)
}
