package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"chefbot/pipeline"
	"chefbot/slack"
)

var (
	flagPromptSet string
	flagSlack     bool
)

var menuCmd = &cobra.Command{
	Use:   "menu [constraints]",
	Short: "Plan a menu through the plan, execute and synthesize chain",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		constraints := argOr(args, 0, "Végétarien, budget serré, 4 personnes")

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

		res := orch.Run(ctx, constraints)
		dump(res)
		if !res.OK() {
			slog.Error("RESULT: Menu generation failed", "error", res.Message)
			return fmt.Errorf("%s", res.Message)
		}
		fmt.Fprintln(cmd.OutOrStdout(), res.Payload)

		if flagSlack {
			if current.agent.SlackWebhookURL == "" {
				return fmt.Errorf("SLACK_WEBHOOK_URL is not set")
			}
			sc := slack.NewClient(current.agent.SlackWebhookURL, httpClient(current.provider))
			if err := sc.PostMenu(ctx, current.agent.SlackChannel, constraints, res.Payload); err != nil {
				slog.Error("RESULT: Failed to post menu to Slack", "error", err)
				return err
			}
			slog.Info("RESULT: Menu posted to Slack", "channel", current.agent.SlackChannel)
		}
		return nil
	},
}

func init() {
	menuCmd.Flags().StringVar(&flagPromptSet, "prompts", "", "Prompt set: weekly or daily (default from PROMPT_SET)")
	menuCmd.Flags().BoolVar(&flagSlack, "slack", false, "Post the menu to the Slack webhook")
}
