package cmd

import (
	"fmt"

	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/hkanersen/autopub-cli/internal/config"
	"github.com/hkanersen/autopub-cli/internal/observability"
)

// newPlanCmd creates the `plan` command: task planning without execution.
func newPlanCmd() *cobra.Command {
	var contextPairs map[string]string

	planCmd := &cobra.Command{
		Use:   "plan [goal]",
		Short: "Generates the task plan for a goal without executing anything",
		Args:  cobra.ExactArgs(1),
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return viper.BindPFlag("planner.max_steps", cmd.Flags().Lookup("max-steps"))
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.NewConfigFromViper(viper.GetViper())
			if err != nil {
				return err
			}
			logger := observability.GetLogger()

			goal := args[0]
			goalCtx := toGoalContext(contextPairs)

			p := newPlanner(cfg, logger)
			plan := p.GeneratePlan(cmd.Context(), goal, goalCtx, cfg.Planner.MaxSteps)

			out, err := jsoniter.MarshalIndent(plan, "", "  ")
			if err != nil {
				return fmt.Errorf("failed to render plan: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(out))
			return nil
		},
	}

	planCmd.Flags().StringToStringVar(&contextPairs, "context", nil, "goal context as key=value pairs")
	planCmd.Flags().Int("max-steps", 5, "maximum number of plan steps (1-10)")
	return planCmd
}

func toGoalContext(pairs map[string]string) map[string]any {
	if len(pairs) == 0 {
		return nil
	}
	goalCtx := make(map[string]any, len(pairs))
	for k, v := range pairs {
		goalCtx[k] = v
	}
	return goalCtx
}
