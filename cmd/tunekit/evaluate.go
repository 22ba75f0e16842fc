package main

import (
	"github.com/spf13/cobra"

	"github.com/rushteam/tunekit/pkg/logging"
)

func newEvaluateCmd(c *cli) *cobra.Command {
	var (
		users   int
		kValues []int
		holdout float64
	)
	cmd := &cobra.Command{
		Use:   "evaluate",
		Short: "Evaluate the recommender offline with a chronological holdout",
		RunE: func(cmd *cobra.Command, _ []string) error {
			opts := c.cfg.Evaluation
			f := cmd.Flags()
			if f.Changed("users") {
				opts.TestSetSize = users
			}
			if f.Changed("k") {
				opts.KValues = kValues
			}
			if f.Changed("holdout") {
				opts.HoldoutRatio = holdout
			}
			return c.withApp(cmd.Context(), func(a *app) error {
				run, err := a.harness.Run(cmd.Context(), opts)
				if err != nil {
					return err
				}
				c.logger.Info("evaluation finished",
					logging.String("run_id", run.ID),
					logging.Int("evaluated", len(run.Splits)),
					logging.Int("failed", len(run.FailedUsers)))
				return writeJSON(cmd.OutOrStdout(), run)
			})
		},
	}
	f := cmd.Flags()
	f.IntVar(&users, "users", 0, "maximum number of users to evaluate")
	f.IntSliceVar(&kValues, "k", nil, "cutoffs, e.g. --k 5,10,20")
	f.Float64Var(&holdout, "holdout", 0, "fraction of each history held out for testing")
	return cmd
}
