package main

import (
	"github.com/spf13/cobra"

	"github.com/rushteam/tunekit/core"
	"github.com/rushteam/tunekit/hybrid"
)

func newRecommendCmd(c *cli) *cobra.Command {
	var (
		userID  string
		limit   int
		noCache bool
		bundle  core.ContextBundle
		rule    string
	)
	cmd := &cobra.Command{
		Use:   "recommend",
		Short: "Generate recommendations for a user",
		Example: `  tunekit recommend --user u1 --limit 10 --mood happy --activity workout
  tunekit recommend --user u1 --rule 'item.popularity > 0.5'`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withApp(cmd.Context(), func(a *app) error {
				res, err := a.recommender.Generate(cmd.Context(), userID, hybrid.Options{
					Limit:    limit,
					Context:  bundle,
					UseCache: !noCache,
					Rule:     rule,
				})
				if err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), res)
			})
		},
	}
	f := cmd.Flags()
	f.StringVarP(&userID, "user", "u", "", "user id")
	f.IntVarP(&limit, "limit", "n", 0, "number of recommendations (0 uses recommender.default_limit)")
	f.BoolVar(&noCache, "no-cache", false, "bypass the recommendation cache")
	f.StringVar(&bundle.Mood, "mood", "", "mood context (happy, sad, energetic, calm, ...)")
	f.StringVar(&bundle.Activity, "activity", "", "activity context (workout, study, party, ...)")
	f.StringVar(&bundle.TimeOfDay, "time-of-day", "", "time of day context (morning, afternoon, evening, night)")
	f.StringVar(&rule, "rule", "", "CEL filter expression over item/user/context")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}
