package main

import (
	"github.com/spf13/cobra"

	"github.com/rushteam/tunekit/pkg/logging"
)

func newClusterCmd(c *cli) *cobra.Command {
	var (
		k         int
		algorithm string
		seed      uint64
		tracks    []string
	)
	cmd := &cobra.Command{
		Use:   "cluster",
		Short: "Cluster tracks by audio features and label the clusters",
		RunE: func(cmd *cobra.Command, _ []string) error {
			opts := c.cfg.Cluster
			f := cmd.Flags()
			if f.Changed("k") {
				opts.K = k
			}
			if f.Changed("algorithm") {
				opts.Algorithm = algorithm
			}
			if f.Changed("seed") {
				opts.Seed = seed
			}
			return c.withApp(cmd.Context(), func(a *app) error {
				ids := tracks
				if len(ids) == 0 {
					ids = a.dataset.TrackIDs()
				}
				res, err := a.clusterer.Cluster(cmd.Context(), ids, opts)
				if err != nil {
					return err
				}
				c.logger.Info("clustering finished",
					logging.String("run_id", res.RunID),
					logging.String("algorithm", res.Algorithm),
					logging.Int("clusters", res.NonEmpty()),
					logging.Int("skipped", len(res.Skipped)))
				return writeJSON(cmd.OutOrStdout(), res)
			})
		},
	}
	f := cmd.Flags()
	f.IntVarP(&k, "k", "k", 0, "number of clusters (kmeans)")
	f.StringVar(&algorithm, "algorithm", "", "kmeans or density")
	f.Uint64Var(&seed, "seed", 0, "random seed for centroid initialization")
	f.StringSliceVar(&tracks, "tracks", nil, "track ids to cluster (default: whole catalog)")
	return cmd
}
