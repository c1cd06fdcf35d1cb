package main

import (
	"github.com/spf13/cobra"

	"wizardAPI/internal/database"
	"wizardAPI/internal/seed"
	"wizardAPI/repository"
)

func newSeedCmd() *cobra.Command {
	var (
		file  string
		prune bool
	)

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load the challenge catalog",
		Long:  "Upserts challenges by slug and their rituals by day. Without --file the built-in catalog is used.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := bootstrap()
			if err != nil {
				return err
			}
			defer log.Sync()

			catalog, err := seed.Default()
			if file != "" {
				catalog, err = seed.LoadFile(file)
			}
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			pool, err := database.NewPool(ctx, cfg)
			if err != nil {
				return err
			}
			defer pool.Close()

			report, err := seed.Apply(ctx, repository.NewPostgresCatalogRepository(pool), catalog, prune)
			if err != nil {
				return err
			}

			log.Info("catalog seeded",
				"challenges", report.Challenges,
				"rituals", report.Rituals,
				"rituals_deactivated", report.RitualsDeactivated,
				"challenges_deactivated", report.ChallengesDeactivated,
			)
			return nil
		},
	}

	cmd.Flags().StringVar(&file, "file", "", "path to a YAML catalog")
	cmd.Flags().BoolVar(&prune, "prune", false, "deactivate challenges missing from the catalog")

	return cmd
}
