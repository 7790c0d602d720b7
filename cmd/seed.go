/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"errors"
	"fmt"

	"github.com/jjudge-oj/practice/config"
	"github.com/jjudge-oj/practice/internal/db"
	"github.com/jjudge-oj/practice/internal/logging"
	"github.com/jjudge-oj/practice/internal/seed"
	"github.com/jjudge-oj/practice/internal/services"
	"github.com/jjudge-oj/practice/internal/store"
	"github.com/jjudge-oj/practice/types"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	seedTasksFile  string
	seedScoresFile string
)

// seedCmd represents the seed command
var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Load tasks and scores from YAML files",
	Long: `Loads tasks and leaderboard scores from YAML files. Usage:

	practice seed --tasks tasks.yaml --scores scores.yaml
`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if seedTasksFile == "" && seedScoresFile == "" {
			return errors.New("nothing to seed: pass --tasks and/or --scores")
		}

		cfg := config.LoadConfig()
		logger, err := logging.New(cfg.LogLevel)
		if err != nil {
			return err
		}
		defer func() { _ = logger.Sync() }()

		conn, err := db.Open(cmd.Context(), cfg)
		if err != nil {
			return fmt.Errorf("connect database: %w", err)
		}
		defer conn.Close()

		seeder := seed.New(
			services.NewTaskService(store.NewTaskRepository(conn)),
			store.NewScoreRepository(conn),
			services.NewUserService(store.NewUserRepository(conn)),
			logger,
		)

		if seedTasksFile != "" {
			n, err := seeder.TasksFile(cmd.Context(), seedTasksFile)
			if err != nil {
				return err
			}
			logger.Info("seeded tasks", zap.Int("count", n), zap.String("file", seedTasksFile))

			counts, err := seeder.LevelCounts(cmd.Context())
			if err != nil {
				return fmt.Errorf("count tasks: %w", err)
			}
			for _, level := range types.Levels {
				logger.Info("tasks stored", zap.String("level", string(level)), zap.Int("count", counts[level]))
			}
		}
		if seedScoresFile != "" {
			n, err := seeder.ScoresFile(cmd.Context(), seedScoresFile)
			if err != nil {
				return err
			}
			logger.Info("seeded scores", zap.Int("count", n), zap.String("file", seedScoresFile))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(seedCmd)

	seedCmd.Flags().StringVar(&seedTasksFile, "tasks", "", "YAML file with a list of tasks")
	seedCmd.Flags().StringVar(&seedScoresFile, "scores", "", "YAML file with a list of {email, score} entries")
}
