package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/zpam/spamscan/pkg/config"
	"github.com/zpam/spamscan/pkg/learning"
)

var modelJSON bool

var modelCmd = &cobra.Command{
	Use:   "model",
	Short: "Inspect and move classifier models",
	Long: `Inspect a classifier model blob and copy it between a file and the
Redis key configured under classifier.redis.`,
}

var modelInfoCmd = &cobra.Command{
	Use:   "info <model.json>",
	Short: "Print model statistics",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		nb, err := learning.LoadModel(args[0], nil)
		if err != nil {
			return err
		}
		if modelJSON {
			return writeJSON(cmd.OutOrStdout(), nb.Info(), true)
		}
		nb.PrintStats(cmd.OutOrStdout())
		return nil
	},
}

var modelPushCmd = &cobra.Command{
	Use:   "push <model.json>",
	Short: "Store a model file in Redis",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		// decode first so a broken blob never reaches the shared key
		nb, err := learning.LoadModel(args[0], nil)
		if err != nil {
			return err
		}
		data, err := nb.MarshalModel()
		if err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
		defer cancel()

		store, err := openRedisStore(ctx, cfg.Classifier.Redis)
		if err != nil {
			return err
		}
		defer store.Close()

		if err := store.Save(ctx, data); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✅ Stored %s at %s (%d documents)\n",
			args[0], cfg.Classifier.Redis.Key, nb.Info().TotalDocuments)
		return nil
	},
}

var modelPullCmd = &cobra.Command{
	Use:   "pull <model.json>",
	Short: "Write the Redis model to a file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
		defer cancel()

		store, err := openRedisStore(ctx, cfg.Classifier.Redis)
		if err != nil {
			return err
		}
		defer store.Close()

		data, err := store.Load(ctx)
		if err != nil {
			return err
		}
		if _, err := learning.UnmarshalModel(data, nil); err != nil {
			return fmt.Errorf("redis holds an unreadable model: %w", err)
		}
		if err := os.WriteFile(args[0], data, 0644); err != nil {
			return fmt.Errorf("failed to write model file: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✅ Wrote %s from %s\n", args[0], cfg.Classifier.Redis.Key)
		return nil
	},
}

func openRedisStore(ctx context.Context, rc config.RedisConfig) (*learning.RedisStore, error) {
	return learning.NewRedisStore(ctx, &learning.RedisConfig{
		RedisURL:    rc.URL,
		Key:         rc.Key,
		DatabaseNum: rc.DatabaseNum,
	})
}

func init() {
	modelInfoCmd.Flags().BoolVar(&modelJSON, "json", false, "Print JSON")

	modelCmd.AddCommand(modelInfoCmd)
	modelCmd.AddCommand(modelPushCmd)
	modelCmd.AddCommand(modelPullCmd)
}
