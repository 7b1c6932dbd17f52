// Command seed loads doctor accounts from a YAML file into the document store.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"medibook/internal/config"
	"medibook/internal/database"
	"medibook/internal/logging"
	"medibook/internal/repository"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		file    string
		timeout time.Duration
	)
	cmd := &cobra.Command{
		Use:          "seed",
		Short:        "Create or update doctor accounts from a YAML file",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			logger := logging.New(cfg.LogLevel)

			f, err := os.Open(file)
			if err != nil {
				return fmt.Errorf("open seed file: %w", err)
			}
			defer f.Close()
			seeds, err := parseSeed(f)
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			holder := database.NewHolder(cfg.Mongo)
			defer holder.Close(context.Background())

			if err := repository.EnsureIndexes(ctx, holder); err != nil {
				return fmt.Errorf("ensure indexes: %w", err)
			}
			if err := seedDoctors(ctx, repository.NewMongoDoctorRepository(holder), seeds, logger); err != nil {
				return err
			}
			logger.Info("seed complete", "doctors", len(seeds))
			return nil
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "doctors.yaml", "seed file")
	cmd.Flags().DurationVar(&timeout, "timeout", time.Minute, "overall timeout")
	return cmd
}
