package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/pretext-labs/vish/internal/api"
	"github.com/pretext-labs/vish/internal/config"
	"github.com/pretext-labs/vish/internal/store"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the run-history API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			setupLogging(cfg.LogLevel)

			if cfg.DatabaseURL == "" {
				return fmt.Errorf("DATABASE_URL is required")
			}

			ctx := context.Background()
			db, err := store.New(ctx, cfg.DatabaseURL)
			if err != nil {
				return fmt.Errorf("connect to database: %w", err)
			}
			defer db.Close()
			if err := db.Init(ctx); err != nil {
				return err
			}
			slog.Info("database connected")

			return api.NewServer(cfg.Port, db, slog.Default()).Start()
		},
	}
}
