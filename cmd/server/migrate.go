package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ayush/ivr-designer/internal/store"
)

// NewMigrateCommand applies the store schema and, when MinIO is configured,
// makes sure the snapshot bucket exists.
func NewMigrateCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create database tables and the snapshot bucket",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, logger := opts.cfg, opts.logger

			backend, err := store.Open(ctx, cfg.StoreOptions(), logger)
			if err != nil {
				return fmt.Errorf("open store: %w", err)
			}
			defer backend.Close(context.Background())
			if err := store.Migrate(ctx, backend); err != nil {
				return fmt.Errorf("migrate store: %w", err)
			}

			if cfg.MinioEndpoint != "" {
				if _, err := store.NewMinioArchive(ctx,
					cfg.MinioEndpoint, cfg.MinioAccessKey,
					cfg.MinioSecretKey, cfg.MinioBucket, cfg.MinioUseSSL,
				); err != nil {
					return fmt.Errorf("minio bucket: %w", err)
				}
			}
			logger.Info("migration complete")
			return nil
		},
	}
}
