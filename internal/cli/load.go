package cli

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/campusinsight/sheetsql"
	"github.com/campusinsight/sheetsql/internal/config"
	"github.com/campusinsight/sheetsql/internal/remote"
)

func newLoadCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "load",
		Short: "Load every sheet of the source workbook into the store",
		Long: `Reads the configured workbook and replaces one table per sheet in the store.
Table and column names are sanitized and column types inferred from the values.
A run stops at the first table that fails; tables written before it are kept.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			cfg, err := getConfig(ctx)
			if err != nil {
				return err
			}
			logger := config.GetLogger(ctx)

			source, err := newSource(ctx, cfg, logger)
			if err != nil {
				return err
			}

			loader := sheetsql.NewLoader(sheetsql.LoaderConfig{
				Source:          source,
				DestinationPath: cfg.Store.Path,
				Retry: sheetsql.RetryPolicy{
					MaxAttempts: cfg.Retry.Attempts,
					Delay:       cfg.Retry.Delay,
				},
				LockTimeout: cfg.Store.LockTimeout,
			}, sheetsql.WithLogger(logger))

			report, err := loader.Run(ctx)
			if report != nil {
				out := cmd.OutOrStdout()
				for _, table := range report.Tables {
					_, _ = fmt.Fprintln(out, table.String())
				}
				for _, name := range report.Skipped {
					_, _ = fmt.Fprintf(out, "%s: skipped (empty sheet)\n", name)
				}
			}
			return err
		},
	}
}

// newSource builds the workbook source selected by cfg.
func newSource(ctx context.Context, cfg *config.Config, logger *slog.Logger) (sheetsql.Source, error) {
	switch cfg.Source.Kind {
	case config.SourceKindS3:
		s3cfg := remote.S3Config{
			Bucket:  cfg.Source.S3.Bucket,
			Key:     cfg.Source.S3.Key,
			Region:  cfg.Source.S3.Region,
			Profile: cfg.Source.S3.Profile,
		}
		client, err := remote.NewS3Client(ctx, s3cfg)
		if err != nil {
			return nil, err
		}
		return remote.NewS3Source(client, s3cfg.Bucket, s3cfg.Key, logger), nil
	default:
		return sheetsql.NewFileSource(cfg.Source.Path), nil
	}
}
