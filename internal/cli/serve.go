package cli

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/campusinsight/sheetsql"
	"github.com/campusinsight/sheetsql/internal/config"
	"github.com/campusinsight/sheetsql/internal/server"
)

func newServeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve reports over HTTP",
		Long:  `Serves GET /api/reports and GET /api/reports/{name} as JSON until interrupted.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			cfg, err := getConfig(ctx)
			if err != nil {
				return err
			}
			logger := config.GetLogger(ctx)

			db, err := sheetsql.OpenStore(cfg.Store.Path, cfg.Store.LockTimeout)
			if err != nil {
				return err
			}
			defer func() {
				_ = db.Close()
			}()

			resolver := sheetsql.NewResolver(db, sheetsql.ResolverConfig{DefaultTable: cfg.Store.DefaultTable},
				sheetsql.WithResolverLogger(logger))

			srv := server.NewServer(server.Config{
				Reporter:      resolver,
				Addr:          cfg.Server.Addr,
				SessionSecret: cfg.Server.SessionSecret,
				Roles:         cfg.Server.Roles,
				Logger:        logger,
			})
			return srv.Serve(ctx)
		},
	}
	cmd.Flags().String("addr", "", "listen address (default :5001)")
	return cmd
}
