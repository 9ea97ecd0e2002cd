package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const shutdownTimeout = 5 * time.Second

func serveCommand(env *deskEnv) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the local API and the background sync",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			server := env.desk.HTTP()
			if env.cfg.Sync.Enabled {
				go func() {
					if err := env.desk.Poller.Run(ctx); err != nil {
						env.logger.Error("poller failed", zap.Error(err))
					}
				}()
			}

			listenErr := make(chan error, 1)
			go func() {
				env.logger.Info("local api listening", zap.String("addr", env.cfg.App.Addr()))
				listenErr <- server.Listen(env.cfg.App.Addr())
			}()

			if err := waitForShutdown(ctx, env.logger, listenErr); err != nil {
				return err
			}
			cancel()
			return server.ShutdownWithTimeout(shutdownTimeout)
		},
	}
}

func waitForShutdown(ctx context.Context, logger *zap.Logger, listenErr <-chan error) error {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case sig := <-sigCh:
		logger.Info("shutting down", zap.String("signal", sig.String()))
	case <-ctx.Done():
		logger.Info("shutting down", zap.Error(ctx.Err()))
	case err := <-listenErr:
		return err
	}
	return nil
}
