// Package cli implements the ticket-desk command line.
package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spec-kit/ticket-desk/internal/app"
	"github.com/spec-kit/ticket-desk/internal/auth"
	"github.com/spec-kit/ticket-desk/internal/config"
	"github.com/spec-kit/ticket-desk/internal/domain"
	"github.com/spec-kit/ticket-desk/internal/observability"
)

// deskEnv is built once per invocation before any subcommand runs.
type deskEnv struct {
	verbose bool
	cfg     *config.Config
	logger  *zap.Logger
	desk    *app.App
}

// Execute runs the root command.
func Execute(ctx context.Context) error {
	return NewRootCommand().ExecuteContext(ctx)
}

// NewRootCommand assembles the command tree.
func NewRootCommand() *cobra.Command {
	return newRootCommand(&deskEnv{})
}

func newRootCommand(env *deskEnv) *cobra.Command {
	root := &cobra.Command{
		Use:          "ticket-desk",
		Short:        "Ticket lists, filters and time tracking for support technicians",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return env.load(cmd)
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			env.close()
		},
	}
	root.PersistentFlags().BoolVarP(&env.verbose, "verbose", "v", false, "log at the configured level instead of warnings only")

	root.AddCommand(
		serveCommand(env),
		loginCommand(env),
		logoutCommand(env),
		ticketsCommand(env),
		timerCommand(env),
	)
	return root
}

func (e *deskEnv) load(cmd *cobra.Command) error {
	if e.desk != nil {
		return nil
	}
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if !e.verbose && cmd.Name() != "serve" {
		cfg.Logger.Level = "warn"
	}
	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	e.cfg = cfg
	e.logger = logger
	e.desk = app.New(cmd.Context(), cfg, logger, app.Options{})
	return nil
}

func (e *deskEnv) close() {
	if e.desk != nil {
		e.desk.Close()
	}
	if e.logger != nil {
		_ = e.logger.Sync()
	}
}

// technician returns the logged-in technician or a hint to log in.
func (e *deskEnv) technician(ctx context.Context) (domain.Technician, error) {
	tech, err := e.desk.Auth.Current(ctx)
	if errors.Is(err, auth.ErrNotAuthenticated) {
		return domain.Technician{}, errors.New("not logged in, run: ticket-desk login")
	}
	return tech, err
}
