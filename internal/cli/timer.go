package cli

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spec-kit/ticket-desk/internal/domain"
	"github.com/spec-kit/ticket-desk/internal/service"
	"github.com/spec-kit/ticket-desk/internal/ticketbase"
)

type timerStep func(ctx context.Context, key domain.TimerKey) (service.TimerSnapshot, error)

func timerCommand(env *deskEnv) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "timer",
		Short: "Track working time on a ticket",
	}
	cmd.AddCommand(
		timerStepCommand(env, "status", "Show the timer of a ticket", nil),
		timerStepCommand(env, "start", "Start the timer of a ticket", func(ctx context.Context, key domain.TimerKey) (service.TimerSnapshot, error) {
			return env.desk.Tracker.Start(ctx, key)
		}),
		timerStepCommand(env, "pause", "Pause a running timer", func(ctx context.Context, key domain.TimerKey) (service.TimerSnapshot, error) {
			return env.desk.Tracker.Pause(ctx, key)
		}),
		timerStepCommand(env, "resume", "Resume a paused timer", func(ctx context.Context, key domain.TimerKey) (service.TimerSnapshot, error) {
			return env.desk.Tracker.Resume(ctx, key)
		}),
		timerFinishCommand(env),
	)
	return cmd
}

func timerStepCommand(env *deskEnv, use, short string, step timerStep) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <ticket-id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := env.syncedTimer(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			snap := env.desk.Tracker.Snapshot(key)
			if step != nil {
				if snap, err = step(cmd.Context(), key); err != nil {
					return err
				}
			}
			return writeTimer(cmd.OutOrStdout(), snap)
		},
	}
}

func timerFinishCommand(env *deskEnv) *cobra.Command {
	var (
		description string
		statusID    int64
		minutes     int
	)
	cmd := &cobra.Command{
		Use:   "finish <ticket-id>",
		Short: "Stop a timer and book the time with a history entry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := env.syncedTimer(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			in := service.FinishInput{Description: description, StatusID: statusID}
			if cmd.Flags().Changed("minutes") {
				in.CorrectedMinutes = &minutes
			}
			snap, err := env.desk.Tracker.Finish(cmd.Context(), key, in)
			if err != nil {
				return err
			}
			return writeTimer(cmd.OutOrStdout(), snap)
		},
	}
	cmd.Flags().StringVar(&description, "description", "", "history entry text")
	cmd.Flags().Int64Var(&statusID, "status-id", 0, "ticket status after booking")
	cmd.Flags().IntVar(&minutes, "minutes", 0, "book these minutes instead of the tracked time")
	_ = cmd.MarkFlagRequired("description")
	_ = cmd.MarkFlagRequired("status-id")
	return cmd
}

// syncedTimer adopts the server's timer state, since a fresh process knows
// nothing about timers started elsewhere.
func (e *deskEnv) syncedTimer(ctx context.Context, rawID string) (domain.TimerKey, error) {
	tech, err := e.technician(ctx)
	if err != nil {
		return domain.TimerKey{}, err
	}
	id, err := strconv.ParseInt(rawID, 10, 64)
	if err != nil || id <= 0 {
		return domain.TimerKey{}, fmt.Errorf("invalid ticket id %q", rawID)
	}
	key := domain.TimerKey{TicketID: id, UserID: tech.ID}
	if _, err := e.desk.Tracker.Refresh(ctx, key); err != nil {
		if !errors.Is(err, ticketbase.ErrRateLimited) && !errors.Is(err, ticketbase.ErrTransport) {
			return domain.TimerKey{}, err
		}
		e.logger.Warn("timer state not confirmed by the server", zap.Int64("ticket_id", id), zap.Error(err))
	}
	return key, nil
}
