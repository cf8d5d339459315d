/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/smartkids/tutoring-api/internal/mq"
	"github.com/smartkids/tutoring-api/types"
	"github.com/spf13/cobra"
)

// notifierCmd consumes enrollment events. It logs each one; delivery to
// tutors and students (email, push) plugs in behind handleEnrollmentEvent.
var notifierCmd = &cobra.Command{
	Use:   "notifier",
	Short: "Consume enrollment events",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger := loadRuntime()

		broker, err := mq.Open(cmd.Context(), cfg.MQ)
		if err != nil {
			return err
		}
		if broker == nil {
			return errors.New("MQ_BACKEND is not configured")
		}
		defer broker.Close()

		logger.Info("notifier started", "backend", cfg.MQ.Backend, "channel", cfg.MQ.EnrollmentChannel)
		err = broker.Subscribe(cmd.Context(), cfg.MQ.EnrollmentChannel, func(ctx context.Context, msg mq.Message) error {
			return handleEnrollmentEvent(ctx, logger, msg)
		})
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	},
}

func init() {
	rootCmd.AddCommand(notifierCmd)
}

// handleEnrollmentEvent acks malformed payloads after logging them.
func handleEnrollmentEvent(ctx context.Context, logger *slog.Logger, msg mq.Message) error {
	var event types.EnrollmentEvent
	if err := json.Unmarshal(msg.Data, &event); err != nil {
		logger.ErrorContext(ctx, "discard malformed enrollment event", "message_id", msg.ID, "error", err)
		return nil
	}

	switch event.Type {
	case types.EnrollmentCreated, types.EnrollmentEnded:
	default:
		logger.WarnContext(ctx, "discard unknown enrollment event", "message_id", msg.ID, "type", event.Type)
		return nil
	}
	if event.TutorUsername == "" || event.StudentUsername == "" {
		logger.WarnContext(ctx, "discard enrollment event without participants", "message_id", msg.ID)
		return nil
	}

	logger.InfoContext(ctx, "enrollment event",
		"message_id", msg.ID,
		"type", event.Type,
		"tutor", event.TutorUsername,
		"student", event.StudentUsername,
		"occurred_at", event.OccurredAt,
	)
	return nil
}
