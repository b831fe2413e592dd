/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"errors"
	"os/signal"
	"syscall"

	"github.com/sarpras-lapor/apiserver/internal/events"
	"github.com/sarpras-lapor/apiserver/internal/mq"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// notifyCmd represents the notify command
var notifyCmd = &cobra.Command{
	Use:   "notify",
	Short: "Consume report events from the message queue",
	Long: `Subscribes to the domain event channel and logs every report and
asset event. Requires MQ_BACKEND to be set.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := setup()
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		broker, err := mq.Open(ctx, cfg.MQ)
		if err != nil {
			return err
		}
		if broker == nil {
			return errors.New("MQ_BACKEND is not set")
		}
		defer broker.Close()

		log := logger.WithFields(logrus.Fields{"component": "notify", "channel": cfg.MQ.Channel})
		log.Info("waiting for events")
		err = broker.Subscribe(ctx, cfg.MQ.Channel, func(ctx context.Context, msg mq.Message) error {
			event, err := events.Decode(msg)
			if err != nil {
				// Malformed payloads are dropped instead of redelivered forever.
				log.WithError(err).Warn("skipping malformed event")
				return nil
			}
			log.WithFields(logrus.Fields{
				"event":       event.Type,
				"laporan_id":  event.LaporanID,
				"sarpras_id":  event.SarprasID,
				"user_id":     event.UserID,
				"actor_id":    event.ActorID,
				"status":      event.Status,
				"occurred_at": event.OccurredAt,
			}).Info("event received")
			return nil
		})
		if err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(notifyCmd)
}
