package services

import (
	"context"

	"github.com/sarpras-lapor/apiserver/internal/events"
	"github.com/sirupsen/logrus"
)

// publish delivers event after the write it describes has committed.
// Failures are logged and otherwise ignored.
func publish(ctx context.Context, publisher *events.Publisher, logger logrus.FieldLogger, event events.Event) {
	if err := publisher.Publish(ctx, event); err != nil {
		logger.WithError(err).WithField("event", event.Type).Warn("failed to publish event")
	}
}
