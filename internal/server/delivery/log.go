package delivery

import (
	"context"

	"github.com/dmitrijs2005/authkeeper/internal/logging"
)

// LogDeliverer writes outbound messages to the structured log instead of an
// external transport. Intended for development and tests.
type LogDeliverer struct {
	logger logging.Logger
}

func NewLogDeliverer(logger logging.Logger) *LogDeliverer {
	return &LogDeliverer{logger: logger}
}

func (d *LogDeliverer) Deliver(ctx context.Context, destination string, message string) error {
	d.logger.Info(ctx, "delivering message", "destination", destination, "message", message)
	return nil
}
