package dispatcher

import (
	"context"
	"log/slog"

	"github.com/JaimeStill/rapport/internal/reviews"
)

// Delivery is the external send capability. One Send call is one network
// attempt; retry belongs to the Dispatcher.
type Delivery interface {
	Send(ctx context.Context, msg *reviews.Message) error
	Name() string
}

// Pinger is implemented by deliveries that can verify connectivity without sending.
type Pinger interface {
	Ping(ctx context.Context) error
}

// LogDelivery writes messages to the logger instead of sending them.
type LogDelivery struct {
	logger *slog.Logger
}

func NewLogDelivery(logger *slog.Logger) *LogDelivery {
	return &LogDelivery{logger: logger.With("delivery", ProviderLog)}
}

func (d *LogDelivery) Name() string { return ProviderLog }

func (d *LogDelivery) Send(ctx context.Context, msg *reviews.Message) error {
	d.logger.InfoContext(ctx, "response composed",
		"message_id", msg.ID,
		"recipient", msg.Recipient,
		"subject", msg.Subject,
		"template", msg.Template,
		"body", msg.Body,
	)
	return nil
}

func (d *LogDelivery) Ping(context.Context) error { return nil }
