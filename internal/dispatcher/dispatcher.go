// Package dispatcher delivers composed responses through an external
// delivery capability under a bounded retry policy.
package dispatcher

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/JaimeStill/rapport/internal/reviews"
	"github.com/JaimeStill/rapport/pkg/retry"
)

// Dispatcher sends messages and reports a DispatchResult for each.
type Dispatcher struct {
	delivery Delivery
	retry    *retry.Config
	logger   *slog.Logger
}

func New(delivery Delivery, cfg *retry.Config, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		delivery: delivery,
		retry:    cfg,
		logger:   logger.With("system", "dispatcher", "delivery", delivery.Name()),
	}
}

// FromConfig builds a Dispatcher for the configured provider.
func FromConfig(cfg *Config, logger *slog.Logger) (*Dispatcher, error) {
	var delivery Delivery
	switch cfg.Provider {
	case ProviderSMTP:
		delivery = NewSMTPDelivery(cfg)
	case ProviderLog:
		delivery = NewLogDelivery(logger)
	default:
		return nil, fmt.Errorf("unknown delivery provider %q", cfg.Provider)
	}
	return New(delivery, &cfg.Retry, logger), nil
}

// Delivery returns the underlying delivery capability.
func (d *Dispatcher) Delivery() Delivery {
	return d.delivery
}

// Ping checks delivery connectivity when the capability supports it.
func (d *Dispatcher) Ping(ctx context.Context) error {
	if p, ok := d.delivery.(Pinger); ok {
		return p.Ping(ctx)
	}
	return nil
}

// Dispatch sends msg, retrying transport failures. It stops at the first
// successful attempt. The error is a *Error whenever the result is failed.
func (d *Dispatcher) Dispatch(ctx context.Context, msg *reviews.Message) (reviews.DispatchResult, error) {
	if msg == nil || msg.Recipient == "" {
		err := &Error{Err: fmt.Errorf("%w: missing recipient", ErrInvalidRecipient)}
		return failed(0, err), err
	}
	if !reviews.ValidEmail(msg.Recipient) {
		err := &Error{Err: fmt.Errorf("%w: %q", ErrInvalidRecipient, msg.Recipient)}
		return failed(0, err), err
	}

	attempts, err := retry.Do(ctx, d.retry, func(actx context.Context) error {
		err := classifyError(d.delivery.Send(actx, msg))
		if err != nil && !IsTransient(err) {
			return retry.Permanent(err)
		}
		return err
	}, func(attempt int, err error, wait time.Duration) {
		d.logger.Warn(
			"dispatch attempt failed, retrying",
			"message_id", msg.ID,
			"attempt", attempt,
			"wait", wait,
			"error", err,
		)
	})

	if err != nil {
		derr := &Error{Attempts: attempts, Err: classifyError(err)}
		return failed(attempts, derr), derr
	}

	return reviews.DispatchResult{
		Status:    reviews.DispatchSent,
		Attempts:  attempts,
		MessageID: msg.ID,
	}, nil
}

func failed(attempts int, err error) reviews.DispatchResult {
	return reviews.DispatchResult{
		Status:    reviews.DispatchFailed,
		Attempts:  attempts,
		LastError: err.Error(),
	}
}
