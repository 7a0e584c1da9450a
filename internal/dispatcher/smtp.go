package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/wneessen/go-mail"

	"github.com/JaimeStill/rapport/internal/reviews"
)

// SMTPDelivery sends messages through an SMTP relay. Each Send dials a new
// connection so a failed attempt leaves no session state behind.
type SMTPDelivery struct {
	cfg     *Config
	options []mail.Option
}

func NewSMTPDelivery(cfg *Config) *SMTPDelivery {
	opts := []mail.Option{
		mail.WithPort(cfg.Port),
		mail.WithTimeout(cfg.Retry.TimeoutDuration()),
	}

	if cfg.TLS {
		opts = append(opts, mail.WithTLSPolicy(mail.TLSMandatory))
	} else {
		opts = append(opts, mail.WithTLSPolicy(mail.TLSOpportunistic))
	}

	if cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(cfg.Username),
			mail.WithPassword(cfg.Password),
		)
	}

	return &SMTPDelivery{cfg: cfg, options: opts}
}

func (d *SMTPDelivery) Name() string {
	return fmt.Sprintf("%s/%s:%d", ProviderSMTP, d.cfg.Host, d.cfg.Port)
}

func (d *SMTPDelivery) Send(ctx context.Context, msg *reviews.Message) error {
	m, err := d.build(msg)
	if err != nil {
		return err
	}

	client, err := mail.NewClient(d.cfg.Host, d.options...)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidMessage, err)
	}

	if err := client.DialAndSendWithContext(ctx, m); err != nil {
		return mapSMTPError(err)
	}
	return nil
}

// Ping dials the relay and closes the session without sending.
func (d *SMTPDelivery) Ping(ctx context.Context) error {
	client, err := mail.NewClient(d.cfg.Host, d.options...)
	if err != nil {
		return err
	}
	if err := client.DialWithContext(ctx); err != nil {
		return mapSMTPError(err)
	}
	return client.Close()
}

func (d *SMTPDelivery) build(msg *reviews.Message) (*mail.Msg, error) {
	m := mail.NewMsg()

	if err := m.FromFormat(d.cfg.FromName, d.cfg.FromEmail); err != nil {
		return nil, fmt.Errorf("%w: from: %w", ErrInvalidMessage, err)
	}
	if err := m.To(msg.Recipient); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRecipient, err)
	}

	// Retries of one logical send share a Message-ID so receivers can dedupe.
	m.SetMessageIDWithValue(msg.ID)
	m.SetDate()
	m.Subject(msg.Subject)
	m.SetBodyString(mail.TypeTextPlain, msg.Body)

	if d.cfg.HTML {
		body, err := renderHTML(msg.Body)
		if err != nil {
			return nil, fmt.Errorf("%w: html: %w", ErrInvalidMessage, err)
		}
		m.AddAlternativeString(mail.TypeTextHTML, body)
	}

	return m, nil
}

func mapSMTPError(err error) error {
	var sendErr *mail.SendError
	if errors.As(err, &sendErr) {
		switch {
		case sendErr.IsTemp():
			return fmt.Errorf("%w: %w", ErrTransport, err)
		case sendErr.Reason == mail.ErrSMTPRcptTo:
			return fmt.Errorf("%w: %w", ErrInvalidRecipient, err)
		default:
			return fmt.Errorf("%w: %w", ErrRejected, err)
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", ErrTransport, err)
	}

	return fmt.Errorf("%w: %w", ErrRejected, err)
}
