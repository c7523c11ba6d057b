package alert

import (
	"context"
	"errors"
	"fmt"
	"regexp"

	"github.com/mrz1836/postmark"
)

var emailRegex = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

// EmailConfig holds Postmark delivery settings for email alerts.
type EmailConfig struct {
	ServerToken   string `env:"POSTMARK_SERVER_TOKEN"`
	AccountToken  string `env:"POSTMARK_ACCOUNT_TOKEN"`
	SenderEmail   string `env:"ALERT_SENDER_EMAIL"`
	OperatorEmail string `env:"ALERT_OPERATOR_EMAIL"`
}

// Email delivers events as Postmark transactional emails to the operator.
type Email struct {
	client *postmark.Client
	config EmailConfig
}

// NewEmail creates an email alerter. All config fields are required;
// failing fast here beats discovering a broken alert channel during an
// incident.
func NewEmail(cfg EmailConfig) (*Email, error) {
	if cfg.ServerToken == "" {
		return nil, fmt.Errorf("%w: ServerToken is required", ErrInvalidConfig)
	}
	if cfg.AccountToken == "" {
		return nil, fmt.Errorf("%w: AccountToken is required", ErrInvalidConfig)
	}
	if !emailRegex.MatchString(cfg.SenderEmail) {
		return nil, fmt.Errorf("%w: SenderEmail must be a valid email address", ErrInvalidConfig)
	}
	if !emailRegex.MatchString(cfg.OperatorEmail) {
		return nil, fmt.Errorf("%w: OperatorEmail must be a valid email address", ErrInvalidConfig)
	}

	return &Email{
		client: postmark.NewClient(cfg.ServerToken, cfg.AccountToken),
		config: cfg,
	}, nil
}

// Alert sends the event to the operator mailbox.
func (e *Email) Alert(ctx context.Context, event Event) error {
	resp, err := e.client.SendEmail(ctx, postmark.Email{
		From:     e.config.SenderEmail,
		To:       e.config.OperatorEmail,
		Subject:  subjectFor(event),
		Tag:      string(event.Kind),
		TextBody: fmt.Sprintf("%s\n\nkind: %s\nat:   %s\n", event.Message, event.Kind, event.At.Format("2006-01-02 15:04:05 MST")),
	})
	if err != nil {
		return errors.Join(ErrDeliveryFailed, err)
	}
	if resp.ErrorCode > 0 {
		return errors.Join(ErrDeliveryFailed, fmt.Errorf("postmark error: %d - %s", resp.ErrorCode, resp.Message))
	}
	return nil
}

func subjectFor(event Event) string {
	switch event.Kind {
	case KindLoginRequired:
		return "cookiekeeper: manual login required"
	case KindRefreshFailed:
		return "cookiekeeper: credential refresh failed"
	default:
		return "cookiekeeper: " + string(event.Kind)
	}
}
