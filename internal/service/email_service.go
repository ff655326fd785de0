package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/resend/resend-go/v2"

	config "github.com/maheshrc27/tattle-publisher/configs"
	"github.com/maheshrc27/tattle-publisher/internal/transfer"
)

type EmailService interface {
	Send(ctx context.Context, msg transfer.EmailMessage) error
}

type emailService struct {
	apiKey string
	from   string
	client *resend.Client
}

func NewEmailService(cfg config.Config) EmailService {
	return newEmailService(cfg.Email.ResendAPIKey, cfg.Email.FromEmail, resend.NewClient(cfg.Email.ResendAPIKey))
}

func newEmailService(apiKey, from string, client *resend.Client) *emailService {
	return &emailService{apiKey: apiKey, from: from, client: client}
}

// Send delivers the message through Resend. Without an API key the message is
// logged and dropped.
func (s *emailService) Send(ctx context.Context, msg transfer.EmailMessage) error {
	if s.apiKey == "" {
		slog.Warn("RESEND_API_KEY not set, skipping email", "to", msg.To, "subject", msg.Subject)
		return nil
	}

	sent, err := s.client.Emails.SendWithContext(ctx, &resend.SendEmailRequest{
		From:    s.from,
		To:      msg.To,
		Subject: msg.Subject,
		Html:    msg.HTML,
	})
	if err != nil {
		slog.Info(err.Error())
		return fmt.Errorf("error sending email: %w", err)
	}
	slog.Info("email sent", "id", sent.Id, "to", msg.To, "subject", msg.Subject)
	return nil
}
