package notification

import (
	"context"
	"fmt"

	"library-lending/internal/domain"
	"library-lending/internal/logger"

	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
)

// mailClient is the part of *sendgrid.Client used for delivery.
type mailClient interface {
	SendWithContext(ctx context.Context, email *mail.SGMailV3) (*rest.Response, error)
}

type SendGridSender struct {
	client    mailClient
	fromEmail string
	fromName  string
}

func NewSendGridSender(apiKey, fromEmail, fromName string) *SendGridSender {
	return &SendGridSender{
		client:    sendgrid.NewSendClient(apiKey),
		fromEmail: fromEmail,
		fromName:  fromName,
	}
}

func (s *SendGridSender) Deliver(ctx context.Context, msg domain.Notification) error {
	from := mail.NewEmail(s.fromName, s.fromEmail)
	recipient := mail.NewEmail("", msg.To)
	message := mail.NewSingleEmail(from, msg.Subject, recipient, msg.Body, "")

	logger.ExternalServiceCall("sendgrid", "Send", "to", msg.To)
	response, err := s.client.SendWithContext(ctx, message)
	if err == nil && response.StatusCode >= 400 {
		err = fmt.Errorf("sendgrid error: status %d, body: %s", response.StatusCode, response.Body)
	}
	logger.ExternalServiceResult("sendgrid", "Send", err, "to", msg.To)
	if err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	return nil
}

// LogSender writes notifications to the application log instead of delivering them.
type LogSender struct{}

func (LogSender) Deliver(ctx context.Context, msg domain.Notification) error {
	logger.InfoContext(ctx, "Notification", "to", msg.To, "subject", msg.Subject, "body", msg.Body)
	return nil
}
