package notification

import (
	"library-lending/internal/config"
	"library-lending/internal/logger"
)

// NewSenderFromConfig returns the SendGrid sender when configured, else a LogSender.
func NewSenderFromConfig(cfg *config.Config) Sender {
	if cfg.Notification.Sender == "sendgrid" {
		logger.Info("Using SendGrid email sender", "from", cfg.SendGrid.FromEmail)
		return NewSendGridSender(cfg.SendGrid.APIKey, cfg.SendGrid.FromEmail, cfg.SendGrid.FromName)
	}
	logger.Info("Using log notification sender")
	return LogSender{}
}

// NewDispatcherFromConfig builds an unstarted dispatcher over the configured sender.
func NewDispatcherFromConfig(cfg *config.Config) *Dispatcher {
	return NewDispatcher(NewSenderFromConfig(cfg), DispatcherOptions{
		Workers:       cfg.Notification.Workers,
		QueueSize:     cfg.Notification.QueueSize,
		MaxRetries:    cfg.Notification.MaxRetries,
		RatePerSecond: cfg.Notification.RatePerSecond,
	})
}
