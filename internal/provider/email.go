package provider

import (
	"context"
	"fmt"

	"hively/config"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
	"go.uber.org/zap"
)

// EmailProvider sends notification emails through the SendGrid v3 API.
// Without an API key it stays permanently disabled and every send returns a
// skipped outcome without touching the network.
type EmailProvider struct {
	client *sendgrid.Client
	from   *mail.Email
	logger *zap.SugaredLogger
}

func NewEmailProvider(cfg config.SendGridConfig, logger *zap.SugaredLogger) *EmailProvider {
	p := &EmailProvider{
		from:   mail.NewEmail(cfg.FromName, cfg.FromEmail),
		logger: logger,
	}
	if cfg.APIKey == "" {
		logger.Infow("email delivery disabled: SENDGRID_API_KEY not set")
		return p
	}
	p.client = sendgrid.NewSendClient(cfg.APIKey)
	logger.Infow("email delivery enabled")
	return p
}

// EmailMessage is one notification rendered for the email channel.
type EmailMessage struct {
	To       string
	Subject  string
	Body     string
	HTMLBody string
}

// Send delivers one message. Expected failures (missing recipient, transport
// error, non-2xx) come back as a failed outcome, never as an error.
func (p *EmailProvider) Send(ctx context.Context, msg EmailMessage) Outcome {
	if p == nil || p.client == nil {
		return Skipped()
	}
	if msg.To == "" {
		return Failed("no recipient address")
	}
	subject := msg.Subject
	if subject == "" {
		subject = "Notification"
	}
	html := msg.HTMLBody
	if html == "" {
		html = msg.Body
	}
	m := mail.NewSingleEmail(p.from, subject, mail.NewEmail("", msg.To), msg.Body, html)
	resp, err := p.client.SendWithContext(ctx, m)
	if err != nil {
		p.logger.Warnw("email send failed", "to", msg.To, "error", err)
		return Failed(err.Error())
	}
	if resp.StatusCode >= 300 {
		p.logger.Warnw("email send rejected", "to", msg.To, "status", resp.StatusCode)
		return Failed(fmt.Sprintf("sendgrid returned status %d", resp.StatusCode))
	}
	return Sent()
}
