package provider

import (
	"context"
	"fmt"

	"hively/config"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"go.uber.org/zap"
	"google.golang.org/api/option"
)

// PushProvider sends push notifications via Firebase Cloud Messaging. One
// call covers a whole batch of device tokens; the outcome is per channel,
// not per token. Without a service account it stays disabled for the
// process lifetime.
type PushProvider struct {
	client *messaging.Client
	logger *zap.SugaredLogger
}

func NewPushProvider(ctx context.Context, cfg config.FirebaseConfig, logger *zap.SugaredLogger) *PushProvider {
	p := &PushProvider{logger: logger}
	if cfg.ServiceAccountPath == "" {
		logger.Infow("push delivery disabled: FIREBASE_SERVICE_ACCOUNT_PATH not set")
		return p
	}
	app, err := firebase.NewApp(ctx, nil, option.WithCredentialsFile(cfg.ServiceAccountPath))
	if err != nil {
		logger.Warnw("push delivery disabled: firebase init failed", "error", err)
		return p
	}
	client, err := app.Messaging(ctx)
	if err != nil {
		logger.Warnw("push delivery disabled: messaging client failed", "error", err)
		return p
	}
	p.client = client
	logger.Infow("push delivery enabled")
	return p
}

// Send delivers title/body plus string data to every token in one multicast
// call. All tokens failing counts as a failed channel; partial success is
// sent.
func (p *PushProvider) Send(ctx context.Context, tokens []string, title, body string, data map[string]string) Outcome {
	if p == nil || p.client == nil {
		return Skipped()
	}
	if len(tokens) == 0 {
		return Failed("no push tokens")
	}
	msg := &messaging.MulticastMessage{
		Tokens: tokens,
		Notification: &messaging.Notification{
			Title: title,
			Body:  body,
		},
		Data: data,
		Android: &messaging.AndroidConfig{
			Priority: "high",
			Notification: &messaging.AndroidNotification{
				Sound: "default",
			},
		},
		APNS: &messaging.APNSConfig{
			Payload: &messaging.APNSPayload{
				Aps: &messaging.Aps{
					Sound: "default",
				},
			},
		},
	}
	br, err := p.client.SendEachForMulticast(ctx, msg)
	if err != nil {
		p.logger.Warnw("push send failed", "tokens", len(tokens), "error", err)
		return Failed(err.Error())
	}
	if br.SuccessCount == 0 {
		p.logger.Warnw("push send rejected for all tokens", "tokens", len(tokens))
		return Failed(fmt.Sprintf("all %d token sends failed", len(tokens)))
	}
	return Sent()
}
