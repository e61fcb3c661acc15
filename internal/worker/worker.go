package worker

import (
	"context"
	"encoding/json"
	"fmt"

	"hively/internal/domain"
	"hively/internal/provider"
	"hively/internal/queue"
	"hively/internal/repository"

	"go.uber.org/zap"
)

// EmailSender and PushSender are the provider calls the worker depends on.
type EmailSender interface {
	Send(ctx context.Context, msg provider.EmailMessage) provider.Outcome
}

type PushSender interface {
	Send(ctx context.Context, tokens []string, title, body string, data map[string]string) provider.Outcome
}

// Worker consumes delivery jobs. For each channel present in the job's
// targets it makes one provider call and persists the outcome; a channel
// moves pending -> sent|failed|skipped exactly once. One channel failing
// never stops the others, and nothing is retried.
type Worker struct {
	repo   *repository.NotificationRepository
	email  EmailSender
	push   PushSender
	logger *zap.SugaredLogger
}

func New(repo *repository.NotificationRepository, email EmailSender, push PushSender, logger *zap.SugaredLogger) *Worker {
	return &Worker{repo: repo, email: email, push: push, logger: logger}
}

// Handle is the queue consumer.
func (w *Worker) Handle(ctx context.Context, job queue.Job) error {
	if t := job.Targets.Email; t != nil {
		out := w.email.Send(ctx, provider.EmailMessage{
			To:       t.To,
			Subject:  t.Subject,
			Body:     job.Body,
			HTMLBody: htmlBody(job.Metadata),
		})
		w.record(ctx, job, domain.ChannelEmail, out)
	}
	if t := job.Targets.Push; t != nil {
		out := w.push.Send(ctx, t.Tokens, job.Title, job.Body, pushData(job))
		w.record(ctx, job, domain.ChannelPush, out)
	}
	return nil
}

func (w *Worker) record(ctx context.Context, job queue.Job, channel string, out provider.Outcome) {
	n, err := w.repo.UpdateDeliveryStatus(ctx, job.NotificationID, channel, out.Status, out.Error)
	if err != nil {
		w.logger.Errorw("persist delivery status failed",
			"notification_id", job.NotificationID, "channel", channel, "error", err)
		return
	}
	if n == nil {
		// Record vanished between enqueue and delivery. Best-effort: drop.
		w.logger.Warnw("delivery outcome for unknown notification dropped",
			"notification_id", job.NotificationID, "channel", channel)
	}
}

// htmlBody pulls an optional HTML rendering hint out of the metadata bag.
func htmlBody(meta map[string]any) string {
	if meta == nil {
		return ""
	}
	if s, ok := meta["html"].(string); ok {
		return s
	}
	return ""
}

// pushData flattens job metadata into the string map FCM requires.
func pushData(job queue.Job) map[string]string {
	data := map[string]string{"type": job.Type, "notification_id": job.NotificationID}
	for k, v := range job.Metadata {
		if k == "html" {
			continue
		}
		switch val := v.(type) {
		case string:
			data[k] = val
		case float64:
			data[k] = fmt.Sprintf("%v", val)
		case bool:
			data[k] = fmt.Sprintf("%t", val)
		default:
			b, _ := json.Marshal(v)
			data[k] = string(b)
		}
	}
	return data
}
