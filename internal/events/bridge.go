package events

import (
	"context"
	"fmt"

	"hively/internal/domain"
	"hively/internal/models"
	"hively/internal/repository"
	"hively/internal/service"

	"go.uber.org/zap"
)

// Bridge translates business events into notifications. Channel hints come
// from the recipient's directory record (email on file, registered push
// tokens), never from the event publisher.
type Bridge struct {
	users         *repository.UserRepository
	notifications *service.NotificationService
	logger        *zap.SugaredLogger
}

func NewBridge(users *repository.UserRepository, notifications *service.NotificationService, logger *zap.SugaredLogger) *Bridge {
	return &Bridge{users: users, notifications: notifications, logger: logger}
}

// Register subscribes the bridge's handlers on the bus.
func (b *Bridge) Register(bus *Bus) {
	bus.Subscribe(domain.EventTaskAssigned, b.handleTaskAssigned)
	bus.Subscribe(domain.EventTaskOverdue, b.handleTaskOverdue)
	bus.Subscribe(domain.EventHiveInspectionNote, b.handleInspectionNote)
}

func (b *Bridge) handleTaskAssigned(ctx context.Context, e Event) {
	assigneeID := str(e.Payload, "assignee_id")
	taskTitle := str(e.Payload, "task_title")
	hiveName := str(e.Payload, "hive_name")
	if assigneeID == "" {
		b.logger.Warnw("task.assigned event without assignee_id dropped")
		return
	}
	body := fmt.Sprintf("You have been assigned the task %q", taskTitle)
	if hiveName != "" {
		body = fmt.Sprintf("You have been assigned the task %q for hive %q", taskTitle, hiveName)
	}
	b.notify(ctx, assigneeID, domain.NotifTaskAssigned, "New task assigned", body, e.Payload)
}

func (b *Bridge) handleTaskOverdue(ctx context.Context, e Event) {
	assigneeID := str(e.Payload, "assignee_id")
	taskTitle := str(e.Payload, "task_title")
	if assigneeID == "" {
		b.logger.Warnw("task.overdue event without assignee_id dropped")
		return
	}
	body := fmt.Sprintf("The task %q is overdue", taskTitle)
	if due := str(e.Payload, "due_date"); due != "" {
		body = fmt.Sprintf("The task %q was due on %s", taskTitle, due)
	}
	b.notify(ctx, assigneeID, domain.NotifTaskOverdue, "Task overdue", body, e.Payload)
}

// handleInspectionNote fans out to every hive member: each recipient gets an
// independent notification record for the same note.
func (b *Bridge) handleInspectionNote(ctx context.Context, e Event) {
	hiveName := str(e.Payload, "hive_name")
	authorID := str(e.Payload, "author_id")
	members := strs(e.Payload, "member_ids")
	if len(members) == 0 {
		b.logger.Warnw("hive.inspection.note event without member_ids dropped")
		return
	}
	title := "New inspection note"
	body := fmt.Sprintf("A new inspection note was added for hive %q", hiveName)
	if note := str(e.Payload, "note"); note != "" {
		body = fmt.Sprintf("Inspection note for hive %q: %s", hiveName, note)
	}
	for _, memberID := range members {
		if memberID == authorID {
			continue
		}
		b.notify(ctx, memberID, domain.NotifInspectionNote, title, body, e.Payload)
	}
}

func (b *Bridge) notify(ctx context.Context, userID, notifType, title, body string, payload map[string]any) {
	u, err := b.users.GetByID(ctx, userID)
	if err != nil {
		b.logger.Errorw("recipient lookup failed", "user_id", userID, "error", err)
		return
	}
	if u == nil {
		b.logger.Warnw("event for unknown recipient dropped", "user_id", userID)
		return
	}
	_, err = b.notifications.CreateNotification(ctx, service.CreateInput{
		UserID:   userID,
		Type:     notifType,
		Title:    title,
		Body:     body,
		Metadata: models.JSONMap(payload),
		Channels: channelHints(u, title),
	})
	if err != nil {
		b.logger.Errorw("notification create from event failed", "user_id", userID, "type", notifType, "error", err)
	}
}

// channelHints derives delivery channels from what the directory knows about
// the recipient. A user with neither email nor tokens gets an in-app-only
// notification with an empty deliveries map.
func channelHints(u *models.User, subject string) service.ChannelHints {
	var hints service.ChannelHints
	if u.Email != "" {
		hints.Email = &service.EmailHint{To: u.Email, Subject: subject}
	}
	if len(u.PushTokens) > 0 {
		hints.Push = &service.PushHint{Tokens: u.PushTokens}
	}
	return hints
}

func str(m map[string]any, key string) string {
	if m == nil {
		return ""
	}
	s, _ := m[key].(string)
	return s
}

func strs(m map[string]any, key string) []string {
	if m == nil {
		return nil
	}
	switch v := m[key].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}
