package service

import (
	"context"
	"time"

	"hively/internal/domain"
	"hively/internal/models"
	"hively/internal/queue"
	"hively/internal/repository"
	"hively/internal/ws"

	"github.com/google/uuid"
)

// ChannelHints is the caller-supplied addressing data. A channel without a
// resolvable target (no address, no tokens) simply never becomes part of the
// notification's delivery map.
type ChannelHints struct {
	Email *EmailHint `json:"email,omitempty"`
	Push  *PushHint  `json:"push,omitempty"`
}

type EmailHint struct {
	To      string `json:"to"`
	Subject string `json:"subject,omitempty"`
}

type PushHint struct {
	Tokens []string `json:"tokens"`
}

// CreateInput is the full create request.
type CreateInput struct {
	UserID   string
	Type     string
	Title    string
	Body     string
	Metadata models.JSONMap
	Channels ChannelHints
}

// NotificationService orchestrates creation, read-state transitions and
// realtime fan-out. Creation persists first (the durability point), then
// enqueues delivery and broadcasts; delivery is asynchronous and never
// awaited by the caller.
type NotificationService struct {
	repo  *repository.NotificationRepository
	queue *queue.Queue
	hub   *ws.Hub
}

func NewNotificationService(repo *repository.NotificationRepository, q *queue.Queue, hub *ws.Hub) *NotificationService {
	return &NotificationService{repo: repo, queue: q, hub: hub}
}

func (s *NotificationService) CreateNotification(ctx context.Context, in CreateInput) (*models.Notification, error) {
	targets, deliveries := resolveChannels(in.Channels)
	now := time.Now().UTC()
	n := &models.Notification{
		ID:         uuid.NewString(),
		UserID:     in.UserID,
		Type:       in.Type,
		Title:      in.Title,
		Body:       in.Body,
		Metadata:   in.Metadata,
		Deliveries: deliveries,
		Targets:    targets,
		CreatedAt:  now,
	}
	if err := s.repo.Save(ctx, n); err != nil {
		return nil, err
	}
	s.queue.Enqueue(queue.Job{
		NotificationID: n.ID,
		UserID:         n.UserID,
		Type:           n.Type,
		Title:          n.Title,
		Body:           n.Body,
		Metadata:       n.Metadata,
		Targets:        n.Targets,
	})
	if s.hub != nil {
		// The model's json tags strip delivery targets from the payload.
		s.hub.Broadcast(n.UserID, ws.Envelope{Type: domain.MsgNotificationCreated, Payload: n})
	}
	return n, nil
}

func (s *NotificationService) List(ctx context.Context, userID string) ([]models.Notification, error) {
	return s.repo.ListByUser(ctx, userID)
}

func (s *NotificationService) UnreadCount(ctx context.Context, userID string) (int64, error) {
	return s.repo.CountUnread(ctx, userID)
}

// MarkAsRead enforces ownership here, not in the store: a notification that
// exists but belongs to someone else is indistinguishable from one that does
// not exist.
func (s *NotificationService) MarkAsRead(ctx context.Context, userID, notificationID string) (*models.Notification, error) {
	n, err := s.repo.GetByID(ctx, notificationID)
	if err != nil {
		return nil, err
	}
	if n.UserID != userID {
		return nil, repository.ErrNotFound
	}
	n, err = s.repo.MarkAsRead(ctx, notificationID, time.Now())
	if err != nil {
		return nil, err
	}
	if s.hub != nil {
		s.hub.Broadcast(n.UserID, ws.Envelope{Type: domain.MsgNotificationRead, Payload: n})
	}
	return n, nil
}

// resolveChannels keeps only channels with a usable target and seeds a
// pending delivery record for each. The returned map's key set is final.
func resolveChannels(hints ChannelHints) (models.DeliveryTargets, models.DeliveryMap) {
	var targets models.DeliveryTargets
	deliveries := models.DeliveryMap{}
	now := time.Now().UTC()
	if hints.Email != nil && hints.Email.To != "" {
		targets.Email = &models.EmailTarget{To: hints.Email.To, Subject: hints.Email.Subject}
		deliveries[domain.ChannelEmail] = models.DeliveryRecord{Status: domain.DeliveryPending, UpdatedAt: now}
	}
	if hints.Push != nil && len(hints.Push.Tokens) > 0 {
		targets.Push = &models.PushTarget{Tokens: hints.Push.Tokens}
		deliveries[domain.ChannelPush] = models.DeliveryRecord{Status: domain.DeliveryPending, UpdatedAt: now}
	}
	return targets, deliveries
}
