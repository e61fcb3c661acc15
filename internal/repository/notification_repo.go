package repository

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"hively/internal/models"

	"gorm.io/gorm"
)

// ErrNotFound is returned when a notification does not exist. Callers merge
// "absent" and "not owned" into the same signal before it leaves the API.
var ErrNotFound = errors.New("notification not found")

// NotificationRepository is the durable store for notifications and their
// per-channel delivery state.
//
// All mutations are serialized by mu. The deliveries column is a JSON
// document, so a status update is a read-modify-write; without a single
// writer two channel updates racing for the same row would lose one of the
// writes, as would a read-mark racing a status write.
type NotificationRepository struct {
	db *gorm.DB
	mu sync.Mutex
}

func NewNotificationRepository(db *gorm.DB) *NotificationRepository {
	return &NotificationRepository{db: db}
}

// Save appends a new notification. The id must be unused.
func (r *NotificationRepository) Save(ctx context.Context, n *models.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.db.WithContext(ctx).Create(n).Error; err != nil {
		return fmt.Errorf("save notification %s: %w", n.ID, err)
	}
	return nil
}

// ListByUser returns all notifications for a user, newest first.
func (r *NotificationRepository) ListByUser(ctx context.Context, userID string) ([]models.Notification, error) {
	var list []models.Notification
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC, id DESC").
		Find(&list).Error
	return list, err
}

func (r *NotificationRepository) GetByID(ctx context.Context, id string) (*models.Notification, error) {
	var n models.Notification
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&n).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &n, nil
}

func (r *NotificationRepository) CountUnread(ctx context.Context, userID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Notification{}).
		Where("user_id = ? AND read_at IS NULL", userID).
		Count(&count).Error
	return count, err
}

// MarkAsRead sets read_at if unset and returns the resulting record.
// Re-marking an already-read notification is a no-op, not an error.
func (r *NotificationRepository) MarkAsRead(ctx context.Context, id string, readAt time.Time) (*models.Notification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if n.ReadAt != nil {
		return n, nil
	}
	t := readAt.UTC()
	n.ReadAt = &t
	if err := r.db.WithContext(ctx).Model(n).Update("read_at", t).Error; err != nil {
		return nil, fmt.Errorf("mark read %s: %w", id, err)
	}
	return n, nil
}

// UpdateDeliveryStatus updates one entry of the deliveries map. Returns
// (nil, nil) when the notification no longer exists; delivery is best-effort
// relative to the record, so the caller logs and moves on. Channels outside
// the map's fixed key set are ignored.
func (r *NotificationRepository) UpdateDeliveryStatus(ctx context.Context, id, channel, status, errMsg string) (*models.Notification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n, err := r.GetByID(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if _, ok := n.Deliveries[channel]; !ok {
		return n, nil
	}
	n.Deliveries[channel] = models.DeliveryRecord{
		Status:    status,
		Error:     errMsg,
		UpdatedAt: time.Now().UTC(),
	}
	if err := r.db.WithContext(ctx).Model(n).Update("deliveries", n.Deliveries).Error; err != nil {
		return nil, fmt.Errorf("update delivery status %s/%s: %w", id, channel, err)
	}
	return n, nil
}
