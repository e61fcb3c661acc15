package models

import (
	"database/sql/driver"
	"encoding/json"
	"time"
)

// DeliveryRecord tracks the outcome of one channel of a notification.
// Status is one of domain.DeliveryPending/Sent/Failed/Skipped; Error is set
// only for failed.
type DeliveryRecord struct {
	Status    string    `json:"status"`
	Error     string    `json:"error,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

// DeliveryMap maps channel name -> delivery record. The key set is fixed at
// creation time; only status values change afterwards.
type DeliveryMap map[string]DeliveryRecord

func (m DeliveryMap) Value() (driver.Value, error) {
	if m == nil {
		m = DeliveryMap{}
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (m *DeliveryMap) Scan(src any) error {
	return scanJSON(src, m)
}

// EmailTarget is the addressing data for the email channel.
type EmailTarget struct {
	To      string `json:"to"`
	Subject string `json:"subject,omitempty"`
}

// PushTarget is the addressing data for the push channel.
type PushTarget struct {
	Tokens []string `json:"tokens"`
}

// DeliveryTargets holds the channel addressing data resolved at creation
// time. Write-side only: never serialized into API or WebSocket responses.
type DeliveryTargets struct {
	Email *EmailTarget `json:"email,omitempty"`
	Push  *PushTarget  `json:"push,omitempty"`
}

func (t DeliveryTargets) Value() (driver.Value, error) {
	b, err := json.Marshal(t)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (t *DeliveryTargets) Scan(src any) error {
	return scanJSON(src, t)
}

type Notification struct {
	ID         string          `gorm:"primaryKey;size:36" json:"id"`
	UserID     string          `gorm:"size:36;not null;index" json:"user_id"`
	Type       string          `gorm:"size:50;not null;index" json:"type"`
	Title      string          `gorm:"size:255" json:"title"`
	Body       string          `gorm:"type:text" json:"body"`
	Metadata   JSONMap         `gorm:"type:text" json:"metadata,omitempty"`
	Deliveries DeliveryMap     `gorm:"type:text" json:"deliveries"`
	Targets    DeliveryTargets `gorm:"column:delivery_targets;type:text" json:"-"` // raw addresses/tokens, never exposed
	ReadAt     *time.Time      `json:"read_at"`
	CreatedAt  time.Time       `json:"created_at"`
}

func (Notification) TableName() string {
	return "notifications"
}

func (n *Notification) IsRead() bool { return n.ReadAt != nil }
