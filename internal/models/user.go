package models

import (
	"time"
)

// User is the directory record the event bridge resolves recipients against.
// Channel hints derive from it: an email target exists when Email is set, a
// push target when PushTokens is non-empty.
type User struct {
	ID         string     `gorm:"primaryKey;size:36" json:"id"`
	Name       string     `gorm:"size:120" json:"name"`
	Email      string     `gorm:"size:255;index" json:"email,omitempty"`
	PushTokens StringList `gorm:"type:text" json:"-"` // device tokens, never exposed
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

func (User) TableName() string {
	return "users"
}
