package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type NotificationType string

const (
	NotifyDeposit  NotificationType = "deposit"
	NotifyTransfer NotificationType = "transfer"
	NotifyOrder    NotificationType = "order"
	NotifySystem   NotificationType = "system"
	NotifyAdmin    NotificationType = "admin"
)

// Notification is a user-facing message. Only Read ever changes.
type Notification struct {
	ID        uuid.UUID        `gorm:"type:uuid;primaryKey" json:"id"`
	UserID    uuid.UUID        `gorm:"type:uuid;not null;index" json:"user_id"`
	Type      NotificationType `gorm:"size:16;not null" json:"type"`
	Title     string           `gorm:"size:128;not null" json:"title"`
	Message   string           `gorm:"size:512;not null" json:"message"`
	Read      bool             `gorm:"not null;default:false;index" json:"read"`
	Data      string           `gorm:"type:jsonb;not null" json:"-"`
	CreatedAt time.Time        `gorm:"autoCreateTime" json:"created_at"`
}

func (Notification) TableName() string { return "notifications" }

func (n *Notification) BeforeCreate(*gorm.DB) error {
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	if n.Data == "" {
		n.Data = "{}"
	}
	return nil
}

// MarshalJSON inlines Data as a JSON object.
func (n Notification) MarshalJSON() ([]byte, error) {
	type alias Notification
	data := n.Data
	if data == "" {
		data = "{}"
	}
	return json.Marshal(struct {
		alias
		Data json.RawMessage `json:"data"`
	}{alias(n), json.RawMessage(data)})
}
