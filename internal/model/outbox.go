package model

import (
	"encoding/json"
	"time"
)

const EventNotificationCreated = "notification.created"

// OutboxEvent is written in the same transaction as the row it announces and
// relayed to Kafka by the poller.
type OutboxEvent struct {
	ID           uint64    `gorm:"primaryKey"`
	Aggregate    string    `gorm:"size:64;not null"`
	AggregateID  string    `gorm:"size:64;not null"`
	PartitionKey string    `gorm:"size:64;not null"`
	EventType    string    `gorm:"size:64;not null"`
	Payload      string    `gorm:"type:jsonb;not null"`
	CreatedAt    time.Time `gorm:"autoCreateTime"`
	Processed    bool      `gorm:"not null;default:false"`
	ProcessedAt  *time.Time
}

func (OutboxEvent) TableName() string { return "event_outbox" }

// JSON encodes v for jsonb columns, falling back to an empty object.
func JSON(v interface{}) string {
	if v == nil {
		return "{}"
	}
	b, err := json.Marshal(v)
	if err != nil || string(b) == "null" {
		return "{}"
	}
	return string(b)
}
