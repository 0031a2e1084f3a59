package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type OrderStatus string

const (
	OrderPending    OrderStatus = "pending"
	OrderProcessing OrderStatus = "processing"
	OrderCompleted  OrderStatus = "completed"
	OrderFailed     OrderStatus = "failed"
	OrderRefunded   OrderStatus = "refunded"
)

type Order struct {
	ID             uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	UserID         uuid.UUID       `gorm:"type:uuid;not null;index" json:"user_id"`
	ServiceID      string          `gorm:"size:64;not null" json:"service_id"`
	ServiceName    string          `gorm:"size:128;not null" json:"service_name"`
	Platform       string          `gorm:"size:32;not null" json:"platform"`
	ServiceType    string          `gorm:"size:32;not null" json:"service_type"`
	TargetURL      string          `gorm:"size:1024;not null" json:"target_url"`
	Quantity       int             `gorm:"not null" json:"quantity"`
	Price          decimal.Decimal `gorm:"type:numeric(20,8);not null" json:"price"`
	RefundedAmount decimal.Decimal `gorm:"type:numeric(20,8);not null;default:0" json:"refunded_amount"`
	Status         OrderStatus     `gorm:"size:16;not null;index" json:"status"`
	APIOrderID     *string         `gorm:"size:64" json:"api_order_id,omitempty"`
	APIResponse    *string         `gorm:"type:text" json:"-"`
	CreatedAt      time.Time       `gorm:"autoCreateTime" json:"created_at"`
	CompletedAt    *time.Time      `json:"completed_at,omitempty"`
}

func (Order) TableName() string { return "orders" }

func (o *Order) BeforeCreate(*gorm.DB) error {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	return nil
}
