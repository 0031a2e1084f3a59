package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type DepositStatus string

const (
	DepositPending  DepositStatus = "pending"
	DepositApproved DepositStatus = "approved"
	DepositRejected DepositStatus = "rejected"
)

// Deposit is a funding request. Approved and rejected are terminal.
type Deposit struct {
	ID              uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	UserID          uuid.UUID       `gorm:"type:uuid;not null;index" json:"user_id"`
	Amount          decimal.Decimal `gorm:"type:numeric(20,8);not null" json:"amount"`
	ProofURL        *string         `gorm:"size:512" json:"proof_url,omitempty"`
	Status          DepositStatus   `gorm:"size:16;not null;index" json:"status"`
	ReviewedBy      *uuid.UUID      `gorm:"type:uuid;index" json:"reviewed_by,omitempty"`
	ReviewedAt      *time.Time      `json:"reviewed_at,omitempty"`
	RejectionReason *string         `gorm:"size:512" json:"rejection_reason,omitempty"`
	CreatedAt       time.Time       `gorm:"autoCreateTime" json:"created_at"`
}

func (Deposit) TableName() string { return "deposits" }

func (d *Deposit) BeforeCreate(*gorm.DB) error {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	return nil
}
