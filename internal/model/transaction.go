package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type TxType string

const (
	TxDeposit          TxType = "deposit"
	TxTransferSent     TxType = "transfer_sent"
	TxTransferReceived TxType = "transfer_received"
	TxOrder            TxType = "order"
	TxCommission       TxType = "commission"
	TxRefund           TxType = "refund"
	TxManualAdjustment TxType = "manual_adjustment"
)

type Direction string

const (
	Credit Direction = "credit"
	Debit  Direction = "debit"
)

type TxStatus string

const (
	TxPending   TxStatus = "pending"
	TxCompleted TxStatus = "completed"
	TxFailed    TxStatus = "failed"
	TxCancelled TxStatus = "cancelled"
)

// Transaction is an append-only ledger row. Amount is never negative; the
// sign lives in Direction.
type Transaction struct {
	ID            uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	UserID        uuid.UUID       `gorm:"type:uuid;not null;index" json:"user_id"`
	Type          TxType          `gorm:"size:32;not null;index" json:"type"`
	Direction     Direction       `gorm:"size:8;not null" json:"direction"`
	Amount        decimal.Decimal `gorm:"type:numeric(20,8);not null" json:"amount"`
	Commission    decimal.Decimal `gorm:"type:numeric(20,8);not null;default:0" json:"commission"`
	BalanceBefore decimal.Decimal `gorm:"type:numeric(20,8);not null" json:"balance_before"`
	BalanceAfter  decimal.Decimal `gorm:"type:numeric(20,8);not null" json:"balance_after"`
	Status        TxStatus        `gorm:"size:16;not null" json:"status"`
	Description   string          `gorm:"size:255" json:"description,omitempty"`
	ReferenceID   *uuid.UUID      `gorm:"type:uuid;index" json:"reference_id,omitempty"`
	CreatedAt     time.Time       `gorm:"autoCreateTime" json:"created_at"`
}

func (Transaction) TableName() string { return "transaction" }

func (t *Transaction) BeforeCreate(*gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}

// SignedAmount is Amount negated for debits.
func (t Transaction) SignedAmount() decimal.Decimal {
	if t.Direction == Debit {
		return t.Amount.Neg()
	}
	return t.Amount
}
