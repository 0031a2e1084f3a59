package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// CommissionRate is the fee charged to the sender of every transfer.
var CommissionRate = decimal.RequireFromString("0.05")

type TransferStatus string

const (
	TransferCompleted TransferStatus = "completed"
	TransferFailed    TransferStatus = "failed"
)

type Transfer struct {
	ID             uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	SenderID       uuid.UUID       `gorm:"type:uuid;not null;index" json:"sender_id"`
	ReceiverID     uuid.UUID       `gorm:"type:uuid;not null;index" json:"receiver_id"`
	Amount         decimal.Decimal `gorm:"type:numeric(20,8);not null" json:"amount"`
	Commission     decimal.Decimal `gorm:"type:numeric(20,8);not null" json:"commission"`
	TotalDeducted  decimal.Decimal `gorm:"type:numeric(20,8);not null" json:"total_deducted"`
	AmountReceived decimal.Decimal `gorm:"type:numeric(20,8);not null" json:"amount_received"`
	Status         TransferStatus  `gorm:"size:16;not null" json:"status"`
	CreatedAt      time.Time       `gorm:"autoCreateTime" json:"created_at"`
}

func (Transfer) TableName() string { return "transfers" }

func (t *Transfer) BeforeCreate(*gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}

// TransferQuote splits a transfer amount into its commission and total.
type TransferQuote struct {
	Amount         decimal.Decimal
	Commission     decimal.Decimal
	TotalDeducted  decimal.Decimal
	AmountReceived decimal.Decimal
}

func QuoteTransfer(amount decimal.Decimal) TransferQuote {
	commission := amount.Mul(CommissionRate)
	return TransferQuote{
		Amount:         amount,
		Commission:     commission,
		TotalDeducted:  amount.Add(commission),
		AmountReceived: amount,
	}
}
