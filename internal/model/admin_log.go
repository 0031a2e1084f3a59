package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	ActionApproveDeposit = "approve_deposit"
	ActionRejectDeposit  = "reject_deposit"
	ActionSuspendUser    = "suspend_user"
	ActionActivateUser   = "activate_user"
	ActionAdjustBalance  = "adjust_balance"
)

// AdminLog is the append-only audit trail of staff actions.
type AdminLog struct {
	ID           uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	AdminID      uuid.UUID  `gorm:"type:uuid;not null;index" json:"admin_id"`
	Action       string     `gorm:"size:64;not null" json:"action"`
	TargetUserID *uuid.UUID `gorm:"type:uuid;index" json:"target_user_id,omitempty"`
	TargetType   string     `gorm:"size:32" json:"target_type,omitempty"`
	Details      string     `gorm:"type:jsonb;not null" json:"-"`
	IPAddress    string     `gorm:"size:64" json:"ip_address,omitempty"`
	CreatedAt    time.Time  `gorm:"autoCreateTime" json:"created_at"`
}

func (AdminLog) TableName() string { return "admin_logs" }

func (l *AdminLog) BeforeCreate(*gorm.DB) error {
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	if l.Details == "" {
		l.Details = "{}"
	}
	return nil
}

func (l AdminLog) MarshalJSON() ([]byte, error) {
	type alias AdminLog
	details := l.Details
	if details == "" {
		details = "{}"
	}
	return json.Marshal(struct {
		alias
		Details json.RawMessage `json:"details"`
	}{alias(l), json.RawMessage(details)})
}
