package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type Role string

const (
	RoleClient   Role = "client"
	RoleSubadmin Role = "subadmin"
	RoleAdmin    Role = "admin"
)

// IsStaff reports whether the role may review deposits.
func (r Role) IsStaff() bool { return r == RoleAdmin || r == RoleSubadmin }

type UserStatus string

const (
	UserActive    UserStatus = "active"
	UserSuspended UserStatus = "suspended"
	UserDeleted   UserStatus = "deleted"
)

// User is an account. Balance is written only by repo.AdjustBalance.
type User struct {
	ID                  uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	FullName            string          `gorm:"size:128;not null" json:"full_name"`
	Email               string          `gorm:"size:255;not null;uniqueIndex" json:"email"`
	Phone               *string         `gorm:"size:32;uniqueIndex" json:"phone,omitempty"`
	PasswordHash        string          `gorm:"size:255;not null" json:"-"`
	Balance             decimal.Decimal `gorm:"type:numeric(20,8);not null;default:0" json:"balance"`
	Version             uint64          `gorm:"not null;default:0" json:"-"`
	Role                Role            `gorm:"size:16;not null;default:client;index" json:"role"`
	Status              UserStatus      `gorm:"size:16;not null;default:active" json:"status"`
	IsSystem            bool            `gorm:"not null;default:false" json:"-"`
	FailedLoginAttempts int             `gorm:"not null;default:0" json:"-"`
	LockedUntil         *time.Time      `json:"-"`
	CreatedAt           time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt           time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

func (User) TableName() string { return "users" }

func (u *User) BeforeCreate(*gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return nil
}
