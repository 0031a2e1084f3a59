package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/richardliu001/smm-panel/internal/model"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// AdjustBalance is the only writer of users.balance. It locks the row, refuses
// to go below zero and bumps the version so a concurrent writer that skipped
// the lock fails instead of overwriting. Must run inside tx.
func (r *Repository) AdjustBalance(ctx context.Context, tx *gorm.DB, userID uuid.UUID, delta decimal.Decimal) (decimal.Decimal, decimal.Decimal, error) {
	var u model.User
	if err := tx.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Select("id", "balance", "version").
		Where("id = ?", userID).First(&u).Error; err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	newBal := u.Balance.Add(delta)
	if newBal.IsNegative() {
		return u.Balance, u.Balance, ErrInsufficientFunds
	}
	res := tx.WithContext(ctx).
		Model(&model.User{}).
		Where("id = ? AND version = ?", userID, u.Version).
		Updates(map[string]interface{}{
			"balance":    newBal,
			"version":    u.Version + 1,
			"updated_at": time.Now(),
		})
	if res.Error != nil {
		return decimal.Zero, decimal.Zero, res.Error
	}
	if res.RowsAffected == 0 {
		return decimal.Zero, decimal.Zero, ErrVersionConflict
	}
	return u.Balance, newBal, nil
}
