package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/richardliu001/smm-panel/internal/model"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

func (r *Repository) CreateDeposit(ctx context.Context, tx *gorm.DB, d *model.Deposit) error {
	return r.conn(ctx, tx).Create(d).Error
}

func (r *Repository) GetDeposit(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*model.Deposit, error) {
	var d model.Deposit
	if err := r.conn(ctx, tx).Where("id = ?", id).First(&d).Error; err != nil {
		return nil, err
	}
	return &d, nil
}

func (r *Repository) ListDeposits(ctx context.Context, tx *gorm.DB, f DepositFilter) ([]model.Deposit, error) {
	var ds []model.Deposit
	err := depositQuery(r.conn(ctx, tx), f).Order("created_at desc").Find(&ds).Error
	return ds, err
}

func (r *Repository) CountDeposits(ctx context.Context, tx *gorm.DB, f DepositFilter) (int64, error) {
	var n int64
	err := depositQuery(r.conn(ctx, tx).Model(&model.Deposit{}), f).Count(&n).Error
	return n, err
}

func (r *Repository) SumDeposits(ctx context.Context, tx *gorm.DB, f DepositFilter) (decimal.Decimal, error) {
	return sumAmount(depositQuery(r.conn(ctx, tx).Model(&model.Deposit{}), f))
}

// ReviewDeposit moves a pending deposit to a terminal status. A deposit that
// is no longer pending yields ErrStateConflict and is left untouched.
func (r *Repository) ReviewDeposit(ctx context.Context, tx *gorm.DB, id uuid.UUID, to model.DepositStatus, reviewer uuid.UUID, reason *string) error {
	now := time.Now().UTC()
	res := r.conn(ctx, tx).Model(&model.Deposit{}).
		Where("id = ? AND status = ?", id, model.DepositPending).
		Updates(map[string]interface{}{
			"status":           to,
			"reviewed_by":      reviewer,
			"reviewed_at":      &now,
			"rejection_reason": reason,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrStateConflict
	}
	return nil
}

func depositQuery(q *gorm.DB, f DepositFilter) *gorm.DB {
	if f.UserID != nil {
		q = q.Where("user_id = ?", *f.UserID)
	}
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.ReviewedBy != nil {
		q = q.Where("reviewed_by = ?", *f.ReviewedBy)
	}
	if f.ReviewedFrom != nil {
		q = q.Where("reviewed_at >= ?", *f.ReviewedFrom)
	}
	return q
}
