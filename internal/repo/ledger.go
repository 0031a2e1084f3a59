package repo

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/richardliu001/smm-panel/internal/model"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// CreateTransactions appends ledger rows. Rows are never updated afterwards.
func (r *Repository) CreateTransactions(ctx context.Context, tx *gorm.DB, rows ...*model.Transaction) error {
	if len(rows) == 0 {
		return nil
	}
	for _, t := range rows {
		if t.Amount.IsNegative() {
			return fmt.Errorf("ledger %s amount %s is negative", t.Type, t.Amount)
		}
	}
	return r.conn(ctx, tx).Create(rows).Error
}

func (r *Repository) ListTransactions(ctx context.Context, tx *gorm.DB, userID uuid.UUID, limit int, since time.Time) ([]model.Transaction, error) {
	var txs []model.Transaction
	err := r.conn(ctx, tx).
		Where("user_id = ? AND created_at >= ?", userID, since).
		Order("created_at desc").
		Limit(limit).
		Find(&txs).Error
	return txs, err
}

func (r *Repository) SumTransactions(ctx context.Context, tx *gorm.DB, f LedgerFilter) (decimal.Decimal, error) {
	q := r.conn(ctx, tx).Model(&model.Transaction{})
	if f.UserID != nil {
		q = q.Where("user_id = ?", *f.UserID)
	}
	if f.Type != "" {
		q = q.Where("type = ?", f.Type)
	}
	if f.Direction != "" {
		q = q.Where("direction = ?", f.Direction)
	}
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	return sumAmount(q)
}

func sumAmount(q *gorm.DB) (decimal.Decimal, error) {
	var total decimal.NullDecimal
	if err := q.Select("SUM(amount)").Row().Scan(&total); err != nil {
		return decimal.Zero, err
	}
	if !total.Valid {
		return decimal.Zero, nil
	}
	return total.Decimal, nil
}
