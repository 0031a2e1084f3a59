package repo

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestAdjustBalance_CreditAndDebit(t *testing.T) {
	r, _ := newTestRepo(t)
	ctx := context.Background()
	u := seedUser(t, r, "a@example.com", 100)

	var before, after decimal.Decimal
	err := r.DB(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		before, after, err = r.AdjustBalance(ctx, tx, u.ID, decimal.NewFromInt(-30))
		return err
	})
	require.NoError(t, err)
	assert.True(t, before.Equal(decimal.NewFromInt(100)))
	assert.True(t, after.Equal(decimal.NewFromInt(70)))
	assert.True(t, balanceOf(t, r, u.ID).Equal(decimal.NewFromInt(70)))
}

func TestAdjustBalance_FloorAtZero(t *testing.T) {
	r, _ := newTestRepo(t)
	ctx := context.Background()
	u := seedUser(t, r, "a@example.com", 10)

	err := r.DB(ctx).Transaction(func(tx *gorm.DB) error {
		_, _, err := r.AdjustBalance(ctx, tx, u.ID, decimal.NewFromInt(-11))
		return err
	})
	assert.ErrorIs(t, err, ErrInsufficientFunds)
	assert.True(t, balanceOf(t, r, u.ID).Equal(decimal.NewFromInt(10)))
}

func TestAdjustBalance_UnknownUser(t *testing.T) {
	r, _ := newTestRepo(t)
	ctx := context.Background()
	err := r.DB(ctx).Transaction(func(tx *gorm.DB) error {
		_, _, err := r.AdjustBalance(ctx, tx, uuid.New(), decimal.NewFromInt(5))
		return err
	})
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestAdjustBalance_ConcurrentDebits(t *testing.T) {
	r, _ := newTestRepo(t)
	ctx := context.Background()
	u := seedUser(t, r, "a@example.com", 100)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = r.DB(ctx).Transaction(func(tx *gorm.DB) error {
				_, _, err := r.AdjustBalance(ctx, tx, u.ID, decimal.NewFromInt(-60))
				return err
			})
		}(i)
	}
	wg.Wait()

	failed := 0
	for _, err := range errs {
		if errors.Is(err, ErrInsufficientFunds) {
			failed++
		} else {
			require.NoError(t, err)
		}
	}
	assert.Equal(t, 1, failed, "only one debit may succeed")
	assert.True(t, balanceOf(t, r, u.ID).Equal(decimal.NewFromInt(40)))
}

func TestAdjustBalance_RollsBackWithTransaction(t *testing.T) {
	r, _ := newTestRepo(t)
	ctx := context.Background()
	u := seedUser(t, r, "a@example.com", 50)

	boom := errors.New("ledger write failed")
	err := r.DB(ctx).Transaction(func(tx *gorm.DB) error {
		if _, _, err := r.AdjustBalance(ctx, tx, u.ID, decimal.NewFromInt(-20)); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.True(t, balanceOf(t, r, u.ID).Equal(decimal.NewFromInt(50)))
}
