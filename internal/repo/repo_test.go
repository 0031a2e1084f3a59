package repo

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/richardliu001/smm-panel/internal/model"
	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type capturePublisher struct {
	msgs []kafka.Message
}

func (p *capturePublisher) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	p.msgs = append(p.msgs, msgs...)
	return nil
}

func newTestRepo(t *testing.T) (*Repository, *capturePublisher) {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(Models()...))
	pub := &capturePublisher{}
	return NewRepository(db, nil, pub, zap.NewNop().Sugar()), pub
}

func seedUser(t *testing.T, r *Repository, email string, balance int64) *model.User {
	t.Helper()
	ctx := context.Background()
	u := &model.User{FullName: email, Email: email, PasswordHash: "x", Role: model.RoleClient, Status: model.UserActive}
	require.NoError(t, r.CreateUser(ctx, nil, u))
	if balance != 0 {
		require.NoError(t, r.DB(ctx).Transaction(func(tx *gorm.DB) error {
			_, _, err := r.AdjustBalance(ctx, tx, u.ID, decimal.NewFromInt(balance))
			return err
		}))
	}
	return u
}

func balanceOf(t *testing.T, r *Repository, id uuid.UUID) decimal.Decimal {
	t.Helper()
	u, err := r.GetUser(context.Background(), nil, id)
	require.NoError(t, err)
	return u.Balance
}
