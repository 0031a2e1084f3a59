package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/richardliu001/smm-panel/internal/auth"
	"github.com/richardliu001/smm-panel/internal/config"
	"github.com/richardliu001/smm-panel/internal/lock"
	"github.com/richardliu001/smm-panel/internal/model"
	"github.com/richardliu001/smm-panel/internal/provider"
	"github.com/richardliu001/smm-panel/internal/repo"
	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type nopPublisher struct{}

func (nopPublisher) WriteMessages(context.Context, ...kafka.Message) error { return nil }

type fakeProvider struct {
	mu        sync.Mutex
	placed    []provider.OrderRequest
	placeErr  error
	statuses  map[string]*provider.Status
	statusErr error
	balance   *provider.Balance
	services  []provider.Service
}

func (f *fakeProvider) Services(context.Context) ([]provider.Service, error) {
	return f.services, nil
}

func (f *fakeProvider) PlaceOrder(_ context.Context, req provider.OrderRequest) (*provider.OrderResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.placeErr != nil {
		return nil, f.placeErr
	}
	f.placed = append(f.placed, req)
	id := fmt.Sprintf("%d", 9000+len(f.placed))
	return &provider.OrderResult{OrderID: id, Raw: `{"order":` + id + `}`}, nil
}

func (f *fakeProvider) OrderStatus(_ context.Context, id string) (*provider.Status, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.statusErr != nil {
		return nil, f.statusErr
	}
	if st, ok := f.statuses[id]; ok {
		return st, nil
	}
	return &provider.Status{Status: "In progress"}, nil
}

func (f *fakeProvider) Balance(context.Context) (*provider.Balance, error) {
	if f.balance == nil {
		return nil, errors.New("unavailable")
	}
	return f.balance, nil
}

func (f *fakeProvider) placedCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.placed)
}

type fixture struct {
	svc  *PanelService
	repo *repo.Repository
	prov *fakeProvider
}

func testOptions() Options {
	return Options{
		MinDeposit:           decimal.NewFromInt(10),
		PlatformAccountEmail: "house@panel.local",
		Support:              config.SupportConfig{WhatsApp: "+10000000000", Email: "help@panel.local"},
		Catalog: []config.CatalogEntry{
			{ServiceID: "101", Name: "Instagram Followers", Platform: "instagram", Type: "followers",
				UnitPrice: config.Amount{Decimal: decimal.RequireFromString("0.05")}, Min: 100, Max: 10000},
			{ServiceID: "201", Name: "TikTok Views", Platform: "tiktok", Type: "views",
				UnitPrice: config.Amount{Decimal: decimal.RequireFromString("0.01")}, Min: 1, Max: 100000},
		},
		MaxFailedLogins: 3,
		Lockout:         15 * time.Minute,
	}
}

func newFixture(t *testing.T, mutate ...func(*Options)) *fixture {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(repo.Models()...))

	opts := testOptions()
	for _, m := range mutate {
		m(&opts)
	}
	log := zap.NewNop().Sugar()
	r := repo.NewRepository(db, nil, nopPublisher{}, log)
	prov := &fakeProvider{statuses: map[string]*provider.Status{}}
	svc := NewPanelService(r, prov, lock.NewLocalLocker(), auth.NewTokenManager("test-secret", time.Hour), opts, log)
	require.NoError(t, svc.Bootstrap(context.Background(), BootstrapRequest{}))
	return &fixture{svc: svc, repo: r, prov: prov}
}

func (f *fixture) client(t *testing.T, email string, balance int64) *model.User {
	t.Helper()
	u, err := f.svc.Register(context.Background(), RegisterRequest{FullName: email, Email: email, Password: "password123"})
	require.NoError(t, err)
	if balance != 0 {
		f.fund(t, u.ID, decimal.NewFromInt(balance))
	}
	return u
}

func (f *fixture) staff(t *testing.T, email string, role model.Role) Actor {
	t.Helper()
	u := &model.User{FullName: email, Email: email, PasswordHash: "x", Role: role, Status: model.UserActive}
	require.NoError(t, f.repo.CreateUser(context.Background(), nil, u))
	return Actor{UserID: u.ID, Role: role, IP: "127.0.0.1"}
}

func (f *fixture) fund(t *testing.T, id uuid.UUID, amt decimal.Decimal) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, f.repo.DB(ctx).Transaction(func(tx *gorm.DB) error {
		_, _, err := f.repo.AdjustBalance(ctx, tx, id, amt)
		return err
	}))
}

func (f *fixture) balance(t *testing.T, id uuid.UUID) decimal.Decimal {
	t.Helper()
	u, err := f.repo.GetUser(context.Background(), nil, id)
	require.NoError(t, err)
	return u.Balance
}

func (f *fixture) ledger(t *testing.T, id uuid.UUID) []model.Transaction {
	t.Helper()
	txs, err := f.repo.ListTransactions(context.Background(), nil, id, 100, time.Time{})
	require.NoError(t, err)
	return txs
}

func (f *fixture) notifications(t *testing.T, id uuid.UUID) []model.Notification {
	t.Helper()
	ns, err := f.repo.ListNotifications(context.Background(), nil, id, false, 100)
	require.NoError(t, err)
	return ns
}

func (f *fixture) house(t *testing.T) *model.User {
	t.Helper()
	u, err := f.repo.GetUserByEmail(context.Background(), nil, "house@panel.local")
	require.NoError(t, err)
	return u
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func ofType(txs []model.Transaction, typ model.TxType) []model.Transaction {
	var out []model.Transaction
	for _, t := range txs {
		if t.Type == typ {
			out = append(out, t)
		}
	}
	return out
}

// sumSigned folds a user's ledger into the balance it implies.
func sumSigned(txs []model.Transaction) decimal.Decimal {
	total := decimal.Zero
	for _, t := range txs {
		if t.Type == model.TxCommission && t.Direction == model.Debit {
			continue
		}
		total = total.Add(t.SignedAmount())
	}
	return total
}
