package repo

import (
	"context"
	"errors"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/richardliu001/smm-panel/internal/model"
	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	// ErrInsufficientFunds is returned when a mutation would drive a balance below zero.
	ErrInsufficientFunds = errors.New("insufficient funds")
	// ErrVersionConflict means the row changed between read and write.
	ErrVersionConflict = errors.New("optimistic lock conflict")
	// ErrStateConflict means a guarded status transition matched no row.
	ErrStateConflict = errors.New("status transition conflict")
	// ErrDuplicate wraps unique constraint violations.
	ErrDuplicate = errors.New("duplicate record")
)

// Publisher is the part of *kafka.Writer the relay needs.
type Publisher interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// UserFilter narrows ListUsers. Zero values match everything.
type UserFilter struct {
	Role   model.Role
	Status model.UserStatus
}

// DepositFilter narrows deposit queries. Zero values match everything.
type DepositFilter struct {
	UserID       *uuid.UUID
	Status       model.DepositStatus
	ReviewedBy   *uuid.UUID
	ReviewedFrom *time.Time
}

// LedgerFilter narrows SumTransactions.
type LedgerFilter struct {
	UserID    *uuid.UUID
	Type      model.TxType
	Direction model.Direction
	Status    model.TxStatus
}

// RepositoryInterface restricts Repo methods so services can be tested against fakes.
type RepositoryInterface interface {
	DB(ctx context.Context) *gorm.DB

	CreateUser(ctx context.Context, tx *gorm.DB, u *model.User) error
	GetUser(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*model.User, error)
	GetUserByEmail(ctx context.Context, tx *gorm.DB, email string) (*model.User, error)
	UserExists(ctx context.Context, tx *gorm.DB, email string, phone *string) (bool, error)
	ListUsers(ctx context.Context, tx *gorm.DB, f UserFilter) ([]model.User, error)
	ListStaffIDs(ctx context.Context, tx *gorm.DB) ([]uuid.UUID, error)
	CountUsers(ctx context.Context, tx *gorm.DB, f UserFilter) (int64, error)
	UpdateUserStatus(ctx context.Context, tx *gorm.DB, id uuid.UUID, from, to model.UserStatus) error
	RecordLoginFailure(ctx context.Context, tx *gorm.DB, id uuid.UUID, attempts int, lockedUntil *time.Time) error
	ResetLoginFailures(ctx context.Context, tx *gorm.DB, id uuid.UUID) error

	AdjustBalance(ctx context.Context, tx *gorm.DB, userID uuid.UUID, delta decimal.Decimal) (before, after decimal.Decimal, err error)

	CreateTransactions(ctx context.Context, tx *gorm.DB, rows ...*model.Transaction) error
	ListTransactions(ctx context.Context, tx *gorm.DB, userID uuid.UUID, limit int, since time.Time) ([]model.Transaction, error)
	SumTransactions(ctx context.Context, tx *gorm.DB, f LedgerFilter) (decimal.Decimal, error)

	CreateDeposit(ctx context.Context, tx *gorm.DB, d *model.Deposit) error
	GetDeposit(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*model.Deposit, error)
	ListDeposits(ctx context.Context, tx *gorm.DB, f DepositFilter) ([]model.Deposit, error)
	CountDeposits(ctx context.Context, tx *gorm.DB, f DepositFilter) (int64, error)
	SumDeposits(ctx context.Context, tx *gorm.DB, f DepositFilter) (decimal.Decimal, error)
	ReviewDeposit(ctx context.Context, tx *gorm.DB, id uuid.UUID, to model.DepositStatus, reviewer uuid.UUID, reason *string) error

	CreateTransfer(ctx context.Context, tx *gorm.DB, t *model.Transfer) error
	ListTransfers(ctx context.Context, tx *gorm.DB, userID uuid.UUID, limit int) ([]model.Transfer, error)

	CreateOrder(ctx context.Context, tx *gorm.DB, o *model.Order) error
	GetOrder(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*model.Order, error)
	ListOrders(ctx context.Context, tx *gorm.DB, userID uuid.UUID, limit int) ([]model.Order, error)
	ListOrdersByStatus(ctx context.Context, tx *gorm.DB, status model.OrderStatus, limit int) ([]model.Order, error)
	CountOrders(ctx context.Context, tx *gorm.DB, userID *uuid.UUID) (int64, error)
	TransitionOrder(ctx context.Context, tx *gorm.DB, id uuid.UUID, from model.OrderStatus, fields map[string]interface{}) error

	CreateNotifications(ctx context.Context, tx *gorm.DB, rows ...*model.Notification) error
	ListNotifications(ctx context.Context, tx *gorm.DB, userID uuid.UUID, unreadOnly bool, limit int) ([]model.Notification, error)
	CountUnread(ctx context.Context, tx *gorm.DB, userID uuid.UUID) (int64, error)
	MarkNotificationRead(ctx context.Context, tx *gorm.DB, userID, id uuid.UUID) error
	MarkAllNotificationsRead(ctx context.Context, tx *gorm.DB, userID uuid.UUID) (int64, error)

	CreateAdminLog(ctx context.Context, tx *gorm.DB, l *model.AdminLog) error
	ListAdminLogs(ctx context.Context, tx *gorm.DB, limit int) ([]model.AdminLog, error)

	CreateOutboxEvent(ctx context.Context, tx *gorm.DB, evt *model.OutboxEvent) error
	PollOutbox(ctx context.Context, limit int) ([]model.OutboxEvent, error)
	MarkOutboxProcessed(ctx context.Context, id uint64) error
	PublishEvent(ctx context.Context, evt model.OutboxEvent) error

	CacheBalance(ctx context.Context, userID uuid.UUID, bal decimal.Decimal, version uint64) error
	GetCachedBalance(ctx context.Context, userID uuid.UUID) (decimal.Decimal, error)
}

// Repository implements RepositoryInterface.
type Repository struct {
	db     *gorm.DB
	rdb    *redis.Client
	writer Publisher
	log    *zap.SugaredLogger
}

// NewRepository constructs repo. rdb may be nil, which disables the balance cache.
func NewRepository(db *gorm.DB, rdb *redis.Client, w Publisher, logger *zap.SugaredLogger) *Repository {
	return &Repository{db: db, rdb: rdb, writer: w, log: logger}
}

// Models lists every table for AutoMigrate.
func Models() []interface{} {
	return []interface{}{
		&model.User{}, &model.Transaction{}, &model.Deposit{}, &model.Transfer{},
		&model.Order{}, &model.Notification{}, &model.AdminLog{}, &model.OutboxEvent{},
	}
}

// DB returns underlying *gorm.DB
func (r *Repository) DB(ctx context.Context) *gorm.DB { return r.db.WithContext(ctx) }

func (r *Repository) conn(ctx context.Context, tx *gorm.DB) *gorm.DB {
	if tx == nil {
		return r.db.WithContext(ctx)
	}
	return tx.WithContext(ctx)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgerrcode.UniqueViolation
	}
	return errors.Is(err, gorm.ErrDuplicatedKey)
}
