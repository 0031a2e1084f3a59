package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/richardliu001/smm-panel/internal/auth"
	"github.com/richardliu001/smm-panel/internal/config"
	"github.com/richardliu001/smm-panel/internal/lock"
	"github.com/richardliu001/smm-panel/internal/model"
	"github.com/richardliu001/smm-panel/internal/provider"
	"github.com/richardliu001/smm-panel/internal/repo"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// OrderProvider is the remote SMM API.
type OrderProvider interface {
	Services(ctx context.Context) ([]provider.Service, error)
	PlaceOrder(ctx context.Context, req provider.OrderRequest) (*provider.OrderResult, error)
	OrderStatus(ctx context.Context, orderID string) (*provider.Status, error)
	Balance(ctx context.Context) (*provider.Balance, error)
}

// Options are the business constants of the panel.
type Options struct {
	MinDeposit           decimal.Decimal
	PlatformAccountEmail string
	Support              config.SupportConfig
	Catalog              []config.CatalogEntry
	MaxFailedLogins      int
	Lockout              time.Duration
}

// OptionsFromConfig picks the service options out of the loaded config.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		MinDeposit:           cfg.Billing.MinDeposit.Decimal,
		PlatformAccountEmail: cfg.Billing.PlatformAccountEmail,
		Support:              cfg.Support,
		Catalog:              cfg.Catalog,
		MaxFailedLogins:      cfg.Auth.MaxFailedLogins,
		Lockout:              cfg.Auth.Lockout,
	}
}

// Actor is the authenticated user performing a staff action.
type Actor struct {
	UserID uuid.UUID
	Role   model.Role
	IP     string
}

// PanelService glues business logic and repository.
type PanelService struct {
	repo     repo.RepositoryInterface
	provider OrderProvider
	locker   lock.Locker
	tokens   *auth.TokenManager
	opts     Options
	catalog  map[string]config.CatalogEntry
	log      *zap.SugaredLogger
	now      func() time.Time
}

// NewPanelService returns PanelService.
func NewPanelService(r repo.RepositoryInterface, p OrderProvider, l lock.Locker, tokens *auth.TokenManager, opts Options, logger *zap.SugaredLogger) *PanelService {
	catalog := make(map[string]config.CatalogEntry, len(opts.Catalog))
	for _, e := range opts.Catalog {
		catalog[e.ServiceID] = e
	}
	return &PanelService{
		repo:     r,
		provider: p,
		locker:   l,
		tokens:   tokens,
		opts:     opts,
		catalog:  catalog,
		log:      logger,
		now:      time.Now,
	}
}

// Repo exposes underlying repository (unit tests helper).
func (s *PanelService) Repo() repo.RepositoryInterface {
	return s.repo
}

// withUserLock runs fn while holding the user's balance lock.
func (s *PanelService) withUserLock(ctx context.Context, userID uuid.UUID, fn func() error) error {
	release, err := s.locker.Acquire(ctx, lock.UserKey(userID))
	if err != nil {
		return fmt.Errorf("%w: acquire user lock: %w", ErrPersistence, err)
	}
	defer func() {
		if err := release(); err != nil {
			s.log.Warnw("release user lock", "user_id", userID, "err", err)
		}
	}()
	return fn()
}

// mutate runs fn in one transaction under userID's lock, then refreshes the
// cached balance of every user fn marked as touched. Users other than userID
// are not locked here; their cache entries stay ordered by row version.
func (s *PanelService) mutate(ctx context.Context, userID uuid.UUID, fn func(tx *gorm.DB, touched map[uuid.UUID]bool) error) error {
	return s.withUserLock(ctx, userID, func() error {
		touched := map[uuid.UUID]bool{}
		if err := s.repo.DB(ctx).Transaction(func(tx *gorm.DB) error { return fn(tx, touched) }); err != nil {
			return err
		}
		ids := make([]uuid.UUID, 0, len(touched))
		for id := range touched {
			ids = append(ids, id)
		}
		s.refreshCache(ctx, ids...)
		return nil
	})
}

// fail classifies err and logs it once at a level matching its kind.
func (s *PanelService) fail(op string, err error) error {
	err = classify(err)
	var perr *ProviderError
	switch {
	case errors.Is(err, ErrPersistence):
		s.log.Errorw(op+" failed", "err", err)
	case errors.As(err, &perr):
		s.log.Warnw(op+" failed", "err", err)
	default:
		s.log.Debugw(op+" rejected", "err", err)
	}
	return err
}

// refreshCache best-effort reloads committed balances into the cache. The
// write is conditional on the row version, so a slower writer holding an
// older read never replaces a newer entry.
func (s *PanelService) refreshCache(ctx context.Context, ids ...uuid.UUID) {
	for _, id := range ids {
		u, err := s.repo.GetUser(ctx, nil, id)
		if err == nil {
			err = s.repo.CacheBalance(ctx, id, u.Balance, u.Version)
		}
		if err != nil {
			s.log.Warnw("cache balance", "user_id", id, "err", err)
		}
	}
}

func (s *PanelService) audit(ctx context.Context, tx *gorm.DB, actor Actor, action string, target uuid.UUID, targetType string, details map[string]interface{}) error {
	return s.repo.CreateAdminLog(ctx, tx, &model.AdminLog{
		AdminID:      actor.UserID,
		Action:       action,
		TargetUserID: &target,
		TargetType:   targetType,
		Details:      model.JSON(details),
		IPAddress:    actor.IP,
	})
}

func (s *PanelService) remediation() string {
	msg := "This service is out of stock or unavailable. Contact support"
	if s.opts.Support.WhatsApp != "" {
		msg += " on WhatsApp: " + s.opts.Support.WhatsApp
	}
	if s.opts.Support.Email != "" {
		msg += " or by email: " + s.opts.Support.Email
	}
	return msg + "."
}

// checkAmount requires a positive value with at most cent precision.
func checkAmount(amt decimal.Decimal, field string) error {
	if !amt.IsPositive() {
		return validationf("%s must be greater than 0", field)
	}
	if !amt.Equal(amt.Round(2)) {
		return validationf("%s must have at most two decimal places", field)
	}
	return nil
}

func usd(amt decimal.Decimal) string { return "$" + amt.StringFixed(2) }

func clampLimit(limit, def, max int) int {
	if limit <= 0 {
		return def
	}
	if limit > max {
		return max
	}
	return limit
}
