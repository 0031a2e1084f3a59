package service

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/richardliu001/smm-panel/internal/auth"
	"github.com/richardliu001/smm-panel/internal/model"
	"github.com/richardliu001/smm-panel/internal/repo"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const minPasswordLen = 8

type RegisterRequest struct {
	FullName string
	Email    string
	Phone    string
	Password string
}

type LoginResult struct {
	Token     string      `json:"token"`
	ExpiresAt time.Time   `json:"expires_at"`
	User      *model.User `json:"user"`
}

// Summary is the client dashboard.
type Summary struct {
	Balance            decimal.Decimal     `json:"balance"`
	TotalOrders        int64               `json:"total_orders"`
	TotalSpent         decimal.Decimal     `json:"total_spent"`
	UnreadCount        int64               `json:"unread_notifications"`
	RecentTransactions []model.Transaction `json:"recent_transactions"`
	RecentOrders       []model.Order       `json:"recent_orders"`
}

// Register creates an active client account with a zero balance.
func (s *PanelService) Register(ctx context.Context, req RegisterRequest) (*model.User, error) {
	name := strings.TrimSpace(req.FullName)
	if name == "" {
		return nil, validationf("full name is required")
	}
	addr, err := mail.ParseAddress(strings.TrimSpace(req.Email))
	if err != nil {
		return nil, validationf("invalid email address")
	}
	if len(req.Password) < minPasswordLen {
		return nil, validationf("password must be at least %d characters", minPasswordLen)
	}
	var phone *string
	if p := strings.TrimSpace(req.Phone); p != "" {
		phone = &p
	}

	exists, err := s.repo.UserExists(ctx, nil, addr.Address, phone)
	if err != nil {
		return nil, s.fail("register", err)
	}
	if exists {
		return nil, ErrConflict
	}
	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		return nil, s.fail("register", err)
	}
	u := &model.User{
		FullName:     name,
		Email:        addr.Address,
		Phone:        phone,
		PasswordHash: hash,
		Role:         model.RoleClient,
		Status:       model.UserActive,
	}
	if err := s.repo.CreateUser(ctx, nil, u); err != nil {
		return nil, s.fail("register", err)
	}
	s.log.Infow("user registered", "user_id", u.ID)
	return u, nil
}

// Login checks credentials and issues a bearer token. Repeated failures lock
// the account for the configured lockout window.
func (s *PanelService) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	u, err := s.repo.GetUserByEmail(ctx, nil, email)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUnauthorized
	}
	if err != nil {
		return nil, s.fail("login", err)
	}
	if u.IsSystem || u.Status == model.UserDeleted {
		return nil, ErrUnauthorized
	}
	now := s.now()
	if u.LockedUntil != nil && now.Before(*u.LockedUntil) {
		return nil, ErrAccountLocked
	}

	if !auth.CheckPassword(u.PasswordHash, password) {
		attempts := u.FailedLoginAttempts + 1
		var until *time.Time
		if s.opts.MaxFailedLogins > 0 && attempts >= s.opts.MaxFailedLogins {
			t := now.Add(s.opts.Lockout)
			until = &t
			attempts = 0
			s.log.Warnw("account locked after failed logins", "user_id", u.ID, "until", t)
		}
		if err := s.repo.RecordLoginFailure(ctx, nil, u.ID, attempts, until); err != nil {
			s.log.Errorw("record login failure", "user_id", u.ID, "err", err)
		}
		return nil, ErrUnauthorized
	}
	if u.Status == model.UserSuspended {
		return nil, ErrAccountSuspended
	}
	if u.FailedLoginAttempts > 0 || u.LockedUntil != nil {
		if err := s.repo.ResetLoginFailures(ctx, nil, u.ID); err != nil {
			s.log.Errorw("reset login failures", "user_id", u.ID, "err", err)
		}
	}

	token, exp, err := s.tokens.Issue(u.ID, string(u.Role))
	if err != nil {
		return nil, s.fail("login", err)
	}
	return &LoginResult{Token: token, ExpiresAt: exp, User: u}, nil
}

// Authenticate resolves a bearer token to an active, non-system user.
func (s *PanelService) Authenticate(ctx context.Context, token string) (*model.User, error) {
	id, _, err := s.tokens.Parse(token)
	if err != nil {
		return nil, ErrUnauthorized
	}
	u, err := s.repo.GetUser(ctx, nil, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUnauthorized
	}
	if err != nil {
		return nil, s.fail("authenticate", err)
	}
	switch {
	case u.IsSystem || u.Status == model.UserDeleted:
		return nil, ErrUnauthorized
	case u.Status == model.UserSuspended:
		return nil, ErrAccountSuspended
	}
	return u, nil
}

func (s *PanelService) Profile(ctx context.Context, userID uuid.UUID) (*model.User, error) {
	u, err := s.repo.GetUser(ctx, nil, userID)
	if err != nil {
		return nil, s.fail("profile", err)
	}
	return u, nil
}

// Balance returns balance with cache fallback.
func (s *PanelService) Balance(ctx context.Context, userID uuid.UUID) (decimal.Decimal, error) {
	if bal, err := s.repo.GetCachedBalance(ctx, userID); err == nil {
		return bal, nil
	}
	u, err := s.repo.GetUser(ctx, nil, userID)
	if err != nil {
		return decimal.Zero, s.fail("balance", err)
	}
	if err := s.repo.CacheBalance(ctx, u.ID, u.Balance, u.Version); err != nil {
		s.log.Warnw("cache balance", "user_id", u.ID, "err", err)
	}
	return u.Balance, nil
}

// History lists the user's ledger, newest first. Zero since means all time.
func (s *PanelService) History(ctx context.Context, userID uuid.UUID, limit int, since time.Time) ([]model.Transaction, error) {
	txs, err := s.repo.ListTransactions(ctx, nil, userID, clampLimit(limit, 50, 200), since)
	if err != nil {
		return nil, s.fail("history", err)
	}
	return txs, nil
}

func (s *PanelService) ListTransfers(ctx context.Context, userID uuid.UUID, limit int) ([]model.Transfer, error) {
	ts, err := s.repo.ListTransfers(ctx, nil, userID, clampLimit(limit, 50, 200))
	if err != nil {
		return nil, s.fail("list transfers", err)
	}
	return ts, nil
}

func (s *PanelService) Summary(ctx context.Context, userID uuid.UUID) (*Summary, error) {
	u, err := s.repo.GetUser(ctx, nil, userID)
	if err != nil {
		return nil, s.fail("summary", err)
	}
	out := &Summary{Balance: u.Balance}
	if out.TotalOrders, err = s.repo.CountOrders(ctx, nil, &userID); err != nil {
		return nil, s.fail("summary", err)
	}
	if out.TotalSpent, err = s.repo.SumTransactions(ctx, nil, repo.LedgerFilter{
		UserID: &userID, Type: model.TxOrder, Status: model.TxCompleted,
	}); err != nil {
		return nil, s.fail("summary", err)
	}
	if out.UnreadCount, err = s.repo.CountUnread(ctx, nil, userID); err != nil {
		return nil, s.fail("summary", err)
	}
	if out.RecentTransactions, err = s.repo.ListTransactions(ctx, nil, userID, 5, time.Time{}); err != nil {
		return nil, s.fail("summary", err)
	}
	if out.RecentOrders, err = s.repo.ListOrders(ctx, nil, userID, 5); err != nil {
		return nil, s.fail("summary", err)
	}
	return out, nil
}

type BootstrapRequest struct {
	AdminEmail    string
	AdminPassword string
	AdminName     string
}

// Bootstrap makes sure the house account and the first admin exist. It is
// safe to call on every start.
func (s *PanelService) Bootstrap(ctx context.Context, req BootstrapRequest) error {
	if s.opts.PlatformAccountEmail != "" {
		if err := s.ensureUser(ctx, &model.User{
			FullName: "Platform",
			Email:    s.opts.PlatformAccountEmail,
			Role:     model.RoleClient,
			Status:   model.UserActive,
			IsSystem: true,
		}); err != nil {
			return err
		}
	}
	if req.AdminEmail == "" {
		return nil
	}
	if len(req.AdminPassword) < minPasswordLen {
		return validationf("bootstrap admin password must be at least %d characters", minPasswordLen)
	}
	hash, err := auth.HashPassword(req.AdminPassword)
	if err != nil {
		return err
	}
	name := req.AdminName
	if name == "" {
		name = "Administrator"
	}
	return s.ensureUser(ctx, &model.User{
		FullName:     name,
		Email:        req.AdminEmail,
		PasswordHash: hash,
		Role:         model.RoleAdmin,
		Status:       model.UserActive,
	})
}

func (s *PanelService) ensureUser(ctx context.Context, u *model.User) error {
	_, err := s.repo.GetUserByEmail(ctx, nil, u.Email)
	if err == nil {
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return s.fail("bootstrap", err)
	}
	if err := s.repo.CreateUser(ctx, nil, u); err != nil && !errors.Is(err, repo.ErrDuplicate) {
		return s.fail("bootstrap", err)
	}
	s.log.Infow("bootstrap account created", "email", u.Email, "role", u.Role, "system", u.IsSystem)
	return nil
}

// platformAccount loads the house account inside tx, or nil if none is configured.
func (s *PanelService) platformAccount(ctx context.Context, tx *gorm.DB) (*model.User, error) {
	if s.opts.PlatformAccountEmail == "" {
		return nil, nil
	}
	u, err := s.repo.GetUserByEmail(ctx, tx, s.opts.PlatformAccountEmail)
	if err != nil {
		return nil, err
	}
	if !u.IsSystem {
		return nil, errors.New("platform account email belongs to a regular user")
	}
	return u, nil
}
