package service

import (
	"errors"
	"fmt"

	"github.com/richardliu001/smm-panel/internal/repo"
	"gorm.io/gorm"
)

var (
	ErrValidation        = errors.New("validation failed")
	ErrInsufficientFunds = repo.ErrInsufficientFunds
	ErrRecipientNotFound = errors.New("recipient not found")
	ErrSelfTransfer      = errors.New("cannot transfer to yourself")
	ErrInvalidState      = errors.New("invalid state")
	ErrPersistence       = errors.New("persistence failure")
	ErrNotFound          = errors.New("not found")
	ErrConflict          = errors.New("already exists")
	ErrForbidden         = errors.New("forbidden")
	ErrUnauthorized      = errors.New("invalid credentials")
	ErrAccountSuspended  = errors.New("account suspended")
	ErrAccountLocked     = errors.New("account temporarily locked")
)

// ProviderError is a failed call to the order provider. Message is safe to
// show to the customer.
type ProviderError struct {
	Message string
	Err     error
}

func (e *ProviderError) Error() string { return "order provider: " + e.Err.Error() }

func (e *ProviderError) Unwrap() error { return e.Err }

func validationf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

var domainErrors = []error{
	ErrValidation, ErrInsufficientFunds, ErrRecipientNotFound, ErrSelfTransfer, ErrInvalidState,
	ErrPersistence, ErrNotFound, ErrConflict, ErrForbidden, ErrUnauthorized, ErrAccountSuspended,
	ErrAccountLocked,
}

// classify maps storage errors onto the service taxonomy and passes domain
// errors through untouched.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var perr *ProviderError
	if errors.As(err, &perr) {
		return err
	}
	for _, d := range domainErrors {
		if errors.Is(err, d) {
			return err
		}
	}
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return fmt.Errorf("%w: %v", ErrNotFound, err)
	case errors.Is(err, repo.ErrStateConflict):
		return fmt.Errorf("%w: %v", ErrInvalidState, err)
	case errors.Is(err, repo.ErrDuplicate):
		return fmt.Errorf("%w: %v", ErrConflict, err)
	}
	return fmt.Errorf("%w: %w", ErrPersistence, err)
}
