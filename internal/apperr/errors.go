package apperr

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrUnauthenticated       = errors.New("unauthenticated")
	ErrForbiddenCharacter    = errors.New("character does not belong to account")
	ErrInvalidOrUsedCode     = errors.New("invalid or used discount code")
	ErrInsufficientFunds     = errors.New("insufficient funds")
	ErrCooldownActive        = errors.New("spin cooldown active")
	ErrCodeIssuanceExhausted = errors.New("could not issue a unique discount code")
	ErrStoreUnavailable      = errors.New("store unavailable")
	ErrUnknownItem           = errors.New("unknown shop item")
	ErrAccountNotFound       = errors.New("account not found")
)

// CooldownError reports when the account may spin again.
type CooldownError struct {
	NextEligibleAt time.Time
}

func (e *CooldownError) Error() string {
	return fmt.Sprintf("spin cooldown active until %s", e.NextEligibleAt.UTC().Format(time.RFC3339))
}

func (e *CooldownError) Is(target error) bool {
	return target == ErrCooldownActive
}

// Store wraps an infrastructure failure so callers can match ErrStoreUnavailable
// while the cause stays available for logging.
func Store(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrStoreUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
}
