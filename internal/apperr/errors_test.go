package apperr

import (
	"errors"
	"testing"
	"time"
)

func TestCooldownErrorMatchesSentinel(t *testing.T) {
	next := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	var err error = &CooldownError{NextEligibleAt: next}

	if !errors.Is(err, ErrCooldownActive) {
		t.Fatal("expected CooldownError to match ErrCooldownActive")
	}
	var cd *CooldownError
	if !errors.As(err, &cd) || !cd.NextEligibleAt.Equal(next) {
		t.Fatalf("expected next eligible time %v, got %+v", next, cd)
	}
}

func TestStoreWrapsOnce(t *testing.T) {
	cause := errors.New("connection reset")
	err := Store(cause)
	if !errors.Is(err, ErrStoreUnavailable) || !errors.Is(err, cause) {
		t.Fatalf("expected wrapped store error, got %v", err)
	}
	if again := Store(err); again != err {
		t.Errorf("expected already wrapped error to be returned unchanged")
	}
	if Store(nil) != nil {
		t.Error("expected nil for nil")
	}
}
