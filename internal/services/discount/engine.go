package discount

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"legacy-portal/internal/apperr"
	"legacy-portal/internal/database"
	"legacy-portal/internal/models"
	"legacy-portal/internal/util/discountcode"
)

// MaxIssueAttempts bounds how many fresh codes Issue tries before giving up.
const MaxIssueAttempts = 5

// Engine issues, validates and consumes discount codes inside a caller's
// transaction. It never opens a transaction itself.
type Engine struct {
	src    discountcode.Source
	mu     sync.Mutex
	now    func() time.Time
	length int
	logger *slog.Logger
}

func NewEngine(src discountcode.Source, now func() time.Time, logger *slog.Logger) *Engine {
	if now == nil {
		now = time.Now
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		src:    src,
		now:    now,
		length: discountcode.DefaultLength,
		logger: logger,
	}
}

// Generate returns a fresh candidate code. Uniqueness is only checked on insert.
func (e *Engine) Generate() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return discountcode.Generate(e.src, e.length)
}

// Issue binds a new code to accountID. validForDays <= 0 issues a code
// without expiry.
func (e *Engine) Issue(ctx context.Context, tx database.Tx, accountID int64, percent, validForDays int) (*models.DiscountCode, error) {
	now := e.now().UTC()
	var expiresAt *time.Time
	if validForDays > 0 {
		exp := now.Add(time.Duration(validForDays) * 24 * time.Hour)
		expiresAt = &exp
	}

	for attempt := 1; attempt <= MaxIssueAttempts; attempt++ {
		dc := &models.DiscountCode{
			AccountID: accountID,
			Code:      e.Generate(),
			Percent:   ClampPercent(percent),
			CreatedAt: now,
			ExpiresAt: expiresAt,
		}
		err := tx.InsertDiscountCode(ctx, dc)
		if err == nil {
			return dc, nil
		}
		if !errors.Is(err, database.ErrDuplicateCode) {
			return nil, err
		}
		e.logger.Debug("discount code collision", "attempt", attempt, "account", accountID)
	}
	return nil, apperr.ErrCodeIssuanceExhausted
}

// Validate succeeds only for an existing, unused, unexpired code owned by
// accountID.
func (e *Engine) Validate(ctx context.Context, tx database.Tx, code string, accountID int64) (*models.DiscountCode, error) {
	code = discountcode.Normalize(code)
	if code == "" {
		return nil, apperr.ErrInvalidOrUsedCode
	}
	dc, err := tx.GetDiscountCode(ctx, code)
	if errors.Is(err, database.ErrNotFound) {
		return nil, apperr.ErrInvalidOrUsedCode
	}
	if err != nil {
		return nil, err
	}
	if dc.AccountID != accountID || !dc.Usable(e.now()) {
		return nil, apperr.ErrInvalidOrUsedCode
	}
	return dc, nil
}

// Consume marks the code used. Losing a redemption race is reported as
// ErrInvalidOrUsedCode.
func (e *Engine) Consume(ctx context.Context, tx database.Tx, code string, accountID int64) error {
	ok, err := tx.ConsumeDiscountCode(ctx, discountcode.Normalize(code), accountID, e.now().UTC())
	if err != nil {
		return err
	}
	if !ok {
		return apperr.ErrInvalidOrUsedCode
	}
	return nil
}

// ClampPercent limits a discount to [0,100].
func ClampPercent(p int) int {
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}
