package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"legacy-portal/internal/apperr"
	"legacy-portal/internal/models"
)

// Tx is the set of writes a purchase or spin performs atomically.
// Every method runs on the same underlying transaction.
type Tx interface {
	LockBalance(ctx context.Context, accountID int64) (int64, error)
	AdjustBalance(ctx context.Context, accountID, delta int64) (int64, error)
	GetDiscountCode(ctx context.Context, code string) (*models.DiscountCode, error)
	InsertDiscountCode(ctx context.Context, code *models.DiscountCode) error
	ConsumeDiscountCode(ctx context.Context, code string, accountID int64, usedAt time.Time) (bool, error)
	InsertDelivery(ctx context.Context, entry *models.DeliveryEntry) error
	LatestSpin(ctx context.Context, accountID int64) (*models.SpinRecord, error)
	InsertSpin(ctx context.Context, spin *models.SpinRecord) error
}

type sqlTx struct {
	tx *sql.Tx
	s  *Store
}

// LockBalance reads the account balance and holds its row lock until the
// transaction ends.
func (t *sqlTx) LockBalance(ctx context.Context, accountID int64) (int64, error) {
	var balance int64
	err := t.tx.QueryRowContext(ctx, t.s.rebind(`SELECT legacycoin FROM accounts WHERE id = ?`+t.s.forUpdate()), accountID).Scan(&balance)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, apperr.ErrAccountNotFound
	}
	if err != nil {
		return 0, apperr.Store(fmt.Errorf("lock balance: %w", err))
	}
	return balance, nil
}

// AdjustBalance adds delta to the balance and returns the new value. A debit
// that would take the balance below zero changes nothing.
func (t *sqlTx) AdjustBalance(ctx context.Context, accountID, delta int64) (int64, error) {
	var balance int64
	err := t.tx.QueryRowContext(ctx, t.s.rebind(`
		UPDATE accounts SET legacycoin = legacycoin + ?
		WHERE id = ? AND legacycoin + ? >= 0
		RETURNING legacycoin`), delta, accountID, delta).Scan(&balance)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, apperr.ErrInsufficientFunds
	}
	if err != nil {
		return 0, apperr.Store(fmt.Errorf("adjust balance: %w", err))
	}
	return balance, nil
}

func (t *sqlTx) GetDiscountCode(ctx context.Context, code string) (*models.DiscountCode, error) {
	dc, err := scanDiscountCode(t.tx.QueryRowContext(ctx, t.s.rebind(`
		SELECT id, account_id, code, percent, used, created_at, used_at, expires_at
		FROM web_discount_codes WHERE code = ?`+t.s.forUpdate()), code))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, apperr.Store(fmt.Errorf("get discount code: %w", err))
	}
	return dc, nil
}

// InsertDiscountCode stores a new code. A collision on the code string returns
// ErrDuplicateCode and leaves the transaction usable for another attempt.
func (t *sqlTx) InsertDiscountCode(ctx context.Context, code *models.DiscountCode) error {
	if _, err := t.tx.ExecContext(ctx, "SAVEPOINT discount_code_insert"); err != nil {
		return apperr.Store(fmt.Errorf("savepoint: %w", err))
	}
	err := t.tx.QueryRowContext(ctx, t.s.rebind(`
		INSERT INTO web_discount_codes (account_id, code, percent, used, created_at, expires_at)
		VALUES (?, ?, ?, ?, ?, ?) RETURNING id`),
		code.AccountID, code.Code, code.Percent, false, code.CreatedAt.UTC(), timeArg(code.ExpiresAt),
	).Scan(&code.ID)
	if err != nil {
		if _, rbErr := t.tx.ExecContext(ctx, "ROLLBACK TO SAVEPOINT discount_code_insert"); rbErr != nil {
			return apperr.Store(fmt.Errorf("rollback to savepoint: %w", rbErr))
		}
		_, _ = t.tx.ExecContext(ctx, "RELEASE SAVEPOINT discount_code_insert")
		if isUniqueViolation(err) {
			return ErrDuplicateCode
		}
		return apperr.Store(fmt.Errorf("insert discount code: %w", err))
	}
	if _, err := t.tx.ExecContext(ctx, "RELEASE SAVEPOINT discount_code_insert"); err != nil {
		return apperr.Store(fmt.Errorf("release savepoint: %w", err))
	}
	return nil
}

// ConsumeDiscountCode flips the code to used only if it is still unused and
// owned by accountID. It reports whether a row changed.
func (t *sqlTx) ConsumeDiscountCode(ctx context.Context, code string, accountID int64, usedAt time.Time) (bool, error) {
	res, err := t.tx.ExecContext(ctx, t.s.rebind(`
		UPDATE web_discount_codes SET used = ?, used_at = ?
		WHERE code = ? AND account_id = ? AND used = ?`),
		true, usedAt.UTC(), code, accountID, false)
	if err != nil {
		return false, apperr.Store(fmt.Errorf("consume discount code: %w", err))
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, apperr.Store(fmt.Errorf("consume discount code: %w", err))
	}
	return affected == 1, nil
}

func (t *sqlTx) InsertDelivery(ctx context.Context, entry *models.DeliveryEntry) error {
	if entry.Status == "" {
		entry.Status = models.DeliveryPending
	}
	err := t.tx.QueryRowContext(ctx, t.s.rebind(`
		INSERT INTO web_purchase_queue (account_id, character_id, item_id, item_value, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?) RETURNING id`),
		entry.AccountID, entry.CharacterID, entry.ItemID, entry.ItemValue, string(entry.Status), entry.CreatedAt.UTC(),
	).Scan(&entry.ID)
	if err != nil {
		return apperr.Store(fmt.Errorf("insert delivery: %w", err))
	}
	return nil
}

func (t *sqlTx) LatestSpin(ctx context.Context, accountID int64) (*models.SpinRecord, error) {
	return latestSpin(ctx, t.tx, t.s, accountID)
}

func (t *sqlTx) InsertSpin(ctx context.Context, spin *models.SpinRecord) error {
	err := t.tx.QueryRowContext(ctx, t.s.rebind(`
		INSERT INTO web_wheel_spins (account_id, outcome, reward_value, created_at)
		VALUES (?, ?, ?, ?) RETURNING id`),
		spin.AccountID, spin.Outcome, int64Arg(spin.RewardValue), spin.CreatedAt.UTC(),
	).Scan(&spin.ID)
	if err != nil {
		return apperr.Store(fmt.Errorf("insert spin: %w", err))
	}
	return nil
}

// latestSpin returns nil without error when the account has never spun.
func latestSpin(ctx context.Context, q querier, s *Store, accountID int64) (*models.SpinRecord, error) {
	var rec models.SpinRecord
	var reward sql.NullInt64
	err := q.QueryRowContext(ctx, s.rebind(`
		SELECT id, account_id, outcome, reward_value, created_at
		FROM web_wheel_spins WHERE account_id = ?
		ORDER BY id DESC LIMIT 1`), accountID).
		Scan(&rec.ID, &rec.AccountID, &rec.Outcome, &reward, &rec.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, apperr.Store(fmt.Errorf("latest spin: %w", err))
	}
	rec.RewardValue = nullableInt64(reward)
	return &rec, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDiscountCode(row rowScanner) (*models.DiscountCode, error) {
	var dc models.DiscountCode
	var usedAt, expiresAt sql.NullTime
	if err := row.Scan(&dc.ID, &dc.AccountID, &dc.Code, &dc.Percent, &dc.Used, &dc.CreatedAt, &usedAt, &expiresAt); err != nil {
		return nil, err
	}
	dc.UsedAt = nullableTime(usedAt)
	dc.ExpiresAt = nullableTime(expiresAt)
	return &dc, nil
}
