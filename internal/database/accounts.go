package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"legacy-portal/internal/apperr"
	"legacy-portal/internal/models"
)

const accountColumns = `id, username, email, avatar, admin, legacycoin`

func scanAccount(row rowScanner) (*models.Account, error) {
	var a models.Account
	var email, avatar sql.NullString
	if err := row.Scan(&a.ID, &a.Username, &email, &avatar, &a.Admin, &a.LegacyCoin); err != nil {
		return nil, err
	}
	a.Email = nullableString(email)
	a.Avatar = nullableString(avatar)
	return &a, nil
}

func (s *Store) GetAccount(ctx context.Context, id int64) (*models.Account, error) {
	a, err := scanAccount(s.db.QueryRowContext(ctx, s.rebind(`SELECT `+accountColumns+` FROM accounts WHERE id = ?`), id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.ErrAccountNotFound
	}
	if err != nil {
		return nil, apperr.Store(err)
	}
	return a, nil
}

// AccountCredentials returns the account and its stored password hash.
func (s *Store) AccountCredentials(ctx context.Context, username string) (*models.Account, string, error) {
	var a models.Account
	var email, avatar sql.NullString
	var hash string
	err := s.db.QueryRowContext(ctx, s.rebind(`SELECT `+accountColumns+`, password FROM accounts WHERE username = ?`), username).
		Scan(&a.ID, &a.Username, &email, &avatar, &a.Admin, &a.LegacyCoin, &hash)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, "", apperr.ErrAccountNotFound
	}
	if err != nil {
		return nil, "", apperr.Store(err)
	}
	a.Email = nullableString(email)
	a.Avatar = nullableString(avatar)
	return &a, hash, nil
}

func (s *Store) PasswordHash(ctx context.Context, accountID int64) (string, error) {
	var hash string
	err := s.db.QueryRowContext(ctx, s.rebind(`SELECT password FROM accounts WHERE id = ?`), accountID).Scan(&hash)
	if errors.Is(err, sql.ErrNoRows) {
		return "", apperr.ErrAccountNotFound
	}
	if err != nil {
		return "", apperr.Store(err)
	}
	return hash, nil
}

// CreateAccount inserts a portal account. The game server owns account
// creation in production; this serves seeding and tooling.
func (s *Store) CreateAccount(ctx context.Context, username, passwordHash string, balance int64) (int64, error) {
	var id int64
	err := s.db.QueryRowContext(ctx, s.rebind(`
		INSERT INTO accounts (username, password, legacycoin) VALUES (?, ?, ?) RETURNING id`),
		username, passwordHash, balance).Scan(&id)
	if err != nil {
		return 0, apperr.Store(fmt.Errorf("create account: %w", err))
	}
	return id, nil
}

func (s *Store) SetAdminLevel(ctx context.Context, accountID int64, level int) error {
	return s.execOne(ctx, `UPDATE accounts SET admin = ? WHERE id = ?`, level, accountID)
}

func (s *Store) UpdateProfile(ctx context.Context, accountID int64, email, avatar *string) error {
	return s.execOne(ctx, `UPDATE accounts SET email = ?, avatar = ? WHERE id = ?`, stringArg(email), stringArg(avatar), accountID)
}

func (s *Store) UpdatePassword(ctx context.Context, accountID int64, passwordHash string) error {
	return s.execOne(ctx, `UPDATE accounts SET password = ? WHERE id = ?`, passwordHash, accountID)
}

// execOne runs an update that must touch exactly one account row.
func (s *Store) execOne(ctx context.Context, query string, args ...any) error {
	res, err := s.db.ExecContext(ctx, s.rebind(query), args...)
	if err != nil {
		return apperr.Store(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return apperr.Store(err)
	}
	if n == 0 {
		return apperr.ErrAccountNotFound
	}
	return nil
}

// ListAccounts pages through accounts, optionally filtered by a username or
// email substring.
func (s *Store) ListAccounts(ctx context.Context, search string, limit, offset int) ([]models.Account, int64, error) {
	where := ""
	var args []any
	if search = strings.TrimSpace(search); search != "" {
		where = ` WHERE LOWER(username) LIKE ? OR LOWER(COALESCE(email, '')) LIKE ?`
		pattern := "%" + strings.ToLower(search) + "%"
		args = append(args, pattern, pattern)
	}

	var total int64
	if err := s.db.QueryRowContext(ctx, s.rebind(`SELECT COUNT(*) FROM accounts`+where), args...).Scan(&total); err != nil {
		return nil, 0, apperr.Store(err)
	}

	rows, err := s.db.QueryContext(ctx, s.rebind(`SELECT `+accountColumns+` FROM accounts`+where+` ORDER BY id ASC LIMIT ? OFFSET ?`), append(args, limit, offset)...)
	if err != nil {
		return nil, 0, apperr.Store(err)
	}
	defer rows.Close()

	accounts := []models.Account{}
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, 0, apperr.Store(err)
		}
		accounts = append(accounts, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, apperr.Store(err)
	}
	return accounts, total, nil
}

func (s *Store) CreateCharacter(ctx context.Context, accountID int64, name string) (int64, error) {
	var id int64
	err := s.db.QueryRowContext(ctx, s.rebind(`
		INSERT INTO characters (account, charactername) VALUES (?, ?) RETURNING id`),
		accountID, name).Scan(&id)
	if err != nil {
		return 0, apperr.Store(fmt.Errorf("create character: %w", err))
	}
	return id, nil
}

func (s *Store) ListCharacters(ctx context.Context, accountID int64) ([]models.Character, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(`
		SELECT id, charactername, account, money, bankmoney, hoursplayed
		FROM characters WHERE account = ?
		ORDER BY id ASC`), accountID)
	if err != nil {
		return nil, apperr.Store(err)
	}
	defer rows.Close()

	chars := []models.Character{}
	for rows.Next() {
		var c models.Character
		var name sql.NullString
		if err := rows.Scan(&c.ID, &name, &c.AccountID, &c.Money, &c.BankMoney, &c.HoursPlayed); err != nil {
			return nil, apperr.Store(err)
		}
		c.Name = nullableString(name)
		chars = append(chars, c)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Store(err)
	}
	return chars, nil
}

func (s *Store) CharacterBelongsTo(ctx context.Context, characterID, accountID int64) (bool, error) {
	var owner int64
	err := s.db.QueryRowContext(ctx, s.rebind(`SELECT account FROM characters WHERE id = ?`), characterID).Scan(&owner)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, apperr.Store(err)
	}
	return owner == accountID, nil
}

func (s *Store) ListDiscountCodes(ctx context.Context, accountID int64) ([]models.DiscountCode, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(`
		SELECT id, account_id, code, percent, used, created_at, used_at, expires_at
		FROM web_discount_codes WHERE account_id = ?
		ORDER BY id DESC`), accountID)
	if err != nil {
		return nil, apperr.Store(err)
	}
	defer rows.Close()

	codes := []models.DiscountCode{}
	for rows.Next() {
		dc, err := scanDiscountCode(rows)
		if err != nil {
			return nil, apperr.Store(err)
		}
		codes = append(codes, *dc)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Store(err)
	}
	return codes, nil
}

func (s *Store) LatestSpin(ctx context.Context, accountID int64) (*models.SpinRecord, error) {
	return latestSpin(ctx, s.db, s, accountID)
}

// ListDeliveries pages through the delivery queue. An empty status lists all.
func (s *Store) ListDeliveries(ctx context.Context, status models.DeliveryStatus, limit, offset int) ([]models.DeliveryEntry, int64, error) {
	where := ""
	var args []any
	if status != "" {
		where = ` WHERE status = ?`
		args = append(args, string(status))
	}

	var total int64
	if err := s.db.QueryRowContext(ctx, s.rebind(`SELECT COUNT(*) FROM web_purchase_queue`+where), args...).Scan(&total); err != nil {
		return nil, 0, apperr.Store(err)
	}

	rows, err := s.db.QueryContext(ctx, s.rebind(`
		SELECT id, account_id, character_id, item_id, item_value, status, created_at
		FROM web_purchase_queue`+where+` ORDER BY id DESC LIMIT ? OFFSET ?`), append(args, limit, offset)...)
	if err != nil {
		return nil, 0, apperr.Store(err)
	}
	defer rows.Close()

	entries := []models.DeliveryEntry{}
	for rows.Next() {
		var e models.DeliveryEntry
		var st string
		if err := rows.Scan(&e.ID, &e.AccountID, &e.CharacterID, &e.ItemID, &e.ItemValue, &st, &e.CreatedAt); err != nil {
			return nil, 0, apperr.Store(err)
		}
		e.Status = models.DeliveryStatus(st)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, apperr.Store(err)
	}
	return entries, total, nil
}

// ServerStats counts accounts, characters and bans still in force at now.
func (s *Store) ServerStats(ctx context.Context, now time.Time) (models.ServerStats, error) {
	var st models.ServerStats
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM accounts`).Scan(&st.TotalAccounts); err != nil {
		return st, apperr.Store(err)
	}
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM characters`).Scan(&st.TotalCharacters); err != nil {
		return st, apperr.Store(err)
	}
	err := s.db.QueryRowContext(ctx, s.rebind(`SELECT COUNT(*) FROM bans WHERE until IS NULL OR until > ?`), now.UTC()).Scan(&st.ActiveBans)
	if err != nil {
		return st, apperr.Store(err)
	}
	return st, nil
}
