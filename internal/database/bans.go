package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"legacy-portal/internal/apperr"
	"legacy-portal/internal/models"
)

func (s *Store) ListBans(ctx context.Context, limit, offset int) ([]models.Ban, int64, error) {
	var total int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM bans`).Scan(&total); err != nil {
		return nil, 0, apperr.Store(err)
	}

	rows, err := s.db.QueryContext(ctx, s.rebind(`
		SELECT id, mta_serial, ip, account, admin, reason, date, until
		FROM bans ORDER BY id DESC LIMIT ? OFFSET ?`), limit, offset)
	if err != nil {
		return nil, 0, apperr.Store(err)
	}
	defer rows.Close()

	bans := []models.Ban{}
	for rows.Next() {
		var b models.Ban
		var serial, ip sql.NullString
		var account, admin sql.NullInt64
		var until sql.NullTime
		if err := rows.Scan(&b.ID, &serial, &ip, &account, &admin, &b.Reason, &b.Date, &until); err != nil {
			return nil, 0, apperr.Store(err)
		}
		b.MTASerial = nullableString(serial)
		b.IP = nullableString(ip)
		b.AccountID = nullableInt64(account)
		b.AdminID = nullableInt64(admin)
		b.Until = nullableTime(until)
		bans = append(bans, b)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, apperr.Store(err)
	}
	return bans, total, nil
}

// CreateBan stores b and fills in its id.
func (s *Store) CreateBan(ctx context.Context, b *models.Ban) error {
	err := s.db.QueryRowContext(ctx, s.rebind(`
		INSERT INTO bans (mta_serial, ip, account, admin, reason, date, until)
		VALUES (?, ?, ?, ?, ?, ?, ?) RETURNING id`),
		stringArg(b.MTASerial), stringArg(b.IP), int64Arg(b.AccountID), int64Arg(b.AdminID),
		b.Reason, b.Date.UTC(), timeArg(b.Until),
	).Scan(&b.ID)
	if err != nil {
		return apperr.Store(fmt.Errorf("create ban: %w", err))
	}
	return nil
}

// Unban ends every ban on accountID that is still in force at now and reports
// how many were lifted.
func (s *Store) Unban(ctx context.Context, accountID int64, now time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, s.rebind(`
		UPDATE bans SET until = ?
		WHERE account = ? AND (until IS NULL OR until > ?)`),
		now.UTC(), accountID, now.UTC())
	if err != nil {
		return 0, apperr.Store(fmt.Errorf("unban: %w", err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, apperr.Store(err)
	}
	return n, nil
}
