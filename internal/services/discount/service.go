package discount

import (
	"context"
	"log/slog"

	"legacy-portal/internal/database"
	"legacy-portal/internal/models"
)

type codeStore interface {
	WithTx(ctx context.Context, fn func(database.Tx) error) error
	ListDiscountCodes(ctx context.Context, accountID int64) ([]models.DiscountCode, error)
}

// Service exposes code listing and stand-alone grants outside of a purchase
// or spin.
type Service struct {
	store  codeStore
	engine *Engine
	logger *slog.Logger
}

func NewService(store *database.Store, engine *Engine, logger *slog.Logger) *Service {
	return &Service{store: store, engine: engine, logger: logger}
}

func (s *Service) List(ctx context.Context, accountID int64) ([]models.DiscountCode, error) {
	return s.store.ListDiscountCodes(ctx, accountID)
}

// Grant issues a code to accountID in its own transaction.
func (s *Service) Grant(ctx context.Context, accountID int64, percent, validForDays int) (*models.DiscountCode, error) {
	var issued *models.DiscountCode
	err := s.store.WithTx(ctx, func(tx database.Tx) error {
		if _, err := tx.LockBalance(ctx, accountID); err != nil {
			return err
		}
		dc, err := s.engine.Issue(ctx, tx, accountID, percent, validForDays)
		if err != nil {
			return err
		}
		issued = dc
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("discount code granted", "account", accountID, "percent", issued.Percent, "code", issued.Code)
	return issued, nil
}
