package shop

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"legacy-portal/internal/apperr"
	"legacy-portal/internal/catalog"
	"legacy-portal/internal/database"
	"legacy-portal/internal/models"
	"legacy-portal/internal/services/delivery"
	"legacy-portal/internal/services/discount"
	"legacy-portal/internal/util/discountcode"
)

type ledgerStore interface {
	CharacterBelongsTo(ctx context.Context, characterID, accountID int64) (bool, error)
	WithTx(ctx context.Context, fn func(database.Tx) error) error
}

type Service struct {
	store    ledgerStore
	catalog  *catalog.Catalog
	codes    *discount.Engine
	notifier delivery.Notifier
	logger   *slog.Logger
	tracer   trace.Tracer
	now      func() time.Time
}

type Request struct {
	AccountID    int64
	CharacterID  int64
	ItemID       int
	DiscountCode string
}

type Result struct {
	Balance         int64 `json:"balance"`
	Price           int64 `json:"price"`
	AppliedDiscount *int  `json:"appliedDiscount,omitempty"`
	QueueID         int64 `json:"queueId"`
}

func NewService(store *database.Store, cat *catalog.Catalog, codes *discount.Engine, notifier delivery.Notifier, logger *slog.Logger) *Service {
	return newService(store, cat, codes, notifier, logger, time.Now)
}

func newService(store ledgerStore, cat *catalog.Catalog, codes *discount.Engine, notifier delivery.Notifier, logger *slog.Logger, now func() time.Time) *Service {
	if notifier == nil {
		notifier = delivery.Nop{}
	}
	return &Service{
		store:    store,
		catalog:  cat,
		codes:    codes,
		notifier: notifier,
		logger:   logger,
		tracer:   otel.Tracer("legacy-portal/shop"),
		now:      now,
	}
}

// Purchase debits the account, optionally redeems a discount code and queues
// the item for in-game delivery, all in one transaction.
func (s *Service) Purchase(ctx context.Context, req Request) (*Result, error) {
	ctx, span := s.tracer.Start(ctx, "shop.Purchase", trace.WithAttributes(
		attribute.Int64("account.id", req.AccountID),
		attribute.Int64("character.id", req.CharacterID),
		attribute.Int("item.id", req.ItemID),
	))
	defer span.End()

	res, err := s.purchase(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		if errors.Is(err, apperr.ErrStoreUnavailable) {
			s.logger.ErrorContext(ctx, "purchase failed", "account", req.AccountID, "character", req.CharacterID, "error", err)
		}
		return nil, err
	}
	span.SetAttributes(attribute.Int64("purchase.price", res.Price))
	return res, nil
}

func (s *Service) purchase(ctx context.Context, req Request) (*Result, error) {
	if req.AccountID <= 0 {
		return nil, apperr.ErrUnauthenticated
	}
	item, err := s.catalog.Lookup(req.ItemID)
	if err != nil {
		return nil, err
	}
	owned, err := s.store.CharacterBelongsTo(ctx, req.CharacterID, req.AccountID)
	if err != nil {
		return nil, err
	}
	if !owned {
		return nil, apperr.ErrForbiddenCharacter
	}
	code := discountcode.Normalize(req.DiscountCode)

	res := &Result{}
	entry := models.DeliveryEntry{
		AccountID:   req.AccountID,
		CharacterID: req.CharacterID,
		ItemID:      item.ID,
		ItemValue:   item.Value,
		Status:      models.DeliveryPending,
	}
	err = s.store.WithTx(ctx, func(tx database.Tx) error {
		balance, err := tx.LockBalance(ctx, req.AccountID)
		if err != nil {
			return err
		}

		percent := 0
		if code != "" {
			dc, err := s.codes.Validate(ctx, tx, code, req.AccountID)
			if err != nil {
				return err
			}
			percent = discount.ClampPercent(dc.Percent)
		}
		price := FinalPrice(item.Price, percent)
		if balance < price {
			return apperr.ErrInsufficientFunds
		}

		if res.Balance, err = tx.AdjustBalance(ctx, req.AccountID, -price); err != nil {
			return err
		}
		if code != "" {
			if err := s.codes.Consume(ctx, tx, code, req.AccountID); err != nil {
				return err
			}
			res.AppliedDiscount = &percent
		}

		entry.CreatedAt = s.now().UTC()
		if err := tx.InsertDelivery(ctx, &entry); err != nil {
			return err
		}
		res.Price = price
		res.QueueID = entry.ID
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "purchase committed",
		"account", req.AccountID, "character", req.CharacterID, "item", item.ID,
		"price", res.Price, "queue_id", entry.ID, "code", code)
	s.notifier.Enqueued(ctx, entry)
	return res, nil
}

// FinalPrice applies a percent discount to base, rounding up to whole coins.
func FinalPrice(base int64, percent int) int64 {
	percent = discount.ClampPercent(percent)
	if base <= 0 {
		return 0
	}
	return (base*int64(100-percent) + 99) / 100
}
