package wheel

import (
	"context"
	"errors"
	"log/slog"
	mrand "math/rand"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"legacy-portal/internal/apperr"
	"legacy-portal/internal/database"
	"legacy-portal/internal/models"
	"legacy-portal/internal/services/discount"
)

const Cooldown = 24 * time.Hour

// Source yields uniform values in [0,1).
type Source interface {
	Float64() float64
}

type spinStore interface {
	LatestSpin(ctx context.Context, accountID int64) (*models.SpinRecord, error)
	WithTx(ctx context.Context, fn func(database.Tx) error) error
}

type Service struct {
	store  spinStore
	codes  *discount.Engine
	logger *slog.Logger
	tracer trace.Tracer
	now    func() time.Time
	rng    Source
	mu     sync.Mutex
}

type SpinResult struct {
	Outcome         string               `json:"outcome"`
	RewardMessage   string               `json:"rewardMessage"`
	RewardValue     *int64               `json:"rewardValue,omitempty"`
	DiscountCode    *models.DiscountCode `json:"discountCode,omitempty"`
	NextAvailableAt time.Time            `json:"nextAvailableAt"`
}

type Status struct {
	LastSpinAt      *time.Time `json:"lastSpinAt"`
	NextAvailableAt *time.Time `json:"nextAvailableAt"`
}

func NewService(store *database.Store, codes *discount.Engine, logger *slog.Logger) *Service {
	src := mrand.NewSource(time.Now().UnixNano())
	return newService(store, codes, logger, mrand.New(src), time.Now)
}

func newService(store spinStore, codes *discount.Engine, logger *slog.Logger, rng Source, now func() time.Time) *Service {
	return &Service{
		store:  store,
		codes:  codes,
		logger: logger,
		tracer: otel.Tracer("legacy-portal/wheel"),
		now:    now,
		rng:    rng,
	}
}

// Spin draws one outcome for the account and applies it atomically. A failed
// spin writes no history, so the account may retry immediately.
func (s *Service) Spin(ctx context.Context, accountID int64) (*SpinResult, error) {
	ctx, span := s.tracer.Start(ctx, "wheel.Spin", trace.WithAttributes(attribute.Int64("account.id", accountID)))
	defer span.End()

	res, err := s.spin(ctx, accountID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		if !isExpected(err) {
			s.logger.ErrorContext(ctx, "spin failed", "account", accountID, "error", err)
		}
		return nil, err
	}
	span.SetAttributes(attribute.String("wheel.outcome", res.Outcome))
	return res, nil
}

func (s *Service) spin(ctx context.Context, accountID int64) (*SpinResult, error) {
	if accountID <= 0 {
		return nil, apperr.ErrUnauthenticated
	}
	last, err := s.store.LatestSpin(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if err := checkCooldown(last, s.now()); err != nil {
		return nil, err
	}

	outcome := s.draw()
	res := &SpinResult{Outcome: outcome.Key, RewardMessage: outcome.Message}

	err = s.store.WithTx(ctx, func(tx database.Tx) error {
		if _, err := tx.LockBalance(ctx, accountID); err != nil {
			return err
		}
		// Another request may have spun between the pre-check and the lock.
		last, err := tx.LatestSpin(ctx, accountID)
		if err != nil {
			return err
		}
		now := s.now().UTC()
		if err := checkCooldown(last, now); err != nil {
			return err
		}

		record := &models.SpinRecord{AccountID: accountID, Outcome: outcome.Key, CreatedAt: now}
		switch {
		case outcome.Credit > 0:
			if _, err := tx.AdjustBalance(ctx, accountID, outcome.Credit); err != nil {
				return err
			}
			credit := outcome.Credit
			record.RewardValue = &credit
		case outcome.Percent > 0:
			dc, err := s.codes.Issue(ctx, tx, accountID, outcome.Percent, outcome.Days)
			if err != nil {
				return err
			}
			res.DiscountCode = dc
		}
		if err := tx.InsertSpin(ctx, record); err != nil {
			return err
		}
		res.RewardValue = record.RewardValue
		res.NextAvailableAt = now.Add(Cooldown)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "wheel spun", "account", accountID, "outcome", outcome.Key)
	return res, nil
}

// Status reports the last spin and, while cooling down, when the next one
// is allowed.
func (s *Service) Status(ctx context.Context, accountID int64) (*Status, error) {
	last, err := s.store.LatestSpin(ctx, accountID)
	if err != nil {
		return nil, err
	}
	st := &Status{}
	if last == nil {
		return st, nil
	}
	lastAt := last.CreatedAt
	st.LastSpinAt = &lastAt
	if next := lastAt.Add(Cooldown); s.now().Before(next) {
		st.NextAvailableAt = &next
	}
	return st, nil
}

func (s *Service) draw() Outcome {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Pick(s.rng.Float64())
}

func checkCooldown(last *models.SpinRecord, now time.Time) error {
	if last == nil {
		return nil
	}
	next := last.CreatedAt.Add(Cooldown)
	if now.Before(next) {
		return &apperr.CooldownError{NextEligibleAt: next}
	}
	return nil
}

func isExpected(err error) bool {
	return errors.Is(err, apperr.ErrCooldownActive) ||
		errors.Is(err, apperr.ErrUnauthenticated) ||
		errors.Is(err, apperr.ErrAccountNotFound)
}
