package discount

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"legacy-portal/internal/apperr"
	"legacy-portal/internal/database"
	"legacy-portal/internal/models"
)

var testNow = time.Date(2025, 7, 1, 9, 30, 0, 0, time.UTC)

// scriptedSource replays vals in order and then repeats the last one.
type scriptedSource struct {
	vals []int
	i    int
}

func (s *scriptedSource) Intn(n int) int {
	v := s.vals[len(s.vals)-1]
	if s.i < len(s.vals) {
		v = s.vals[s.i]
		s.i++
	}
	return v % n
}

type countingTx struct {
	database.Tx
	inserts int
}

func (c *countingTx) InsertDiscountCode(ctx context.Context, dc *models.DiscountCode) error {
	c.inserts++
	return c.Tx.InsertDiscountCode(ctx, dc)
}

func newStore(t *testing.T) *database.Store {
	t.Helper()
	store, err := database.New(context.Background(), "sqlite:"+filepath.Join(t.TempDir(), "codes.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(store.Close)
	return store
}

func newEngine(src *scriptedSource, now time.Time) *Engine {
	return NewEngine(src, func() time.Time { return now }, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func repeat(v, n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = v
	}
	return out
}

func TestIssueRetriesOnCollision(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()
	acc, _ := store.CreateAccount(ctx, "alice", "", 0)

	// First code is all 'A'; the second issue collides once and then gets all 'B'.
	src := &scriptedSource{vals: append(repeat(0, 20), repeat(1, 10)...)}
	engine := newEngine(src, testNow)

	var first, second *models.DiscountCode
	var inserts int
	err := store.WithTx(ctx, func(tx database.Tx) error {
		var err error
		if first, err = engine.Issue(ctx, tx, acc, 50, 7); err != nil {
			return err
		}
		counting := &countingTx{Tx: tx}
		second, err = engine.Issue(ctx, counting, acc, 50, 7)
		inserts = counting.inserts
		return err
	})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if first.Code != "LEG-AAAAAAAAAA" || second.Code != "LEG-BBBBBBBBBB" {
		t.Fatalf("unexpected codes %q, %q", first.Code, second.Code)
	}
	if inserts != 2 {
		t.Errorf("inserts = %d, want 2", inserts)
	}
	want := testNow.Add(7 * 24 * time.Hour)
	if second.ExpiresAt == nil || !second.ExpiresAt.Equal(want) {
		t.Errorf("expiry = %v, want %v", second.ExpiresAt, want)
	}
}

func TestIssueExhaustsAfterBoundedAttempts(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()
	acc, _ := store.CreateAccount(ctx, "bob", "", 0)
	engine := newEngine(&scriptedSource{vals: []int{0}}, testNow)

	var inserts int
	err := store.WithTx(ctx, func(tx database.Tx) error {
		if _, err := engine.Issue(ctx, tx, acc, 50, 0); err != nil {
			return err
		}
		counting := &countingTx{Tx: tx}
		_, err := engine.Issue(ctx, counting, acc, 50, 0)
		inserts = counting.inserts
		return err
	})
	if !errors.Is(err, apperr.ErrCodeIssuanceExhausted) {
		t.Fatalf("expected issuance exhausted, got %v", err)
	}
	if inserts != MaxIssueAttempts {
		t.Errorf("inserts = %d, want %d", inserts, MaxIssueAttempts)
	}
}

func TestValidateAndConsume(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()
	owner, _ := store.CreateAccount(ctx, "carol", "", 0)
	other, _ := store.CreateAccount(ctx, "dave", "", 0)

	issueAt := testNow.Add(-8 * 24 * time.Hour)
	var expired, valid *models.DiscountCode
	err := store.WithTx(ctx, func(tx database.Tx) error {
		var err error
		old := newEngine(&scriptedSource{vals: []int{2}}, issueAt)
		if expired, err = old.Issue(ctx, tx, owner, 50, 7); err != nil {
			return err
		}
		fresh := newEngine(&scriptedSource{vals: []int{3}}, testNow)
		valid, err = fresh.Issue(ctx, tx, owner, 50, 7)
		return err
	})
	if err != nil {
		t.Fatal(err)
	}

	engine := newEngine(&scriptedSource{vals: []int{0}}, testNow)
	cases := []struct {
		name    string
		code    string
		account int64
		wantErr error
	}{
		{"valid", valid.Code, owner, nil},
		{"lower case input", "  " + strings.ToLower(valid.Code) + " ", owner, nil},
		{"foreign", valid.Code, other, apperr.ErrInvalidOrUsedCode},
		{"expired", expired.Code, owner, apperr.ErrInvalidOrUsedCode},
		{"unknown", "LEG-NOTACODE", owner, apperr.ErrInvalidOrUsedCode},
		{"empty", "   ", owner, apperr.ErrInvalidOrUsedCode},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := store.WithTx(ctx, func(tx database.Tx) error {
				_, err := engine.Validate(ctx, tx, tc.code, tc.account)
				return err
			})
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("Validate() error = %v, want %v", err, tc.wantErr)
			}
		})
	}

	err = store.WithTx(ctx, func(tx database.Tx) error {
		if err := engine.Consume(ctx, tx, valid.Code, owner); err != nil {
			return err
		}
		if err := engine.Consume(ctx, tx, valid.Code, owner); !errors.Is(err, apperr.ErrInvalidOrUsedCode) {
			t.Errorf("second consume error = %v", err)
		}
		if _, err := engine.Validate(ctx, tx, valid.Code, owner); !errors.Is(err, apperr.ErrInvalidOrUsedCode) {
			t.Errorf("used code validated: %v", err)
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestGrantUnknownAccount(t *testing.T) {
	store := newStore(t)
	svc := NewService(store, newEngine(&scriptedSource{vals: []int{0}}, testNow), slog.New(slog.NewTextHandler(io.Discard, nil)))
	if _, err := svc.Grant(context.Background(), 42, 50, 7); !errors.Is(err, apperr.ErrAccountNotFound) {
		t.Fatalf("expected account not found, got %v", err)
	}
}

func TestGrantAndList(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()
	acc, _ := store.CreateAccount(ctx, "erin", "", 0)
	svc := NewService(store, newEngine(&scriptedSource{vals: []int{5, 6, 7, 8, 9, 10, 11, 12, 13, 14}}, testNow), slog.New(slog.NewTextHandler(io.Discard, nil)))

	dc, err := svc.Grant(ctx, acc, 150, 0)
	if err != nil {
		t.Fatal(err)
	}
	if dc.Percent != 100 || dc.ExpiresAt != nil {
		t.Errorf("unexpected grant %+v", dc)
	}
	codes, err := svc.List(ctx, acc)
	if err != nil || len(codes) != 1 || codes[0].Code != dc.Code {
		t.Fatalf("List() = %+v, %v", codes, err)
	}
}

func TestClampPercent(t *testing.T) {
	for in, want := range map[int]int{-5: 0, 0: 0, 50: 50, 100: 100, 101: 100} {
		if got := ClampPercent(in); got != want {
			t.Errorf("ClampPercent(%d) = %d, want %d", in, got, want)
		}
	}
}
