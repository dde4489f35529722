package serverstatus

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"legacy-portal/internal/cache"
	"legacy-portal/internal/models"
)

type countingStats struct {
	calls atomic.Int32
}

func (c *countingStats) ServerStats(context.Context, time.Time) (models.ServerStats, error) {
	n := c.calls.Add(1)
	return models.ServerStats{TotalAccounts: int64(n)}, nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestStatusFetchesOnceThenServesCache(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"online":true,"players":17}`))
	}))
	defer srv.Close()

	svc := New(Config{FeedURL: srv.URL, CacheTTL: time.Minute}, &countingStats{}, cache.NewMemoryCache(), discardLogger())
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		raw, err := svc.Status(ctx)
		if err != nil {
			t.Fatalf("Status(): %v", err)
		}
		if string(raw) != `{"online":true,"players":17}` {
			t.Fatalf("unexpected body %s", raw)
		}
	}
	if hits.Load() != 1 {
		t.Errorf("feed hit %d times, want 1", hits.Load())
	}
}

func TestStatusUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusBadGateway)
	}))
	defer srv.Close()

	for name, url := range map[string]string{"bad status": srv.URL, "no feed": ""} {
		t.Run(name, func(t *testing.T) {
			svc := New(Config{FeedURL: url}, &countingStats{}, nil, discardLogger())
			if _, err := svc.Status(context.Background()); !errors.Is(err, ErrUnavailable) {
				t.Fatalf("expected unavailable, got %v", err)
			}
		})
	}
}

func TestRefreshRejectsInvalidJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html>`))
	}))
	defer srv.Close()

	svc := New(Config{FeedURL: srv.URL}, &countingStats{}, nil, discardLogger())
	if _, err := svc.Refresh(context.Background()); err == nil {
		t.Fatal("expected error for invalid JSON")
	}
}

func TestStatsAreCached(t *testing.T) {
	store := &countingStats{}
	svc := New(Config{StatsTTL: time.Hour}, store, nil, discardLogger())
	for i := 0; i < 3; i++ {
		st, err := svc.Stats(context.Background())
		if err != nil || st.TotalAccounts != 1 {
			t.Fatalf("Stats() = %+v, %v", st, err)
		}
	}
	if store.calls.Load() != 1 {
		t.Errorf("store queried %d times", store.calls.Load())
	}
}

func TestInvalidateStatsReloads(t *testing.T) {
	store := &countingStats{}
	svc := New(Config{StatsTTL: time.Hour}, store, nil, discardLogger())
	ctx := context.Background()
	if st, _ := svc.Stats(ctx); st.TotalAccounts != 1 {
		t.Fatalf("first load = %+v", st)
	}
	svc.InvalidateStats()
	if st, _ := svc.Stats(ctx); st.TotalAccounts != 2 {
		t.Fatalf("after invalidate = %+v, want a fresh load", st)
	}
}

func TestStatusSharesCacheAcrossInstances(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		_, _ = w.Write([]byte(`{"online":false}`))
	}))
	defer srv.Close()

	shared := cache.NewMemoryCache()
	ctx := context.Background()
	warm := New(Config{FeedURL: srv.URL}, &countingStats{}, shared, discardLogger())
	if _, err := warm.Refresh(ctx); err != nil {
		t.Fatal(err)
	}
	cold := New(Config{FeedURL: srv.URL}, &countingStats{}, shared, discardLogger())
	raw, err := cold.Status(ctx)
	if err != nil || string(raw) != `{"online":false}` {
		t.Fatalf("Status() = %s, %v", raw, err)
	}
	if hits.Load() != 1 {
		t.Errorf("feed hit %d times, want 1", hits.Load())
	}
}
