package serverstatus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"legacy-portal/internal/cache"
	"legacy-portal/internal/models"
)

const statusKey = "server:status"

var ErrUnavailable = errors.New("server status unavailable")

type statsStore interface {
	ServerStats(ctx context.Context, now time.Time) (models.ServerStats, error)
}

type Config struct {
	FeedURL  string
	CacheTTL time.Duration
	StatsTTL time.Duration
}

// Service serves the game server's status feed and portal-wide counters.
type Service struct {
	feedURL    string
	ttl        time.Duration
	httpClient *http.Client
	cache      cache.Cache
	stats      *cache.Loader[models.ServerStats]
	logger     *slog.Logger
}

func New(cfg Config, store statsStore, c cache.Cache, logger *slog.Logger) *Service {
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 2 * time.Minute
	}
	if cfg.StatsTTL <= 0 {
		cfg.StatsTTL = 30 * time.Second
	}
	if c == nil {
		c = cache.NewMemoryCache()
	}
	return &Service{
		feedURL:    cfg.FeedURL,
		ttl:        cfg.CacheTTL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		cache:      c,
		stats: cache.NewLoader(cfg.StatsTTL, func(ctx context.Context) (models.ServerStats, error) {
			return store.ServerStats(ctx, time.Now())
		}),
		logger: logger,
	}
}

func (s *Service) Stats(ctx context.Context) (models.ServerStats, error) {
	return s.stats.Get(ctx)
}

// InvalidateStats drops the cached counters so the next read hits the store.
func (s *Service) InvalidateStats() {
	s.stats.Invalidate()
}

// Status returns the last cached feed document, fetching it on a miss.
func (s *Service) Status(ctx context.Context) (json.RawMessage, error) {
	var cached json.RawMessage
	err := cache.GetJSON(ctx, s.cache, statusKey, &cached)
	if err == nil {
		return cached, nil
	}
	if !errors.Is(err, cache.ErrNotFound) {
		s.logger.WarnContext(ctx, "status cache read failed", "error", err)
	}
	data, err := s.Refresh(ctx)
	if err != nil {
		s.logger.WarnContext(ctx, "status feed fetch failed", "error", err)
		return nil, ErrUnavailable
	}
	return json.RawMessage(data), nil
}

// Refresh fetches the feed and stores it in the cache.
func (s *Service) Refresh(ctx context.Context) ([]byte, error) {
	if s.feedURL == "" {
		return nil, ErrUnavailable
	}
	data, err := s.fetch(ctx)
	if err != nil {
		return nil, err
	}
	if err := cache.SetJSON(ctx, s.cache, statusKey, json.RawMessage(data), s.ttl); err != nil {
		s.logger.WarnContext(ctx, "status cache write failed", "error", err)
	}
	return data, nil
}

func (s *Service) fetch(ctx context.Context) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.feedURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status feed returned %d", resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, err
	}
	if !json.Valid(body) {
		return nil, fmt.Errorf("status feed returned invalid JSON")
	}
	return body, nil
}
