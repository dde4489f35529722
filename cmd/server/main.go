package main

import (
	"context"
	"errors"
	"log/slog"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-chi/cors"
	"go.opentelemetry.io/otel"
	"golang.org/x/sync/errgroup"

	"legacy-portal/internal/auth"
	"legacy-portal/internal/cache"
	"legacy-portal/internal/catalog"
	"legacy-portal/internal/config"
	"legacy-portal/internal/database"
	"legacy-portal/internal/handlers"
	"legacy-portal/internal/middleware"
	"legacy-portal/internal/scheduler"
	"legacy-portal/internal/services/delivery"
	"legacy-portal/internal/services/discount"
	"legacy-portal/internal/services/serverstatus"
	"legacy-portal/internal/services/shop"
	"legacy-portal/internal/services/wheel"
	"legacy-portal/internal/tracing"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	if err := run(logger); err != nil {
		logger.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tp, err := tracing.Init(ctx, tracing.Config{
		Endpoint:    cfg.OTELEndpoint,
		ServiceName: "legacy-portal",
		Environment: cfg.Environment,
	})
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(shutdownCtx); err != nil {
			logger.Warn("tracer shutdown failed", "error", err)
		}
	}()
	logger.Info("tracing configured", "enabled", tp.Enabled())

	store, err := database.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer store.Close()
	logger.Info("database ready", "dialect", store.Dialect())

	var statusCache cache.Cache = cache.NewMemoryCache()
	if cfg.RedisURL != "" {
		rc, err := cache.NewRedisCache(ctx, cfg.RedisURL, "legacy-portal:")
		if err != nil {
			return err
		}
		defer rc.Close()
		statusCache = rc
	}

	nc, err := delivery.Connect(cfg.NATSURL)
	if err != nil {
		return err
	}
	if nc != nil {
		defer nc.Close()
	}
	notifier := delivery.New(nc, cfg.DeliverySubject, logger)

	cat := catalog.Default(cfg.ShopItemPrice)
	engine := discount.NewEngine(rand.New(rand.NewSource(time.Now().UnixNano())), time.Now, logger)
	jwtMgr := auth.NewManager(cfg.JWTSecret, cfg.JWTIssuer)

	shopSvc := shop.NewService(store, cat, engine, notifier, logger)
	wheelSvc := wheel.NewService(store, engine, logger)
	codeSvc := discount.NewService(store, engine, logger)
	statusSvc := serverstatus.New(serverstatus.Config{
		FeedURL:  cfg.StatusFeedURL,
		CacheTTL: cfg.StatusCacheTTL,
		StatsTTL: cfg.StatsCacheTTL,
	}, store, statusCache, logger)

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(middleware.RequestID(), middleware.Logger(logger), middleware.Tracing(otel.GetTracerProvider(), "legacy-portal"), gin.Recovery())

	handler := handlers.NewHandler(store, shopSvc, wheelSvc, codeSvc, cat, statusSvc, jwtMgr, cfg.TokenTTL, logger)
	handlers.RegisterRoutes(r, handler, jwtMgr, cfg.AdminAllowedIPs, cfg.AdminTOTPSecret)

	var h http.Handler = r
	if len(cfg.CORSAllowedOrigins) > 0 {
		h = cors.Handler(cors.Options{
			AllowedOrigins:   cfg.CORSAllowedOrigins,
			AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
			AllowedHeaders:   []string{"Authorization", "Content-Type", middleware.TOTPHeader, middleware.RequestIDHeader},
			AllowCredentials: true,
			MaxAge:           300,
		})(r)
	}

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("server starting", "port", cfg.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	if cfg.StatusFeedURL != "" {
		runner := scheduler.NewStatusRunner(statusSvc, cfg.StatusRefreshInterval, logger)
		g.Go(func() error {
			return runner.Run(gctx)
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("server stopped")
	return nil
}
