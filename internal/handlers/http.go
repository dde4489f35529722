package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"legacy-portal/internal/apperr"
	"legacy-portal/internal/auth"
	"legacy-portal/internal/catalog"
	"legacy-portal/internal/database"
	"legacy-portal/internal/middleware"
	"legacy-portal/internal/services/discount"
	"legacy-portal/internal/services/serverstatus"
	"legacy-portal/internal/services/shop"
	"legacy-portal/internal/services/wheel"
)

type Handler struct {
	store    *database.Store
	shop     *shop.Service
	wheel    *wheel.Service
	codes    *discount.Service
	catalog  *catalog.Catalog
	status   *serverstatus.Service
	jwt      *auth.Manager
	tokenTTL time.Duration
	logger   *slog.Logger
}

func NewHandler(store *database.Store, shopSvc *shop.Service, wheelSvc *wheel.Service, codeSvc *discount.Service, cat *catalog.Catalog, statusSvc *serverstatus.Service, jwt *auth.Manager, tokenTTL time.Duration, logger *slog.Logger) *Handler {
	return &Handler{
		store:    store,
		shop:     shopSvc,
		wheel:    wheelSvc,
		codes:    codeSvc,
		catalog:  cat,
		status:   statusSvc,
		jwt:      jwt,
		tokenTTL: tokenTTL,
		logger:   logger,
	}
}

func RegisterRoutes(r *gin.Engine, h *Handler, jwt *auth.Manager, adminIPs []string, adminTOTPSecret string) {
	r.GET("/api/health", h.Health)
	r.GET("/api/server/stats", h.ServerStats)
	r.GET("/api/server/status", h.ServerStatus)
	r.GET("/api/shop/items", h.ShopItems)
	r.POST("/api/auth/login", h.Login)

	api := r.Group("/api")
	api.Use(middleware.JWT(jwt))

	api.GET("/me", h.Me)
	api.GET("/characters", h.Characters)
	api.PUT("/settings/profile", h.UpdateProfile)
	api.PUT("/settings/password", h.UpdatePassword)
	api.POST("/shop/purchase", h.Purchase)
	api.POST("/wheel/spin", h.Spin)
	api.GET("/wheel/status", h.WheelStatus)
	api.GET("/codes", h.Codes)

	admin := r.Group("/api/admin")
	admin.Use(
		middleware.AdminIPWhitelist(adminIPs),
		middleware.JWT(jwt),
		middleware.RequireAdmin(),
		middleware.RequireTOTP(adminTOTPSecret),
	)
	admin.GET("/users", h.AdminListUsers)
	admin.GET("/bans", h.AdminListBans)
	admin.POST("/bans", h.AdminCreateBan)
	admin.DELETE("/bans", h.AdminUnban)
	admin.POST("/codes", h.AdminGrantCode)
	admin.GET("/deliveries", h.AdminListDeliveries)
}

func (h *Handler) Health(c *gin.Context) {
	if err := h.store.Ping(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "timestamp": time.Now().UTC()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "timestamp": time.Now().UTC()})
}

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (h *Handler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	account, hash, err := h.store.AccountCredentials(c.Request.Context(), strings.TrimSpace(req.Username))
	if err != nil && !errors.Is(err, apperr.ErrAccountNotFound) {
		h.writeError(c, err)
		return
	}
	if account == nil || !auth.CheckPassword(hash, req.Password) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	}
	token, err := h.jwt.IssueToken(account.ID, account.Username, account.Admin, h.tokenTTL)
	if err != nil {
		h.logger.Error("token issue failed", "account", account.ID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "token failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": token, "account": account})
}

func (h *Handler) Me(c *gin.Context) {
	account, err := h.store.GetAccount(c.Request.Context(), middleware.AccountID(c))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, account)
}

func (h *Handler) Characters(c *gin.Context) {
	chars, err := h.store.ListCharacters(c.Request.Context(), middleware.AccountID(c))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, chars)
}

type profileRequest struct {
	Email  *string `json:"email"`
	Avatar *string `json:"avatar"`
}

func (h *Handler) UpdateProfile(c *gin.Context) {
	var req profileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	if err := h.store.UpdateProfile(c.Request.Context(), middleware.AccountID(c), blankToNil(req.Email), blankToNil(req.Avatar)); err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

type passwordRequest struct {
	CurrentPassword string `json:"currentPassword" binding:"required"`
	NewPassword     string `json:"newPassword" binding:"required"`
}

func (h *Handler) UpdatePassword(c *gin.Context) {
	var req passwordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing fields"})
		return
	}
	if len(req.NewPassword) < auth.MinPasswordLength {
		c.JSON(http.StatusBadRequest, gin.H{"error": "password too short"})
		return
	}
	ctx := c.Request.Context()
	accountID := middleware.AccountID(c)
	stored, err := h.store.PasswordHash(ctx, accountID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	if !auth.CheckPassword(stored, req.CurrentPassword) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "incorrect current password"})
		return
	}
	hash, err := auth.HashPassword(req.NewPassword)
	if err != nil {
		h.logger.Error("password hash failed", "account", accountID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "password update failed"})
		return
	}
	if err := h.store.UpdatePassword(ctx, accountID, hash); err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (h *Handler) ShopItems(c *gin.Context) {
	c.JSON(http.StatusOK, h.catalog.Items())
}

type purchaseRequest struct {
	CharacterID  int64  `json:"characterId" binding:"required"`
	ItemID       int    `json:"itemId"`
	DiscountCode string `json:"discountCode"`
}

func (h *Handler) Purchase(c *gin.Context) {
	var req purchaseRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.CharacterID <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid character"})
		return
	}
	res, err := h.shop.Purchase(c.Request.Context(), shop.Request{
		AccountID:    middleware.AccountID(c),
		CharacterID:  req.CharacterID,
		ItemID:       req.ItemID,
		DiscountCode: req.DiscountCode,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"ok":              true,
		"balance":         res.Balance,
		"price":           res.Price,
		"appliedDiscount": res.AppliedDiscount,
	})
}

func (h *Handler) Spin(c *gin.Context) {
	res, err := h.wheel.Spin(c.Request.Context(), middleware.AccountID(c))
	if err != nil {
		h.writeError(c, err)
		return
	}
	var code *string
	if res.DiscountCode != nil {
		code = &res.DiscountCode.Code
	}
	c.JSON(http.StatusOK, gin.H{
		"ok":              true,
		"outcome":         res.Outcome,
		"rewardMessage":   res.RewardMessage,
		"rewardValue":     res.RewardValue,
		"discountCode":    code,
		"nextAvailableAt": res.NextAvailableAt,
	})
}

func (h *Handler) WheelStatus(c *gin.Context) {
	st, err := h.wheel.Status(c.Request.Context(), middleware.AccountID(c))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}

func (h *Handler) Codes(c *gin.Context) {
	codes, err := h.codes.List(c.Request.Context(), middleware.AccountID(c))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, codes)
}

func (h *Handler) ServerStats(c *gin.Context) {
	stats, err := h.status.Stats(c.Request.Context())
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (h *Handler) ServerStatus(c *gin.Context) {
	raw, err := h.status.Status(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "server status unavailable"})
		return
	}
	c.Data(http.StatusOK, "application/json; charset=utf-8", raw)
}

func blankToNil(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}
