package handlers

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"legacy-portal/internal/middleware"
	"legacy-portal/internal/models"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
	maxPage         = 100000
)

func (h *Handler) AdminListUsers(c *gin.Context) {
	page, pageSize := parsePage(c)
	items, total, err := h.store.ListAccounts(c.Request.Context(), c.Query("search"), pageSize, (page-1)*pageSize)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items, "total": total, "page": page, "pageSize": pageSize})
}

func (h *Handler) AdminListBans(c *gin.Context) {
	page, pageSize := parsePage(c)
	items, total, err := h.store.ListBans(c.Request.Context(), pageSize, (page-1)*pageSize)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items, "total": total, "page": page, "pageSize": pageSize})
}

type createBanRequest struct {
	AccountID *int64 `json:"accountId"`
	Reason    string `json:"reason"`
	Days      int    `json:"days"`
	Permanent bool   `json:"permanent"`
	IP        string `json:"ip"`
	MTASerial string `json:"mta_serial"`
}

func (h *Handler) AdminCreateBan(c *gin.Context) {
	var req createBanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	req.Reason = strings.TrimSpace(req.Reason)
	ip := blankToNil(&req.IP)
	serial := blankToNil(&req.MTASerial)
	if req.AccountID != nil && *req.AccountID <= 0 {
		req.AccountID = nil
	}
	if req.Reason == "" || (req.AccountID == nil && ip == nil && serial == nil) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing required fields"})
		return
	}

	now := time.Now().UTC()
	adminID := middleware.AccountID(c)
	ban := &models.Ban{
		MTASerial: serial,
		IP:        ip,
		AccountID: req.AccountID,
		AdminID:   &adminID,
		Reason:    req.Reason,
		Date:      now,
	}
	if !req.Permanent && req.Days > 0 {
		until := now.Add(time.Duration(req.Days) * 24 * time.Hour)
		ban.Until = &until
	}
	if err := h.store.CreateBan(c.Request.Context(), ban); err != nil {
		h.writeError(c, err)
		return
	}
	h.status.InvalidateStats()
	h.logger.Info("ban created", "admin", adminID, "ban", ban.ID, "account", ban.AccountID)
	c.JSON(http.StatusOK, gin.H{"id": ban.ID})
}

func (h *Handler) AdminUnban(c *gin.Context) {
	accountID, err := strconv.ParseInt(c.Query("accountId"), 10, 64)
	if err != nil || accountID <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "accountId is required"})
		return
	}
	removed, err := h.store.Unban(c.Request.Context(), accountID, time.Now())
	if err != nil {
		h.writeError(c, err)
		return
	}
	h.status.InvalidateStats()
	h.logger.Info("account unbanned", "admin", middleware.AccountID(c), "account", accountID, "removed", removed)
	c.JSON(http.StatusOK, gin.H{"removed": removed})
}

type grantCodeRequest struct {
	AccountID int64 `json:"accountId" binding:"required"`
	Percent   int   `json:"percent" binding:"required"`
	ValidDays int   `json:"validDays"`
}

func (h *Handler) AdminGrantCode(c *gin.Context) {
	var req grantCodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	if req.Percent < 1 || req.Percent > 100 || req.ValidDays < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "percent must be 1-100 and validDays >= 0"})
		return
	}
	code, err := h.codes.Grant(c.Request.Context(), req.AccountID, req.Percent, req.ValidDays)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, code)
}

func (h *Handler) AdminListDeliveries(c *gin.Context) {
	page, pageSize := parsePage(c)
	status := models.DeliveryStatus(strings.TrimSpace(c.Query("status")))
	items, total, err := h.store.ListDeliveries(c.Request.Context(), status, pageSize, (page-1)*pageSize)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items, "total": total, "page": page, "pageSize": pageSize})
}

// parsePage reads page (clamped to [1,100000]) and pageSize (clamped to [1,100]).
func parsePage(c *gin.Context) (int, int) {
	page := 1
	pageSize := defaultPageSize
	if v, err := strconv.Atoi(c.Query("page")); err == nil && v > 1 {
		page = min(v, maxPage)
	}
	if v, err := strconv.Atoi(c.Query("pageSize")); err == nil {
		pageSize = min(max(v, 1), maxPageSize)
	}
	return page, pageSize
}
