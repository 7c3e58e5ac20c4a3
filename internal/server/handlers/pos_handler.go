// Package handlers adapts the transactional orchestrators to HTTP. Business
// errors are translated to 4xx responses carrying the human-readable reason;
// infrastructure failures become a generic 500 with the detail logged
// server-side only.
package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/karimdiab/saydaly/internal/domain/errs"
	"github.com/karimdiab/saydaly/internal/domain/models"
	"github.com/karimdiab/saydaly/internal/repository"
	"github.com/karimdiab/saydaly/internal/service/debts"
	"github.com/karimdiab/saydaly/internal/service/inventory"
	"github.com/karimdiab/saydaly/internal/service/reporting"
	"github.com/karimdiab/saydaly/internal/service/sales"
)

// IdentityKey is the gin context key under which the auth middleware stores
// the caller identity.
const IdentityKey = "identity"

// POSHandler exposes the point-of-sale operations over HTTP.
type POSHandler struct {
	sales     *sales.Service
	inventory *inventory.Service
	debts     *debts.Service
	reporting *reporting.Service
	pool      repository.Pool
	logger    *zap.Logger
}

// NewPOSHandler constructs the HTTP handler adapter.
func NewPOSHandler(salesSvc *sales.Service, inventorySvc *inventory.Service, debtsSvc *debts.Service, reportingSvc *reporting.Service, pool repository.Pool, logger *zap.Logger) *POSHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &POSHandler{
		sales:     salesSvc,
		inventory: inventorySvc,
		debts:     debtsSvc,
		reporting: reportingSvc,
		pool:      pool,
		logger:    logger,
	}
}

// IdentityFrom extracts the authenticated identity placed by the auth
// middleware.
func IdentityFrom(c *gin.Context) (models.Identity, bool) {
	v, ok := c.Get(IdentityKey)
	if !ok {
		return models.Identity{}, false
	}
	id, ok := v.(models.Identity)
	return id, ok
}

// Checkout handles POST /api/checkout.
func (h *POSHandler) Checkout(c *gin.Context) {
	identity, ok := IdentityFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing identity"})
		return
	}

	var req models.CheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid checkout payload", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	result, err := h.sales.Checkout(c.Request.Context(), identity.PharmacyID, req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// Return handles POST /api/returns.
func (h *POSHandler) Return(c *gin.Context) {
	identity, ok := IdentityFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing identity"})
		return
	}

	var req models.ReturnRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid return payload", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	result, err := h.sales.Return(c.Request.Context(), identity.PharmacyID, req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// Restock handles POST /api/restock.
func (h *POSHandler) Restock(c *gin.Context) {
	identity, ok := IdentityFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing identity"})
		return
	}

	var req models.RestockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid restock payload", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	result, err := h.inventory.Restock(c.Request.Context(), identity.PharmacyID, req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// AdjustProduct handles PUT /api/products/:id.
func (h *POSHandler) AdjustProduct(c *gin.Context) {
	identity, ok := IdentityFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing identity"})
		return
	}

	id, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed product id"})
		return
	}

	var req models.AdjustProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid adjustment payload", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	result, err := h.inventory.AdjustProduct(c.Request.Context(), identity.PharmacyID, id, req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// DeleteProduct handles DELETE /api/products/:id.
func (h *POSHandler) DeleteProduct(c *gin.Context) {
	identity, ok := IdentityFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing identity"})
		return
	}

	id, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed product id"})
		return
	}

	result, err := h.inventory.DeleteProduct(c.Request.Context(), identity.PharmacyID, id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// RegisterDebt handles POST /api/debts.
func (h *POSHandler) RegisterDebt(c *gin.Context) {
	identity, ok := IdentityFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing identity"})
		return
	}

	var req models.RegisterDebtRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid debt payload", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	result, err := h.debts.Register(c.Request.Context(), identity.PharmacyID, req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// SettleDebt handles POST /api/debts/pay.
func (h *POSHandler) SettleDebt(c *gin.Context) {
	identity, ok := IdentityFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing identity"})
		return
	}

	var req models.SettleDebtRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid debt payment payload", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	result, err := h.debts.Settle(c.Request.Context(), identity.PharmacyID, req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// Withdraw handles POST /api/withdrawals. The router restricts it to the
// master role.
func (h *POSHandler) Withdraw(c *gin.Context) {
	identity, ok := IdentityFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing identity"})
		return
	}

	var req models.WithdrawalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid withdrawal payload", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	entry, err := h.sales.Withdraw(c.Request.Context(), identity.PharmacyID, req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, entry)
}

// SettleSadaqah handles POST /api/sadaqah/settle.
func (h *POSHandler) SettleSadaqah(c *gin.Context) {
	identity, ok := IdentityFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing identity"})
		return
	}

	settled, err := h.sales.SettleSadaqah(c.Request.Context(), identity.PharmacyID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"settledAmount": settled})
}

// ShortageReport handles GET /api/reports/shortages.
func (h *POSHandler) ShortageReport(c *gin.Context) {
	identity, ok := IdentityFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing identity"})
		return
	}

	products, err := h.reporting.ShortageReport(c.Request.Context(), identity.PharmacyID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"products": products})
}

// ExpiryReport handles GET /api/reports/expiry?days=N.
func (h *POSHandler) ExpiryReport(c *gin.Context) {
	identity, ok := IdentityFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing identity"})
		return
	}

	days := 30
	if raw := c.Query("days"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "days must be a non-negative integer"})
			return
		}
		days = parsed
	}

	products, err := h.reporting.ExpiryReport(c.Request.Context(), identity.PharmacyID, time.Duration(days)*24*time.Hour)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"products": products})
}

// CompanyTrend handles GET /api/reports/companies/:name?from=&to=.
func (h *POSHandler) CompanyTrend(c *gin.Context) {
	identity, ok := IdentityFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing identity"})
		return
	}

	from, to, err := parseRange(c.Query("from"), c.Query("to"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	trend, err := h.reporting.CompanyTrend(c.Request.Context(), identity.PharmacyID, c.Param("name"), from, to)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"trend": trend})
}

// DailyRollup handles GET /api/reports/daily?date=.
func (h *POSHandler) DailyRollup(c *gin.Context) {
	identity, ok := IdentityFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing identity"})
		return
	}

	day := time.Now()
	if raw := c.Query("date"); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "date must be YYYY-MM-DD"})
			return
		}
		day = parsed
	}

	report, err := h.reporting.DailyRollup(c.Request.Context(), identity.PharmacyID, day)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

// GetThreshold handles GET /api/settings/low-stock-threshold.
func (h *POSHandler) GetThreshold(c *gin.Context) {
	identity, ok := IdentityFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing identity"})
		return
	}

	st := h.pool.Tenant(identity.PharmacyID)
	raw, err := st.Settings().Get(c.Request.Context(), repository.SettingLowStockThreshold, "")
	if err != nil {
		h.respondError(c, err)
		return
	}
	value := repository.DefaultLowStockThreshold
	if raw != "" {
		if parsed, err := strconv.ParseFloat(raw, 64); err == nil {
			value = parsed
		}
	}
	c.JSON(http.StatusOK, gin.H{"threshold": value})
}

// SetThreshold handles PUT /api/settings/low-stock-threshold. The new value
// takes effect on the next stock-touching operation; no backfill runs.
func (h *POSHandler) SetThreshold(c *gin.Context) {
	identity, ok := IdentityFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing identity"})
		return
	}

	var req struct {
		Threshold float64 `json:"threshold" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.Threshold < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "threshold must be a non-negative number"})
		return
	}

	st := h.pool.Tenant(identity.PharmacyID)
	if err := st.Settings().Set(c.Request.Context(), repository.SettingLowStockThreshold,
		strconv.FormatFloat(req.Threshold, 'f', -1, 64)); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"threshold": req.Threshold})
}

func (h *POSHandler) respondError(c *gin.Context, err error) {
	switch errs.KindOf(err) {
	case errs.Validation, errs.Overpayment, errs.InsufficientStock, errs.Expired:
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errs.NotFound:
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errs.Conflict:
		c.JSON(http.StatusConflict, gin.H{"error": err.Error(), "retryable": true})
	default:
		h.logger.Error("operation failed", zap.String("path", c.Request.URL.Path), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

func parseRange(fromRaw, toRaw string) (time.Time, time.Time, error) {
	to := time.Now()
	from := to.AddDate(0, -1, 0)
	if fromRaw != "" {
		parsed, err := time.Parse("2006-01-02", fromRaw)
		if err != nil {
			return time.Time{}, time.Time{}, errParse("from")
		}
		from = parsed
	}
	if toRaw != "" {
		parsed, err := time.Parse("2006-01-02", toRaw)
		if err != nil {
			return time.Time{}, time.Time{}, errParse("to")
		}
		to = parsed.Add(24*time.Hour - time.Nanosecond)
	}
	return from, to, nil
}

func errParse(field string) error {
	return errs.New(errs.Validation, "%s must be YYYY-MM-DD", field)
}
