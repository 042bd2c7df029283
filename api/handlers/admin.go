package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/tradewind-labs/tradepost/internal/admin"
	"github.com/tradewind-labs/tradepost/pkg/problem"
)

// AdminHandler exposes the moderation surface. All routes are behind the
// admin role gate.
type AdminHandler struct {
	logger *zap.Logger
	admin  *admin.Service
}

// NewAdminHandler creates the admin handler.
func NewAdminHandler(logger *zap.Logger, adminSvc *admin.Service) *AdminHandler {
	return &AdminHandler{logger: logger, admin: adminSvc}
}

// Dashboard handles GET /admin/dashboard.
func (h *AdminHandler) Dashboard(c *gin.Context) {
	stats, err := h.admin.Dashboard(c.Request.Context())
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

// ListTrades handles GET /admin/trades.
func (h *AdminHandler) ListTrades(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	trades, err := h.admin.ListTrades(c.Request.Context(), c.Query("status"), limit, offset)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"trades": trades})
}

type overrideRequest struct {
	Reason string `json:"reason"`
}

// ForceCloseTrade handles POST /admin/trades/:id/force-close.
func (h *AdminHandler) ForceCloseTrade(c *gin.Context) {
	adminID, ok := sessionUser(c)
	if !ok {
		return
	}
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req overrideRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			p := problem.NewValidation("Malformed request body", c.Request.URL.Path)
			c.Header("Content-Type", "application/problem+json")
			c.JSON(p.Status, p)
			return
		}
	}

	if err := h.admin.ForceCloseTrade(c.Request.Context(), adminID, id, req.Reason); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "force-closed"})
}

// CloseListing handles POST /admin/listings/:id/close.
func (h *AdminHandler) CloseListing(c *gin.Context) {
	adminID, ok := sessionUser(c)
	if !ok {
		return
	}
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req overrideRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			p := problem.NewValidation("Malformed request body", c.Request.URL.Path)
			c.Header("Content-Type", "application/problem+json")
			c.JSON(p.Status, p)
			return
		}
	}

	if err := h.admin.CloseListing(c.Request.Context(), adminID, id, req.Reason); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "closed"})
}

// ListActions handles GET /admin/actions.
func (h *AdminHandler) ListActions(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

	actions, err := h.admin.ListActions(c.Request.Context(), limit)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"actions": actions})
}
