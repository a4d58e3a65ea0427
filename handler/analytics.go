package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/leonclem/one-minute-menu-sub003/middleware"
	"github.com/leonclem/one-minute-menu-sub003/model"
	"github.com/leonclem/one-minute-menu-sub003/service"
)

type AnalyticsHandler struct {
	store service.Store
}

func NewAnalyticsHandler(store service.Store) *AnalyticsHandler {
	return &AnalyticsHandler{store: store}
}

// RecordScan logs a QR scan against a published menu. Unauthenticated; the
// diner's phone calls this when the public menu page loads.
func (h *AnalyticsHandler) RecordScan(c *gin.Context) {
	menu, err := h.store.GetMenuBySlug(c.Request.Context(), c.Param("slug"))
	if err != nil || !menu.Published {
		c.JSON(http.StatusNotFound, gin.H{"error": "Menu not found"})
		return
	}

	source := c.Query("source")
	if source == "" {
		source = "qr"
	}

	ev := &model.ScanEvent{
		ID:        uuid.New().String(),
		MenuID:    menu.ID,
		Source:    source,
		CreatedAt: time.Now(),
	}
	if err := h.store.RecordScan(c.Request.Context(), ev); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to record scan"})
		return
	}

	c.Status(http.StatusNoContent)
}

// GetScanStats returns scan counts for an owned menu over a trailing window
func (h *AnalyticsHandler) GetScanStats(c *gin.Context) {
	menu, err := h.store.GetMenu(c.Request.Context(), c.Param("id"))
	if err != nil || menu.UserID != middleware.GetUserID(c) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Menu not found"})
		return
	}

	days := 30
	if v := c.Query("days"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed < 1 || parsed > 365 {
			apiError(c, http.StatusBadRequest, CodeValidation, "days must be between 1 and 365")
			return
		}
		days = parsed
	}

	stats, err := h.store.GetScanStats(c.Request.Context(), menu.ID, days)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load stats"})
		return
	}

	c.JSON(http.StatusOK, stats)
}
