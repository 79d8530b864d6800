package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/leozw/uptime-engine/internal/core"
)

type CreateMonitorRequest struct {
	Name            string `json:"name" binding:"required,max=255"`
	URL             string `json:"url" binding:"required"`
	Type            string `json:"type" binding:"required"`
	IntervalSeconds *int   `json:"interval_seconds"`
}

func (h *Handler) CreateMonitor(c *gin.Context) {
	var req CreateMonitorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	monitor, err := h.monitors.Create(c.Request.Context(), owner(c), core.MonitorSpec{
		Name:            req.Name,
		Target:          req.URL,
		Protocol:        req.Type,
		IntervalSeconds: req.IntervalSeconds,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, monitor)
}

func (h *Handler) ListMonitors(c *gin.Context) {
	list, err := h.monitors.List(c.Request.Context(), owner(c))
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"monitors": list,
		"total":    len(list),
	})
}

func (h *Handler) GetMonitor(c *gin.Context) {
	monitor, err := h.monitors.Get(c.Request.Context(), owner(c), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, monitor)
}

func (h *Handler) DeleteMonitor(c *gin.Context) {
	if err := h.monitors.Delete(c.Request.Context(), owner(c), c.Param("id")); err != nil {
		h.writeError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (h *Handler) TriggerCheck(c *gin.Context) {
	result, err := h.monitors.TriggerCheck(c.Request.Context(), owner(c), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

func (h *Handler) GetHistory(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		limit = n
	}

	results, err := h.monitors.History(c.Request.Context(), owner(c), c.Param("id"), limit)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"results": results,
		"count":   len(results),
	})
}

func (h *Handler) GetStatus(c *gin.Context) {
	status, err := h.monitors.Status(c.Request.Context(), owner(c), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	if status == nil {
		c.Status(http.StatusNoContent)
		return
	}

	c.JSON(http.StatusOK, status)
}
