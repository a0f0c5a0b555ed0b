package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"workforce/internal/auth"
)

// StartBreak opens a break for the caller.
func (h *Handler) StartBreak(c *gin.Context) {
	userID, _ := auth.UserID(c)
	start, err := h.att.StartBreak(c.Request.Context(), userID)
	if err != nil {
		h.fail(c, err, "Failed to start break")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Break started", "breakStartTime": start})
}

// EndBreak closes the caller's open break.
func (h *Handler) EndBreak(c *gin.Context) {
	userID, _ := auth.UserID(c)
	minutes, err := h.att.EndBreak(c.Request.Context(), userID)
	if err != nil {
		h.fail(c, err, "Failed to end break")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Break ended", "breakMinutes": minutes})
}

// Current reports break state and login time for today.
func (h *Handler) Current(c *gin.Context) {
	userID, _ := auth.UserID(c)
	status, err := h.att.CurrentStatus(c.Request.Context(), userID)
	if err != nil {
		h.fail(c, err, "Failed to fetch attendance")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"isOnBreak":      status.OnBreak,
		"loginTime":      status.LoginTime,
		"breakStartTime": status.BreakStartTime,
	})
}

// Today is the dashboard variant of Current.
func (h *Handler) Today(c *gin.Context) {
	userID, _ := auth.UserID(c)
	status, err := h.att.CurrentStatus(c.Request.Context(), userID)
	if err != nil {
		h.fail(c, err, "Failed to fetch attendance")
		return
	}
	if !status.LoggedIn {
		c.JSON(http.StatusOK, gin.H{"onBreak": false})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"onBreak":        status.OnBreak,
		"breakStartTime": status.BreakStartTime,
		"loginTime":      status.LoginTime,
	})
}

// Records lists the caller's attendance history.
func (h *Handler) Records(c *gin.Context) {
	userID, _ := auth.UserID(c)
	limit, offset := pageParams(c)
	records, err := h.att.Records(c.Request.Context(), userID, limit, offset)
	if err != nil {
		h.fail(c, err, "Failed to fetch attendance")
		return
	}
	c.JSON(http.StatusOK, gin.H{"records": records})
}

// Events lists the caller's attendance audit trail.
func (h *Handler) Events(c *gin.Context) {
	userID, _ := auth.UserID(c)
	limit, offset := pageParams(c)
	events, err := h.att.Events(c.Request.Context(), userID, limit, offset)
	if err != nil {
		h.fail(c, err, "Failed to fetch events")
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": events})
}
