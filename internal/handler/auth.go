package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"workforce/internal/auth"
	"workforce/internal/logging"
)

type refreshRequest struct {
	RefreshToken string `json:"refreshToken" binding:"required"`
}

type logoutRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// Login exchanges a verified identity token for app tokens and opens today's attendance.
func (h *Handler) Login(c *gin.Context) {
	claims, ok := auth.ClaimsFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not found"})
		return
	}
	id := claims.Identity()

	rec, err := h.att.OpenOrResumeSession(c.Request.Context(), id.UserID)
	if err != nil {
		h.fail(c, err, "login failed")
		return
	}

	pair, ok := h.issue(c, id)
	if !ok {
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"token":        pair.AccessToken,
		"refreshToken": pair.RefreshToken,
		"expiresAt":    pair.AccessExp.Unix(),
		"userId":       id.UserID,
		"role":         id.Role,
		"email":        id.Email,
		"loginTime":    rec.LoginTime,
	})
}

// Refresh rotates a refresh token.
func (h *Handler) Refresh(c *gin.Context) {
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "refreshToken required"})
		return
	}
	claims, err := auth.Parse(req.RefreshToken, h.cfg.SigningKey, h.cfg.Issuer)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid refresh token"})
		return
	}
	if err := h.tokens.Consume(c.Request.Context(), claims); err != nil {
		if errors.Is(err, auth.ErrRefreshRejected) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid refresh token"})
			return
		}
		h.fail(c, err, "refresh failed")
		return
	}

	pair, ok := h.issue(c, claims.Identity())
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"token":        pair.AccessToken,
		"refreshToken": pair.RefreshToken,
		"expiresAt":    pair.AccessExp.Unix(),
	})
}

// Logout revokes the refresh token if given and closes today's attendance.
// A missing attendance record does not fail the logout.
func (h *Handler) Logout(c *gin.Context) {
	ctx := c.Request.Context()
	userID, ok := auth.UserID(c)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "User not found"})
		return
	}

	var req logoutRequest
	_ = c.ShouldBindJSON(&req)
	if req.RefreshToken != "" {
		if claims, err := auth.Parse(req.RefreshToken, h.cfg.SigningKey, h.cfg.Issuer); err == nil && claims.Subject == userID {
			if err := h.tokens.Revoke(ctx, userID, claims.ID); err != nil {
				logging.Or(ctx, h.logger).WarnContext(ctx, "refresh token revoke failed", "error", err)
			}
		}
	}

	closure, err := h.att.CloseSession(ctx, userID)
	if err != nil {
		h.fail(c, err, "Failed to log out")
		return
	}

	resp := gin.H{"message": "Logged out successfully", "attendanceClosed": closure.Closed}
	if closure.Closed {
		resp["totalWorkingMinutes"] = closure.TotalWorkingMinutes
		resp["totalBreakMinutes"] = closure.Record.TotalBreakMinutes
		resp["logoutTime"] = closure.Record.LogoutTime
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) issue(c *gin.Context, id auth.Identity) (auth.TokenPair, bool) {
	pair, err := auth.Issue(id, h.cfg.Issuer, h.cfg.SigningKey, h.cfg.AccessTTL, h.cfg.RefreshTTL)
	if err != nil {
		h.fail(c, err, "token issue failed")
		return auth.TokenPair{}, false
	}
	if err := h.tokens.Save(c.Request.Context(), id.UserID, pair); err != nil {
		h.fail(c, err, "token issue failed")
		return auth.TokenPair{}, false
	}
	return pair, true
}
