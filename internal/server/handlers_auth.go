package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/vintrylabs/vintry-api/internal/oauth"
	"github.com/vintrylabs/vintry-api/internal/users"
)

func (h *httpHandler) handleGoogleLogin(c *gin.Context) {
	if h.oauth == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "oauth_unavailable"})
		return
	}

	state := oauth.NewState()
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(stateCookieName, state, int(stateCookieMaxAge.Seconds()), "/", "", false, true)
	c.Redirect(http.StatusFound, h.oauth.LoginURL(state))
}

func (h *httpHandler) handleGoogleCallback(c *gin.Context) {
	if h.oauth == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "oauth_unavailable"})
		return
	}

	state := c.Query("state")
	storedState, err := c.Cookie(stateCookieName)
	if err != nil || state == "" || state != storedState {
		h.logger.Warn("oauth state mismatch")
		c.Redirect(http.StatusFound, h.authFailurePath)
		return
	}
	c.SetCookie(stateCookieName, "", -1, "/", "", false, true)

	code := c.Query("code")
	if code == "" {
		c.Redirect(http.StatusFound, h.authFailurePath)
		return
	}

	identity, err := h.oauth.Exchange(c.Request.Context(), code)
	if err != nil {
		h.logger.Warn("oauth exchange failed", zap.Error(err))
		c.Redirect(http.StatusFound, h.authFailurePath)
		return
	}

	user, err := h.users.UpsertByEmail(c.Request.Context(), identity)
	if err != nil {
		h.logger.Error("user upsert failed", zap.Error(err))
		c.Redirect(http.StatusFound, h.authFailurePath)
		return
	}

	token, err := h.sessions.Issue(user.ID, user.Email)
	if err != nil {
		h.logger.Error("session issue failed", zap.Error(err))
		c.Redirect(http.StatusFound, h.authFailurePath)
		return
	}

	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(h.sessions.CookieName(), token, int(h.sessions.TokenTTL().Seconds()), "/", "", false, true)
	c.Redirect(http.StatusFound, h.authSuccessPath)
}

func (h *httpHandler) handleLogout(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(h.sessions.CookieName(), "", -1, "/", "", false, true)
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (h *httpHandler) handleMe(c *gin.Context) {
	userID, ok := h.currentUserID(c)
	if !ok {
		return
	}

	user, err := h.users.GetByID(c.Request.Context(), userID)
	if err != nil {
		if errors.Is(err, users.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not_found"})
			return
		}
		h.logger.Error("user lookup failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "storage_failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"id":      user.ID,
		"email":   user.Email,
		"name":    user.Name,
		"picture": user.Picture,
	})
}

func (h *httpHandler) handleIssueAPIKey(c *gin.Context) {
	userID, ok := h.currentUserID(c)
	if !ok {
		return
	}

	rawKey, err := h.users.IssueAPIKey(c.Request.Context(), userID)
	if err != nil {
		h.logger.Error("api key issue failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "storage_failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"ok": true, "apiKey": rawKey})
}
