package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/vintrylabs/vintry-api/internal/records"
	"github.com/vintrylabs/vintry-api/internal/share"
	"github.com/vintrylabs/vintry-api/internal/users"
)

func (h *httpHandler) handleShareGenerate(c *gin.Context) {
	userID, ok := h.currentUserID(c)
	if !ok {
		return
	}

	token, err := h.users.GenerateShareToken(c.Request.Context(), userID)
	if err != nil {
		h.logger.Error("share token generation failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "storage_failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"ok":    true,
		"token": token,
		"url":   h.shareURL(token),
	})
}

type shareSettingsPayload struct {
	ShowValues *bool `json:"showValues"`
}

func (h *httpHandler) handleShareSettings(c *gin.Context) {
	userID, ok := h.currentUserID(c)
	if !ok {
		return
	}

	var request shareSettingsPayload
	if err := c.ShouldBindJSON(&request); err != nil || request.ShowValues == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	if err := h.users.SetShareValues(c.Request.Context(), userID, *request.ShowValues); err != nil {
		h.logger.Error("share settings update failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "storage_failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (h *httpHandler) handleShareStatus(c *gin.Context) {
	userID, ok := h.currentUserID(c)
	if !ok {
		return
	}

	status, err := h.users.GetShareStatus(c.Request.Context(), userID)
	if err != nil {
		h.logger.Error("share status lookup failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "storage_failed"})
		return
	}

	response := gin.H{
		"token":      status.Token,
		"showValues": status.ShowValues,
	}
	if status.Token != "" {
		response["url"] = h.shareURL(status.Token)
	}
	c.JSON(http.StatusOK, response)
}

func (h *httpHandler) handleShareRevoke(c *gin.Context) {
	userID, ok := h.currentUserID(c)
	if !ok {
		return
	}

	if err := h.users.RevokeShareToken(c.Request.Context(), userID); err != nil {
		h.logger.Error("share revoke failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "storage_failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// handleShareView is the unauthenticated public entry point. Unknown,
// revoked, and never-issued tokens all answer the same 404.
func (h *httpHandler) handleShareView(c *gin.Context) {
	wantsJSON := strings.Contains(c.GetHeader("Accept"), "application/json")

	owner, err := h.users.GetByShareToken(c.Request.Context(), c.Param("token"))
	if err != nil {
		if errors.Is(err, users.ErrNotFound) {
			h.respondShareNotFound(c, wantsJSON)
			return
		}
		h.logger.Error("share token lookup failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "storage_failed"})
		return
	}

	stored, err := h.records.List(c.Request.Context(), owner.ID, records.KindBottle)
	if err != nil {
		h.respondServiceError(c, err)
		return
	}

	payloads := make([]json.RawMessage, 0, len(stored))
	for _, record := range stored {
		payloads = append(payloads, json.RawMessage(record.PayloadJSON))
	}
	view := share.BuildView(owner.Name, payloads, owner.ShareShowValues)

	if wantsJSON {
		c.JSON(http.StatusOK, view)
		return
	}
	c.HTML(http.StatusOK, share.PageTemplateName, view)
}

func (h *httpHandler) respondShareNotFound(c *gin.Context, wantsJSON bool) {
	if wantsJSON {
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found"})
		return
	}
	c.String(http.StatusNotFound, "Not found")
}
