package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func (h *httpHandler) handleImageSearch(c *gin.Context) {
	if _, ok := h.currentUserID(c); !ok {
		return
	}
	if h.images == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "image_search_unavailable"})
		return
	}

	query := strings.TrimSpace(c.Query("q"))
	if query == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing_query"})
		return
	}

	urls, err := h.images.Search(c.Request.Context(), query)
	if err != nil {
		h.logger.Warn("image search failed", zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": "image_search_failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"ok": true, "results": urls})
}
