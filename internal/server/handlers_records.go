package server

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/vintrylabs/vintry-api/internal/records"
)

func (h *httpHandler) makeListHandler(kind records.Kind) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := h.currentUserID(c)
		if !ok {
			return
		}

		stored, err := h.records.List(c.Request.Context(), userID, kind)
		if err != nil {
			h.respondServiceError(c, err)
			return
		}

		payloads := make([]json.RawMessage, 0, len(stored))
		for _, record := range stored {
			payloads = append(payloads, json.RawMessage(record.PayloadJSON))
		}
		c.JSON(http.StatusOK, gin.H{"ok": true, "records": payloads})
	}
}

func (h *httpHandler) makeUpsertHandler(kind records.Kind) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := h.currentUserID(c)
		if !ok {
			return
		}

		payload, err := io.ReadAll(c.Request.Body)
		if err != nil || len(payload) == 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_payload"})
			return
		}

		record, err := h.records.Upsert(c.Request.Context(), userID, kind, c.Param("id"), payload)
		if err != nil {
			h.respondServiceError(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"ok": true, "id": record.RecordID})
	}
}

func (h *httpHandler) makeDeleteHandler(kind records.Kind) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := h.currentUserID(c)
		if !ok {
			return
		}

		if err := h.records.Delete(c.Request.Context(), userID, kind, c.Param("id")); err != nil {
			h.respondServiceError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"ok": true})
	}
}

type syncUploadPayload struct {
	Bottles  []json.RawMessage `json:"bottles"`
	Tastings []json.RawMessage `json:"tastings"`
}

// handleSyncUpload applies an offline client's batches in one transaction.
// The request body size limit is the only admission control; a failed merge
// persists nothing and the client retries the whole batch.
func (h *httpHandler) handleSyncUpload(c *gin.Context) {
	userID, ok := h.currentUserID(c)
	if !ok {
		return
	}

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, syncBodyLimitBytes)

	var request syncUploadPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	counts, err := h.records.SyncMerge(c.Request.Context(), userID, request.Bottles, request.Tastings)
	if err != nil {
		h.respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"ok":       true,
		"bottles":  counts.Bottles,
		"tastings": counts.Tastings,
	})
}

func (h *httpHandler) handleSyncDownload(c *gin.Context) {
	userID, ok := h.currentUserID(c)
	if !ok {
		return
	}

	bottles, tastings, err := h.records.Download(c.Request.Context(), userID)
	if err != nil {
		h.respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"bottles":  bottles,
		"tastings": tastings,
	})
}
