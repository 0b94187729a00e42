package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/SpikeIreland/clarence-sub005/service"
	"github.com/gin-gonic/gin"
)

// CallbackHandler receives asynchronous completions from the generation
// backend. The endpoint is public, so payloads are only honored after the
// checksum check.
type CallbackHandler struct {
	generator *service.GeneratorService
	lifecycle *service.Lifecycle
	store     *service.NegotiationStore
}

func NewCallbackHandler(generator *service.GeneratorService, lifecycle *service.Lifecycle, store *service.NegotiationStore) *CallbackHandler {
	return &CallbackHandler{
		generator: generator,
		lifecycle: lifecycle,
		store:     store,
	}
}

type CallbackRequest struct {
	Checksum string `json:"checksum"`
	Content  string `json:"content"`
}

type CallbackContent struct {
	NegotiationID string `json:"negotiation_id"`
	DocumentID    string `json:"document_id"`
	State         string `json:"state"` // done, failed
	DownloadURL   string `json:"download_url"`
	GeneratedAt   string `json:"generated_at"`
	ExternalID    string `json:"external_id"`
	ErrorMsg      string `json:"error"`
}

// HandleCallback applies a backend completion to the matching document.
func (h *CallbackHandler) HandleCallback(c *gin.Context) {
	var req CallbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	// Parse content
	var content CallbackContent
	if err := json.Unmarshal([]byte(req.Content), &content); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid content format"})
		return
	}

	if !h.generator.VerifyCallback(req.Checksum, req.Content, content.NegotiationID) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Checksum verification failed"})
		return
	}

	ws := h.store.Get(content.NegotiationID)
	if ws == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Negotiation not found"})
		return
	}
	if ws.Document(content.DocumentID) == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Document not found"})
		return
	}

	switch content.State {
	case "done":
		h.lifecycle.Complete(ws, content.DocumentID, service.CompletionResult{
			DownloadURL: content.DownloadURL,
			GeneratedAt: parseCallbackTime(content.GeneratedAt),
			ExternalID:  content.ExternalID,
		})
	case "failed":
		reason := content.ErrorMsg
		if reason == "" {
			reason = "the generation backend reported a failure"
		}
		h.lifecycle.Fail(ws, content.DocumentID, reason)
	}

	c.JSON(http.StatusOK, gin.H{"message": "Callback received"})
}

func parseCallbackTime(v string) time.Time {
	if v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			return t
		}
	}
	return time.Now()
}
