package handler

import (
	"errors"
	"net/http"

	"github.com/SpikeIreland/clarence-sub005/middleware"
	"github.com/SpikeIreland/clarence-sub005/pkg/logger"
	"github.com/SpikeIreland/clarence-sub005/service"
	"github.com/gin-gonic/gin"
)

type DocumentHandler struct {
	store     *service.NegotiationStore
	lifecycle *service.Lifecycle
	archive   *service.ArchiveService
}

func NewDocumentHandler(store *service.NegotiationStore, lifecycle *service.Lifecycle, archive *service.ArchiveService) *DocumentHandler {
	return &DocumentHandler{
		store:     store,
		lifecycle: lifecycle,
		archive:   archive,
	}
}

// List returns the classified document set for a negotiation.
func (h *DocumentHandler) List(c *gin.Context) {
	ws := ownedWorkspace(c, h.store)
	if ws == nil {
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"documents":      ws.DocumentViews(),
		"generating_any": ws.GeneratingAny(),
	})
}

// Get returns one document instance.
func (h *DocumentHandler) Get(c *gin.Context) {
	ws := ownedWorkspace(c, h.store)
	if ws == nil {
		return
	}

	doc, ok := ws.DocumentView(c.Param("docID"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Document not found"})
		return
	}

	c.JSON(http.StatusOK, doc)
}

type GenerateDocumentRequest struct {
	Format     string `json:"format"`
	Regenerate bool   `json:"regenerate"`
}

// Generate triggers one generation cycle and waits for the backend. A
// failure leaves the document actionable again; the outcome is also
// narrated in the chat log either way.
func (h *DocumentHandler) Generate(c *gin.Context) {
	ws := ownedWorkspace(c, h.store)
	if ws == nil {
		return
	}

	// Body is optional; an empty POST generates with defaults.
	var req GenerateDocumentRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
			return
		}
	}
	if req.Format == "" {
		req.Format = "pdf"
	}

	docID := c.Param("docID")
	userID := middleware.GetUserID(c)

	_, err := h.lifecycle.Generate(c.Request.Context(), ws, docID, userID, req.Format, req.Regenerate)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrDocumentNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "Document not found"})
		case errors.Is(err, service.ErrDocumentLocked):
			c.JSON(http.StatusConflict, gin.H{"error": "Document is locked by unmet prerequisites"})
		case errors.Is(err, service.ErrAlreadyGenerating):
			c.JSON(http.StatusConflict, gin.H{"error": "Document generation already in flight"})
		default:
			logger.Error(c.Request.Context(), "generation failed",
				"negotiation_id", ws.Context.ID,
				"document_id", docID,
				"error", err,
			)
			doc, _ := ws.DocumentView(docID)
			c.JSON(http.StatusBadGateway, gin.H{
				"error":    "Document generation failed",
				"document": doc,
			})
		}
		return
	}

	doc, _ := ws.DocumentView(docID)
	c.JSON(http.StatusOK, doc)
}

// Download resolves a download URL for a generated document, preferring a
// fresh presigned archive link over the backend's original URL.
func (h *DocumentHandler) Download(c *gin.Context) {
	ws := ownedWorkspace(c, h.store)
	if ws == nil {
		return
	}

	doc, ok := ws.DocumentView(c.Param("docID"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Document not found"})
		return
	}
	if !doc.Terminal() {
		c.JSON(http.StatusConflict, gin.H{"error": "Document has not been generated yet"})
		return
	}

	if doc.ArchiveObject != "" && h.archive != nil {
		url, err := h.archive.PresignedURL(c.Request.Context(), doc.ArchiveObject)
		if err == nil {
			c.JSON(http.StatusOK, gin.H{"download_url": url})
			return
		}
		logger.Warn(c.Request.Context(), "presign failed, falling back to backend URL",
			"negotiation_id", ws.Context.ID,
			"document_id", doc.ID,
			"error", err,
		)
	}

	if doc.DownloadURL == "" {
		c.JSON(http.StatusNotFound, gin.H{"error": "No download available for this document"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"download_url": doc.DownloadURL})
}
