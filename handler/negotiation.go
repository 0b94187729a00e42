package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/SpikeIreland/clarence-sub005/middleware"
	"github.com/SpikeIreland/clarence-sub005/model"
	"github.com/SpikeIreland/clarence-sub005/pkg/logger"
	"github.com/SpikeIreland/clarence-sub005/service"
	"github.com/gin-gonic/gin"
)

type NegotiationHandler struct {
	store     *service.NegotiationStore
	providers map[string]service.ContextProvider
}

func NewNegotiationHandler(store *service.NegotiationStore, providers ...service.ContextProvider) *NegotiationHandler {
	bySource := make(map[string]service.ContextProvider, len(providers))
	for _, p := range providers {
		bySource[p.Source()] = p
	}
	return &NegotiationHandler{store: store, providers: bySource}
}

// ownedWorkspace resolves the :id route param against the store and the
// requesting user, writing a 404 on miss or owner mismatch. Every
// authenticated per-negotiation handler goes through this check.
func ownedWorkspace(c *gin.Context, store *service.NegotiationStore) *service.Workspace {
	ws := store.Get(c.Param("id"))
	if ws == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Negotiation not found"})
		return nil
	}
	if owner := middleware.GetUsername(c); owner != "" && ws.Owner != "" && ws.Owner != owner {
		c.JSON(http.StatusNotFound, gin.H{"error": "Negotiation not found"})
		return nil
	}
	return ws
}

type OpenRequest struct {
	SessionID  string `json:"session_id"`
	ContractID string `json:"contract_id"`
}

// negotiationView is the response shape for a workspace.
type negotiationView struct {
	Context       *model.NegotiationContext `json:"context"`
	Documents     []model.DocumentInstance  `json:"documents"`
	StageGroup    string                    `json:"stage_group"`
	CurrentStage  string                    `json:"current_stage"`
	StagePercent  int                       `json:"stage_percent"`
	GeneratingAny bool                      `json:"generating_any"`
	Training      bool                      `json:"training"`
}

// viewOf snapshots the workspace under its lock so the encoder never sees a
// document mid-mutation.
func viewOf(ws *service.Workspace) negotiationView {
	var v negotiationView
	ws.View(func(w *service.Workspace) {
		docs := make([]model.DocumentInstance, len(w.Documents))
		generating := false
		for i, d := range w.Documents {
			docs[i] = *d
			if d.Status == model.StatusGenerating {
				generating = true
			}
		}
		v = negotiationView{
			Context:       w.Context,
			Documents:     docs,
			StageGroup:    w.StageGroup,
			CurrentStage:  w.CurrentStage,
			StagePercent:  service.GroupPercent(w.StageGroup, w.CurrentStage),
			GeneratingAny: generating,
			Training:      w.Context.Training,
		}
	})
	return v
}

// Open loads a negotiation context from one of the two sources and builds
// (or rebuilds) its workspace. Exactly one of session_id and contract_id
// must be set. A failed load never produces a partial workspace.
func (h *NegotiationHandler) Open(c *gin.Context) {
	var req OpenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	var source, id string
	switch {
	case req.SessionID != "" && req.ContractID != "":
		c.JSON(http.StatusBadRequest, gin.H{"error": "session_id and contract_id are mutually exclusive"})
		return
	case req.SessionID != "":
		source, id = model.SourceSession, req.SessionID
	case req.ContractID != "":
		source, id = model.SourceQuickContract, req.ContractID
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "session_id or contract_id required"})
		return
	}

	provider := h.providers[source]
	if provider == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown context source"})
		return
	}

	nctx, err := provider.LoadContext(c.Request.Context(), id)
	if err != nil {
		logger.Error(c.Request.Context(), "context load failed", "source", source, "id", id, "error", err)
		if errors.Is(err, service.ErrContextUnavailable) {
			c.JSON(http.StatusBadGateway, gin.H{"error": "Negotiation context unavailable"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load context"})
		return
	}

	// Rebuild from source, preserving chat and stage state on reopen. The
	// completed set starts empty: readiness from the early-alignment
	// override does not pre-satisfy prerequisites.
	ws := h.store.Get(nctx.ID)
	if ws != nil {
		ws.Update(func(w *service.Workspace) {
			w.Context = nctx
			w.Documents = service.BuildDocuments(nctx, nil)
			service.RefreshLocks(w.Documents, nctx)
		})
	} else {
		ws = &service.Workspace{
			Context:         nctx,
			Documents:       service.BuildDocuments(nctx, nil),
			StageGroup:      service.StageGroupSetup,
			CurrentStage:    "create",
			CompletedStages: make(map[string]bool),
			Owner:           middleware.GetUsername(c),
			CreatedAt:       time.Now(),
		}
	}
	h.store.Save(ws)

	c.JSON(http.StatusOK, viewOf(ws))
}

// List returns the current user's open workspaces.
func (h *NegotiationHandler) List(c *gin.Context) {
	owner := middleware.GetUsername(c)
	workspaces := h.store.GetByOwner(owner)

	result := make([]gin.H, len(workspaces))
	for i, ws := range workspaces {
		var entry gin.H
		ws.View(func(w *service.Workspace) {
			entry = gin.H{
				"id":         w.Context.ID,
				"source":     w.Context.Source,
				"reference":  w.Context.Reference,
				"party_a":    w.Context.PartyA,
				"party_b":    w.Context.PartyB,
				"alignment":  w.Context.Alignment,
				"training":   w.Context.Training,
				"updated_at": w.UpdatedAt.Format("2006-01-02T15:04:05Z07:00"),
			}
		})
		result[i] = entry
	}

	c.JSON(http.StatusOK, gin.H{"negotiations": result})
}

// Get returns one workspace view.
func (h *NegotiationHandler) Get(c *gin.Context) {
	ws := ownedWorkspace(c, h.store)
	if ws == nil {
		return
	}
	c.JSON(http.StatusOK, viewOf(ws))
}

type StageRequest struct {
	StageID  string `json:"stage_id" binding:"required"`
	Complete bool   `json:"complete"`
}

// SetStage moves the navigational stage pointer. Completion is explicit so
// skipped stages stay incomplete.
func (h *NegotiationHandler) SetStage(c *gin.Context) {
	ws := ownedWorkspace(c, h.store)
	if ws == nil {
		return
	}

	var req StageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	if !service.ValidStage(ws.StageGroup, req.StageID) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown stage"})
		return
	}

	var currentStage string
	var stagePercent int
	completedStages := make(map[string]bool)
	ws.Update(func(w *service.Workspace) {
		if req.Complete {
			w.CompletedStages[w.CurrentStage] = true
		}
		w.CurrentStage = req.StageID
		currentStage = w.CurrentStage
		stagePercent = service.GroupPercent(w.StageGroup, w.CurrentStage)
		for k, v := range w.CompletedStages {
			completedStages[k] = v
		}
	})

	c.JSON(http.StatusOK, gin.H{
		"current_stage":    currentStage,
		"stage_percent":    stagePercent,
		"completed_stages": completedStages,
	})
}

// Close discards a workspace. The generation backend remains the system of
// record, so closing only drops in-memory view state; reopening rebuilds it
// from source.
func (h *NegotiationHandler) Close(c *gin.Context) {
	ws := ownedWorkspace(c, h.store)
	if ws == nil {
		return
	}

	h.store.Delete(ws.Context.ID)
	c.JSON(http.StatusOK, gin.H{"message": "Negotiation closed"})
}
