package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/SpikeIreland/clarence-sub005/model"
	"github.com/google/uuid"
)

// Lifecycle errors surfaced to handlers.
var (
	ErrDocumentNotFound  = errors.New("document not found")
	ErrDocumentLocked    = errors.New("document is locked by unmet prerequisites")
	ErrAlreadyGenerating = errors.New("document generation already in flight")
	ErrGenerationFailed  = errors.New("document generation failed")
)

// Broadcaster pushes live events to connected clients. The websocket hub
// implements it; a nil broadcaster disables events.
type Broadcaster interface {
	BroadcastRaw(topic, eventType string, data any)
}

// Lifecycle drives a document through generate → generating → ready, or
// back to in_progress on failure. Failures are always recoverable by retry
// and a ready document can be regenerated any number of times.
type Lifecycle struct {
	generator    *GeneratorService
	archive      *ArchiveService
	events       Broadcaster
	newEstimator func() ProgressEstimator
}

// NewLifecycle wires the controller. archive and events may be nil.
func NewLifecycle(generator *GeneratorService, archive *ArchiveService, events Broadcaster) *Lifecycle {
	return &Lifecycle{
		generator: generator,
		archive:   archive,
		events:    events,
		newEstimator: func() ProgressEstimator {
			return NewTickerEstimator()
		},
	}
}

// CompletionResult carries the terminal fields of a successful generation.
type CompletionResult struct {
	DownloadURL   string
	ArchiveObject string
	GeneratedAt   time.Time
	ExternalID    string
}

type progressEvent struct {
	DocumentID string `json:"document_id"`
	Status     string `json:"status"`
	Progress   int    `json:"progress"`
	Error      string `json:"error,omitempty"`
}

// Generate runs one generation cycle for the given document and waits for
// the backend to answer. The returned instance reflects the terminal state
// of this cycle.
func (l *Lifecycle) Generate(ctx context.Context, ws *Workspace, docID, userID, format string, regenerate bool) (*model.DocumentInstance, error) {
	var doc *model.DocumentInstance
	var startErr error

	ws.Update(func(w *Workspace) {
		doc = w.Document(docID)
		if doc == nil {
			startErr = ErrDocumentNotFound
			return
		}
		switch doc.Status {
		case model.StatusLocked:
			startErr = ErrDocumentLocked
			return
		case model.StatusGenerating:
			startErr = ErrAlreadyGenerating
			return
		}
		doc.Status = model.StatusGenerating
		doc.Progress = 0
		// A download link belongs to a terminal state only; a regenerate
		// cycle invalidates the previous artifact's URL.
		doc.DownloadURL = ""
	})
	if startErr != nil {
		return doc, startErr
	}

	started := ws.AppendChat(model.SenderClarence,
		fmt.Sprintf("Generating your %s now. I'll let you know the moment it's ready.", doc.Name),
		uuid.New().String())
	l.broadcastChat(ws, started)
	l.broadcastProgress(ws, docID, model.StatusGenerating, 0, "")

	// Cosmetic progress: the backend has no progress callback, so the
	// estimator drives the displayed bar until the real completion lands.
	est := l.newEstimator()
	est.Start(func(progress int) {
		stale := false
		ws.Update(func(w *Workspace) {
			d := w.Document(docID)
			if d == nil || d.Status != model.StatusGenerating {
				stale = true
				return
			}
			d.Progress = progress
		})
		if !stale {
			l.broadcastProgress(ws, docID, model.StatusGenerating, progress, "")
		}
	})

	resp, err := l.generator.Generate(ctx, docID, GenerateRequest{
		NegotiationID: ws.Context.ID,
		UserID:        userID,
		Format:        format,
		Regenerate:    regenerate,
	})

	// The completion handler must cancel the estimator before touching
	// terminal state; a tick racing the completion could otherwise clobber
	// the final progress. Cancel is idempotent.
	est.Cancel()

	if err != nil {
		l.Fail(ws, docID, err.Error())
		return doc, fmt.Errorf("%w: %v", ErrGenerationFailed, err)
	}
	if !resp.Success {
		reason := resp.Error
		if reason == "" {
			reason = "the generation backend reported a failure"
		}
		l.Fail(ws, docID, reason)
		return doc, fmt.Errorf("%w: %s", ErrGenerationFailed, reason)
	}

	result := CompletionResult{
		DownloadURL: resp.DownloadURL,
		GeneratedAt: parseGeneratedAt(resp.GeneratedAt),
		ExternalID:  resp.DocumentID,
	}
	if l.archive != nil && resp.DownloadURL != "" {
		if objectName, url, err := l.mirrorArtifact(ctx, ws.Context.ID, docID, resp.DownloadURL); err != nil {
			slog.Warn("failed to archive generated document",
				"negotiation_id", ws.Context.ID,
				"document_id", docID,
				"error", err,
			)
		} else {
			result.ArchiveObject = objectName
			result.DownloadURL = url
		}
	}

	l.Complete(ws, docID, result)
	return doc, nil
}

// Complete applies a successful generation result. It is shared by the
// synchronous path and the asynchronous backend callback.
func (l *Lifecycle) Complete(ws *Workspace, docID string, result CompletionResult) {
	var name string
	ws.Update(func(w *Workspace) {
		d := w.Document(docID)
		if d == nil {
			return
		}
		generatedAt := result.GeneratedAt
		d.Status = model.StatusReady
		d.Progress = 100
		d.DownloadURL = result.DownloadURL
		d.GeneratedAt = &generatedAt
		d.ExternalID = result.ExternalID
		if result.ArchiveObject != "" {
			d.ArchiveObject = result.ArchiveObject
		}
		name = d.Name
		// Sibling prerequisites may now be satisfied.
		RefreshLocks(w.Documents, w.Context)
	})
	if name == "" {
		return
	}

	msg := ws.AppendChat(model.SenderClarence,
		fmt.Sprintf("Your %s is ready. You can download it from the documents panel.", name),
		uuid.New().String())
	l.broadcastChat(ws, msg)
	l.broadcastProgress(ws, docID, model.StatusReady, 100, "")
}

// Fail returns a generating document to its actionable state. There is no
// permanent failed status; the user may retry immediately.
func (l *Lifecycle) Fail(ws *Workspace, docID, reason string) {
	var name string
	ws.Update(func(w *Workspace) {
		d := w.Document(docID)
		if d == nil {
			return
		}
		d.Status = model.StatusInProgress
		d.Progress = 0
		name = d.Name
	})
	if name == "" {
		return
	}

	msg := ws.AppendChat(model.SenderClarence,
		fmt.Sprintf("I couldn't generate the %s: %s. Give it another try whenever you're ready.", name, reason),
		uuid.New().String())
	l.broadcastChat(ws, msg)
	l.broadcastProgress(ws, docID, model.StatusInProgress, 0, reason)
}

func (l *Lifecycle) mirrorArtifact(ctx context.Context, negotiationID, docID, srcURL string) (string, string, error) {
	data, contentType, err := l.generator.FetchArtifact(ctx, srcURL)
	if err != nil {
		return "", "", err
	}
	objectName, err := l.archive.StoreDocument(ctx, negotiationID, docID, data, contentType)
	if err != nil {
		return "", "", err
	}
	url, err := l.archive.PresignedURL(ctx, objectName)
	if err != nil {
		return "", "", err
	}
	return objectName, url, nil
}

func (l *Lifecycle) broadcastProgress(ws *Workspace, docID string, status model.DocumentStatus, progress int, reason string) {
	if l.events == nil {
		return
	}
	eventType := "document.progress"
	switch status {
	case model.StatusReady, model.StatusFinal:
		eventType = "document.ready"
	case model.StatusInProgress:
		if reason != "" {
			eventType = "document.error"
		}
	}
	l.events.BroadcastRaw(ws.Context.ID, eventType, progressEvent{
		DocumentID: docID,
		Status:     string(status),
		Progress:   progress,
		Error:      reason,
	})
}

func (l *Lifecycle) broadcastChat(ws *Workspace, msg model.ChatMessage) {
	if l.events == nil {
		return
	}
	l.events.BroadcastRaw(ws.Context.ID, "chat.message", msg)
}

func parseGeneratedAt(v string) time.Time {
	if v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			return t
		}
	}
	return time.Now()
}
