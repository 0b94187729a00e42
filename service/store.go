package service

import (
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/SpikeIreland/clarence-sub005/config"
	"github.com/SpikeIreland/clarence-sub005/model"
)

// Workspace is the in-memory view state for one open negotiation: the
// adapted context plus document instances, chat log and stage pointer. The
// generation backend remains the system of record; workspaces are rebuilt
// from source on open and never persisted.
//
// All mutation of a workspace's documents and chat log goes through the
// workspace mutex, giving each negotiation a single logical writer even
// when generations for different documents overlap.
type Workspace struct {
	mu sync.Mutex

	Context         *model.NegotiationContext
	Documents       []*model.DocumentInstance
	Chat            []model.ChatMessage
	StageGroup      string
	CurrentStage    string
	CompletedStages map[string]bool
	Owner           string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Update runs fn with the workspace lock held.
func (w *Workspace) Update(fn func(w *Workspace)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	fn(w)
	w.UpdatedAt = time.Now()
}

// View runs fn with the workspace lock held without stamping UpdatedAt.
// Read paths that marshal shared state go through here so an in-flight
// generation cannot mutate documents under the encoder.
func (w *Workspace) View(fn func(w *Workspace)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	fn(w)
}

// Touch stamps UpdatedAt under the workspace lock.
func (w *Workspace) Touch() {
	w.mu.Lock()
	w.UpdatedAt = time.Now()
	w.mu.Unlock()
}

// Document returns the instance with the given id. Callers that mutate the
// result must do so inside Update.
func (w *Workspace) Document(id string) *model.DocumentInstance {
	for _, d := range w.Documents {
		if d.ID == id {
			return d
		}
	}
	return nil
}

// DocumentViews returns copies of the document instances, safe to marshal
// outside the lock.
func (w *Workspace) DocumentViews() []model.DocumentInstance {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]model.DocumentInstance, len(w.Documents))
	for i, d := range w.Documents {
		out[i] = *d
	}
	return out
}

// DocumentView returns a copy of one document instance.
func (w *Workspace) DocumentView(id string) (model.DocumentInstance, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, d := range w.Documents {
		if d.ID == id {
			return *d, true
		}
	}
	return model.DocumentInstance{}, false
}

// AppendChat appends a message to the chat log under the workspace lock and
// returns the stored message.
func (w *Workspace) AppendChat(sender, text string, id string) model.ChatMessage {
	msg := model.ChatMessage{
		ID:        id,
		Sender:    sender,
		Text:      text,
		Timestamp: time.Now(),
	}
	w.mu.Lock()
	w.Chat = append(w.Chat, msg)
	w.UpdatedAt = time.Now()
	w.mu.Unlock()
	return msg
}

// Messages returns a copy of the chat log.
func (w *Workspace) Messages() []model.ChatMessage {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]model.ChatMessage, len(w.Chat))
	copy(out, w.Chat)
	return out
}

// GeneratingAny reports whether any document is currently generating. This
// backs the client's generate-button state only; it is advisory and never
// blocks a second generation.
func (w *Workspace) GeneratingAny() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, d := range w.Documents {
		if d.Status == model.StatusGenerating {
			return true
		}
	}
	return false
}

// NegotiationStore is an in-memory store of open workspaces keyed by
// negotiation context id.
type NegotiationStore struct {
	workspaces    map[string]*Workspace
	mu            sync.RWMutex
	maxWorkspaces int // Maximum workspaces to keep, 0 = unlimited
}

func NewNegotiationStore(cfg *config.StoreConfig) *NegotiationStore {
	maxWorkspaces := cfg.MaxWorkspaces
	if maxWorkspaces < 0 {
		maxWorkspaces = 0
	}
	slog.Info("negotiation store initialized", "max_workspaces", maxWorkspaces)
	return &NegotiationStore{
		workspaces:    make(map[string]*Workspace),
		maxWorkspaces: maxWorkspaces,
	}
}

func (s *NegotiationStore) Save(ws *Workspace) {
	ws.Touch()

	s.mu.Lock()
	defer s.mu.Unlock()

	s.workspaces[ws.Context.ID] = ws

	// Cleanup if exceeds max
	s.cleanupIfNeeded()
}

func (s *NegotiationStore) Get(id string) *Workspace {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.workspaces[id]
}

func (s *NegotiationStore) GetByOwner(owner string) []*Workspace {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*Workspace
	for _, ws := range s.workspaces {
		if ws.Owner == owner {
			result = append(result, ws)
		}
	}
	return result
}

// FindByExternalID returns the workspace and document holding the given
// backend document id, or nils when no document matches.
func (s *NegotiationStore) FindByExternalID(externalID string) (*Workspace, *model.DocumentInstance) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, ws := range s.workspaces {
		for _, d := range ws.Documents {
			if d.ExternalID == externalID {
				return ws, d
			}
		}
	}
	return nil, nil
}

func (s *NegotiationStore) Delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.workspaces, id)
}

// cleanupIfNeeded removes oldest workspaces if store exceeds maxWorkspaces
// Must be called with lock held
func (s *NegotiationStore) cleanupIfNeeded() {
	if s.maxWorkspaces <= 0 {
		return // Unlimited
	}

	if len(s.workspaces) <= s.maxWorkspaces {
		return
	}

	// Sort workspaces by creation time
	workspaces := make([]*Workspace, 0, len(s.workspaces))
	for _, ws := range s.workspaces {
		workspaces = append(workspaces, ws)
	}
	sort.Slice(workspaces, func(i, j int) bool {
		return workspaces[i].CreatedAt.Before(workspaces[j].CreatedAt)
	})

	// Remove oldest workspaces
	removeCount := len(workspaces) - s.maxWorkspaces
	for i := 0; i < removeCount; i++ {
		slog.Info("auto-cleaning old workspace",
			"negotiation_id", workspaces[i].Context.ID,
			"created_at", workspaces[i].CreatedAt,
		)
		delete(s.workspaces, workspaces[i].Context.ID)
	}
}

// Count returns the number of workspaces in the store
func (s *NegotiationStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.workspaces)
}
