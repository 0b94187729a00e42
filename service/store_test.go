package service

import (
	"testing"
	"time"

	"github.com/SpikeIreland/clarence-sub005/config"
	"github.com/SpikeIreland/clarence-sub005/model"
)

func newTestStore(maxWorkspaces int) *NegotiationStore {
	return NewNegotiationStore(&config.StoreConfig{MaxWorkspaces: maxWorkspaces})
}

func testWorkspace(id, owner string) *Workspace {
	nctx := &model.NegotiationContext{ID: id, Source: model.SourceSession}
	return &Workspace{
		Context:         nctx,
		Documents:       BuildDocuments(nctx, nil),
		StageGroup:      StageGroupSetup,
		CurrentStage:    "create",
		CompletedStages: make(map[string]bool),
		Owner:           owner,
		CreatedAt:       time.Now(),
	}
}

func TestNegotiationStoreSaveAndGet(t *testing.T) {
	store := newTestStore(100)

	store.Save(testWorkspace("neg-1", "alice"))

	// Test Get
	retrieved := store.Get("neg-1")
	if retrieved == nil {
		t.Fatal("Expected to retrieve workspace")
	}
	if retrieved.Owner != "alice" {
		t.Errorf("Expected owner alice, got %s", retrieved.Owner)
	}
	if len(retrieved.Documents) == 0 {
		t.Error("Expected document set built for workspace")
	}

	// Test Get non-existent
	notFound := store.Get("non-existent")
	if notFound != nil {
		t.Error("Expected nil for non-existent workspace")
	}
}

func TestWorkspaceDocumentViewsAreCopies(t *testing.T) {
	ws := testWorkspace("neg-1", "alice")

	views := ws.DocumentViews()
	if len(views) != len(ws.Documents) {
		t.Fatalf("Expected %d views, got %d", len(ws.Documents), len(views))
	}

	views[0].Status = model.StatusGenerating
	views[0].Progress = 55
	if ws.Documents[0].Status == model.StatusGenerating {
		t.Error("Mutating a view must not touch the workspace instance")
	}

	doc, ok := ws.DocumentView("executive-summary")
	if !ok {
		t.Fatal("Expected executive-summary view")
	}
	doc.Progress = 99
	if ws.Document("executive-summary").Progress == 99 {
		t.Error("Mutating a single view must not touch the workspace instance")
	}

	if _, ok := ws.DocumentView("nonsense"); ok {
		t.Error("Expected no view for unknown id")
	}
}

func TestNegotiationStoreGetByOwner(t *testing.T) {
	store := newTestStore(100)

	store.Save(testWorkspace("neg-1", "alice"))
	store.Save(testWorkspace("neg-2", "alice"))
	store.Save(testWorkspace("neg-3", "bob"))

	if got := len(store.GetByOwner("alice")); got != 2 {
		t.Errorf("Expected 2 workspaces for alice, got %d", got)
	}
	if got := len(store.GetByOwner("bob")); got != 1 {
		t.Errorf("Expected 1 workspace for bob, got %d", got)
	}
	if got := len(store.GetByOwner("carol")); got != 0 {
		t.Errorf("Expected 0 workspaces for carol, got %d", got)
	}
}

func TestNegotiationStoreDelete(t *testing.T) {
	store := newTestStore(100)

	store.Save(testWorkspace("neg-1", "alice"))
	store.Delete("neg-1")

	if store.Get("neg-1") != nil {
		t.Error("Expected workspace deleted")
	}
}

func TestNegotiationStoreCleanup(t *testing.T) {
	store := newTestStore(2)

	oldest := testWorkspace("neg-old", "alice")
	oldest.CreatedAt = time.Now().Add(-2 * time.Hour)
	middle := testWorkspace("neg-mid", "alice")
	middle.CreatedAt = time.Now().Add(-time.Hour)
	newest := testWorkspace("neg-new", "alice")

	store.Save(oldest)
	store.Save(middle)
	store.Save(newest)

	if store.Count() != 2 {
		t.Errorf("Expected store trimmed to 2, got %d", store.Count())
	}
	if store.Get("neg-old") != nil {
		t.Error("Expected oldest workspace evicted")
	}
	if store.Get("neg-new") == nil {
		t.Error("Expected newest workspace retained")
	}
}

func TestNegotiationStoreUnlimited(t *testing.T) {
	store := newTestStore(0)

	for i := 0; i < 150; i++ {
		ws := testWorkspace(string(rune('a'+i%26))+string(rune('0'+i/26)), "alice")
		store.Save(ws)
	}

	if store.Count() < 100 {
		t.Errorf("Expected unlimited store to keep everything, got %d", store.Count())
	}
}

func TestWorkspaceFindByExternalID(t *testing.T) {
	store := newTestStore(100)
	ws := testWorkspace("neg-1", "alice")
	ws.Documents[0].ExternalID = "ext-42"
	store.Save(ws)

	found, doc := store.FindByExternalID("ext-42")
	if found == nil || doc == nil {
		t.Fatal("Expected to find workspace by external document id")
	}
	if found.Context.ID != "neg-1" {
		t.Errorf("Expected neg-1, got %s", found.Context.ID)
	}

	if ws, doc := store.FindByExternalID("missing"); ws != nil || doc != nil {
		t.Error("Expected nils for unknown external id")
	}
}

func TestWorkspaceAppendChatOrdering(t *testing.T) {
	ws := testWorkspace("neg-1", "alice")

	ws.AppendChat(model.SenderUser, "first", "id-1")
	ws.AppendChat(model.SenderClarence, "second", "id-2")

	messages := ws.Messages()
	if len(messages) != 2 {
		t.Fatalf("Expected 2 messages, got %d", len(messages))
	}
	if messages[0].Text != "first" || messages[1].Text != "second" {
		t.Error("Chat messages out of append order")
	}
}

func TestWorkspaceGeneratingAny(t *testing.T) {
	ws := testWorkspace("neg-1", "alice")

	if ws.GeneratingAny() {
		t.Error("Expected no generation in flight initially")
	}

	ws.Update(func(w *Workspace) {
		w.Documents[0].Status = model.StatusGenerating
	})

	if !ws.GeneratingAny() {
		t.Error("Expected generating_any true while a document generates")
	}
}
