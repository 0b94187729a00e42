package handler

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/SpikeIreland/clarence-sub005/config"
	"github.com/SpikeIreland/clarence-sub005/model"
	"github.com/SpikeIreland/clarence-sub005/service"
	"github.com/gin-gonic/gin"
)

const callbackSeed = "test-seed"

func callbackRouter(store *service.NegotiationStore) *gin.Engine {
	generator := service.NewGeneratorService(&config.GeneratorConfig{
		WebhookURL:     "http://unused.invalid",
		TimeoutSeconds: 5,
		Seed:           callbackSeed,
	})
	lifecycle := service.NewLifecycle(generator, nil, nil)
	h := NewCallbackHandler(generator, lifecycle, store)

	router := gin.New()
	router.POST("/api/generation/callback", h.HandleCallback)
	return router
}

func signedCallback(t *testing.T, content CallbackContent) []byte {
	t.Helper()
	raw, err := json.Marshal(content)
	if err != nil {
		t.Fatalf("Failed to marshal content: %v", err)
	}
	hash := sha256.Sum256([]byte(content.NegotiationID + callbackSeed + string(raw)))
	payload, _ := json.Marshal(CallbackRequest{
		Checksum: hex.EncodeToString(hash[:]),
		Content:  string(raw),
	})
	return payload
}

func postCallback(router *gin.Engine, payload []byte) *httptest.ResponseRecorder {
	req := httptest.NewRequest("POST", "/api/generation/callback", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestCallbackDone(t *testing.T) {
	store := newTestStore()
	ws := seedWorkspace(store, "neg-1", "alice")
	ws.Update(func(w *service.Workspace) {
		w.Document("executive-summary").Status = model.StatusGenerating
	})
	router := callbackRouter(store)

	payload := signedCallback(t, CallbackContent{
		NegotiationID: "neg-1",
		DocumentID:    "executive-summary",
		State:         "done",
		DownloadURL:   "https://files.example.com/doc.pdf",
		GeneratedAt:   "2024-06-01T10:00:00Z",
		ExternalID:    "gen-55",
	})
	w := postCallback(router, payload)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", w.Code, w.Body.String())
	}

	doc := ws.Document("executive-summary")
	if doc.Status != model.StatusReady {
		t.Errorf("Expected ready, got %s", doc.Status)
	}
	if doc.Progress != 100 {
		t.Errorf("Expected progress 100, got %d", doc.Progress)
	}
	if doc.DownloadURL != "https://files.example.com/doc.pdf" {
		t.Errorf("Unexpected download URL: %s", doc.DownloadURL)
	}
	if doc.ExternalID != "gen-55" {
		t.Errorf("Unexpected external id: %s", doc.ExternalID)
	}
	if doc.GeneratedAt == nil {
		t.Fatal("Expected generated_at set")
	}
}

func TestCallbackFailed(t *testing.T) {
	store := newTestStore()
	ws := seedWorkspace(store, "neg-1", "alice")
	ws.Update(func(w *service.Workspace) {
		w.Document("executive-summary").Status = model.StatusGenerating
	})
	router := callbackRouter(store)

	payload := signedCallback(t, CallbackContent{
		NegotiationID: "neg-1",
		DocumentID:    "executive-summary",
		State:         "failed",
		ErrorMsg:      "rendering timed out",
	})
	w := postCallback(router, payload)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}

	doc := ws.Document("executive-summary")
	if doc.Status != model.StatusInProgress {
		t.Errorf("Expected in_progress after failure, got %s", doc.Status)
	}

	messages := ws.Messages()
	if len(messages) == 0 {
		t.Fatal("Expected a failure message in chat")
	}
	last := messages[len(messages)-1]
	if last.Sender != model.SenderClarence {
		t.Errorf("Expected clarence message, got %s", last.Sender)
	}
}

func TestCallbackBadChecksum(t *testing.T) {
	store := newTestStore()
	ws := seedWorkspace(store, "neg-1", "alice")
	router := callbackRouter(store)

	content, _ := json.Marshal(CallbackContent{
		NegotiationID: "neg-1",
		DocumentID:    "executive-summary",
		State:         "done",
	})
	payload, _ := json.Marshal(CallbackRequest{
		Checksum: "deadbeef",
		Content:  string(content),
	})
	w := postCallback(router, payload)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("Expected status 401, got %d", w.Code)
	}
	if ws.Document("executive-summary").Status == model.StatusReady {
		t.Error("An unverified callback must not change document state")
	}
}

func TestCallbackUnknownNegotiation(t *testing.T) {
	store := newTestStore()
	router := callbackRouter(store)

	payload := signedCallback(t, CallbackContent{
		NegotiationID: "missing",
		DocumentID:    "executive-summary",
		State:         "done",
	})
	w := postCallback(router, payload)

	if w.Code != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", w.Code)
	}
}

func TestCallbackUnknownDocument(t *testing.T) {
	store := newTestStore()
	seedWorkspace(store, "neg-1", "alice")
	router := callbackRouter(store)

	payload := signedCallback(t, CallbackContent{
		NegotiationID: "neg-1",
		DocumentID:    "nonsense",
		State:         "done",
	})
	w := postCallback(router, payload)

	if w.Code != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", w.Code)
	}
}

func TestCallbackInvalidContent(t *testing.T) {
	store := newTestStore()
	router := callbackRouter(store)

	payload, _ := json.Marshal(CallbackRequest{
		Checksum: "irrelevant",
		Content:  "not json",
	})
	w := postCallback(router, payload)

	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", w.Code)
	}
}
