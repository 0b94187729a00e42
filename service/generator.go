package service

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/SpikeIreland/clarence-sub005/config"
)

// GeneratorService calls the document-generation webhook backend. One
// endpoint per document type, keyed by the descriptor id appended to the
// configured base URL.
type GeneratorService struct {
	config     *config.GeneratorConfig
	httpClient *http.Client
}

// GenerateRequest is the payload sent to the generation backend.
type GenerateRequest struct {
	NegotiationID string `json:"negotiation_id"`
	UserID        string `json:"user_id"`
	Format        string `json:"format"`
	Regenerate    bool   `json:"regenerate"`
	Callback      string `json:"callback,omitempty"`
}

// GenerateResponse is the generation backend's reply. A non-2xx status or
// Success=false both count as failure.
type GenerateResponse struct {
	Success     bool   `json:"success"`
	DownloadURL string `json:"download_url"`
	GeneratedAt string `json:"generated_at"`
	DocumentID  string `json:"document_id"`
	Error       string `json:"error,omitempty"`
}

func NewGeneratorService(cfg *config.GeneratorConfig) *GeneratorService {
	return &GeneratorService{
		config: cfg,
		httpClient: &http.Client{
			Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second,
		},
	}
}

// Generate requests generation of one document type and waits for the
// backend's reply. The client timeout bounds the wait; expiry surfaces as a
// normal request error so callers follow the standard failure path.
func (s *GeneratorService) Generate(ctx context.Context, docType string, genReq GenerateRequest) (*GenerateResponse, error) {
	if s.config.CallbackURL != "" {
		genReq.Callback = s.config.CallbackURL
	}

	jsonData, err := json.Marshal(genReq)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/%s", s.config.WebhookURL, docType)
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+s.config.APIToken)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("generation backend returned status %d: %s", resp.StatusCode, string(body))
	}

	var result GenerateResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w, body: %s", err, string(body))
	}

	return &result, nil
}

// FetchArtifact downloads a generated document from the backend's URL so it
// can be mirrored into the archive.
func (s *GeneratorService) FetchArtifact(ctx context.Context, url string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("failed to fetch artifact: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("artifact fetch returned status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read artifact: %w", err)
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	return data, contentType, nil
}

// VerifyCallback verifies a callback checksum.
// Checksum = SHA256(uid + seed + content).
func (s *GeneratorService) VerifyCallback(checksum, content, uid string) bool {
	data := uid + s.config.Seed + content
	hash := sha256.Sum256([]byte(data))
	expected := hex.EncodeToString(hash[:])
	return checksum == expected
}
