package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/SpikeIreland/clarence-sub005/config"
)

// ChatService obtains CLARENCE's reply to a user message. With no webhook
// configured it falls back to a canned reply after a fixed delay, matching
// the stubbed upstream contract.
type ChatService struct {
	config     *config.ChatConfig
	httpClient *http.Client
}

func NewChatService(cfg *config.ChatConfig) *ChatService {
	return &ChatService{
		config: cfg,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

type chatRequest struct {
	Message       string `json:"message"`
	NegotiationID string `json:"negotiation_id"`
}

// chatReplyPayload covers the known server reply shapes. The server has
// answered under different field names over time; Text() decodes them in a
// fixed precedence order instead of probing dynamically.
type chatReplyPayload struct {
	Response string `json:"response"`
	Message  string `json:"message"`
	Text     string `json:"text"`
}

// ReplyText resolves the reply in precedence order: response, message, text.
func (p *chatReplyPayload) ReplyText() string {
	if p.Response != "" {
		return p.Response
	}
	if p.Message != "" {
		return p.Message
	}
	return p.Text
}

// Reply sends the user's message to the reply source and returns the reply
// text.
func (s *ChatService) Reply(ctx context.Context, negotiationID, message string) (string, error) {
	if s.config.WebhookURL == "" {
		select {
		case <-time.After(time.Duration(s.config.StubDelayMS) * time.Millisecond):
		case <-ctx.Done():
			return "", ctx.Err()
		}
		return s.config.StubReply, nil
	}

	jsonData, err := json.Marshal(chatRequest{Message: message, NegotiationID: negotiationID})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", s.config.WebhookURL, bytes.NewBuffer(jsonData))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+s.config.APIToken)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("chat source returned status %d: %s", resp.StatusCode, string(body))
	}

	var payload chatReplyPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return "", fmt.Errorf("failed to parse response: %w", err)
	}

	reply := payload.ReplyText()
	if reply == "" {
		return "", fmt.Errorf("chat source returned no reply text")
	}
	return reply, nil
}
