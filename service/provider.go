package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"time"

	"github.com/SpikeIreland/clarence-sub005/config"
	"github.com/SpikeIreland/clarence-sub005/model"
)

// ErrContextUnavailable is returned when a provider cannot produce a usable
// context. Callers must fail closed and redirect rather than render a
// partial view.
var ErrContextUnavailable = errors.New("negotiation context unavailable")

// ContextProvider adapts one raw record shape into the canonical
// NegotiationContext. Two implementations exist, one per source; the rest
// of the system never branches on origin.
type ContextProvider interface {
	Source() string
	LoadContext(ctx context.Context, id string) (*model.NegotiationContext, error)
}

func newProviderClient() *http.Client {
	return &http.Client{Timeout: 30 * time.Second}
}

func providerGet(ctx context.Context, client *http.Client, url, token string, out any) error {
	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("source returned status %d: %s", resp.StatusCode, string(body))
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}

// SessionProvider loads negotiation-session aggregates.
type SessionProvider struct {
	config     *config.SourcesConfig
	httpClient *http.Client
}

func NewSessionProvider(cfg *config.SourcesConfig) *SessionProvider {
	return &SessionProvider{config: cfg, httpClient: newProviderClient()}
}

func (p *SessionProvider) Source() string { return model.SourceSession }

// sessionPayload is the session endpoint's record shape. Every field the
// adapter depends on defaults to its zero value when absent.
type sessionPayload struct {
	SessionID    string  `json:"session_id"`
	PartyA       string  `json:"party_a_name"`
	PartyB       string  `json:"party_b_name"`
	Reference    string  `json:"reference_number"`
	Amount       float64 `json:"contract_value"`
	Currency     string  `json:"currency_code"`
	Alignment    float64 `json:"alignment_score"`
	Training     bool    `json:"is_training"`
	ContractType string  `json:"contract_type"`
	Status       string  `json:"status"`
}

func (p *SessionProvider) LoadContext(ctx context.Context, id string) (*model.NegotiationContext, error) {
	var payload sessionPayload
	url := fmt.Sprintf("%s/sessions/%s", p.config.SessionURL, id)
	if err := providerGet(ctx, p.httpClient, url, p.config.APIToken, &payload); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrContextUnavailable, err)
	}
	if payload.SessionID == "" {
		return nil, fmt.Errorf("%w: session %s has no usable record", ErrContextUnavailable, id)
	}

	return &model.NegotiationContext{
		ID:           payload.SessionID,
		Source:       model.SourceSession,
		PartyA:       payload.PartyA,
		PartyB:       payload.PartyB,
		Reference:    payload.Reference,
		Amount:       payload.Amount,
		Currency:     payload.Currency,
		Alignment:    clampScore(payload.Alignment),
		Training:     payload.Training,
		ContractType: payload.ContractType,
		Committed:    payload.Status == "committed",
	}, nil
}

// QuickContractProvider loads a quick-contract record plus its related
// recipient and clause rows, combining them into one context.
type QuickContractProvider struct {
	config     *config.SourcesConfig
	httpClient *http.Client
}

func NewQuickContractProvider(cfg *config.SourcesConfig) *QuickContractProvider {
	return &QuickContractProvider{config: cfg, httpClient: newProviderClient()}
}

func (p *QuickContractProvider) Source() string { return model.SourceQuickContract }

type quickContractPayload struct {
	ContractID   string  `json:"contract_id"`
	CreatorName  string  `json:"creator_name"`
	Reference    string  `json:"contract_number"`
	Amount       float64 `json:"amount"`
	Currency     string  `json:"currency"`
	ContractType string  `json:"contract_type"`
	Committed    bool    `json:"committed"`
}

type recipientRow struct {
	Name string `json:"name"`
}

type clauseRow struct {
	Title string   `json:"title"`
	Score *float64 `json:"fairness_score"`
}

func (p *QuickContractProvider) LoadContext(ctx context.Context, id string) (*model.NegotiationContext, error) {
	base := p.config.QuickContractURL

	var contract quickContractPayload
	if err := providerGet(ctx, p.httpClient, fmt.Sprintf("%s/contracts/%s", base, id), p.config.APIToken, &contract); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrContextUnavailable, err)
	}
	if contract.ContractID == "" {
		return nil, fmt.Errorf("%w: contract %s has no usable record", ErrContextUnavailable, id)
	}

	var recipients []recipientRow
	if err := providerGet(ctx, p.httpClient, fmt.Sprintf("%s/contracts/%s/recipients", base, id), p.config.APIToken, &recipients); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrContextUnavailable, err)
	}

	var clauses []clauseRow
	if err := providerGet(ctx, p.httpClient, fmt.Sprintf("%s/contracts/%s/clauses", base, id), p.config.APIToken, &clauses); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrContextUnavailable, err)
	}

	partyB := ""
	if len(recipients) > 0 {
		partyB = recipients[0].Name
	}

	scores := make([]*float64, len(clauses))
	for i := range clauses {
		scores[i] = clauses[i].Score
	}

	return &model.NegotiationContext{
		ID:           contract.ContractID,
		Source:       model.SourceQuickContract,
		PartyA:       contract.CreatorName,
		PartyB:       partyB,
		Reference:    contract.Reference,
		Amount:       contract.Amount,
		Currency:     contract.Currency,
		Alignment:    FairnessAverage(scores),
		ContractType: contract.ContractType,
		Committed:    contract.Committed,
	}, nil
}

// FairnessAverage averages clause fairness scores, skipping rows without a
// score. An empty or all-null set yields 0 rather than NaN.
func FairnessAverage(scores []*float64) int {
	sum := 0.0
	count := 0
	for _, s := range scores {
		if s == nil {
			continue
		}
		sum += *s
		count++
	}
	if count == 0 {
		return 0
	}
	return clampScore(sum / float64(count))
}

func clampScore(v float64) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return int(math.Round(v))
}
