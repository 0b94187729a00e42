package model

import (
	"time"
)

// NegotiationContext is the canonical view the document and chat logic
// operate over, built once per workspace from either a negotiation-session
// record or a quick-contract record. Downstream code never branches on
// Source except for copy and labeling.
type NegotiationContext struct {
	ID           string  `json:"id"`
	Source       string  `json:"source"` // session or quick_contract
	PartyA       string  `json:"party_a"`
	PartyB       string  `json:"party_b"`
	Reference    string  `json:"reference"`
	Amount       float64 `json:"amount"`
	Currency     string  `json:"currency"`
	Alignment    int     `json:"alignment"` // 0-100 fairness/alignment score
	Training     bool    `json:"training"`
	ContractType string  `json:"contract_type,omitempty"`
	Committed    bool    `json:"committed"`
}

// Chat message senders.
const (
	SenderUser     = "user"
	SenderClarence = "clarence"
)

// ChatMessage is one entry in a negotiation's append-only chat log.
type ChatMessage struct {
	ID        string    `json:"id"`
	Sender    string    `json:"sender"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// Stage is one named step in the creation pipeline, used for navigational
// progress display only.
type Stage struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}
