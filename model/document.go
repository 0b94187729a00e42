package model

import (
	"time"
)

// DocumentStatus is the lifecycle state of a generated document.
type DocumentStatus string

const (
	StatusLocked     DocumentStatus = "locked"
	StatusInProgress DocumentStatus = "in_progress"
	StatusGenerating DocumentStatus = "generating"
	StatusReady      DocumentStatus = "ready"
	StatusFinal      DocumentStatus = "final"
)

// Source identifiers for the two originating record shapes.
const (
	SourceSession       = "session"
	SourceQuickContract = "quick_contract"
)

// DocumentDescriptor is a static catalog entry for one document type.
type DocumentDescriptor struct {
	ID            string   `json:"id"`
	Name          string   `json:"name"`
	Category      string   `json:"category"`
	Prerequisites []string `json:"prerequisites,omitempty"`
	Sources       []string `json:"sources"`
	// EarlyReady marks documents that become ready without generation
	// once the negotiation alignment score reaches the early threshold.
	EarlyReady bool `json:"-"`
	// Summary marks the settlement summary, which re-opens for drafting
	// once the originating record has been committed.
	Summary bool `json:"-"`
}

// AvailableFor reports whether the descriptor applies to the given source.
func (d *DocumentDescriptor) AvailableFor(source string) bool {
	for _, s := range d.Sources {
		if s == source {
			return true
		}
	}
	return false
}

// DocumentInstance is the mutable per-negotiation record for one document.
type DocumentInstance struct {
	ID            string         `json:"id"`
	Name          string         `json:"name"`
	Category      string         `json:"category"`
	Prerequisites []string       `json:"prerequisites,omitempty"`
	Status        DocumentStatus `json:"status"`
	Progress      int            `json:"progress"`
	DownloadURL   string         `json:"download_url,omitempty"`
	GeneratedAt   *time.Time     `json:"generated_at,omitempty"`
	ExternalID    string         `json:"external_id,omitempty"`
	// ArchiveObject is the object-storage key of the mirrored artifact,
	// set when the archive accepted a copy of the generated file.
	ArchiveObject string `json:"-"`
}

// Terminal reports whether the document is in a terminal display state.
func (d *DocumentInstance) Terminal() bool {
	return d.Status == StatusReady || d.Status == StatusFinal
}

// Generated reports whether the document has a produced artifact. Both
// ready and final count, but only after an actual generation run: documents
// classified ready through the early-alignment override carry no artifact
// and do not satisfy prerequisites until generated.
func (d *DocumentInstance) Generated() bool {
	return d.Terminal() && d.GeneratedAt != nil
}

// Catalog returns the author-defined document catalog. The slice is
// rebuilt on every call so callers may not mutate shared state through it.
func Catalog() []DocumentDescriptor {
	return []DocumentDescriptor{
		{
			ID:         "executive-summary",
			Name:       "Executive Summary",
			Category:   "analysis",
			Sources:    []string{SourceSession, SourceQuickContract},
			EarlyReady: true,
		},
		{
			ID:         "negotiation-brief",
			Name:       "Negotiation Brief",
			Category:   "analysis",
			Sources:    []string{SourceSession, SourceQuickContract},
			EarlyReady: true,
		},
		{
			ID:       "clause-comparison",
			Name:     "Clause Comparison Report",
			Category: "analysis",
			Sources:  []string{SourceSession},
		},
		{
			ID:            "contract-draft",
			Name:          "Contract Draft",
			Category:      "drafting",
			Prerequisites: []string{"executive-summary"},
			Sources:       []string{SourceSession, SourceQuickContract},
		},
		{
			ID:            "settlement-summary",
			Name:          "Settlement Summary",
			Category:      "closing",
			Prerequisites: []string{"contract-draft"},
			Sources:       []string{SourceSession, SourceQuickContract},
			Summary:       true,
		},
		{
			ID:            "signature-pack",
			Name:          "Signature Pack",
			Category:      "closing",
			Prerequisites: []string{"contract-draft", "settlement-summary"},
			Sources:       []string{SourceSession, SourceQuickContract},
		},
	}
}

// FindDescriptor looks up a catalog entry by id.
func FindDescriptor(id string) *DocumentDescriptor {
	catalog := Catalog()
	for i := range catalog {
		if catalog[i].ID == id {
			return &catalog[i]
		}
	}
	return nil
}
