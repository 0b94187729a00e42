package model

import (
	"testing"
	"time"
)

func TestFindDescriptor(t *testing.T) {
	d := FindDescriptor("contract-draft")
	if d == nil {
		t.Fatal("Expected contract-draft in the catalog")
	}
	if d.Name != "Contract Draft" {
		t.Errorf("Unexpected name: %s", d.Name)
	}
	if len(d.Prerequisites) != 1 || d.Prerequisites[0] != "executive-summary" {
		t.Errorf("Unexpected prerequisites: %v", d.Prerequisites)
	}

	if FindDescriptor("nonsense") != nil {
		t.Error("Expected nil for unknown id")
	}
}

func TestAvailableFor(t *testing.T) {
	comparison := FindDescriptor("clause-comparison")
	if !comparison.AvailableFor(SourceSession) {
		t.Error("clause-comparison should be available for sessions")
	}
	if comparison.AvailableFor(SourceQuickContract) {
		t.Error("clause-comparison should not be available for quick contracts")
	}

	draft := FindDescriptor("contract-draft")
	if !draft.AvailableFor(SourceSession) || !draft.AvailableFor(SourceQuickContract) {
		t.Error("contract-draft should be available for both sources")
	}
}

func TestTerminal(t *testing.T) {
	tests := []struct {
		status   DocumentStatus
		terminal bool
	}{
		{StatusLocked, false},
		{StatusInProgress, false},
		{StatusGenerating, false},
		{StatusReady, true},
		{StatusFinal, true},
	}

	for _, tt := range tests {
		doc := DocumentInstance{Status: tt.status}
		if got := doc.Terminal(); got != tt.terminal {
			t.Errorf("Terminal() for %s = %v, want %v", tt.status, got, tt.terminal)
		}
	}
}

func TestGeneratedRequiresArtifact(t *testing.T) {
	// Ready through the early-alignment override: no artifact yet.
	doc := DocumentInstance{Status: StatusReady, Progress: 100}
	if doc.Generated() {
		t.Error("A ready document without an artifact must not count as generated")
	}

	now := time.Now()
	doc.GeneratedAt = &now
	if !doc.Generated() {
		t.Error("A ready document with an artifact counts as generated")
	}

	doc.Status = StatusGenerating
	if doc.Generated() {
		t.Error("A generating document never counts as generated")
	}
}

func TestCatalogIsolated(t *testing.T) {
	first := Catalog()
	first[0].Name = "mutated"

	second := Catalog()
	if second[0].Name == "mutated" {
		t.Error("Catalog must return a fresh slice on every call")
	}
}
