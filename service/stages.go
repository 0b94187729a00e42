package service

import (
	"fmt"
	"math"

	"github.com/SpikeIreland/clarence-sub005/model"
)

// Stage group identifiers.
const (
	StageGroupSetup       = "setup"
	StageGroupNegotiation = "negotiation"
)

// stageCatalog is the static ordered pipeline catalog. Order matters: the
// aggregator derives percentages from positions in these slices.
var stageCatalog = map[string][]model.Stage{
	StageGroupSetup: {
		{ID: "create", Name: "Create Contract"},
		{ID: "assess", Name: "Assess Terms"},
		{ID: "prep", Name: "Contract Prep"},
		{ID: "invite", Name: "Invite Providers"},
	},
	StageGroupNegotiation: {
		{ID: "align", Name: "Align Positions"},
		{ID: "bid", Name: "Exchange Bids"},
		{ID: "review", Name: "Review Draft"},
		{ID: "close", Name: "Close Out"},
	},
}

// Stages returns the ordered stage list for a group, or nil for an unknown
// group id.
func Stages(groupID string) []model.Stage {
	return stageCatalog[groupID]
}

// ValidStage reports whether the stage id exists in the given group.
func ValidStage(groupID, stageID string) bool {
	for _, s := range stageCatalog[groupID] {
		if s.ID == stageID {
			return true
		}
	}
	return false
}

// StagePercent computes the navigational completion percentage for a stage
// group given the current stage. A current stage that is not in the
// sequence means the stage catalog and its callers have drifted apart; that
// is a programmer error and panics rather than returning a silent 0.
func StagePercent(sequence []model.Stage, currentStageID string) int {
	if len(sequence) == 0 {
		panic("stages: empty stage sequence")
	}
	for i, s := range sequence {
		if s.ID == currentStageID {
			return int(math.Round(100 * float64(i+1) / float64(len(sequence))))
		}
	}
	panic(fmt.Sprintf("stages: stage %q not in sequence", currentStageID))
}

// GroupPercent is StagePercent over a cataloged group.
func GroupPercent(groupID, currentStageID string) int {
	seq, ok := stageCatalog[groupID]
	if !ok {
		panic(fmt.Sprintf("stages: unknown stage group %q", groupID))
	}
	return StagePercent(seq, currentStageID)
}
