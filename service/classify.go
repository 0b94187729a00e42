package service

import (
	"github.com/SpikeIreland/clarence-sub005/model"
)

// Alignment score at or above which allow-listed documents become ready
// without an explicit generation run.
const earlyReadyAlignment = 50

// PrerequisitesMet reports whether every prerequisite of the descriptor is
// present in the completed set. An empty prerequisite list is vacuously
// satisfied. A document counts as completed once it has been generated at
// least once (status ready or final).
func PrerequisitesMet(desc *model.DocumentDescriptor, completed map[string]bool) bool {
	for _, id := range desc.Prerequisites {
		if !completed[id] {
			return false
		}
	}
	return true
}

// Classify derives the initial status and progress for a document from its
// descriptor, the negotiation context and the set of completed document ids.
// Only locked, in_progress and ready are reachable here; generating and
// final are set by the lifecycle controller.
func Classify(desc *model.DocumentDescriptor, nctx *model.NegotiationContext, completed map[string]bool) (model.DocumentStatus, int) {
	if !PrerequisitesMet(desc, completed) {
		// Committed negotiations re-open the settlement summary so it can
		// be drafted before every prerequisite has been generated.
		if desc.Summary && nctx.Committed {
			return model.StatusInProgress, 0
		}
		return model.StatusLocked, 0
	}

	if desc.EarlyReady && nctx.Alignment >= earlyReadyAlignment {
		return model.StatusReady, 100
	}

	return model.StatusInProgress, 0
}

// BuildDocuments produces the document instance set for a negotiation,
// filtered to descriptors available for the context's source and classified
// against the completed set.
func BuildDocuments(nctx *model.NegotiationContext, completed map[string]bool) []*model.DocumentInstance {
	catalog := model.Catalog()
	docs := make([]*model.DocumentInstance, 0, len(catalog))
	for i := range catalog {
		desc := &catalog[i]
		if !desc.AvailableFor(nctx.Source) {
			continue
		}
		status, progress := Classify(desc, nctx, completed)
		docs = append(docs, &model.DocumentInstance{
			ID:            desc.ID,
			Name:          desc.Name,
			Category:      desc.Category,
			Prerequisites: desc.Prerequisites,
			Status:        status,
			Progress:      progress,
		})
	}
	return docs
}

// CompletedIDs collects the ids of documents whose prerequisites downstream
// documents may rely on.
func CompletedIDs(docs []*model.DocumentInstance) map[string]bool {
	completed := make(map[string]bool, len(docs))
	for _, d := range docs {
		if d.Generated() {
			completed[d.ID] = true
		}
	}
	return completed
}

// RefreshLocks re-evaluates locked documents against the current completed
// set and promotes those whose prerequisites are now satisfied. Documents
// that already left the locked state are never downgraded.
func RefreshLocks(docs []*model.DocumentInstance, nctx *model.NegotiationContext) {
	completed := CompletedIDs(docs)
	for _, d := range docs {
		if d.Status != model.StatusLocked {
			continue
		}
		desc := model.FindDescriptor(d.ID)
		if desc == nil {
			continue
		}
		status, progress := Classify(desc, nctx, completed)
		if status != model.StatusLocked {
			d.Status = status
			d.Progress = progress
		}
	}
}
