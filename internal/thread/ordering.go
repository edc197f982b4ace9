// ordering.go — pairwise order key for transcript messages.
package thread

import (
	"sort"

	"github.com/comppolicylab/pingpong-sub002/internal/model"
)

// messageLess is the pairwise comparator: messages sharing a run order by
// output_index (falling back to the metadata hint when both carry one),
// everything else orders by created_at. The tie-break is per pair, so it is
// applied directly inside the sort rather than precomputed as a global key.
func messageLess(a, b model.Message) bool {
	if a.RunID != "" && a.RunID == b.RunID {
		if a.OutputIndex != nil && b.OutputIndex != nil {
			if *a.OutputIndex != *b.OutputIndex {
				return *a.OutputIndex < *b.OutputIndex
			}
			return false
		}
		ha, aok := a.MetaOutputIndex()
		hb, bok := b.MetaOutputIndex()
		if aok && bok {
			if ha != hb {
				return ha < hb
			}
			return false
		}
	}
	return a.CreatedAt < b.CreatedAt
}

// sortMessages stable-sorts a copy of msgs by the pairwise comparator.
func sortMessages(msgs []model.Message) []model.Message {
	out := append([]model.Message{}, msgs...)
	sort.SliceStable(out, func(i, j int) bool {
		return messageLess(out[i], out[j])
	})
	return out
}

// maxOutputIndex returns the largest output_index (explicit or metadata
// hint) across all given message lists, and -1 when none is known.
func maxOutputIndex(lists ...[]model.Message) int {
	max := -1
	for _, list := range lists {
		for _, m := range list {
			if m.OutputIndex != nil && *m.OutputIndex > max {
				max = *m.OutputIndex
			}
			if h, ok := m.MetaOutputIndex(); ok && h > max {
				max = h
			}
		}
	}
	return max
}
