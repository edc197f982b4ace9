// handlers.go — tool/reasoning placeholder upserts.
//
// Every sub-event is keyed by (step_id, run_id) and follows the same
// search-then-create policy: scan the known messages backward for the
// placeholder and patch it, or attach a fresh placeholder to the run's
// latest assistant message. A run may interleave sub-event chunks with
// ordinary text deltas, and a tool call must never split into two cards.
package thread

import (
	"github.com/google/uuid"

	"github.com/comppolicylab/pingpong-sub002/internal/chunk"
	"github.com/comppolicylab/pingpong-sub002/internal/model"
	"github.com/comppolicylab/pingpong-sub002/pkg/logger"
)

// findStepLocked scans backward through all known messages for an assistant
// message that shares runID (or has none recorded) and already holds a
// content item of the given kind with stepID. An empty runID matches any
// run. Returns the message by value; callers clone content before writing.
func (m *Manager) findStepLocked(runID, stepID string, kind model.ContentType) (msgRef, model.Message, bool) {
	lists := m.messageListsLocked()
	for li := len(lists) - 1; li >= 0; li-- {
		list := lists[li]
		for i := len(*list) - 1; i >= 0; i-- {
			msg := (*list)[i]
			if msg.Role != model.RoleAssistant {
				continue
			}
			if runID != "" && msg.RunID != "" && msg.RunID != runID {
				continue
			}
			for _, item := range msg.Content {
				if item.Type == kind && item.StepID() == stepID {
					return msgRef{list: list, idx: i}, msg, true
				}
			}
		}
	}
	return msgRef{}, model.Message{}, false
}

// attachPlaceholderLocked appends item to the most recent assistant message
// of the run, synthesizing an empty assistant message when the run has none
// yet.
func (m *Manager) attachPlaceholderLocked(runID string, item model.ContentItem) {
	lists := m.messageListsLocked()
	for li := len(lists) - 1; li >= 0; li-- {
		list := lists[li]
		for i := len(*list) - 1; i >= 0; i-- {
			msg := (*list)[i]
			if msg.Role != model.RoleAssistant {
				continue
			}
			if runID != "" && msg.RunID != "" && msg.RunID != runID {
				continue
			}
			msg.Content = append(append([]model.ContentItem{}, msg.Content...), item)
			m.setMessageLocked(msgRef{list: list, idx: i}, msg)
			return
		}
	}
	m.appendStreamedLocked(model.Message{
		ID:        "synthetic-" + uuid.NewString(),
		Role:      model.RoleAssistant,
		Content:   []model.ContentItem{item},
		CreatedAt: nowSeconds(),
		RunID:     runID,
	})
}

// replaceItemLocked writes a patched content item back at position idx of
// the message at ref, cloning the content slice.
func (m *Manager) replaceItemLocked(ref msgRef, msg model.Message, idx int, item model.ContentItem) {
	msg.Content = append([]model.ContentItem{}, msg.Content...)
	msg.Content[idx] = item
	m.setMessageLocked(ref, msg)
}

// itemIndex locates the (kind, stepID) item inside msg.
func itemIndex(msg model.Message, kind model.ContentType, stepID string) int {
	for i, item := range msg.Content {
		if item.Type == kind && item.StepID() == stepID {
			return i
		}
	}
	return -1
}

// ========================================
// Tool calls
// ========================================

// applyToolCallLocked upserts a tool_call_created / tool_call_delta chunk.
func (m *Manager) applyToolCallLocked(tc *chunk.ToolCall) {
	if tc == nil || tc.StepID == "" {
		return
	}
	ref, msg, ok := m.findStepLocked(tc.RunID, tc.StepID, tc.Type)
	if !ok {
		m.attachPlaceholderLocked(tc.RunID, toolCallItem(tc))
		return
	}
	idx := itemIndex(msg, tc.Type, tc.StepID)
	if idx < 0 {
		return
	}
	m.replaceItemLocked(ref, msg, idx, upsertToolFields(msg.Content[idx], tc))
}

// toolCallItem builds a fresh placeholder item from a tool-call payload.
func toolCallItem(tc *chunk.ToolCall) model.ContentItem {
	return upsertToolFields(model.ContentItem{Type: tc.Type}, tc)
}

// upsertToolFields applies field-level upserts: status always overwrites,
// other fields only when the delta supplies a value, so partial chunks
// never erase previously known fields. The input item is not modified.
func upsertToolFields(item model.ContentItem, tc *chunk.ToolCall) model.ContentItem {
	out := model.ContentItem{Type: item.Type}
	switch item.Type {
	case model.ContentCode:
		c := model.CodeContent{StepID: tc.StepID}
		if item.Code != nil {
			c = *item.Code
		}
		c.StepID = tc.StepID
		if tc.Status != "" {
			c.Status = tc.Status
		}
		if tc.Code != nil {
			c.Code = *tc.Code
		}
		out.Code = &c

	case model.ContentFileSearchCall:
		c := model.FileSearchContent{StepID: tc.StepID}
		if item.FileSearch != nil {
			c = *item.FileSearch
			c.Queries = append([]string{}, item.FileSearch.Queries...)
		}
		c.StepID = tc.StepID
		if tc.Status != "" {
			c.Status = tc.Status
		}
		if len(tc.Queries) > 0 {
			c.Queries = append([]string{}, tc.Queries...)
		}
		out.FileSearch = &c

	case model.ContentWebSearchCall:
		c := model.WebSearchContent{StepID: tc.StepID}
		if item.WebSearch != nil {
			c = *item.WebSearch
		}
		c.StepID = tc.StepID
		if tc.Status != "" {
			c.Status = tc.Status
		}
		if tc.Action != nil {
			c.Action = *tc.Action
		}
		out.WebSearch = &c

	case model.ContentMCPServerCall:
		c := model.MCPCallContent{StepID: tc.StepID}
		if item.MCPCall != nil {
			c = *item.MCPCall
		}
		c.StepID = tc.StepID
		if tc.Status != "" {
			c.Status = tc.Status
		}
		if tc.ServerLabel != nil {
			c.ServerLabel = *tc.ServerLabel
		}
		if tc.ToolName != nil {
			c.ToolName = *tc.ToolName
		}
		if tc.Arguments != nil {
			c.Arguments = *tc.Arguments
		}
		if tc.Output != nil {
			c.Output = *tc.Output
		}
		if tc.Error != nil {
			c.Error = *tc.Error
		}
		out.MCPCall = &c

	case model.ContentMCPListToolsCall:
		c := model.MCPListToolsContent{StepID: tc.StepID}
		if item.MCPListTools != nil {
			c = *item.MCPListTools
			c.Tools = append([]model.MCPTool{}, item.MCPListTools.Tools...)
		}
		c.StepID = tc.StepID
		if tc.Status != "" {
			c.Status = tc.Status
		}
		if tc.ServerLabel != nil {
			c.ServerLabel = *tc.ServerLabel
		}
		if tc.Error != nil {
			c.Error = *tc.Error
		}
		if len(tc.Tools) > 0 {
			c.Tools = append([]model.MCPTool{}, tc.Tools...)
		}
		out.MCPListTools = &c

	default:
		return item
	}
	return out
}

// ========================================
// Reasoning
// ========================================

// applyReasoningCreatedLocked attaches a reasoning placeholder for a
// reasoning_step_created chunk.
func (m *Manager) applyReasoningCreatedLocked(rs *chunk.ReasoningStep) {
	if rs == nil || rs.StepID == "" {
		return
	}
	ref, msg, ok := m.findStepLocked(rs.RunID, rs.StepID, model.ContentReasoning)
	if !ok {
		m.attachPlaceholderLocked(rs.RunID, model.ContentItem{
			Type: model.ContentReasoning,
			Reasoning: &model.ReasoningContent{
				StepID:  rs.StepID,
				Status:  rs.Status,
				Summary: []model.SummaryPart{},
			},
		})
		return
	}
	idx := itemIndex(msg, model.ContentReasoning, rs.StepID)
	if idx < 0 || rs.Status == "" {
		return
	}
	r := *msg.Content[idx].Reasoning
	r.Status = rs.Status
	m.replaceItemLocked(ref, msg, idx, model.ContentItem{Type: model.ContentReasoning, Reasoning: &r})
}

// applySummaryPartLocked appends a new summary part, creating the step
// placeholder first when the part arrives ahead of its step.
func (m *Manager) applySummaryPartLocked(sp *chunk.SummaryPartAdded) {
	if sp == nil || sp.StepID == "" {
		return
	}
	ref, msg, ok := m.findStepLocked(sp.RunID, sp.StepID, model.ContentReasoning)
	if !ok {
		m.attachPlaceholderLocked(sp.RunID, model.ContentItem{
			Type: model.ContentReasoning,
			Reasoning: &model.ReasoningContent{
				StepID:  sp.StepID,
				Summary: []model.SummaryPart{sp.Part},
			},
		})
		return
	}
	idx := itemIndex(msg, model.ContentReasoning, sp.StepID)
	if idx < 0 {
		return
	}
	r := *msg.Content[idx].Reasoning
	r.Summary = append([]model.SummaryPart{}, r.Summary...)
	replaced := false
	for i, part := range r.Summary {
		if part.ID == sp.Part.ID {
			r.Summary[i] = sp.Part
			replaced = true
			break
		}
	}
	if !replaced {
		r.Summary = append(r.Summary, sp.Part)
	}
	m.replaceItemLocked(ref, msg, idx, model.ContentItem{Type: model.ContentReasoning, Reasoning: &r})
}

// applySummaryTextDeltaLocked appends delta text to an existing summary
// part. A delta for an unknown step or part is a protocol violation: it is
// logged and dropped so one cosmetic update cannot abort the stream.
func (m *Manager) applySummaryTextDeltaLocked(d *chunk.SummaryTextDelta) {
	if d == nil || d.StepID == "" {
		return
	}
	ref, msg, ok := m.findStepLocked("", d.StepID, model.ContentReasoning)
	if !ok {
		logger.Warn("summary text delta for unknown reasoning step, dropped",
			logger.FieldThreadID, m.threadID,
			logger.FieldStepID, d.StepID,
		)
		return
	}
	idx := itemIndex(msg, model.ContentReasoning, d.StepID)
	if idx < 0 {
		return
	}
	r := *msg.Content[idx].Reasoning
	r.Summary = append([]model.SummaryPart{}, r.Summary...)
	for i, part := range r.Summary {
		if part.ID == d.PartID {
			r.Summary[i].SummaryText += d.Delta
			m.replaceItemLocked(ref, msg, idx, model.ContentItem{Type: model.ContentReasoning, Reasoning: &r})
			return
		}
	}
	logger.Warn("summary text delta for unknown summary part, dropped",
		logger.FieldThreadID, m.threadID,
		logger.FieldStepID, d.StepID,
		"summary_part_id", d.PartID,
	)
}

// applyReasoningCompletedLocked sets terminal status and thought_for.
func (m *Manager) applyReasoningCompletedLocked(rc *chunk.ReasoningCompleted) {
	if rc == nil || rc.StepID == "" {
		return
	}
	ref, msg, ok := m.findStepLocked("", rc.StepID, model.ContentReasoning)
	if !ok {
		logger.Warn("completion for unknown reasoning step, dropped",
			logger.FieldThreadID, m.threadID,
			logger.FieldStepID, rc.StepID,
		)
		return
	}
	idx := itemIndex(msg, model.ContentReasoning, rc.StepID)
	if idx < 0 {
		return
	}
	r := *msg.Content[idx].Reasoning
	r.Summary = append([]model.SummaryPart{}, r.Summary...)
	r.Status = rc.Status
	r.ThoughtFor = rc.ThoughtFor
	m.replaceItemLocked(ref, msg, idx, model.ContentItem{Type: model.ContentReasoning, Reasoning: &r})
}
