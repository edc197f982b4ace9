package thread

import (
	"testing"

	"github.com/comppolicylab/pingpong-sub002/internal/chunk"
	"github.com/comppolicylab/pingpong-sub002/internal/model"
)

func newTestManager() *Manager {
	return NewManager("th-1", &fakeBackend{}, Options{})
}

func onlyAssistant(t *testing.T, m *Manager) model.Message {
	t.Helper()
	if len(m.confirmed.Messages) != 1 {
		t.Fatalf("len(confirmed.Messages) = %d, want 1", len(m.confirmed.Messages))
	}
	return m.confirmed.Messages[0]
}

func TestToolCallCreatedAttachesToRunMessage(t *testing.T) {
	m := newTestManager()
	m.confirmed.Messages = []model.Message{assistantMsg("m1", "run-1", 100)}

	m.applyToolCallLocked(&chunk.ToolCall{
		Type:   model.ContentCode,
		StepID: "step-1",
		RunID:  "run-1",
		Status: "in_progress",
		Code:   strp("print(2+2)"),
	})

	msg := onlyAssistant(t, m)
	if len(msg.Content) != 1 {
		t.Fatalf("len(content) = %d, want 1", len(msg.Content))
	}
	code := msg.Content[0].Code
	if code == nil || code.StepID != "step-1" || code.Code != "print(2+2)" {
		t.Fatalf("code item = %+v, want step-1 placeholder", msg.Content[0])
	}
}

func TestToolCallDeltaUpsertsSingleItem(t *testing.T) {
	m := newTestManager()
	m.confirmed.Messages = []model.Message{assistantMsg("m1", "run-1", 100)}

	m.applyToolCallLocked(&chunk.ToolCall{
		Type: model.ContentCode, StepID: "step-1", RunID: "run-1",
		Status: "in_progress", Code: strp("import math"),
	})
	// Delta carries only a status; the code must survive.
	m.applyToolCallLocked(&chunk.ToolCall{
		Type: model.ContentCode, StepID: "step-1", RunID: "run-1",
		Status: "completed",
	})

	msg := onlyAssistant(t, m)
	if len(msg.Content) != 1 {
		t.Fatalf("len(content) = %d, want 1: a tool call must never split into two items", len(msg.Content))
	}
	code := msg.Content[0].Code
	if code.Code != "import math" {
		t.Fatalf("code = %q, want %q (partial delta erased a field)", code.Code, "import math")
	}
	if code.Status != "completed" {
		t.Fatalf("status = %q, want %q", code.Status, "completed")
	}
}

func TestToolCallSynthesizesAssistantMessage(t *testing.T) {
	m := newTestManager()

	m.applyToolCallLocked(&chunk.ToolCall{
		Type: model.ContentWebSearchCall, StepID: "step-9", RunID: "run-2",
		Status: "searching",
	})

	msg := onlyAssistant(t, m)
	if msg.Role != model.RoleAssistant || msg.RunID != "run-2" {
		t.Fatalf("synthesized message = %+v, want assistant bound to run-2", msg)
	}
	if msg.Content[0].WebSearch == nil || msg.Content[0].WebSearch.StepID != "step-9" {
		t.Fatalf("content = %+v, want web search placeholder", msg.Content)
	}
}

func TestMCPFieldUpsertAccumulates(t *testing.T) {
	m := newTestManager()
	m.confirmed.Messages = []model.Message{assistantMsg("m1", "run-1", 100)}

	m.applyToolCallLocked(&chunk.ToolCall{
		Type: model.ContentMCPServerCall, StepID: "s1", RunID: "run-1",
		ServerLabel: strp("docs"), ToolName: strp("search"), Status: "in_progress",
	})
	m.applyToolCallLocked(&chunk.ToolCall{
		Type: model.ContentMCPServerCall, StepID: "s1", RunID: "run-1",
		Arguments: strp(`{"q":"pricing"}`),
	})
	m.applyToolCallLocked(&chunk.ToolCall{
		Type: model.ContentMCPServerCall, StepID: "s1", RunID: "run-1",
		Output: strp("3 results"), Status: "completed",
	})

	msg := onlyAssistant(t, m)
	mcp := msg.Content[0].MCPCall
	if mcp == nil {
		t.Fatalf("content = %+v, want mcp item", msg.Content)
	}
	if mcp.ServerLabel != "docs" || mcp.ToolName != "search" {
		t.Fatalf("label/tool = %q/%q, earlier fields must survive later deltas", mcp.ServerLabel, mcp.ToolName)
	}
	if mcp.Arguments != `{"q":"pricing"}` || mcp.Output != "3 results" || mcp.Status != "completed" {
		t.Fatalf("mcp = %+v, want accumulated fields", mcp)
	}
}

func TestFileSearchQueriesOverwriteOnlyWhenSupplied(t *testing.T) {
	m := newTestManager()
	m.confirmed.Messages = []model.Message{assistantMsg("m1", "run-1", 100)}

	m.applyToolCallLocked(&chunk.ToolCall{
		Type: model.ContentFileSearchCall, StepID: "fs1", RunID: "run-1",
		Queries: []string{"q1", "q2"},
	})
	m.applyToolCallLocked(&chunk.ToolCall{
		Type: model.ContentFileSearchCall, StepID: "fs1", RunID: "run-1",
		Status: "completed",
	})

	fs := onlyAssistant(t, m).Content[0].FileSearch
	if len(fs.Queries) != 2 {
		t.Fatalf("queries = %v, want the original two", fs.Queries)
	}
	if fs.Status != "completed" {
		t.Fatalf("status = %q, want %q", fs.Status, "completed")
	}
}

func TestReasoningLifecycle(t *testing.T) {
	m := newTestManager()
	m.confirmed.Messages = []model.Message{assistantMsg("m1", "run-1", 100)}

	m.applyReasoningCreatedLocked(&chunk.ReasoningStep{StepID: "r1", RunID: "run-1", Status: "in_progress"})
	m.applySummaryPartLocked(&chunk.SummaryPartAdded{
		StepID: "r1", RunID: "run-1",
		Part: model.SummaryPart{ID: "p1", PartIndex: 0, SummaryText: "Thinking"},
	})
	m.applySummaryTextDeltaLocked(&chunk.SummaryTextDelta{StepID: "r1", PartID: "p1", Delta: " about it"})
	m.applyReasoningCompletedLocked(&chunk.ReasoningCompleted{StepID: "r1", Status: "completed", ThoughtFor: 2.5})

	msg := onlyAssistant(t, m)
	if len(msg.Content) != 1 {
		t.Fatalf("len(content) = %d, want 1", len(msg.Content))
	}
	r := msg.Content[0].Reasoning
	if r == nil || r.StepID != "r1" {
		t.Fatalf("content = %+v, want reasoning item", msg.Content)
	}
	if len(r.Summary) != 1 || r.Summary[0].SummaryText != "Thinking about it" {
		t.Fatalf("summary = %+v, want one accumulated part", r.Summary)
	}
	if r.Status != "completed" || r.ThoughtFor != 2.5 {
		t.Fatalf("status/thought_for = %q/%v, want completed/2.5", r.Status, r.ThoughtFor)
	}
}

func TestSummaryPartAheadOfStepCreatesPlaceholder(t *testing.T) {
	m := newTestManager()
	m.confirmed.Messages = []model.Message{assistantMsg("m1", "run-1", 100)}

	m.applySummaryPartLocked(&chunk.SummaryPartAdded{
		StepID: "r9", RunID: "run-1",
		Part: model.SummaryPart{ID: "p1", SummaryText: "early"},
	})

	r := onlyAssistant(t, m).Content[0].Reasoning
	if r == nil || r.StepID != "r9" || len(r.Summary) != 1 {
		t.Fatalf("reasoning = %+v, want placeholder created from the part", r)
	}
}

func TestSummaryTextDeltaUnknownPartDropped(t *testing.T) {
	m := newTestManager()
	m.confirmed.Messages = []model.Message{assistantMsg("m1", "run-1", 100)}
	m.applyReasoningCreatedLocked(&chunk.ReasoningStep{StepID: "r1", RunID: "run-1"})

	// Must not panic and must not invent a part.
	m.applySummaryTextDeltaLocked(&chunk.SummaryTextDelta{StepID: "r1", PartID: "nope", Delta: "x"})

	r := onlyAssistant(t, m).Content[0].Reasoning
	if len(r.Summary) != 0 {
		t.Fatalf("summary = %+v, want empty", r.Summary)
	}
}

func TestFindStepScansOptimisticLast(t *testing.T) {
	m := newTestManager()
	m.confirmed.Messages = []model.Message{assistantMsg("m1", "run-1", 100,
		model.ContentItem{Type: model.ContentCode, Code: &model.CodeContent{StepID: "s1"}},
	)}

	_, msg, ok := m.findStepLocked("run-1", "s1", model.ContentCode)
	if !ok || msg.ID != "m1" {
		t.Fatalf("findStepLocked = (%v, %v), want m1", msg.ID, ok)
	}
	if _, _, ok := m.findStepLocked("run-1", "missing", model.ContentCode); ok {
		t.Fatalf("findStepLocked found a step that does not exist")
	}
	// A mismatched run never matches even with the right step id.
	if _, _, ok := m.findStepLocked("run-2", "s1", model.ContentCode); ok {
		t.Fatalf("findStepLocked matched across distinct run ids")
	}
}
