package chunk

import (
	"testing"

	"github.com/comppolicylab/pingpong-sub002/internal/model"
)

func TestDecodeMessageCreated(t *testing.T) {
	c, err := Decode([]byte(`{"type":"message_created","message":{"id":"m1","role":"assistant","content":[],"created_at":1700000000,"run_id":"run-1","output_index":2}}`))
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if c.Type != TypeMessageCreated || c.Message == nil {
		t.Fatalf("chunk = %+v, want message_created with message", c)
	}
	if c.Message.ID != "m1" || c.Message.RunID != "run-1" {
		t.Fatalf("message = %+v", c.Message)
	}
	if c.Message.OutputIndex == nil || *c.Message.OutputIndex != 2 {
		t.Fatalf("output_index = %v, want 2", c.Message.OutputIndex)
	}
}

func TestDecodeMessageDelta(t *testing.T) {
	c, err := Decode([]byte(`{"type":"message_delta","delta":{"content":[{"type":"text","text":{"value":"hi","annotations":[{"type":"file_citation","file_id":"f1"}]}},{"type":"code_output_logs","logs":{"logs":"out"}}]}}`))
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if len(c.ContentDeltas) != 2 {
		t.Fatalf("len(deltas) = %d, want 2", len(c.ContentDeltas))
	}
	d := c.ContentDeltas[0]
	if d.Type != model.ContentText || d.Text == nil || d.Text.Value == nil || *d.Text.Value != "hi" {
		t.Fatalf("deltas[0] = %+v", d)
	}
	if len(d.Text.Annotations) != 1 || d.Text.Annotations[0].FileID != "f1" {
		t.Fatalf("annotations = %+v", d.Text.Annotations)
	}
	if c.ContentDeltas[1].Logs == nil || c.ContentDeltas[1].Logs.Logs != "out" {
		t.Fatalf("deltas[1] = %+v", c.ContentDeltas[1])
	}
}

func TestDecodeMessageDeltaNullValue(t *testing.T) {
	// Annotation-only delta: value is null, not "".
	c, err := Decode([]byte(`{"type":"message_delta","delta":{"content":[{"type":"text","text":{"value":null}}]}}`))
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if c.ContentDeltas[0].Text.Value != nil {
		t.Fatalf("value = %v, want nil", *c.ContentDeltas[0].Text.Value)
	}
}

func TestDecodeToolCallCreated(t *testing.T) {
	c, err := Decode([]byte(`{"type":"tool_call_created","tool_call":{"type":"mcp_server_call","step_id":"s1","run_id":"run-1","server_label":"docs","tool_name":"search","status":"in_progress"}}`))
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	tc := c.ToolCall
	if tc == nil || tc.Type != model.ContentMCPServerCall || tc.StepID != "s1" {
		t.Fatalf("tool_call = %+v", tc)
	}
	if tc.ServerLabel == nil || *tc.ServerLabel != "docs" {
		t.Fatalf("server_label = %v, want docs", tc.ServerLabel)
	}
	if tc.Output != nil {
		t.Fatalf("output = %v, want nil for an absent field", tc.Output)
	}
}

func TestDecodeToolCallDeltaUnderDeltaKey(t *testing.T) {
	c, err := Decode([]byte(`{"type":"tool_call_delta","delta":{"type":"code","step_id":"s1","code":"print(4)"}}`))
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if c.ToolCall == nil || c.ToolCall.Code == nil || *c.ToolCall.Code != "print(4)" {
		t.Fatalf("tool_call = %+v, want delta-keyed payload decoded", c.ToolCall)
	}
}

func TestDecodeReasoningChunks(t *testing.T) {
	c, err := Decode([]byte(`{"type":"reasoning_step_created","reasoning_step":{"step_id":"r1","run_id":"run-1","status":"in_progress"}}`))
	if err != nil || c.ReasoningStep == nil || c.ReasoningStep.StepID != "r1" {
		t.Fatalf("reasoning_step_created = %+v, %v", c, err)
	}

	c, err = Decode([]byte(`{"type":"reasoning_step_summary_part_added","reasoning_step_id":"r1","run_id":"run-1","summary_part":{"id":"p1","part_index":0,"summary_text":"t"}}`))
	if err != nil || c.SummaryPart == nil {
		t.Fatalf("summary_part_added = %+v, %v", c, err)
	}
	if c.SummaryPart.StepID != "r1" || c.SummaryPart.Part.ID != "p1" {
		t.Fatalf("summary part = %+v", c.SummaryPart)
	}

	// Here "delta" is a bare string, not an object.
	c, err = Decode([]byte(`{"type":"reasoning_summary_text_delta","reasoning_step_id":"r1","summary_part_id":"p1","delta":"more text"}`))
	if err != nil || c.SummaryTextDelta == nil {
		t.Fatalf("summary_text_delta = %+v, %v", c, err)
	}
	if c.SummaryTextDelta.Delta != "more text" || c.SummaryTextDelta.PartID != "p1" {
		t.Fatalf("delta = %+v", c.SummaryTextDelta)
	}

	c, err = Decode([]byte(`{"type":"reasoning_step_completed","reasoning_step_id":"r1","status":"completed","thought_for":3.2}`))
	if err != nil || c.ReasoningCompleted == nil {
		t.Fatalf("reasoning_step_completed = %+v, %v", c, err)
	}
	if c.ReasoningCompleted.Status != "completed" || c.ReasoningCompleted.ThoughtFor != 3.2 {
		t.Fatalf("completed = %+v", c.ReasoningCompleted)
	}
}

func TestDecodeTerminalChunks(t *testing.T) {
	c, err := Decode([]byte(`{"type":"done"}`))
	if err != nil || c.Type != TypeDone {
		t.Fatalf("done = %+v, %v", c, err)
	}

	c, err = Decode([]byte(`{"type":"error","detail":"boom"}`))
	if err != nil || c.Detail != "boom" {
		t.Fatalf("error = %+v, %v", c, err)
	}
}

func TestErrorDetailStructuredList(t *testing.T) {
	c, err := Decode([]byte(`{"type":"presend_error","detail":[{"loc":["body","text"],"msg":"text too long"},{"loc":["body"],"msg":"invalid payload"}]}`))
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	want := "text too long\ninvalid payload"
	if c.Detail != want {
		t.Fatalf("detail = %q, want %q", c.Detail, want)
	}
}

func TestDecodeUnknownTypePassesThrough(t *testing.T) {
	c, err := Decode([]byte(`{"type":"heartbeat"}`))
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if c.Type != Type("heartbeat") {
		t.Fatalf("type = %q, want heartbeat", c.Type)
	}
}

func TestDecodeMalformedFrame(t *testing.T) {
	if _, err := Decode([]byte(`{"type":`)); err == nil {
		t.Fatalf("Decode accepted a malformed frame")
	}
}
