// Package chunk decodes the streamed response protocol: JSON frames with a
// type discriminator, one chunk per frame.
package chunk

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/comppolicylab/pingpong-sub002/internal/model"
)

// Type discriminates chunk variants.
type Type string

const (
	TypeMessageCreated       Type = "message_created"
	TypeMessageDelta         Type = "message_delta"
	TypeToolCallCreated      Type = "tool_call_created"
	TypeToolCallDelta        Type = "tool_call_delta"
	TypeReasoningStepCreated Type = "reasoning_step_created"
	TypeSummaryPartAdded     Type = "reasoning_step_summary_part_added"
	TypeSummaryTextDelta     Type = "reasoning_summary_text_delta"
	TypeReasoningCompleted   Type = "reasoning_step_completed"
	TypeDone                 Type = "done"
	TypeError                Type = "error"
	TypePresendError         Type = "presend_error"
	TypeRunActiveError       Type = "run_active_error"
)

// TextDelta is the incremental text payload of a content delta. A nil Value
// means no new text (annotation-only delta).
type TextDelta struct {
	Value       *string            `json:"value"`
	Annotations []model.Annotation `json:"annotations,omitempty"`
}

// ContentDelta is one incremental content item inside a message_delta.
type ContentDelta struct {
	Type      model.ContentType       `json:"type"`
	Text      *TextDelta              `json:"text,omitempty"`
	Logs      *model.LogsContent      `json:"logs,omitempty"`
	ImageFile *model.ImageFileContent `json:"image_file,omitempty"`
	ImageURL  *model.ImageURLContent  `json:"image_url,omitempty"`
}

// ToolCall is the payload of tool_call_created / tool_call_delta. Optional
// fields are pointers so a delta only overwrites what it supplies.
type ToolCall struct {
	Type        model.ContentType `json:"type"`
	StepID      string            `json:"step_id"`
	RunID       string            `json:"run_id,omitempty"`
	Status      string            `json:"status,omitempty"`
	Code        *string           `json:"code,omitempty"`
	Logs        *string           `json:"logs,omitempty"`
	Queries     []string          `json:"queries,omitempty"`
	Action      *string           `json:"action,omitempty"`
	ServerLabel *string           `json:"server_label,omitempty"`
	ToolName    *string           `json:"tool_name,omitempty"`
	Arguments   *string           `json:"arguments,omitempty"`
	Output      *string           `json:"output,omitempty"`
	Error       *string           `json:"error,omitempty"`
	Tools       []model.MCPTool   `json:"tools,omitempty"`
}

// ReasoningStep is the payload of reasoning_step_created.
type ReasoningStep struct {
	StepID string `json:"step_id"`
	RunID  string `json:"run_id,omitempty"`
	Status string `json:"status,omitempty"`
}

// SummaryPartAdded is the payload of reasoning_step_summary_part_added.
type SummaryPartAdded struct {
	StepID string            `json:"reasoning_step_id"`
	RunID  string            `json:"run_id,omitempty"`
	Part   model.SummaryPart `json:"summary_part"`
}

// SummaryTextDelta is the payload of reasoning_summary_text_delta.
type SummaryTextDelta struct {
	StepID string `json:"reasoning_step_id"`
	PartID string `json:"summary_part_id"`
	Delta  string `json:"delta"`
}

// ReasoningCompleted is the payload of reasoning_step_completed.
type ReasoningCompleted struct {
	StepID     string  `json:"reasoning_step_id"`
	Status     string  `json:"status"`
	ThoughtFor float64 `json:"thought_for,omitempty"`
}

// Chunk is the decoded union. Exactly the variant matching Type is set.
type Chunk struct {
	Type               Type
	Message            *model.Message
	ContentDeltas      []ContentDelta
	ToolCall           *ToolCall
	ReasoningStep      *ReasoningStep
	SummaryPart        *SummaryPartAdded
	SummaryTextDelta   *SummaryTextDelta
	ReasoningCompleted *ReasoningCompleted
	Detail             string
}

// ErrorDetail decodes from a plain string or a list of structured field
// errors; the list form is joined with newlines for display.
type ErrorDetail string

// UnmarshalJSON implements json.Unmarshaler.
func (d *ErrorDetail) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*d = ErrorDetail(s)
		return nil
	}
	var fields []struct {
		Loc []any  `json:"loc,omitempty"`
		Msg string `json:"msg"`
	}
	if err := json.Unmarshal(data, &fields); err == nil {
		lines := make([]string, 0, len(fields))
		for _, f := range fields {
			lines = append(lines, f.Msg)
		}
		*d = ErrorDetail(strings.Join(lines, "\n"))
		return nil
	}
	*d = ErrorDetail(string(data))
	return nil
}

// envelope is the raw wire frame before variant dispatch. Both message_delta
// and reasoning_summary_text_delta reuse the "delta" key with different
// shapes, so it stays raw until the type is known.
type envelope struct {
	Type            Type            `json:"type"`
	Message         *model.Message  `json:"message,omitempty"`
	Delta           json.RawMessage `json:"delta,omitempty"`
	ToolCall        *ToolCall       `json:"tool_call,omitempty"`
	ReasoningStep   *ReasoningStep  `json:"reasoning_step,omitempty"`
	SummaryPart     json.RawMessage `json:"summary_part,omitempty"`
	ReasoningStepID string          `json:"reasoning_step_id,omitempty"`
	SummaryPartID   string          `json:"summary_part_id,omitempty"`
	RunID           string          `json:"run_id,omitempty"`
	Status          string          `json:"status,omitempty"`
	ThoughtFor      float64         `json:"thought_for,omitempty"`
	Detail          ErrorDetail     `json:"detail,omitempty"`
}

// Decode parses one wire frame into a Chunk.
func Decode(data []byte) (Chunk, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Chunk{}, fmt.Errorf("chunk: decode frame: %w", err)
	}
	c := Chunk{Type: env.Type}

	switch env.Type {
	case TypeMessageCreated:
		c.Message = env.Message

	case TypeMessageDelta:
		var body struct {
			Content []ContentDelta `json:"content"`
		}
		if len(env.Delta) > 0 {
			if err := json.Unmarshal(env.Delta, &body); err != nil {
				return Chunk{}, fmt.Errorf("chunk: decode message delta: %w", err)
			}
		}
		c.ContentDeltas = body.Content

	case TypeToolCallCreated:
		c.ToolCall = env.ToolCall

	case TypeToolCallDelta:
		c.ToolCall = env.ToolCall
		if c.ToolCall == nil && len(env.Delta) > 0 {
			var tc ToolCall
			if err := json.Unmarshal(env.Delta, &tc); err != nil {
				return Chunk{}, fmt.Errorf("chunk: decode tool call delta: %w", err)
			}
			c.ToolCall = &tc
		}

	case TypeReasoningStepCreated:
		c.ReasoningStep = env.ReasoningStep

	case TypeSummaryPartAdded:
		var part model.SummaryPart
		if len(env.SummaryPart) > 0 {
			if err := json.Unmarshal(env.SummaryPart, &part); err != nil {
				return Chunk{}, fmt.Errorf("chunk: decode summary part: %w", err)
			}
		}
		c.SummaryPart = &SummaryPartAdded{
			StepID: env.ReasoningStepID,
			RunID:  env.RunID,
			Part:   part,
		}

	case TypeSummaryTextDelta:
		var text string
		if len(env.Delta) > 0 {
			if err := json.Unmarshal(env.Delta, &text); err != nil {
				return Chunk{}, fmt.Errorf("chunk: decode summary text delta: %w", err)
			}
		}
		c.SummaryTextDelta = &SummaryTextDelta{
			StepID: env.ReasoningStepID,
			PartID: env.SummaryPartID,
			Delta:  text,
		}

	case TypeReasoningCompleted:
		c.ReasoningCompleted = &ReasoningCompleted{
			StepID:     env.ReasoningStepID,
			Status:     env.Status,
			ThoughtFor: env.ThoughtFor,
		}

	case TypeDone, TypeError, TypePresendError, TypeRunActiveError:
		c.Detail = string(env.Detail)
	}

	return c, nil
}

// Stream is an ordered sequence of chunks. Recv returns io.EOF when the
// stream is exhausted.
type Stream interface {
	Recv() (Chunk, error)
	Close() error
}
