// Package model defines the transcript data model shared by the chunk
// decoder, the reconciliation engine and the backend client.
package model

import "encoding/json"

// Role of a message author.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// RunStatus is the lifecycle status of one generation run.
type RunStatus string

const (
	RunPending    RunStatus = "pending"
	RunInProgress RunStatus = "in_progress"
	RunIncomplete RunStatus = "incomplete"
	RunCompleted  RunStatus = "completed"
	RunFailed     RunStatus = "failed"
	RunCancelled  RunStatus = "cancelled"
	RunExpired    RunStatus = "expired"
)

// Terminal reports whether no further chunks will arrive for the run.
func (s RunStatus) Terminal() bool {
	switch s {
	case RunCompleted, RunFailed, RunCancelled, RunExpired:
		return true
	}
	return false
}

// Run identifies one generation episode.
type Run struct {
	ID     string    `json:"id"`
	Status RunStatus `json:"status"`
}

// ThreadStatus is the run-status fetch result: thread metadata plus the most
// recent run.
type ThreadStatus struct {
	ThreadID    string `json:"thread_id"`
	AssistantID string `json:"assistant_id,omitempty"`
	Published   bool   `json:"published"`
	Run         *Run   `json:"run,omitempty"`
}

// FileRef references an uploaded file attached to a message.
type FileRef struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
}

// Annotation marks a span of text content (citation, file reference).
type Annotation struct {
	Type       string `json:"type,omitempty"`
	Text       string `json:"text,omitempty"`
	FileID     string `json:"file_id,omitempty"`
	StartIndex int    `json:"start_index,omitempty"`
	EndIndex   int    `json:"end_index,omitempty"`
}

// ========================================
// Content items (tagged union)
// ========================================

// ContentType discriminates ContentItem variants.
type ContentType string

const (
	ContentText                ContentType = "text"
	ContentCode                ContentType = "code"
	ContentCodeOutputLogs      ContentType = "code_output_logs"
	ContentCodeOutputImageFile ContentType = "code_output_image_file"
	ContentCodeOutputImageURL  ContentType = "code_output_image_url"
	ContentImageFile           ContentType = "image_file"
	ContentFileSearchCall      ContentType = "file_search_call"
	ContentWebSearchCall       ContentType = "web_search_call"
	ContentMCPServerCall       ContentType = "mcp_server_call"
	ContentMCPListToolsCall    ContentType = "mcp_list_tools_call"
	ContentReasoning           ContentType = "reasoning"
)

// TextContent carries accumulated text plus its annotations.
type TextContent struct {
	Value       string       `json:"value"`
	Annotations []Annotation `json:"annotations"`
}

// CodeContent is a code-interpreter invocation.
type CodeContent struct {
	StepID string `json:"step_id,omitempty"`
	Code   string `json:"code"`
	Status string `json:"status,omitempty"`
}

// LogsContent is code-interpreter stdout/stderr output.
type LogsContent struct {
	Logs string `json:"logs"`
}

// ImageFileContent references an image by file id.
type ImageFileContent struct {
	FileID string `json:"file_id"`
}

// ImageURLContent references an image by URL.
type ImageURLContent struct {
	URL string `json:"url"`
}

// FileSearchContent is a file-search tool call.
type FileSearchContent struct {
	StepID  string   `json:"step_id"`
	Status  string   `json:"status,omitempty"`
	Queries []string `json:"queries,omitempty"`
}

// WebSearchContent is a web-search tool call.
type WebSearchContent struct {
	StepID string `json:"step_id"`
	Status string `json:"status,omitempty"`
	Action string `json:"action,omitempty"`
}

// MCPCallContent is one external-tool (MCP) invocation.
type MCPCallContent struct {
	StepID      string `json:"step_id"`
	ServerLabel string `json:"server_label,omitempty"`
	ToolName    string `json:"tool_name,omitempty"`
	Arguments   string `json:"arguments,omitempty"`
	Output      string `json:"output,omitempty"`
	Error       string `json:"error,omitempty"`
	Status      string `json:"status,omitempty"`
}

// MCPTool describes one tool advertised by an MCP server.
type MCPTool struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// MCPListToolsContent is an MCP list-tools call.
type MCPListToolsContent struct {
	StepID      string    `json:"step_id"`
	ServerLabel string    `json:"server_label,omitempty"`
	Tools       []MCPTool `json:"tools,omitempty"`
	Error       string    `json:"error,omitempty"`
	Status      string    `json:"status,omitempty"`
}

// SummaryPart is one part of a reasoning summary. Text grows by append as
// delta chunks arrive for the same id.
type SummaryPart struct {
	ID          string `json:"id"`
	PartIndex   int    `json:"part_index"`
	SummaryText string `json:"summary_text"`
}

// ReasoningContent is an incrementally-summarized reasoning step.
type ReasoningContent struct {
	StepID     string        `json:"step_id"`
	Summary    []SummaryPart `json:"summary,omitempty"`
	Status     string        `json:"status,omitempty"`
	ThoughtFor float64       `json:"thought_for,omitempty"`
}

// ContentItem is the tagged union of message content. Exactly one variant
// pointer matching Type is set.
type ContentItem struct {
	Type         ContentType          `json:"type"`
	Text         *TextContent         `json:"text,omitempty"`
	Code         *CodeContent         `json:"code,omitempty"`
	Logs         *LogsContent         `json:"logs,omitempty"`
	ImageFile    *ImageFileContent    `json:"image_file,omitempty"`
	ImageURL     *ImageURLContent     `json:"image_url,omitempty"`
	FileSearch   *FileSearchContent   `json:"file_search_call,omitempty"`
	WebSearch    *WebSearchContent    `json:"web_search_call,omitempty"`
	MCPCall      *MCPCallContent      `json:"mcp_server_call,omitempty"`
	MCPListTools *MCPListToolsContent `json:"mcp_list_tools_call,omitempty"`
	Reasoning    *ReasoningContent    `json:"reasoning,omitempty"`
}

// StepID returns the tool/reasoning step id of the item, or "" for content
// kinds that have none.
func (c ContentItem) StepID() string {
	switch c.Type {
	case ContentCode:
		if c.Code != nil {
			return c.Code.StepID
		}
	case ContentFileSearchCall:
		if c.FileSearch != nil {
			return c.FileSearch.StepID
		}
	case ContentWebSearchCall:
		if c.WebSearch != nil {
			return c.WebSearch.StepID
		}
	case ContentMCPServerCall:
		if c.MCPCall != nil {
			return c.MCPCall.StepID
		}
	case ContentMCPListToolsCall:
		if c.MCPListTools != nil {
			return c.MCPListTools.StepID
		}
	case ContentReasoning:
		if c.Reasoning != nil {
			return c.Reasoning.StepID
		}
	}
	return ""
}

// TextItem builds a plain text content item.
func TextItem(value string) ContentItem {
	return ContentItem{
		Type: ContentText,
		Text: &TextContent{Value: value, Annotations: []Annotation{}},
	}
}

// ========================================
// Message
// ========================================

// MetadataMessageType tags tool/reasoning step messages so display grouping
// can pick the untagged message as the base record.
const MetadataMessageType = "message_type"

// Message is one transcript entry. Identity is by ID; an optimistic message
// carries a locally-generated id and no RunID until the server confirms it.
type Message struct {
	ID          string         `json:"id"`
	Role        Role           `json:"role"`
	Content     []ContentItem  `json:"content"`
	CreatedAt   float64        `json:"created_at"`
	RunID       string         `json:"run_id,omitempty"`
	OutputIndex *int           `json:"output_index,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	Attachments []FileRef      `json:"attachments,omitempty"`
}

// MetaOutputIndex returns the numeric output_index hint from metadata.
func (m Message) MetaOutputIndex() (int, bool) {
	v, ok := m.Metadata["output_index"]
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	case json.Number:
		f, err := n.Float64()
		if err != nil {
			return 0, false
		}
		return int(f), true
	}
	return 0, false
}

// MessageType returns the metadata message_type tag, "" when untagged.
func (m Message) MessageType() string {
	if s, ok := m.Metadata[MetadataMessageType].(string); ok {
		return s
	}
	return ""
}

// ========================================
// History paging
// ========================================

// HistoryPage is one page of thread history split by content kind.
type HistoryPage struct {
	Messages          []Message `json:"messages"`
	CIMessages        []Message `json:"ci_messages"`
	FSMessages        []Message `json:"fs_messages"`
	WSMessages        []Message `json:"ws_messages"`
	MCPMessages       []Message `json:"mcp_messages"`
	ReasoningMessages []Message `json:"reasoning_messages"`
	HasMore           bool      `json:"has_more"`
	Limit             int       `json:"limit"`
}
