package thread

import (
	"context"

	"github.com/comppolicylab/pingpong-sub002/internal/chunk"
	"github.com/comppolicylab/pingpong-sub002/internal/model"
)

// SendRequest carries one user message to the backend.
type SendRequest struct {
	UserID                 string          `json:"user_id,omitempty"`
	Text                   string          `json:"text"`
	Attachments            []model.FileRef `json:"attachments,omitempty"`
	CodeInterpreterFileIDs []string        `json:"code_interpreter_file_ids,omitempty"`
	FileSearchFileIDs      []string        `json:"file_search_file_ids,omitempty"`
}

// Backend is the consumed collaborator surface: transport details live
// behind it, the engine only sees decoded pages, statuses and chunk streams.
type Backend interface {
	// SendMessage posts a user message and returns the response chunk
	// stream for it.
	SendMessage(ctx context.Context, threadID string, req SendRequest) (chunk.Stream, error)

	// FetchHistory returns an older page of thread history. before is a
	// message id on protocol v2 and a run id on protocol v3; empty means
	// latest page.
	FetchHistory(ctx context.Context, threadID string, limit int, before string) (model.HistoryPage, error)

	// FetchRunStatus returns the thread plus its most recent run.
	FetchRunStatus(ctx context.Context, threadID string) (model.ThreadStatus, error)

	// FetchToolCallResult loads the detailed content for a finished
	// tool/reasoning step, replacing its placeholder.
	FetchToolCallResult(ctx context.Context, threadID, runID, stepID string, kind model.ContentType) ([]model.ContentItem, error)

	Publish(ctx context.Context, threadID string) error
	Unpublish(ctx context.Context, threadID string) error
	DeleteThread(ctx context.Context, threadID string) error
}
