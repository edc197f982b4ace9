// thread_test.go — shared test doubles for the engine tests.
package thread

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/comppolicylab/pingpong-sub002/internal/chunk"
	"github.com/comppolicylab/pingpong-sub002/internal/model"
)

// scriptedStream replays a fixed chunk sequence, then finalErr (io.EOF when
// unset).
type scriptedStream struct {
	chunks   []chunk.Chunk
	finalErr error

	mu     sync.Mutex
	i      int
	closed bool
}

func (s *scriptedStream) Recv() (chunk.Chunk, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.i < len(s.chunks) {
		c := s.chunks[s.i]
		s.i++
		return c, nil
	}
	if s.finalErr != nil {
		return chunk.Chunk{}, s.finalErr
	}
	return chunk.Chunk{}, io.EOF
}

func (s *scriptedStream) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}

// streamFromFrames decodes raw wire frames into a scripted stream so tests
// exercise the real decoder.
func streamFromFrames(t *testing.T, frames ...string) *scriptedStream {
	t.Helper()
	var chunks []chunk.Chunk
	for _, f := range frames {
		c, err := chunk.Decode([]byte(f))
		if err != nil {
			t.Fatalf("Decode(%s) failed: %v", f, err)
		}
		chunks = append(chunks, c)
	}
	return &scriptedStream{chunks: chunks}
}

// fakeBackend is a scriptable in-memory Backend.
type fakeBackend struct {
	mu sync.Mutex

	stream  chunk.Stream
	sendErr error

	history       model.HistoryPage
	historyErr    error
	historyBefore []string

	statuses   []model.ThreadStatus
	statusErr  error
	statusHits int

	toolItems []model.ContentItem
	toolErr   error

	publishErr   error
	unpublishErr error
	deleteErr    error

	sendHits    int
	publishHits int
	deleteHits  int
}

func (f *fakeBackend) SendMessage(ctx context.Context, threadID string, req SendRequest) (chunk.Stream, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sendHits++
	if f.sendErr != nil {
		return nil, f.sendErr
	}
	return f.stream, nil
}

func (f *fakeBackend) FetchHistory(ctx context.Context, threadID string, limit int, before string) (model.HistoryPage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.historyBefore = append(f.historyBefore, before)
	if f.historyErr != nil {
		return model.HistoryPage{}, f.historyErr
	}
	return f.history, nil
}

// FetchRunStatus pops the scripted statuses; the last entry repeats.
func (f *fakeBackend) FetchRunStatus(ctx context.Context, threadID string) (model.ThreadStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statusHits++
	if f.statusErr != nil {
		return model.ThreadStatus{}, f.statusErr
	}
	if len(f.statuses) == 0 {
		return model.ThreadStatus{ThreadID: threadID}, nil
	}
	st := f.statuses[0]
	if len(f.statuses) > 1 {
		f.statuses = f.statuses[1:]
	}
	return st, nil
}

func (f *fakeBackend) FetchToolCallResult(ctx context.Context, threadID, runID, stepID string, kind model.ContentType) ([]model.ContentItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.toolErr != nil {
		return nil, f.toolErr
	}
	return f.toolItems, nil
}

func (f *fakeBackend) Publish(ctx context.Context, threadID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.publishHits++
	return f.publishErr
}

func (f *fakeBackend) Unpublish(ctx context.Context, threadID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.unpublishErr
}

func (f *fakeBackend) DeleteThread(ctx context.Context, threadID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleteHits++
	return f.deleteErr
}

// waitFor polls cond until it holds or the deadline expires.
func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("condition not reached within deadline")
}

// assistantMsg builds a confirmed assistant message for test fixtures.
func assistantMsg(id, runID string, createdAt float64, items ...model.ContentItem) model.Message {
	if items == nil {
		items = []model.ContentItem{}
	}
	return model.Message{
		ID:        id,
		Role:      model.RoleAssistant,
		Content:   items,
		CreatedAt: createdAt,
		RunID:     runID,
	}
}

func userMsg(id string, createdAt float64, text string) model.Message {
	return model.Message{
		ID:        id,
		Role:      model.RoleUser,
		Content:   []model.ContentItem{model.TextItem(text)},
		CreatedAt: createdAt,
	}
}
