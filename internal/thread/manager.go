// manager.go — reconciliation state store for one thread.
//
// The manager owns the confirmed + optimistic message sets, the attachment
// map and the in-flight flags. Every mutation is one mutex-guarded
// read-copy-replace step; readers only see complete states through the
// derived views in views.go.
package thread

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/comppolicylab/pingpong-sub002/internal/model"
	"github.com/comppolicylab/pingpong-sub002/pkg/logger"
	"github.com/comppolicylab/pingpong-sub002/pkg/util"
)

// confirmedData holds the server-confirmed messages split by content kind,
// mirroring the history page shape so paging merges stay cheap.
type confirmedData struct {
	Messages          []model.Message
	CIMessages        []model.Message
	FSMessages        []model.Message
	WSMessages        []model.Message
	MCPMessages       []model.Message
	ReasoningMessages []model.Message
}

// Options configures a Manager.
type Options struct {
	ProtocolVersion int           // 2: page by message id, 3: page by run id
	PageLimit       int           // history page size
	PollInterval    time.Duration // run-status poll interval
	PollTimeout     time.Duration // wall-clock bound for the polling fallback
}

func (o Options) withDefaults() Options {
	if o.ProtocolVersion == 0 {
		o.ProtocolVersion = 3
	}
	if o.PageLimit <= 0 {
		o.PageLimit = 20
	}
	o.PageLimit = util.ClampInt(o.PageLimit, 1, 100)
	if o.PollInterval <= 0 {
		o.PollInterval = time.Second
	}
	if o.PollTimeout <= 0 {
		o.PollTimeout = 120 * time.Second
	}
	return o
}

// Manager is the reconciliation state store bound to one thread. One
// manager per thread id is a hard precondition; the registry enforces it.
type Manager struct {
	mu sync.Mutex

	threadID string
	opts     Options
	backend  Backend

	confirmed   confirmedData
	optimistic  []model.Message
	attachments map[string]model.FileRef

	limit        int
	canFetchMore bool
	loading      bool
	waiting      bool
	submitting   bool
	polling      bool
	published    bool
	assistantID  string
	lastError    *SendError

	onChange func()

	lifeCtx context.Context
	cancel  context.CancelFunc
}

// NewManager creates an unseeded manager for threadID.
func NewManager(threadID string, backend Backend, opts Options) *Manager {
	ctx, cancel := context.WithCancel(context.Background())
	o := opts.withDefaults()
	return &Manager{
		threadID:     threadID,
		opts:         o,
		backend:      backend,
		attachments:  make(map[string]model.FileRef),
		limit:        o.PageLimit,
		canFetchMore: true,
		lifeCtx:      ctx,
		cancel:       cancel,
	}
}

// ThreadID returns the bound thread id.
func (m *Manager) ThreadID() string { return m.threadID }

// Context returns the manager lifetime context; it is cancelled on Close.
func (m *Manager) Context() context.Context { return m.lifeCtx }

// SetOnChange installs the store-change observer. The hook runs outside the
// manager lock after each completed state transition.
func (m *Manager) SetOnChange(fn func()) {
	m.mu.Lock()
	m.onChange = fn
	m.mu.Unlock()
}

// notify invokes the change observer. Never call while holding mu.
func (m *Manager) notify() {
	m.mu.Lock()
	fn := m.onChange
	m.mu.Unlock()
	if fn != nil {
		fn()
	}
}

// Seed installs an initial history page plus run status. When the last run
// is still active the manager resumes it via polling.
func (m *Manager) Seed(page model.HistoryPage, status model.ThreadStatus) {
	m.mu.Lock()
	m.confirmed = confirmedData{
		Messages:          page.Messages,
		CIMessages:        page.CIMessages,
		FSMessages:        page.FSMessages,
		WSMessages:        page.WSMessages,
		MCPMessages:       page.MCPMessages,
		ReasoningMessages: page.ReasoningMessages,
	}
	m.canFetchMore = page.HasMore
	if page.Limit > 0 {
		m.limit = page.Limit
	}
	m.published = status.Published
	m.assistantID = status.AssistantID
	runActive := status.Run != nil && !status.Run.Status.Terminal()
	m.mu.Unlock()

	if runActive {
		m.StartPolling()
	}
	m.notify()
}

// Close stops the poller and releases the manager. The registry calls it on
// dispose.
func (m *Manager) Close() { m.cancel() }

// ========================================
// Message access helpers (locked)
// ========================================

// msgRef addresses one message inside one of the manager-owned lists.
type msgRef struct {
	list *[]model.Message
	idx  int
}

// messageListsLocked returns the owned lists in scan order: confirmed kinds
// first, optimistic last (most recent).
func (m *Manager) messageListsLocked() []*[]model.Message {
	return []*[]model.Message{
		&m.confirmed.Messages,
		&m.confirmed.CIMessages,
		&m.confirmed.FSMessages,
		&m.confirmed.WSMessages,
		&m.confirmed.MCPMessages,
		&m.confirmed.ReasoningMessages,
		&m.optimistic,
	}
}

// allMessagesLocked flattens every owned list, confirmed first.
func (m *Manager) allMessagesLocked() []model.Message {
	var out []model.Message
	for _, list := range m.messageListsLocked() {
		out = append(out, *list...)
	}
	return out
}

// setMessageLocked replaces the message at ref with a fresh copy of its
// list, keeping prior snapshots untouched.
func (m *Manager) setMessageLocked(ref msgRef, msg model.Message) {
	next := append([]model.Message{}, *ref.list...)
	next[ref.idx] = msg
	*ref.list = next
}

// appendStreamedLocked appends a server-streamed message to the confirmed
// main list.
func (m *Manager) appendStreamedLocked(msg model.Message) {
	m.confirmed.Messages = append(append([]model.Message{}, m.confirmed.Messages...), msg)
}

// ========================================
// PostMessage
// ========================================

// PostMessage validates, optimistically inserts and sends one user message,
// then consumes the response stream to completion. Rejections and failures
// are reported through cb, never as panics; the call blocks until the
// stream finishes, so callers that need fire-and-forget wrap it in SafeGo.
func (m *Manager) PostMessage(ctx context.Context, req SendRequest, cb func(SendResult)) {
	reject := func(detail string) {
		err := &SendError{Kind: KindValidation, Detail: detail, WasSent: false}
		if cb != nil {
			cb(SendResult{OK: false, Err: err})
		}
	}

	if strings.TrimSpace(req.Text) == "" {
		reject("message text is empty")
		return
	}

	m.mu.Lock()
	if m.waiting || m.submitting {
		m.mu.Unlock()
		reject("a send is already in flight")
		return
	}
	m.submitting = true

	optimistic := model.Message{
		ID:          "local-" + uuid.NewString(),
		Role:        model.RoleUser,
		Content:     []model.ContentItem{model.TextItem(req.Text)},
		CreatedAt:   nowSeconds(),
		Attachments: req.Attachments,
	}
	if m.opts.ProtocolVersion >= 3 {
		idx := maxOutputIndex(m.allMessagesLocked()) + 1
		optimistic.OutputIndex = &idx
	}
	m.optimistic = append(append([]model.Message{}, m.optimistic...), optimistic)

	var staged []string
	for _, f := range req.Attachments {
		if _, exists := m.attachments[f.ID]; !exists {
			m.attachments[f.ID] = f
			staged = append(staged, f.ID)
		}
	}
	m.mu.Unlock()
	m.notify()

	stream, err := m.backend.SendMessage(ctx, m.threadID, req)
	if err != nil {
		serr := &SendError{Kind: KindPresend, Detail: err.Error(), WasSent: false}
		m.rollbackOptimistic(optimistic.ID, staged, serr)
		m.mu.Lock()
		m.submitting = false
		m.mu.Unlock()
		m.notify()
		if cb != nil {
			cb(SendResult{OK: false, Err: serr})
		}
		return
	}
	defer func() { _ = stream.Close() }()

	serr := m.Consume(ctx, stream, m.notify)
	switch {
	case serr == nil:
		if cb != nil {
			cb(SendResult{OK: true})
		}
	case serr.Kind == KindPresend:
		m.rollbackOptimistic(optimistic.ID, staged, serr)
		if cb != nil {
			cb(SendResult{OK: false, Err: serr})
		}
	case serr.Kind == KindRunActive:
		// A run is already active server-side. Roll back and follow it
		// by polling instead of surfacing a hard failure.
		m.rollbackOptimistic(optimistic.ID, staged, nil)
		m.StartPolling()
		if cb != nil {
			cb(SendResult{OK: false, Err: serr})
		}
	default:
		// Stream failure: partial content may already be visible, the
		// optimistic message stays.
		m.mu.Lock()
		m.lastError = serr
		m.mu.Unlock()
		m.notify()
		if cb != nil {
			cb(SendResult{OK: false, Err: serr})
		}
	}
}

// rollbackOptimistic removes the optimistic message and its staged
// attachments, recording err as lastError when non-nil.
func (m *Manager) rollbackOptimistic(messageID string, staged []string, err *SendError) {
	m.mu.Lock()
	next := make([]model.Message, 0, len(m.optimistic))
	for _, msg := range m.optimistic {
		if msg.ID != messageID {
			next = append(next, msg)
		}
	}
	m.optimistic = next
	for _, id := range staged {
		delete(m.attachments, id)
	}
	if err != nil {
		m.lastError = err
	}
	m.mu.Unlock()
	m.notify()
}

// ========================================
// Paging
// ========================================

// FetchMore loads one older history page. It is a no-op while another load
// is in flight or after the server reported the end of history, so repeated
// calls after canFetchMore turns false stay idempotent.
func (m *Manager) FetchMore(ctx context.Context) {
	m.mu.Lock()
	if m.loading || !m.canFetchMore {
		m.mu.Unlock()
		return
	}
	m.loading = true
	before := m.pageCursorLocked()
	limit := m.limit
	m.mu.Unlock()
	m.notify()

	page, err := m.backend.FetchHistory(ctx, m.threadID, limit, before)

	m.mu.Lock()
	m.loading = false
	if err != nil {
		m.lastError = &SendError{Kind: KindTransient, Detail: err.Error(), WasSent: true}
		m.mu.Unlock()
		m.notify()
		return
	}
	m.confirmed.Messages = append(append([]model.Message{}, page.Messages...), m.confirmed.Messages...)
	m.confirmed.CIMessages = append(append([]model.Message{}, page.CIMessages...), m.confirmed.CIMessages...)
	m.confirmed.FSMessages = append(append([]model.Message{}, page.FSMessages...), m.confirmed.FSMessages...)
	m.confirmed.WSMessages = append(append([]model.Message{}, page.WSMessages...), m.confirmed.WSMessages...)
	m.confirmed.MCPMessages = append(append([]model.Message{}, page.MCPMessages...), m.confirmed.MCPMessages...)
	m.confirmed.ReasoningMessages = append(append([]model.Message{}, page.ReasoningMessages...), m.confirmed.ReasoningMessages...)
	m.canFetchMore = page.HasMore
	if page.Limit > 0 {
		m.limit = page.Limit
	}
	m.mu.Unlock()
	m.notify()
}

// pageCursorLocked derives the "before" key for the next older page: the
// earliest known run id on protocol v3, the earliest message id on v2.
func (m *Manager) pageCursorLocked() string {
	if len(m.confirmed.Messages) == 0 {
		return ""
	}
	if m.opts.ProtocolVersion >= 3 {
		for _, msg := range m.confirmed.Messages {
			if msg.RunID != "" {
				return msg.RunID
			}
		}
		return ""
	}
	return m.confirmed.Messages[0].ID
}

// ========================================
// Per-kind result loaders
// ========================================

// FetchCodeInterpreterResult replaces a code-interpreter placeholder with
// its fetched detailed content.
func (m *Manager) FetchCodeInterpreterResult(ctx context.Context, runID, stepID string) {
	m.fetchToolResult(ctx, runID, stepID, model.ContentCode)
}

// FetchFileSearchResult replaces a file-search placeholder.
func (m *Manager) FetchFileSearchResult(ctx context.Context, runID, stepID string) {
	m.fetchToolResult(ctx, runID, stepID, model.ContentFileSearchCall)
}

// FetchWebSearchResult replaces a web-search placeholder.
func (m *Manager) FetchWebSearchResult(ctx context.Context, runID, stepID string) {
	m.fetchToolResult(ctx, runID, stepID, model.ContentWebSearchCall)
}

// FetchMCPResult replaces an MCP-call placeholder.
func (m *Manager) FetchMCPResult(ctx context.Context, runID, stepID string) {
	m.fetchToolResult(ctx, runID, stepID, model.ContentMCPServerCall)
}

func (m *Manager) fetchToolResult(ctx context.Context, runID, stepID string, kind model.ContentType) {
	items, err := m.backend.FetchToolCallResult(ctx, m.threadID, runID, stepID, kind)
	if err != nil {
		m.mu.Lock()
		m.lastError = &SendError{Kind: KindTransient, Detail: err.Error(), WasSent: true}
		m.mu.Unlock()
		m.notify()
		return
	}

	m.mu.Lock()
	ref, msg, ok := m.findStepLocked(runID, stepID, kind)
	if ok {
		content := make([]model.ContentItem, 0, len(msg.Content)+len(items))
		for _, item := range msg.Content {
			if item.Type == kind && item.StepID() == stepID {
				continue
			}
			content = append(content, item)
		}
		content = append(content, items...)
		msg.Content = content
		m.setMessageLocked(ref, msg)
	}
	m.mu.Unlock()
	if !ok {
		logger.Warn("tool result fetched but placeholder not found",
			logger.FieldThreadID, m.threadID,
			logger.FieldRunID, runID,
			logger.FieldStepID, stepID,
		)
	}
	m.notify()
}

// ========================================
// Publish / Unpublish / Delete / DismissError
// ========================================

// Publish marks the thread public via the backend.
func (m *Manager) Publish(ctx context.Context) {
	m.withLoading(func() error { return m.backend.Publish(ctx, m.threadID) }, func() {
		m.published = true
	})
}

// Unpublish retracts a published thread.
func (m *Manager) Unpublish(ctx context.Context) {
	m.withLoading(func() error { return m.backend.Unpublish(ctx, m.threadID) }, func() {
		m.published = false
	})
}

// Delete removes the thread server-side. The caller disposes the manager
// afterwards; the local message list survives a failed call.
func (m *Manager) Delete(ctx context.Context) {
	m.withLoading(func() error { return m.backend.DeleteThread(ctx, m.threadID) }, nil)
}

// withLoading brackets one network call with the loading flag and records a
// transient error on failure.
func (m *Manager) withLoading(call func() error, onSuccess func()) {
	m.mu.Lock()
	if m.loading {
		m.mu.Unlock()
		return
	}
	m.loading = true
	m.mu.Unlock()
	m.notify()

	err := call()

	m.mu.Lock()
	m.loading = false
	if err != nil {
		m.lastError = &SendError{Kind: KindTransient, Detail: err.Error(), WasSent: true}
	} else if onSuccess != nil {
		onSuccess()
	}
	m.mu.Unlock()
	m.notify()
}

// DismissError clears the last error and nothing else.
func (m *Manager) DismissError() {
	m.mu.Lock()
	m.lastError = nil
	m.mu.Unlock()
	m.notify()
}

// nowSeconds is the provider time unit: Unix seconds with sub-second
// precision, so optimistic entries sort correctly against streamed ones.
func nowSeconds() float64 {
	return float64(time.Now().UnixNano()) / float64(time.Second)
}
