// dispatcher.go — routes stream chunks to their handlers.
package thread

import (
	"context"
	"errors"
	"io"

	"github.com/comppolicylab/pingpong-sub002/internal/chunk"
	"github.com/comppolicylab/pingpong-sub002/internal/model"
	"github.com/comppolicylab/pingpong-sub002/pkg/logger"
	"github.com/comppolicylab/pingpong-sub002/pkg/util"
)

// chunkHandler applies one chunk under the manager lock. stop ends the
// consume loop, err surfaces as the typed send failure.
type chunkHandler func(m *Manager, c chunk.Chunk) (stop bool, err *SendError)

var chunkHandlers = map[chunk.Type]chunkHandler{
	chunk.TypeMessageCreated: func(m *Manager, c chunk.Chunk) (bool, *SendError) {
		if c.Message != nil {
			msg := *c.Message
			msg.CreatedAt = normalizeTimestamp(msg.CreatedAt)
			if msg.Content == nil {
				msg.Content = []model.ContentItem{}
			}
			m.appendStreamedLocked(msg)
		}
		return false, nil
	},
	chunk.TypeMessageDelta: func(m *Manager, c chunk.Chunk) (bool, *SendError) {
		m.applyMessageDeltaLocked(c.ContentDeltas)
		return false, nil
	},
	chunk.TypeToolCallCreated: func(m *Manager, c chunk.Chunk) (bool, *SendError) {
		m.applyToolCallLocked(c.ToolCall)
		return false, nil
	},
	chunk.TypeToolCallDelta: func(m *Manager, c chunk.Chunk) (bool, *SendError) {
		m.applyToolCallLocked(c.ToolCall)
		return false, nil
	},
	chunk.TypeReasoningStepCreated: func(m *Manager, c chunk.Chunk) (bool, *SendError) {
		m.applyReasoningCreatedLocked(c.ReasoningStep)
		return false, nil
	},
	chunk.TypeSummaryPartAdded: func(m *Manager, c chunk.Chunk) (bool, *SendError) {
		m.applySummaryPartLocked(c.SummaryPart)
		return false, nil
	},
	chunk.TypeSummaryTextDelta: func(m *Manager, c chunk.Chunk) (bool, *SendError) {
		m.applySummaryTextDeltaLocked(c.SummaryTextDelta)
		return false, nil
	},
	chunk.TypeReasoningCompleted: func(m *Manager, c chunk.Chunk) (bool, *SendError) {
		m.applyReasoningCompletedLocked(c.ReasoningCompleted)
		return false, nil
	},
	chunk.TypeDone: func(m *Manager, c chunk.Chunk) (bool, *SendError) {
		return true, nil
	},
	chunk.TypeError: func(m *Manager, c chunk.Chunk) (bool, *SendError) {
		detail := util.FirstNonEmpty(c.Detail, "the stream reported a failure")
		return true, &SendError{Kind: KindStream, Detail: detail, WasSent: true}
	},
	chunk.TypePresendError: func(m *Manager, c chunk.Chunk) (bool, *SendError) {
		detail := util.FirstNonEmpty(c.Detail, "the message was rejected before sending")
		return true, &SendError{Kind: KindPresend, Detail: detail, WasSent: false}
	},
	chunk.TypeRunActiveError: func(m *Manager, c chunk.Chunk) (bool, *SendError) {
		detail := util.FirstNonEmpty(c.Detail, "another run is already active")
		return true, &SendError{Kind: KindRunActive, Detail: detail, WasSent: false}
	},
}

// Consume iterates the chunk stream to completion, applying chunks in
// delivery order. On entry it clears submitting and raises waiting; waiting
// is always cleared again on exit, success or not, so consumers never stay
// in a perpetual spinner state. onProgress fires after every applied chunk.
func (m *Manager) Consume(ctx context.Context, st chunk.Stream, onProgress func()) *SendError {
	m.mu.Lock()
	m.submitting = false
	m.waiting = true
	m.mu.Unlock()
	if onProgress != nil {
		onProgress()
	}

	defer func() {
		m.mu.Lock()
		m.waiting = false
		m.mu.Unlock()
		if onProgress != nil {
			onProgress()
		}
	}()

	for {
		if err := ctx.Err(); err != nil {
			return &SendError{Kind: KindStream, Detail: err.Error(), WasSent: true}
		}

		c, err := st.Recv()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return &SendError{Kind: KindStream, Detail: err.Error(), WasSent: true}
		}

		handler, ok := chunkHandlers[c.Type]
		if !ok {
			logger.Warn("unknown chunk type, skipped",
				logger.FieldThreadID, m.threadID,
				logger.FieldChunkType, string(c.Type),
			)
			continue
		}

		m.mu.Lock()
		stop, serr := handler(m, c)
		m.mu.Unlock()
		if onProgress != nil {
			onProgress()
		}
		if serr != nil {
			return serr
		}
		if stop {
			return nil
		}
	}
}

// applyMessageDeltaLocked merges content deltas into the most recent
// streamed assistant message.
func (m *Manager) applyMessageDeltaLocked(deltas []chunk.ContentDelta) {
	list := &m.confirmed.Messages
	for i := len(*list) - 1; i >= 0; i-- {
		if (*list)[i].Role != model.RoleAssistant {
			continue
		}
		msg := (*list)[i]
		content := msg.Content
		for _, d := range deltas {
			content = mergeDelta(content, d)
		}
		msg.Content = content
		m.setMessageLocked(msgRef{list: list, idx: i}, msg)
		return
	}
	logger.Warn("message delta with no assistant message, dropped",
		logger.FieldThreadID, m.threadID,
	)
}

// normalizeTimestamp converts millisecond timestamps to the second-based
// unit the rest of the transcript sorts by. Zero means "assigned now".
func normalizeTimestamp(ts float64) float64 {
	if ts == 0 {
		return nowSeconds()
	}
	if ts > 1e12 {
		return ts / 1000
	}
	return ts
}
