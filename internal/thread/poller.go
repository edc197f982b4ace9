// poller.go — run-completion polling fallback.
//
// When the chunk stream is unavailable (run already active elsewhere, or a
// view opened onto a thread with an in-flight run) the manager follows the
// run by re-fetching its status on an interval until a terminal status,
// bounded by a wall-clock timeout.
package thread

import (
	"time"

	"github.com/comppolicylab/pingpong-sub002/internal/model"
	"github.com/comppolicylab/pingpong-sub002/pkg/logger"
	"github.com/comppolicylab/pingpong-sub002/pkg/util"
)

// StartPolling raises the waiting flag and follows the active run in the
// background. Idempotent while a poll loop is running.
func (m *Manager) StartPolling() {
	m.mu.Lock()
	if m.polling {
		m.mu.Unlock()
		return
	}
	m.polling = true
	m.waiting = true
	m.mu.Unlock()
	m.notify()

	util.SafeGo(m.pollLoop)
}

func (m *Manager) pollLoop() {
	defer func() {
		m.mu.Lock()
		m.polling = false
		m.waiting = false
		m.mu.Unlock()
		m.notify()
	}()

	ticker := time.NewTicker(m.opts.PollInterval)
	defer ticker.Stop()
	deadline := time.NewTimer(m.opts.PollTimeout)
	defer deadline.Stop()

	for {
		select {
		case <-m.lifeCtx.Done():
			return

		case <-deadline.C:
			// The run's true status stays unknown; no abort is attempted.
			m.mu.Lock()
			m.lastError = &SendError{
				Kind:    KindTimeout,
				Detail:  "run did not reach a terminal status in time",
				WasSent: true,
			}
			m.mu.Unlock()
			return

		case <-ticker.C:
			status, err := m.backend.FetchRunStatus(m.lifeCtx, m.threadID)
			if err != nil {
				logger.Warn("poll run status failed",
					logger.FieldThreadID, m.threadID,
					logger.FieldError, err,
				)
				continue
			}
			if status.Run == nil || status.Run.Status.Terminal() {
				m.reloadLatest()
				return
			}
		}
	}
}

// reloadLatest pulls the newest history page after the run finished and
// merges unseen messages into the confirmed lists.
func (m *Manager) reloadLatest() {
	m.mu.Lock()
	limit := m.limit
	m.mu.Unlock()

	page, err := m.backend.FetchHistory(m.lifeCtx, m.threadID, limit, "")
	if err != nil {
		m.mu.Lock()
		m.lastError = &SendError{Kind: KindTransient, Detail: err.Error(), WasSent: true}
		m.mu.Unlock()
		return
	}

	m.mu.Lock()
	if len(m.allMessagesLocked()) == 0 {
		m.confirmed = confirmedData{
			Messages:          page.Messages,
			CIMessages:        page.CIMessages,
			FSMessages:        page.FSMessages,
			WSMessages:        page.WSMessages,
			MCPMessages:       page.MCPMessages,
			ReasoningMessages: page.ReasoningMessages,
		}
		m.canFetchMore = page.HasMore
	} else {
		m.confirmed.Messages = mergeNewByID(m.confirmed.Messages, page.Messages)
		m.confirmed.CIMessages = mergeNewByID(m.confirmed.CIMessages, page.CIMessages)
		m.confirmed.FSMessages = mergeNewByID(m.confirmed.FSMessages, page.FSMessages)
		m.confirmed.WSMessages = mergeNewByID(m.confirmed.WSMessages, page.WSMessages)
		m.confirmed.MCPMessages = mergeNewByID(m.confirmed.MCPMessages, page.MCPMessages)
		m.confirmed.ReasoningMessages = mergeNewByID(m.confirmed.ReasoningMessages, page.ReasoningMessages)
	}
	m.mu.Unlock()
}

// mergeNewByID appends page messages whose ids are not known yet.
func mergeNewByID(existing, page []model.Message) []model.Message {
	if len(page) == 0 {
		return existing
	}
	known := make(map[string]bool, len(existing))
	for _, msg := range existing {
		known[msg.ID] = true
	}
	out := append([]model.Message{}, existing...)
	for _, msg := range page {
		if !known[msg.ID] {
			out = append(out, msg)
		}
	}
	return out
}
